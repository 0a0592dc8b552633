// Package serve holds the stdio MCP server commands. They are normally
// launched by the trader, not by hand.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"agentdesk/internal/app"
	"agentdesk/internal/mcpserver"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var AccountsCmd = &cobra.Command{
	Use:   "accounts-server",
	Short: "Serve the account book over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(func(a *app.App) *server.MCPServer {
			return mcpserver.NewAccounts(mcpserver.StoreBook{Store: a.Accounts})
		})
	},
}

var MarketCmd = &cobra.Command{
	Use:   "market-server",
	Short: "Serve share prices over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(func(a *app.App) *server.MCPServer {
			return mcpserver.NewMarket(a.Prices)
		})
	},
}

func serve(build func(*app.App) *server.MCPServer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	return mcpserver.Serve(ctx, build(a), os.Stdin, os.Stdout)
}

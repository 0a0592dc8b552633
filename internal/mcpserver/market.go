package mcpserver

import (
	"context"

	"agentdesk/internal/market"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMarket builds the market MCP server quoting prices from src.
func NewMarket(src market.Source) *server.MCPServer {
	s := server.NewMCPServer("market_server", version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("lookup_share_price",
		mcp.WithDescription("This tool provides the current price of the given stock symbol."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("the symbol of the stock")),
	), lookupSharePrice(src))

	return s
}

func lookupSharePrice(src market.Source) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Symbol string `json:"symbol"`
		}
		if err := bind(req, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		price, err := src.SharePrice(ctx, args.Symbol)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(price.String()), nil
	}
}

package trade

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"agentdesk/internal/agent"
	"agentdesk/internal/app"
	"agentdesk/internal/mcpclient"
	"agentdesk/internal/tools"
	"agentdesk/internal/trader"
	"agentdesk/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	rounds int
	name   string
	model  string
)

var Cmd = &cobra.Command{
	Use:   "trade",
	Short: "Run a trader session and print the updated account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.Open(ctx, app.WithTracing())
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))

		cfg := a.Config
		if err := workspace.Prepare(cfg.ProjectRoot); err != nil {
			return err
		}

		if name == "" {
			name = cfg.Trader.Name
		}
		t := trader.New(name, deps(a))
		if cfg.Trader.Lastname != "" {
			t.Lastname = cfg.Trader.Lastname
		}
		if model != "" {
			t.Model = model
		} else if cfg.Trader.Model != "" {
			t.Model = cfg.Trader.Model
		}

		for i := 0; i < rounds; i++ {
			slog.Info("trader round", "trader", t.Name, "round", i+1, "mode", t.Mode())
			if err := t.RunWithTrace(ctx); err != nil {
				return err
			}
		}

		report, err := readAccount(ctx, a, t.Name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "\nUpdated account for "+t.Name+":\n", report)
		return nil
	},
}

func init() {
	Cmd.Flags().IntVarP(&rounds, "rounds", "r", 1, "number of sessions to run, alternating trading and rebalancing")
	Cmd.Flags().StringVarP(&name, "name", "n", "", "trader name (default from config)")
	Cmd.Flags().StringVar(&model, "model", "", "model for the trader and researcher (default from config)")
}

func deps(a *app.App) trader.Deps {
	cfg := a.Config
	d := trader.Deps{
		Providers:         cfg.Router().Provider,
		Launch:            trader.MCPLauncher(a.ServerEnv()...),
		TraderServers:     cfg.MCP.Trader,
		ResearcherServers: cfg.MCP.Researcher,
		History:           a.History,
		ResearcherTools:   []agent.Tool{tools.NewFetch()},
	}
	if cfg.Services.BraveAPIKey != "" {
		search, err := tools.NewSearch(cfg.Services.BraveAPIKey)
		if err != nil {
			slog.Warn("web search disabled", "error", err)
		} else {
			d.ResearcherTools = append(d.ResearcherTools, search)
		}
	}
	if cfg.Services.PushoverUser != "" && cfg.Services.PushoverToken != "" {
		d.TraderTools = append(d.TraderTools, tools.NewPush(cfg.Services.PushoverUser, cfg.Services.PushoverToken))
	}
	return d
}

// readAccount starts a fresh accounts server and reads the report of name.
func readAccount(ctx context.Context, a *app.App, name string) (string, error) {
	s, err := mcpclient.Start(ctx, a.Config.AccountsServer(), a.ServerEnv()...)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return mcpclient.AccountResources{Server: s}.Report(ctx, name)
}

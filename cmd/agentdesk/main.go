package main

import (
	"os"

	"agentdesk/cmd/agentdesk/account"
	"agentdesk/cmd/agentdesk/ask"
	"agentdesk/cmd/agentdesk/configure"
	"agentdesk/cmd/agentdesk/debate"
	"agentdesk/cmd/agentdesk/serve"
	"agentdesk/cmd/agentdesk/trade"
	"agentdesk/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:          "agentdesk",
		Short:        "LLM agents that debate and trade",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(debate.Cmd)
	rootCmd.AddCommand(trade.Cmd)
	rootCmd.AddCommand(ask.Cmd)
	rootCmd.AddCommand(serve.AccountsCmd)
	rootCmd.AddCommand(serve.MarketCmd)
	rootCmd.AddCommand(account.Cmd)
	rootCmd.AddCommand(configure.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

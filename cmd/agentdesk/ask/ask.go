package ask

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"agentdesk/internal/agent"
	"agentdesk/internal/app"
	"agentdesk/internal/mcpclient"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	DefaultQuestion = "What's Alice's current cash balance?"
	maxTurns        = 3

	instructions = "You are a helpful finance assistant. " +
		"Answer the user's questions by calling the GetBalance tool when helpful."
)

var Cmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the account assistant a question",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		question := DefaultQuestion
		if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
			question = args[0]
		}

		a, err := app.Open(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))

		server, err := mcpclient.Start(ctx, a.Config.AccountsServer(), a.ServerEnv()...)
		if err != nil {
			return err
		}
		defer server.Close()

		balance, err := server.ToolAs(ctx, "get_balance", "GetBalance", "Return the cash balance for the given account holder.")
		if err != nil {
			return err
		}

		assistant := agent.New("AccountAssistant",
			a.Config.Router().Provider(a.Config.DefaultModel),
			agent.NewRegistry(balance),
			agent.WithInstructions(instructions),
			agent.WithMaxTurns(maxTurns),
		)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "► user: %s\n", question)
		reply, err := assistant.Run(ctx, "ask:"+uuid.NewString(), question, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "◄ assistant: %s\n", reply)
		return nil
	},
}

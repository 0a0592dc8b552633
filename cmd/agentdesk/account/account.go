package account

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"agentdesk/internal/accounts"
	"agentdesk/internal/app"
	"agentdesk/internal/db"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// options holds dependencies for the account command so tests can swap the
// store.
type options struct {
	open func(ctx context.Context) (*accounts.Store, func() error, error)
}

var Cmd = newCmd(options{open: openStore})

func openStore(ctx context.Context) (*accounts.Store, func() error, error) {
	a, err := app.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a.Accounts, func() error { return a.Close(context.Background()) }, nil
}

func newCmd(opts options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and administer trading accounts",
		Long: `Inspect and administer the accounts traders operate on.

Examples:
  agentdesk account show tom
  agentdesk account reset tom --strategy "Value investing"
  agentdesk account deposit tom 2500
  agentdesk account logs tom --limit 50`,
	}
	cmd.SilenceUsage = true

	cmd.AddCommand(newShowCmd(opts), newResetCmd(opts), newMoveCmd(opts, true), newMoveCmd(opts, false), newLogsCmd(opts), newListCmd(opts))
	return cmd
}

// withAccount loads the named account and runs fn with it.
func withAccount(cmd *cobra.Command, opts options, name string, fn func(ctx context.Context, acct *accounts.Account) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, closeFn, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	acct, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	return fn(ctx, acct)
}

func newShowCmd(opts options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the account report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, opts, args[0], func(ctx context.Context, acct *accounts.Account) error {
				report, err := acct.Report(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func newResetCmd(opts options) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "reset <name>",
		Short: "Reset the account to the initial balance with a new strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, opts, args[0], func(ctx context.Context, acct *accounts.Account) error {
				if err := acct.Reset(ctx, strategy); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to %s\n", acct.Name, accounts.InitialBalance.StringFixed(2))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "investment strategy of the reset account")
	return cmd
}

// newMoveCmd builds deposit (in) or withdraw (out).
func newMoveCmd(opts options, in bool) *cobra.Command {
	use, short := "withdraw <name> <amount>", "Withdraw cash from the account"
	if in {
		use, short = "deposit <name> <amount>", "Deposit cash into the account"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return withAccount(cmd, opts, args[0], func(ctx context.Context, acct *accounts.Account) error {
				move := acct.Withdraw
				if in {
					move = acct.Deposit
				}
				if err := move(ctx, amount); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Balance of %s: %s\n", acct.Name, acct.Cash().StringFixed(2))
				return err
			})
		},
	}
}

func newLogsCmd(opts options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show the latest activity log entries of the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, closeFn, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			logs, err := store.Logs(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return writeLogs(cmd.OutOrStdout(), logs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of entries")
	return cmd
}

func newListCmd(opts options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, closeFn, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			names, err := store.Names(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func writeLogs(w io.Writer, logs []db.Log) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tMESSAGE")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Datetime.Format(time.DateTime), l.Type, l.Message)
	}
	return tw.Flush()
}

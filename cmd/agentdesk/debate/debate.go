package debate

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"agentdesk/internal/app"
	"agentdesk/internal/crew"
	"agentdesk/internal/render"

	"github.com/spf13/cobra"
)

// DefaultMotion is the motion debated when none is given.
const DefaultMotion = "There needs to be strict laws to regulate LLMs"

var motion string

var Cmd = &cobra.Command{
	Use:   "debate",
	Short: "Run the debate crew on a motion",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		raw, err := run(ctx)
		if err != nil {
			return fmt.Errorf("an error occurred while running the crew: %w", err)
		}
		return render.Markdown(cmd.OutOrStdout(), raw)
	},
}

func init() {
	Cmd.Flags().StringVarP(&motion, "motion", "m", DefaultMotion, "the motion to debate")
}

func run(ctx context.Context) (string, error) {
	a, err := app.Open(ctx, app.WithTracing())
	if err != nil {
		return "", err
	}
	defer a.Close(context.WithoutCancel(ctx))

	cfg := a.Config
	def, err := crew.Load(cfg.Crew.Dir)
	if err != nil {
		return "", err
	}

	c := crew.New(def, cfg.Router().Provider,
		crew.WithOutputDir(cfg.Crew.OutputDir),
		crew.WithHistory(a.History),
		crew.WithDefaultModel(cfg.DefaultModel),
	)
	out, err := c.Kickoff(ctx, map[string]string{"motion": motion})
	if err != nil {
		return "", err
	}
	return out.Raw, nil
}

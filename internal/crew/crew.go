package crew

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"agentdesk/internal/agent"
	"agentdesk/internal/history"
	"agentdesk/internal/llm"
	"agentdesk/internal/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultMaxIter = 20

// TaskOutput is the final answer of one task.
type TaskOutput struct {
	Name  string
	Agent string
	Raw   string
}

// Output is the result of a kickoff. Raw is the answer of the last task.
type Output struct {
	Raw   string
	Tasks []TaskOutput
}

type Option func(*Crew)

// WithOutputDir sets the directory relative task output files are written
// under.
func WithOutputDir(dir string) Option {
	return func(c *Crew) { c.outputDir = dir }
}

func WithHistory(store *history.Store) Option {
	return func(c *Crew) { c.store = store }
}

// WithDefaultModel sets the model of agents that do not name one.
func WithDefaultModel(model string) Option {
	return func(c *Crew) { c.defaultModel = model }
}

type Crew struct {
	def          *Definition
	providers    func(model string) llm.Provider
	store        *history.Store
	outputDir    string
	defaultModel string
}

func New(def *Definition, providers func(model string) llm.Provider, opts ...Option) *Crew {
	c := &Crew{
		def:          def,
		providers:    providers,
		defaultModel: "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kickoff runs every task in order with {placeholders} in the definition
// replaced from inputs.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*Output, error) {
	ctx, span := trace.Tracer().Start(ctx, "crew.kickoff",
		oteltrace.WithAttributes(attribute.String(trace.AttrSpanType, "crew")),
	)
	defer span.End()

	out, err := c.kickoff(ctx, inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (c *Crew) kickoff(ctx context.Context, inputs map[string]string) (*Output, error) {
	interpolate := replacer(inputs)

	profiles := make(map[string]*agent.Profile, len(c.def.Agents))
	for name, spec := range c.def.Agents {
		model := strings.TrimSpace(spec.LLM)
		if model == "" {
			model = c.defaultModel
		}
		maxIter := spec.MaxIter
		if maxIter <= 0 {
			maxIter = defaultMaxIter
		}
		profiles[name] = &agent.Profile{
			Name:         name,
			Model:        model,
			Instructions: systemPrompt(spec, interpolate),
			MaxTurns:     maxIter,
		}
	}
	factory := agent.NewFactory(c.providers, c.store, nil, profiles)

	runID := uuid.NewString()
	results := map[string]string{}
	out := &Output{}

	for i, task := range c.def.Tasks {
		member, err := factory.Build(task.Agent)
		if err != nil {
			return nil, err
		}

		prompt := taskPrompt(task, interpolate, c.contextFor(task, i, results))
		slog.Info("crew task started", "task", task.Name, "agent", task.Agent)

		raw, err := member.Run(ctx, fmt.Sprintf("crew:%s:%s", runID, task.Name), prompt, nil)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.Name, err)
		}

		if task.OutputFile != "" {
			if err := c.writeOutput(interpolate.Replace(task.OutputFile), raw); err != nil {
				return nil, fmt.Errorf("task %s: %w", task.Name, err)
			}
		}

		results[task.Name] = raw
		out.Tasks = append(out.Tasks, TaskOutput{Name: task.Name, Agent: task.Agent, Raw: raw})
		out.Raw = raw
	}
	return out, nil
}

// contextFor collects the outputs a task works from, in task order.
func (c *Crew) contextFor(task TaskSpec, index int, results map[string]string) []string {
	var names []string
	if task.Context == nil {
		for _, prev := range c.def.Tasks[:index] {
			names = append(names, prev.Name)
		}
	} else {
		names = task.Context
	}

	var parts []string
	for _, n := range names {
		if r, ok := results[n]; ok {
			parts = append(parts, r)
		}
	}
	return parts
}

func (c *Crew) writeOutput(name, content string) error {
	path := filepath.Join(c.outputDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func replacer(inputs map[string]string) *strings.Replacer {
	pairs := make([]string, 0, len(inputs)*2)
	for k, v := range inputs {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...)
}

func systemPrompt(spec AgentSpec, r *strings.Replacer) string {
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s",
		strings.TrimSpace(r.Replace(spec.Role)),
		strings.TrimSpace(r.Replace(spec.Backstory)),
		strings.TrimSpace(r.Replace(spec.Goal)))
}

func taskPrompt(task TaskSpec, r *strings.Replacer, prior []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Replace(task.Description)))
	b.WriteString("\n\nThis is the expected criteria for your final answer: ")
	b.WriteString(strings.TrimSpace(r.Replace(task.ExpectedOutput)))
	b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")
	if len(prior) > 0 {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(strings.Join(prior, "\n\n----------\n\n"))
	}
	return b.String()
}

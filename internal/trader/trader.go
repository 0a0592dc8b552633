// Package trader runs autonomous trading sessions: a trader agent that
// manages an account through the accounts MCP server, helped by a
// researcher agent exposed to it as a tool.
package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"
	"agentdesk/internal/history"
	"agentdesk/internal/llm"
	"agentdesk/internal/mcpclient"
	"agentdesk/internal/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	// MaxTurns bounds the model calls of one trading session.
	MaxTurns = 30

	DefaultLastname = "Trader"
	DefaultModel    = "gpt-4o-mini"

	// AccountsServer is the name of the trader MCP server that publishes the
	// account resources.
	AccountsServer = config.AccountsServerName

	researcherName = "Researcher"
	timeLayout     = "2006-01-02 15:04:05"
)

// Server is a started MCP server.
type Server interface {
	Name() string
	Tools(ctx context.Context) ([]agent.Tool, error)
	ReadResource(ctx context.Context, uri string) (string, error)
	Close() error
}

// Launcher starts the given MCP servers, closing any it started when one of
// them fails.
type Launcher func(ctx context.Context, cfgs []config.MCPServerConfig) ([]Server, error)

// Deps are the collaborators shared by every trader.
type Deps struct {
	Providers         func(model string) llm.Provider
	Launch            Launcher
	TraderServers     []config.MCPServerConfig
	ResearcherServers []config.MCPServerConfig
	// ResearcherTools and TraderTools are built-in tools added next to the
	// MCP tools of each agent.
	ResearcherTools []agent.Tool
	TraderTools     []agent.Tool
	History         *history.Store
	Now             func() time.Time
}

// MCPLauncher starts real stdio servers. env is passed to every subprocess.
func MCPLauncher(env ...string) Launcher {
	return func(ctx context.Context, cfgs []config.MCPServerConfig) ([]Server, error) {
		started, err := mcpclient.StartAll(ctx, cfgs, env...)
		if err != nil {
			return nil, err
		}
		servers := make([]Server, len(started))
		for i, s := range started {
			servers[i] = s
		}
		return servers, nil
	}
}

type Trader struct {
	Name     string
	Lastname string
	Model    string

	mu      sync.Mutex
	doTrade bool
	deps    Deps
}

func New(name string, deps Deps) *Trader {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Trader{
		Name:     name,
		Lastname: DefaultLastname,
		Model:    DefaultModel,
		doTrade:  true,
		deps:     deps,
	}
}

// Mode is "trading" when the next session looks for new opportunities and
// "rebalancing" when it reviews the existing portfolio.
func (t *Trader) Mode() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doTrade {
		return "trading"
	}
	return "rebalancing"
}

// RunWithTrace runs one session inside a trace named after the trader and
// the current mode, so the span log processor records it under the
// trader's account.
func (t *Trader) RunWithTrace(ctx context.Context) error {
	traceID := trace.MakeTraceID(strings.ToLower(t.Name))
	ctx, span := trace.Tracer().Start(ctx, fmt.Sprintf("%s-%s", t.Name, t.Mode()),
		oteltrace.WithNewRoot(),
		oteltrace.WithAttributes(
			attribute.String(trace.AttrTraceID, traceID),
			attribute.String(trace.AttrSpanType, "trace"),
		),
	)
	defer span.End()

	slog.Info("trader session started", "trader", t.Name, "trace_id", traceID)
	if err := t.RunWithMCPServers(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// RunWithMCPServers starts the trader servers, then the researcher servers,
// runs one session and closes everything in reverse order.
func (t *Trader) RunWithMCPServers(ctx context.Context) error {
	traderServers, err := t.deps.Launch(ctx, t.deps.TraderServers)
	if err != nil {
		return fmt.Errorf("starting trader mcp servers: %w", err)
	}
	defer closeAll(traderServers)

	researcherServers, err := t.deps.Launch(ctx, t.deps.ResearcherServers)
	if err != nil {
		return fmt.Errorf("starting researcher mcp servers: %w", err)
	}
	defer closeAll(researcherServers)

	return t.session(ctx, traderServers, researcherServers)
}

func (t *Trader) session(ctx context.Context, traderServers, researcherServers []Server) error {
	trader, err := t.agent(ctx, traderServers, researcherServers)
	if err != nil {
		return err
	}

	account, strategy, err := t.snapshot(ctx, traderServers)
	if err != nil {
		return err
	}

	t.mu.Lock()
	doTrade := t.doTrade
	t.mu.Unlock()

	tmpl := "rebalance.tmpl"
	if doTrade {
		tmpl = "trade.tmpl"
	}
	message, err := render(tmpl, promptData{
		Name:     t.Name,
		Strategy: strategy,
		Account:  account,
		Datetime: t.deps.Now().Format(timeLayout),
		Push:     t.hasPush(),
	})
	if err != nil {
		return fmt.Errorf("rendering %s: %w", tmpl, err)
	}

	sessionID := fmt.Sprintf("trader:%s:%s", strings.ToLower(t.Name), uuid.NewString())
	if _, err := trader.Run(ctx, sessionID, message, logEvents(t.Name)); err != nil {
		return fmt.Errorf("%s session: %w", t.Name, err)
	}

	t.mu.Lock()
	t.doTrade = !t.doTrade
	t.mu.Unlock()
	return nil
}

func (t *Trader) agent(ctx context.Context, traderServers, researcherServers []Server) (*agent.Agent, error) {
	provider := t.deps.Providers(t.Model)
	now := t.deps.Now().Format(timeLayout)

	researcherTools, err := collectTools(ctx, researcherServers, t.deps.ResearcherTools)
	if err != nil {
		return nil, err
	}
	researcherPrompt, err := render("researcher.tmpl", promptData{Datetime: now})
	if err != nil {
		return nil, err
	}
	toolDescription, err := render("research_tool.tmpl", promptData{})
	if err != nil {
		return nil, err
	}

	var opts []agent.Option
	if t.deps.History != nil {
		opts = append(opts, agent.WithHistory(t.deps.History))
	}

	researcher := agent.New(researcherName, provider, researcherTools,
		append([]agent.Option{agent.WithInstructions(researcherPrompt), agent.WithMaxTurns(MaxTurns)}, opts...)...)

	traderTools, err := collectTools(ctx, traderServers,
		append([]agent.Tool{agent.AsTool(researcher, researcherName, toolDescription)}, t.deps.TraderTools...))
	if err != nil {
		return nil, err
	}
	traderPrompt, err := render("trader.tmpl", promptData{Name: t.Name, Push: t.hasPush()})
	if err != nil {
		return nil, err
	}

	return agent.New(t.Name, provider, traderTools,
		append([]agent.Option{agent.WithInstructions(traderPrompt), agent.WithMaxTurns(MaxTurns)}, opts...)...), nil
}

// snapshot returns the account report without its value history, and the
// current strategy.
func (t *Trader) snapshot(ctx context.Context, servers []Server) (string, string, error) {
	var accounts Server
	for _, s := range servers {
		if s.Name() == AccountsServer {
			accounts = s
			break
		}
	}
	if accounts == nil {
		return "", "", errors.New("no accounts mcp server configured")
	}

	res := mcpclient.AccountResources{Server: accounts}
	report, err := res.Report(ctx, t.Name)
	if err != nil {
		return "", "", fmt.Errorf("reading account of %s: %w", t.Name, err)
	}
	account, err := stripTimeSeries(report)
	if err != nil {
		return "", "", err
	}
	strategy, err := res.Strategy(ctx, t.Name)
	if err != nil {
		return "", "", fmt.Errorf("reading strategy of %s: %w", t.Name, err)
	}
	return account, strategy, nil
}

func (t *Trader) hasPush() bool {
	for _, tool := range t.deps.TraderTools {
		if tool.Name() == "push" {
			return true
		}
	}
	return false
}

func stripTimeSeries(report string) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(report), &doc); err != nil {
		return "", fmt.Errorf("decoding account report: %w", err)
	}
	delete(doc, "portfolio_value_time_series")
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func collectTools(ctx context.Context, servers []Server, builtin []agent.Tool) (*agent.Registry, error) {
	reg := agent.NewRegistry(builtin...)
	for _, s := range servers {
		tools, err := s.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tools of %s: %w", s.Name(), err)
		}
		for _, tool := range tools {
			reg.Register(tool)
		}
	}
	return reg, nil
}

func closeAll(servers []Server) {
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Close(); err != nil {
			slog.Warn("closing mcp server", "name", servers[i].Name(), "error", err)
		}
	}
}

func logEvents(name string) func(agent.Event) {
	return func(e agent.Event) {
		switch e.Type {
		case agent.EventToolCall:
			slog.Info("tool call", "trader", name, "agent", e.Agent, "call", e.Data)
		case agent.EventError:
			slog.Warn("agent error", "trader", name, "agent", e.Agent, "error", e.Data)
		}
	}
}

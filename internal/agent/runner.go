package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agentdesk/internal/history"
	"agentdesk/internal/llm"
	"agentdesk/internal/trace"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultMaxTurns bounds the number of model calls in one run.
const DefaultMaxTurns = 10

// ErrMaxTurnsExceeded is returned when the model keeps calling tools past the
// turn limit.
var ErrMaxTurnsExceeded = errors.New("max turns exceeded")

type Option func(*Agent)

func WithInstructions(s string) Option {
	return func(a *Agent) { a.instructions = s }
}

func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithHistory persists every run and replays the session's earlier turns
// before the new message.
func WithHistory(store *history.Store) Option {
	return func(a *Agent) { a.store = store }
}

// Agent implements a ReAct (Reason + Act) loop: the model keeps calling tools
// until it answers without tool calls, the turn limit is hit, or the context
// is cancelled.
type Agent struct {
	name         string
	provider     llm.Provider
	registry     *Registry
	tools        []responses.ToolUnionParam
	instructions string
	maxTurns     int
	store        *history.Store
}

func New(name string, provider llm.Provider, registry *Registry, opts ...Option) *Agent {
	if registry == nil {
		registry = NewRegistry()
	}
	a := &Agent{
		name:     name,
		provider: provider,
		registry: registry,
		maxTurns: DefaultMaxTurns,
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, t := range registry.All() {
		schema, _ := t.InputSchema().(map[string]any)
		strict := false
		if st, ok := t.(StrictTool); ok {
			strict = st.Strict()
		}
		a.tools = append(a.tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  schema,
				Strict:      openai.Bool(strict),
			},
		})
	}

	return a
}

func (a *Agent) Name() string { return a.name }

func (a *Agent) Run(ctx context.Context, sessionID string, message string, emit func(Event)) (string, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	ctx = withRun(ctx, run{session: sessionID, depth: runFrom(ctx).depth, emit: emit})

	truncatedMsg := message
	if len(truncatedMsg) > 200 {
		truncatedMsg = truncatedMsg[:200]
	}
	ctx, span := trace.Tracer().Start(ctx, a.name,
		oteltrace.WithAttributes(
			attribute.String(trace.AttrSpanType, "agent"),
			attribute.String("openai.agents.agent.name", a.name),
			attribute.String("session.id", sessionID),
			attribute.String("user.message", truncatedMsg),
		),
	)
	defer span.End()

	sc := span.SpanContext()
	slog.Debug("agent run span started", "agent", a.name, "trace_id", sc.TraceID(), "span_id", sc.SpanID())

	var input []responses.ResponseInputItemUnionParam
	if a.store != nil {
		if err := a.store.Begin(ctx, sessionID, a.name); err != nil {
			slog.Warn("failed to ensure session", "session_id", sessionID, "error", err)
		}
		prior, err := a.store.Replay(ctx, sessionID)
		if err != nil {
			slog.Warn("failed to load history", "session_id", sessionID, "error", err)
		}
		input = prior
	}

	if a.instructions != "" {
		input = append(input, responses.ResponseInputItemParamOfMessage(a.instructions, "developer"))
	}
	input = append(input, responses.ResponseInputItemParamOfMessage(message, "user"))

	resp, err := a.loop(ctx, input, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(Event{Type: EventError, Agent: a.name, Data: err.Error()})
		return "", err
	}

	if a.store != nil {
		if err := a.store.Record(ctx, sessionID, message, resp); err != nil {
			slog.Warn("failed to save turn", "session_id", sessionID, "error", err)
		}
	}

	text := llm.OutputText(resp)
	emit(Event{Type: EventDone, Agent: a.name, Data: text})
	return text, nil
}

// loop is the core ReAct cycle. Each iteration is a single LLM call where the
// model reasons about the current state and picks actions in one step. When a
// tool fails, the error goes back into context and the model sees it on the
// next iteration.
func (a *Agent) loop(ctx context.Context, input []responses.ResponseInputItemUnionParam, emit func(Event)) (*responses.Response, error) {
	for turn := 0; turn < a.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		llmCtx, llmSpan := trace.Tracer().Start(ctx, "llm.response",
			oteltrace.WithAttributes(
				attribute.String(trace.AttrSpanType, "generation"),
				attribute.Int("llm.iteration", turn),
			),
		)

		resp, err := a.provider.ChatStream(llmCtx, input, a.tools, func(token string) {
			emit(Event{Type: EventToken, Agent: a.name, Data: token})
		})
		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			return nil, err
		}

		llmSpan.SetAttributes(
			attribute.String("llm.model", string(resp.Model)),
			attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
		)
		llmSpan.End()

		// Feed the model's output (including its reasoning) back into context.
		input = append(input, history.ToInput(resp.Output)...)

		var calls []responses.ResponseOutputItemUnion
		for _, item := range resp.Output {
			if item.Type == "function_call" {
				calls = append(calls, item)
			}
		}

		// No tool calls: the agent considers the task done.
		if len(calls) == 0 {
			return resp, nil
		}

		input = append(input, a.act(ctx, calls, emit)...)
	}

	return nil, fmt.Errorf("%s: %w (%d)", a.name, ErrMaxTurnsExceeded, a.maxTurns)
}

// act executes tool calls in parallel, emitting events for each, and returns
// the results formatted as input items for the next LLM turn.
func (a *Agent) act(ctx context.Context, calls []responses.ResponseOutputItemUnion, emit func(Event)) []responses.ResponseInputItemUnionParam {
	for _, call := range calls {
		fc := call.AsFunctionCall()
		emit(Event{Type: EventToolCall, Agent: a.name, Data: map[string]string{
			"name":      fc.Name,
			"arguments": fc.Arguments,
		}})
	}

	var wg sync.WaitGroup
	results := make([]responses.ResponseInputItemUnionParam, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call responses.ResponseOutputItemUnion) {
			defer wg.Done()
			fc := call.AsFunctionCall()

			content := a.execute(ctx, fc.Name, fc.Arguments)
			results[i] = responses.ResponseInputItemParamOfFunctionCallOutput(fc.CallID, content)
			emit(Event{Type: EventToolResult, Agent: a.name, Data: map[string]string{
				"name":    fc.Name,
				"content": content,
			}})
		}(i, call)
	}

	wg.Wait()
	return results
}

func (a *Agent) execute(ctx context.Context, name, arguments string) string {
	tool, ok := a.registry.Get(name)
	if !ok {
		slog.Warn("unknown tool call", "agent", a.name, "name", name)
		return "error: unknown tool"
	}

	result, err := withTrace(a.name, tool).Execute(ctx, arguments)
	if err != nil {
		slog.Warn("tool execution failed", "agent", a.name, "name", name, "error", err)
		return "error: " + err.Error()
	}
	return result
}

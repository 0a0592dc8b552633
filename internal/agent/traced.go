package agent

import (
	"context"
	"log/slog"

	"agentdesk/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Span attributes keep at most this many bytes of tool input and output.
const maxSpanPayload = 1024

// tracedTool wraps every tool call in a "function" span under the calling
// agent's span. The trader log processor turns these spans into account
// log lines.
type tracedTool struct {
	Tool
	agent string
}

func withTrace(agentName string, t Tool) Tool {
	return &tracedTool{Tool: t, agent: agentName}
}

func (t *tracedTool) Execute(ctx context.Context, input string) (string, error) {
	ctx, span := trace.Tracer().Start(ctx, t.Name(),
		oteltrace.WithAttributes(
			attribute.String(trace.AttrSpanType, "function"),
			attribute.String("openai.agents.agent.name", t.agent),
			attribute.String("gen_ai.tool.name", t.Name()),
			attribute.String("gen_ai.tool.input", clip(input)),
		),
	)
	defer span.End()

	result, err := t.Tool.Execute(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Debug("tool failed", "agent", t.agent, "tool", t.Name(), "trace_id", span.SpanContext().TraceID(), "error", err)
		return result, err
	}

	span.SetAttributes(
		attribute.String("gen_ai.tool.output", clip(result)),
		attribute.Int("gen_ai.tool.output_length", len(result)),
	)
	return result, nil
}

func clip(s string) string {
	if len(s) <= maxSpanPayload {
		return s
	}
	return s[:maxSpanPayload]
}

package trace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// LogWriter persists one activity log line for a named account.
type LogWriter interface {
	WriteLog(ctx context.Context, name, typ, message string) error
}

// LogProcessor mirrors the spans of named runs into an activity log. A run is
// named by the AttrTraceID attribute on its root span; every span of the same
// trace is logged under that name. Spans of unnamed traces are ignored.
type LogProcessor struct {
	w     LogWriter
	mu    sync.Mutex
	names map[trace.TraceID]string
}

var _ sdktrace.SpanProcessor = (*LogProcessor)(nil)

func NewLogProcessor(w LogWriter) *LogProcessor {
	return &LogProcessor{w: w, names: make(map[trace.TraceID]string)}
}

func (p *LogProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	tid := s.SpanContext().TraceID()

	p.mu.Lock()
	name, ok := p.names[tid]
	if !ok {
		if id, found := attr(s.Attributes(), AttrTraceID); found {
			name, ok = NameFromTraceID(id)
			if ok {
				p.names[tid] = name
			}
		}
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	p.write(name, spanType(s), "Started "+s.Name())
}

func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	tid := s.SpanContext().TraceID()

	p.mu.Lock()
	name, ok := p.names[tid]
	if ok && !s.Parent().IsValid() {
		delete(p.names, tid)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	msg := "Ended " + s.Name()
	if st := s.Status(); st.Code == codes.Error {
		msg = fmt.Sprintf("%s error: %s", msg, st.Description)
	}
	p.write(name, spanType(s), msg)
}

func (p *LogProcessor) Shutdown(context.Context) error   { return nil }
func (p *LogProcessor) ForceFlush(context.Context) error { return nil }

func (p *LogProcessor) write(name, typ, msg string) {
	if err := p.w.WriteLog(context.Background(), name, typ, msg); err != nil {
		slog.Warn("trace log write failed", "name", name, "error", err)
	}
}

func spanType(s sdktrace.ReadOnlySpan) string {
	if v, ok := attr(s.Attributes(), AttrSpanType); ok {
		return v
	}
	if !s.Parent().IsValid() {
		return "trace"
	}
	return "span"
}

func attr(kvs []attribute.KeyValue, key string) (string, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

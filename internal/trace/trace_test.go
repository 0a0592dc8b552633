package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestMakeTraceID(t *testing.T) {
	id := MakeTraceID("tom")
	assert.True(t, strings.HasPrefix(id, "trace_tom0"))
	assert.Len(t, strings.TrimPrefix(id, "trace_"), 32)

	name, ok := NameFromTraceID(id)
	require.True(t, ok)
	assert.Equal(t, "tom", name)

	assert.NotEqual(t, id, MakeTraceID("tom"))
}

func TestRandomAlnum_SkipsBiasedBytes(t *testing.T) {
	// 252..255 would wrap onto "abcd" with a plain modulo.
	src := bytes.NewReader([]byte{252, 253, 254, 255, 0, 35, 251, 36})
	out, err := randomAlnum(src, 3)
	require.NoError(t, err)
	assert.Equal(t, "a99", out)

	_, err = randomAlnum(bytes.NewReader([]byte{255, 255}), 2)
	assert.Error(t, err)
}

func TestNameFromTraceID_Invalid(t *testing.T) {
	for _, id := range []string{"", "tom0abc", "trace_", "trace_0abc", "trace_tom"} {
		_, ok := NameFromTraceID(id)
		assert.False(t, ok, id)
	}
}

type logLine struct {
	name, typ, msg string
}

type memLog struct {
	mu    sync.Mutex
	lines []logLine
}

func (m *memLog) WriteLog(_ context.Context, name, typ, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, logLine{name, typ, msg})
	return nil
}

func TestLogProcessor(t *testing.T) {
	log := &memLog{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewLogProcessor(log)))
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("test")

	ctx, root := tracer.Start(context.Background(), "Tom-trading",
		oteltrace.WithAttributes(attribute.String(AttrTraceID, MakeTraceID("tom"))))
	_, child := tracer.Start(ctx, "buy_shares",
		oteltrace.WithAttributes(attribute.String(AttrSpanType, "function")))
	child.SetStatus(codes.Error, "insufficient funds")
	child.End()
	root.End()

	// Unnamed traces are not logged.
	_, other := tracer.Start(context.Background(), "debate")
	other.End()

	assert.Equal(t, []logLine{
		{"tom", "trace", "Started Tom-trading"},
		{"tom", "function", "Started buy_shares"},
		{"tom", "function", "Ended buy_shares error: insufficient funds"},
		{"tom", "trace", "Ended Tom-trading"},
	}, log.lines)
}

type failingLog struct{}

func (failingLog) WriteLog(context.Context, string, string, string) error {
	return errors.New("disk full")
}

func TestLogProcessor_WriteFailureIsIgnored(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewLogProcessor(failingLog{})))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "Tom-trading",
		oteltrace.WithAttributes(attribute.String(AttrTraceID, MakeTraceID("tom"))))
	assert.NotPanics(t, func() { span.End() })
}

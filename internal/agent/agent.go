package agent

import "context"

type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is a progress notification from a run. Data is the token text, a
// map with the tool name and arguments or content, or the final answer.
type Event struct {
	Type  EventType `json:"type"`
	Agent string    `json:"agent,omitempty"`
	Data  any       `json:"data"`
}

// Runner runs one message to completion and returns the final assistant
// text.
type Runner interface {
	Run(ctx context.Context, sessionID string, message string, emit func(Event)) (string, error)
}

// run is the state of the agent run that is executing a tool. Nested runs
// started by an AgentTool get their own, one level deeper.
type run struct {
	session string
	depth   int
	emit    func(Event)
}

type runKey struct{}

func withRun(ctx context.Context, r run) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

func runFrom(ctx context.Context) run {
	r, _ := ctx.Value(runKey{}).(run)
	return r
}

// SessionFromContext returns the session of the run a tool is called from,
// or "" outside of a run.
func SessionFromContext(ctx context.Context) string {
	return runFrom(ctx).session
}

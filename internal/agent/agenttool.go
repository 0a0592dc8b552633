package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

const maxDelegationDepth = 3

// AgentTool exposes a Runner as a function tool. The calling agent passes a
// single "input" string and receives the sub-agent's final answer.
type AgentTool struct {
	runner      Runner
	name        string
	description string
}

func AsTool(runner Runner, name, description string) *AgentTool {
	return &AgentTool{runner: runner, name: name, description: description}
}

func (t *AgentTool) Name() string        { return t.name }
func (t *AgentTool) Description() string { return t.description }
func (t *AgentTool) Strict() bool        { return true }

func (t *AgentTool) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "The request for the " + t.name,
			},
		},
		"required":             []string{"input"},
		"additionalProperties": false,
	}
}

func (t *AgentTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing %s input: %w", t.name, err)
	}

	parent := runFrom(ctx)
	if parent.depth >= maxDelegationDepth {
		return "", fmt.Errorf("maximum delegation depth (%d) exceeded", maxDelegationDepth)
	}

	// Tool calls of the sub-agent are forwarded so callers can show progress;
	// its tokens are not, since only the final answer is returned.
	forward := func(e Event) {
		if parent.emit == nil {
			return
		}
		if e.Type == EventToolCall || e.Type == EventToolResult {
			parent.emit(e)
		}
	}

	subCtx := withRun(ctx, run{depth: parent.depth + 1})
	subSession := parent.session + ":" + t.name
	out, err := t.runner.Run(subCtx, subSession, args.Input, forward)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", t.name, err)
	}
	if out == "" {
		return "(no output)", nil
	}
	return out, nil
}

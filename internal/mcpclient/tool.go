package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"

	"agentdesk/internal/agent"
)

// remoteTool is an agent tool backed by an MCP server tool. MCP schemas do
// not follow the strict function-calling rules, so it never claims Strict.
type remoteTool struct {
	server      *Server
	name        string
	remoteName  string
	description string
	schema      map[string]any
}

func (t *remoteTool) Name() string        { return t.name }
func (t *remoteTool) Description() string { return t.description }
func (t *remoteTool) InputSchema() any    { return t.schema }

func (t *remoteTool) Execute(ctx context.Context, input string) (string, error) {
	args := map[string]any{}
	if input != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return "", fmt.Errorf("parsing %s input: %w", t.name, err)
		}
	}
	return t.server.CallTool(ctx, t.remoteName, args)
}

// ToolAs exposes the server tool remoteName under a different name and
// description. The schema is taken from the server's tool listing.
func (s *Server) ToolAs(ctx context.Context, remoteName, name, description string) (agent.Tool, error) {
	tools, err := s.Tools(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		rt := t.(*remoteTool)
		if rt.remoteName == remoteName {
			return &remoteTool{
				server:      s,
				name:        name,
				remoteName:  remoteName,
				description: description,
				schema:      rt.schema,
			}, nil
		}
	}
	return nil, fmt.Errorf("%s has no tool %s", s.name, remoteName)
}

// Package mcpclient starts stdio MCP servers as subprocesses and adapts their
// tools and resources for agents.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultTimeout bounds server start-up and every request.
const DefaultTimeout = 20 * time.Second

const clientVersion = "0.1.0"

// Server is a running MCP server subprocess.
type Server struct {
	name    string
	client  *client.Client
	timeout time.Duration
}

// Start launches the server described by cfg and performs the MCP
// handshake. env is appended to the subprocess environment after cfg.Env.
func Start(ctx context.Context, cfg config.MCPServerConfig, env ...string) (*Server, error) {
	command := cfg.Command
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating agentdesk executable: %w", err)
		}
		command = exe
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	name := cfg.Name
	if name == "" {
		name = command
	}

	var fullEnv []string
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fullEnv = append(fullEnv, k+"="+cfg.Env[k])
	}
	fullEnv = append(fullEnv, env...)

	c, err := client.NewStdioMCPClient(command, fullEnv, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("starting mcp server %s: %w", name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "agentdesk", Version: clientVersion}
	if _, err := c.Initialize(initCtx, req); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing mcp server %s: %w", name, err)
	}

	slog.Debug("mcp server started", "name", name, "command", command, "args", cfg.Args)
	return &Server{name: name, client: c, timeout: timeout}, nil
}

func (s *Server) Name() string { return s.name }

// Tools lists the server's tools as agent tools.
func (s *Server) Tools(ctx context.Context) ([]agent.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools of %s: %w", s.name, err)
	}

	tools := make([]agent.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, &remoteTool{
			server:      s,
			name:        t.Name,
			remoteName:  t.Name,
			description: t.Description,
			schema:      inputSchema(t),
		})
	}
	return tools, nil
}

// CallTool invokes a tool and returns its text output. A result flagged as
// an error is returned as a Go error carrying the text.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("calling %s on %s: %w", name, s.name, err)
	}

	text := contentText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// ReadResource returns the concatenated text contents of uri.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri

	res, err := s.client.ReadResource(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", uri, err)
	}

	var b strings.Builder
	for _, c := range res.Contents {
		switch v := c.(type) {
		case mcp.TextResourceContents:
			b.WriteString(v.Text)
		case *mcp.TextResourceContents:
			b.WriteString(v.Text)
		}
	}
	return b.String(), nil
}

func (s *Server) Close() error {
	slog.Debug("mcp server closing", "name", s.name)
	return s.client.Close()
}

// StartAll starts every configured server in order. On failure the servers
// already started are closed.
func StartAll(ctx context.Context, cfgs []config.MCPServerConfig, env ...string) ([]*Server, error) {
	var servers []*Server
	for _, cfg := range cfgs {
		s, err := Start(ctx, cfg, env...)
		if err != nil {
			CloseAll(servers)
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, nil
}

// CloseAll closes servers in reverse start order.
func CloseAll(servers []*Server) {
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Close(); err != nil {
			slog.Warn("closing mcp server", "name", servers[i].name, "error", err)
		}
	}
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func inputSchema(t mcp.Tool) map[string]any {
	raw := []byte(t.RawInputSchema)
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return map[string]any{"type": "object"}
		}
		raw = b
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return map[string]any{"type": "object"}
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema
}

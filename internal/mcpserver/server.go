// Package mcpserver exposes the account book and the market data source as
// MCP servers speaking JSON-RPC over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const version = "0.1.0"

// Serve runs s over the given stdio streams until ctx is cancelled or in is
// closed. Nothing but protocol frames may be written to out.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(log.New(slogWriter{}, "", 0))
	slog.Debug("mcp server listening on stdio")
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// slogWriter routes the transport's error logger to slog on stderr.
type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	slog.Error("mcp transport", "message", string(p))
	return len(p), nil
}

// bind decodes the call arguments into dst.
func bind(req mcp.CallToolRequest, dst any) error {
	b, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

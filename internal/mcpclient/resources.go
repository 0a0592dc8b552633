package mcpclient

import (
	"context"
	"strings"
)

// ResourceReader reads MCP resources by URI.
type ResourceReader interface {
	ReadResource(ctx context.Context, uri string) (string, error)
}

// AccountResources reads the resources published by the accounts server.
type AccountResources struct {
	Server ResourceReader
}

// Report returns the JSON account report of name.
func (r AccountResources) Report(ctx context.Context, name string) (string, error) {
	return r.Server.ReadResource(ctx, "accounts://accounts_server/"+strings.ToLower(name))
}

// Strategy returns the investment strategy of name.
func (r AccountResources) Strategy(ctx context.Context, name string) (string, error) {
	return r.Server.ReadResource(ctx, "accounts://strategy/"+strings.ToLower(name))
}

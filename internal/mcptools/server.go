// Package mcptools exposes conflict resolution over the Model Context
// Protocol so coding agents can drive it as a tool.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/remerge-dev/remerge/internal/config"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the resolve_conflicts and
// scan_conflicts tools registered.
func NewServer(cfg *config.Config) *mcp.Server {
	svc := NewResolveService(cfg)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "remerge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_conflicts",
		Description: "List files with unresolved merge conflict markers in a git repository, with the number of conflict hunks in each.",
	}, svc.ScanConflicts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_conflicts",
		Description: "Query the configured model endpoints for every conflict hunk in the given files (default: all conflicted files) and rewrite the files with attributed candidate resolutions.",
	}, svc.ResolveConflicts)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// ABOUTME: Tool and pack types for in-process tools served by the gateway.
// ABOUTME: A tool pairs an MCP tool definition with the handler that answers calls to it.

package packs

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolHandler executes a tool. It receives the raw "arguments" member of a
// tools/call request, which may be empty.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error)

// Tool is a single catalog entry.
type Tool struct {
	Definition mcp.Tool
	Handler    ToolHandler
	PackID     string
}

// Name returns the tool's catalog name.
func (t *Tool) Name() string {
	return t.Definition.Name
}

// Pack is a named group of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}

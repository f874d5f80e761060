// ABOUTME: Thread-safe registry of tool packs backing the tools/list and tools/call methods.
// ABOUTME: Handles pack registration, collision detection, ordered listing, and invocation.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrPackAlreadyRegistered indicates a pack with the same ID is already registered.
var ErrPackAlreadyRegistered = errors.New("pack already registered")

// ErrToolCollision indicates a tool name already exists in another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound indicates the requested tool is not in the catalog.
var ErrToolNotFound = errors.New("tool not found")

// ErrInvalidTool indicates a tool without a name or handler.
var ErrInvalidTool = errors.New("invalid tool")

// Registry holds the tool catalog.
type Registry struct {
	mu     sync.RWMutex
	packs  map[string]*Pack
	tools  map[string]*Tool
	order  []string // tool names in registration order
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		packs:  make(map[string]*Pack),
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// RegisterPack validates and stores a pack and its tools. The pack is added
// atomically: on any error the registry is unchanged.
func (r *Registry) RegisterPack(pack *Pack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[pack.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPackAlreadyRegistered, pack.ID)
	}

	seen := make(map[string]struct{}, len(pack.Tools))
	for _, tool := range pack.Tools {
		if tool == nil || tool.Name() == "" || tool.Handler == nil {
			return fmt.Errorf("%w in pack '%s'", ErrInvalidTool, pack.ID)
		}
		name := tool.Name()
		if existing, exists := r.tools[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'",
				ErrToolCollision, name, existing.PackID)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: tool '%s' declared twice in pack '%s'",
				ErrToolCollision, name, pack.ID)
		}
		seen[name] = struct{}{}
	}

	for _, tool := range pack.Tools {
		tool.PackID = pack.ID
		r.tools[tool.Name()] = tool
		r.order = append(r.order, tool.Name())
	}
	r.packs[pack.ID] = pack

	r.logger.Info("pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.tools),
	)
	return nil
}

// Tools returns every tool definition in registration order.
func (r *Registry) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Call invokes the named tool. Returns ErrToolNotFound for unknown names.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.Handler(ctx, args)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// PackIDs returns registered pack IDs in no particular order.
func (r *Registry) PackIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.packs))
	for id := range r.packs {
		ids = append(ids, id)
	}
	return ids
}

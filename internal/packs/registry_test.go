// ABOUTME: Tests for the pack registry including registration, collision detection, and invocation.
// ABOUTME: Validates ordered listing and thread-safe lookups.

package packs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	return &Tool{
		Definition: mcp.NewTool(name, mcp.WithDescription("echoes "+name)),
		Handler: func(_ context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(name + ":" + string(args))},
			}, nil
		},
	}
}

func TestRegistry_RegisterPack(t *testing.T) {
	t.Run("registers tools in order", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{echoTool("one"), echoTool("two")}}))
		require.NoError(t, r.RegisterPack(&Pack{ID: "b", Tools: []*Tool{echoTool("three")}}))

		var names []string
		for _, def := range r.Tools() {
			names = append(names, def.Name)
		}
		assert.Equal(t, []string{"one", "two", "three"}, names)
		assert.Equal(t, 3, r.Count())
		assert.ElementsMatch(t, []string{"a", "b"}, r.PackIDs())

		tool, ok := r.Lookup("three")
		require.True(t, ok)
		assert.Equal(t, "b", tool.PackID)
	})

	t.Run("rejects duplicate pack id", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{echoTool("one")}}))
		err := r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{echoTool("other")}})
		assert.ErrorIs(t, err, ErrPackAlreadyRegistered)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("rejects collision across packs atomically", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{echoTool("one")}}))
		err := r.RegisterPack(&Pack{ID: "b", Tools: []*Tool{echoTool("fresh"), echoTool("one")}})
		assert.ErrorIs(t, err, ErrToolCollision)

		_, ok := r.Lookup("fresh")
		assert.False(t, ok, "no tool from a rejected pack may be registered")
	})

	t.Run("rejects duplicate within pack", func(t *testing.T) {
		r := NewRegistry(nil)
		err := r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{echoTool("one"), echoTool("one")}})
		assert.ErrorIs(t, err, ErrToolCollision)
		assert.Zero(t, r.Count())
	})

	t.Run("rejects tool without handler", func(t *testing.T) {
		r := NewRegistry(nil)
		err := r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{{Definition: mcp.NewTool("bare")}}})
		assert.ErrorIs(t, err, ErrInvalidTool)
	})
}

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.RegisterPack(&Pack{ID: "a", Tools: []*Tool{echoTool("one")}}))

	result, err := r.Call(t.Context(), "one", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, `one:{"x":1}`, text.Text)

	_, err = r.Call(t.Context(), "missing", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RegisterPack(&Pack{ID: fmt.Sprintf("p%d", i), Tools: []*Tool{echoTool(fmt.Sprintf("t%d", i))}})
			_ = r.Tools()
			_, _ = r.Lookup("t0")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Count())
}

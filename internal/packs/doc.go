// Package packs provides the tool catalog served by tools/list and tools/call.
//
// # Overview
//
// Tools are grouped into packs. Each pack is registered once at startup and
// its tools become visible in registration order, which keeps tools/list
// deterministic across calls and restarts.
//
// # Collisions
//
// Tool names are global. RegisterPack rejects a pack whose ID is already
// registered or whose tools reuse a name from another pack, and nothing from
// the rejected pack is added.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	for _, p := range builtins.WorkspacePacks(authorizeURL) {
//		if err := registry.RegisterPack(p); err != nil {
//			return err
//		}
//	}
//	result, err := registry.Call(ctx, "gmail_search", args)
package packs

// Package gateway orchestrates the workspace-gateway server components.
//
// # Overview
//
// The Gateway owns every long-lived component and mounts them on a single
// chi router:
//
//   - the tool catalog (packs.Registry loaded with the Workspace packs)
//   - the MCP dispatcher and request-style handler
//   - the fan-out bridge and the streaming session manager
//   - the OAuth client registry, token issuer and replay guard
//   - a private Prometheus registry
//
// # HTTP Surface
//
//   - GET / - service info JSON, or the landing page for browsers
//   - GET /health, GET /health/ready - liveness and readiness
//   - GET /.well-known/anthropic-connector-manifest, GET /connect, GET /configure
//   - POST /mcp, POST /message - JSON-RPC requests answered inline
//   - GET /mcp, GET /sse - server-sent event streams of every response
//   - OAuth endpoints from package oauth
//   - GET /metrics when enabled
//
// Every request passes through request ids, debug request logging, panic
// recovery, CORS and optional bearer-token identification.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run listens on server.http_addr, or joins the tailnet when tailscale is
// enabled (plain HTTP, HTTPS with tailnet certificates, or Funnel).
// Shutdown stops the HTTP server and then closes the bridge, which ends all
// open streams gracefully.
package gateway

// Package config handles configuration loading for workspace-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from WORKSPACE_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/workspace-gateway/gateway.yaml
//  3. ~/.config/workspace-gateway/gateway.yaml
//
// When no file exists the built-in defaults are used. Files ending in .toml
// are decoded as TOML with the same keys.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${WORKSPACE_GATEWAY_JWT_SECRET}"
//
// WORKSPACE_GATEWAY_URL overrides server.base_url.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	streaming:
//	  keepalive_interval: "3s"
//	  max_duration: "8s"
//
// # Configuration Sections
//
// Server:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  base_url: "https://workspace.example.com"  # derived from http_addr when empty
//	  max_body_bytes: 1048576
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${WORKSPACE_GATEWAY_JWT_SECRET}"  # random per process when empty
//	  token_ttl: "1h"
//	  code_ttl: "5m"
//	  client_id_prefix: "mcp_"
//	  default_redirect_uris: ["https://claude.ai/api/mcp/auth_callback"]
//	  default_scope: "email calendar drive docs"
//	  max_clients: 10000
//	  register_rate: 1       # registrations per second
//	  register_burst: 10
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "workspace-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Validate reports the first violation: a missing listener address, a
// tailscale block without a hostname, non-positive durations, or a
// max_duration that does not exceed keepalive_interval.
package config

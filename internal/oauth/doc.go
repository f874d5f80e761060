// Package oauth serves the gateway's OAuth 2.0 surface.
//
// Endpoints (each also available under /oauth2):
//
//   - POST /register - Dynamic Client Registration (RFC 7591)
//   - GET /authorize - validates the client and returns the redirect to follow
//   - POST /token - issues bearer tokens for registered clients
//   - POST /introspect - token introspection (RFC 7662)
//
// Discovery:
//
//   - GET /.well-known/oauth-authorization-server (RFC 8414)
//   - GET /.well-known/oauth-protected-resource (RFC 9728)
//
// Failures are written as {"error": ..., "error_description": ...} with the
// standard OAuth error codes.
package oauth

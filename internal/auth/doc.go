// Package auth manages OAuth clients and the tokens the gateway issues to them.
//
// # Client registration
//
// ClientRegistry implements Dynamic Client Registration. Each client gets a
// prefixed, random identifier and a 256-bit secret that is returned exactly
// once; only a bcrypt hash is kept. Registrations live in memory for the life
// of the process.
//
// # Tokens
//
// Issuer signs three kinds of HS256 JWTs, distinguished by a "use" claim:
//
//   - access: bearer tokens returned from the token endpoint
//   - refresh: long-lived tokens for clients that registered refresh_token
//   - code: authorization codes, redeemable once per ReplayGuard
//
// Every token names its client in both "sub" and "aud".
//
// # HTTP
//
// OptionalAuthMiddleware identifies callers that present a valid access
// token. Callers without one are served anonymously.
package auth

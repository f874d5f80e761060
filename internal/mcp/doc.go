// Package mcp answers Model Context Protocol requests for the gateway.
//
// # Overview
//
// The Dispatcher maps JSON-RPC methods to handlers and always produces an
// envelope: either a result or an error object from the closed code set in
// package jsonrpc. It holds no per-client state, so any number of requests
// may run concurrently.
//
// # Methods
//
//   - initialize - handshake; echoes a supported protocolVersion
//   - notifications/initialized - accepted silently
//   - ping - empty result
//   - tools/list - the tool catalog in registration order
//   - tools/call - runs a catalog tool; unknown tools yield a text result
//
// # Request-style transport
//
// Handler serves POST /mcp. Each request body carries one envelope and the
// response is written on the same HTTP exchange:
//
//	POST /mcp
//	{"jsonrpc":"2.0","id":1,"method":"tools/list"}
//
// Every response is also handed to a Publisher (the bridge) so streaming
// subscribers observe it. Notifications receive 202 Accepted and are not
// published.
package mcp

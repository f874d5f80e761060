// Package stream serves long-lived, server-to-client event streams.
//
// Each connection is a Session owned by the Manager. A session subscribes to
// the bridge, relays every envelope it receives as an "event: message"
// frame, and writes an "event: keepalive" frame whenever a bounded wait ends
// without traffic. Sessions end in one of three states:
//
//   - closed_graceful: the client went away or the bridge shut down
//   - closed_timeout: the hard deadline passed; a final keep-alive is sent first
//   - closed_error: a write failed; the session is not retried
//
// No greeting is sent when a stream opens; the first frame is either a
// relayed envelope or a keep-alive.
package stream

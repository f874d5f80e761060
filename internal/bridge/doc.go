// Package bridge connects the request-style transport to streaming sessions.
//
// The request handler publishes a copy of each response; every streaming
// session holds its own subscription and receives the envelopes published
// while it is subscribed. Delivery is at most once: a subscriber that falls
// behind its buffer misses envelopes rather than slowing publishers, and
// nothing published before a subscription began is replayed.
package bridge

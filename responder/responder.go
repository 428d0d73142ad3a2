// Package responder abstracts the outbound transport a connection.Manager
// hands finished protocol messages to. It says nothing about wire encoding
// or delivery guarantees — those are a concrete Responder's problem, not
// the connection state machine's.
package responder

import "context"

// Responder delivers an already-built protocol message to a connection.
type Responder interface {
	// Send delivers message as a new outbound message addressed to
	// connectionID, outside of any particular inbound exchange.
	Send(ctx context.Context, connectionID string, message any) error

	// SendReply delivers message as a reply threaded off the message
	// currently being handled. Implementations that have no notion of an
	// inbound/outbound pairing (a bare HTTP client, say) can alias this to
	// Send; transports that reuse an open duplex channel (WebSocket,
	// return-route HTTP) use this to avoid opening a fresh connection.
	SendReply(ctx context.Context, connectionID string, message any) error
}

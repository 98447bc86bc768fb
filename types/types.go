package types

import (
	"context"
	"errors"
	"fmt"
)

// Message is the constraint satisfied by any payload carried over a channel
// between two boxes. Payloads must be safe to hand over to another goroutine;
// they are rendered with %v for diagnostics.
type Message any

// Sender is the type-erased capability to deliver messages to some box.
//
// A Sender value may be copied freely; every copy delivers into the same
// logical destination. Implementations must be safe for concurrent use.
type Sender[M Message] interface {
	// Send delivers the message, blocking while the destination queue is
	// full. It fails with ErrChannelClosed when the receiving box is gone,
	// or with the context error when ctx ends first.
	Send(ctx context.Context, message M) error
}

// ErrChannelClosed is reported by a Sender whose receiving box has been
// closed.
var ErrChannelClosed = errors.New("channel closed: receiver is gone")

// NoConfig is the placeholder config for boxes that accept any peer
// without filtering.
type NoConfig struct{}

// NoMessage marks the input or output side of a box that never receives or
// never emits.
type NoMessage struct{}

func (NoMessage) String() string {
	return "<no message>"
}

// ClientID identifies one connected consumer of a server box.
//
// IDs are assigned in connection order, starting at zero, and stay stable
// for the life of the connection.
type ClientID int

// ClientMessage tags a request or response with the client it belongs to.
type ClientMessage[M Message] struct {
	Client  ClientID
	Message M
}

func (m ClientMessage[M]) String() string {
	return fmt.Sprintf("[%d] %v", m.Client, m.Message)
}

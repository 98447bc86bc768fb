package actors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loomkit/loom/types"
)

// chanSender delivers into a box's bounded input channel. closed is the
// owning receiver's done channel; once it closes, every send fails.
type chanSender[M types.Message] struct {
	ch     chan<- M
	closed <-chan struct{}
}

func (s chanSender[M]) Send(ctx context.Context, message M) error {
	// A closed receiver must win over a ready buffer slot, or the message
	// lands in a queue nobody drains.
	select {
	case <-s.closed:
		return types.ErrChannelClosed
	default:
	}

	select {
	case <-s.closed:
		return types.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- message:
		return nil
	}
}

// NullSender silently discards everything sent to it. It is the default
// output route of a single-peer box, so a partially wired graph can run
// without failing on send.
type NullSender[M types.Message] struct{}

func (NullSender[M]) Send(context.Context, M) error {
	return nil
}

// NewMappingSender wraps inner so that each N sent is expanded by mapper
// into zero or more M, forwarded in mapper order.
func NewMappingSender[N, M types.Message](inner types.Sender[M], mapper func(N) []M) types.Sender[N] {
	return mappingSender[N, M]{inner: inner, mapper: mapper}
}

type mappingSender[N, M types.Message] struct {
	inner  types.Sender[M]
	mapper func(N) []M
}

func (s mappingSender[N, M]) Send(ctx context.Context, message N) error {
	for _, m := range s.mapper(message) {
		if err := s.inner.Send(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// NewKeyedSender wraps inner so that every message is tagged with the given
// client id before being enqueued.
func NewKeyedSender[M types.Message](id types.ClientID, inner types.Sender[types.ClientMessage[M]]) types.Sender[M] {
	return keyedSender[M]{id: id, inner: inner}
}

type keyedSender[M types.Message] struct {
	id    types.ClientID
	inner types.Sender[types.ClientMessage[M]]
}

func (s keyedSender[M]) Send(ctx context.Context, message M) error {
	return s.inner.Send(ctx, types.ClientMessage[M]{Client: s.id, Message: message})
}

// newFanOutSender collapses a client registry into one sender that routes a
// tagged message exclusively to the entry registered for its client id,
// never broadcasting.
func newFanOutSender[M types.Message](clients []types.Sender[M]) types.Sender[types.ClientMessage[M]] {
	return fanOutSender[M]{clients: clients}
}

type fanOutSender[M types.Message] struct {
	clients []types.Sender[M]
}

func (s fanOutSender[M]) Send(ctx context.Context, message types.ClientMessage[M]) error {
	i := int(message.Client)
	if i < 0 || i >= len(s.clients) {
		return fmt.Errorf("no client %d registered (%d connected)", i, len(s.clients))
	}
	return s.clients[i].Send(ctx, message.Message)
}

// NewLoggingSender decorates inner with debug logging of every outgoing
// message, correlated by the box name.
func NewLoggingSender[M types.Message](name string, inner types.Sender[M]) types.Sender[M] {
	return loggingSender[M]{log: L(name), inner: inner}
}

type loggingSender[M types.Message] struct {
	log   *slog.Logger
	inner types.Sender[M]
}

func (s loggingSender[M]) Send(ctx context.Context, message M) error {
	if err := s.inner.Send(ctx, message); err != nil {
		s.log.Debug("send failed", "message", message, "err", err)
		return err
	}
	s.log.Debug("send", "message", message)
	return nil
}

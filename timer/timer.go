// Package timer provides a service actor that answers SetTimeout requests
// with Timeout responses once the requested delay has elapsed. Responses
// fire in deadline order, not request order.
package timer

import (
	"context"
	"errors"
	"time"

	"github.com/loomkit/loom/actors"
	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/types"
)

const serviceName = "timer"

// SetTimeout asks the timer to deliver Event back after Duration.
type SetTimeout[T types.Message] struct {
	Duration time.Duration
	Event    T
}

// Timeout carries the event of an elapsed SetTimeout back to the consumer.
type Timeout[T types.Message] struct {
	Event T
}

// Builder wires a timer actor like any service-box builder: ServiceProvider
// and signal calls are forwarded to the inner box builder.
type Builder[T types.Message] struct {
	box *actors.SimpleMessageBoxBuilder[SetTimeout[T], Timeout[T]]
}

func NewBuilder[T types.Message]() *Builder[T] {
	return &Builder[T]{
		box: actors.NewSimpleMessageBoxBuilder[SetTimeout[T], Timeout[T]](serviceName, config.DefaultCapacity),
	}
}

// ConnectConsumer implements actors.ServiceProvider. The timer serves one
// logical consumer; a second connection replaces the first.
func (b *Builder[T]) ConnectConsumer(c types.NoConfig, responseSender types.Sender[Timeout[T]]) types.Sender[SetTimeout[T]] {
	return b.box.ConnectConsumer(c, responseSender)
}

// SignalSender implements actors.RuntimeRequestSink.
func (b *Builder[T]) SignalSender() types.Sender[types.RuntimeRequest] {
	return b.box.SignalSender()
}

// TryBuild implements actors.Builder. Construction cannot fail.
func (b *Builder[T]) TryBuild() (*Actor[T], error) {
	return b.Build(), nil
}

func (b *Builder[T]) Build() *Actor[T] {
	return &Actor[T]{box: b.box.Build()}
}

// Run builds the actor and drives it to completion.
func (b *Builder[T]) Run(ctx context.Context) error {
	return b.Build().Run(ctx)
}

type pendingTimeout[T types.Message] struct {
	deadline time.Time
	event    T
}

// Actor is the built timer actor.
type Actor[T types.Message] struct {
	box     *actors.SimpleMessageBox[SetTimeout[T], Timeout[T]]
	pending []pendingTimeout[T]
}

// Run accepts SetTimeout requests and emits each Timeout once its deadline
// passes, earliest deadline first. Requests with equal deadlines fire in
// arrival order.
func (a *Actor[T]) Run(ctx context.Context) error {
	for {
		req, err := a.recvUntilNextDeadline(ctx)
		switch {
		case err == nil:
			a.push(pendingTimeout[T]{
				deadline: time.Now().Add(req.Duration),
				event:    req.Event,
			})
		case errors.Is(err, errDeadlineReached):
			next := a.pending[0]
			a.pending = a.pending[1:]
			if err := a.box.Send(ctx, Timeout[T]{Event: next.event}); err != nil {
				return &types.RuntimeError{Actor: serviceName, Err: err}
			}
		case errors.Is(err, types.ErrStopRequested), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return &types.RuntimeError{Actor: serviceName, Err: err}
		}
	}
}

var errDeadlineReached = errors.New("next timeout deadline reached")

// recvUntilNextDeadline waits for the next request, but only until the
// earliest pending deadline; reaching it is reported as errDeadlineReached.
func (a *Actor[T]) recvUntilNextDeadline(ctx context.Context) (SetTimeout[T], error) {
	if len(a.pending) == 0 {
		return a.box.Recv(ctx)
	}

	waitCtx, cancel := context.WithDeadline(ctx, a.pending[0].deadline)
	defer cancel()

	req, err := a.box.Recv(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return req, errDeadlineReached
	}
	return req, err
}

// push inserts in deadline order, after any equal deadline already pending.
func (a *Actor[T]) push(p pendingTimeout[T]) {
	i := len(a.pending)
	for i > 0 && a.pending[i-1].deadline.After(p.deadline) {
		i--
	}
	a.pending = append(a.pending, pendingTimeout[T]{})
	copy(a.pending[i+1:], a.pending[i:])
	a.pending[i] = p
}

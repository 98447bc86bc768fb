package actors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/types"
)

// Server is a business-logic component serving requests of one type with
// responses of another. It is composed with a server message box by a
// ServerActorBuilder or ConcurrentServerActorBuilder into a runnable actor.
type Server[Req, Res types.Message] interface {
	// Name identifies the server in diagnostics.
	Name() string

	// Handle processes one request. Called once per accepted request.
	Handle(ctx context.Context, request Req) Res
}

// ConcurrentServer is a Server that also supports overlapping invocations:
// Fork returns a handle that may be invoked concurrently with the receiver
// and with other forks. Only ConcurrentServers can be run under the
// concurrent strategy.
type ConcurrentServer[Req, Res types.Message] interface {
	Server[Req, Res]

	Fork() Server[Req, Res]
}

// ServerActor drives a Server sequentially: one request is handled to
// completion before the next is read.
type ServerActor[Req, Res types.Message] struct {
	server  Server[Req, Res]
	box     *ServerMessageBox[Req, Res]
	running RunCheck
}

func NewServerActor[Req, Res types.Message](server Server[Req, Res], box *ServerMessageBox[Req, Res]) *ServerActor[Req, Res] {
	return &ServerActor[Req, Res]{
		server:  server,
		box:     box,
		running: MakeRunCheck(),
	}
}

// Run reads tagged requests off the shared queue and emits each response
// under the same client id. It returns nil on a stop request or context
// end, and a *types.RuntimeError when the loop cannot continue.
func (a *ServerActor[Req, Res]) Run(ctx context.Context) (err error) {
	log := L(a.server.Name())

	defer func() {
		if v := recover(); v != nil {
			log.Error("panicked", "panic", v)
			err = &types.RuntimeError{Actor: a.server.Name(), Err: fmt.Errorf("panic: %v", v)}
		}
	}()

	if !a.running.CheckOrMark() {
		log.Warn("tried to run actor, while already running")
		return nil
	}
	defer a.box.Close()

	for {
		req, err := a.box.Recv(ctx)
		if err != nil {
			return stopReason(a.server.Name(), err)
		}
		res := a.server.Handle(ctx, req.Message)
		if err := a.box.Send(ctx, types.ClientMessage[Res]{Client: req.Client, Message: res}); err != nil {
			return &types.RuntimeError{Actor: a.server.Name(), Err: err}
		}
	}
}

// ConcurrentServerActor drives a ConcurrentServer with up to the box's
// MaxConcurrency requests in flight at once. Responses may complete in any
// order; routing depends only on the client id each request carried in.
type ConcurrentServerActor[Req, Res types.Message] struct {
	server  ConcurrentServer[Req, Res]
	box     *ConcurrentServerMessageBox[Req, Res]
	running RunCheck
}

func NewConcurrentServerActor[Req, Res types.Message](server ConcurrentServer[Req, Res], box *ConcurrentServerMessageBox[Req, Res]) *ConcurrentServerActor[Req, Res] {
	return &ConcurrentServerActor[Req, Res]{
		server:  server,
		box:     box,
		running: MakeRunCheck(),
	}
}

// Run accepts a request only once an in-flight slot is free, then hands it
// to a fork of the server on its own goroutine. It waits for in-flight
// requests to finish before returning.
func (a *ConcurrentServerActor[Req, Res]) Run(ctx context.Context) (err error) {
	log := L(a.server.Name())

	defer func() {
		if v := recover(); v != nil {
			log.Error("panicked", "panic", v)
			err = &types.RuntimeError{Actor: a.server.Name(), Err: fmt.Errorf("panic: %v", v)}
		}
	}()

	if !a.running.CheckOrMark() {
		log.Warn("tried to run actor, while already running")
		return nil
	}

	var inflight sync.WaitGroup
	// Responses are emitted by in-flight goroutines; the box must outlive
	// them. Deferred calls run in reverse order.
	defer a.box.Close()
	defer inflight.Wait()

	for {
		if err := a.box.AcquireSlot(ctx); err != nil {
			return stopReason(a.server.Name(), err)
		}
		req, err := a.box.Recv(ctx)
		if err != nil {
			a.box.ReleaseSlot()
			return stopReason(a.server.Name(), err)
		}

		server := a.server.Fork()
		inflight.Add(1)
		go func(req types.ClientMessage[Req]) {
			defer inflight.Done()
			defer a.box.ReleaseSlot()
			defer func() {
				if v := recover(); v != nil {
					log.Error("handler panicked", "client", req.Client, "panic", v)
				}
			}()

			res := server.Handle(ctx, req.Message)
			if err := a.box.Send(ctx, types.ClientMessage[Res]{Client: req.Client, Message: res}); err != nil && !types.IsContextDone(ctx) {
				log.Warn("dropping response", "client", req.Client, "err", err)
			}
		}(req)
	}
}

// stopReason separates orderly termination from loop failure.
func stopReason(name string, err error) error {
	if errors.Is(err, types.ErrStopRequested) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return &types.RuntimeError{Actor: name, Err: err}
}

// ServerActorBuilder assembles a Server with its message box under the
// sequential strategy. Until built, it can be wired exactly like the box
// builder it wraps: ServiceProvider and signal wiring are forwarded.
type ServerActorBuilder[Req, Res types.Message] struct {
	server     Server[Req, Res]
	boxBuilder *ServerMessageBoxBuilder[Req, Res]
}

func NewServerActorBuilder[Req, Res types.Message](server Server[Req, Res], cfg config.ServerConfig) *ServerActorBuilder[Req, Res] {
	boxBuilder := NewServerMessageBoxBuilder[Req, Res](server.Name(), cfg.Capacity).
		WithMaxConcurrency(cfg.MaxConcurrency)

	return &ServerActorBuilder[Req, Res]{
		server:     server,
		boxBuilder: boxBuilder,
	}
}

// ConnectConsumer implements ServiceProvider by forwarding to the inner box
// builder.
func (b *ServerActorBuilder[Req, Res]) ConnectConsumer(c types.NoConfig, responseSender types.Sender[Res]) types.Sender[Req] {
	return b.boxBuilder.ConnectConsumer(c, responseSender)
}

// SignalSender implements RuntimeRequestSink by forwarding to the inner box
// builder.
func (b *ServerActorBuilder[Req, Res]) SignalSender() types.Sender[types.RuntimeRequest] {
	return b.boxBuilder.SignalSender()
}

// TryBuild implements Builder. Construction cannot fail.
func (b *ServerActorBuilder[Req, Res]) TryBuild() (*ServerActor[Req, Res], error) {
	return b.Build(), nil
}

func (b *ServerActorBuilder[Req, Res]) Build() *ServerActor[Req, Res] {
	return NewServerActor(b.server, b.boxBuilder.Build())
}

// Run builds the actor and drives it to completion.
func (b *ServerActorBuilder[Req, Res]) Run(ctx context.Context) error {
	return b.Build().Run(ctx)
}

// ConcurrentServerActorBuilder assembles a ConcurrentServer with its message
// box under the bounded-concurrency strategy. The strategy is picked by
// constructing this builder type instead of ServerActorBuilder, so a server
// that cannot be forked is rejected at compile time.
type ConcurrentServerActorBuilder[Req, Res types.Message] struct {
	server     ConcurrentServer[Req, Res]
	boxBuilder *ServerMessageBoxBuilder[Req, Res]
}

func NewConcurrentServerActorBuilder[Req, Res types.Message](server ConcurrentServer[Req, Res], cfg config.ServerConfig) *ConcurrentServerActorBuilder[Req, Res] {
	boxBuilder := NewServerMessageBoxBuilder[Req, Res](server.Name(), cfg.Capacity).
		WithMaxConcurrency(cfg.MaxConcurrency)

	return &ConcurrentServerActorBuilder[Req, Res]{
		server:     server,
		boxBuilder: boxBuilder,
	}
}

// ConnectConsumer implements ServiceProvider by forwarding to the inner box
// builder.
func (b *ConcurrentServerActorBuilder[Req, Res]) ConnectConsumer(c types.NoConfig, responseSender types.Sender[Res]) types.Sender[Req] {
	return b.boxBuilder.ConnectConsumer(c, responseSender)
}

// SignalSender implements RuntimeRequestSink by forwarding to the inner box
// builder.
func (b *ConcurrentServerActorBuilder[Req, Res]) SignalSender() types.Sender[types.RuntimeRequest] {
	return b.boxBuilder.SignalSender()
}

// TryBuild implements Builder. Construction cannot fail.
func (b *ConcurrentServerActorBuilder[Req, Res]) TryBuild() (*ConcurrentServerActor[Req, Res], error) {
	return b.Build(), nil
}

func (b *ConcurrentServerActorBuilder[Req, Res]) Build() *ConcurrentServerActor[Req, Res] {
	return NewConcurrentServerActor(b.server, b.boxBuilder.BuildConcurrent())
}

// Run builds the actor and drives it to completion.
func (b *ConcurrentServerActorBuilder[Req, Res]) Run(ctx context.Context) error {
	return b.Build().Run(ctx)
}

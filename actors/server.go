package actors

import (
	"context"

	"github.com/loomkit/loom/types"
)

// ServerMessageBox is the built box of a request/response service: a shared
// fan-in queue of tagged requests, and a fan-out route that delivers each
// tagged response only to the client it names.
type ServerMessageBox[Req, Res types.Message] struct {
	*SimpleMessageBox[types.ClientMessage[Req], types.ClientMessage[Res]]
}

// ConcurrentServerMessageBox wraps a ServerMessageBox so that at most
// MaxConcurrency requests are dispatched and awaiting a response at once.
type ConcurrentServerMessageBox[Req, Res types.Message] struct {
	*ServerMessageBox[Req, Res]
	slots chan struct{}
}

// MaxConcurrency is the bound on simultaneously in-flight requests,
// always at least 1.
func (b *ConcurrentServerMessageBox[Req, Res]) MaxConcurrency() int {
	return cap(b.slots)
}

// AcquireSlot blocks until one of the in-flight slots frees, the context
// ends, or the box is closed.
func (b *ConcurrentServerMessageBox[Req, Res]) AcquireSlot(ctx context.Context) error {
	// A closed box must win over a free slot.
	select {
	case <-b.receiver.Done():
		return types.ErrStopRequested
	default:
	}

	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.receiver.Done():
		return types.ErrStopRequested
	}
}

// ReleaseSlot frees one in-flight slot.
func (b *ConcurrentServerMessageBox[Req, Res]) ReleaseSlot() {
	<-b.slots
}

// ServerMessageBoxBuilder builds the message box of a request/response
// service serving any number of clients.
//
// Each ConnectConsumer call appends the consumer's response sender to an
// ordered registry and assigns it the next ClientID, so ids are exactly
// 0..n-1 in connection order. Entries are never removed: a client's slot is
// not reclaimed when it goes away.
type ServerMessageBoxBuilder[Req, Res types.Message] struct {
	serviceName    string
	maxConcurrency int
	requests       chan types.ClientMessage[Req]
	signals        chan types.RuntimeRequest
	receiver       *LoggingReceiver[types.ClientMessage[Req]]
	clients        []types.Sender[Res]
	built          bool
}

func NewServerMessageBoxBuilder[Req, Res types.Message](serviceName string, capacity int) *ServerMessageBoxBuilder[Req, Res] {
	requests := make(chan types.ClientMessage[Req], capacity)
	signals := make(chan types.RuntimeRequest, SignalChanLen)

	return &ServerMessageBoxBuilder[Req, Res]{
		serviceName:    serviceName,
		maxConcurrency: 1,
		requests:       requests,
		signals:        signals,
		receiver:       newLoggingReceiver[types.ClientMessage[Req]](serviceName, requests, signals),
	}
}

// WithMaxConcurrency sets the in-flight bound used by the concurrent build,
// clamped to at least 1.
func (b *ServerMessageBoxBuilder[Req, Res]) WithMaxConcurrency(n int) *ServerMessageBoxBuilder[Req, Res] {
	b.maxConcurrency = max(1, n)
	return b
}

// SignalSender implements RuntimeRequestSink.
func (b *ServerMessageBoxBuilder[Req, Res]) SignalSender() types.Sender[types.RuntimeRequest] {
	b.checkNotBuilt("SignalSender")
	return chanSender[types.RuntimeRequest]{ch: b.signals, closed: b.receiver.Done()}
}

// ConnectConsumer implements ServiceProvider: it registers the consumer's
// response sender under the next ClientID and returns a sender that tags
// every request with that id before enqueuing it on the shared queue.
func (b *ServerMessageBoxBuilder[Req, Res]) ConnectConsumer(_ types.NoConfig, responseSender types.Sender[Res]) types.Sender[Req] {
	b.checkNotBuilt("ConnectConsumer")
	id := types.ClientID(len(b.clients))
	b.clients = append(b.clients, responseSender)
	return NewKeyedSender(id, chanSender[types.ClientMessage[Req]]{ch: b.requests, closed: b.receiver.Done()})
}

// TryBuild implements Builder for the sequential form. Construction cannot
// fail.
func (b *ServerMessageBoxBuilder[Req, Res]) TryBuild() (*ServerMessageBox[Req, Res], error) {
	return b.Build(), nil
}

// Build consumes the builder into a box for a single-threaded request
// handler. The handler must preserve the ClientID of each request when
// emitting the matching response.
func (b *ServerMessageBoxBuilder[Req, Res]) Build() *ServerMessageBox[Req, Res] {
	b.consume()
	return b.buildService()
}

// TryBuildConcurrent is the bounded-concurrency form of TryBuild.
func (b *ServerMessageBoxBuilder[Req, Res]) TryBuildConcurrent() (*ConcurrentServerMessageBox[Req, Res], error) {
	return b.BuildConcurrent(), nil
}

// BuildConcurrent consumes the builder into a box that admits up to
// maxConcurrency in-flight requests.
func (b *ServerMessageBoxBuilder[Req, Res]) BuildConcurrent() *ConcurrentServerMessageBox[Req, Res] {
	b.consume()
	return &ConcurrentServerMessageBox[Req, Res]{
		ServerMessageBox: b.buildService(),
		slots:            make(chan struct{}, b.maxConcurrency),
	}
}

func (b *ServerMessageBoxBuilder[Req, Res]) buildService() *ServerMessageBox[Req, Res] {
	return &ServerMessageBox[Req, Res]{
		SimpleMessageBox: &SimpleMessageBox[types.ClientMessage[Req], types.ClientMessage[Res]]{
			receiver: b.receiver,
			sender:   NewLoggingSender(b.serviceName, newFanOutSender(b.clients)),
		},
	}
}

func (b *ServerMessageBoxBuilder[Req, Res]) checkNotBuilt(op string) {
	if b.built {
		panic("message box " + b.serviceName + ": " + op + " called after build")
	}
}

func (b *ServerMessageBoxBuilder[Req, Res]) consume() {
	b.checkNotBuilt("Build")
	b.built = true
}

// Package actors is the wiring layer of the actor runtime.
//
// A processing graph is assembled before anything runs: each actor exposes a
// message box builder, peers connect to it through the capability interfaces
// below, and once fully wired every builder is consumed into an immutable
// runnable box. Actors then communicate only over the channels established
// during wiring, with no knowledge of each other's concrete types.
//
// The connection points are:
//
//   - [Builder]: consume a fully wired builder into its product.
//   - [MessageSink]: the box under construction can receive messages.
//   - [MessageSource]: the box under construction emits messages.
//   - [ServiceProvider] / [ServiceConsumer]: the bidirectional pair for
//     request/response services.
//   - [RuntimeRequestSink]: the box accepts control signals from the runtime.
//
// Go methods cannot introduce type parameters, so the protocol's derived
// operations (AddInput, AddSink, AddPeer, ...) are package-level functions
// over these interfaces rather than default methods.
package actors

import (
	"fmt"

	"github.com/loomkit/loom/types"
)

// Builder of T.
//
// Builders are linear: wiring calls and TryBuild must happen on one
// goroutine, and a builder must be consumed at most once. Implementations
// panic loudly on use after build.
type Builder[T any] interface {
	// TryBuild consumes the builder and returns the built entity or an
	// error when the wired components are incompatible.
	TryBuild() (T, error)
}

// Build consumes the builder and panics if construction fails. Use only
// where failure is logically impossible or crashing is acceptable.
func Build[T any](b Builder[T]) T {
	v, err := b.TryBuild()
	if err != nil {
		panic(fmt.Sprintf("build failed: %s", err))
	}
	return v
}

// MessageSink is implemented by box builders for every message type they can
// receive from peers.
type MessageSink[M types.Message, C any] interface {
	// Config returns the value this sink wants a source to use when
	// deciding how to route messages to it.
	Config() C

	// Sender returns the capability peers use to deliver M to this box's
	// input queue.
	Sender() types.Sender[M]
}

// MessageSource is implemented by box builders for every message type they
// emit to peers.
type MessageSource[M types.Message, C any] interface {
	// RegisterPeer records an additional destination for this source's
	// messages. How config is interpreted is up to the concrete source.
	RegisterPeer(config C, sender types.Sender[M])
}

// RuntimeRequestSink is implemented by box builders so the runtime can wire
// its control-signal channel.
type RuntimeRequestSink interface {
	// SignalSender returns the sender used to deliver runtime requests to
	// this box.
	SignalSender() types.Sender[types.RuntimeRequest]
}

// ServiceProvider is implemented by the builder of a request/response
// service box.
type ServiceProvider[Req, Res types.Message, C any] interface {
	// ConnectConsumer registers one additional consumer, identified by its
	// config and the sender its responses must reach, and returns the
	// exclusive sender that consumer uses to submit requests. Safe to call
	// once per consumer.
	ConnectConsumer(config C, responseSender types.Sender[Res]) types.Sender[Req]
}

// ServiceConsumer is implemented by the builder of a box that consumes a
// request/response service.
type ServiceConsumer[Req, Res types.Message, C any] interface {
	// Config returns the value used to connect the service provider.
	Config() C

	// SetRequestSender stores the sender this box will use to submit its
	// requests.
	SetRequestSender(requestSender types.Sender[Req])

	// ResponseSender returns the sender the service must use for the
	// responses destined to this box.
	ResponseSender() types.Sender[Res]
}

// AddInput wires source into sink: the sink registers itself, with its own
// config and sender, as a destination of the source.
func AddInput[M types.Message, C any](sink MessageSink[M, C], source MessageSource[M, C]) {
	source.RegisterPeer(sink.Config(), sink.Sender())
}

// AddMappedInput wires source into sink across message types: every N the
// source emits is expanded by mapper into zero or more M delivered to the
// sink, in mapper order, preserving the source's emission order across
// expansions.
func AddMappedInput[N, M types.Message, C any](sink MessageSink[M, C], source MessageSource[N, C], mapper func(N) []M) {
	source.RegisterPeer(sink.Config(), NewMappingSender(sink.Sender(), mapper))
}

// AddSink is the push-style mirror of AddInput: the source asks the sink for
// its config and sender and registers them.
func AddSink[M types.Message, C any](source MessageSource[M, C], sink MessageSink[M, C]) {
	source.RegisterPeer(sink.Config(), sink.Sender())
}

// AddPeer links a service provider and a service consumer. This is the only
// way the two become connected: the provider receives the consumer's config
// and response sender, and the consumer receives back its request sender.
func AddPeer[Req, Res types.Message, C any](provider ServiceProvider[Req, Res, C], consumer ServiceConsumer[Req, Res, C]) {
	config := consumer.Config()
	responseSender := consumer.ResponseSender()
	requestSender := provider.ConnectConsumer(config, responseSender)
	consumer.SetRequestSender(requestSender)
}

// SetConnection connects consumer to service in place.
func SetConnection[Req, Res types.Message, C any](consumer ServiceConsumer[Req, Res, C], service ServiceProvider[Req, Res, C]) {
	AddPeer(service, consumer)
}

// WithConnection connects consumer to service and hands the consumer back,
// for chaining.
func WithConnection[Req, Res types.Message, C any, S ServiceConsumer[Req, Res, C]](consumer S, service ServiceProvider[Req, Res, C]) S {
	AddPeer(service, consumer)
	return consumer
}

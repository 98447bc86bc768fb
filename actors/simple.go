package actors

import (
	"context"
	"fmt"

	"github.com/loomkit/loom/types"
)

// SimpleMessageBox is the built box of an actor with one input queue and a
// single output route.
type SimpleMessageBox[I, O types.Message] struct {
	receiver *LoggingReceiver[I]
	sender   types.Sender[O]
}

// Recv returns the next input message; see LoggingReceiver.Recv.
func (b *SimpleMessageBox[I, O]) Recv(ctx context.Context) (I, error) {
	return b.receiver.Recv(ctx)
}

// Send emits a message on the box's output route.
func (b *SimpleMessageBox[I, O]) Send(ctx context.Context, message O) error {
	return b.sender.Send(ctx, message)
}

// Close tears the box down; peers still holding senders to it get
// types.ErrChannelClosed.
func (b *SimpleMessageBox[I, O]) Close() {
	b.receiver.Close()
}

// SimpleMessageBoxBuilder builds a SimpleMessageBox.
//
// The box under construction holds one bounded input queue, one runtime
// request queue, and one output route. The output route defaults to a
// NullSender and is single slot: registering a new route replaces the
// previous one.
type SimpleMessageBoxBuilder[I, O types.Message] struct {
	name     string
	input    chan I
	signals  chan types.RuntimeRequest
	output   types.Sender[O]
	receiver *LoggingReceiver[I]
	built    bool
}

func NewSimpleMessageBoxBuilder[I, O types.Message](name string, capacity int) *SimpleMessageBoxBuilder[I, O] {
	input := make(chan I, capacity)
	signals := make(chan types.RuntimeRequest, SignalChanLen)

	return &SimpleMessageBoxBuilder[I, O]{
		name:     name,
		input:    input,
		signals:  signals,
		output:   NullSender[O]{},
		receiver: newLoggingReceiver[I](name, input, signals),
	}
}

// Config implements MessageSink and ServiceConsumer.
func (b *SimpleMessageBoxBuilder[I, O]) Config() types.NoConfig {
	return types.NoConfig{}
}

// Sender implements MessageSink: any number of peers may hold the returned
// sender, all feeding the same bounded input queue.
func (b *SimpleMessageBoxBuilder[I, O]) Sender() types.Sender[I] {
	b.checkNotBuilt("Sender")
	return chanSender[I]{ch: b.input, closed: b.receiver.Done()}
}

// SignalSender implements RuntimeRequestSink.
func (b *SimpleMessageBoxBuilder[I, O]) SignalSender() types.Sender[types.RuntimeRequest] {
	b.checkNotBuilt("SignalSender")
	return chanSender[types.RuntimeRequest]{ch: b.signals, closed: b.receiver.Done()}
}

// RegisterPeer implements MessageSource. The output slot is single: a second
// registration replaces the first, it does not add a destination.
func (b *SimpleMessageBoxBuilder[I, O]) RegisterPeer(_ types.NoConfig, sender types.Sender[O]) {
	b.checkNotBuilt("RegisterPeer")
	b.output = sender
}

// ConnectConsumer implements ServiceProvider for a box that serves exactly
// one logical consumer: the response route is the single output slot, so a
// second consumer replaces the first.
func (b *SimpleMessageBoxBuilder[I, O]) ConnectConsumer(_ types.NoConfig, responseSender types.Sender[O]) types.Sender[I] {
	b.checkNotBuilt("ConnectConsumer")
	b.output = responseSender
	return b.Sender()
}

// SetRequestSender implements ServiceConsumer for the reversed type pair.
func (b *SimpleMessageBoxBuilder[I, O]) SetRequestSender(requestSender types.Sender[O]) {
	b.checkNotBuilt("SetRequestSender")
	b.output = requestSender
}

// ResponseSender implements ServiceConsumer: the service delivers responses
// straight into this box's input queue.
func (b *SimpleMessageBoxBuilder[I, O]) ResponseSender() types.Sender[I] {
	return b.Sender()
}

// TryBuild implements Builder. Construction of a simple box cannot fail.
func (b *SimpleMessageBoxBuilder[I, O]) TryBuild() (*SimpleMessageBox[I, O], error) {
	return b.Build(), nil
}

// Build consumes the builder into the box; the builder must not be used
// afterwards.
func (b *SimpleMessageBoxBuilder[I, O]) Build() *SimpleMessageBox[I, O] {
	b.consume()
	return &SimpleMessageBox[I, O]{
		receiver: b.receiver,
		sender:   NewLoggingSender(b.name, b.output),
	}
}

func (b *SimpleMessageBoxBuilder[I, O]) checkNotBuilt(op string) {
	if b.built {
		panic(fmt.Sprintf("message box %q: %s called after build", b.name, op))
	}
}

func (b *SimpleMessageBoxBuilder[I, O]) consume() {
	b.checkNotBuilt("Build")
	b.built = true
}

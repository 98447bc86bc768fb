package actors

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers every request with a prefixed copy.
type echoServer struct{}

func (echoServer) Name() string { return "echo" }

func (echoServer) Handle(_ context.Context, request string) string {
	return "echo: " + request
}

// panicky blows up on the first request.
type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) Handle(_ context.Context, request string) string {
	panic("cannot handle " + request)
}

// gatedServer blocks every invocation until released, and tracks how many
// invocations are active at once. Forks share all state.
type gatedServer struct {
	release chan struct{}
	active  *atomic.Int32
	peak    *atomic.Int32
}

func newGatedServer() *gatedServer {
	return &gatedServer{
		release: make(chan struct{}),
		active:  &atomic.Int32{},
		peak:    &atomic.Int32{},
	}
}

func (s *gatedServer) Name() string { return "gated" }

func (s *gatedServer) Handle(_ context.Context, request string) string {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-s.release
	return request
}

func (s *gatedServer) Fork() Server[string, string] { return s }

func runActor(t *testing.T, run func(context.Context) error) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	return func() error {
		cancel()
		return <-done
	}
}

func TestServerActorEchoes(t *testing.T) {
	builder := NewServerActorBuilder[string, string](echoServer{}, config.NewServerConfig())
	client := NewSimpleMessageBoxBuilder[string, string]("client", 16)
	AddPeer[string, string, types.NoConfig](builder, client)

	stop := runActor(t, builder.Run)
	clientBox := client.Build()

	ctx := context.Background()
	require.NoError(t, clientBox.Send(ctx, "hello"))
	res, err := clientBox.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res)

	assert.NoError(t, stop(), "cancellation is orderly termination, not a runtime error")
}

func TestServerActorStopsOnShutdownSignal(t *testing.T) {
	builder := NewServerActorBuilder[string, string](echoServer{}, config.NewServerConfig())
	client := NewSimpleMessageBoxBuilder[string, string]("client", 16)
	AddPeer[string, string, types.NoConfig](builder, client)
	signal := builder.SignalSender()

	done := make(chan error, 1)
	go func() { done <- builder.Run(context.Background()) }()

	require.NoError(t, signal.Send(context.Background(), types.Shutdown))
	assert.NoError(t, <-done, "a shutdown request is orderly termination")
}

func TestServerActorKeepsClientIDThroughResponses(t *testing.T) {
	builder := NewServerActorBuilder[string, string](echoServer{}, config.NewServerConfig())
	alice := NewSimpleMessageBoxBuilder[string, string]("alice", 16)
	bob := NewSimpleMessageBoxBuilder[string, string]("bob", 16)
	AddPeer[string, string, types.NoConfig](builder, alice)
	AddPeer[string, string, types.NoConfig](builder, bob)

	stop := runActor(t, builder.Run)
	defer stop() //nolint:errcheck

	aliceBox := alice.Build()
	bobBox := bob.Build()

	ctx := context.Background()
	require.NoError(t, aliceBox.Send(ctx, "from alice"))
	res, err := aliceBox.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo: from alice", res)

	short, cancel := shortTimeout()
	defer cancel()
	_, err = bobBox.Recv(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "bob must not see alice's response")
}

func TestServerActorSurfacesHandlerPanic(t *testing.T) {
	builder := NewServerActorBuilder[string, string](panicky{}, config.NewServerConfig())
	client := NewSimpleMessageBoxBuilder[string, string]("client", 16)
	AddPeer[string, string, types.NoConfig](builder, client)

	done := make(chan error, 1)
	go func() { done <- builder.Run(context.Background()) }()

	require.NoError(t, client.Build().Send(context.Background(), "boom"))

	err := <-done
	var runtimeErr *types.RuntimeError
	require.ErrorAs(t, err, &runtimeErr, "a handler panic must surface as a runtime error, not crash the process")
	assert.Equal(t, "panicky", runtimeErr.Actor)
	assert.Contains(t, runtimeErr.Error(), "panic")
}

func TestServerActorSurfacesDeadResponseRoute(t *testing.T) {
	boxBuilder := NewServerMessageBoxBuilder[string, string]("echo", 16)
	requests := boxBuilder.ConnectConsumer(types.NoConfig{}, closedSender[string]{})
	actor := NewServerActor[string, string](echoServer{}, boxBuilder.Build())

	done := make(chan error, 1)
	go func() { done <- actor.Run(context.Background()) }()

	require.NoError(t, requests.Send(context.Background(), "hello"))

	err := <-done
	var runtimeErr *types.RuntimeError
	require.ErrorAs(t, err, &runtimeErr, "an undeliverable response must stop the loop with a runtime error")
	assert.Equal(t, "echo", runtimeErr.Actor)
	assert.ErrorIs(t, err, types.ErrChannelClosed)
}

func TestConcurrentActorBoundsInFlightRequests(t *testing.T) {
	const bound = 2

	server := newGatedServer()
	builder := NewConcurrentServerActorBuilder[string, string](server,
		config.NewServerConfig().WithMaxConcurrency(bound))
	client := NewSimpleMessageBoxBuilder[string, string]("client", 16)
	AddPeer[string, string, types.NoConfig](builder, client)

	stop := runActor(t, builder.Run)
	clientBox := client.Build()

	ctx := context.Background()
	for i := 0; i < bound+1; i++ {
		require.NoError(t, clientBox.Send(ctx, "r"))
	}

	// Exactly `bound` requests get dispatched; the extra one waits.
	assert.Eventually(t, func() bool { return server.active.Load() == bound },
		assertEventuallyTimeout, assertEventuallyTick,
		"the first %d requests must be dispatched concurrently", bound)
	assert.Equal(t, int32(bound), server.peak.Load(),
		"request %d must not be accepted while %d are in flight", bound+1, bound)

	// Releasing one slot admits the waiting request.
	server.release <- struct{}{}
	assert.Eventually(t, func() bool { return server.active.Load() == bound },
		assertEventuallyTimeout, assertEventuallyTick,
		"the waiting request must be accepted once a slot frees")

	server.release <- struct{}{}
	server.release <- struct{}{}

	for i := 0; i < bound+1; i++ {
		_, err := clientBox.Recv(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(bound), server.peak.Load(),
		"no more than %d invocations may ever overlap", bound)

	assert.NoError(t, stop())
}

func TestConcurrentActorRoutesByClientID(t *testing.T) {
	server := newGatedServer()
	builder := NewConcurrentServerActorBuilder[string, string](server,
		config.NewServerConfig().WithMaxConcurrency(2))
	alice := NewSimpleMessageBoxBuilder[string, string]("alice", 16)
	bob := NewSimpleMessageBoxBuilder[string, string]("bob", 16)
	AddPeer[string, string, types.NoConfig](builder, alice)
	AddPeer[string, string, types.NoConfig](builder, bob)

	stop := runActor(t, builder.Run)
	defer stop() //nolint:errcheck

	aliceBox := alice.Build()
	bobBox := bob.Build()

	ctx := context.Background()
	require.NoError(t, aliceBox.Send(ctx, "a"))
	require.NoError(t, bobBox.Send(ctx, "b"))

	assert.Eventually(t, func() bool { return server.active.Load() == 2 },
		assertEventuallyTimeout, assertEventuallyTick)

	// Complete them out of arrival order; routing depends only on the id.
	server.release <- struct{}{}
	server.release <- struct{}{}

	resA, err := aliceBox.Recv(ctx)
	require.NoError(t, err)
	resB, err := bobBox.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", resA)
	assert.Equal(t, "b", resB)
}

func TestActorRefusesToRunTwice(t *testing.T) {
	builder := NewServerActorBuilder[string, string](echoServer{}, config.NewServerConfig())
	client := NewSimpleMessageBoxBuilder[string, string]("client", 16)
	AddPeer[string, string, types.NoConfig](builder, client)
	actor := builder.Build()

	stopFirst := runActor(t, actor.Run)
	defer stopFirst() //nolint:errcheck

	// Prove the first run loop is live before racing a second one.
	clientBox := client.Build()
	ctx := context.Background()
	require.NoError(t, clientBox.Send(ctx, "ping"))
	_, err := clientBox.Recv(ctx)
	require.NoError(t, err)

	// The second run notices the first and bows out immediately.
	assert.NoError(t, actor.Run(context.Background()))
}

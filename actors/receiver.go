package actors

import (
	"context"
	"log/slog"
	"sync"

	"github.com/loomkit/loom/types"
)

// LoggingReceiver is the receive end of a box: the bounded data queue plus
// the small runtime-request queue, with debug logging of everything taken
// off either.
//
// A pending runtime request is always observed before the next blocking
// wait, so a continuous stream of data messages cannot starve a control
// signal.
type LoggingReceiver[M types.Message] struct {
	log     *slog.Logger
	in      <-chan M
	signals <-chan types.RuntimeRequest

	closeOnce sync.Once
	done      chan struct{}
}

func newLoggingReceiver[M types.Message](name string, in <-chan M, signals <-chan types.RuntimeRequest) *LoggingReceiver[M] {
	return &LoggingReceiver[M]{
		log:     L(name),
		in:      in,
		signals: signals,
		done:    make(chan struct{}),
	}
}

// Done is closed once the receiver shuts down; senders into this box watch
// it to fail instead of blocking forever.
func (r *LoggingReceiver[M]) Done() <-chan struct{} {
	return r.done
}

// Recv returns the next data message. It returns types.ErrStopRequested
// once a Shutdown request arrives, after closing the receiver, or the
// context error when ctx ends first.
func (r *LoggingReceiver[M]) Recv(ctx context.Context) (M, error) {
	var zero M

	select {
	case req := <-r.signals:
		return zero, r.onSignal(req)
	default:
	}

	select {
	case req := <-r.signals:
		return zero, r.onSignal(req)
	case <-ctx.Done():
		return zero, ctx.Err()
	case m := <-r.in:
		r.log.Debug("recv", "message", m)
		return m, nil
	}
}

func (r *LoggingReceiver[M]) onSignal(req types.RuntimeRequest) error {
	r.log.Debug("recv signal", "request", req)
	r.Close()
	return types.ErrStopRequested
}

// Close shuts the receiver down. Messages already queued are dropped;
// subsequent sends fail with types.ErrChannelClosed.
func (r *LoggingReceiver[M]) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

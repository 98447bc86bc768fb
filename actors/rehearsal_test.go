package actors

import (
	"context"
	"sync"
	"time"

	"github.com/loomkit/loom/types"
)

const (
	assertEventuallyTimeout = 2 * time.Second
	assertEventuallyTick    = time.Millisecond
)

// capturingSender records everything sent through it.
type capturingSender[M types.Message] struct {
	mu       sync.Mutex
	messages []M
}

func (s *capturingSender[M]) Send(_ context.Context, message M) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *capturingSender[M]) Messages() []M {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]M(nil), s.messages...)
}

func (s *capturingSender[M]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// closedSender mimics a peer whose box is gone.
type closedSender[M types.Message] struct{}

func (closedSender[M]) Send(context.Context, M) error {
	return types.ErrChannelClosed
}

// shortTimeout gives a context that expires quickly, for asserting that
// nothing arrives.
func shortTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 50*time.Millisecond)
}

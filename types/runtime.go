package types

import (
	"errors"
	"fmt"
)

// RuntimeRequest is a control signal delivered to a running actor over its
// box's signal queue, distinct from the data queue.
type RuntimeRequest int

const (
	// Shutdown asks the actor to stop its receive loop.
	Shutdown RuntimeRequest = iota
)

func (r RuntimeRequest) String() string {
	switch r {
	case Shutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("runtime-request(%d)", int(r))
	}
}

// ErrStopRequested is reported by a receiver once a Shutdown request has
// been observed. Actor run loops treat it as normal termination.
var ErrStopRequested = errors.New("stop requested")

// RuntimeError reports that an actor's run loop cannot continue.
type RuntimeError struct {
	Actor string
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("actor %s: %s", e.Actor, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/loomkit/loom/actors"
)

// CalcRequest asks a calculator to apply an operation to its state.
type CalcRequest struct {
	Op    string // "add" or "mul"
	Value int64
}

// CalcResponse reports the state transition an operation caused.
type CalcResponse struct {
	From int64
	To   int64
}

func (r CalcRequest) String() string  { return fmt.Sprintf("%s %d", r.Op, r.Value) }
func (r CalcResponse) String() string { return fmt.Sprintf("%d -> %d", r.From, r.To) }

// Calculator is a sequential server: plain state, one request at a time.
type Calculator struct {
	name  string
	state int64
}

func NewCalculator(name string) *Calculator {
	return &Calculator{name: name}
}

func (c *Calculator) Name() string {
	return c.name
}

func (c *Calculator) Handle(_ context.Context, request CalcRequest) CalcResponse {
	from := c.state
	c.state = apply(c.state, request)
	return CalcResponse{From: from, To: c.state}
}

// SharedCalculator serves overlapping invocations: state lives behind an
// atomic, and every fork shares it.
type SharedCalculator struct {
	name  string
	state *atomic.Int64
}

func NewSharedCalculator(name string) *SharedCalculator {
	return &SharedCalculator{name: name, state: &atomic.Int64{}}
}

func (c *SharedCalculator) Name() string {
	return c.name
}

func (c *SharedCalculator) Handle(_ context.Context, request CalcRequest) CalcResponse {
	for {
		from := c.state.Load()
		to := apply(from, request)
		if c.state.CompareAndSwap(from, to) {
			return CalcResponse{From: from, To: to}
		}
	}
}

func (c *SharedCalculator) Fork() actors.Server[CalcRequest, CalcResponse] {
	return c
}

func apply(state int64, request CalcRequest) int64 {
	switch request.Op {
	case "add":
		return state + request.Value
	case "mul":
		return state * request.Value
	default:
		return state
	}
}

var (
	_ actors.Server[CalcRequest, CalcResponse]           = (*Calculator)(nil)
	_ actors.ConcurrentServer[CalcRequest, CalcResponse] = (*SharedCalculator)(nil)
)

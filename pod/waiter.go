package pod

import (
	"context"
	"sync"
)

// Waiter is what a correlation id resolves to in the call registry: either
// a one-shot Future or a Streaming callback set (spec.md §3, §9 "ad-hoc
// waiters" design note — the source mixes both in one slot; this is the
// sum type the design notes recommend instead).
type Waiter interface {
	// deliverValue is called for each successfully decoded value reply.
	deliverValue(v any)
	// deliverError is called when a reply carries a pod/codec error.
	deliverError(err error)
	// noteDone is called exactly once, when the processor observes a
	// terminal status for this correlation id.
	noteDone()
}

// Future is a one-shot waiter: it settles once, with either a value or an
// error. Subsequent deliveries are no-ops (spec.md's open question on
// multiple terminal replies recommends log-and-drop; the processor is the
// one that logs, this type just silently ignores the redundant settle).
type Future struct {
	once sync.Once
	ch   chan futureResult
}

type futureResult struct {
	value any
	err   error
}

func newFuture() *Future {
	return &Future{ch: make(chan futureResult, 1)}
}

func (f *Future) deliverValue(v any)    { f.settle(futureResult{value: v}) }
func (f *Future) deliverError(err error) { f.settle(futureResult{err: err}) }
func (f *Future) noteDone()              { f.settle(futureResult{}) }

func (f *Future) settle(r futureResult) {
	f.once.Do(func() {
		f.ch <- r
	})
}

// Wait blocks until the future settles or ctx is done, whichever comes
// first.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case r := <-f.ch:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Streaming is a callback-set waiter: OnSuccess may be invoked many times
// (one per streamed value, in arrival order), OnError at most once, and
// OnDone exactly once when the call completes. Any of the three may be
// nil, in which case that delivery is simply dropped.
type Streaming struct {
	OnSuccess func(v any)
	OnError   func(err error)
	OnDone    func()
}

func (s *Streaming) deliverValue(v any) {
	if s.OnSuccess != nil {
		s.OnSuccess(v)
	}
}

func (s *Streaming) deliverError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

func (s *Streaming) noteDone() {
	if s.OnDone != nil {
		s.OnDone()
	}
}

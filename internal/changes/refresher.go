package changes

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Result is one completed fetch. Seq increases with every fetch started.
type Result[T any] struct {
	Seq   uint64
	Value T
	Err   error
}

// Refresher re-fetches a view when changes arrive. Bursts of events are
// debounced, concurrent refreshes share one fetch, and a result older than
// one already delivered is discarded.
type Refresher[T any] struct {
	fetch    func(ctx context.Context) (T, error)
	onResult func(Result[T])
	debounce time.Duration

	group     singleflight.Group
	seq       atomic.Uint64
	mu        sync.Mutex
	delivered uint64
	wg        sync.WaitGroup
}

// NewRefresher creates a Refresher. onResult is called serially, newest result last.
func NewRefresher[T any](fetch func(ctx context.Context) (T, error), onResult func(Result[T]), debounce time.Duration) *Refresher[T] {
	return &Refresher[T]{
		fetch:    fetch,
		onResult: onResult,
		debounce: debounce,
	}
}

// Refresh fetches now, joining a fetch already in flight
func (r *Refresher[T]) Refresh(ctx context.Context) Result[T] {
	v, _, _ := r.group.Do(refreshKey, func() (any, error) {
		seq := r.seq.Add(1)
		value, err := r.fetch(ctx)
		return Result[T]{Seq: seq, Value: value, Err: err}, nil
	})
	res := v.(Result[T])
	r.deliver(res)
	return res
}

func (r *Refresher[T]) deliver(res Result[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Seq <= r.delivered {
		return
	}
	r.delivered = res.Seq
	if r.onResult != nil {
		r.onResult(res)
	}
}

// Run consumes events until ctx is done or events closes, refreshing once
// per quiet period. It waits for in-flight refreshes before returning.
func (r *Refresher[T]) Run(ctx context.Context, events <-chan Event) {
	defer r.wg.Wait()

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			// A fetch started before this event may miss it
			r.group.Forget(refreshKey)
			timer.Reset(r.debounce)
		case <-timer.C:
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.Refresh(ctx)
			}()
		}
	}
}

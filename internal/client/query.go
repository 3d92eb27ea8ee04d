package client

import (
	"context"
	"sync"
)

// Status is the lifecycle state of a Query.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	return [...]string{"idle", "loading", "success", "error"}[s]
}

// QueryState is a snapshot of a Query.
type QueryState[T any] struct {
	Status Status
	Data   T
	Err    error
}

// Query is one cached read. It moves idle → loading → success | error on
// every fetch. While mounted it re-fetches after its entity is invalidated;
// responses that arrive after a newer fetch started, or after Unmount, are
// dropped.
type Query[T any] struct {
	cache *Cache
	key   Key
	load  func(context.Context) (T, error)

	mu      sync.Mutex
	state   QueryState[T]
	seq     uint64
	mounted bool
	ctx     context.Context
	unsub   func()
}

// NewQuery returns an idle query for key.
func NewQuery[T any](cache *Cache, key Key, load func(context.Context) (T, error)) *Query[T] {
	return &Query[T]{cache: cache, key: key, load: load}
}

// Key returns the cache key of the query.
func (q *Query[T]) Key() Key { return q.key }

// State returns the current snapshot.
func (q *Query[T]) State() QueryState[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Fetch loads the query through the cache and returns the resulting state.
func (q *Query[T]) Fetch(ctx context.Context) QueryState[T] {
	q.mu.Lock()
	q.seq++
	seq := q.seq
	q.state.Status = StatusLoading
	q.mu.Unlock()

	v, err := q.cache.Fetch(ctx, q.key, func(ctx context.Context) (any, error) {
		return q.load(ctx)
	})

	q.mu.Lock()
	defer q.mu.Unlock()
	if seq != q.seq {
		return q.state
	}
	if err != nil {
		q.state = QueryState[T]{Status: StatusError, Data: q.state.Data, Err: err}
		return q.state
	}
	q.state = QueryState[T]{Status: StatusSuccess, Data: v.(T)}
	return q.state
}

// Mount subscribes the query to invalidations of its entity and fetches it.
// Re-fetches triggered by invalidation use ctx without its cancellation.
func (q *Query[T]) Mount(ctx context.Context) QueryState[T] {
	q.mu.Lock()
	if !q.mounted {
		q.mounted = true
		q.ctx = context.WithoutCancel(ctx)
		q.unsub = q.cache.Subscribe(q.key.Entity, q.refetch)
	}
	q.mu.Unlock()
	return q.Fetch(ctx)
}

func (q *Query[T]) refetch() {
	q.mu.Lock()
	mounted, ctx := q.mounted, q.ctx
	q.mu.Unlock()
	if mounted {
		q.Fetch(ctx)
	}
}

// Unmount stops automatic re-fetching and discards responses still in
// flight.
func (q *Query[T]) Unmount() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.mounted {
		return
	}
	q.mounted = false
	q.seq++
	if q.state.Status == StatusLoading {
		q.state.Status = StatusIdle
	}
	unsub := q.unsub
	q.unsub = nil
	// Subscribe's lock is separate from q.mu.
	unsub()
}

// Mounted reports whether the query follows invalidations.
func (q *Query[T]) Mounted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mounted
}

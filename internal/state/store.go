// Package state holds the client-side view state: one store per surface,
// each exposing a loading/error/data snapshot. Stores never cache across
// refreshes; every refresh is a full refetch, and every mutation signal
// triggers one.
package state

import (
	"context"
	"sync"
)

// Snapshot is the consumer-facing view of a store. Err carries the fetch
// error message verbatim; Data is the last successful result and survives a
// failed refresh.
type Snapshot[T any] struct {
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
	Data    T      `json:"data"`
}

// Store wraps one fetch function with snapshot semantics. Safe for
// concurrent use.
type Store[T any] struct {
	mu    sync.RWMutex
	fetch func(ctx context.Context) (T, error)

	loading bool
	lastErr error
	data    T
}

func NewStore[T any](fetch func(ctx context.Context) (T, error)) *Store[T] {
	return &Store[T]{fetch: fetch}
}

// Refresh refetches from scratch. Concurrent callers all run their fetch;
// the last writer wins, which is acceptable because every fetch is full.
func (s *Store[T]) Refresh(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	data, err := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return
	}
	s.lastErr = nil
	s.data = data
}

func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot[T]{Loading: s.loading, Data: s.data}
	if s.lastErr != nil {
		snap.Err = s.lastErr.Error()
	}
	return snap
}

// Err returns the most recent fetch error untruncated, nil after a clean
// refresh. Callers that need errors.Is matching use this over Snapshot.Err.
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Hub routes mutation signals to the stores registered for a topic. It
// implements the usecase Signal port, so mutations made anywhere in the
// process refresh the affected stores.
type Hub struct {
	mu     sync.RWMutex
	stores map[string][]refresher
}

type refresher interface {
	Refresh(ctx context.Context)
}

func NewHub() *Hub {
	return &Hub{stores: map[string][]refresher{}}
}

func (h *Hub) Register(topic string, store refresher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stores[topic] = append(h.stores[topic], store)
}

func (h *Hub) Notify(ctx context.Context, topic string) {
	h.mu.RLock()
	targets := make([]refresher, len(h.stores[topic]))
	copy(targets, h.stores[topic])
	h.mu.RUnlock()

	for _, store := range targets {
		store.Refresh(ctx)
	}
}

package state

import (
	"context"
	"sync"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/usecase"
)

// TimelineStore paginates the home feed. Refresh discards everything and
// reloads the first page; LoadMore appends the next page using the stored
// cursor.
type TimelineStore struct {
	mu       sync.RWMutex
	timeline *usecase.TimelineUsecase
	pageSize int

	loading bool
	lastErr error
	items   []atsocial.TimelineItem
	cursor  string
}

func NewTimelineStore(timeline *usecase.TimelineUsecase, hub *Hub, pageSize int) *TimelineStore {
	if pageSize <= 0 {
		pageSize = 50
	}
	store := &TimelineStore{timeline: timeline, pageSize: pageSize}
	if hub != nil {
		hub.Register(usecase.TopicTimeline, store)
	}
	return store
}

func (s *TimelineStore) Refresh(ctx context.Context) {
	s.fetch(ctx, "")
}

// LoadMore fetches the next page. A refresh in flight wins the cursor race;
// that only repeats a page, never loses one.
func (s *TimelineStore) LoadMore(ctx context.Context) {
	s.mu.RLock()
	cursor := s.cursor
	s.mu.RUnlock()

	if cursor == "" {
		return
	}
	s.fetch(ctx, cursor)
}

func (s *TimelineStore) fetch(ctx context.Context, cursor string) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	tl, err := s.timeline.Fetch(ctx, s.pageSize, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return
	}
	s.lastErr = nil
	if cursor == "" {
		s.items = tl.Items
	} else {
		s.items = append(s.items, tl.Items...)
	}
	s.cursor = tl.Cursor
}

func (s *TimelineStore) Snapshot() Snapshot[[]atsocial.TimelineItem] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot[[]atsocial.TimelineItem]{Loading: s.loading, Data: s.items}
	if s.lastErr != nil {
		snap.Err = s.lastErr.Error()
	}
	return snap
}

// Err returns the most recent fetch error, nil after a clean fetch.
func (s *TimelineStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// HasMore reports whether another page is available.
func (s *TimelineStore) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor != ""
}

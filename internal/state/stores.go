package state

import (
	"context"

	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/usecase"
)

// NewGroupsStore tracks the full group directory and registers itself
// for group mutation signals.
func NewGroupsStore(groups *usecase.GroupUsecase, hub *Hub) *Store[[]domain.Group] {
	store := NewStore(groups.List)
	if hub != nil {
		hub.Register(usecase.TopicGroups, store)
	}
	return store
}

func NewPagesStore(pages *usecase.PageUsecase, hub *Hub) *Store[[]domain.Page] {
	store := NewStore(pages.List)
	if hub != nil {
		hub.Register(usecase.TopicPages, store)
	}
	return store
}

// NewGroupFeedStore tracks one group's posts.
func NewGroupFeedStore(groups *usecase.GroupUsecase, hub *Hub, groupURI string) *Store[[]domain.EntityPost] {
	store := NewStore(func(ctx context.Context) ([]domain.EntityPost, error) {
		return groups.Posts(ctx, groupURI)
	})
	if hub != nil {
		hub.Register(usecase.TopicGroups, store)
	}
	return store
}

func NewPageFeedStore(pages *usecase.PageUsecase, hub *Hub, pageURI string) *Store[[]domain.EntityPost] {
	store := NewStore(func(ctx context.Context) ([]domain.EntityPost, error) {
		return pages.Posts(ctx, pageURI)
	})
	if hub != nil {
		hub.Register(usecase.TopicPages, store)
	}
	return store
}

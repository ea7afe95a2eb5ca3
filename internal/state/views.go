package state

import (
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/usecase"
)

// Views bundles the per-screen stores behind one hub. Mutations made through
// the usecases notify the hub, which refetches every store watching the
// affected topic.
type Views struct {
	Hub      *Hub
	Groups   *Store[[]domain.Group]
	Pages    *Store[[]domain.Page]
	Timeline *TimelineStore
}

func NewViews(
	hub *Hub,
	groups *usecase.GroupUsecase,
	pages *usecase.PageUsecase,
	timeline *usecase.TimelineUsecase,
	pageSize int,
) *Views {
	return &Views{
		Hub:      hub,
		Groups:   NewGroupsStore(groups, hub),
		Pages:    NewPagesStore(pages, hub),
		Timeline: NewTimelineStore(timeline, hub, pageSize),
	}
}

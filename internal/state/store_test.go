package state

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/atsocial/atsocial/internal/codec"
	"github.com/atsocial/atsocial/internal/discovery"
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/testutil"
	"github.com/atsocial/atsocial/internal/usecase"
)

func TestStoreRefreshKeepsDataOnError(t *testing.T) {
	fail := false
	store := NewStore(func(ctx context.Context) (int, error) {
		if fail {
			return 0, fmt.Errorf("host unreachable")
		}
		return 42, nil
	})

	store.Refresh(context.Background())
	snap := store.Snapshot()
	if snap.Err != "" || snap.Data != 42 {
		t.Fatalf("expected clean data, got %+v", snap)
	}

	fail = true
	store.Refresh(context.Background())
	snap = store.Snapshot()
	if snap.Err != "host unreachable" {
		t.Errorf("error message must surface verbatim, got %q", snap.Err)
	}
	if snap.Data != 42 {
		t.Errorf("stale data must survive a failed refresh, got %d", snap.Data)
	}
	if snap.Loading {
		t.Error("loading must clear after the fetch settles")
	}
}

func TestHubRoutesMutationSignals(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount("did:plc:alice", "alice.test", "pw")
	host.SetSession("did:plc:alice", "alice.test")

	c := codec.NewMarkerCodec()
	engine := discovery.NewEngine(host, c, discovery.Options{})
	hub := NewHub()
	groups := usecase.NewGroupUsecase(host, c, engine, hub)
	store := NewGroupsStore(groups, hub)

	ctx := context.Background()
	store.Refresh(ctx)
	if len(store.Snapshot().Data) != 0 {
		t.Fatal("no groups yet")
	}

	// The mutation signal must refresh the store without an explicit call.
	if _, err := groups.Create(ctx, domain.Group{Name: "Book Club"}); err != nil {
		t.Fatal(err)
	}

	snap := store.Snapshot()
	if len(snap.Data) != 1 || snap.Data[0].Name != "Book Club" {
		t.Fatalf("store must refetch after a mutation, got %+v", snap.Data)
	}
}

func TestTimelineStorePagination(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount("did:plc:alice", "alice.test", "pw")
	host.SetSession("did:plc:alice", "alice.test")
	host.TimelineAuthors = []string{"did:plc:alice", "did:plc:alice"}

	timeline := usecase.NewTimelineUsecase(host, nil)
	store := NewTimelineStore(timeline, nil, 10)

	store.Refresh(context.Background())
	snap := store.Snapshot()
	if snap.Err != "" {
		t.Fatalf("unexpected error: %s", snap.Err)
	}
	if len(snap.Data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(snap.Data))
	}
	if store.HasMore() {
		t.Error("the fake feed has a single page")
	}
}

func TestTimelineStoreErrorSurface(t *testing.T) {
	host := testutil.NewFakeHost()
	timeline := usecase.NewTimelineUsecase(host, nil)
	store := NewTimelineStore(timeline, nil, 10)

	store.Refresh(context.Background())
	snap := store.Snapshot()
	if snap.Err == "" {
		t.Fatal("fetching without a session must surface an error")
	}
	if !errors.Is(store.Err(), domain.ErrNotAuthenticated) {
		t.Fatalf("Err must keep the typed cause, got %v", store.Err())
	}
}

func TestStoreErrKeepsTypedCause(t *testing.T) {
	store := NewStore(func(ctx context.Context) (int, error) {
		return 0, domain.NotFoundError{Resource: "thing"}
	})

	store.Refresh(context.Background())
	if !errors.Is(store.Err(), domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound through the accessor, got %v", store.Err())
	}

	store.fetch = func(ctx context.Context) (int, error) { return 7, nil }
	store.Refresh(context.Background())
	if store.Err() != nil {
		t.Fatalf("a clean refresh must clear the error, got %v", store.Err())
	}
}

func TestViewsRefetchOnMutation(t *testing.T) {
	host := testutil.NewFakeHost()
	host.AddAccount("did:plc:alice", "alice.test", "pw")
	host.SetSession("did:plc:alice", "alice.test")

	c := codec.NewMarkerCodec()
	engine := discovery.NewEngine(host, c, discovery.Options{})
	hub := NewHub()

	var relayed []string
	record := usecase.Signals(nil, signalFunc(func(topic string) {
		relayed = append(relayed, topic)
	}), hub)

	timeline := usecase.NewTimelineUsecase(host, record)
	groups := usecase.NewGroupUsecase(host, c, engine, record)
	pages := usecase.NewPageUsecase(host, c, engine, record)
	views := NewViews(hub, groups, pages, timeline, 10)

	ctx := context.Background()
	if _, err := groups.Create(ctx, domain.Group{Name: "Book Club"}); err != nil {
		t.Fatal(err)
	}
	if _, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery"}); err != nil {
		t.Fatal(err)
	}

	if len(views.Groups.Snapshot().Data) != 1 {
		t.Error("group store must refetch after the mutation")
	}
	if len(views.Pages.Snapshot().Data) != 1 {
		t.Error("page store must refetch after the mutation")
	}
	if len(relayed) == 0 {
		t.Error("every sink in the fan-out must see the topics")
	}
}

type signalFunc func(topic string)

func (f signalFunc) Notify(ctx context.Context, topic string) { f(topic) }

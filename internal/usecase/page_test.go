package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/atsocial/atsocial/internal/codec"
	"github.com/atsocial/atsocial/internal/discovery"
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/testutil"
)

func pageFixture(t *testing.T) (*testutil.FakeHost, *PageUsecase) {
	t.Helper()
	host := testutil.NewFakeHost()
	host.AddAccount(aliceDID, "alice.test", "hunter2")
	host.AddAccount(bobDID, "bob.test", "hunter2")
	host.SetSession(aliceDID, "alice.test")

	c := codec.NewMarkerCodec()
	engine := discovery.NewEngine(host, c, discovery.Options{})
	return host, NewPageUsecase(host, c, engine, nil)
}

func TestPageCreateFollowsCreator(t *testing.T) {
	_, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery", Category: "Food"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Verified {
		t.Error("a fresh page can never be verified")
	}

	follows, err := pages.Follows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(follows) != 1 || follows[0].PageURI != created.URI {
		t.Fatalf("expected the auto-follow, got %+v", follows)
	}
}

func TestPageListEnrichment(t *testing.T) {
	host, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery"})
	if err != nil {
		t.Fatal(err)
	}

	host.SetSession(bobDID, "bob.test")
	if err := pages.Follow(ctx, created.URI); err != nil {
		t.Fatal(err)
	}
	host.TimelineAuthors = []string{aliceDID}

	list, err := pages.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 page, got %d", len(list))
	}
	if list[0].FollowerCount != 2 {
		t.Errorf("expected 2 followers, got %d", list[0].FollowerCount)
	}
	if !list[0].Following {
		t.Error("bob follows; Following must be set")
	}
	if list[0].Category != "General" && list[0].Category != "" {
		// Category was omitted at creation; the codec defaults it.
		t.Errorf("unexpected category %q", list[0].Category)
	}
}

func TestPagePostRestrictedToAdmins(t *testing.T) {
	host, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pages.Post(ctx, *created, "fresh sourdough today", nil); err != nil {
		t.Fatalf("the creator must be able to post: %v", err)
	}

	host.SetSession(bobDID, "bob.test")
	_, err = pages.Post(ctx, *created, "spam", nil)
	if !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected a permission error for non-admins, got %v", err)
	}
}

func TestPagePostsAndComments(t *testing.T) {
	host, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pages.Post(ctx, *created, "fresh sourdough today", nil); err != nil {
		t.Fatal(err)
	}

	posts, err := pages.Posts(ctx, created.URI)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 page post, got %d", len(posts))
	}

	// Any account may comment, not just admins.
	host.SetSession(bobDID, "bob.test")
	if _, err := pages.Comment(ctx, posts[0].URI, "", "looks delicious"); err != nil {
		t.Fatal(err)
	}

	comments, err := pages.Comments(ctx, posts[0].URI)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].AuthorDID != bobDID {
		t.Fatalf("expected bob's comment, got %+v", comments)
	}
}

func TestPageUpdateByNonAdmin(t *testing.T) {
	host, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery"})
	if err != nil {
		t.Fatal(err)
	}

	host.SetSession(bobDID, "bob.test")
	_, err = pages.Update(ctx, *created)
	if !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected a permission error, got %v", err)
	}
}

func TestPageSearch(t *testing.T) {
	_, pages := pageFixture(t)
	ctx := context.Background()

	if _, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery", Category: "Food"}); err != nil {
		t.Fatal(err)
	}
	if _, err := pages.Create(ctx, domain.Page{Name: "City Gym", Category: "Fitness"}); err != nil {
		t.Fatal(err)
	}

	found, err := pages.Search(ctx, "fitness")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Name != "City Gym" {
		t.Fatalf("category must be searchable, got %+v", found)
	}
}

func TestPageAddAdminRejectsNonDID(t *testing.T) {
	_, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pages.AddAdmin(ctx, *created, "bob.test"); err == nil {
		t.Fatal("admin grants take dids, a handle must be rejected")
	}
}

func TestPageGet(t *testing.T) {
	_, pages := pageFixture(t)
	ctx := context.Background()

	created, err := pages.Create(ctx, domain.Page{Name: "Corner Bakery", Category: "Food", Website: "https://bakery.example"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := pages.Get(ctx, created.URI)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Corner Bakery" || got.Category != "Food" || got.Website != "https://bakery.example" {
		t.Fatalf("fetched page mismatch: %+v", got)
	}
	if got.Creator.DID != aliceDID {
		t.Fatalf("fetched page must carry its creator profile, got %+v", got.Creator)
	}
	if !got.Following || !got.Admin {
		t.Errorf("creator views their page as followed admin, got following=%v admin=%v", got.Following, got.Admin)
	}
	if got.FollowerCount < 1 {
		t.Errorf("follower count must include the auto-follow, got %d", got.FollowerCount)
	}

	if _, err := pages.Get(ctx, "at://"+bobDID+"/app.bsky.feed.post/nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

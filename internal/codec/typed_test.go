package codec

import (
	"testing"
	"time"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/schemas"
)

func TestTypedGroupRoundTrip(t *testing.T) {
	c := NewTypedCodec()

	g := domain.Group{
		Name:        "Typed Test",
		Description: "first-class records",
		Privacy:     domain.PrivacyPrivate,
		Rules:       "no spam",
		CreatedAt:   time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		CreatorDID:  testDID,
		Admins:      []string{"did:plc:other"},
	}

	enc, err := c.EncodeGroup(g)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if enc.Collection != schemas.CollectionGroup {
		t.Fatalf("expected group collection got %s", enc.Collection)
	}

	dec := c.Decode(testDID, entryFor(t, enc, testDID))
	if dec == nil || dec.Kind != KindGroup {
		t.Fatalf("expected decoded group, got %+v", dec)
	}

	got := dec.Group
	if got.Name != g.Name || got.Description != g.Description || got.Rules != g.Rules {
		t.Fatalf("field mismatch: %+v", got)
	}
	if got.Privacy != domain.PrivacyPrivate {
		t.Fatalf("privacy: got %s", got.Privacy)
	}
	if !got.CreatedAt.Equal(g.CreatedAt) {
		t.Fatalf("createdAt mismatch: %v", got.CreatedAt)
	}
	if got.Admins[0] != testDID {
		t.Fatalf("expected creator first in admins, got %v", got.Admins)
	}
}

func TestTypedPageRoundTrip(t *testing.T) {
	c := NewTypedCodec()

	p := domain.Page{
		Name:        "Typed Page",
		Description: "desc",
		Category:    "News",
		Website:     "https://news.example",
		CreatedAt:   time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		CreatorDID:  testDID,
	}

	enc, err := c.EncodePage(p)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	dec := c.Decode(testDID, entryFor(t, enc, testDID))
	if dec == nil || dec.Kind != KindPage {
		t.Fatalf("expected decoded page, got %+v", dec)
	}
	if dec.Page.Category != "News" || dec.Page.Website != p.Website {
		t.Fatalf("field mismatch: %+v", dec.Page)
	}
	if dec.Page.Verified {
		t.Fatal("pages must be created unverified")
	}
}

func TestTypedMembershipAndFollowRoundTrip(t *testing.T) {
	c := NewTypedCodec()

	groupURI := atsocial.ComposeATURI(testDID, schemas.CollectionGroup, "g1")
	m := domain.Membership{GroupURI: groupURI, Role: domain.RoleModerator, JoinedAt: time.Now().UTC()}

	enc, err := c.EncodeMembership(m)
	if err != nil {
		t.Fatalf("encode membership failed: %v", err)
	}
	dec := c.Decode("did:plc:m", entryFor(t, enc, "did:plc:m"))
	if dec == nil || dec.Kind != KindMembership || dec.Membership.Role != domain.RoleModerator {
		t.Fatalf("membership mismatch: %+v", dec)
	}

	pageURI := atsocial.ComposeATURI(testDID, schemas.CollectionPage, "p1")
	f := domain.Follow{PageURI: pageURI, FollowedAt: time.Now().UTC()}

	encF, err := c.EncodeFollow(f)
	if err != nil {
		t.Fatalf("encode follow failed: %v", err)
	}
	decF := c.Decode("did:plc:f", entryFor(t, encF, "did:plc:f"))
	if decF == nil || decF.Kind != KindFollow || decF.Follow.PageURI != pageURI {
		t.Fatalf("follow mismatch: %+v", decF)
	}
}

func TestTypedCommentRoundTrip(t *testing.T) {
	c := NewTypedCodec()

	postURI := atsocial.ComposeATURI(testDID, schemas.CollectionGroupPost, "gp1")
	cm := domain.Comment{
		Text:      "nice post",
		PostURI:   postURI,
		CreatedAt: time.Now().UTC(),
	}

	enc, err := c.EncodeGroupComment(cm)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if enc.Collection != schemas.CollectionGroupComment {
		t.Fatalf("wrong collection: %s", enc.Collection)
	}

	dec := c.Decode("did:plc:c", entryFor(t, enc, "did:plc:c"))
	if dec == nil || dec.Kind != KindGroupComment {
		t.Fatalf("expected decoded group comment, got %+v", dec)
	}
	if dec.Comment.Text != cm.Text || dec.Comment.PostURI != postURI {
		t.Fatalf("comment mismatch: %+v", dec.Comment)
	}
	if dec.Comment.AuthorDID != "did:plc:c" {
		t.Fatalf("author mismatch: %s", dec.Comment.AuthorDID)
	}
}

func TestTypedPageCommentRoundTrip(t *testing.T) {
	c := NewTypedCodec()

	postURI := atsocial.ComposeATURI(testDID, schemas.CollectionPagePost, "pp1")
	cm := domain.Comment{
		Text:      "good read",
		PostURI:   postURI,
		CreatedAt: time.Now().UTC(),
	}

	enc, err := c.EncodePageComment(cm)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if enc.Collection != schemas.CollectionPageComment {
		t.Fatalf("page comments belong in their own collection, got %s", enc.Collection)
	}

	dec := c.Decode("did:plc:c", entryFor(t, enc, "did:plc:c"))
	if dec == nil || dec.Kind != KindPageComment {
		t.Fatalf("expected decoded page comment, got %+v", dec)
	}
	if dec.Comment.Text != cm.Text || dec.Comment.PostURI != postURI {
		t.Fatalf("comment mismatch: %+v", dec.Comment)
	}

	if col, _ := c.Collection(KindGroupComment); col == enc.Collection {
		t.Fatal("group and page comment collections must differ")
	}
}

func TestTypedDecodeRejectsMissingName(t *testing.T) {
	c := NewTypedCodec()

	entry := atsocial.RecordEntry{
		URI:   atsocial.ComposeATURI(testDID, schemas.CollectionGroup, "bad"),
		Value: []byte(`{"description": "no name"}`),
	}

	if dec := c.Decode(testDID, entry); dec != nil {
		t.Fatalf("expected nil for nameless group, got %+v", dec)
	}
}

func TestTypedDecodeRejectsUnknownCollection(t *testing.T) {
	c := NewTypedCodec()

	entry := atsocial.RecordEntry{
		URI:   atsocial.ComposeATURI(testDID, schemas.CollectionFeedPost, "r1"),
		Value: []byte(`{"text": "hi"}`),
	}

	if dec := c.Decode(testDID, entry); dec != nil {
		t.Fatalf("expected nil for feed post, got %+v", dec)
	}
}

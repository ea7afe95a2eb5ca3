package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/codec"
	"github.com/atsocial/atsocial/internal/discovery"
	"github.com/atsocial/atsocial/internal/domain"
)

type PageUsecase struct {
	transport atsocial.Transport
	codec     codec.Codec
	engine    *discovery.Engine
	signal    Signal
}

func NewPageUsecase(transport atsocial.Transport, c codec.Codec, engine *discovery.Engine, signal Signal) *PageUsecase {
	return &PageUsecase{
		transport: transport,
		codec:     c,
		engine:    engine,
		signal:    orNoop(signal),
	}
}

// List returns every discoverable page, enriched with follower counts and
// the session account's own standing.
func (u *PageUsecase) List(ctx context.Context) ([]domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Page.List")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	pages, err := u.engine.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover pages: %v", err)
	}

	follows, err := u.engine.Follows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover follows: %v", err)
	}

	counts := map[string]int{}
	following := map[string]bool{}
	for _, f := range follows {
		counts[f.PageURI]++
		if f.FollowerDID == session.DID {
			following[f.PageURI] = true
		}
	}

	for i := range pages {
		pages[i].FollowerCount = max(counts[pages[i].URI], 1)
		pages[i].Following = following[pages[i].URI]
		pages[i].Admin = pages[i].IsAdmin(session.DID)
	}

	return pages, nil
}

func (u *PageUsecase) Search(ctx context.Context, query string) ([]domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Page.Search")
	defer span.End()

	pages, err := u.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Page, 0, len(pages))
	for _, p := range pages {
		if matchQuery(query, p.Name, p.Description, p.Category) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Create writes the page record and follows it as the creator. Verified is
// forced off; there is no path to a verified page.
func (u *PageUsecase) Create(ctx context.Context, p domain.Page) (*domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Page.Create")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	p.CreatorDID = session.DID
	p.Verified = false
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	enc, err := u.codec.EncodePage(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page: %v", err)
	}

	ref, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to create page record: %v", err)
	}
	p.URI = ref.URI
	p.CID = ref.CID

	if err := u.follow(ctx, p.URI); err != nil {
		slog.ErrorContext(ctx, "failed to auto-follow created page",
			slog.String("uri", p.URI),
			slog.String("error", err.Error()),
			slog.String("module", "page"),
		)
	}

	u.signal.Notify(ctx, TopicPages)
	return &p, nil
}

// Follow records the session account's follow. Following twice overwrites
// the same record.
func (u *PageUsecase) Follow(ctx context.Context, pageURI string) error {
	ctx, span := tracer.Start(ctx, "Page.Follow")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return err
	}

	if err := u.follow(ctx, pageURI); err != nil {
		return err
	}

	u.signal.Notify(ctx, TopicPages)
	return nil
}

func (u *PageUsecase) follow(ctx context.Context, pageURI string) error {
	session := u.transport.GetSession()

	enc, err := u.codec.EncodeFollow(domain.Follow{
		PageURI:     pageURI,
		FollowedAt:  time.Now(),
		FollowerDID: session.DID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode follow: %v", err)
	}

	if _, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value); err != nil {
		return fmt.Errorf("failed to create follow record: %v", err)
	}
	return nil
}

// Post publishes onto a page. Page posts are restricted to admins.
func (u *PageUsecase) Post(ctx context.Context, page domain.Page, text string, images []ImageUpload) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Page.Post")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	if !page.IsAdmin(session.DID) {
		return nil, domain.PermissionError{Action: "post to page"}
	}

	embeds, err := uploadImages(ctx, u.transport, images)
	if err != nil {
		return nil, err
	}

	enc, err := u.codec.EncodePagePost(domain.EntityPost{
		Text:      text,
		TargetURI: page.URI,
		CreatedAt: time.Now(),
		AuthorDID: session.DID,
		Images:    embeds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode page post: %v", err)
	}

	ref, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to create page post: %v", err)
	}

	u.signal.Notify(ctx, TopicPages)
	return ref, nil
}

// Comment attaches a comment to a page post. Anyone may comment.
func (u *PageUsecase) Comment(ctx context.Context, postURI, parentURI, text string) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Page.Comment")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	if _, ok := u.codec.Collection(codec.KindPageComment); ok {
		enc, err := u.codec.EncodePageComment(domain.Comment{
			Text:      text,
			PostURI:   postURI,
			ParentURI: parentURI,
			CreatedAt: time.Now(),
			AuthorDID: session.DID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode comment: %v", err)
		}
		ref, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to create comment record: %v", err)
		}
		u.signal.Notify(ctx, TopicPages)
		return ref, nil
	}

	ref, err := replyComment(ctx, u.transport, postURI, parentURI, text)
	if err != nil {
		return nil, err
	}
	u.signal.Notify(ctx, TopicPages)
	return ref, nil
}

// Posts lists a page's posts, newest first.
func (u *PageUsecase) Posts(ctx context.Context, pageURI string) ([]domain.EntityPost, error) {
	return u.engine.PagePosts(ctx, pageURI)
}

// Comments lists comments on a page post, oldest first.
func (u *PageUsecase) Comments(ctx context.Context, postURI string) ([]domain.Comment, error) {
	return u.engine.Comments(ctx, postURI, codec.KindPageComment)
}

// Get fetches a single page record by uri, enriched the same way List
// enriches.
func (u *PageUsecase) Get(ctx context.Context, uri string) (*domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Page.Get")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	repo, collection, rkey, err := atsocial.ParseATURI(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid page uri: %v", err)
	}

	entry, err := u.transport.GetRecord(ctx, repo, collection, rkey)
	if err != nil {
		return nil, domain.NotFoundError{Resource: "page"}
	}

	d := u.codec.Decode(repo, *entry)
	if d == nil || d.Kind != codec.KindPage {
		return nil, domain.NotFoundError{Resource: "page"}
	}

	p := *d.Page
	if prof, err := u.transport.GetProfile(ctx, p.CreatorDID); err == nil {
		p.Creator = *prof
	} else {
		p.Creator = domain.UnknownUser(p.CreatorDID)
	}

	count, err := u.engine.PageFollowerCount(ctx, p.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to count followers: %v", err)
	}
	p.FollowerCount = count

	following, err := u.engine.IsFollowing(ctx, p.URI, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check follow state: %v", err)
	}
	p.Following = following
	p.Admin = p.IsAdmin(session.DID)

	return &p, nil
}

// IsFollowing reports the session account's follow state.
func (u *PageUsecase) IsFollowing(ctx context.Context, pageURI string) (bool, error) {
	return u.engine.IsFollowing(ctx, pageURI, "")
}

// Follows lists the session account's own page follows.
func (u *PageUsecase) Follows(ctx context.Context) ([]domain.Follow, error) {
	return u.engine.UserFollows(ctx, "")
}

// Update rewrites a page record in place, under the same repository
// constraint as groups: only the creator's session can physically rewrite.
func (u *PageUsecase) Update(ctx context.Context, p domain.Page) (*domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Page.Update")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	if !p.IsAdmin(session.DID) {
		return nil, domain.PermissionError{Action: "update page"}
	}

	repo, collection, rkey, err := atsocial.ParseATURI(p.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid page uri: %v", err)
	}
	if repo != session.DID {
		return nil, fmt.Errorf("page record lives in another repository: %w", domain.ErrUnsupported)
	}

	enc, err := u.codec.EncodePage(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page: %v", err)
	}
	if enc.Collection != collection {
		return nil, fmt.Errorf("page uri does not match the active encoding scheme")
	}

	ref, err := u.transport.PutRecord(ctx, collection, rkey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to update page record: %v", err)
	}
	p.CID = ref.CID

	u.signal.Notify(ctx, TopicPages)
	return &p, nil
}

// AddAdmin grants the admin title and rewrites the page record.
func (u *PageUsecase) AddAdmin(ctx context.Context, p domain.Page, did string) (*domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Page.AddAdmin")
	defer span.End()

	if !atsocial.IsDID(did) {
		return nil, fmt.Errorf("admin grants need a did, got %q", did)
	}

	for _, a := range p.Admins {
		if a == did {
			return &p, nil
		}
	}
	p.Admins = append(p.Admins, did)
	return u.Update(ctx, p)
}

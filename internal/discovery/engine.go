// Package discovery reconstructs group and page state by scanning the
// repositories of a bounded set of accounts: the session's own account plus
// every author seen on one page of its home timeline. There is no server-side
// index and no cross-call cache, so recall is inherently partial: an account
// outside the discovered set simply does not exist to this client, and every
// call re-scans.
package discovery

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/codec"
	"github.com/atsocial/atsocial/internal/domain"
)

var tracer = otel.Tracer("discovery")

const (
	defaultTimelineLimit = 100
	defaultScanLimit     = 100
	defaultConcurrency   = 8
)

type Options struct {
	// TimelineLimit bounds the timeline page used for account discovery.
	TimelineLimit int
	// ScanLimit is the per-account record ceiling for each collection scan.
	ScanLimit int
	// Concurrency caps simultaneous per-account scans.
	Concurrency int
}

type Engine struct {
	transport atsocial.Transport
	codec     codec.Codec
	opts      Options
}

func NewEngine(transport atsocial.Transport, c codec.Codec, opts Options) *Engine {
	if opts.TimelineLimit <= 0 {
		opts.TimelineLimit = defaultTimelineLimit
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = defaultScanLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Engine{transport: transport, codec: c, opts: opts}
}

// DiscoverAccounts returns the set of accounts this client is willing to
// scan: the session account plus every distinct author on one timeline page.
func (e *Engine) DiscoverAccounts(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Discovery.DiscoverAccounts")
	defer span.End()

	session := e.transport.GetSession()
	if session == nil {
		return nil, domain.ErrNotAuthenticated
	}

	accounts := []string{session.DID}
	seen := map[string]bool{session.DID: true}

	timeline, err := e.transport.GetTimeline(ctx, e.opts.TimelineLimit, "")
	if err != nil {
		// The session account alone is still a valid, if minimal, network.
		slog.DebugContext(ctx, "timeline fetch failed during account discovery",
			slog.String("error", err.Error()),
			slog.String("module", "discovery"),
		)
		return accounts, nil
	}

	for _, item := range timeline.Items {
		did := item.Post.Author.DID
		if did != "" && !seen[did] {
			seen[did] = true
			accounts = append(accounts, did)
		}
	}

	return accounts, nil
}

// scan fans out over accounts with a bounded worker count, decoding every
// record in the collection and dropping non-matches. A failing account
// contributes zero records; it never aborts the scan or touches results
// already gathered for other accounts.
func (e *Engine) scan(ctx context.Context, accounts []string, collection string) []*codec.Decoded {
	sem := make(chan struct{}, e.opts.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var out []*codec.Decoded

	for _, did := range accounts {
		wg.Add(1)
		go func(did string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			entries, err := e.transport.ListRecords(ctx, did, collection, e.opts.ScanLimit)
			if err != nil {
				slog.DebugContext(ctx, "account scan skipped",
					slog.String("did", did),
					slog.String("error", err.Error()),
					slog.String("module", "discovery"),
				)
				return
			}

			var local []*codec.Decoded
			for _, entry := range entries {
				if d := e.codec.Decode(did, entry); d != nil {
					local = append(local, d)
				}
			}

			mu.Lock()
			out = append(out, local...)
			mu.Unlock()
		}(did)
	}

	wg.Wait()
	return out
}

func (e *Engine) scanAll(ctx context.Context, kind codec.Kind) ([]*codec.Decoded, error) {
	collection, ok := e.codec.Collection(kind)
	if !ok {
		return nil, nil
	}

	accounts, err := e.DiscoverAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*codec.Decoded
	for _, d := range e.scan(ctx, accounts, collection) {
		if d.Kind == kind {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

// profile fetches with the Unknown User fallback; enrichment never fails
// a scan.
func (e *Engine) profile(ctx context.Context, did string) atsocial.Profile {
	p, err := e.transport.GetProfile(ctx, did)
	if err != nil {
		return domain.UnknownUser(did)
	}
	return *p
}

// Groups lists every group discoverable from the current session.
func (e *Engine) Groups(ctx context.Context) ([]domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Discovery.Groups")
	defer span.End()

	decoded, err := e.scanAll(ctx, codec.KindGroup)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(decoded))
	for _, d := range decoded {
		g := *d.Group
		g.Creator = e.profile(ctx, g.CreatorDID)
		groups = append(groups, g)
	}
	return groups, nil
}

// Pages lists every page discoverable from the current session.
func (e *Engine) Pages(ctx context.Context) ([]domain.Page, error) {
	ctx, span := tracer.Start(ctx, "Discovery.Pages")
	defer span.End()

	decoded, err := e.scanAll(ctx, codec.KindPage)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, len(decoded))
	for _, d := range decoded {
		p := *d.Page
		p.Creator = e.profile(ctx, p.CreatorDID)
		pages = append(pages, p)
	}
	return pages, nil
}

// SearchGroups filters discovered groups by a case-insensitive substring
// over name and description.
func (e *Engine) SearchGroups(ctx context.Context, query string) ([]domain.Group, error) {
	groups, err := e.Groups(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := make([]domain.Group, 0, len(groups))
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.Name+" "+g.Description), q) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (e *Engine) SearchPages(ctx context.Context, query string) ([]domain.Page, error) {
	pages, err := e.Pages(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := make([]domain.Page, 0, len(pages))
	for _, p := range pages {
		if strings.Contains(strings.ToLower(p.Name+" "+p.Description), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (e *Engine) entityPosts(ctx context.Context, kind codec.Kind, targetURI string) ([]domain.EntityPost, error) {
	decoded, err := e.scanAll(ctx, kind)
	if err != nil {
		return nil, err
	}

	posts := make([]domain.EntityPost, 0, len(decoded))
	for _, d := range decoded {
		if d.Post.TargetURI != targetURI {
			continue
		}
		p := *d.Post
		p.Author = e.profile(ctx, p.AuthorDID)
		posts = append(posts, p)
	}

	// Newest first. The merge order across accounts is arbitrary; this sort
	// is the only ordering guarantee.
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	return posts, nil
}

// GroupPosts lists posts made into a group across the discovered network,
// newest first.
func (e *Engine) GroupPosts(ctx context.Context, groupURI string) ([]domain.EntityPost, error) {
	ctx, span := tracer.Start(ctx, "Discovery.GroupPosts")
	defer span.End()

	return e.entityPosts(ctx, codec.KindGroupPost, groupURI)
}

func (e *Engine) PagePosts(ctx context.Context, pageURI string) ([]domain.EntityPost, error) {
	ctx, span := tracer.Start(ctx, "Discovery.PagePosts")
	defer span.End()

	return e.entityPosts(ctx, codec.KindPagePost, pageURI)
}

// Memberships lists every join record across the discovered network.
func (e *Engine) Memberships(ctx context.Context) ([]domain.Membership, error) {
	ctx, span := tracer.Start(ctx, "Discovery.Memberships")
	defer span.End()

	decoded, err := e.scanAll(ctx, codec.KindMembership)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Membership, 0, len(decoded))
	for _, d := range decoded {
		out = append(out, *d.Membership)
	}
	return out, nil
}

// Follows lists every page follow record across the discovered network.
func (e *Engine) Follows(ctx context.Context) ([]domain.Follow, error) {
	ctx, span := tracer.Start(ctx, "Discovery.Follows")
	defer span.End()

	decoded, err := e.scanAll(ctx, codec.KindFollow)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Follow, 0, len(decoded))
	for _, d := range decoded {
		out = append(out, *d.Follow)
	}
	return out, nil
}

// GroupMemberCount counts join records across the discovered network.
// The floor of 1 stands in for the creator, whose membership record may not
// be discoverable.
func (e *Engine) GroupMemberCount(ctx context.Context, groupURI string) (int, error) {
	ctx, span := tracer.Start(ctx, "Discovery.GroupMemberCount")
	defer span.End()

	decoded, err := e.scanAll(ctx, codec.KindMembership)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range decoded {
		if d.Membership.GroupURI == groupURI {
			count++
		}
	}
	return max(count, 1), nil
}

func (e *Engine) PageFollowerCount(ctx context.Context, pageURI string) (int, error) {
	ctx, span := tracer.Start(ctx, "Discovery.PageFollowerCount")
	defer span.End()

	decoded, err := e.scanAll(ctx, codec.KindFollow)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range decoded {
		if d.Follow.PageURI == pageURI {
			count++
		}
	}
	return max(count, 1), nil
}

// IsMember reports whether did (or the session account when did is empty)
// has a join record for the group.
func (e *Engine) IsMember(ctx context.Context, groupURI, did string) (bool, error) {
	if did == "" {
		session := e.transport.GetSession()
		if session == nil {
			return false, nil
		}
		did = session.DID
	}

	collection, ok := e.codec.Collection(codec.KindMembership)
	if !ok {
		return false, nil
	}

	entries, err := e.transport.ListRecords(ctx, did, collection, e.opts.ScanLimit)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		d := e.codec.Decode(did, entry)
		if d != nil && d.Kind == codec.KindMembership && d.Membership.GroupURI == groupURI {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) IsFollowing(ctx context.Context, pageURI, did string) (bool, error) {
	if did == "" {
		session := e.transport.GetSession()
		if session == nil {
			return false, nil
		}
		did = session.DID
	}

	collection, ok := e.codec.Collection(codec.KindFollow)
	if !ok {
		return false, nil
	}

	entries, err := e.transport.ListRecords(ctx, did, collection, e.opts.ScanLimit)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		d := e.codec.Decode(did, entry)
		if d != nil && d.Kind == codec.KindFollow && d.Follow.PageURI == pageURI {
			return true, nil
		}
	}
	return false, nil
}

// UserMemberships lists every group join record in a single account's
// repository. An empty did means the session account.
func (e *Engine) UserMemberships(ctx context.Context, did string) ([]domain.Membership, error) {
	ctx, span := tracer.Start(ctx, "Discovery.UserMemberships")
	defer span.End()

	if did == "" {
		session := e.transport.GetSession()
		if session == nil {
			return nil, domain.ErrNotAuthenticated
		}
		did = session.DID
	}

	collection, ok := e.codec.Collection(codec.KindMembership)
	if !ok {
		return nil, nil
	}

	entries, err := e.transport.ListRecords(ctx, did, collection, e.opts.ScanLimit)
	if err != nil {
		return nil, err
	}

	var out []domain.Membership
	for _, entry := range entries {
		d := e.codec.Decode(did, entry)
		if d != nil && d.Kind == codec.KindMembership {
			out = append(out, *d.Membership)
		}
	}
	return out, nil
}

// UserFollows lists every page follow record in a single account's
// repository. An empty did means the session account.
func (e *Engine) UserFollows(ctx context.Context, did string) ([]domain.Follow, error) {
	ctx, span := tracer.Start(ctx, "Discovery.UserFollows")
	defer span.End()

	if did == "" {
		session := e.transport.GetSession()
		if session == nil {
			return nil, domain.ErrNotAuthenticated
		}
		did = session.DID
	}

	collection, ok := e.codec.Collection(codec.KindFollow)
	if !ok {
		return nil, nil
	}

	entries, err := e.transport.ListRecords(ctx, did, collection, e.opts.ScanLimit)
	if err != nil {
		return nil, err
	}

	var out []domain.Follow
	for _, entry := range entries {
		d := e.codec.Decode(did, entry)
		if d != nil && d.Kind == codec.KindFollow {
			out = append(out, *d.Follow)
		}
	}
	return out, nil
}

// Comments lists comments on an entity post, oldest first. kind selects the
// group or page comment collection. When the codec has a first-class comment
// record the network is scanned for it; otherwise comments are ordinary
// replies and the native thread is used.
func (e *Engine) Comments(ctx context.Context, postURI string, kind codec.Kind) ([]domain.Comment, error) {
	ctx, span := tracer.Start(ctx, "Discovery.Comments")
	defer span.End()

	var comments []domain.Comment

	if _, ok := e.codec.Collection(kind); ok {
		decoded, err := e.scanAll(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, d := range decoded {
			if d.Comment.PostURI != postURI {
				continue
			}
			cm := *d.Comment
			cm.Author = e.profile(ctx, cm.AuthorDID)
			comments = append(comments, cm)
		}
	} else {
		thread, err := e.transport.GetPostThread(ctx, postURI)
		if err != nil {
			return nil, err
		}
		comments = flattenThread(thread.Replies, postURI, "")
	}

	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	return comments, nil
}

func flattenThread(replies []atsocial.Thread, postURI, parentURI string) []domain.Comment {
	var out []domain.Comment
	for _, reply := range replies {
		out = append(out, domain.Comment{
			URI:       reply.Post.URI,
			CID:       reply.Post.CID,
			Text:      reply.Post.Record.Text,
			PostURI:   postURI,
			ParentURI: parentURI,
			CreatedAt: reply.Post.Record.CreatedAt,
			AuthorDID: reply.Post.Author.DID,
			Author:    reply.Post.Author,
		})
		out = append(out, flattenThread(reply.Replies, postURI, reply.Post.URI)...)
	}
	return out
}

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

const (
	TopicGroups   = "groups"
	TopicPages    = "pages"
	TopicTimeline = "timeline"
)

type GroupUsecase struct {
	transport atsocial.Transport
	codec     codec.Codec
	engine    *discovery.Engine
	signal    Signal
}

func NewGroupUsecase(transport atsocial.Transport, c codec.Codec, engine *discovery.Engine, signal Signal) *GroupUsecase {
	return &GroupUsecase{
		transport: transport,
		codec:     c,
		engine:    engine,
		signal:    orNoop(signal),
	}
}

func requireSession(transport atsocial.Transport) (*atsocial.Session, error) {
	session := transport.GetSession()
	if session == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return session, nil
}

// List returns every discoverable group, enriched with member counts and the
// session account's own standing.
func (u *GroupUsecase) List(ctx context.Context) ([]domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.List")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	groups, err := u.engine.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover groups: %v", err)
	}

	memberships, err := u.engine.Memberships(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover memberships: %v", err)
	}

	counts := map[string]int{}
	joined := map[string]bool{}
	for _, m := range memberships {
		counts[m.GroupURI]++
		if m.MemberDID == session.DID {
			joined[m.GroupURI] = true
		}
	}

	for i := range groups {
		groups[i].MemberCount = max(counts[groups[i].URI], 1)
		groups[i].Joined = joined[groups[i].URI]
		groups[i].Admin = groups[i].IsAdmin(session.DID)
	}

	return groups, nil
}

// Search filters the enriched group list by a case-insensitive substring.
func (u *GroupUsecase) Search(ctx context.Context, query string) ([]domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Search")
	defer span.End()

	groups, err := u.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Group, 0, len(groups))
	for _, g := range groups {
		if matchQuery(query, g.Name, g.Description) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Create writes the group record and joins the creator as admin. The group
// lives in the creator's repository; the membership record makes the creator
// countable like any other member.
func (u *GroupUsecase) Create(ctx context.Context, g domain.Group) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Create")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	g.CreatorDID = session.DID
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	if g.Privacy == "" {
		g.Privacy = domain.PrivacyPublic
	}

	enc, err := u.codec.EncodeGroup(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode group: %v", err)
	}

	ref, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to create group record: %v", err)
	}
	g.URI = ref.URI
	g.CID = ref.CID

	if err := u.join(ctx, g.URI, domain.RoleAdmin); err != nil {
		// The group exists; a missing self-membership only skews the count.
		slog.ErrorContext(ctx, "failed to auto-join created group",
			slog.String("uri", g.URI),
			slog.String("error", err.Error()),
			slog.String("module", "group"),
		)
	}

	u.signal.Notify(ctx, TopicGroups)
	return &g, nil
}

// Join records the session account's membership. Joining twice overwrites
// the same record.
func (u *GroupUsecase) Join(ctx context.Context, groupURI string) error {
	ctx, span := tracer.Start(ctx, "Group.Join")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return err
	}

	if err := u.join(ctx, groupURI, domain.RoleMember); err != nil {
		return err
	}

	u.signal.Notify(ctx, TopicGroups)
	return nil
}

func (u *GroupUsecase) join(ctx context.Context, groupURI string, role domain.Role) error {
	session := u.transport.GetSession()

	enc, err := u.codec.EncodeMembership(domain.Membership{
		GroupURI:  groupURI,
		Role:      role,
		JoinedAt:  time.Now(),
		MemberDID: session.DID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode membership: %v", err)
	}

	if _, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value); err != nil {
		return fmt.Errorf("failed to create membership record: %v", err)
	}
	return nil
}

// Post publishes into a group, uploading any attachments first.
func (u *GroupUsecase) Post(ctx context.Context, groupURI, text string, images []ImageUpload) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Group.Post")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	embeds, err := uploadImages(ctx, u.transport, images)
	if err != nil {
		return nil, err
	}

	enc, err := u.codec.EncodeGroupPost(domain.EntityPost{
		Text:      text,
		TargetURI: groupURI,
		CreatedAt: time.Now(),
		AuthorDID: session.DID,
		Images:    embeds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode group post: %v", err)
	}

	ref, err := u.transport.CreateRecord(ctx, enc.Collection, enc.RKey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to create group post: %v", err)
	}

	u.signal.Notify(ctx, TopicGroups)
	return ref, nil
}

// Comment attaches a comment to a group post. With a first-class comment
// record the codec is used; otherwise the comment is a native reply on the
// underlying post.
func (u *GroupUsecase) Comment(ctx context.Context, postURI, parentURI, text string) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Group.Comment")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	if _, ok := u.codec.Collection(codec.KindGroupComment); ok {
		enc, err := u.codec.EncodeGroupComment(domain.Comment{
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
		u.signal.Notify(ctx, TopicGroups)
		return ref, nil
	}

	ref, err := replyComment(ctx, u.transport, postURI, parentURI, text)
	if err != nil {
		return nil, err
	}
	u.signal.Notify(ctx, TopicGroups)
	return ref, nil
}

// Posts lists a group's posts, newest first.
func (u *GroupUsecase) Posts(ctx context.Context, groupURI string) ([]domain.EntityPost, error) {
	return u.engine.GroupPosts(ctx, groupURI)
}

// Comments lists comments on a group post, oldest first.
func (u *GroupUsecase) Comments(ctx context.Context, postURI string) ([]domain.Comment, error) {
	return u.engine.Comments(ctx, postURI, codec.KindGroupComment)
}

// IsMember reports the session account's membership.
func (u *GroupUsecase) IsMember(ctx context.Context, groupURI string) (bool, error) {
	return u.engine.IsMember(ctx, groupURI, "")
}

// Memberships lists the session account's own joins.
func (u *GroupUsecase) Memberships(ctx context.Context) ([]domain.Membership, error) {
	return u.engine.UserMemberships(ctx, "")
}

// Get fetches a single group record by uri, enriched the same way List
// enriches. Unlike List it does not depend on the discovered account set.
func (u *GroupUsecase) Get(ctx context.Context, uri string) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Get")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	repo, collection, rkey, err := atsocial.ParseATURI(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid group uri: %v", err)
	}

	entry, err := u.transport.GetRecord(ctx, repo, collection, rkey)
	if err != nil {
		return nil, domain.NotFoundError{Resource: "group"}
	}

	d := u.codec.Decode(repo, *entry)
	if d == nil || d.Kind != codec.KindGroup {
		return nil, domain.NotFoundError{Resource: "group"}
	}

	g := *d.Group
	if p, err := u.transport.GetProfile(ctx, g.CreatorDID); err == nil {
		g.Creator = *p
	} else {
		g.Creator = domain.UnknownUser(g.CreatorDID)
	}

	count, err := u.engine.GroupMemberCount(ctx, g.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %v", err)
	}
	g.MemberCount = count

	joined, err := u.engine.IsMember(ctx, g.URI, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %v", err)
	}
	g.Joined = joined
	g.Admin = g.IsAdmin(session.DID)

	return &g, nil
}

// Update rewrites a group record in place. Only admins may update, and the
// record itself can only be rewritten from the repository it lives in, so a
// non-creator admin holds an advisory title only.
func (u *GroupUsecase) Update(ctx context.Context, g domain.Group) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Update")
	defer span.End()

	session, err := requireSession(u.transport)
	if err != nil {
		return nil, err
	}

	if !g.IsAdmin(session.DID) {
		return nil, domain.PermissionError{Action: "update group"}
	}

	repo, collection, rkey, err := atsocial.ParseATURI(g.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid group uri: %v", err)
	}
	if repo != session.DID {
		return nil, fmt.Errorf("group record lives in another repository: %w", domain.ErrUnsupported)
	}

	enc, err := u.codec.EncodeGroup(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode group: %v", err)
	}
	if enc.Collection != collection {
		return nil, fmt.Errorf("group uri does not match the active encoding scheme")
	}

	ref, err := u.transport.PutRecord(ctx, collection, rkey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to update group record: %v", err)
	}
	g.CID = ref.CID

	u.signal.Notify(ctx, TopicGroups)
	return &g, nil
}

// AddAdmin grants the admin title to a member and rewrites the group record.
func (u *GroupUsecase) AddAdmin(ctx context.Context, g domain.Group, did string) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.AddAdmin")
	defer span.End()

	if !atsocial.IsDID(did) {
		return nil, fmt.Errorf("admin grants need a did, got %q", did)
	}

	for _, a := range g.Admins {
		if a == did {
			return &g, nil
		}
	}
	g.Admins = append(g.Admins, did)
	return u.Update(ctx, g)
}

// RemoveMember cannot work on this substrate: membership records live in
// each member's own repository, out of any admin's reach.
func (u *GroupUsecase) RemoveMember(ctx context.Context, groupURI, memberDID string) error {
	return fmt.Errorf("membership records belong to the member's repository: %w", domain.ErrUnsupported)
}

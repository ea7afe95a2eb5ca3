package usecase

import (
	"context"
	"fmt"

	"github.com/atsocial/atsocial"
)

// TimelineUsecase fronts the host's native feed surface. Nothing here knows
// about groups or pages; marker posts flow through untouched.
type TimelineUsecase struct {
	transport atsocial.Transport
	signal    Signal
}

func NewTimelineUsecase(transport atsocial.Transport, signal Signal) *TimelineUsecase {
	return &TimelineUsecase{
		transport: transport,
		signal:    orNoop(signal),
	}
}

// Fetch returns one page of the home timeline. An empty cursor starts from
// the newest post; the returned cursor continues where this page ended.
func (u *TimelineUsecase) Fetch(ctx context.Context, limit int, cursor string) (*atsocial.Timeline, error) {
	ctx, span := tracer.Start(ctx, "Timeline.Fetch")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	timeline, err := u.transport.GetTimeline(ctx, limit, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timeline: %v", err)
	}
	return timeline, nil
}

func (u *TimelineUsecase) CreatePost(ctx context.Context, text string, images []ImageUpload) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Timeline.CreatePost")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	embeds, err := uploadImages(ctx, u.transport, images)
	if err != nil {
		return nil, err
	}

	blobs := make([]atsocial.Blob, 0, len(embeds))
	for _, e := range embeds {
		blobs = append(blobs, e.Image)
	}

	ref, err := u.transport.CreatePost(ctx, text, blobs)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %v", err)
	}

	u.signal.Notify(ctx, TopicTimeline)
	return ref, nil
}

func (u *TimelineUsecase) Like(ctx context.Context, uri, cid string) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Timeline.Like")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	ref, err := u.transport.LikePost(ctx, uri, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to like post: %v", err)
	}

	u.signal.Notify(ctx, TopicTimeline)
	return ref, nil
}

func (u *TimelineUsecase) Repost(ctx context.Context, uri, cid string) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Timeline.Repost")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	ref, err := u.transport.Repost(ctx, uri, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to repost: %v", err)
	}

	u.signal.Notify(ctx, TopicTimeline)
	return ref, nil
}

func (u *TimelineUsecase) Reply(ctx context.Context, text, parentURI, parentCID, rootURI, rootCID string) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Timeline.Reply")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	ref, err := u.transport.Reply(ctx, text, parentURI, parentCID, rootURI, rootCID)
	if err != nil {
		return nil, fmt.Errorf("failed to reply: %v", err)
	}

	u.signal.Notify(ctx, TopicTimeline)
	return ref, nil
}

func (u *TimelineUsecase) Thread(ctx context.Context, uri string) (*atsocial.Thread, error) {
	ctx, span := tracer.Start(ctx, "Timeline.Thread")
	defer span.End()

	thread, err := u.transport.GetPostThread(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread: %v", err)
	}
	return thread, nil
}

// FollowUser writes a native follow record for another account.
func (u *TimelineUsecase) FollowUser(ctx context.Context, did string) (*atsocial.RecordRef, error) {
	ctx, span := tracer.Start(ctx, "Timeline.FollowUser")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	if !atsocial.IsDID(did) {
		return nil, fmt.Errorf("follow needs a did, got %q", did)
	}

	ref, err := u.transport.FollowUser(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("failed to follow user: %v", err)
	}

	u.signal.Notify(ctx, TopicTimeline)
	return ref, nil
}

func (u *TimelineUsecase) UnfollowUser(ctx context.Context, followURI string) error {
	ctx, span := tracer.Start(ctx, "Timeline.UnfollowUser")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return err
	}

	if err := u.transport.UnfollowUser(ctx, followURI); err != nil {
		return fmt.Errorf("failed to unfollow user: %v", err)
	}

	u.signal.Notify(ctx, TopicTimeline)
	return nil
}

// SearchUsers finds accounts by handle or display name.
func (u *TimelineUsecase) SearchUsers(ctx context.Context, query string, limit int) ([]atsocial.Profile, error) {
	ctx, span := tracer.Start(ctx, "Timeline.SearchUsers")
	defer span.End()

	if _, err := requireSession(u.transport); err != nil {
		return nil, err
	}

	profiles, err := u.transport.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %v", err)
	}
	return profiles, nil
}

func (u *TimelineUsecase) Profile(ctx context.Context, actor string) (*atsocial.Profile, error) {
	ctx, span := tracer.Start(ctx, "Timeline.Profile")
	defer span.End()

	profile, err := u.transport.GetProfile(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %v", err)
	}
	return profile, nil
}

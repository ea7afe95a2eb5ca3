package atsocial

import "context"

// Transport is the full surface of the remote protocol host as consumed by
// this codebase. Every call is fallible; callers never assume success.
// Implementations hold the session and must be safe for concurrent use.
type Transport interface {
	// Session lifecycle. RestoreSession reports whether a stored session
	// could be resumed; a failed restore clears the stored session.
	Login(ctx context.Context, identifier, secret string) (*Session, error)
	RestoreSession(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
	GetSession() *Session

	// Feed operations.
	GetTimeline(ctx context.Context, limit int, cursor string) (*Timeline, error)
	CreatePost(ctx context.Context, text string, images []Blob) (*RecordRef, error)
	LikePost(ctx context.Context, uri, cid string) (*RecordRef, error)
	Repost(ctx context.Context, uri, cid string) (*RecordRef, error)
	Reply(ctx context.Context, text, parentURI, parentCID, rootURI, rootCID string) (*RecordRef, error)
	GetPostThread(ctx context.Context, uri string) (*Thread, error)

	// Graph operations.
	FollowUser(ctx context.Context, did string) (*RecordRef, error)
	UnfollowUser(ctx context.Context, followURI string) error
	GetProfile(ctx context.Context, actor string) (*Profile, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]Profile, error)

	// Raw repository operations. These are what the encoding schemes and the
	// discovery engine are built on.
	CreateRecord(ctx context.Context, collection, rkey string, value any) (*RecordRef, error)
	PutRecord(ctx context.Context, collection, rkey string, value any) (*RecordRef, error)
	GetRecord(ctx context.Context, repo, collection, rkey string) (*RecordEntry, error)
	ListRecords(ctx context.Context, repo, collection string, limit int) ([]RecordEntry, error)

	UploadBlob(ctx context.Context, data []byte, mimeType string) (*Blob, error)
}

// SessionStore persists credentials between runs. Transports save on login,
// load on restore and clear on logout or when the host rejects a stored
// session.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	// Load returns (nil, nil) when nothing is stored.
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

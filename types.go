package atsocial

import (
	"encoding/json"
	"time"
)

// Session is the credential material returned by the remote host at login.
// It is the only client-side state that outlives a single call.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	Email      string `json:"email,omitempty"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Profile is the public face of an account.
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
}

// Blob references an uploaded binary on the remote host.
type Blob struct {
	Ref      string `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// RecordRef addresses a single committed record.
type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// RecordEntry is one raw record as returned by a repository listing.
// Value is left undecoded; only a codec may give it shape.
type RecordEntry struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

// ReplyRef names the parent and root of a threaded post.
type ReplyRef struct {
	Root   RecordRef `json:"root"`
	Parent RecordRef `json:"parent"`
}

// SelfLabels is a self-applied label set on a record.
type SelfLabels struct {
	Type   string           `json:"$type"`
	Values []SelfLabelValue `json:"values"`
}

type SelfLabelValue struct {
	Val string `json:"val"`
}

// EmbedImages is the image attachment envelope on a feed post.
type EmbedImages struct {
	Type   string       `json:"$type"`
	Images []EmbedImage `json:"images"`
}

type EmbedImage struct {
	Alt   string `json:"alt"`
	Image Blob   `json:"image"`
}

// FeedPost is the native post record shape.
type FeedPost struct {
	Type      string       `json:"$type,omitempty"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"createdAt"`
	Reply     *ReplyRef    `json:"reply,omitempty"`
	Embed     *EmbedImages `json:"embed,omitempty"`
	Labels    *SelfLabels  `json:"labels,omitempty"`
}

// FeedView is a post as it appears in a timeline: record plus author context.
type FeedView struct {
	URI    string   `json:"uri"`
	CID    string   `json:"cid"`
	Author Profile  `json:"author"`
	Record FeedPost `json:"record"`
}

// TimelineItem wraps one timeline entry.
type TimelineItem struct {
	Post FeedView `json:"post"`
}

// Timeline is one page of the session account's home feed.
type Timeline struct {
	Items  []TimelineItem `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

// Thread is a post with its reply subtree.
type Thread struct {
	Post    FeedView `json:"post"`
	Replies []Thread `json:"replies,omitempty"`
}

// Package codec maps groups, pages, memberships, follows, posts and comments
// onto the remote host's native record vocabulary, and back. A codec is pure:
// it never talks to the network, and decoding is total: a record the codec
// did not produce decodes to nil, never to an error or a partially shaped
// value.
package codec

import (
	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/domain"
)

type Kind int

const (
	KindGroup Kind = iota + 1
	KindPage
	KindGroupPost
	KindPagePost
	KindMembership
	KindFollow
	KindGroupComment
	KindPageComment
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindPage:
		return "page"
	case KindGroupPost:
		return "group-post"
	case KindPagePost:
		return "page-post"
	case KindMembership:
		return "membership"
	case KindFollow:
		return "follow"
	case KindGroupComment:
		return "group-comment"
	case KindPageComment:
		return "page-comment"
	default:
		return "unknown"
	}
}

// Encoded is a record ready to be written to the author's repository.
type Encoded struct {
	Collection string
	RKey       string
	Value      any
}

// Decoded is the tagged variant produced by Decode. Exactly the field named
// by Kind is set; downstream code never observes a half-shaped record.
type Decoded struct {
	Kind       Kind
	Group      *domain.Group
	Page       *domain.Page
	Post       *domain.EntityPost
	Membership *domain.Membership
	Follow     *domain.Follow
	Comment    *domain.Comment
}

// Codec is one complete encoding convention. MarkerCodec is the shipped
// default; TypedCodec writes bespoke record types for hosts that accept them.
type Codec interface {
	Name() string

	// Collection names the repository collection scanned for a kind. ok is
	// false when the codec has no record representation for that kind (the
	// marker codec expresses comments as native thread replies instead).
	Collection(kind Kind) (string, bool)

	EncodeGroup(g domain.Group) (Encoded, error)
	EncodePage(p domain.Page) (Encoded, error)
	EncodeMembership(m domain.Membership) (Encoded, error)
	EncodeFollow(f domain.Follow) (Encoded, error)
	EncodeGroupPost(p domain.EntityPost) (Encoded, error)
	EncodePagePost(p domain.EntityPost) (Encoded, error)
	EncodeGroupComment(cm domain.Comment) (Encoded, error)
	EncodePageComment(cm domain.Comment) (Encoded, error)

	// Decode reverses the encoding for a record found in repoDID's
	// repository. It returns nil for anything this codec did not produce.
	Decode(repoDID string, entry atsocial.RecordEntry) *Decoded
}

// adminsWithCreator normalizes an admin list so the creator is always its
// first element.
func adminsWithCreator(creator string, admins []string) []string {
	out := []string{creator}
	for _, a := range admins {
		if a != creator && a != "" {
			out = append(out, a)
		}
	}
	return out
}

package domain

import (
	"slices"
	"time"

	"github.com/atsocial/atsocial"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Group is a projection reconstructed from generic records; it has no native
// representation on the remote host.
type Group struct {
	URI         string           `json:"uri"`
	CID         string           `json:"cid"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Privacy     Privacy          `json:"privacy"`
	Rules       string           `json:"rules,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CreatorDID  string           `json:"creatorDid"`
	Admins      []string         `json:"admins"`
	Creator     atsocial.Profile `json:"creator"`
	MemberCount int              `json:"memberCount"`
	Joined      bool             `json:"joined"`
	Admin       bool             `json:"admin"`
}

// IsAdmin reports whether did may mutate the group. The creator is always an
// admin even when the encoded admin list has been tampered with.
func (g Group) IsAdmin(did string) bool {
	if did == "" {
		return false
	}
	return did == g.CreatorDID || slices.Contains(g.Admins, did)
}

// Membership is one join action, recorded in the joining account's own
// repository. There is no corresponding leave record.
type Membership struct {
	GroupURI  string    `json:"groupUri"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
	MemberDID string    `json:"memberDid"`
}

package domain

import (
	"slices"
	"time"

	"github.com/atsocial/atsocial"
)

// Page is the public-presence counterpart of Group. Verified is always false
// at creation; no verification workflow exists.
type Page struct {
	URI           string           `json:"uri"`
	CID           string           `json:"cid"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Website       string           `json:"website,omitempty"`
	Location      string           `json:"location,omitempty"`
	Verified      bool             `json:"verified"`
	CreatedAt     time.Time        `json:"createdAt"`
	CreatorDID    string           `json:"creatorDid"`
	Admins        []string         `json:"admins"`
	Creator       atsocial.Profile `json:"creator"`
	FollowerCount int              `json:"followerCount"`
	Following     bool             `json:"following"`
	Admin         bool             `json:"admin"`
}

func (p Page) IsAdmin(did string) bool {
	if did == "" {
		return false
	}
	return did == p.CreatorDID || slices.Contains(p.Admins, did)
}

// Follow is one follow action on a page, recorded in the follower's own
// repository.
type Follow struct {
	PageURI     string    `json:"pageUri"`
	FollowedAt  time.Time `json:"followedAt"`
	FollowerDID string    `json:"followerDid"`
}

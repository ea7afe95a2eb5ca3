package domain

import (
	"time"

	"github.com/atsocial/atsocial"
)

// EntityPost is a post made into a group or page. It is always authored
// under the poster's own account; there is no posting as the entity itself.
type EntityPost struct {
	URI       string                `json:"uri"`
	CID       string                `json:"cid"`
	Text      string                `json:"text"`
	TargetURI string                `json:"targetUri"`
	CreatedAt time.Time             `json:"createdAt"`
	AuthorDID string                `json:"authorDid"`
	Author    atsocial.Profile      `json:"author"`
	Images    []atsocial.EmbedImage `json:"images,omitempty"`
}

// Comment is a reply to an EntityPost.
type Comment struct {
	URI       string           `json:"uri"`
	CID       string           `json:"cid"`
	Text      string           `json:"text"`
	PostURI   string           `json:"postUri"`
	ParentURI string           `json:"parentUri,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	AuthorDID string           `json:"authorDid"`
	Author    atsocial.Profile `json:"author"`
}

// UnknownUser is the sentinel profile attached when enrichment fails.
func UnknownUser(did string) atsocial.Profile {
	return atsocial.Profile{
		DID:         did,
		Handle:      did,
		DisplayName: "Unknown User",
	}
}

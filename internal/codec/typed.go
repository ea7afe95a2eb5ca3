package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/schemas"
)

// TypedCodec writes first-class record types under bespoke collections.
// Cleaner than marker posts, but only usable against hosts that accept
// unregistered record types.
type TypedCodec struct{}

func NewTypedCodec() *TypedCodec {
	return &TypedCodec{}
}

func (c *TypedCodec) Name() string { return "typed" }

func (c *TypedCodec) Collection(kind Kind) (string, bool) {
	switch kind {
	case KindGroup:
		return schemas.CollectionGroup, true
	case KindPage:
		return schemas.CollectionPage, true
	case KindGroupPost:
		return schemas.CollectionGroupPost, true
	case KindPagePost:
		return schemas.CollectionPagePost, true
	case KindMembership:
		return schemas.CollectionGroupMembership, true
	case KindFollow:
		return schemas.CollectionPageFollow, true
	case KindGroupComment:
		return schemas.CollectionGroupComment, true
	case KindPageComment:
		return schemas.CollectionPageComment, true
	default:
		return "", false
	}
}

type groupRecord struct {
	Type        string    `json:"$type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Privacy     string    `json:"privacy"`
	Rules       string    `json:"rules,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Admins      []string  `json:"admins"`
}

type pageRecord struct {
	Type        string    `json:"$type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Website     string    `json:"website,omitempty"`
	Location    string    `json:"location,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"createdAt"`
	Admins      []string  `json:"admins"`
}

type membershipRecord struct {
	Type     string    `json:"$type"`
	GroupURI string    `json:"groupUri"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type followRecord struct {
	Type       string    `json:"$type"`
	PageURI    string    `json:"pageUri"`
	FollowedAt time.Time `json:"followedAt"`
}

type entityPostRecord struct {
	Type      string                `json:"$type"`
	Text      string                `json:"text"`
	TargetURI string                `json:"targetUri"`
	CreatedAt time.Time             `json:"createdAt"`
	Images    []atsocial.EmbedImage `json:"images,omitempty"`
}

type commentRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	PostURI   string    `json:"postUri"`
	ParentURI string    `json:"parentUri,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *TypedCodec) EncodeGroup(g domain.Group) (Encoded, error) {
	if g.Name == "" {
		return Encoded{}, fmt.Errorf("group name is required")
	}
	if g.CreatorDID == "" {
		return Encoded{}, fmt.Errorf("group creator is required")
	}

	privacy := g.Privacy
	if privacy == "" {
		privacy = domain.PrivacyPublic
	}

	return Encoded{
		Collection: schemas.CollectionGroup,
		RKey:       uuid.NewString(),
		Value: groupRecord{
			Type:        schemas.CollectionGroup,
			Name:        g.Name,
			Description: g.Description,
			Privacy:     string(privacy),
			Rules:       g.Rules,
			CreatedAt:   g.CreatedAt,
			Admins:      adminsWithCreator(g.CreatorDID, g.Admins),
		},
	}, nil
}

func (c *TypedCodec) EncodePage(p domain.Page) (Encoded, error) {
	if p.Name == "" {
		return Encoded{}, fmt.Errorf("page name is required")
	}
	if p.CreatorDID == "" {
		return Encoded{}, fmt.Errorf("page creator is required")
	}

	category := p.Category
	if category == "" {
		category = "General"
	}

	return Encoded{
		Collection: schemas.CollectionPage,
		RKey:       uuid.NewString(),
		Value: pageRecord{
			Type:        schemas.CollectionPage,
			Name:        p.Name,
			Description: p.Description,
			Category:    category,
			Website:     p.Website,
			Location:    p.Location,
			Verified:    false,
			CreatedAt:   p.CreatedAt,
			Admins:      adminsWithCreator(p.CreatorDID, p.Admins),
		},
	}, nil
}

func (c *TypedCodec) EncodeMembership(m domain.Membership) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(m.GroupURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid group uri: %v", err)
	}

	role := m.Role
	if role == "" {
		role = domain.RoleMember
	}

	return Encoded{
		Collection: schemas.CollectionGroupMembership,
		RKey:       atsocial.GetHash([]byte("group-join:" + m.GroupURI)),
		Value: membershipRecord{
			Type:     schemas.CollectionGroupMembership,
			GroupURI: m.GroupURI,
			Role:     string(role),
			JoinedAt: m.JoinedAt,
		},
	}, nil
}

func (c *TypedCodec) EncodeFollow(f domain.Follow) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(f.PageURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid page uri: %v", err)
	}

	return Encoded{
		Collection: schemas.CollectionPageFollow,
		RKey:       atsocial.GetHash([]byte("page-follow:" + f.PageURI)),
		Value: followRecord{
			Type:       schemas.CollectionPageFollow,
			PageURI:    f.PageURI,
			FollowedAt: f.FollowedAt,
		},
	}, nil
}

func (c *TypedCodec) encodeEntityPost(collection string, p domain.EntityPost) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(p.TargetURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid target uri: %v", err)
	}

	return Encoded{
		Collection: collection,
		RKey:       uuid.NewString(),
		Value: entityPostRecord{
			Type:      collection,
			Text:      p.Text,
			TargetURI: p.TargetURI,
			CreatedAt: p.CreatedAt,
			Images:    p.Images,
		},
	}, nil
}

func (c *TypedCodec) EncodeGroupPost(p domain.EntityPost) (Encoded, error) {
	return c.encodeEntityPost(schemas.CollectionGroupPost, p)
}

func (c *TypedCodec) EncodePagePost(p domain.EntityPost) (Encoded, error) {
	return c.encodeEntityPost(schemas.CollectionPagePost, p)
}

func (c *TypedCodec) encodeComment(collection string, cm domain.Comment) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(cm.PostURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid post uri: %v", err)
	}

	return Encoded{
		Collection: collection,
		RKey:       uuid.NewString(),
		Value: commentRecord{
			Type:      collection,
			Text:      cm.Text,
			PostURI:   cm.PostURI,
			ParentURI: cm.ParentURI,
			CreatedAt: cm.CreatedAt,
		},
	}, nil
}

func (c *TypedCodec) EncodeGroupComment(cm domain.Comment) (Encoded, error) {
	return c.encodeComment(schemas.CollectionGroupComment, cm)
}

func (c *TypedCodec) EncodePageComment(cm domain.Comment) (Encoded, error) {
	return c.encodeComment(schemas.CollectionPageComment, cm)
}

func (c *TypedCodec) Decode(repoDID string, entry atsocial.RecordEntry) *Decoded {
	_, collection, _, err := atsocial.ParseATURI(entry.URI)
	if err != nil {
		return nil
	}

	switch collection {
	case schemas.CollectionGroup:
		var rec groupRecord
		if json.Unmarshal(entry.Value, &rec) != nil || rec.Name == "" {
			return nil
		}
		privacy := domain.PrivacyPublic
		if rec.Privacy == string(domain.PrivacyPrivate) {
			privacy = domain.PrivacyPrivate
		}
		return &Decoded{
			Kind: KindGroup,
			Group: &domain.Group{
				URI:         entry.URI,
				CID:         entry.CID,
				Name:        rec.Name,
				Description: rec.Description,
				Privacy:     privacy,
				Rules:       rec.Rules,
				CreatedAt:   rec.CreatedAt,
				CreatorDID:  repoDID,
				Admins:      adminsWithCreator(repoDID, rec.Admins),
			},
		}

	case schemas.CollectionPage:
		var rec pageRecord
		if json.Unmarshal(entry.Value, &rec) != nil || rec.Name == "" {
			return nil
		}
		category := rec.Category
		if category == "" {
			category = "General"
		}
		return &Decoded{
			Kind: KindPage,
			Page: &domain.Page{
				URI:         entry.URI,
				CID:         entry.CID,
				Name:        rec.Name,
				Description: rec.Description,
				Category:    category,
				Website:     rec.Website,
				Location:    rec.Location,
				Verified:    rec.Verified,
				CreatedAt:   rec.CreatedAt,
				CreatorDID:  repoDID,
				Admins:      adminsWithCreator(repoDID, rec.Admins),
			},
		}

	case schemas.CollectionGroupMembership:
		var rec membershipRecord
		if json.Unmarshal(entry.Value, &rec) != nil {
			return nil
		}
		if _, _, _, err := atsocial.ParseATURI(rec.GroupURI); err != nil {
			return nil
		}
		role := domain.Role(rec.Role)
		if role != domain.RoleMember && role != domain.RoleModerator && role != domain.RoleAdmin {
			role = domain.RoleMember
		}
		return &Decoded{
			Kind: KindMembership,
			Membership: &domain.Membership{
				GroupURI:  rec.GroupURI,
				Role:      role,
				JoinedAt:  rec.JoinedAt,
				MemberDID: repoDID,
			},
		}

	case schemas.CollectionPageFollow:
		var rec followRecord
		if json.Unmarshal(entry.Value, &rec) != nil {
			return nil
		}
		if _, _, _, err := atsocial.ParseATURI(rec.PageURI); err != nil {
			return nil
		}
		return &Decoded{
			Kind: KindFollow,
			Follow: &domain.Follow{
				PageURI:     rec.PageURI,
				FollowedAt:  rec.FollowedAt,
				FollowerDID: repoDID,
			},
		}

	case schemas.CollectionGroupPost, schemas.CollectionPagePost:
		var rec entityPostRecord
		if json.Unmarshal(entry.Value, &rec) != nil {
			return nil
		}
		if _, _, _, err := atsocial.ParseATURI(rec.TargetURI); err != nil {
			return nil
		}
		kind := KindGroupPost
		if collection == schemas.CollectionPagePost {
			kind = KindPagePost
		}
		return &Decoded{
			Kind: kind,
			Post: &domain.EntityPost{
				URI:       entry.URI,
				CID:       entry.CID,
				Text:      rec.Text,
				TargetURI: rec.TargetURI,
				CreatedAt: rec.CreatedAt,
				AuthorDID: repoDID,
				Images:    rec.Images,
			},
		}

	case schemas.CollectionGroupComment, schemas.CollectionPageComment:
		var rec commentRecord
		if json.Unmarshal(entry.Value, &rec) != nil {
			return nil
		}
		if _, _, _, err := atsocial.ParseATURI(rec.PostURI); err != nil {
			return nil
		}
		kind := KindGroupComment
		if collection == schemas.CollectionPageComment {
			kind = KindPageComment
		}
		return &Decoded{
			Kind: kind,
			Comment: &domain.Comment{
				URI:       entry.URI,
				CID:       entry.CID,
				Text:      rec.Text,
				PostURI:   rec.PostURI,
				ParentURI: rec.ParentURI,
				CreatedAt: rec.CreatedAt,
				AuthorDID: repoDID,
			},
		}

	default:
		return nil
	}
}

package codec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/schemas"
)

// MarkerCodec encodes every entity as an ordinary feed post whose text body
// begins with a fixed marker token, followed by structured lines. It works
// against any host because it only ever writes native post records. Marker
// posts carry a self-applied no-promote label to reduce feed visibility;
// that is a convention, not privacy, and everything encoded this way is
// effectively public.
//
// Comments have no marker representation: they are ordinary replies in the
// host's native thread structure.
type MarkerCodec struct{}

func NewMarkerCodec() *MarkerCodec {
	return &MarkerCodec{}
}

func (c *MarkerCodec) Name() string { return "marker" }

func (c *MarkerCodec) Collection(kind Kind) (string, bool) {
	if kind == KindGroupComment || kind == KindPageComment {
		return "", false
	}
	return schemas.CollectionFeedPost, true
}

var (
	rePrivacy  = regexp.MustCompile(`(?m)^Privacy: (public|private)$`)
	reRules    = regexp.MustCompile(`(?m)^Rules: (.+)$`)
	reAdmins   = regexp.MustCompile(`(?m)^Admins: (.+)$`)
	reCategory = regexp.MustCompile(`(?m)^Category: (.+)$`)
	reWebsite  = regexp.MustCompile(`(?m)^Website: (.+)$`)
	reLocation = regexp.MustCompile(`(?m)^Location: (.+)$`)
	reRole     = regexp.MustCompile(`(?m)^Role: (member|moderator|admin)$`)
)

// oneline flattens free text into a single parseable line.
func oneline(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

func markerPost(text string, createdAt time.Time) atsocial.FeedPost {
	return atsocial.FeedPost{
		Type:      schemas.CollectionFeedPost,
		Text:      text,
		CreatedAt: createdAt,
		Labels: &atsocial.SelfLabels{
			Type:   schemas.SelfLabelsType,
			Values: []atsocial.SelfLabelValue{{Val: schemas.LabelNoPromote}},
		},
	}
}

func (c *MarkerCodec) EncodeGroup(g domain.Group) (Encoded, error) {
	if g.Name == "" {
		return Encoded{}, fmt.Errorf("group name is required")
	}
	if g.CreatorDID == "" {
		return Encoded{}, fmt.Errorf("group creator is required")
	}

	admins := adminsWithCreator(g.CreatorDID, g.Admins)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n%s\n\n", schemas.MarkerGroup, oneline(g.Name), oneline(g.Description))
	fmt.Fprintf(&b, "Privacy: %s\n", g.Privacy)
	if g.Rules != "" {
		fmt.Fprintf(&b, "Rules: %s\n", oneline(g.Rules))
	}
	fmt.Fprintf(&b, "Admins: %s\n", strings.Join(admins, ", "))
	b.WriteString("\n#atsocial #group")

	return Encoded{
		Collection: schemas.CollectionFeedPost,
		RKey:       uuid.NewString(),
		Value:      markerPost(b.String(), g.CreatedAt),
	}, nil
}

func (c *MarkerCodec) EncodePage(p domain.Page) (Encoded, error) {
	if p.Name == "" {
		return Encoded{}, fmt.Errorf("page name is required")
	}
	if p.CreatorDID == "" {
		return Encoded{}, fmt.Errorf("page creator is required")
	}

	admins := adminsWithCreator(p.CreatorDID, p.Admins)

	category := p.Category
	if category == "" {
		category = "General"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n%s\n\n", schemas.MarkerPage, oneline(p.Name), oneline(p.Description))
	fmt.Fprintf(&b, "Category: %s\n", oneline(category))
	if p.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", oneline(p.Website))
	}
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", oneline(p.Location))
	}
	fmt.Fprintf(&b, "Admins: %s\n", strings.Join(admins, ", "))
	b.WriteString("\n#atsocial #page")

	return Encoded{
		Collection: schemas.CollectionFeedPost,
		RKey:       uuid.NewString(),
		Value:      markerPost(b.String(), p.CreatedAt),
	}, nil
}

func (c *MarkerCodec) EncodeMembership(m domain.Membership) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(m.GroupURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid group uri: %v", err)
	}

	text := schemas.MarkerGroupJoin + " " + m.GroupURI
	if m.Role != "" && m.Role != domain.RoleMember {
		text += "\nRole: " + string(m.Role)
	}

	// Deterministic key: joining the same group twice overwrites in place.
	rkey := atsocial.GetHash([]byte("group-join:" + m.GroupURI))

	return Encoded{
		Collection: schemas.CollectionFeedPost,
		RKey:       rkey,
		Value:      markerPost(text, m.JoinedAt),
	}, nil
}

func (c *MarkerCodec) EncodeFollow(f domain.Follow) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(f.PageURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid page uri: %v", err)
	}

	rkey := atsocial.GetHash([]byte("page-follow:" + f.PageURI))

	return Encoded{
		Collection: schemas.CollectionFeedPost,
		RKey:       rkey,
		Value:      markerPost(schemas.MarkerPageFollow+" "+f.PageURI, f.FollowedAt),
	}, nil
}

func (c *MarkerCodec) encodeEntityPost(marker string, tag string, p domain.EntityPost) (Encoded, error) {
	if _, _, _, err := atsocial.ParseATURI(p.TargetURI); err != nil {
		return Encoded{}, fmt.Errorf("invalid target uri: %v", err)
	}

	text := fmt.Sprintf("%s %s\n\n%s\n\n#atsocial #%s", marker, p.TargetURI, strings.TrimSpace(p.Text), tag)

	post := markerPost(text, p.CreatedAt)
	if len(p.Images) > 0 {
		post.Embed = &atsocial.EmbedImages{
			Type:   schemas.EmbedImagesType,
			Images: p.Images,
		}
	}

	return Encoded{
		Collection: schemas.CollectionFeedPost,
		RKey:       uuid.NewString(),
		Value:      post,
	}, nil
}

func (c *MarkerCodec) EncodeGroupPost(p domain.EntityPost) (Encoded, error) {
	return c.encodeEntityPost(schemas.MarkerGroupPost, "grouppost", p)
}

func (c *MarkerCodec) EncodePagePost(p domain.EntityPost) (Encoded, error) {
	return c.encodeEntityPost(schemas.MarkerPagePost, "pagepost", p)
}

func (c *MarkerCodec) EncodeGroupComment(cm domain.Comment) (Encoded, error) {
	return Encoded{}, domain.ErrUnsupported
}

func (c *MarkerCodec) EncodePageComment(cm domain.Comment) (Encoded, error) {
	return Encoded{}, domain.ErrUnsupported
}

func (c *MarkerCodec) Decode(repoDID string, entry atsocial.RecordEntry) *Decoded {
	_, collection, _, err := atsocial.ParseATURI(entry.URI)
	if err != nil || collection != schemas.CollectionFeedPost {
		return nil
	}

	var post atsocial.FeedPost
	if err := json.Unmarshal(entry.Value, &post); err != nil {
		return nil
	}

	switch {
	case strings.HasPrefix(post.Text, schemas.MarkerGroup):
		return c.decodeGroup(repoDID, entry, post)
	case strings.HasPrefix(post.Text, schemas.MarkerPage):
		return c.decodePage(repoDID, entry, post)
	case strings.HasPrefix(post.Text, schemas.MarkerGroupPost):
		return c.decodeEntityPost(KindGroupPost, repoDID, entry, post, schemas.MarkerGroupPost)
	case strings.HasPrefix(post.Text, schemas.MarkerPagePost):
		return c.decodeEntityPost(KindPagePost, repoDID, entry, post, schemas.MarkerPagePost)
	case strings.HasPrefix(post.Text, schemas.MarkerGroupJoin):
		return c.decodeMembership(repoDID, post)
	case strings.HasPrefix(post.Text, schemas.MarkerPageFollow):
		return c.decodeFollow(repoDID, post)
	default:
		return nil
	}
}

func (c *MarkerCodec) decodeGroup(repoDID string, entry atsocial.RecordEntry, post atsocial.FeedPost) *Decoded {
	lines := strings.Split(post.Text, "\n")
	name := strings.TrimSpace(strings.TrimPrefix(lines[0], schemas.MarkerGroup))
	if name == "" || len(lines) < 3 || lines[1] != "" {
		return nil
	}

	// Field extraction is confined to the block after the description line,
	// so a description that happens to look like a field stays inert.
	meta := strings.Join(lines[3:], "\n")

	privacy := domain.PrivacyPublic
	if m := rePrivacy.FindStringSubmatch(meta); m != nil && m[1] == "private" {
		privacy = domain.PrivacyPrivate
	}

	rules := ""
	if m := reRules.FindStringSubmatch(meta); m != nil {
		rules = m[1]
	}

	admins := []string{repoDID}
	if m := reAdmins.FindStringSubmatch(meta); m != nil {
		admins = adminsWithCreator(repoDID, strings.Split(m[1], ", "))
	}

	return &Decoded{
		Kind: KindGroup,
		Group: &domain.Group{
			URI:         entry.URI,
			CID:         entry.CID,
			Name:        name,
			Description: lines[2],
			Privacy:     privacy,
			Rules:       rules,
			CreatedAt:   post.CreatedAt,
			CreatorDID:  repoDID,
			Admins:      admins,
		},
	}
}

func (c *MarkerCodec) decodePage(repoDID string, entry atsocial.RecordEntry, post atsocial.FeedPost) *Decoded {
	lines := strings.Split(post.Text, "\n")
	name := strings.TrimSpace(strings.TrimPrefix(lines[0], schemas.MarkerPage))
	if name == "" || len(lines) < 3 || lines[1] != "" {
		return nil
	}

	meta := strings.Join(lines[3:], "\n")

	category := "General"
	if m := reCategory.FindStringSubmatch(meta); m != nil {
		category = m[1]
	}

	website := ""
	if m := reWebsite.FindStringSubmatch(meta); m != nil {
		website = m[1]
	}

	location := ""
	if m := reLocation.FindStringSubmatch(meta); m != nil {
		location = m[1]
	}

	admins := []string{repoDID}
	if m := reAdmins.FindStringSubmatch(meta); m != nil {
		admins = adminsWithCreator(repoDID, strings.Split(m[1], ", "))
	}

	return &Decoded{
		Kind: KindPage,
		Page: &domain.Page{
			URI:         entry.URI,
			CID:         entry.CID,
			Name:        name,
			Description: lines[2],
			Category:    category,
			Website:     website,
			Location:    location,
			CreatedAt:   post.CreatedAt,
			CreatorDID:  repoDID,
			Admins:      admins,
		},
	}
}

func (c *MarkerCodec) decodeEntityPost(kind Kind, repoDID string, entry atsocial.RecordEntry, post atsocial.FeedPost, marker string) *Decoded {
	lines := strings.Split(post.Text, "\n")
	target := strings.TrimSpace(strings.TrimPrefix(lines[0], marker))
	if _, _, _, err := atsocial.ParseATURI(target); err != nil {
		return nil
	}
	if len(lines) < 5 {
		return nil
	}

	text := strings.TrimSpace(strings.Join(lines[2:len(lines)-2], "\n"))

	out := &domain.EntityPost{
		URI:       entry.URI,
		CID:       entry.CID,
		Text:      text,
		TargetURI: target,
		CreatedAt: post.CreatedAt,
		AuthorDID: repoDID,
	}
	if post.Embed != nil {
		out.Images = post.Embed.Images
	}

	return &Decoded{Kind: kind, Post: out}
}

func (c *MarkerCodec) decodeMembership(repoDID string, post atsocial.FeedPost) *Decoded {
	lines := strings.Split(post.Text, "\n")
	target := strings.TrimSpace(strings.TrimPrefix(lines[0], schemas.MarkerGroupJoin))
	if _, _, _, err := atsocial.ParseATURI(target); err != nil {
		return nil
	}

	role := domain.RoleMember
	if m := reRole.FindStringSubmatch(post.Text); m != nil {
		role = domain.Role(m[1])
	}

	return &Decoded{
		Kind: KindMembership,
		Membership: &domain.Membership{
			GroupURI:  target,
			Role:      role,
			JoinedAt:  post.CreatedAt,
			MemberDID: repoDID,
		},
	}
}

func (c *MarkerCodec) decodeFollow(repoDID string, post atsocial.FeedPost) *Decoded {
	lines := strings.Split(post.Text, "\n")
	target := strings.TrimSpace(strings.TrimPrefix(lines[0], schemas.MarkerPageFollow))
	if _, _, _, err := atsocial.ParseATURI(target); err != nil {
		return nil
	}

	return &Decoded{
		Kind: KindFollow,
		Follow: &domain.Follow{
			PageURI:     target,
			FollowedAt:  post.CreatedAt,
			FollowerDID: repoDID,
		},
	}
}

package schemas

// Native collections of the remote host.
const (
	CollectionFeedPost    string = "app.bsky.feed.post"
	CollectionFeedLike    string = "app.bsky.feed.like"
	CollectionFeedRepost  string = "app.bsky.feed.repost"
	CollectionGraphFollow string = "app.bsky.graph.follow"
)

// Custom collections used by the typed codec. The remote host must accept
// unregistered record types for these to be writable.
const (
	CollectionGroup           string = "app.atsocial.group"
	CollectionPage            string = "app.atsocial.page"
	CollectionGroupPost       string = "app.atsocial.group.post"
	CollectionPagePost        string = "app.atsocial.page.post"
	CollectionGroupMembership string = "app.atsocial.group.membership"
	CollectionPageFollow      string = "app.atsocial.page.follow"
	CollectionGroupComment    string = "app.atsocial.group.comment"
	CollectionPageComment     string = "app.atsocial.page.comment"
)

// Markers used by the marker codec. A marker post is an ordinary feed post
// whose first line starts with one of these tokens.
const (
	MarkerGroup      string = "👥 Group:"
	MarkerPage       string = "📄 Page:"
	MarkerGroupPost  string = "📣 Group post:"
	MarkerPagePost   string = "📣 Page post:"
	MarkerGroupJoin  string = "✅ Joined group:"
	MarkerPageFollow string = "➕ Following page:"
)

// LabelNoPromote is self-applied to marker posts to keep them out of
// ordinary feeds. Best effort only: labeled records stay publicly readable.
const LabelNoPromote string = "!no-promote"

const SelfLabelsType string = "com.atproto.label.defs#selfLabels"

const EmbedImagesType string = "app.bsky.embed.images"

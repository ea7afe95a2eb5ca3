// Package usecase holds the application operations: session lifecycle,
// group and page management, and the native timeline surface. Usecases
// compose the transport, the codec and the discovery engine; they own the
// authentication and permission checks.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/atsocial/atsocial"
)

// Signal broadcasts refresh hints after mutations. Implementations are
// best-effort; a lost signal only delays a refetch.
type Signal interface {
	Notify(ctx context.Context, topic string)
}

// ImageUpload is one attachment to be uploaded alongside a post.
type ImageUpload struct {
	Data     []byte
	MimeType string
	Alt      string
}

type noopSignal struct{}

func (noopSignal) Notify(ctx context.Context, topic string) {}

func orNoop(s Signal) Signal {
	if s == nil {
		return noopSignal{}
	}
	return s
}

type multiSignal []Signal

func (m multiSignal) Notify(ctx context.Context, topic string) {
	for _, s := range m {
		s.Notify(ctx, topic)
	}
}

// Signals fans one notification out to several sinks, skipping nils.
func Signals(sigs ...Signal) Signal {
	var out multiSignal
	for _, s := range sigs {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return noopSignal{}
	}
	return out
}

func matchQuery(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func uploadImages(ctx context.Context, transport atsocial.Transport, images []ImageUpload) ([]atsocial.EmbedImage, error) {
	if len(images) == 0 {
		return nil, nil
	}

	out := make([]atsocial.EmbedImage, 0, len(images))
	for _, img := range images {
		blob, err := transport.UploadBlob(ctx, img.Data, img.MimeType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %v", err)
		}
		out = append(out, atsocial.EmbedImage{Alt: img.Alt, Image: *blob})
	}
	return out, nil
}

// replyComment posts a native reply under postURI, resolving record CIDs
// from the repository. parentURI may name a nested comment; empty means a
// top-level comment on the post itself.
func replyComment(ctx context.Context, transport atsocial.Transport, postURI, parentURI, text string) (*atsocial.RecordRef, error) {
	resolve := func(uri string) (*atsocial.RecordEntry, error) {
		repo, collection, rkey, err := atsocial.ParseATURI(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid record uri: %v", err)
		}
		entry, err := transport.GetRecord(ctx, repo, collection, rkey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve record %s: %v", uri, err)
		}
		return entry, nil
	}

	root, err := resolve(postURI)
	if err != nil {
		return nil, err
	}

	parent := root
	if parentURI != "" && parentURI != postURI {
		if parent, err = resolve(parentURI); err != nil {
			return nil, err
		}
	}

	ref, err := transport.Reply(ctx, text, parent.URI, parent.CID, root.URI, root.CID)
	if err != nil {
		return nil, fmt.Errorf("failed to post comment: %v", err)
	}
	return ref, nil
}

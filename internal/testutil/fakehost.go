// Package testutil provides an in-memory stand-in for the remote protocol
// host, implementing the full Transport surface so discovery, usecase and
// store tests can run against realistic repository state.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atsocial/atsocial"
)

type FakeHost struct {
	mu sync.Mutex

	session   *atsocial.Session
	passwords map[string]string
	dids      map[string]string

	// repos: did -> collection -> ordered entries.
	repos    map[string]map[string][]atsocial.RecordEntry
	profiles map[string]atsocial.Profile

	// TimelineAuthors drives account discovery: each listed DID contributes
	// one post to the session's home timeline.
	TimelineAuthors []string

	// FailRepos / FailProfiles simulate per-account transport failures.
	FailRepos    map[string]bool
	FailProfiles map[string]bool

	seq int
}

func NewFakeHost() *FakeHost {
	return &FakeHost{
		passwords:    map[string]string{},
		dids:         map[string]string{},
		repos:        map[string]map[string][]atsocial.RecordEntry{},
		profiles:     map[string]atsocial.Profile{},
		FailRepos:    map[string]bool{},
		FailProfiles: map[string]bool{},
	}
}

// AddAccount registers a login and a profile.
func (f *FakeHost) AddAccount(did, handle, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[handle] = password
	f.dids[handle] = did
	f.profiles[did] = atsocial.Profile{DID: did, Handle: handle, DisplayName: handle}
}

// SetSession force-authenticates without a login round trip.
func (f *FakeHost) SetSession(did, handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &atsocial.Session{DID: did, Handle: handle, AccessJwt: "access", RefreshJwt: "refresh"}
}

// PutEntry writes a raw entry directly into a repository, bypassing the
// session. Used to seed other accounts' repos.
func (f *FakeHost) PutEntry(repo, collection, rkey string, value any) atsocial.RecordRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(repo, collection, rkey, value)
}

func (f *FakeHost) putLocked(repo, collection, rkey string, value any) atsocial.RecordRef {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal record: %v", err))
	}

	entry := atsocial.RecordEntry{
		URI:   atsocial.ComposeATURI(repo, collection, rkey),
		CID:   atsocial.GetHash(raw),
		Value: raw,
	}

	if f.repos[repo] == nil {
		f.repos[repo] = map[string][]atsocial.RecordEntry{}
	}
	entries := f.repos[repo][collection]
	for i, e := range entries {
		if e.URI == entry.URI {
			entries[i] = entry
			return atsocial.RecordRef{URI: entry.URI, CID: entry.CID}
		}
	}
	f.repos[repo][collection] = append(entries, entry)

	return atsocial.RecordRef{URI: entry.URI, CID: entry.CID}
}

func (f *FakeHost) nextKey() string {
	f.seq++
	return fmt.Sprintf("rkey%04d", f.seq)
}

// --- Transport ---

func (f *FakeHost) Login(ctx context.Context, identifier, secret string) (*atsocial.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pw, ok := f.passwords[identifier]
	if !ok || pw != secret {
		return nil, fmt.Errorf("invalid identifier or password")
	}

	f.session = &atsocial.Session{
		DID:        f.dids[identifier],
		Handle:     identifier,
		AccessJwt:  "access",
		RefreshJwt: "refresh",
	}
	return f.session, nil
}

func (f *FakeHost) RestoreSession(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session != nil, nil
}

func (f *FakeHost) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	return nil
}

func (f *FakeHost) GetSession() *atsocial.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *FakeHost) GetTimeline(ctx context.Context, limit int, cursor string) (*atsocial.Timeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}

	tl := &atsocial.Timeline{}
	for i, did := range f.TimelineAuthors {
		if limit > 0 && i >= limit {
			break
		}
		tl.Items = append(tl.Items, atsocial.TimelineItem{
			Post: atsocial.FeedView{
				URI:    atsocial.ComposeATURI(did, "app.bsky.feed.post", fmt.Sprintf("tl%d", i)),
				Author: f.profileLocked(did),
				Record: atsocial.FeedPost{Text: "timeline post", CreatedAt: time.Now()},
			},
		})
	}
	return tl, nil
}

func (f *FakeHost) profileLocked(did string) atsocial.Profile {
	if p, ok := f.profiles[did]; ok {
		return p
	}
	return atsocial.Profile{DID: did, Handle: did}
}

func (f *FakeHost) CreatePost(ctx context.Context, text string, images []atsocial.Blob) (*atsocial.RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	ref := f.putLocked(f.session.DID, "app.bsky.feed.post", f.nextKey(), atsocial.FeedPost{Text: text, CreatedAt: time.Now()})
	return &ref, nil
}

func (f *FakeHost) LikePost(ctx context.Context, uri, cid string) (*atsocial.RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	ref := f.putLocked(f.session.DID, "app.bsky.feed.like", f.nextKey(), map[string]any{"subject": map[string]string{"uri": uri, "cid": cid}})
	return &ref, nil
}

func (f *FakeHost) Repost(ctx context.Context, uri, cid string) (*atsocial.RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	ref := f.putLocked(f.session.DID, "app.bsky.feed.repost", f.nextKey(), map[string]any{"subject": map[string]string{"uri": uri, "cid": cid}})
	return &ref, nil
}

func (f *FakeHost) Reply(ctx context.Context, text, parentURI, parentCID, rootURI, rootCID string) (*atsocial.RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if rootURI == "" {
		rootURI, rootCID = parentURI, parentCID
	}
	post := atsocial.FeedPost{
		Text:      text,
		CreatedAt: time.Now(),
		Reply: &atsocial.ReplyRef{
			Root:   atsocial.RecordRef{URI: rootURI, CID: rootCID},
			Parent: atsocial.RecordRef{URI: parentURI, CID: parentCID},
		},
	}
	ref := f.putLocked(f.session.DID, "app.bsky.feed.post", f.nextKey(), post)
	return &ref, nil
}

func (f *FakeHost) GetPostThread(ctx context.Context, uri string) (*atsocial.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, repo, err := f.findLocked(uri)
	if err != nil {
		return nil, err
	}

	return f.threadLocked(entry, repo), nil
}

func (f *FakeHost) threadLocked(entry atsocial.RecordEntry, repo string) *atsocial.Thread {
	var post atsocial.FeedPost
	_ = json.Unmarshal(entry.Value, &post)

	th := &atsocial.Thread{
		Post: atsocial.FeedView{
			URI:    entry.URI,
			CID:    entry.CID,
			Author: f.profileLocked(repo),
			Record: post,
		},
	}

	for did, collections := range f.repos {
		for _, e := range collections["app.bsky.feed.post"] {
			var p atsocial.FeedPost
			if json.Unmarshal(e.Value, &p) != nil || p.Reply == nil {
				continue
			}
			if p.Reply.Parent.URI == entry.URI {
				th.Replies = append(th.Replies, *f.threadLocked(e, did))
			}
		}
	}
	return th
}

func (f *FakeHost) findLocked(uri string) (atsocial.RecordEntry, string, error) {
	repo, collection, _, err := atsocial.ParseATURI(uri)
	if err != nil {
		return atsocial.RecordEntry{}, "", err
	}
	for _, e := range f.repos[repo][collection] {
		if e.URI == uri {
			return e, repo, nil
		}
	}
	return atsocial.RecordEntry{}, "", fmt.Errorf("record not found: %s", uri)
}

func (f *FakeHost) FollowUser(ctx context.Context, did string) (*atsocial.RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	ref := f.putLocked(f.session.DID, "app.bsky.graph.follow", f.nextKey(), map[string]string{"subject": did})
	return &ref, nil
}

func (f *FakeHost) UnfollowUser(ctx context.Context, followURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo, collection, _, err := atsocial.ParseATURI(followURI)
	if err != nil {
		return err
	}
	entries := f.repos[repo][collection]
	for i, e := range entries {
		if e.URI == followURI {
			f.repos[repo][collection] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record not found: %s", followURI)
}

func (f *FakeHost) GetProfile(ctx context.Context, actor string) (*atsocial.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailProfiles[actor] {
		return nil, fmt.Errorf("profile fetch failed for %s", actor)
	}
	if p, ok := f.profiles[actor]; ok {
		return &p, nil
	}
	return nil, fmt.Errorf("profile not found: %s", actor)
}

func (f *FakeHost) SearchUsers(ctx context.Context, query string, limit int) ([]atsocial.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := strings.ToLower(query)
	var out []atsocial.Profile
	for _, p := range f.profiles {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(p.Handle), q) || strings.Contains(strings.ToLower(p.DisplayName), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (f *FakeHost) CreateRecord(ctx context.Context, collection, rkey string, value any) (*atsocial.RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	ref := f.putLocked(f.session.DID, collection, rkey, value)
	return &ref, nil
}

func (f *FakeHost) PutRecord(ctx context.Context, collection, rkey string, value any) (*atsocial.RecordRef, error) {
	return f.CreateRecord(ctx, collection, rkey, value)
}

func (f *FakeHost) GetRecord(ctx context.Context, repo, collection, rkey string) (*atsocial.RecordEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRepos[repo] {
		return nil, fmt.Errorf("repository unavailable: %s", repo)
	}
	entry, _, err := f.findLocked(atsocial.ComposeATURI(repo, collection, rkey))
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (f *FakeHost) ListRecords(ctx context.Context, repo, collection string, limit int) ([]atsocial.RecordEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRepos[repo] {
		return nil, fmt.Errorf("repository unavailable: %s", repo)
	}

	entries := f.repos[repo][collection]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]atsocial.RecordEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (f *FakeHost) UploadBlob(ctx context.Context, data []byte, mimeType string) (*atsocial.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	return &atsocial.Blob{
		Ref:      atsocial.GetHash(data),
		MimeType: mimeType,
		Size:     int64(len(data)),
	}, nil
}

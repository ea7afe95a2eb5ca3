// Package client is the HTTP transport adapter: it speaks the remote host's
// XRPC surface and implements the Transport interface everything else is
// built on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/schemas"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	host   string
	client *http.Client

	profiles ProfileCache
	store    atsocial.SessionStore

	mu      sync.RWMutex
	session *atsocial.Session
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

func WithProfileCache(p ProfileCache) Option {
	return func(c *Client) { c.profiles = p }
}

// New builds a client against host ("https://bsky.social" or a compatible
// substitute). store may be nil; sessions are then process-local.
func New(host string, store atsocial.SessionStore, opts ...Option) *Client {
	c := &Client{
		host:     host,
		client:   &http.Client{Timeout: defaultTimeout},
		profiles: NewMemoryCache(0),
		store:    store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, nsid string, params url.Values, body io.Reader, contentType string, out any) error {
	endpoint := c.host + "/xrpc/" + nsid
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session != nil {
		req.Header.Set("Authorization", "Bearer "+session.AccessJwt)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s (status %d)", nsid, apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("%s: unexpected status code: %d", nsid, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, nsid string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, nsid, params, nil, "", out)
}

func (c *Client) post(ctx context.Context, nsid string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}
	return c.do(ctx, http.MethodPost, nsid, nil, bytes.NewReader(raw), "application/json", out)
}

// --- session lifecycle ---

func (c *Client) Login(ctx context.Context, identifier, secret string) (*atsocial.Session, error) {
	var session atsocial.Session
	err := c.post(ctx, "com.atproto.server.createSession", map[string]string{
		"identifier": identifier,
		"password":   secret,
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}

	c.mu.Lock()
	c.session = &session
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, &session); err != nil {
			slog.ErrorContext(ctx, "failed to persist session",
				slog.String("error", err.Error()),
				slog.String("module", "client"),
			)
		}
	}

	return &session, nil
}

// RestoreSession loads the stored session and validates it against the host.
// A rejected session is cleared and reported as absent.
func (c *Client) RestoreSession(ctx context.Context) (bool, error) {
	if c.store == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.session != nil, nil
	}

	stored, err := c.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load stored session: %v", err)
	}
	if stored == nil {
		return false, nil
	}

	c.mu.Lock()
	c.session = stored
	c.mu.Unlock()

	if err := c.get(ctx, "com.atproto.server.getSession", nil, &struct{}{}); err != nil {
		slog.InfoContext(ctx, "stored session rejected by host",
			slog.String("error", err.Error()),
			slog.String("module", "client"),
		)
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		if cerr := c.store.Clear(ctx); cerr != nil {
			slog.ErrorContext(ctx, "failed to clear stale session",
				slog.String("error", cerr.Error()),
				slog.String("module", "client"),
			)
		}
		return false, nil
	}

	return true, nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear stored session: %v", err)
		}
	}
	return nil
}

func (c *Client) GetSession() *atsocial.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) sessionDID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return "", fmt.Errorf("not authenticated")
	}
	return c.session.DID, nil
}

// --- feed surface ---

func (c *Client) GetTimeline(ctx context.Context, limit int, cursor string) (*atsocial.Timeline, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var timeline atsocial.Timeline
	if err := c.get(ctx, "app.bsky.feed.getTimeline", params, &timeline); err != nil {
		return nil, fmt.Errorf("failed to get timeline: %v", err)
	}
	return &timeline, nil
}

func (c *Client) CreatePost(ctx context.Context, text string, images []atsocial.Blob) (*atsocial.RecordRef, error) {
	post := atsocial.FeedPost{
		Type:      schemas.CollectionFeedPost,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if len(images) > 0 {
		embeds := make([]atsocial.EmbedImage, 0, len(images))
		for _, img := range images {
			embeds = append(embeds, atsocial.EmbedImage{Image: img})
		}
		post.Embed = &atsocial.EmbedImages{Type: schemas.EmbedImagesType, Images: embeds}
	}

	return c.CreateRecord(ctx, schemas.CollectionFeedPost, "", post)
}

type subjectRecord struct {
	Type      string             `json:"$type"`
	Subject   atsocial.RecordRef `json:"subject"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (c *Client) LikePost(ctx context.Context, uri, cid string) (*atsocial.RecordRef, error) {
	return c.CreateRecord(ctx, schemas.CollectionFeedLike, "", subjectRecord{
		Type:      schemas.CollectionFeedLike,
		Subject:   atsocial.RecordRef{URI: uri, CID: cid},
		CreatedAt: time.Now(),
	})
}

func (c *Client) Repost(ctx context.Context, uri, cid string) (*atsocial.RecordRef, error) {
	return c.CreateRecord(ctx, schemas.CollectionFeedRepost, "", subjectRecord{
		Type:      schemas.CollectionFeedRepost,
		Subject:   atsocial.RecordRef{URI: uri, CID: cid},
		CreatedAt: time.Now(),
	})
}

func (c *Client) Reply(ctx context.Context, text, parentURI, parentCID, rootURI, rootCID string) (*atsocial.RecordRef, error) {
	if rootURI == "" {
		rootURI, rootCID = parentURI, parentCID
	}

	post := atsocial.FeedPost{
		Type:      schemas.CollectionFeedPost,
		Text:      text,
		CreatedAt: time.Now(),
		Reply: &atsocial.ReplyRef{
			Root:   atsocial.RecordRef{URI: rootURI, CID: rootCID},
			Parent: atsocial.RecordRef{URI: parentURI, CID: parentCID},
		},
	}
	return c.CreateRecord(ctx, schemas.CollectionFeedPost, "", post)
}

func (c *Client) GetPostThread(ctx context.Context, uri string) (*atsocial.Thread, error) {
	params := url.Values{}
	params.Set("uri", uri)

	var response struct {
		Thread atsocial.Thread `json:"thread"`
	}
	if err := c.get(ctx, "app.bsky.feed.getPostThread", params, &response); err != nil {
		return nil, fmt.Errorf("failed to get thread: %v", err)
	}
	return &response.Thread, nil
}

// --- graph surface ---

type followRecord struct {
	Type      string    `json:"$type"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Client) FollowUser(ctx context.Context, did string) (*atsocial.RecordRef, error) {
	return c.CreateRecord(ctx, schemas.CollectionGraphFollow, "", followRecord{
		Type:      schemas.CollectionGraphFollow,
		Subject:   did,
		CreatedAt: time.Now(),
	})
}

func (c *Client) UnfollowUser(ctx context.Context, followURI string) error {
	repo, collection, rkey, err := atsocial.ParseATURI(followURI)
	if err != nil {
		return fmt.Errorf("invalid follow uri: %v", err)
	}

	did, err := c.sessionDID()
	if err != nil {
		return err
	}
	if repo != did {
		return fmt.Errorf("follow record belongs to another repository")
	}

	err = c.post(ctx, "com.atproto.repo.deleteRecord", map[string]string{
		"repo":       repo,
		"collection": collection,
		"rkey":       rkey,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete follow record: %v", err)
	}
	return nil
}

func (c *Client) GetProfile(ctx context.Context, actor string) (*atsocial.Profile, error) {
	if cached, found := c.profiles.Get(actor); found {
		return cached, nil
	}

	params := url.Values{}
	params.Set("actor", actor)

	var profile atsocial.Profile
	if err := c.get(ctx, "app.bsky.actor.getProfile", params, &profile); err != nil {
		return nil, fmt.Errorf("failed to get profile: %v", err)
	}

	c.profiles.Set(actor, &profile)
	return &profile, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]atsocial.Profile, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Actors []atsocial.Profile `json:"actors"`
	}
	if err := c.get(ctx, "app.bsky.actor.searchActors", params, &response); err != nil {
		return nil, fmt.Errorf("failed to search users: %v", err)
	}
	return response.Actors, nil
}

// --- raw repository surface ---

func (c *Client) CreateRecord(ctx context.Context, collection, rkey string, value any) (*atsocial.RecordRef, error) {
	did, err := c.sessionDID()
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"repo":       did,
		"collection": collection,
		"record":     value,
	}
	if rkey != "" {
		body["rkey"] = rkey
	}

	var ref atsocial.RecordRef
	if err := c.post(ctx, "com.atproto.repo.createRecord", body, &ref); err != nil {
		return nil, fmt.Errorf("failed to create record: %v", err)
	}
	return &ref, nil
}

func (c *Client) PutRecord(ctx context.Context, collection, rkey string, value any) (*atsocial.RecordRef, error) {
	did, err := c.sessionDID()
	if err != nil {
		return nil, err
	}

	var ref atsocial.RecordRef
	err = c.post(ctx, "com.atproto.repo.putRecord", map[string]any{
		"repo":       did,
		"collection": collection,
		"rkey":       rkey,
		"record":     value,
	}, &ref)
	if err != nil {
		return nil, fmt.Errorf("failed to put record: %v", err)
	}
	return &ref, nil
}

func (c *Client) GetRecord(ctx context.Context, repo, collection, rkey string) (*atsocial.RecordEntry, error) {
	params := url.Values{}
	params.Set("repo", repo)
	params.Set("collection", collection)
	params.Set("rkey", rkey)

	var entry atsocial.RecordEntry
	if err := c.get(ctx, "com.atproto.repo.getRecord", params, &entry); err != nil {
		return nil, fmt.Errorf("failed to get record: %v", err)
	}
	return &entry, nil
}

func (c *Client) ListRecords(ctx context.Context, repo, collection string, limit int) ([]atsocial.RecordEntry, error) {
	params := url.Values{}
	params.Set("repo", repo)
	params.Set("collection", collection)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Records []atsocial.RecordEntry `json:"records"`
	}
	if err := c.get(ctx, "com.atproto.repo.listRecords", params, &response); err != nil {
		return nil, fmt.Errorf("failed to list records: %v", err)
	}
	return response.Records, nil
}

func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*atsocial.Blob, error) {
	var response struct {
		Blob atsocial.Blob `json:"blob"`
	}
	err := c.do(ctx, http.MethodPost, "com.atproto.repo.uploadBlob", nil, bytes.NewReader(data), mimeType, &response)
	if err != nil {
		return nil, fmt.Errorf("failed to upload blob: %v", err)
	}
	return &response.Blob, nil
}

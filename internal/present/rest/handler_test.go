package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/atsocial/atsocial/internal/codec"
	"github.com/atsocial/atsocial/internal/discovery"
	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/state"
	"github.com/atsocial/atsocial/internal/testutil"
	"github.com/atsocial/atsocial/internal/usecase"
)

const (
	aliceDID = "did:plc:alice"
	bobDID   = "did:plc:bob"
)

func newServer(t *testing.T) (*testutil.FakeHost, *echo.Echo) {
	t.Helper()
	host := testutil.NewFakeHost()
	host.AddAccount(aliceDID, "alice.test", "hunter2")
	host.AddAccount(bobDID, "bob.test", "hunter2")

	c := codec.NewMarkerCodec()
	engine := discovery.NewEngine(host, c, discovery.Options{})

	hub := state.NewHub()
	timeline := usecase.NewTimelineUsecase(host, hub)
	groups := usecase.NewGroupUsecase(host, c, engine, hub)
	pages := usecase.NewPageUsecase(host, c, engine, hub)
	views := state.NewViews(hub, groups, pages, timeline, 10)

	h := NewHandler(
		usecase.NewSessionUsecase(host),
		timeline,
		groups,
		pages,
		views,
		nil,
	)

	e := echo.New()
	h.RegisterRoutes(e)
	return host, e
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)
	return res
}

func TestHandleLogin(t *testing.T) {
	_, e := newServer(t)

	res := doJSON(t, e, http.MethodPost, "/api/v1/session", map[string]string{
		"identifier": "alice.test",
		"password":   "hunter2",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var session struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &session); err != nil {
		t.Fatal(err)
	}
	if session.DID != aliceDID {
		t.Errorf("expected alice's did, got %s", session.DID)
	}
}

func TestHandleLoginRejected(t *testing.T) {
	_, e := newServer(t)

	res := doJSON(t, e, http.MethodPost, "/api/v1/session", map[string]string{
		"identifier": "alice.test",
		"password":   "wrong",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestHandleTimelineUnauthenticated(t *testing.T) {
	_, e := newServer(t)

	res := doJSON(t, e, http.MethodGet, "/api/v1/timeline", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d: %s", res.Code, res.Body.String())
	}
}

func TestHandleGroupLifecycle(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")

	res := doJSON(t, e, http.MethodPost, "/api/v1/groups", map[string]string{
		"name":        "Book Club",
		"description": "weekly reads",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("create: expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var created domain.Group
	if err := json.Unmarshal(res.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.URI == "" {
		t.Fatal("created group must carry its uri")
	}

	res = doJSON(t, e, http.MethodGet, "/api/v1/groups", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d", res.Code)
	}
	var listed struct {
		Loading bool           `json:"loading"`
		Error   string         `json:"error"`
		Data    []domain.Group `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if listed.Error != "" {
		t.Fatalf("list must succeed, got error %q", listed.Error)
	}
	groups := listed.Data
	if len(groups) != 1 || groups[0].Name != "Book Club" {
		t.Fatalf("expected the created group, got %+v", groups)
	}
	if !groups[0].Joined || !groups[0].Admin {
		t.Errorf("creator must appear joined and admin, got %+v", groups[0])
	}

	res = doJSON(t, e, http.MethodGet, "/api/v1/groups/get?uri="+created.URI, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var fetched domain.Group
	if err := json.Unmarshal(res.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.URI != created.URI || fetched.Name != "Book Club" {
		t.Fatalf("expected the created group back, got %+v", fetched)
	}

	res = doJSON(t, e, http.MethodPost, "/api/v1/groups/posts", map[string]string{
		"uri":  created.URI,
		"text": "first meeting on friday",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("post: expected 200 got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, e, http.MethodGet, "/api/v1/groups/posts?uri="+created.URI, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("posts: expected 200 got %d", res.Code)
	}
	var posts []domain.EntityPost
	if err := json.Unmarshal(res.Body.Bytes(), &posts); err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].Text != "first meeting on friday" {
		t.Fatalf("expected the post back, got %+v", posts)
	}
}

func TestHandleGroupValidation(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")

	res := doJSON(t, e, http.MethodPost, "/api/v1/groups", map[string]string{"description": "no name"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandleRemoveGroupMemberNotImplemented(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")

	res := doJSON(t, e, http.MethodDelete, "/api/v1/groups/members?uri=x&did=y", nil)
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 got %d: %s", res.Code, res.Body.String())
	}
}

func TestHandlePagePostForbidden(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")

	res := doJSON(t, e, http.MethodPost, "/api/v1/pages", map[string]string{"name": "Corner Bakery"})
	if res.Code != http.StatusOK {
		t.Fatalf("create: expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var page domain.Page
	if err := json.Unmarshal(res.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}

	host.SetSession(bobDID, "bob.test")
	res = doJSON(t, e, http.MethodPost, "/api/v1/pages/posts", map[string]any{
		"page": page,
		"text": "spam",
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", res.Code, res.Body.String())
	}
}

func TestHandleSessionLifecycle(t *testing.T) {
	host, e := newServer(t)

	res := doJSON(t, e, http.MethodGet, "/api/v1/session", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", res.Code)
	}

	host.SetSession(aliceDID, "alice.test")
	res = doJSON(t, e, http.MethodGet, "/api/v1/session", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with a session, got %d", res.Code)
	}

	res = doJSON(t, e, http.MethodDelete, "/api/v1/session", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("logout: expected 200 got %d", res.Code)
	}
	if host.GetSession() != nil {
		t.Error("logout must clear the session")
	}
}

func TestHandleUserSearch(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")

	res := doJSON(t, e, http.MethodGet, "/api/v1/users/search?q=bob", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var users []struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].DID != bobDID {
		t.Fatalf("expected bob, got %+v", users)
	}

	res = doJSON(t, e, http.MethodGet, "/api/v1/users/search", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a query, got %d", res.Code)
	}
}

func TestHandleGroupFetchNotFound(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")

	res := doJSON(t, e, http.MethodGet, "/api/v1/groups/get?uri=at://"+aliceDID+"/app.bsky.feed.post/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", res.Code, res.Body.String())
	}
}

func TestHandleTimelineSnapshot(t *testing.T) {
	host, e := newServer(t)
	host.SetSession(aliceDID, "alice.test")
	host.TimelineAuthors = []string{bobDID}

	res := doJSON(t, e, http.MethodGet, "/api/v1/timeline", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var view struct {
		Loading bool              `json:"loading"`
		Error   string            `json:"error"`
		Feed    []json.RawMessage `json:"feed"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Error != "" {
		t.Fatalf("expected a clean fetch, got error %q", view.Error)
	}
	if len(view.Feed) != 1 {
		t.Fatalf("expected 1 feed item, got %d", len(view.Feed))
	}
}

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/atsocial/atsocial"
)

func sessionJSON() map[string]string {
	return map[string]string{
		"did":        "did:plc:alice",
		"handle":     "alice.test",
		"accessJwt":  "access-token",
		"refreshJwt": "refresh-token",
	}
}

func TestClientLoginSetsAuthHeader(t *testing.T) {
	var sawAuth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body["identifier"] != "alice.test" || body["password"] != "hunter2" {
			t.Errorf("unexpected credentials: %v", body)
		}
		json.NewEncoder(w).Encode(sessionJSON())
	})
	mux.HandleFunc("/xrpc/app.bsky.actor.getProfile", func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(atsocial.Profile{DID: r.URL.Query().Get("actor"), Handle: "alice.test"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	ctx := context.Background()

	session, err := c.Login(ctx, "alice.test", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if session.DID != "did:plc:alice" {
		t.Errorf("unexpected did %s", session.DID)
	}
	if c.GetSession() == nil {
		t.Fatal("login must leave an active session")
	}

	if _, err := c.GetProfile(ctx, "did:plc:alice"); err != nil {
		t.Fatal(err)
	}
	if got := sawAuth.Load(); got != "Bearer access-token" {
		t.Errorf("expected bearer auth on authenticated calls, got %v", got)
	}
}

func TestClientLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "AuthenticationRequired", "message": "Invalid identifier or password"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.Login(context.Background(), "alice.test", "wrong")
	if err == nil {
		t.Fatal("bad credentials must fail")
	}
	if c.GetSession() != nil {
		t.Error("a failed login must not leave a session")
	}
}

func TestClientProfileCaching(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/app.bsky.actor.getProfile", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(atsocial.Profile{DID: "did:plc:alice", Handle: "alice.test"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	ctx := context.Background()

	for range 3 {
		if _, err := c.GetProfile(ctx, "did:plc:alice"); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("repeat lookups must hit the cache, saw %d requests", hits.Load())
	}
}

func TestClientCreateRecordRequiresSession(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.CreateRecord(context.Background(), "app.bsky.feed.post", "", map[string]string{"text": "hi"})
	if err == nil {
		t.Fatal("writes without a session must fail")
	}
}

func TestClientListRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.repo.listRecords", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("repo") != "did:plc:alice" || q.Get("collection") != "app.bsky.feed.post" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("limit") != "50" {
			t.Errorf("expected limit 50, got %q", q.Get("limit"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"uri": "at://did:plc:alice/app.bsky.feed.post/1", "cid": "cid1", "value": map[string]string{"text": "hello"}},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	entries, err := c.ListRecords(context.Background(), "did:plc:alice", "app.bsky.feed.post", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].CID != "cid1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestClientSearchUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/app.bsky.actor.searchActors", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "alice" {
			t.Errorf("expected q=alice, got %q", q.Get("q"))
		}
		if q.Get("limit") != "25" {
			t.Errorf("expected limit 25, got %q", q.Get("limit"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"actors": []map[string]string{
				{"did": "did:plc:alice", "handle": "alice.test"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	users, err := c.SearchUsers(context.Background(), "alice", 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].DID != "did:plc:alice" {
		t.Fatalf("unexpected result %+v", users)
	}
}

func TestClientErrorMessageSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.repo.getRecord", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "RecordNotFound", "message": "Could not locate record"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetRecord(context.Background(), "did:plc:alice", "app.bsky.feed.post", "x")
	if err == nil {
		t.Fatal("expected an error")
	}
	if want := "Could not locate record"; !strings.Contains(err.Error(), want) {
		t.Errorf("host message must surface, got %q", err.Error())
	}
}

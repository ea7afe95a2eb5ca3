package atsocial

import "testing"

func TestParseATURI(t *testing.T) {
	repo, collection, rkey, err := ParseATURI("at://did:plc:abc123/app.bsky.feed.post/3kxyz")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if repo != "did:plc:abc123" {
		t.Fatalf("expected repo did:plc:abc123 got %s", repo)
	}
	if collection != "app.bsky.feed.post" {
		t.Fatalf("expected collection app.bsky.feed.post got %s", collection)
	}
	if rkey != "3kxyz" {
		t.Fatalf("expected rkey 3kxyz got %s", rkey)
	}
}

func TestParseATURIRejectsGarbage(t *testing.T) {
	cases := []string{
		"https://example.com/foo",
		"at://",
		"at://did:plc:abc123",
		"at://did:plc:abc123/app.bsky.feed.post",
		"at://did:plc:abc123//rkey",
	}
	for _, c := range cases {
		if _, _, _, err := ParseATURI(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestComposeParseRoundTrip(t *testing.T) {
	uri := ComposeATURI("did:plc:abc", "app.atsocial.group", "key1")
	repo, collection, rkey, err := ParseATURI(uri)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if repo != "did:plc:abc" || collection != "app.atsocial.group" || rkey != "key1" {
		t.Fatalf("round trip mismatch: %s %s %s", repo, collection, rkey)
	}
}

func TestIsDID(t *testing.T) {
	if !IsDID("did:plc:abc123") {
		t.Fatalf("expected did:plc:abc123 to be a DID")
	}
	if IsDID("alice.example.com") {
		t.Fatalf("expected handle to not be a DID")
	}
	if IsDID("did:") {
		t.Fatalf("expected bare prefix to not be a DID")
	}
}

func TestGetHashStable(t *testing.T) {
	a := GetHash([]byte("group-join:at://did:plc:abc/app.atsocial.group/k"))
	b := GetHash([]byte("group-join:at://did:plc:abc/app.atsocial.group/k"))
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("unexpected hash length %d", len(a))
	}
	if a == GetHash([]byte("other")) {
		t.Fatalf("distinct inputs collided")
	}
}

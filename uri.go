package atsocial

import (
	"fmt"
	"strings"
)

const uriScheme = "at://"

// ParseATURI splits an at:// resource identifier into repo, collection and
// record key.
func ParseATURI(uri string) (repo, collection, rkey string, err error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", "", "", fmt.Errorf("unsupported uri scheme: %s", uri)
	}

	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid uri: %s", uri)
	}

	return parts[0], parts[1], parts[2], nil
}

// ComposeATURI builds the at:// identifier for a record.
func ComposeATURI(repo, collection, rkey string) string {
	return uriScheme + repo + "/" + collection + "/" + rkey
}

// IsDID reports whether s looks like a durable account identifier rather
// than a handle.
func IsDID(s string) bool {
	return strings.HasPrefix(s, "did:") && strings.Count(s, ":") >= 2
}

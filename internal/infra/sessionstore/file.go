// Package sessionstore provides SessionStore backends: a JSON file for
// single-user desktop use and redis for shared deployments.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atsocial/atsocial"
)

// FileStore keeps the session as a JSON file, readable only by the owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(ctx context.Context, session *atsocial.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %v", err)
	}

	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %v", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*atsocial.Session, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %v", err)
	}

	var session atsocial.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		// A corrupt file is as good as no session.
		return nil, nil
	}
	return &session, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %v", err)
	}
	return nil
}

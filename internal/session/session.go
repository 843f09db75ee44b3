// Package session drives the terminal frontend's authentication lifecycle.
// A session moves through four phases:
//
//	Uninitialized -> Anonymous            (no stored session)
//	Uninitialized -> NeedsProfile | Ready (stored session restored)
//	Anonymous     -> NeedsProfile | Ready (login / register)
//	NeedsProfile  -> Ready                (profile saved)
//	any           -> Anonymous            (logout, expired token)
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseAnonymous     Phase = "anonymous"
	PhaseNeedsProfile  Phase = "needs_profile"
	PhaseReady         Phase = "ready"
)

// Authenticated reports whether the phase carries a logged-in user.
func (p Phase) Authenticated() bool {
	return p == PhaseNeedsProfile || p == PhaseReady
}

// Session is the locally persisted login state. HasProfile is stored so a
// restored session lands in the right phase without a round trip.
type Session struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Token      string `json:"token"`
	HasProfile bool   `json:"hasProfile"`
}

// FileStore persists the session as a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored session, or nil when none exists.
func (s *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}

func (s *FileStore) Save(sess Session) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the stored session. A missing file is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

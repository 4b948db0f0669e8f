// Package summarystore persists per-session SessionSummary records as JSON
// files, one stable file per session id.
package summarystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/memchat/memchat/internal/chat"
)

// Store is a file-backed summary store. Saves are atomic (write to a temp
// file, then rename), so a concurrent reader never observes a partially
// written record. Independent sessions map to independent files; no global
// lock is needed.
type Store struct {
	baseDir string
}

// New creates a Store rooted at baseDir, creating the directory if needed.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("summarystore: mkdir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the store's base directory.
func (s *Store) Dir() string {
	return s.baseDir
}

func (s *Store) path(sessionID string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) {
		return "", fmt.Errorf("summarystore: invalid session id %q", sessionID)
	}
	return filepath.Join(s.baseDir, sessionID+".json"), nil
}

// Save persists the summary for a session, wholly replacing any previous
// record.
func (s *Store) Save(sessionID string, summary *chat.SessionSummary) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("summarystore: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("summarystore: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("summarystore: rename: %w", err)
	}
	return nil
}

// Load returns the stored summary for a session, or (nil, nil) when none
// exists.
func (s *Store) Load(sessionID string) (*chat.SessionSummary, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("summarystore: read: %w", err)
	}

	summary, err := chat.DecodeSummary(data)
	if err != nil {
		return nil, fmt.Errorf("summarystore: %w", err)
	}
	return summary, nil
}

// Delete removes the stored summary for a session. Deleting a missing
// record is not an error.
func (s *Store) Delete(sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("summarystore: delete: %w", err)
	}
	return nil
}

// SessionIDs lists all session ids with a stored summary.
func (s *Store) SessionIDs() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("summarystore: list: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

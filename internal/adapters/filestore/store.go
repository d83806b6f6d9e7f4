package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// Store persists finished sessions as one pretty-printed JSON document
// per session, named refinery_<session_id>.json, under a single
// directory. It implements ports.SessionRepository for deployments that
// run without a database.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates the output directory if needed and returns the store.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the given session is (or would be) stored.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, "refinery_"+id+".json")
}

// Save writes the session document, replacing any previous version.
func (s *Store) Save(_ context.Context, session *models.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	if err := os.WriteFile(s.Path(session.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}
	return nil
}

// GetByID loads one session document.
func (s *Store) GetByID(_ context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, domain.ErrSessionNotFound
	}
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

// List returns stored sessions newest first. limit <= 0 means no limit.
func (s *Store) List(_ context.Context, limit, offset int) ([]*models.Session, error) {
	pattern := filepath.Join(s.dir, "refinery_*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.dir, err)
	}

	sessions := make([]*models.Session, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "path", path, "error", err)
			continue
		}
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			s.logger.Warn("skipping corrupt session file", "path", path, "error", err)
			continue
		}
		sessions = append(sessions, &session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})

	if offset >= len(sessions) {
		return []*models.Session{}, nil
	}
	sessions = sessions[offset:]
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Delete removes one session document.
func (s *Store) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return domain.ErrSessionNotFound
	}
	if err := os.Remove(s.Path(id)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// validID rejects ids that could escape the store directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

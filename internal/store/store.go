// Package store persists review sessions as JSON files under the
// repository's git metadata directory, one file per PR/MR. Writes are
// atomic (temp file + rename) so a crash mid-save never leaves a corrupt or
// partial session on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/draftreview/internal/gitutil"
	"github.com/draftreview/pkg/models"
)

// ErrNotFound is returned when no session exists for the requested PR/MR.
var ErrNotFound = errors.New("review session not found")

// CorruptError wraps a session file that exists but cannot be decoded.
// Callers may treat it as NotFound and let the user start over; the broken
// file is left in place for inspection.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt review file %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

const (
	reviewsDirName = "reviews"
	archiveDirName = "archive"
)

// Store reads and writes review sessions in a single directory.
type Store struct {
	dir string
}

// New returns a store rooted at the given directory, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating review directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ForRepo returns a store rooted at <git-dir>/reviews for the repository
// containing repoRoot.
func ForRepo(repoRoot string) (*Store, error) {
	gitDir, err := gitutil.GitDir(repoRoot)
	if err != nil {
		return nil, err
	}
	return New(filepath.Join(gitDir, reviewsDirName))
}

// Dir returns the directory the store persists into.
func (s *Store) Dir() string { return s.dir }

func (s *Store) sessionPath(number int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d-review.json", number))
}

// Load reads the session for the given PR/MR number. Returns ErrNotFound if
// no file exists, or a CorruptError if the file cannot be decoded.
func (s *Store) Load(number int) (*models.ReviewSession, error) {
	path := s.sessionPath(number)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var session models.ReviewSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return &session, nil
}

// Save writes the session atomically: the JSON is written to a temp file in
// the same directory and renamed into place.
func (s *Store) Save(session *models.ReviewSession) error {
	session.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	path := s.sessionPath(session.Number)
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%d-review-*.tmp", session.Number))
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s into place: %w", tmpName, err)
	}

	log.Debug().Int("pr", session.Number).Str("path", path).Msg("session saved")
	return nil
}

// Delete removes the session file for the given PR/MR number. Deleting a
// session that does not exist is not an error.
func (s *Store) Delete(number int) error {
	err := os.Remove(s.sessionPath(number))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting session %d: %w", number, err)
	}
	return nil
}

// Archive moves a fully published session out of the active directory into
// reviews/archive, timestamped so repeated reviews of the same PR number do
// not collide.
func (s *Store) Archive(session *models.ReviewSession) error {
	archiveDir := filepath.Join(s.dir, archiveDirName)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	name := fmt.Sprintf("%d-review-%s.json", session.Number, time.Now().UTC().Format("20060102T150405"))
	src := s.sessionPath(session.Number)
	dst := filepath.Join(archiveDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archiving session %d: %w", session.Number, err)
	}

	log.Info().Int("pr", session.Number).Str("path", dst).Msg("session archived")
	return nil
}

// List returns every in-progress session, ordered by PR/MR number. Corrupt
// files are skipped with a warning rather than failing the whole listing.
func (s *Store) List() ([]*models.ReviewSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}

	var sessions []*models.ReviewSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "-review.json") {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), "-review.json"))
		if err != nil {
			continue
		}
		session, err := s.Load(number)
		if err != nil {
			log.Warn().Str("file", entry.Name()).Err(err).Msg("skipping unreadable review file")
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Number < sessions[j].Number })
	return sessions, nil
}

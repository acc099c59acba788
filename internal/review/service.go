// Package review holds the draft model: the mutable, locally persisted
// review session and its comment CRUD operations. It knows nothing about
// diffs or backend wire formats; anchors arrive already resolved and leave
// through the publisher.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/draftreview/internal/store"
	"github.com/draftreview/pkg/models"
)

// ErrCommentNotFound is returned when a local comment ID is unknown.
var ErrCommentNotFound = errors.New("comment not found")

// Service applies draft mutations and persists the session after each one,
// so a crash never loses more than the in-flight keystroke buffer.
type Service struct {
	store *store.Store
}

// NewService returns a draft service persisting through the given store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// StartReview loads the in-progress session for the PR/MR or creates a new
// empty draft. A corrupt session file is treated as absent.
func (s *Service) StartReview(backend models.BackendKind, owner, repo string, number int, baseRef, headRef string) (*models.ReviewSession, error) {
	session, err := s.store.Load(number)
	if err == nil {
		return session, nil
	}

	var corrupt *store.CorruptError
	if !errors.Is(err, store.ErrNotFound) && !errors.As(err, &corrupt) {
		return nil, err
	}
	if corrupt != nil {
		log.Warn().Str("path", corrupt.Path).Msg("existing review file is corrupt, starting a fresh draft")
	}

	session = &models.ReviewSession{
		Backend:   backend,
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		BaseRef:   baseRef,
		HeadRef:   headRef,
		Status:    models.SessionDraft,
		Comments:  []models.Comment{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(session); err != nil {
		return nil, err
	}

	log.Info().Int("pr", number).Str("backend", string(backend)).Msg("review started")
	return session, nil
}

// Load returns the session for the PR/MR number.
func (s *Service) Load(number int) (*models.ReviewSession, error) {
	return s.store.Load(number)
}

// AddComment appends a comment at the given (already resolved) anchor and
// returns its local ID. Comments keep insertion order; multiple comments on
// the same anchor are allowed.
func (s *Service) AddComment(number int, anchor models.Anchor, body string) (string, error) {
	session, err := s.store.Load(number)
	if err != nil {
		return "", err
	}

	comment := models.Comment{
		LocalID:   uuid.NewString(),
		Anchor:    anchor,
		Body:      body,
		Status:    models.CommentDraft,
		CreatedAt: time.Now().UTC(),
	}
	session.Comments = append(session.Comments, comment)

	if err := s.store.Save(session); err != nil {
		return "", err
	}

	log.Debug().Int("pr", number).Str("local_id", comment.LocalID).
		Str("path", anchor.Path).Int("line", anchor.EndLine).Msg("comment added")
	return comment.LocalID, nil
}

// EditComment replaces the body of an existing comment. Editing an unknown
// ID returns ErrCommentNotFound. A previously failed comment returns to
// draft so the next publish retries it, even when the text is unchanged;
// editing a non-failed comment with identical text is a no-op.
func (s *Service) EditComment(number int, localID, body string) error {
	session, err := s.store.Load(number)
	if err != nil {
		return err
	}

	comment := session.CommentByID(localID)
	if comment == nil {
		return fmt.Errorf("%w: %s", ErrCommentNotFound, localID)
	}
	if comment.Body == body && comment.Status != models.CommentFailed {
		return nil
	}

	comment.Body = body
	if comment.Status == models.CommentFailed {
		comment.Status = models.CommentDraft
		comment.FailureReason = ""
	}
	return s.store.Save(session)
}

// DeleteComment removes a comment by local ID. The ID is never reused.
func (s *Service) DeleteComment(number int, localID string) error {
	session, err := s.store.Load(number)
	if err != nil {
		return err
	}

	idx := -1
	for i := range session.Comments {
		if session.Comments[i].LocalID == localID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCommentNotFound, localID)
	}

	session.Comments = append(session.Comments[:idx], session.Comments[idx+1:]...)
	return s.store.Save(session)
}

// SetBody replaces the review's summary body.
func (s *Service) SetBody(number int, body string) error {
	session, err := s.store.Load(number)
	if err != nil {
		return err
	}
	if session.Body == body {
		return nil
	}
	session.Body = body
	return s.store.Save(session)
}

// ListComments returns the session's comments in insertion order.
func (s *Service) ListComments(number int) ([]models.Comment, error) {
	session, err := s.store.Load(number)
	if err != nil {
		return nil, err
	}
	return session.Comments, nil
}

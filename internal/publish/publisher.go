// Package publish turns a draft session into remote API calls exactly once.
// Comments are submitted one at a time in insertion order, the session is
// persisted after every submission, and the review is finalized only when
// everything else succeeded. A crash or failure at any point leaves a
// resumable, inspectable session rather than a half-lost review.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/draftreview/internal/anchor"
	"github.com/draftreview/internal/backends"
	"github.com/draftreview/internal/retry"
	"github.com/draftreview/internal/store"
	"github.com/draftreview/pkg/models"
)

// ErrPublishInProgress is returned when a second publish is attempted while
// one is still running in this process.
var ErrPublishInProgress = errors.New("a publish is already running for this session")

// ErrAlreadyPublished is returned for sessions that have already been fully
// published and archived.
var ErrAlreadyPublished = errors.New("review already published")

// CommentOutcome reports what happened to one comment during a publish run.
type CommentOutcome struct {
	LocalID   string
	Path      string
	Line      int
	Status    models.CommentStatus
	BackendID string
	Reason    string
}

// Result is the structured outcome of one publish invocation.
type Result struct {
	Status    models.SessionStatus
	ReviewID  string
	Finalized bool
	Comments  []CommentOutcome
}

// Publisher drives a backend adapter over a session.
type Publisher struct {
	store    *store.Store
	resolver *anchor.Resolver
	backend  backends.Backend
	retryCfg retry.Config
	running  atomic.Bool
}

// New returns a publisher for one backend.
func New(st *store.Store, resolver *anchor.Resolver, backend backends.Backend, retryCfg retry.Config) *Publisher {
	return &Publisher{
		store:    st,
		resolver: resolver,
		backend:  backend,
		retryCfg: retryCfg,
	}
}

// Publish submits the session's unsent comments and, if everything is
// submitted, finalizes the review and archives the session. It is safe to
// re-run after a partial failure: comments already submitted are never sent
// again, and remote comments are never rolled back.
func (p *Publisher) Publish(ctx context.Context, repoRoot string, session *models.ReviewSession) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrPublishInProgress
	}
	defer p.running.Store(false)

	switch session.Status {
	// A persisted Publishing status means a prior run crashed mid-publish;
	// resuming is safe because comments already Submitted are never re-sent.
	case models.SessionDraft, models.SessionPartiallyPublished, models.SessionPublishing:
	case models.SessionPublished:
		return nil, ErrAlreadyPublished
	default:
		return nil, fmt.Errorf("session %d is in unexpected state %q", session.Number, session.Status)
	}

	session.Status = models.SessionPublishing
	if err := p.store.Save(session); err != nil {
		return nil, err
	}

	// Re-resolve every unsent anchor against the current repository state
	// before any network call, so a stale draft fails validation instead of
	// landing on the wrong line.
	p.revalidate(repoRoot, session)
	if err := p.store.Save(session); err != nil {
		return nil, err
	}

	handle, err := p.backend.CreateReview(ctx, session)
	if err != nil {
		session.Status = models.SessionPartiallyPublished
		if saveErr := p.store.Save(session); saveErr != nil {
			log.Error().Err(saveErr).Msg("saving session after create failure")
		}
		return nil, fmt.Errorf("preparing remote review: %w", err)
	}

	p.submitPending(ctx, handle, session)

	result := &Result{Comments: outcomes(session)}

	if session.AllSubmitted() {
		reviewID, err := p.finalize(ctx, handle, session)
		if err != nil {
			session.Status = models.SessionPartiallyPublished
			result.Status = session.Status
			if saveErr := p.store.Save(session); saveErr != nil {
				log.Error().Err(saveErr).Msg("saving session after finalize failure")
			}
			return result, fmt.Errorf("finalizing review: %w", err)
		}

		session.Status = models.SessionPublished
		result.Status = session.Status
		result.ReviewID = reviewID
		result.Finalized = true
		if err := p.store.Save(session); err != nil {
			return result, err
		}
		if err := p.store.Archive(session); err != nil {
			return result, err
		}
		log.Info().Int("pr", session.Number).Str("review_id", reviewID).Msg("review published")
		return result, nil
	}

	session.Status = models.SessionPartiallyPublished
	result.Status = session.Status
	if err := p.store.Save(session); err != nil {
		return result, err
	}
	log.Warn().Int("pr", session.Number).Msg("review only partially published, re-run publish after fixing failed comments")
	return result, nil
}

// revalidate re-runs anchor resolution for every unsent comment: the ones
// that no longer resolve are marked failed instead of being sent, and
// previously failed comments whose anchor still resolves return to ready so
// a re-run after the user fixes the cause (bad token, backend outage)
// resumes them.
func (p *Publisher) revalidate(repoRoot string, session *models.ReviewSession) {
	for _, comment := range session.Pending() {
		err := p.resolver.Reresolve(repoRoot, session.BaseRef, session.HeadRef, comment.Anchor)
		if err == nil {
			if comment.Status == models.CommentFailed {
				comment.Status = models.CommentDraft
				comment.FailureReason = ""
				log.Debug().Str("local_id", comment.LocalID).Msg("previously failed comment is ready again")
			}
			continue
		}

		comment.Status = models.CommentFailed
		var anchorErr *anchor.Error
		if errors.As(err, &anchorErr) {
			comment.FailureReason = string(anchorErr.Kind)
		} else {
			comment.FailureReason = err.Error()
		}
		log.Warn().Str("local_id", comment.LocalID).Str("reason", comment.FailureReason).
			Msg("comment anchor no longer valid, not submitting")
	}
}

// submitPending submits draft comments in insertion order, persisting after
// each one. A fatal (auth) error stops the run; validation failures mark the
// comment and move on.
func (p *Publisher) submitPending(ctx context.Context, handle backends.ReviewHandle, session *models.ReviewSession) {
	for i := range session.Comments {
		comment := &session.Comments[i]
		if comment.Status != models.CommentDraft {
			continue
		}
		if err := ctx.Err(); err != nil {
			log.Warn().Int("pr", session.Number).Msg("publish cancelled between submissions")
			return
		}

		var backendID string
		err := retry.Do(ctx, p.retryCfg, backends.IsRetryable, func() error {
			var submitErr error
			backendID, submitErr = p.backend.SubmitComment(ctx, handle, comment)
			return submitErr
		})

		if err != nil {
			comment.Status = models.CommentFailed
			comment.FailureReason = failureReason(err)
			if saveErr := p.store.Save(session); saveErr != nil {
				log.Error().Err(saveErr).Msg("saving session after comment failure")
			}
			if backends.IsFatal(err) {
				log.Error().Err(err).Msg("authentication failed, aborting publish")
				return
			}
			continue
		}

		comment.Status = models.CommentSubmitted
		comment.BackendID = backendID
		comment.FailureReason = ""
		if err := p.store.Save(session); err != nil {
			log.Error().Err(err).Msg("saving session after comment submission")
			return
		}
		log.Debug().Str("local_id", comment.LocalID).Str("backend_id", backendID).Msg("comment submitted")
	}
}

func (p *Publisher) finalize(ctx context.Context, handle backends.ReviewHandle, session *models.ReviewSession) (string, error) {
	var reviewID string
	err := retry.Do(ctx, p.retryCfg, backends.IsRetryable, func() error {
		var finalizeErr error
		reviewID, finalizeErr = p.backend.FinalizeReview(ctx, handle, session)
		return finalizeErr
	})
	return reviewID, err
}

func failureReason(err error) string {
	var submitErr *backends.SubmitError
	if errors.As(err, &submitErr) {
		return string(submitErr.Kind)
	}
	return err.Error()
}

func outcomes(session *models.ReviewSession) []CommentOutcome {
	result := make([]CommentOutcome, 0, len(session.Comments))
	for i := range session.Comments {
		c := &session.Comments[i]
		result = append(result, CommentOutcome{
			LocalID:   c.LocalID,
			Path:      c.Anchor.Path,
			Line:      c.Anchor.EndLine,
			Status:    c.Status,
			BackendID: c.BackendID,
			Reason:    c.FailureReason,
		})
	}
	return result
}

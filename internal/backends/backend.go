// Package backends defines the uniform contract the publisher drives,
// implemented once per code-hosting service. The two variants hide very
// different wire semantics: GitHub batches comments into a pending review,
// GitLab has no pending concept and takes one discussion per comment.
package backends

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/draftreview/pkg/models"
)

// ReviewHandle carries the backend-specific state needed to attach comments
// to one remote review: commit identity on GitHub, diff refs on GitLab.
type ReviewHandle struct {
	// Owner, Repo and Number identify the PR/MR the handle was opened for.
	Owner  string
	Repo   string
	Number int
	// CommitID is the head commit comments are attached to (GitHub).
	CommitID string
	// BaseSHA, StartSHA and HeadSHA are the MR diff refs (GitLab).
	BaseSHA  string
	StartSHA string
	HeadSHA  string
	// PendingReviewID is the remote id of an open pending review, when the
	// backend supports batching natively.
	PendingReviewID string
}

// Backend is the adapter a publisher drives to turn a draft into one remote
// review object.
type Backend interface {
	// CreateReview prepares the remote side for comment submission and
	// returns the handle later calls need.
	CreateReview(ctx context.Context, session *models.ReviewSession) (ReviewHandle, error)
	// SubmitComment posts a single line comment and returns its backend id.
	SubmitComment(ctx context.Context, handle ReviewHandle, comment *models.Comment) (string, error)
	// FinalizeReview produces the single remote review object containing
	// the body and all submitted comments, returning its backend id.
	FinalizeReview(ctx context.Context, handle ReviewHandle, session *models.ReviewSession) (string, error)
	// Name returns the backend kind, e.g. "github".
	Name() string
}

// SubmitErrorKind classifies backend failures for retry and reporting.
type SubmitErrorKind string

const (
	// AuthError is a 401/403: fatal, never retried.
	AuthError SubmitErrorKind = "auth_error"
	// RateLimited is a 429: retried with backoff up to a bounded count.
	RateLimited SubmitErrorKind = "rate_limited"
	// ValidationError means the backend rejected the position or payload:
	// the comment is marked failed and not retried.
	ValidationError SubmitErrorKind = "validation_error"
	// TransientNetworkError covers 5xx and transport failures: retried
	// with backoff up to a bounded count.
	TransientNetworkError SubmitErrorKind = "transient_network_error"
)

// SubmitError is a classified backend failure.
type SubmitError struct {
	Kind       SubmitErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmitError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// ClassifyStatus maps an HTTP status code onto a SubmitError.
func ClassifyStatus(statusCode int, message string) *SubmitError {
	var kind SubmitErrorKind
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = AuthError
	case statusCode == http.StatusTooManyRequests:
		kind = RateLimited
	case statusCode >= 400 && statusCode < 500:
		kind = ValidationError
	default:
		kind = TransientNetworkError
	}
	return &SubmitError{Kind: kind, StatusCode: statusCode, Message: message}
}

// WrapTransport wraps a transport-level failure (no HTTP response) as a
// retryable transient error.
func WrapTransport(err error) *SubmitError {
	return &SubmitError{Kind: TransientNetworkError, Message: err.Error(), Err: err}
}

// IsRetryable reports whether the error may succeed on a later attempt:
// rate limits and transient network failures, nothing else.
func IsRetryable(err error) bool {
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		return false
	}
	return submitErr.Kind == RateLimited || submitErr.Kind == TransientNetworkError
}

// IsFatal reports whether the error must abort the whole publish run
// immediately, rather than just failing the current comment.
func IsFatal(err error) bool {
	var submitErr *SubmitError
	return errors.As(err, &submitErr) && submitErr.Kind == AuthError
}

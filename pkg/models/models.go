package models

import (
	"time"
)

// BackendKind identifies the remote code-hosting service for a review.
type BackendKind string

const (
	BackendGitHub BackendKind = "github"
	BackendGitLab BackendKind = "gitlab"
)

// Side identifies which side of the diff a line reference is expressed
// against: the base revision or the head revision.
type Side string

const (
	SideBase Side = "base"
	SideHead Side = "head"
)

// SessionStatus is the publish life cycle of a review session.
type SessionStatus string

const (
	SessionDraft              SessionStatus = "draft"
	SessionPublishing         SessionStatus = "publishing"
	SessionPublished          SessionStatus = "published"
	SessionPartiallyPublished SessionStatus = "partially_published"
)

// CommentStatus is the publish life cycle of a single comment.
type CommentStatus string

const (
	CommentDraft     CommentStatus = "draft"
	CommentSubmitted CommentStatus = "submitted"
	CommentFailed    CommentStatus = "failed"
)

// Anchor locates a comment within a diff: a file, the diff side the line
// numbers refer to, and an inclusive line range. A single-line comment has
// StartLine == EndLine. ContentHash fingerprints the anchored lines' text as
// seen at resolution time, so a later force-push that moves different
// content under the same line numbers is detected instead of published.
type Anchor struct {
	Path        string `json:"path"`
	Side        Side   `json:"side"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	ContentHash string `json:"content_hash,omitempty"`
}

// MultiLine reports whether the anchor spans more than one line.
func (a Anchor) MultiLine() bool {
	return a.EndLine > a.StartLine
}

// Comment is a single draft remark on a line or line range. The local ID is
// assigned at creation and never reused; the backend ID stays empty until the
// comment has been accepted by the remote service.
type Comment struct {
	LocalID       string        `json:"local_id"`
	Anchor        Anchor        `json:"anchor"`
	Body          string        `json:"body"`
	BackendID     string        `json:"backend_id,omitempty"`
	Status        CommentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ReviewSession is one review-in-progress for a single PR/MR. Exactly one
// session exists per (repository, number) at a time; it is persisted by the
// store after every mutation.
type ReviewSession struct {
	Backend   BackendKind   `json:"backend"`
	Owner     string        `json:"owner"`
	Repo      string        `json:"repo"`
	Number    int           `json:"pr_number"`
	BaseRef   string        `json:"base_ref"`
	HeadRef   string        `json:"head_ref"`
	Body      string        `json:"body"`
	Comments  []Comment     `json:"comments"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BackendCredential carries the resolved credentials for one publish
// operation. It is deliberately not part of ReviewSession so tokens are
// never written into the review files under the git directory.
type BackendCredential struct {
	Kind    BackendKind
	BaseURL string
	Token   string
}

// CommentByID returns the comment with the given local ID, or nil.
func (s *ReviewSession) CommentByID(localID string) *Comment {
	for i := range s.Comments {
		if s.Comments[i].LocalID == localID {
			return &s.Comments[i]
		}
	}
	return nil
}

// CommentAt returns the first comment whose anchor span contains the
// requested file path and line, or nil. Insertion order breaks ties.
func (s *ReviewSession) CommentAt(path string, line int) *Comment {
	for i := range s.Comments {
		c := &s.Comments[i]
		if c.Anchor.Path != path {
			continue
		}
		if line >= c.Anchor.StartLine && line <= c.Anchor.EndLine {
			return c
		}
	}
	return nil
}

// Pending returns the comments that still need to be submitted: everything
// not already accepted by the backend.
func (s *ReviewSession) Pending() []*Comment {
	var pending []*Comment
	for i := range s.Comments {
		if s.Comments[i].Status != CommentSubmitted {
			pending = append(pending, &s.Comments[i])
		}
	}
	return pending
}

// AllSubmitted reports whether every comment has been accepted by the
// backend. True for a session with no comments.
func (s *ReviewSession) AllSubmitted() bool {
	for i := range s.Comments {
		if s.Comments[i].Status != CommentSubmitted {
			return false
		}
	}
	return true
}

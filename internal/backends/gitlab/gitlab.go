// Package gitlab implements the backend adapter for the GitLab Merge
// Request Discussions API. GitLab has no pending-review concept, so each
// comment becomes its own positioned discussion thread; the review body is
// posted as a summary note when the discussions are done, and the session
// only counts as published once every one of them succeeded.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/draftreview/internal/backends"
	"github.com/draftreview/pkg/models"
)

// Client talks to one GitLab instance through the official API client.
type Client struct {
	api *gitlab.Client
}

// New returns a GitLab backend for the given credential. An empty base URL
// targets gitlab.com. timeout bounds every individual API call.
func New(cred models.BackendCredential, timeout time.Duration) (*Client, error) {
	opts := []gitlab.ClientOptionFunc{
		gitlab.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cred.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(cred.BaseURL, "/")+"/api/v4"))
	}
	api, err := gitlab.NewClient(cred.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &Client{api: api}, nil
}

func (c *Client) Name() string { return string(models.BackendGitLab) }

func projectID(session *models.ReviewSession) string {
	return session.Owner + "/" + session.Repo
}

// CreateReview fetches the MR to obtain the diff refs every positioned
// discussion must carry.
func (c *Client) CreateReview(ctx context.Context, session *models.ReviewSession) (backends.ReviewHandle, error) {
	mr, resp, err := c.api.MergeRequests.GetMergeRequest(projectID(session), session.Number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return backends.ReviewHandle{}, classify(resp, err)
	}

	log.Debug().Int("mr", session.Number).
		Str("head_sha", mr.DiffRefs.HeadSha).
		Msg("merge request resolved")

	return backends.ReviewHandle{
		Owner:    session.Owner,
		Repo:     session.Repo,
		Number:   session.Number,
		CommitID: mr.DiffRefs.HeadSha,
		BaseSHA:  mr.DiffRefs.BaseSha,
		StartSHA: mr.DiffRefs.StartSha,
		HeadSHA:  mr.DiffRefs.HeadSha,
	}, nil
}

// SubmitComment creates one positioned discussion thread on the MR.
func (c *Client) SubmitComment(ctx context.Context, handle backends.ReviewHandle, comment *models.Comment) (string, error) {
	pid := handle.Owner + "/" + handle.Repo
	position := buildPosition(handle, comment.Anchor)

	discussion, resp, err := c.api.Discussions.CreateMergeRequestDiscussion(pid, handle.Number,
		&gitlab.CreateMergeRequestDiscussionOptions{
			Body:     gitlab.Ptr(comment.Body),
			Position: position,
		}, gitlab.WithContext(ctx))
	if err != nil {
		return "", classify(resp, err)
	}

	return discussion.ID, nil
}

// FinalizeReview posts the summary body as a plain MR note. GitLab has no
// review object to close over the discussions, so the summary note is the
// last piece that completes the review.
func (c *Client) FinalizeReview(ctx context.Context, handle backends.ReviewHandle, session *models.ReviewSession) (string, error) {
	if session.Body == "" {
		// Nothing to post; the discussions alone are the review.
		return fmt.Sprintf("mr-%d", handle.Number), nil
	}

	note, resp, err := c.api.Notes.CreateMergeRequestNote(projectID(session), handle.Number,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(session.Body)},
		gitlab.WithContext(ctx))
	if err != nil {
		return "", classify(resp, err)
	}

	log.Info().Int("note_id", note.ID).Int("mr", handle.Number).Msg("review summary posted to GitLab")
	return fmt.Sprintf("%d", note.ID), nil
}

// buildPosition maps a side-tagged anchor onto GitLab's position payload:
// head-side anchors set new_path/new_line, base-side anchors old_path/
// old_line, and ranges carry an explicit line_range.
func buildPosition(handle backends.ReviewHandle, anchor models.Anchor) *gitlab.PositionOptions {
	position := &gitlab.PositionOptions{
		PositionType: gitlab.Ptr("text"),
		BaseSHA:      gitlab.Ptr(handle.BaseSHA),
		StartSHA:     gitlab.Ptr(handle.StartSHA),
		HeadSHA:      gitlab.Ptr(handle.HeadSHA),
	}

	lineType := "new"
	if anchor.Side == models.SideBase {
		lineType = "old"
		position.OldPath = gitlab.Ptr(anchor.Path)
		position.OldLine = gitlab.Ptr(anchor.EndLine)
	} else {
		position.NewPath = gitlab.Ptr(anchor.Path)
		position.NewLine = gitlab.Ptr(anchor.EndLine)
	}

	if anchor.MultiLine() {
		position.LineRange = &gitlab.LineRangeOptions{
			Start: &gitlab.LinePositionOptions{
				LineCode: gitlab.Ptr(lineCode(anchor.Path, anchor.StartLine)),
				Type:     gitlab.Ptr(lineType),
			},
			End: &gitlab.LinePositionOptions{
				LineCode: gitlab.Ptr(lineCode(anchor.Path, anchor.EndLine)),
				Type:     gitlab.Ptr(lineType),
			},
		}
	}

	return position
}

func lineCode(path string, line int) string {
	return fmt.Sprintf("%s_%d", path, line)
}

// classify maps client-go errors onto the shared submit error taxonomy.
func classify(resp *gitlab.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return backends.ClassifyStatus(resp.StatusCode, err.Error())
	}
	return backends.WrapTransport(err)
}

// Package github implements the backend adapter for the GitHub Pulls and
// Reviews REST APIs. Line comments are posted one at a time against the
// PR's head commit and become visible immediately; once all of them have
// been accepted, a review with the summary body is submitted as the final
// step. The per-comment submission is what makes partial publishes
// resumable: each accepted comment is recorded before the next is sent.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/draftreview/internal/backends"
	"github.com/draftreview/pkg/models"
)

const defaultBaseURL = "https://api.github.com"

// Client talks to the GitHub REST API for one repository.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New returns a GitHub backend for the given credential. An empty base URL
// targets api.github.com; set it for GitHub Enterprise instances. timeout
// bounds every individual API call.
func New(cred models.BackendCredential, timeout time.Duration) *Client {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cred.Token,
		httpClient: &http.Client{Timeout: timeout},
		// Secondary rate limits kick in well below the documented 5000/h
		// for bursty comment submission, so pace requests.
		limiter: rate.NewLimiter(rate.Limit(2), 5),
	}
}

func (c *Client) Name() string { return string(models.BackendGitHub) }

// CreateReview fetches the PR so comments can be pinned to its head commit.
func (c *Client) CreateReview(ctx context.Context, session *models.ReviewSession) (backends.ReviewHandle, error) {
	var pr struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			SHA string `json:"sha"`
		} `json:"base"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", session.Owner, session.Repo, session.Number)
	if err := c.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return backends.ReviewHandle{}, err
	}

	log.Debug().Str("head_sha", pr.Head.SHA).Int("pr", session.Number).Msg("pull request resolved")
	return backends.ReviewHandle{
		Owner:    session.Owner,
		Repo:     session.Repo,
		Number:   session.Number,
		CommitID: pr.Head.SHA,
		BaseSHA:  pr.Base.SHA,
		HeadSHA:  pr.Head.SHA,
	}, nil
}

// SubmitComment posts one line comment against the PR's head commit.
func (c *Client) SubmitComment(ctx context.Context, handle backends.ReviewHandle, comment *models.Comment) (string, error) {
	payload := map[string]interface{}{
		"body":      comment.Body,
		"commit_id": handle.CommitID,
		"path":      comment.Anchor.Path,
		"line":      comment.Anchor.EndLine,
		"side":      wireSide(comment.Anchor.Side),
	}
	if comment.Anchor.MultiLine() {
		payload["start_line"] = comment.Anchor.StartLine
		payload["start_side"] = wireSide(comment.Anchor.Side)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", handle.Owner, handle.Repo, handle.Number)
	if err := c.do(ctx, http.MethodPost, path, payload, &created); err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", created.ID), nil
}

// FinalizeReview submits a review with the summary body and event COMMENT,
// marking the publish complete after the line comments have been posted.
func (c *Client) FinalizeReview(ctx context.Context, handle backends.ReviewHandle, session *models.ReviewSession) (string, error) {
	payload := map[string]interface{}{
		"commit_id": handle.CommitID,
		"body":      session.Body,
		"event":     "COMMENT",
	}

	var review struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", session.Owner, session.Repo, session.Number)
	if err := c.do(ctx, http.MethodPost, path, payload, &review); err != nil {
		return "", err
	}

	log.Info().Int64("review_id", review.ID).Int("pr", session.Number).Msg("review finalized on GitHub")
	return fmt.Sprintf("%d", review.ID), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return backends.WrapTransport(err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "draftreview")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return backends.WrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return backends.ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(message)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func wireSide(side models.Side) string {
	if side == models.SideBase {
		return "LEFT"
	}
	return "RIGHT"
}

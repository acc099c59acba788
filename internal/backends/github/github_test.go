package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/draftreview/internal/backends"
	"github.com/draftreview/pkg/models"
)

func testClient(serverURL string) *Client {
	c := New(models.BackendCredential{
		Kind:    models.BackendGitHub,
		BaseURL: serverURL,
		Token:   "test-token",
	}, 5*time.Second)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func testSession() *models.ReviewSession {
	return &models.ReviewSession{
		Backend: models.BackendGitHub,
		Owner:   "acme",
		Repo:    "rocket",
		Number:  42,
		BaseRef: "main",
		HeadRef: "feature",
		Body:    "Overall solid.",
	}
}

func TestCreateReviewResolvesHeadCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/rocket/pulls/42", r.URL.Path)
		assert.Equal(t, "token test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"head": map[string]string{"sha": "headsha123"},
			"base": map[string]string{"sha": "basesha456"},
		})
	}))
	defer server.Close()

	handle, err := testClient(server.URL).CreateReview(context.Background(), testSession())
	require.NoError(t, err)
	assert.Equal(t, "headsha123", handle.CommitID)
	assert.Equal(t, "acme", handle.Owner)
	assert.Equal(t, 42, handle.Number)
}

func TestSubmitCommentSingleLine(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/rocket/pulls/42/comments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]int64{"id": 9001})
	}))
	defer server.Close()

	handle := backends.ReviewHandle{Owner: "acme", Repo: "rocket", Number: 42, CommitID: "headsha123"}
	comment := &models.Comment{
		LocalID: "c1",
		Anchor:  models.Anchor{Path: "src/app.py", Side: models.SideHead, StartLine: 10, EndLine: 10},
		Body:    "nit: rename",
	}

	id, err := testClient(server.URL).SubmitComment(context.Background(), handle, comment)
	require.NoError(t, err)
	assert.Equal(t, "9001", id)

	assert.Equal(t, "nit: rename", payload["body"])
	assert.Equal(t, "headsha123", payload["commit_id"])
	assert.Equal(t, "src/app.py", payload["path"])
	assert.Equal(t, float64(10), payload["line"])
	assert.Equal(t, "RIGHT", payload["side"])
	assert.NotContains(t, payload, "start_line")
}

func TestSubmitCommentRangeOnBaseSide(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]int64{"id": 7})
	}))
	defer server.Close()

	handle := backends.ReviewHandle{Owner: "acme", Repo: "rocket", Number: 42, CommitID: "sha"}
	comment := &models.Comment{
		Anchor: models.Anchor{Path: "old.go", Side: models.SideBase, StartLine: 3, EndLine: 6},
		Body:   "why was this removed?",
	}

	_, err := testClient(server.URL).SubmitComment(context.Background(), handle, comment)
	require.NoError(t, err)

	assert.Equal(t, "LEFT", payload["side"])
	assert.Equal(t, float64(6), payload["line"])
	assert.Equal(t, float64(3), payload["start_line"])
	assert.Equal(t, "LEFT", payload["start_side"])
}

func TestFinalizeReviewSubmitsBody(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/rocket/pulls/42/reviews", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		json.NewEncoder(w).Encode(map[string]int64{"id": 555})
	}))
	defer server.Close()

	handle := backends.ReviewHandle{Owner: "acme", Repo: "rocket", Number: 42, CommitID: "sha"}
	id, err := testClient(server.URL).FinalizeReview(context.Background(), handle, testSession())
	require.NoError(t, err)
	assert.Equal(t, "555", id)
	assert.Equal(t, "Overall solid.", payload["body"])
	assert.Equal(t, "COMMENT", payload["event"])
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   backends.SubmitErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, backends.AuthError},
		{"forbidden", http.StatusForbidden, backends.AuthError},
		{"rate limited", http.StatusTooManyRequests, backends.RateLimited},
		{"unprocessable", http.StatusUnprocessableEntity, backends.ValidationError},
		{"server error", http.StatusBadGateway, backends.TransientNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			_, err := testClient(server.URL).CreateReview(context.Background(), testSession())
			var submitErr *backends.SubmitError
			require.True(t, errors.As(err, &submitErr))
			assert.Equal(t, tt.kind, submitErr.Kind)
			assert.Equal(t, tt.status, submitErr.StatusCode)
		})
	}
}

func TestTransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := testClient(server.URL).CreateReview(context.Background(), testSession())
	var submitErr *backends.SubmitError
	require.True(t, errors.As(err, &submitErr))
	assert.Equal(t, backends.TransientNetworkError, submitErr.Kind)
	assert.True(t, backends.IsRetryable(err))
}

package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/AnalyzeActions/WorkKnow/internal/adapter/driven/github"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// fakeClock records requested sleeps instead of blocking.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().Truncate(time.Second)}
}

// testOptions injects the fake clock and a fast retry policy.
func testOptions(clock *fakeClock) []ghAdapter.Option {
	state := ghAdapter.NewRateLimitState(
		ghAdapter.WithClock(clock.Now, clock.Sleep),
		ghAdapter.WithMargin(time.Second),
	)
	return []ghAdapter.Option{
		ghAdapter.WithRateLimitState(state),
		ghAdapter.WithRetryPolicy(ghAdapter.RetryPolicy{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		}),
	}
}

// newTestClient creates a Client backed by the given httptest handler with a
// fast retry policy and a fake clock.
func newTestClient(t *testing.T, handler http.Handler, clock *fakeClock) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL, testOptions(clock)...)
	require.NoError(t, err)

	return client
}

// newTransportClient creates a Client through NewClient, so requests pass the
// full oauth2, rate limit and cache transport stack.
func newTransportClient(t *testing.T, handler http.Handler, clock *fakeClock) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClient("test-token", server.URL, 5*time.Second, testOptions(clock)...)
	require.NoError(t, err)

	return client
}

// runJSON is a helper struct for building workflow run responses.
type runJSON struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	WorkflowID int64           `json:"workflow_id"`
	RunNumber  int             `json:"run_number"`
	RunAttempt int             `json:"run_attempt"`
	Event      string          `json:"event"`
	Status     string          `json:"status"`
	Conclusion *string         `json:"conclusion"`
	HeadBranch string          `json:"head_branch"`
	HeadSHA    string          `json:"head_sha"`
	HTMLURL    string          `json:"html_url"`
	JobsURL    string          `json:"jobs_url"`
	Created    string          `json:"created_at"`
	Updated    string          `json:"updated_at"`
	HeadCommit *headCommitJSON `json:"head_commit,omitempty"`
}

type headCommitJSON struct {
	ID        string     `json:"id"`
	Message   string     `json:"message"`
	Timestamp string     `json:"timestamp"`
	Author    authorJSON `json:"author"`
}

type authorJSON struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type runsPageJSON struct {
	TotalCount int       `json:"total_count"`
	Runs       []runJSON `json:"workflow_runs"`
}

type jobJSON struct {
	ID          int64   `json:"id"`
	RunID       int64   `json:"run_id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Conclusion  *string `json:"conclusion"`
	RunnerName  string  `json:"runner_name"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at"`
}

type jobsPageJSON struct {
	TotalCount int       `json:"total_count"`
	Jobs       []jobJSON `json:"jobs"`
}

func ptr(s string) *string { return &s }

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

var testRepo = model.NewRepositoryRef("octo", "widgets")

func TestFetchPage_RunsSinglePage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/widgets/actions/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		writeJSON(t, w, runsPageJSON{
			TotalCount: 2,
			Runs: []runJSON{
				{
					ID: 101, Name: "build", WorkflowID: 7, RunNumber: 12, RunAttempt: 1,
					Event: "push", Status: "completed", Conclusion: ptr("success"),
					HeadBranch: "main", HeadSHA: "abc123",
					HTMLURL: "https://github.com/octo/widgets/actions/runs/101",
					JobsURL: "https://api.github.com/repos/octo/widgets/actions/runs/101/jobs",
					Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:05:00Z",
					HeadCommit: &headCommitJSON{
						ID: "abc123", Message: "Fix flaky test", Timestamp: "2025-12-31T23:59:00Z",
						Author: authorJSON{Name: "Ada", Email: "ada@example.com"},
					},
				},
				{
					ID: 102, Name: "lint", Event: "pull_request", Status: "in_progress",
					HeadBranch: "feature", Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z",
				},
			},
		})
	})

	client := newTestClient(t, mux, newFakeClock())

	page, err := client.FetchPage(context.Background(), model.PageRequest{
		Repository: testRepo,
		Kind:       model.ResourceRuns,
	})

	require.NoError(t, err)
	require.Len(t, page.Runs, 2)
	assert.Equal(t, 0, page.NextPage)
	assert.Equal(t, 2, page.TotalCount)

	run := page.Runs[0]
	assert.Equal(t, int64(101), run.RunID)
	assert.Equal(t, testRepo, run.Repository)
	assert.Equal(t, int64(7), run.WorkflowID)
	assert.Equal(t, "build", run.Name)
	assert.Equal(t, 12, run.RunNumber)
	assert.Equal(t, "push", run.Event)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, model.ConclusionSuccess, run.Conclusion)
	assert.Equal(t, "main", run.HeadBranch)
	assert.Equal(t, "abc123", run.HeadSHA)
	assert.Equal(t, "Fix flaky test", run.HeadCommit.Message)
	assert.Equal(t, "Ada", run.HeadCommit.AuthorName)
	assert.Equal(t, "ada@example.com", run.HeadCommit.AuthorEmail)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), run.CreatedAt.UTC())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC), run.UpdatedAt.UTC())

	assert.Equal(t, model.RunStatusInProgress, page.Runs[1].Status)
	assert.Equal(t, model.ConclusionNone, page.Runs[1].Conclusion)
	assert.Empty(t, page.Runs[1].HeadCommit.Message)
}

func TestFetchPage_RunsPagination(t *testing.T) {
	var serverURL string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/widgets/actions/runs", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/widgets/actions/runs?page=2>; rel="next"`, serverURL))
			writeJSON(t, w, runsPageJSON{TotalCount: 2, Runs: []runJSON{{ID: 1, Status: "completed"}}})
			return
		}
		writeJSON(t, w, runsPageJSON{TotalCount: 2, Runs: []runJSON{{ID: 2, Status: "queued"}}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL)
	require.NoError(t, err)

	first, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns, Page: 1})
	require.NoError(t, err)
	require.Len(t, first.Runs, 1)
	assert.Equal(t, 2, first.NextPage)

	second, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns, Page: first.NextPage})
	require.NoError(t, err)
	require.Len(t, second.Runs, 1)
	assert.Equal(t, int64(2), second.Runs[0].RunID)
	assert.Equal(t, 0, second.NextPage)
}

func TestFetchPage_Jobs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/widgets/actions/runs/101/jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, jobsPageJSON{
			TotalCount: 1,
			Jobs: []jobJSON{{
				ID: 9001, RunID: 101, Name: "test (ubuntu-latest)", Status: "completed",
				Conclusion: ptr("failure"), RunnerName: "GitHub Actions 4",
				StartedAt: "2026-01-01T00:01:00Z", CompletedAt: ptr("2026-01-01T00:03:30Z"),
			}},
		})
	})

	client := newTestClient(t, mux, newFakeClock())

	page, err := client.FetchPage(context.Background(), model.PageRequest{
		Repository: testRepo,
		Kind:       model.ResourceJobs,
		RunID:      101,
	})

	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	job := page.Jobs[0]
	assert.Equal(t, int64(9001), job.JobID)
	assert.Equal(t, int64(101), job.RunID)
	assert.Equal(t, "test (ubuntu-latest)", job.Name)
	assert.Equal(t, model.ConclusionFailure, job.Conclusion)
	assert.Equal(t, "GitHub Actions 4", job.RunnerName)
	assert.Equal(t, 150*time.Second, job.CompletedAt.Sub(job.StartedAt))
}

func TestFetchPage_InvalidRequests(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), newFakeClock())
	ctx := context.Background()

	_, err := client.FetchPage(ctx, model.PageRequest{Kind: model.ResourceRuns})
	assert.ErrorIs(t, err, model.ErrInvalidRepositoryIdentifier)

	_, err = client.FetchPage(ctx, model.PageRequest{Repository: testRepo, Kind: model.ResourceJobs})
	assert.Error(t, err)

	_, err = client.FetchPage(ctx, model.PageRequest{Repository: testRepo, Kind: "artifacts"})
	assert.Error(t, err)
}

func TestFetchPage_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	client := newTestClient(t, handler, newFakeClock())

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRepositoryUnavailable)
	assert.Equal(t, model.ErrorKindRepositoryUnavailable, model.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPage_ForbiddenWithoutRateLimitIsUnavailable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4000")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible by personal access token"}`))
	})

	client := newTestClient(t, handler, newFakeClock())

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	assert.ErrorIs(t, err, model.ErrRepositoryUnavailable)
}

func TestFetchPage_Unauthorized(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	})

	client := newTestClient(t, handler, newFakeClock())

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	assert.ErrorIs(t, err, model.ErrAuthenticationFailure)
	assert.True(t, model.KindOf(err).Fatal())
}

func TestFetchPage_RateLimitWaitsOnceThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	reset := clock.now.Add(60 * time.Second)

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded for user ID 1."}`))
			return
		}
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Add(time.Hour).Unix(), 10))
		writeJSON(t, w, runsPageJSON{TotalCount: 1, Runs: []runJSON{{ID: 5, Status: "completed"}}})
	})

	client := newTestClient(t, handler, clock)

	page, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{61 * time.Second}, clock.Sleeps())
	assert.Equal(t, 1, client.Limits().Waits())
	assert.Equal(t, 4999, client.Limits().Snapshot().Remaining)
}

func TestFetchPage_RateLimitStillExceededAfterRetry(t *testing.T) {
	clock := newFakeClock()

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(clock.now.Add(30*time.Second).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	})

	client := newTestClient(t, handler, clock)

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRateLimitExceeded)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, clock.Sleeps(), 1)
}

func TestFetchPage_SecondaryRateLimitHonoursRetryAfter(t *testing.T) {
	clock := newFakeClock()

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You have exceeded a secondary rate limit."}`))
			return
		}
		writeJSON(t, w, runsPageJSON{})
	})

	client := newTestClient(t, handler, clock)

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{6 * time.Second}, clock.Sleeps())
}

func TestFetchPage_TransientErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"Server Error"}`))
			return
		}
		writeJSON(t, w, runsPageJSON{TotalCount: 1, Runs: []runJSON{{ID: 1}}})
	})

	client := newTestClient(t, handler, newFakeClock())

	page, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.NoError(t, err)
	assert.Len(t, page.Runs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPage_TransientRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	client := newTestClient(t, handler, newFakeClock())

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTransientFetchFailure)
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}

func TestFetchPage_CancelledContext(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := newTestClient(t, handler, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchPage(ctx, model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.ErrorKindNone, model.KindOf(err))
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(time.Hour).Truncate(time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rate_limit", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"resources": map[string]any{
				"core": map[string]any{"limit": 5000, "remaining": 4321, "reset": reset.Unix()},
			},
		})
	})

	client := newTestClient(t, mux, newFakeClock())

	snap, err := client.RateLimit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5000, snap.Limit)
	assert.Equal(t, 4321, snap.Remaining)
	assert.True(t, reset.Equal(snap.ResetAt))
}

func TestRateLimit_BadCredentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	})

	client := newTestClient(t, handler, newFakeClock())

	_, err := client.RateLimit(context.Background())

	assert.ErrorIs(t, err, model.ErrAuthenticationFailure)
}

func TestNewClient_SendsBearerToken(t *testing.T) {
	var auth atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeJSON(t, w, runsPageJSON{TotalCount: 1, Runs: []runJSON{{ID: 9, Status: "queued"}}})
	})

	client := newTransportClient(t, handler, newFakeClock())

	page, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, "Bearer test-token", auth.Load())
}

func primaryLimitHeaders(w http.ResponseWriter, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Resource", "core")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

func TestNewClient_PrimaryRateLimitWaitsOnceThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	reset := clock.now.Add(2 * time.Second)

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			primaryLimitHeaders(w, reset)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded for user ID 1."}`))
			return
		}
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Resource", "core")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Add(time.Hour).Unix(), 10))
		writeJSON(t, w, runsPageJSON{TotalCount: 1, Runs: []runJSON{{ID: 5, Status: "completed"}}})
	})

	client := newTransportClient(t, handler, clock)

	page, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{3 * time.Second}, clock.Sleeps())
	assert.Equal(t, 1, client.Limits().Waits())
	assert.Equal(t, 4999, client.Limits().Snapshot().Remaining)
}

func TestNewClient_PrimaryRateLimitStillExceededAfterRetry(t *testing.T) {
	clock := newFakeClock()
	reset := clock.now.Add(30 * time.Second)

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		primaryLimitHeaders(w, reset)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	})

	client := newTransportClient(t, handler, clock)

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRateLimitExceeded)
	assert.NotErrorIs(t, err, model.ErrTransientFetchFailure)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{31 * time.Second}, clock.Sleeps())
}

func TestNewClient_SecondaryRateLimitHonoursRetryAfter(t *testing.T) {
	clock := newFakeClock()

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You have exceeded a secondary rate limit."}`))
			return
		}
		writeJSON(t, w, runsPageJSON{})
	})

	client := newTransportClient(t, handler, clock)

	_, err := client.FetchPage(context.Background(), model.PageRequest{Repository: testRepo, Kind: model.ResourceRuns})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{6 * time.Second}, clock.Sleeps())
	assert.Equal(t, 1, client.Limits().Waits())
}

// Package github implements the RunSource port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunSource = (*Client)(nil)

// maxPerPage is the largest page size the Actions endpoints accept.
const maxPerPage = 100

// RetryPolicy bounds the exponential backoff applied to transient failures.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries three times after 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: time.Second, MaxInterval: 30 * time.Second}
}

// Client implements the driven.RunSource port.
type Client struct {
	gh      *gh.Client
	limits  *RateLimitState
	retry   RetryPolicy
	perPage int
	metrics clientMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimitState injects the rate-limit state shared by all requests.
func WithRateLimitState(s *RateLimitState) Option {
	return func(c *Client) { c.limits = s }
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithPerPage sets the page size, capped at 100.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= maxPerPage {
			c.perPage = n
		}
	}
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. oauth2 (bearer token from a static token source)
//  2. go-github-ratelimit (primary and secondary limit detection)
//  3. httpcache (ETag-based conditional request caching)
//
// The rate limit middleware neither sleeps nor blocks requests; it reports
// limits and RateLimitState does the waiting. An empty baseURL targets
// api.github.com; otherwise it is used as an Enterprise Server API root.
func NewClient(token, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport,
		github_primary_ratelimit.WithBypassLimit(),
		github_secondary_ratelimit.WithSingleSleepLimit(0, logSecondaryLimit),
	)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: rateLimitClient.Transport},
		Timeout:   timeout,
	}

	if baseURL == "" {
		return newClient(gh.NewClient(httpClient), opts), nil
	}
	return NewClientWithHTTPClient(httpClient, baseURL, opts...)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// Tests use it to point the client at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, opts ...Option) (*Client, error) {
	client := gh.NewClient(httpClient)

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return newClient(client, opts), nil
}

func newClient(client *gh.Client, opts []Option) *Client {
	c := &Client{
		gh:      client,
		retry:   DefaultRetryPolicy(),
		perPage: maxPerPage,
		metrics: newClientMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limits == nil {
		c.limits = NewRateLimitState()
	}
	return c
}

// Limits returns the rate-limit state the client updates.
func (c *Client) Limits() *RateLimitState {
	return c.limits
}

// FetchPage retrieves one page of workflow runs or of the jobs of one run.
func (c *Client) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	if req.Repository.IsZero() {
		return model.Page{}, fmt.Errorf("fetch page: %w: unresolved repository", model.ErrInvalidRepositoryIdentifier)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}

	switch req.Kind {
	case model.ResourceRuns:
		return c.fetchRuns(ctx, req.Repository, page)
	case model.ResourceJobs:
		if req.RunID <= 0 {
			return model.Page{}, fmt.Errorf("fetch jobs for %s: run ID is required", req.Repository.FullName())
		}
		return c.fetchJobs(ctx, req.Repository, req.RunID, page)
	default:
		return model.Page{}, fmt.Errorf("fetch page: unsupported resource kind %q", req.Kind)
	}
}

func (c *Client) fetchRuns(ctx context.Context, repo model.RepositoryRef, page int) (model.Page, error) {
	opts := &gh.ListWorkflowRunsOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: c.perPage},
	}

	var runs *gh.WorkflowRuns
	resp, err := c.call(ctx, "runs", func(ctx context.Context) (*gh.Response, error) {
		var r *gh.Response
		var err error
		runs, r, err = c.gh.Actions.ListRepositoryWorkflowRuns(ctx, repo.Owner, repo.Name, opts)
		return r, err
	})
	if err != nil {
		return model.Page{}, fmt.Errorf("listing workflow runs for %s (page %d): %w", repo.FullName(), page, err)
	}

	logRateLimit(resp, repo.FullName()+" runs", page, len(runs.WorkflowRuns))

	out := model.Page{
		Runs:       make([]model.WorkflowRun, 0, len(runs.WorkflowRuns)),
		NextPage:   resp.NextPage,
		TotalCount: runs.GetTotalCount(),
	}
	for _, r := range runs.WorkflowRuns {
		out.Runs = append(out.Runs, mapWorkflowRun(r, repo))
	}

	return out, nil
}

func (c *Client) fetchJobs(ctx context.Context, repo model.RepositoryRef, runID int64, page int) (model.Page, error) {
	opts := &gh.ListWorkflowJobsOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: c.perPage},
	}

	var jobs *gh.Jobs
	resp, err := c.call(ctx, "jobs", func(ctx context.Context) (*gh.Response, error) {
		var r *gh.Response
		var err error
		jobs, r, err = c.gh.Actions.ListWorkflowJobs(ctx, repo.Owner, repo.Name, runID, opts)
		return r, err
	})
	if err != nil {
		return model.Page{}, fmt.Errorf("listing jobs for %s run %d (page %d): %w", repo.FullName(), runID, page, err)
	}

	logRateLimit(resp, fmt.Sprintf("%s run %d jobs", repo.FullName(), runID), page, len(jobs.Jobs))

	out := model.Page{
		Jobs:       make([]model.JobRecord, 0, len(jobs.Jobs)),
		NextPage:   resp.NextPage,
		TotalCount: jobs.GetTotalCount(),
	}
	for _, j := range jobs.Jobs {
		out.Jobs = append(out.Jobs, mapJob(j, runID))
	}

	return out, nil
}

// rateLimitBody is the subset of the /rate_limit response the client reads.
type rateLimitBody struct {
	Resources struct {
		Core gh.Rate `json:"core"`
	} `json:"resources"`
}

// RateLimit queries /rate_limit, which does not count against the budget, and
// refreshes the shared state from it. A rejected token surfaces as
// model.ErrAuthenticationFailure.
func (c *Client) RateLimit(ctx context.Context) (model.RateLimitSnapshot, error) {
	var body rateLimitBody
	_, err := c.call(ctx, "rate_limit", func(ctx context.Context) (*gh.Response, error) {
		req, err := c.gh.NewRequest(http.MethodGet, "rate_limit", nil)
		if err != nil {
			return nil, err
		}
		return c.gh.Do(ctx, req, &body)
	})
	if err != nil {
		return model.RateLimitSnapshot{}, fmt.Errorf("querying rate limit: %w", err)
	}

	core := body.Resources.Core
	if core.Limit > 0 {
		c.limits.Set(core.Limit, core.Remaining, core.Reset.Time)
	}

	return c.limits.Snapshot(), nil
}

// call runs fn with transient-failure backoff. A rate-limited response
// suspends until the budget resets and the request is retried exactly once.
// Returned errors belong to the model error taxonomy.
func (c *Client) call(ctx context.Context, endpoint string, fn func(context.Context) (*gh.Response, error)) (*gh.Response, error) {
	// Budget checks happen in RateLimitState rather than inside go-github.
	ctx = context.WithValue(ctx, gh.BypassRateLimitCheck, true)

	resp, err := c.callWithBackoff(ctx, endpoint, fn)
	if !isRateLimited(err) {
		return resp, translate(err)
	}

	c.metrics.recordRateLimited(ctx, endpoint)
	f := err.(*apiFailure)
	if waitErr := c.limits.WaitForReset(ctx, f.retryAfter); waitErr != nil {
		return nil, waitErr
	}

	resp, err = c.callWithBackoff(ctx, endpoint, fn)
	return resp, translate(err)
}

func (c *Client) callWithBackoff(ctx context.Context, endpoint string, fn func(context.Context) (*gh.Response, error)) (*gh.Response, error) {
	var resp *gh.Response
	attempt := 0

	op := func() error {
		if err := c.limits.WaitIfDepleted(ctx); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		r, err := fn(ctx)
		c.metrics.recordRequest(ctx, endpoint)
		if r != nil {
			c.limits.Update(r.Response)
		}
		if err == nil {
			resp = r
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}

		f := classify(err)
		if !f.resetAt.IsZero() {
			c.limits.Exhaust(f.resetAt)
		}
		if f.kind != failureTransient {
			return backoff.Permanent(f)
		}

		slog.Debug("github request failed, will retry",
			"endpoint", endpoint,
			"attempt", attempt,
			"error", err,
		)
		return f
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retry.MaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func isRateLimited(err error) bool {
	f, ok := err.(*apiFailure)
	return ok && f.kind == failureRateLimited
}

func logSecondaryLimit(cb *github_secondary_ratelimit.CallbackContext) {
	if cb.ResetTime == nil {
		return
	}
	slog.Debug("github secondary rate limit detected", "reset_at", *cb.ResetTime)
}

// logRateLimit logs the rate limit status from a GitHub API response.
// Warns when remaining requests drop below 100.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

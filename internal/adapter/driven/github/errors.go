package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	gh "github.com/google/go-github/v82/github"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// failureKind describes how the client reacts to a failed request.
type failureKind int

const (
	failureTransient failureKind = iota
	failureRateLimited
	failureUnavailable
	failureAuth
)

// apiFailure is a failed request tagged with its failureKind.
type apiFailure struct {
	kind       failureKind
	status     int
	retryAfter time.Duration
	resetAt    time.Time // Set when the limit middleware swallowed the response.
	err        error
}

func (f *apiFailure) Error() string { return f.err.Error() }

func (f *apiFailure) Unwrap() error { return f.err }

// classify inspects an error returned by go-github.
func classify(err error) *apiFailure {
	var reached *github_primary_ratelimit.RateLimitReachedError
	if errors.As(err, &reached) {
		f := &apiFailure{kind: failureRateLimited, status: statusOf(reached.Response), err: err}
		if reached.ResetTime != nil {
			f.resetAt = *reached.ResetTime
		}
		return f
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &apiFailure{kind: failureRateLimited, status: statusOf(rateErr.Response), err: err}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		f := &apiFailure{kind: failureRateLimited, status: statusOf(abuseErr.Response), err: err}
		if abuseErr.RetryAfter != nil {
			f.retryAfter = *abuseErr.RetryAfter
		}
		return f
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		f := &apiFailure{status: status, err: err}
		switch {
		case status == http.StatusUnauthorized:
			f.kind = failureAuth
		case status == http.StatusTooManyRequests:
			f.kind = failureRateLimited
			f.retryAfter = parseRetryAfter(respErr.Response.Header.Get("Retry-After"))
		case status == http.StatusForbidden && isRateLimitResponse(respErr):
			f.kind = failureRateLimited
			f.retryAfter = parseRetryAfter(respErr.Response.Header.Get("Retry-After"))
		case status >= http.StatusInternalServerError:
			f.kind = failureTransient
		default:
			// 403 without rate-limit markers, 404, 410 and any other client error
			// will not succeed on retry.
			f.kind = failureUnavailable
		}
		return f
	}

	// Timeouts, refused connections and truncated bodies.
	return &apiFailure{kind: failureTransient, err: err}
}

// translate maps a failure onto the model error taxonomy.
func translate(err error) error {
	var f *apiFailure
	if !errors.As(err, &f) {
		return err
	}

	switch f.kind {
	case failureAuth:
		return fmt.Errorf("%w: %w", model.ErrAuthenticationFailure, f.err)
	case failureRateLimited:
		return fmt.Errorf("%w: %w", model.ErrRateLimitExceeded, f.err)
	case failureUnavailable:
		return fmt.Errorf("%w (status %d): %w", model.ErrRepositoryUnavailable, f.status, f.err)
	default:
		return fmt.Errorf("%w: %w", model.ErrTransientFetchFailure, f.err)
	}
}

func isRateLimitResponse(respErr *gh.ErrorResponse) bool {
	if respErr.Response.Header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	if respErr.Response.Header.Get("Retry-After") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(respErr.Message), "rate limit")
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

package github

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// RateLimitState is the API budget shared by every request a Client makes.
// It is refreshed from the headers of each response and consulted before each
// request. It is safe for concurrent use.
type RateLimitState struct {
	mu        sync.Mutex
	limit     int
	remaining int // -1 until the first response is observed.
	resetAt   time.Time
	cooldown  time.Time // Set from Retry-After.

	threshold int
	margin    time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	waits int
}

// RateLimitOption configures a RateLimitState.
type RateLimitOption func(*RateLimitState)

// WithThreshold sets the remaining-request count below which requests wait
// for the reset before being sent.
func WithThreshold(n int) RateLimitOption {
	return func(s *RateLimitState) { s.threshold = n }
}

// WithMargin sets the extra time added after the reset instant.
func WithMargin(d time.Duration) RateLimitOption {
	return func(s *RateLimitState) { s.margin = d }
}

// WithClock replaces the time source and the sleep function. Tests use it to
// observe waits without blocking.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) RateLimitOption {
	return func(s *RateLimitState) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewRateLimitState creates a state with an unknown budget.
func NewRateLimitState(opts ...RateLimitOption) *RateLimitState {
	s := &RateLimitState{
		remaining: -1,
		threshold: 10,
		margin:    2 * time.Second,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update refreshes the state from the rate-limit headers of resp. Responses
// without rate-limit headers leave the state unchanged.
func (s *RateLimitState) Update(resp *http.Response) {
	if resp == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v := resp.Header.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.limit = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.remaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil && epoch > 0 {
			s.resetAt = time.Unix(epoch, 0)
		}
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			until := s.now().Add(time.Duration(seconds) * time.Second)
			if until.After(s.cooldown) {
				s.cooldown = until
			}
		}
	}
}

// Set overwrites the budget with values read from a /rate_limit body.
func (s *RateLimitState) Set(limit, remaining int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	s.remaining = remaining
	s.resetAt = resetAt
}

// Exhaust records a depleted budget that resets at resetAt.
func (s *RateLimitState) Exhaust(resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = 0
	if resetAt.After(s.resetAt) {
		s.resetAt = resetAt
	}
}

// Snapshot returns the current budget. Remaining is -1 when unknown.
func (s *RateLimitState) Snapshot() model.RateLimitSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.RateLimitSnapshot{Limit: s.limit, Remaining: s.remaining, ResetAt: s.resetAt}
}

// Waits returns how many times the state suspended a caller.
func (s *RateLimitState) Waits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waits
}

// WaitIfDepleted blocks until the reset instant when the known budget has
// dropped below the threshold, or while a Retry-After cooldown is active.
func (s *RateLimitState) WaitIfDepleted(ctx context.Context) error {
	s.mu.Lock()
	now := s.now()
	var wait time.Duration
	switch {
	case now.Before(s.cooldown):
		wait = s.cooldown.Sub(now)
	case s.remaining >= 0 && s.remaining < s.threshold && now.Before(s.resetAt):
		wait = s.resetAt.Sub(now) + s.margin
	}
	if wait <= 0 {
		s.mu.Unlock()
		return nil
	}
	s.waits++
	remaining, resetAt := s.remaining, s.resetAt
	s.mu.Unlock()

	slog.Warn("github rate limit low, waiting for reset",
		"remaining", remaining,
		"reset_at", resetAt,
		"wait", wait.Round(time.Second),
	)
	if err := s.sleep(ctx, wait); err != nil {
		return err
	}
	s.replenish()
	return nil
}

// WaitForReset blocks after a rate-limited response until the budget resets.
// retryAfter, when positive, is the server-provided delay and takes precedence
// if it ends later than the known reset.
func (s *RateLimitState) WaitForReset(ctx context.Context, retryAfter time.Duration) error {
	s.mu.Lock()
	now := s.now()
	until := s.resetAt
	if retryAfter > 0 && now.Add(retryAfter).After(until) {
		until = now.Add(retryAfter)
	}
	if s.cooldown.After(until) {
		until = s.cooldown
	}
	wait := until.Sub(now)
	if wait < 0 {
		wait = 0
	}
	wait += s.margin
	s.waits++
	s.mu.Unlock()

	slog.Warn("github rate limit exceeded, waiting for reset", "until", until, "wait", wait.Round(time.Second))
	if err := s.sleep(ctx, wait); err != nil {
		return err
	}
	s.replenish()
	return nil
}

// replenish marks the budget unknown once a wait has outlasted the reset; the
// next response header restores the real count.
func (s *RateLimitState) replenish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = -1
	s.cooldown = time.Time{}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

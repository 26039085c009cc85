package model

import "errors"

// Sentinel errors forming the collector's error taxonomy. Adapters wrap these
// with request context; callers classify with errors.Is or KindOf.
var (
	// ErrInvalidRepositoryIdentifier indicates an input that does not name a
	// GitHub repository. Never retried.
	ErrInvalidRepositoryIdentifier = errors.New("invalid repository identifier")

	// ErrRepositoryUnavailable indicates the repository does not exist or the
	// token has no access to it. Never retried.
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrRateLimitExceeded indicates the API budget was still exhausted after
	// waiting for the reset and retrying once.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrTransientFetchFailure indicates network or server errors persisted
	// after all backoff retries.
	ErrTransientFetchFailure = errors.New("transient fetch failure")

	// ErrAuthenticationFailure indicates a missing or rejected access token.
	ErrAuthenticationFailure = errors.New("authentication failure")
)

// KindOf maps an error to its ErrorKind. Errors outside the taxonomy map to
// ErrorKindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrAuthenticationFailure):
		return ErrorKindAuthentication
	case errors.Is(err, ErrInvalidRepositoryIdentifier):
		return ErrorKindInvalidIdentifier
	case errors.Is(err, ErrRepositoryUnavailable):
		return ErrorKindRepositoryUnavailable
	case errors.Is(err, ErrRateLimitExceeded):
		return ErrorKindRateLimitExceeded
	case errors.Is(err, ErrTransientFetchFailure):
		return ErrorKindTransientFailure
	default:
		return ErrorKindNone
	}
}

// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// RunSource defines the driven port for paginated retrieval of GitHub Actions
// records. Implementations translate transport failures into the model error
// taxonomy (model.ErrRepositoryUnavailable, model.ErrRateLimitExceeded,
// model.ErrTransientFetchFailure, model.ErrAuthenticationFailure).
type RunSource interface {
	// FetchPage returns one page of runs or jobs together with the number of
	// the next page, or 0 when the listing is exhausted.
	FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error)

	// RateLimit queries the current API budget. It is also used to verify the
	// access token before a batch starts.
	RateLimit(ctx context.Context) (model.RateLimitSnapshot, error)
}

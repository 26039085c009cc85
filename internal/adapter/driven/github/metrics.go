package github

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/AnalyzeActions/WorkKnow/internal/telemetry"
)

// clientMetrics counts API traffic. Instruments come from the global meter
// provider, which is a no-op unless telemetry was initialized.
type clientMetrics struct {
	requests    metric.Int64Counter
	rateLimited metric.Int64Counter
}

func newClientMetrics() clientMetrics {
	meter := telemetry.Meter("github.com/AnalyzeActions/WorkKnow/github")

	requests, err := meter.Int64Counter("workknow.github.requests",
		metric.WithDescription("GitHub API requests sent, including retries"))
	if err != nil {
		slog.Debug("create request counter", "error", err)
		requests = noop.Int64Counter{}
	}

	rateLimited, err := meter.Int64Counter("workknow.github.rate_limited",
		metric.WithDescription("GitHub API responses rejected by a rate limit"))
	if err != nil {
		slog.Debug("create rate limit counter", "error", err)
		rateLimited = noop.Int64Counter{}
	}

	return clientMetrics{requests: requests, rateLimited: rateLimited}
}

func (m clientMetrics) recordRequest(ctx context.Context, endpoint string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

func (m clientMetrics) recordRateLimited(ctx context.Context, endpoint string) {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

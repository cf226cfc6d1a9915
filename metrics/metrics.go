package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-capture/endpoint"
)

// IngestCounts is the trailing-24h ingestion activity.
type IngestCounts struct {
	// Successes is payloads stored in the last 24 hours
	Successes int64 `json:"successes"`

	// Failures is rejected attempts in the last 24 hours
	Failures int64 `json:"failures"`
}

// Collector defines the interface for collecting capture-side metrics.
type Collector interface {
	// GetEndpointTotal returns the number of endpoints currently registered
	GetEndpointTotal(ctx context.Context) (int64, error)

	// GetIngestCounts returns trailing-24h success/failure counts
	GetIngestCounts(ctx context.Context) (IngestCounts, error)
}

/* StorageCollector reads metrics straight from the aggregation queries.
 * There is no separate metrics store: the tables are the source of truth,
 * and scrapes are infrequent enough that live counts are fine
 */
type StorageCollector struct {
	stats endpoint.StatsReader
}

func NewStorageCollector(stats endpoint.StatsReader) *StorageCollector {
	return &StorageCollector{
		stats: stats,
	}
}

func (c *StorageCollector) GetEndpointTotal(ctx context.Context) (int64, error) {
	total, err := c.stats.TotalEndpoints(ctx)
	if err != nil {
		return 0, fmt.Errorf("collecting endpoint total: %w", err)
	}
	return total, nil
}

func (c *StorageCollector) GetIngestCounts(ctx context.Context) (IngestCounts, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)

	successes, err := c.stats.CountSince(ctx, endpoint.Successes, since)
	if err != nil {
		return IngestCounts{}, fmt.Errorf("collecting success count: %w", err)
	}

	failures, err := c.stats.CountSince(ctx, endpoint.Failures, since)
	if err != nil {
		return IngestCounts{}, fmt.Errorf("collecting failure count: %w", err)
	}

	return IngestCounts{
		Successes: successes,
		Failures:  failures,
	}, nil
}

package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/marcelsud/webhook-capture/endpoint"
)

/* Read-only statistics derived from storage, computed live on every call.
 * Nothing here caches: the dashboard must reflect the latest committed
 * write, and the queries are cheap at this system's scale
 */

// Overview is the dashboard's stat-card data.
type Overview struct {
	TotalWebhooks int64 `json:"total_webhooks"`
	SuccessToday  int64 `json:"success_today"`
	FailuresToday int64 `json:"failures_today"`
}

// DailyActivity is one row of the merged per-day table: the creation,
// success and failure series joined on date, zero-filled where a series
// has no events.
type DailyActivity struct {
	Date      string `json:"date"`
	Created   int64  `json:"created"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

type Service struct {
	Repo endpoint.StatsReader
}

func NewService(repo endpoint.StatsReader) *Service {
	return &Service{
		Repo: repo,
	}
}

// Overview returns the endpoint total plus trailing-24h success and
// failure counts.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	total, err := s.Repo.TotalEndpoints(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("counting endpoints: %w", err)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)

	successToday, err := s.Repo.CountSince(ctx, endpoint.Successes, since)
	if err != nil {
		return Overview{}, fmt.Errorf("counting successes: %w", err)
	}

	failuresToday, err := s.Repo.CountSince(ctx, endpoint.Failures, since)
	if err != nil {
		return Overview{}, fmt.Errorf("counting failures: %w", err)
	}

	return Overview{
		TotalWebhooks: total,
		SuccessToday:  successToday,
		FailuresToday: failuresToday,
	}, nil
}

/* DailyActivity merges the three per-day series over the trailing N days
 * into one date-ascending table. A date appears if any series has events
 * on it; the other series contribute 0 for that date
 */
func (s *Service) DailyActivity(ctx context.Context, days int) ([]DailyActivity, error) {
	created, err := s.Repo.DailyCounts(ctx, endpoint.Creations, days)
	if err != nil {
		return nil, fmt.Errorf("counting daily creations: %w", err)
	}
	succeeded, err := s.Repo.DailyCounts(ctx, endpoint.Successes, days)
	if err != nil {
		return nil, fmt.Errorf("counting daily successes: %w", err)
	}
	failed, err := s.Repo.DailyCounts(ctx, endpoint.Failures, days)
	if err != nil {
		return nil, fmt.Errorf("counting daily failures: %w", err)
	}

	byDate := make(map[string]*DailyActivity)
	row := func(date string) *DailyActivity {
		if r, ok := byDate[date]; ok {
			return r
		}
		r := &DailyActivity{Date: date}
		byDate[date] = r
		return r
	}

	for _, c := range created {
		row(c.Date).Created = c.Count
	}
	for _, c := range succeeded {
		row(c.Date).Succeeded = c.Count
	}
	for _, c := range failed {
		row(c.Date).Failed = c.Count
	}

	merged := make([]DailyActivity, 0, len(byDate))
	for _, r := range byDate {
		merged = append(merged, *r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})

	return merged, nil
}

package stats_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/endpoint/mocks"
	"github.com/marcelsud/webhook-capture/stats"
)

func TestOverview(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := stats.NewService(repo)

		repo.On("TotalEndpoints", ctx).Return(int64(12), nil)
		repo.On("CountSince", ctx, endpoint.Successes, mock.AnythingOfType("time.Time")).
			Return(int64(34), nil)
		repo.On("CountSince", ctx, endpoint.Failures, mock.AnythingOfType("time.Time")).
			Return(int64(5), nil)

		overview, err := service.Overview(ctx)

		require.NoError(t, err)
		assert.Equal(t, stats.Overview{
			TotalWebhooks: 12,
			SuccessToday:  34,
			FailuresToday: 5,
		}, overview)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := stats.NewService(repo)

		repo.On("TotalEndpoints", ctx).Return(int64(0), errors.New("connection refused"))

		_, err := service.Overview(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "counting endpoints")
	})
}

func TestDailyActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("series are merged on date and zero-filled", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := stats.NewService(repo)

		repo.On("DailyCounts", ctx, endpoint.Creations, 7).Return([]endpoint.DailyCount{
			{Date: "2026-08-28", Count: 2},
		}, nil)
		repo.On("DailyCounts", ctx, endpoint.Successes, 7).Return([]endpoint.DailyCount{
			{Date: "2026-08-28", Count: 9},
			{Date: "2026-08-30", Count: 4},
		}, nil)
		repo.On("DailyCounts", ctx, endpoint.Failures, 7).Return([]endpoint.DailyCount{
			{Date: "2026-08-29", Count: 1},
		}, nil)

		activity, err := service.DailyActivity(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, []stats.DailyActivity{
			{Date: "2026-08-28", Created: 2, Succeeded: 9, Failed: 0},
			{Date: "2026-08-29", Created: 0, Succeeded: 0, Failed: 1},
			{Date: "2026-08-30", Created: 0, Succeeded: 4, Failed: 0},
		}, activity)
	})

	t.Run("no activity yields an empty table", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := stats.NewService(repo)

		repo.On("DailyCounts", ctx, mock.AnythingOfType("endpoint.EventKind"), 7).
			Return([]endpoint.DailyCount{}, nil)

		activity, err := service.DailyActivity(ctx, 7)

		require.NoError(t, err)
		assert.Empty(t, activity)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := stats.NewService(repo)

		repo.On("DailyCounts", ctx, endpoint.Creations, 7).
			Return([]endpoint.DailyCount{}, errors.New("disk full"))

		_, err := service.DailyActivity(ctx, 7)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "counting daily creations")
	})
}

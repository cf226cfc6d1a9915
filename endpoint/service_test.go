package endpoint_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/endpoint/mocks"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("Insert", ctx, mock.MatchedBy(func(e endpoint.Endpoint) bool {
			if _, err := uuid.Parse(e.ID); err != nil {
				return false
			}
			return e.URL == "http://example.com/webhook/"+e.ID &&
				e.SuccessCount == 0 &&
				e.FailureCount == 0 &&
				e.LastPayloadAt == nil &&
				!e.CreatedAt.IsZero()
		})).Return(nil)

		e, err := service.Create(ctx, "http://example.com")

		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(e.URL, "/webhook/"+e.ID))
	})

	t.Run("trailing slash on base URL is not doubled", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("Insert", ctx, mock.MatchedBy(func(e endpoint.Endpoint) bool {
			return !strings.Contains(e.URL, "//webhook/")
		})).Return(nil)

		e, err := service.Create(ctx, "http://example.com/")

		require.NoError(t, err)
		assert.Equal(t, "http://example.com/webhook/"+e.ID, e.URL)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("Insert", ctx, mock.Anything).Return(errors.New("connection refused"))

		_, err := service.Create(ctx, "http://example.com")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "inserting endpoint")
	})
}

func TestRecordSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("valid JSON body is persisted", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		body := []byte(`{"a": 1}`)
		repo.On("RecordSuccess", ctx, "hook-1", body, mock.AnythingOfType("time.Time")).
			Return(int64(42), nil)

		rec, err := service.RecordSuccess(ctx, "hook-1", body)

		require.NoError(t, err)
		assert.Equal(t, int64(42), rec.ID)
		assert.Equal(t, "hook-1", rec.EndpointID)
		assert.Equal(t, body, rec.Body)
		assert.WithinDuration(t, time.Now().UTC(), rec.Timestamp, time.Minute)
	})

	t.Run("invalid JSON never reaches storage", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		_, err := service.RecordSuccess(ctx, "hook-1", []byte("not json"))

		require.ErrorIs(t, err, endpoint.ErrInvalidPayload)
		repo.AssertNotCalled(t, "RecordSuccess", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("RecordSuccess", ctx, "missing", mock.Anything, mock.Anything).
			Return(int64(0), endpoint.ErrNotFound)

		_, err := service.RecordSuccess(ctx, "missing", []byte(`{}`))

		require.ErrorIs(t, err, endpoint.ErrNotFound)
	})
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("RecordFailure", ctx, "hook-1", mock.AnythingOfType("time.Time")).Return(nil)

		require.NoError(t, service.RecordFailure(ctx, "hook-1"))
	})

	t.Run("repository error", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("RecordFailure", ctx, "hook-1", mock.Anything).Return(errors.New("disk full"))

		err := service.RecordFailure(ctx, "hook-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "recording failure")
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("not found passes through as the sentinel", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		repo.On("Get", ctx, "missing").Return(endpoint.Endpoint{}, endpoint.ErrNotFound)

		_, err := service.Get(ctx, "missing")

		require.ErrorIs(t, err, endpoint.ErrNotFound)
	})
}

func TestPagination(t *testing.T) {
	ctx := context.Background()

	t.Run("page below one is rejected", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 20)

		_, _, err := service.List(ctx, 0)
		require.Error(t, err)

		_, _, err = service.Payloads(ctx, "hook-1", -3)
		require.Error(t, err)
	})

	t.Run("page size is forwarded to the repository", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := endpoint.NewService(repo, 7)

		repo.On("Payloads", ctx, "hook-1", 2, 7).Return([]endpoint.PayloadRecord{}, 3, nil)

		records, totalPages, err := service.Payloads(ctx, "hook-1", 2)

		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Equal(t, 3, totalPages)
	})
}

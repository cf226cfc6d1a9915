package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-capture/endpoint"
)

/* These tests run against a real in-memory engine, so they cover what the
 * postgres unit tests cannot: cascading deletes, pagination over real
 * rows, and concurrent transactional increments.
 */

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(context.Background()) })

	require.NoError(t, repo.CreateTables(context.Background()))
	return repo
}

func insertEndpoint(t *testing.T, repo *Repository, id string) endpoint.Endpoint {
	t.Helper()

	e := endpoint.Endpoint{
		ID:        id,
		URL:       "http://example.com/webhook/" + id,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(context.Background(), e))
	return e
}

func TestInsertAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := insertEndpoint(t, repo, "hook-1")

	got, err := repo.Get(ctx, "hook-1")
	require.NoError(t, err)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.URL, got.URL)
	assert.Equal(t, int64(0), got.SuccessCount)
	assert.Equal(t, int64(0), got.FailureCount)
	assert.Nil(t, got.LastPayloadAt)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, endpoint.ErrNotFound)
}

func TestRecordSuccess(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")

	ts := time.Now().UTC()
	payloadID, err := repo.RecordSuccess(ctx, "hook-1", []byte(`{"a": 1}`), ts)
	require.NoError(t, err)
	assert.Greater(t, payloadID, int64(0))

	e, err := repo.Get(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.SuccessCount)
	assert.Equal(t, int64(0), e.FailureCount)
	require.NotNil(t, e.LastPayloadAt)

	rec, err := repo.Payload(ctx, payloadID)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a": 1}`), rec.Body)
	assert.Equal(t, "hook-1", rec.EndpointID)

	t.Run("unknown endpoint writes nothing", func(t *testing.T) {
		_, err := repo.RecordSuccess(ctx, "missing", []byte(`{}`), ts)
		require.ErrorIs(t, err, endpoint.ErrNotFound)
	})
}

func TestRecordFailure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")

	require.NoError(t, repo.RecordFailure(ctx, "hook-1", time.Now().UTC()))

	e, err := repo.Get(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.SuccessCount)
	assert.Equal(t, int64(1), e.FailureCount)
	assert.Nil(t, e.LastPayloadAt)

	require.ErrorIs(t, repo.RecordFailure(ctx, "missing", time.Now().UTC()), endpoint.ErrNotFound)
}

func TestConcurrentIngestion(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")

	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte(fmt.Sprintf(`{"n": %d}`, i))
			_, err := repo.RecordSuccess(ctx, "hook-1", body, time.Now().UTC())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// No lost updates: every increment is reflected.
	e, err := repo.Get(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), e.SuccessCount)

	all, err := repo.AllPayloads(ctx, "hook-1")
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestDeleteCascades(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")
	insertEndpoint(t, repo, "hook-2")

	ts := time.Now().UTC()
	payloadID, err := repo.RecordSuccess(ctx, "hook-1", []byte(`{}`), ts)
	require.NoError(t, err)
	require.NoError(t, repo.RecordFailure(ctx, "hook-1", ts))

	keptID, err := repo.RecordSuccess(ctx, "hook-2", []byte(`{"kept": true}`), ts)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "hook-1"))

	_, err = repo.Get(ctx, "hook-1")
	require.ErrorIs(t, err, endpoint.ErrNotFound)

	// Dependent records are gone with the endpoint.
	_, err = repo.Payload(ctx, payloadID)
	require.ErrorIs(t, err, endpoint.ErrNotFound)

	all, err := repo.AllPayloads(ctx, "hook-1")
	require.NoError(t, err)
	assert.Empty(t, all)

	// The other endpoint's records are untouched.
	_, err = repo.Payload(ctx, keptID)
	require.NoError(t, err)

	require.ErrorIs(t, repo.Delete(ctx, "hook-1"), endpoint.ErrNotFound)
}

func TestPayloadsPagination(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 45; i++ {
		body := []byte(fmt.Sprintf(`{"n": %d}`, i))
		_, err := repo.RecordSuccess(ctx, "hook-1", body, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	page1, totalPages, err := repo.Payloads(ctx, "hook-1", 1, 20)
	require.NoError(t, err)
	assert.Len(t, page1, 20)
	assert.Equal(t, 3, totalPages)

	// Newest first.
	assert.Equal(t, []byte(`{"n": 44}`), page1[0].Body)

	page2, _, err := repo.Payloads(ctx, "hook-1", 2, 20)
	require.NoError(t, err)
	assert.Len(t, page2, 20)

	page3, _, err := repo.Payloads(ctx, "hook-1", 3, 20)
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	// Past the end is empty, not an error.
	page4, totalPages, err := repo.Payloads(ctx, "hook-1", 4, 20)
	require.NoError(t, err)
	assert.Empty(t, page4)
	assert.Equal(t, 3, totalPages)
}

func TestAllPayloadsIsStable(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")

	ts := time.Now().UTC()
	for i := 0; i < 5; i++ {
		// Shared timestamp: ordering must still be stable across reads.
		_, err := repo.RecordSuccess(ctx, "hook-1", []byte(fmt.Sprintf(`{"n": %d}`, i)), ts)
		require.NoError(t, err)
	}

	first, err := repo.AllPayloads(ctx, "hook-1")
	require.NoError(t, err)
	second, err := repo.AllPayloads(ctx, "hook-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 5)
}

func TestListEndpoints(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	t.Run("empty store lists cleanly", func(t *testing.T) {
		all, totalPages, err := repo.List(ctx, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, 0, totalPages)
	})

	for i := 0; i < 3; i++ {
		e := endpoint.Endpoint{
			ID:        fmt.Sprintf("hook-%d", i),
			URL:       fmt.Sprintf("http://example.com/webhook/hook-%d", i),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Insert(ctx, e))
	}

	all, totalPages, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, totalPages)

	// Most recently created first.
	assert.Equal(t, "hook-2", all[0].ID)
	assert.Equal(t, "hook-1", all[1].ID)
}

func TestStats(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	insertEndpoint(t, repo, "hook-1")

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)

	_, err := repo.RecordSuccess(ctx, "hook-1", []byte(`{"fresh": true}`), now)
	require.NoError(t, err)
	_, err = repo.RecordSuccess(ctx, "hook-1", []byte(`{"stale": true}`), old)
	require.NoError(t, err)
	require.NoError(t, repo.RecordFailure(ctx, "hook-1", now))

	total, err := repo.TotalEndpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	since := now.Add(-24 * time.Hour)

	successes, err := repo.CountSince(ctx, endpoint.Successes, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), successes)

	failures, err := repo.CountSince(ctx, endpoint.Failures, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failures)

	daily, err := repo.DailyCounts(ctx, endpoint.Successes, 7)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, old.Format("2006-01-02"), daily[0].Date)
	assert.Equal(t, int64(1), daily[0].Count)
	assert.Equal(t, now.Format("2006-01-02"), daily[1].Date)
	assert.Equal(t, int64(1), daily[1].Count)
}

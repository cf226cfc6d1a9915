package endpoint

import (
	"context"
	"errors"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// ErrNotFound is returned when an endpoint or payload does not exist.
// Both storage backends return this same sentinel so callers can use errors.Is.
var ErrNotFound = errors.New("not found")

// Reader provides read operations for endpoints
type Reader interface {
	/* Context is always the first parameter in functions that do I/O
	 * This allows for cancellation, timeouts, and shared values
	 */
	Get(ctx context.Context, id string) (Endpoint, error)
	List(ctx context.Context, page, perPage int) ([]Endpoint, int, error)
}

// Writer provides write operations for endpoints
type Writer interface {
	Insert(ctx context.Context, e Endpoint) error
	/* Delete removes the endpoint and, through cascading foreign keys,
	 * every payload and failure record that belongs to it
	 */
	Delete(ctx context.Context, id string) error
	/* RecordSuccess inserts a payload record, increments the success counter
	 * and sets last_payload_at, all inside one transaction
	 * Returns the generated payload ID
	 */
	RecordSuccess(ctx context.Context, id string, body []byte, ts time.Time) (int64, error)
	// RecordFailure inserts a failure record and increments the failure
	// counter, all inside one transaction.
	RecordFailure(ctx context.Context, id string, ts time.Time) error
}

// PayloadReader provides read operations for stored payloads
type PayloadReader interface {
	// Payloads returns one page of payloads, newest first, plus the total
	// number of pages. Pages beyond the end are empty, not an error.
	Payloads(ctx context.Context, id string, page, perPage int) ([]PayloadRecord, int, error)
	// AllPayloads returns every payload for an endpoint, newest first.
	AllPayloads(ctx context.Context, id string) ([]PayloadRecord, error)
	Payload(ctx context.Context, payloadID int64) (PayloadRecord, error)
}

/* StatsReader provides the read-only aggregation queries behind the
 * dashboard. All counts are computed live from the tables, never from an
 * in-process cache, so every read reflects the latest committed write
 */
type StatsReader interface {
	TotalEndpoints(ctx context.Context) (int64, error)
	// CountSince counts records of one kind with a timestamp at or after
	// the given instant.
	CountSince(ctx context.Context, kind EventKind, since time.Time) (int64, error)
	// DailyCounts groups records of one kind by UTC calendar date over the
	// trailing N days, ascending. Days with zero events are omitted.
	DailyCounts(ctx context.Context, kind EventKind, days int) ([]DailyCount, error)
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	Reader
	Writer
	PayloadReader
	StatsReader
	Close(ctx context.Context) error
}

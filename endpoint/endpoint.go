package endpoint

import "time"

/* Endpoint represents one generated inbound webhook URL
 * Uses value semantics as it represents data, not behavior
 */
type Endpoint struct {
	ID            string
	URL           string
	CreatedAt     time.Time
	SuccessCount  int64
	FailureCount  int64
	LastPayloadAt *time.Time
}

// PayloadRecord is one successfully received JSON body.
// The body is stored exactly as it arrived and never mutated.
type PayloadRecord struct {
	ID         int64
	EndpointID string
	Timestamp  time.Time
	Body       []byte
}

/* FailureRecord marks one rejected ingestion attempt
 * The failed body is discarded, only the fact and time are kept
 */
type FailureRecord struct {
	ID         int64
	EndpointID string
	Timestamp  time.Time
}

// DailyCount is one point of a per-calendar-day series (UTC dates).
type DailyCount struct {
	Date  string
	Count int64
}

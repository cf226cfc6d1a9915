package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/marcelsud/webhook-capture/endpoint"
)

/* PostgreSQL implementation of endpoint.Repository
 *
 * Referential integrity lives in the schema: both record tables carry a
 * foreign key to webhooks with ON DELETE CASCADE, so deleting an endpoint
 * atomically removes its payloads and failures.
 *
 * Counter updates are expressed as `SET c = c + 1` inside a transaction,
 * never read-modify-write in application memory, so the engine serializes
 * concurrent writers to the same row and no increment is lost.
 */

type Repository struct {
	DB *sql.DB
}

// NewRepository opens a PostgreSQL connection with the default pool (25, 5, 5 min)
func NewRepository(connectionString string) (*Repository, error) {
	return NewRepositoryWithPoolConfig(connectionString, 25, 5, 5)
}

// NewRepositoryWithPoolConfig opens a PostgreSQL connection with a custom pool.
// maxOpenConns: maximum simultaneous connections (0 = unlimited)
// maxIdleConns: maximum idle connections kept in the pool
// maxLifeMinutes: maximum lifetime in minutes of a pooled connection
func NewRepositoryWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Repository{
		DB: db,
	}, nil
}

// series maps an event kind to the table and timestamp column it counts.
func series(kind endpoint.EventKind) (table, column string, err error) {
	switch kind {
	case endpoint.Creations:
		return "webhooks", "created_at", nil
	case endpoint.Successes:
		return "webhook_payloads", "timestamp", nil
	case endpoint.Failures:
		return "webhook_failures", "timestamp", nil
	default:
		return "", "", fmt.Errorf("invalid event kind: %d", kind)
	}
}

// isForeignKeyViolation reports whether an insert hit a missing parent row.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation"
}

func (r *Repository) Insert(ctx context.Context, e endpoint.Endpoint) error {
	query := `
		INSERT INTO webhooks (id, url, created_at, success_count, failure_count)
		VALUES ($1, $2, $3, 0, 0)
	`

	if _, err := r.DB.ExecContext(ctx, query, e.ID, e.URL, e.CreatedAt); err != nil {
		return fmt.Errorf("inserting endpoint: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (endpoint.Endpoint, error) {
	query := "SELECT id, url, created_at, success_count, failure_count, last_payload_at FROM webhooks WHERE id = $1"

	var e endpoint.Endpoint
	var lastPayloadAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.URL,
		&e.CreatedAt,
		&e.SuccessCount,
		&e.FailureCount,
		&lastPayloadAt,
	)

	if err == sql.ErrNoRows {
		return endpoint.Endpoint{}, endpoint.ErrNotFound
	}

	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("selecting endpoint: %w", err)
	}

	if lastPayloadAt.Valid {
		t := lastPayloadAt.Time
		e.LastPayloadAt = &t
	}

	return e, nil
}

func (r *Repository) List(ctx context.Context, page, perPage int) ([]endpoint.Endpoint, int, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(id) FROM webhooks").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting endpoints: %w", err)
	}

	query := `
		SELECT id, url, created_at, success_count, failure_count, last_payload_at
		FROM webhooks
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("selecting endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []endpoint.Endpoint

	for rows.Next() {
		var e endpoint.Endpoint
		var lastPayloadAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.URL, &e.CreatedAt, &e.SuccessCount, &e.FailureCount, &lastPayloadAt); err != nil {
			return nil, 0, fmt.Errorf("scanning endpoint: %w", err)
		}
		if lastPayloadAt.Valid {
			t := lastPayloadAt.Time
			e.LastPayloadAt = &t
		}
		endpoints = append(endpoints, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating endpoints: %w", err)
	}

	return endpoints, totalPages(total, perPage), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	// Dependent payload and failure rows go with it via ON DELETE CASCADE.
	result, err := r.DB.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting endpoint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return endpoint.ErrNotFound
	}

	return nil
}

func (r *Repository) RecordSuccess(ctx context.Context, id string, body []byte, ts time.Time) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO webhook_payloads (webhook_id, timestamp, payload)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var payloadID int64
	if err := tx.QueryRowContext(ctx, insert, id, ts, string(body)).Scan(&payloadID); err != nil {
		if isForeignKeyViolation(err) {
			return 0, endpoint.ErrNotFound
		}
		return 0, fmt.Errorf("inserting payload: %w", err)
	}

	update := `
		UPDATE webhooks
		SET success_count = success_count + 1, last_payload_at = $1
		WHERE id = $2
	`

	result, err := tx.ExecContext(ctx, update, ts, id)
	if err != nil {
		return 0, fmt.Errorf("incrementing success count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return 0, endpoint.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return payloadID, nil
}

func (r *Repository) RecordFailure(ctx context.Context, id string, ts time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insert := "INSERT INTO webhook_failures (webhook_id, timestamp) VALUES ($1, $2)"
	if _, err := tx.ExecContext(ctx, insert, id, ts); err != nil {
		if isForeignKeyViolation(err) {
			return endpoint.ErrNotFound
		}
		return fmt.Errorf("inserting failure: %w", err)
	}

	update := "UPDATE webhooks SET failure_count = failure_count + 1 WHERE id = $1"
	result, err := tx.ExecContext(ctx, update, id)
	if err != nil {
		return fmt.Errorf("incrementing failure count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return endpoint.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) Payloads(ctx context.Context, id string, page, perPage int) ([]endpoint.PayloadRecord, int, error) {
	var total int64
	count := "SELECT COUNT(id) FROM webhook_payloads WHERE webhook_id = $1"
	if err := r.DB.QueryRowContext(ctx, count, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting payloads: %w", err)
	}

	// id DESC keeps ordering stable when two payloads share a timestamp.
	query := `
		SELECT id, webhook_id, timestamp, payload
		FROM webhook_payloads
		WHERE webhook_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.DB.QueryContext(ctx, query, id, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("selecting payloads: %w", err)
	}
	defer rows.Close()

	records, err := scanPayloads(rows)
	if err != nil {
		return nil, 0, err
	}

	return records, totalPages(total, perPage), nil
}

func (r *Repository) AllPayloads(ctx context.Context, id string) ([]endpoint.PayloadRecord, error) {
	query := `
		SELECT id, webhook_id, timestamp, payload
		FROM webhook_payloads
		WHERE webhook_id = $1
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := r.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("selecting payloads: %w", err)
	}
	defer rows.Close()

	return scanPayloads(rows)
}

func (r *Repository) Payload(ctx context.Context, payloadID int64) (endpoint.PayloadRecord, error) {
	query := "SELECT id, webhook_id, timestamp, payload FROM webhook_payloads WHERE id = $1"

	var rec endpoint.PayloadRecord
	var body string
	err := r.DB.QueryRowContext(ctx, query, payloadID).Scan(&rec.ID, &rec.EndpointID, &rec.Timestamp, &body)

	if err == sql.ErrNoRows {
		return endpoint.PayloadRecord{}, endpoint.ErrNotFound
	}

	if err != nil {
		return endpoint.PayloadRecord{}, fmt.Errorf("selecting payload: %w", err)
	}

	rec.Body = []byte(body)
	return rec, nil
}

func (r *Repository) TotalEndpoints(ctx context.Context) (int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(id) FROM webhooks").Scan(&total); err != nil {
		return 0, fmt.Errorf("counting endpoints: %w", err)
	}
	return total, nil
}

func (r *Repository) CountSince(ctx context.Context, kind endpoint.EventKind, since time.Time) (int64, error) {
	table, column, err := series(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(id) FROM %s WHERE %s >= $1", table, column)

	var total int64
	if err := r.DB.QueryRowContext(ctx, query, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting %s: %w", kind, err)
	}
	return total, nil
}

func (r *Repository) DailyCounts(ctx context.Context, kind endpoint.EventKind, days int) ([]endpoint.DailyCount, error) {
	table, column, err := series(kind)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)
	query := fmt.Sprintf(`
		SELECT to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS event_date, COUNT(id) AS count
		FROM %s
		WHERE %s >= $1
		GROUP BY event_date
		ORDER BY event_date ASC
	`, column, table, column)

	rows, err := r.DB.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("selecting daily %s: %w", kind, err)
	}
	defer rows.Close()

	var counts []endpoint.DailyCount

	for rows.Next() {
		var c endpoint.DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning daily count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily counts: %w", err)
	}

	return counts, nil
}

// Close closes the database connection
func (r *Repository) Close(ctx context.Context) error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

// CreateTables creates the schema (used by the CLI and by tests)
func (r *Repository) CreateTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS webhooks (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			success_count BIGINT NOT NULL DEFAULT 0,
			failure_count BIGINT NOT NULL DEFAULT 0,
			last_payload_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_payloads (
			id BIGSERIAL PRIMARY KEY,
			webhook_id TEXT NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
			timestamp TIMESTAMPTZ NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_failures (
			id BIGSERIAL PRIMARY KEY,
			webhook_id TEXT NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_payloads_webhook_id ON webhook_payloads (webhook_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_failures_webhook_id ON webhook_failures (webhook_id, timestamp DESC)`,
	}

	for _, stmt := range statements {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	return nil
}

// DropTables removes the schema (used by tests)
func (r *Repository) DropTables(ctx context.Context) error {
	query := "DROP TABLE IF EXISTS webhook_failures, webhook_payloads, webhooks CASCADE"

	if _, err := r.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("dropping schema: %w", err)
	}

	return nil
}

func totalPages(total int64, perPage int) int {
	if perPage < 1 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

func scanPayloads(rows *sql.Rows) ([]endpoint.PayloadRecord, error) {
	var records []endpoint.PayloadRecord

	for rows.Next() {
		var rec endpoint.PayloadRecord
		var body string
		if err := rows.Scan(&rec.ID, &rec.EndpointID, &rec.Timestamp, &body); err != nil {
			return nil, fmt.Errorf("scanning payload: %w", err)
		}
		rec.Body = []byte(body)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payloads: %w", err)
	}

	return records, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/marcelsud/webhook-capture/endpoint"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

/* SQLite implementation of endpoint.Repository
 *
 * Used as the embedded backend for development and for storage tests that
 * need a real engine without containers. Same contract as the postgres
 * implementation, with the syntax differences the engine requires:
 * - (?) placeholders instead of ($1, $2)
 * - AUTOINCREMENT instead of BIGSERIAL
 * - LastInsertId instead of RETURNING
 * - foreign keys must be switched on per connection (DSN option)
 */

type Repository struct {
	DB *sql.DB
}

// NewRepository opens (or creates) a SQLite database at the given path.
// `file::memory:?cache=shared` gives an in-memory database for tests.
func NewRepository(path string) (*Repository, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	/* SQLite allows a single writer at a time; funneling every request
	 * through one pooled connection avoids SQLITE_BUSY under concurrent
	 * ingestion while keeping transactions fully serialized
	 */
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	return &Repository{
		DB: db,
	}, nil
}

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

func (r *Repository) Insert(ctx context.Context, e endpoint.Endpoint) error {
	query := `
		INSERT INTO webhooks (id, url, created_at, success_count, failure_count)
		VALUES (?, ?, ?, 0, 0)
	`

	if _, err := r.DB.ExecContext(ctx, query, e.ID, e.URL, e.CreatedAt); err != nil {
		return fmt.Errorf("inserting endpoint: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (endpoint.Endpoint, error) {
	query := "SELECT id, url, created_at, success_count, failure_count, last_payload_at FROM webhooks WHERE id = ?"

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
		LIMIT ? OFFSET ?
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
	result, err := r.DB.ExecContext(ctx, "DELETE FROM webhooks WHERE id = ?", id)
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

	update := `
		UPDATE webhooks
		SET success_count = success_count + 1, last_payload_at = ?
		WHERE id = ?
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

	insert := "INSERT INTO webhook_payloads (webhook_id, timestamp, payload) VALUES (?, ?, ?)"
	inserted, err := tx.ExecContext(ctx, insert, id, ts, string(body))
	if err != nil {
		return 0, fmt.Errorf("inserting payload: %w", err)
	}

	payloadID, err := inserted.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert ID: %w", err)
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

	update := "UPDATE webhooks SET failure_count = failure_count + 1 WHERE id = ?"
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

	insert := "INSERT INTO webhook_failures (webhook_id, timestamp) VALUES (?, ?)"
	if _, err := tx.ExecContext(ctx, insert, id, ts); err != nil {
		return fmt.Errorf("inserting failure: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) Payloads(ctx context.Context, id string, page, perPage int) ([]endpoint.PayloadRecord, int, error) {
	var total int64
	count := "SELECT COUNT(id) FROM webhook_payloads WHERE webhook_id = ?"
	if err := r.DB.QueryRowContext(ctx, count, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting payloads: %w", err)
	}

	query := `
		SELECT id, webhook_id, timestamp, payload
		FROM webhook_payloads
		WHERE webhook_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
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
		WHERE webhook_id = ?
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
	query := "SELECT id, webhook_id, timestamp, payload FROM webhook_payloads WHERE id = ?"

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

	query := fmt.Sprintf("SELECT COUNT(id) FROM %s WHERE %s >= ?", table, column)

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
		SELECT date(%s) AS event_date, COUNT(id) AS count
		FROM %s
		WHERE %s >= ?
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
			created_at TIMESTAMP NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_payload_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_payloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			webhook_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			payload TEXT NOT NULL,
			FOREIGN KEY(webhook_id) REFERENCES webhooks(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			webhook_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			FOREIGN KEY(webhook_id) REFERENCES webhooks(id) ON DELETE CASCADE
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

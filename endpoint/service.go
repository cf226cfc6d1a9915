package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// ErrInvalidPayload is returned when an ingested body is not parseable JSON.
var ErrInvalidPayload = errors.New("payload is not valid JSON")

// UseCase defines the business operations for endpoint management
type UseCase interface {
	Create(ctx context.Context, baseURL string) (Endpoint, error)
	Get(ctx context.Context, id string) (Endpoint, error)
	Delete(ctx context.Context, id string) error
	RecordSuccess(ctx context.Context, id string, body []byte) (PayloadRecord, error)
	RecordFailure(ctx context.Context, id string) error
	List(ctx context.Context, page int) ([]Endpoint, int, error)
	Payloads(ctx context.Context, id string, page int) ([]PayloadRecord, int, error)
	Export(ctx context.Context, id string) ([]PayloadRecord, error)
	Payload(ctx context.Context, payloadID int64) (PayloadRecord, error)
}

type Service struct {
	Repo Repository
	// PerPage is the page size for List and Payloads.
	PerPage int
}

// NewService creates a new endpoint service with dependency injection
func NewService(repo Repository, perPage int) *Service {
	return &Service{
		Repo:    repo,
		PerPage: perPage,
	}
}

// Create mints a fresh endpoint under the given base URL.
// A random 128-bit UUID keeps the collision probability low enough to
// treat as zero, so the identifier is never re-checked against the table.
func (s *Service) Create(ctx context.Context, baseURL string) (Endpoint, error) {
	id := uuid.New().String()
	e := Endpoint{
		ID:        id,
		URL:       strings.TrimRight(baseURL, "/") + "/webhook/" + id,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Insert(ctx, e); err != nil {
		return Endpoint{}, fmt.Errorf("inserting endpoint: %w", err)
	}
	return e, nil
}

// Get returns one endpoint by ID
func (s *Service) Get(ctx context.Context, id string) (Endpoint, error) {
	e, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Endpoint{}, err
		}
		return Endpoint{}, fmt.Errorf("selecting endpoint: %w", err)
	}
	return e, nil
}

// Delete removes an endpoint and all of its dependent records
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting endpoint: %w", err)
	}
	return nil
}

/* RecordSuccess validates the body as JSON and persists it
 * The timestamp is captured here, before the transaction begins, and is
 * the value dashboards sort by
 */
func (s *Service) RecordSuccess(ctx context.Context, id string, body []byte) (PayloadRecord, error) {
	if !json.Valid(body) {
		return PayloadRecord{}, ErrInvalidPayload
	}
	ts := time.Now().UTC()
	payloadID, err := s.Repo.RecordSuccess(ctx, id, body, ts)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PayloadRecord{}, err
		}
		return PayloadRecord{}, fmt.Errorf("recording payload: %w", err)
	}
	return PayloadRecord{
		ID:         payloadID,
		EndpointID: id,
		Timestamp:  ts,
		Body:       body,
	}, nil
}

// RecordFailure stores a failure marker and bumps the failure counter
func (s *Service) RecordFailure(ctx context.Context, id string) error {
	if err := s.Repo.RecordFailure(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("recording failure: %w", err)
	}
	return nil
}

// List returns one page of endpoints, most recently created first
func (s *Service) List(ctx context.Context, page int) ([]Endpoint, int, error) {
	if err := s.validatePage(page); err != nil {
		return nil, 0, err
	}
	all, totalPages, err := s.Repo.List(ctx, page, s.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("listing endpoints: %w", err)
	}
	return all, totalPages, nil
}

// Payloads returns one page of an endpoint's payloads, newest first
func (s *Service) Payloads(ctx context.Context, id string, page int) ([]PayloadRecord, int, error) {
	if err := s.validatePage(page); err != nil {
		return nil, 0, err
	}
	records, totalPages, err := s.Repo.Payloads(ctx, id, page, s.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("listing payloads: %w", err)
	}
	return records, totalPages, nil
}

// Export returns every payload for an endpoint, newest first
func (s *Service) Export(ctx context.Context, id string) ([]PayloadRecord, error) {
	records, err := s.Repo.AllPayloads(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("exporting payloads: %w", err)
	}
	return records, nil
}

// Payload returns one stored payload by its ID
func (s *Service) Payload(ctx context.Context, payloadID int64) (PayloadRecord, error) {
	rec, err := s.Repo.Payload(ctx, payloadID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PayloadRecord{}, err
		}
		return PayloadRecord{}, fmt.Errorf("selecting payload: %w", err)
	}
	return rec, nil
}

func (s *Service) validatePage(page int) error {
	if page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", page)
	}
	if s.PerPage < 1 {
		return fmt.Errorf("page size must be at least 1, got %d", s.PerPage)
	}
	return nil
}

// Package mocks provides a testify mock of endpoint.Repository for unit
// tests of the layers above storage.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/marcelsud/webhook-capture/endpoint"
)

type Repository struct {
	mock.Mock
}

func NewRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *Repository {
	m := &Repository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Repository) Get(ctx context.Context, id string) (endpoint.Endpoint, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(endpoint.Endpoint), args.Error(1)
}

func (m *Repository) List(ctx context.Context, page, perPage int) ([]endpoint.Endpoint, int, error) {
	args := m.Called(ctx, page, perPage)
	var out []endpoint.Endpoint
	if v := args.Get(0); v != nil {
		out = v.([]endpoint.Endpoint)
	}
	return out, args.Int(1), args.Error(2)
}

func (m *Repository) Insert(ctx context.Context, e endpoint.Endpoint) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *Repository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Repository) RecordSuccess(ctx context.Context, id string, body []byte, ts time.Time) (int64, error) {
	args := m.Called(ctx, id, body, ts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Repository) RecordFailure(ctx context.Context, id string, ts time.Time) error {
	args := m.Called(ctx, id, ts)
	return args.Error(0)
}

func (m *Repository) Payloads(ctx context.Context, id string, page, perPage int) ([]endpoint.PayloadRecord, int, error) {
	args := m.Called(ctx, id, page, perPage)
	var out []endpoint.PayloadRecord
	if v := args.Get(0); v != nil {
		out = v.([]endpoint.PayloadRecord)
	}
	return out, args.Int(1), args.Error(2)
}

func (m *Repository) AllPayloads(ctx context.Context, id string) ([]endpoint.PayloadRecord, error) {
	args := m.Called(ctx, id)
	var out []endpoint.PayloadRecord
	if v := args.Get(0); v != nil {
		out = v.([]endpoint.PayloadRecord)
	}
	return out, args.Error(1)
}

func (m *Repository) Payload(ctx context.Context, payloadID int64) (endpoint.PayloadRecord, error) {
	args := m.Called(ctx, payloadID)
	return args.Get(0).(endpoint.PayloadRecord), args.Error(1)
}

func (m *Repository) TotalEndpoints(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Repository) CountSince(ctx context.Context, kind endpoint.EventKind, since time.Time) (int64, error) {
	args := m.Called(ctx, kind, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Repository) DailyCounts(ctx context.Context, kind endpoint.EventKind, days int) ([]endpoint.DailyCount, error) {
	args := m.Called(ctx, kind, days)
	var out []endpoint.DailyCount
	if v := args.Get(0); v != nil {
		out = v.([]endpoint.DailyCount)
	}
	return out, args.Error(1)
}

func (m *Repository) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

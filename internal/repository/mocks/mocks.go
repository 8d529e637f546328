package mocks

import (
	"context"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/activity"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/stretchr/testify/mock"
)

// KVStore is a mock for repository.KVStore.
type KVStore struct {
	mock.Mock
}

func (m *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *KVStore) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *KVStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// ActivityRepository is a mock for repository.ActivityRepository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ReferenceClient is a mock for the reference-data endpoint.
type ReferenceClient struct {
	mock.Mock
}

func (m *ReferenceClient) FetchReference(ctx context.Context) (catalog.Catalog, error) {
	args := m.Called(ctx)
	if c, ok := args.Get(0).(catalog.Catalog); ok {
		return c, args.Error(1)
	}
	return catalog.Catalog{}, args.Error(1)
}

func (m *ReferenceClient) PushCatalog(ctx context.Context, delta catalog.Delta) error {
	args := m.Called(ctx, delta)
	return args.Error(0)
}

// ReportClient is a mock for the report upload endpoint.
type ReportClient struct {
	mock.Mock
}

func (m *ReportClient) UploadReport(ctx context.Context, req report.UploadRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// ThreadClient is a mock for the thread download endpoint.
type ThreadClient struct {
	mock.Mock
}

func (m *ThreadClient) DownloadThread(ctx context.Context, query report.ThreadQuery) ([]report.Message, error) {
	args := m.Called(ctx, query)
	if msgs, ok := args.Get(0).([]report.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

package binding

import (
	"context"

	"github.com/dshills/embedbridge/core"
	"github.com/stretchr/testify/mock"
)

// MockEngine is a testify mock of Engine
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) CreateTenant(ctx context.Context, req core.CreateTenantRequest) (core.Tenant, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Tenant), args.Error(1)
}

func (m *MockEngine) GetTenant(ctx context.Context, req core.GetTenantRequest) (core.Tenant, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Tenant), args.Error(1)
}

func (m *MockEngine) CreateDatabase(ctx context.Context, req core.CreateDatabaseRequest) (core.Database, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Database), args.Error(1)
}

func (m *MockEngine) GetDatabase(ctx context.Context, req core.GetDatabaseRequest) (core.Database, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Database), args.Error(1)
}

func (m *MockEngine) DeleteDatabase(ctx context.Context, req core.DeleteDatabaseRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockEngine) ListDatabases(ctx context.Context, req core.ListDatabasesRequest) ([]core.Database, error) {
	args := m.Called(ctx, req)
	dbs, _ := args.Get(0).([]core.Database)
	return dbs, args.Error(1)
}

func (m *MockEngine) CreateCollection(ctx context.Context, req core.CreateCollectionRequest) (core.Collection, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Collection), args.Error(1)
}

func (m *MockEngine) GetCollection(ctx context.Context, req core.GetCollectionRequest) (core.Collection, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Collection), args.Error(1)
}

func (m *MockEngine) DeleteCollection(ctx context.Context, req core.DeleteCollectionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockEngine) ListCollections(ctx context.Context, req core.ListCollectionsRequest) ([]core.Collection, error) {
	args := m.Called(ctx, req)
	collections, _ := args.Get(0).([]core.Collection)
	return collections, args.Error(1)
}

func (m *MockEngine) CountCollections(ctx context.Context, req core.CountCollectionsRequest) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) UpdateCollection(ctx context.Context, req core.UpdateCollectionRequest) (core.Collection, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.Collection), args.Error(1)
}

func (m *MockEngine) Add(ctx context.Context, req core.AddRecordsRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockEngine) Update(ctx context.Context, req core.UpdateRecordsRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockEngine) Upsert(ctx context.Context, req core.UpsertRecordsRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockEngine) Delete(ctx context.Context, req core.DeleteRecordsRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockEngine) Get(ctx context.Context, req core.GetRequest) (core.GetResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.GetResult), args.Error(1)
}

func (m *MockEngine) Query(ctx context.Context, req core.QueryRequest) (core.QueryResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.QueryResult), args.Error(1)
}

func (m *MockEngine) Count(ctx context.Context, req core.CountRequest) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) Reset(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEngine) Heartbeat(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngine) Close() error {
	return m.Called().Error(0)
}

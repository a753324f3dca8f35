package binding

import (
	"context"

	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/engine"
	"go.uber.org/zap"
)

// Engine is the engine surface a handle drives
type Engine interface {
	CreateTenant(ctx context.Context, req core.CreateTenantRequest) (core.Tenant, error)
	GetTenant(ctx context.Context, req core.GetTenantRequest) (core.Tenant, error)

	CreateDatabase(ctx context.Context, req core.CreateDatabaseRequest) (core.Database, error)
	GetDatabase(ctx context.Context, req core.GetDatabaseRequest) (core.Database, error)
	DeleteDatabase(ctx context.Context, req core.DeleteDatabaseRequest) error
	ListDatabases(ctx context.Context, req core.ListDatabasesRequest) ([]core.Database, error)

	CreateCollection(ctx context.Context, req core.CreateCollectionRequest) (core.Collection, error)
	GetCollection(ctx context.Context, req core.GetCollectionRequest) (core.Collection, error)
	DeleteCollection(ctx context.Context, req core.DeleteCollectionRequest) error
	ListCollections(ctx context.Context, req core.ListCollectionsRequest) ([]core.Collection, error)
	CountCollections(ctx context.Context, req core.CountCollectionsRequest) (int, error)
	UpdateCollection(ctx context.Context, req core.UpdateCollectionRequest) (core.Collection, error)

	Add(ctx context.Context, req core.AddRecordsRequest) error
	Update(ctx context.Context, req core.UpdateRecordsRequest) error
	Upsert(ctx context.Context, req core.UpsertRecordsRequest) error
	Delete(ctx context.Context, req core.DeleteRecordsRequest) error
	Get(ctx context.Context, req core.GetRequest) (core.GetResult, error)
	Query(ctx context.Context, req core.QueryRequest) (core.QueryResult, error)
	Count(ctx context.Context, req core.CountRequest) (int, error)

	Reset(ctx context.Context) error
	Heartbeat(ctx context.Context) (int64, error)
	Close() error
}

var _ Engine = (*engine.Frontend)(nil)

// EngineFactory builds the engine of a new handle over opened persistence.
// The engine owns p and must close it.
type EngineFactory func(ctx context.Context, p core.Persistence, config engine.Config, logger *zap.Logger) (Engine, error)

// NewFrontendEngine is the default EngineFactory
func NewFrontendEngine(ctx context.Context, p core.Persistence, config engine.Config, logger *zap.Logger) (Engine, error) {
	return engine.NewFrontend(ctx, p, config, logger)
}

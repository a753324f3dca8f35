package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateTenant creates a tenant
func (f *Frontend) CreateTenant(ctx context.Context, req core.CreateTenantRequest) (core.Tenant, error) {
	if err := f.checkOpen(); err != nil {
		return core.Tenant{}, err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	_, err := f.persistence.LoadTenant(ctx, req.Name)
	if err == nil {
		return core.Tenant{}, fmt.Errorf("%w: %s", core.ErrTenantExists, req.Name)
	}
	if !errors.Is(err, core.ErrTenantNotFound) {
		return core.Tenant{}, err
	}

	tenant := core.Tenant{Name: req.Name}
	if err := f.persistence.SaveTenant(ctx, tenant); err != nil {
		return core.Tenant{}, fmt.Errorf("failed to save tenant: %w", err)
	}
	return tenant, nil
}

// GetTenant fetches a tenant
func (f *Frontend) GetTenant(ctx context.Context, req core.GetTenantRequest) (core.Tenant, error) {
	if err := f.checkOpen(); err != nil {
		return core.Tenant{}, err
	}
	return f.persistence.LoadTenant(ctx, req.Name)
}

func (f *Frontend) findDatabase(ctx context.Context, tenant, name string) (core.Database, error) {
	dbs, err := f.persistence.LoadDatabases(ctx)
	if err != nil {
		return core.Database{}, err
	}
	for _, db := range dbs {
		if db.Tenant == tenant && db.Name == name {
			return db, nil
		}
	}
	return core.Database{}, fmt.Errorf("%w: %s/%s", core.ErrDatabaseNotFound, tenant, name)
}

// CreateDatabase creates a database in an existing tenant
func (f *Frontend) CreateDatabase(ctx context.Context, req core.CreateDatabaseRequest) (core.Database, error) {
	if err := f.checkOpen(); err != nil {
		return core.Database{}, err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	if _, err := f.persistence.LoadTenant(ctx, req.Tenant); err != nil {
		return core.Database{}, err
	}

	_, err := f.findDatabase(ctx, req.Tenant, req.Name)
	if err == nil {
		return core.Database{}, fmt.Errorf("%w: %s/%s", core.ErrDatabaseExists, req.Tenant, req.Name)
	}
	if !errors.Is(err, core.ErrDatabaseNotFound) {
		return core.Database{}, err
	}

	db := core.Database{
		ID:        uuid.New(),
		Name:      req.Name,
		Tenant:    req.Tenant,
		CreatedAt: f.now(),
	}
	if err := f.persistence.SaveDatabase(ctx, db); err != nil {
		return core.Database{}, fmt.Errorf("failed to save database: %w", err)
	}
	return db, nil
}

// GetDatabase fetches a database
func (f *Frontend) GetDatabase(ctx context.Context, req core.GetDatabaseRequest) (core.Database, error) {
	if err := f.checkOpen(); err != nil {
		return core.Database{}, err
	}
	return f.findDatabase(ctx, req.Tenant, req.Name)
}

// DeleteDatabase deletes a database together with its collections
func (f *Frontend) DeleteDatabase(ctx context.Context, req core.DeleteDatabaseRequest) error {
	if err := f.checkOpen(); err != nil {
		return err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	collections, err := f.collectionsIn(ctx, req.Tenant, req.Name)
	if err != nil {
		return err
	}
	if err := f.persistence.DeleteDatabase(ctx, req.Tenant, req.Name); err != nil {
		return err
	}
	for _, c := range collections {
		f.segments.Remove(c.ID)
	}
	f.logger.Debug("deleted database",
		zap.String("tenant", req.Tenant),
		zap.String("database", req.Name),
		zap.Int("collections", len(collections)))
	return nil
}

// ListDatabases lists the databases of a tenant in creation order
func (f *Frontend) ListDatabases(ctx context.Context, req core.ListDatabasesRequest) ([]core.Database, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}

	dbs, err := f.persistence.LoadDatabases(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Database, 0, len(dbs))
	for _, db := range dbs {
		if db.Tenant == req.Tenant {
			out = append(out, db)
		}
	}
	return page(out, req.Offset, req.Limit), nil
}

// page applies offset and an optional limit to a slice
func page[T any](items []T, offset int, limit *int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit != nil && *limit < len(items) {
		items = items[:*limit]
	}
	return items
}

func (f *Frontend) collectionsIn(ctx context.Context, tenant, database string) ([]core.Collection, error) {
	all, err := f.persistence.LoadCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Collection, 0, len(all))
	for _, c := range all {
		if c.Tenant == tenant && c.Database == database {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Frontend) findCollection(ctx context.Context, tenant, database, name string) (core.Collection, error) {
	collections, err := f.collectionsIn(ctx, tenant, database)
	if err != nil {
		return core.Collection{}, err
	}
	for _, c := range collections {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Collection{}, fmt.Errorf("%w: %s", core.ErrCollectionNotFound, name)
}

// collection loads a collection by id. A non-empty tenant or database must
// match the one the collection belongs to.
func (f *Frontend) collection(ctx context.Context, tenant, database string, id uuid.UUID) (core.Collection, error) {
	c, err := f.persistence.LoadCollection(ctx, id)
	if err != nil {
		return core.Collection{}, err
	}
	if (tenant != "" && c.Tenant != tenant) || (database != "" && c.Database != database) {
		return core.Collection{}, fmt.Errorf("%w: %s", core.ErrCollectionNotFound, id)
	}
	return c, nil
}

// CreateCollection creates a collection. With GetOrCreate an existing
// collection of the same name is returned unchanged.
func (f *Frontend) CreateCollection(ctx context.Context, req core.CreateCollectionRequest) (core.Collection, error) {
	if err := f.checkOpen(); err != nil {
		return core.Collection{}, err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	if _, err := f.findDatabase(ctx, req.Tenant, req.Database); err != nil {
		return core.Collection{}, err
	}

	existing, err := f.findCollection(ctx, req.Tenant, req.Database, req.Name)
	if err == nil {
		if req.GetOrCreate {
			return existing, nil
		}
		return core.Collection{}, fmt.Errorf("%w: %s", core.ErrCollectionExists, req.Name)
	}
	if !errors.Is(err, core.ErrCollectionNotFound) {
		return core.Collection{}, err
	}

	config := core.CollectionConfiguration{HNSW: &core.HNSWConfiguration{}}
	if req.Configuration != nil && req.Configuration.HNSW != nil {
		hnsw := *req.Configuration.HNSW
		config.HNSW = &hnsw
	}
	if config.HNSW.Space == "" {
		config.HNSW.Space = core.SpaceL2
	}
	if !config.HNSW.Space.Valid() {
		return core.Collection{}, fmt.Errorf("%w: %s", core.ErrInvalidSpace, config.HNSW.Space)
	}

	collection := core.Collection{
		ID:            uuid.New(),
		Name:          req.Name,
		Configuration: config,
		Metadata:      req.Metadata.Clone(),
		Tenant:        req.Tenant,
		Database:      req.Database,
		CreatedAt:     f.now(),
	}
	if err := f.persistence.SaveCollection(ctx, collection); err != nil {
		return core.Collection{}, fmt.Errorf("failed to save collection: %w", err)
	}
	return collection, nil
}

// GetCollection fetches a collection by name
func (f *Frontend) GetCollection(ctx context.Context, req core.GetCollectionRequest) (core.Collection, error) {
	if err := f.checkOpen(); err != nil {
		return core.Collection{}, err
	}
	return f.findCollection(ctx, req.Tenant, req.Database, req.Name)
}

// DeleteCollection deletes a collection with its records
func (f *Frontend) DeleteCollection(ctx context.Context, req core.DeleteCollectionRequest) error {
	if err := f.checkOpen(); err != nil {
		return err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	collection, err := f.findCollection(ctx, req.Tenant, req.Database, req.Name)
	if err != nil {
		return err
	}
	if err := f.persistence.DeleteCollection(ctx, collection.ID); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	f.segments.Remove(collection.ID)
	return nil
}

// ListCollections lists the collections of a database in creation order
func (f *Frontend) ListCollections(ctx context.Context, req core.ListCollectionsRequest) ([]core.Collection, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	collections, err := f.collectionsIn(ctx, req.Tenant, req.Database)
	if err != nil {
		return nil, err
	}
	return page(collections, req.Offset, req.Limit), nil
}

// CountCollections counts the collections of a database
func (f *Frontend) CountCollections(ctx context.Context, req core.CountCollectionsRequest) (int, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	collections, err := f.collectionsIn(ctx, req.Tenant, req.Database)
	if err != nil {
		return 0, err
	}
	return len(collections), nil
}

// UpdateCollection renames a collection, patches its metadata and
// updates its tunable index parameters.
func (f *Frontend) UpdateCollection(ctx context.Context, req core.UpdateCollectionRequest) (core.Collection, error) {
	if err := f.checkOpen(); err != nil {
		return core.Collection{}, err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	collection, err := f.persistence.LoadCollection(ctx, req.CollectionID)
	if err != nil {
		return core.Collection{}, err
	}

	if req.NewName != nil && *req.NewName != collection.Name {
		other, err := f.findCollection(ctx, collection.Tenant, collection.Database, *req.NewName)
		if err == nil && other.ID != collection.ID {
			return core.Collection{}, fmt.Errorf("%w: %s", core.ErrCollectionExists, *req.NewName)
		}
		if err != nil && !errors.Is(err, core.ErrCollectionNotFound) {
			return core.Collection{}, err
		}
		collection.Name = *req.NewName
	}

	if req.NewMetadata != nil {
		collection.Metadata = collection.Metadata.Merge(req.NewMetadata)
	}

	if req.NewConfiguration != nil {
		if collection.Configuration.HNSW == nil {
			collection.Configuration.HNSW = &core.HNSWConfiguration{Space: core.SpaceL2}
		}
		mergeHNSW(collection.Configuration.HNSW, req.NewConfiguration)
	}

	collection.Version++
	if err := f.persistence.SaveCollection(ctx, collection); err != nil {
		return core.Collection{}, fmt.Errorf("failed to save collection: %w", err)
	}
	return collection, nil
}

// mergeHNSW copies the parameters set in update. The space of an existing
// collection cannot change.
func mergeHNSW(dst, update *core.HNSWConfiguration) {
	if update.EFSearch != nil {
		dst.EFSearch = update.EFSearch
	}
	if update.NumThreads != nil {
		dst.NumThreads = update.NumThreads
	}
	if update.BatchSize != nil {
		dst.BatchSize = update.BatchSize
	}
	if update.SyncThreshold != nil {
		dst.SyncThreshold = update.SyncThreshold
	}
	if update.ResizeFactor != nil {
		dst.ResizeFactor = update.ResizeFactor
	}
}

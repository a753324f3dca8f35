package binding

import (
	"context"
	"time"

	"github.com/dshills/embedbridge/codec"
	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/request"
	"github.com/google/uuid"
)

// OK is the payload of calls that return no value
const OK = "ok"

// CreateCollectionParams are the arguments of create_collection
type CreateCollectionParams struct {
	Name         string
	ConfigJSON   *string
	MetadataJSON *string
	GetOrCreate  bool
	Tenant       string
	Database     string
}

// CollectionParams name a collection for get_collection and
// delete_collection
type CollectionParams struct {
	Name     string
	Tenant   string
	Database string
}

// ListParams page through collections or databases. Database is unused by
// list_databases.
type ListParams struct {
	Limit    *int
	Offset   *int
	Tenant   string
	Database string
}

// UpdateCollectionParams are the arguments of update_collection
type UpdateCollectionParams struct {
	CollectionID    string
	NewName         *string
	NewMetadataJSON *string
	NewConfigJSON   *string
}

// RecordsParams are the arguments of add, update and upsert. Embedding
// rows may be nil for update.
type RecordsParams struct {
	CollectionID  string
	IDs           []string
	Embeddings    [][]float32
	MetadatasJSON []*string
	Documents     []*string
	URIs          []*string
	Tenant        string
	Database      string
}

// GetParams are the arguments of get
type GetParams struct {
	CollectionID      string
	IDs               []string
	WhereJSON         *string
	WhereDocumentJSON *string
	Limit             *int
	Offset            *int
	Include           []string
	Tenant            string
	Database          string
}

// QueryParams are the arguments of query
type QueryParams struct {
	CollectionID      string
	QueryEmbeddings   [][]float32
	NResults          int
	WhereJSON         *string
	WhereDocumentJSON *string
	Include           []string
	Tenant            string
	Database          string
}

// DeleteParams are the arguments of delete
type DeleteParams struct {
	CollectionID      string
	IDs               []string
	WhereJSON         *string
	WhereDocumentJSON *string
	Tenant            string
	Database          string
}

// CountParams are the arguments of count
type CountParams struct {
	CollectionID string
	Tenant       string
	Database     string
}

// DatabaseParams name a database
type DatabaseParams struct {
	Name   string
	Tenant string
}

// reject records a call that failed before reaching the engine
func (h *Handle) reject(op string, err error) error {
	return h.fail(op, time.Now(), err)
}

func (h *Handle) encode(op string, v any) (string, error) {
	out, err := codec.Encode(v)
	if err != nil {
		return "", h.reject(op, err)
	}
	return out, nil
}

// filters decodes where and where_document and joins them
func filters(whereJSON, whereDocumentJSON *string) (core.Where, error) {
	where, err := codec.DecodeWhere(whereJSON)
	if err != nil {
		return nil, err
	}
	document, err := codec.DecodeWhereDocument(whereDocumentJSON)
	if err != nil {
		return nil, err
	}
	return core.And(where, document), nil
}

func scope(tenant, database string) request.Scope {
	return request.Scope{Tenant: tenant, Database: database}
}

// CreateCollection creates a collection, or returns the existing one when
// GetOrCreate is set
func (h *Handle) CreateCollection(ctx context.Context, p CreateCollectionParams) (string, error) {
	const op = "create_collection"
	metadata, err := codec.DecodeOptionalMetadata(p.MetadataJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	configuration, err := codec.DecodeConfiguration(p.ConfigJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	req, err := request.CreateCollection(p.Tenant, p.Database, p.Name, metadata, configuration, p.GetOrCreate)
	if err != nil {
		return "", h.reject(op, err)
	}

	collection, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Collection, error) {
		return e.CreateCollection(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, collection)
}

// GetCollection returns a collection by name
func (h *Handle) GetCollection(ctx context.Context, p CollectionParams) (string, error) {
	const op = "get_collection"
	req, err := request.GetCollection(p.Tenant, p.Database, p.Name)
	if err != nil {
		return "", h.reject(op, err)
	}

	collection, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Collection, error) {
		return e.GetCollection(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, collection)
}

// DeleteCollection deletes a collection by name
func (h *Handle) DeleteCollection(ctx context.Context, p CollectionParams) (string, error) {
	const op = "delete_collection"
	req, err := request.DeleteCollection(p.Tenant, p.Database, p.Name)
	if err != nil {
		return "", h.reject(op, err)
	}

	_, err = call(ctx, h, op, func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.DeleteCollection(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

// ListCollections returns a JSON array of collections
func (h *Handle) ListCollections(ctx context.Context, p ListParams) (string, error) {
	const op = "list_collections"
	req, err := request.ListCollections(p.Tenant, p.Database, p.Limit, p.Offset)
	if err != nil {
		return "", h.reject(op, err)
	}

	collections, err := call(ctx, h, op, func(ctx context.Context, e Engine) ([]core.Collection, error) {
		return e.ListCollections(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if collections == nil {
		collections = []core.Collection{}
	}
	return h.encode(op, collections)
}

// CountCollections returns the number of collections in a database
func (h *Handle) CountCollections(ctx context.Context, tenant, database string) (int, error) {
	const op = "count_collections"
	req, err := request.CountCollections(tenant, database)
	if err != nil {
		return 0, h.reject(op, err)
	}
	return call(ctx, h, op, func(ctx context.Context, e Engine) (int, error) {
		return e.CountCollections(ctx, req)
	})
}

// UpdateCollection renames a collection, patches its metadata or tunes
// its index parameters, and returns the updated collection
func (h *Handle) UpdateCollection(ctx context.Context, p UpdateCollectionParams) (string, error) {
	const op = "update_collection"
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return "", h.reject(op, err)
	}
	metadata, err := codec.DecodeOptionalUpdateMetadata(p.NewMetadataJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	hnsw, err := codec.DecodeConfigurationUpdate(p.NewConfigJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	req, err := request.UpdateCollection(id, p.NewName, metadata, hnsw)
	if err != nil {
		return "", h.reject(op, err)
	}

	collection, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Collection, error) {
		return e.UpdateCollection(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, collection)
}

// Add inserts records. Ids that already exist are skipped by the engine.
func (h *Handle) Add(ctx context.Context, p RecordsParams) (string, error) {
	const op = "add"
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return "", h.reject(op, err)
	}
	metadatas, err := codec.DecodeMetadataList(p.MetadatasJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	req, err := request.Add(scope(p.Tenant, p.Database), id, request.AddBatch{
		IDs:        p.IDs,
		Embeddings: p.Embeddings,
		Documents:  p.Documents,
		URIs:       p.URIs,
		Metadatas:  metadatas,
	}, h.maxBatchSize)
	if err != nil {
		return "", h.reject(op, err)
	}

	_, err = call(ctx, h, op, func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.Add(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

func (h *Handle) updateBatch(op string, p RecordsParams) (uuid.UUID, request.UpdateBatch, error) {
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return uuid.Nil, request.UpdateBatch{}, h.reject(op, err)
	}
	metadatas, err := codec.DecodeUpdateMetadataList(p.MetadatasJSON)
	if err != nil {
		return uuid.Nil, request.UpdateBatch{}, h.reject(op, err)
	}
	return id, request.UpdateBatch{
		IDs:        p.IDs,
		Embeddings: p.Embeddings,
		Documents:  p.Documents,
		URIs:       p.URIs,
		Metadatas:  metadatas,
	}, nil
}

// Update changes existing records. Unknown ids are ignored by the engine.
func (h *Handle) Update(ctx context.Context, p RecordsParams) (string, error) {
	const op = "update"
	id, batch, err := h.updateBatch(op, p)
	if err != nil {
		return "", err
	}
	req, err := request.Update(scope(p.Tenant, p.Database), id, batch, h.maxBatchSize)
	if err != nil {
		return "", h.reject(op, err)
	}

	_, err = call(ctx, h, op, func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.Update(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

// Upsert inserts new records and updates existing ones
func (h *Handle) Upsert(ctx context.Context, p RecordsParams) (string, error) {
	const op = "upsert"
	id, batch, err := h.updateBatch(op, p)
	if err != nil {
		return "", err
	}
	req, err := request.Upsert(scope(p.Tenant, p.Database), id, batch, h.maxBatchSize)
	if err != nil {
		return "", h.reject(op, err)
	}

	_, err = call(ctx, h, op, func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.Upsert(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

// Get returns records as JSON
func (h *Handle) Get(ctx context.Context, p GetParams) (string, error) {
	const op = "get"
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return "", h.reject(op, err)
	}
	where, err := filters(p.WhereJSON, p.WhereDocumentJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	include := codec.DecodeInclude(p.Include, core.DefaultGetInclude)
	req, err := request.Get(scope(p.Tenant, p.Database), id, p.IDs, where, p.Limit, p.Offset, include)
	if err != nil {
		return "", h.reject(op, err)
	}

	result, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.GetResult, error) {
		return e.Get(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, result)
}

// Query runs a nearest neighbour search and returns the results as JSON
func (h *Handle) Query(ctx context.Context, p QueryParams) (string, error) {
	const op = "query"
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return "", h.reject(op, err)
	}
	where, err := filters(p.WhereJSON, p.WhereDocumentJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	include := codec.DecodeInclude(p.Include, core.DefaultQueryInclude)
	req, err := request.Query(scope(p.Tenant, p.Database), id, p.QueryEmbeddings, p.NResults, where, include)
	if err != nil {
		return "", h.reject(op, err)
	}

	result, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.QueryResult, error) {
		return e.Query(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, result)
}

// Delete removes records selected by ids and filters. With neither, every
// record of the collection is removed.
func (h *Handle) Delete(ctx context.Context, p DeleteParams) (string, error) {
	const op = "delete"
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return "", h.reject(op, err)
	}
	where, err := filters(p.WhereJSON, p.WhereDocumentJSON)
	if err != nil {
		return "", h.reject(op, err)
	}
	req, err := request.Delete(scope(p.Tenant, p.Database), id, p.IDs, where)
	if err != nil {
		return "", h.reject(op, err)
	}

	_, err = call(ctx, h, op, func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.Delete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

// Count returns the number of records in a collection
func (h *Handle) Count(ctx context.Context, p CountParams) (int, error) {
	const op = "count"
	id, err := codec.ParseCollectionID(p.CollectionID)
	if err != nil {
		return 0, h.reject(op, err)
	}
	req, err := request.Count(scope(p.Tenant, p.Database), id)
	if err != nil {
		return 0, h.reject(op, err)
	}
	return call(ctx, h, op, func(ctx context.Context, e Engine) (int, error) {
		return e.Count(ctx, req)
	})
}

// CreateDatabase creates a database and returns it as JSON
func (h *Handle) CreateDatabase(ctx context.Context, p DatabaseParams) (string, error) {
	const op = "create_database"
	req, err := request.CreateDatabase(p.Tenant, p.Name)
	if err != nil {
		return "", h.reject(op, err)
	}

	db, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Database, error) {
		return e.CreateDatabase(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, db)
}

// GetDatabase returns a database as JSON
func (h *Handle) GetDatabase(ctx context.Context, p DatabaseParams) (string, error) {
	const op = "get_database"
	req, err := request.GetDatabase(p.Tenant, p.Name)
	if err != nil {
		return "", h.reject(op, err)
	}

	db, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Database, error) {
		return e.GetDatabase(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, db)
}

// DeleteDatabase deletes a database and its collections
func (h *Handle) DeleteDatabase(ctx context.Context, p DatabaseParams) (string, error) {
	const op = "delete_database"
	req, err := request.DeleteDatabase(p.Tenant, p.Name)
	if err != nil {
		return "", h.reject(op, err)
	}

	_, err = call(ctx, h, op, func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.DeleteDatabase(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

// ListDatabases returns a JSON array of the databases of a tenant
func (h *Handle) ListDatabases(ctx context.Context, p ListParams) (string, error) {
	const op = "list_databases"
	req, err := request.ListDatabases(p.Tenant, p.Limit, p.Offset)
	if err != nil {
		return "", h.reject(op, err)
	}

	dbs, err := call(ctx, h, op, func(ctx context.Context, e Engine) ([]core.Database, error) {
		return e.ListDatabases(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if dbs == nil {
		dbs = []core.Database{}
	}
	return h.encode(op, dbs)
}

// CreateTenant creates a tenant and returns it as JSON
func (h *Handle) CreateTenant(ctx context.Context, name string) (string, error) {
	const op = "create_tenant"
	req, err := request.CreateTenant(name)
	if err != nil {
		return "", h.reject(op, err)
	}

	tenant, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Tenant, error) {
		return e.CreateTenant(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, tenant)
}

// GetTenant returns a tenant as JSON
func (h *Handle) GetTenant(ctx context.Context, name string) (string, error) {
	const op = "get_tenant"
	req, err := request.GetTenant(name)
	if err != nil {
		return "", h.reject(op, err)
	}

	tenant, err := call(ctx, h, op, func(ctx context.Context, e Engine) (core.Tenant, error) {
		return e.GetTenant(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return h.encode(op, tenant)
}

// Reset wipes all data. It fails unless the handle was initialized with
// allow_reset.
func (h *Handle) Reset(ctx context.Context) (string, error) {
	_, err := call(ctx, h, "reset", func(ctx context.Context, e Engine) (struct{}, error) {
		return struct{}{}, e.Reset(ctx)
	})
	if err != nil {
		return "", err
	}
	return OK, nil
}

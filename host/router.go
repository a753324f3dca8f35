package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/embedbridge/binding"
	"github.com/dshills/embedbridge/codec"
	"github.com/dshills/embedbridge/core"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

// ErrUnknownOp is returned for operation names the router does not serve
var ErrUnknownOp = fmt.Errorf("%w: unknown operation", codec.ErrMalformedArgument)

// ErrPanicked is reported for calls that panicked outside the engine runtime
var ErrPanicked = errors.New("call panicked")

// Response is the envelope of one call. Exactly one field is set.
type Response struct {
	OK    any        `json:"ok,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed call
type ErrorBody struct {
	Kind    binding.Kind `json:"kind"`
	Message string       `json:"message"`
}

type handler func(ctx context.Context, a args) (any, error)

// handleOp is a handler that runs against one handle
type handleOp func(ctx context.Context, h *binding.Handle, a args) (any, error)

// Router dispatches named calls to the handles of a table
type Router struct {
	table  *Table
	logger *zap.Logger
	ops    map[string]handler
}

// NewRouter creates a router over table
func NewRouter(table *Table, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{table: table, logger: logger}
	r.ops = map[string]handler{
		"initialize": r.initialize,
		"retain":     r.retain,
		"release":    r.release,
		"heartbeat": func(context.Context, args) (any, error) {
			return binding.Heartbeat(), nil
		},
		"version": func(context.Context, args) (any, error) {
			return binding.Version, nil
		},

		"max_batch_size": r.withHandle(maxBatchSize),
		"metrics":        r.withHandle(metrics),
		"reset":          r.withHandle(reset),

		"create_tenant":   r.withHandle(createTenant),
		"get_tenant":      r.withHandle(getTenant),
		"create_database": r.withHandle(createDatabase),
		"get_database":    r.withHandle(getDatabase),
		"delete_database": r.withHandle(deleteDatabase),
		"list_databases":  r.withHandle(listDatabases),

		"create_collection": r.withHandle(createCollection),
		"get_collection":    r.withHandle(getCollection),
		"delete_collection": r.withHandle(deleteCollection),
		"list_collections":  r.withHandle(listCollections),
		"count_collections": r.withHandle(countCollections),
		"update_collection": r.withHandle(updateCollection),

		"add":    r.withHandle(add),
		"update": r.withHandle(update),
		"upsert": r.withHandle(upsert),
		"get":    r.withHandle(get),
		"query":  r.withHandle(query),
		"delete": r.withHandle(deleteRecords),
		"count":  r.withHandle(count),
	}
	return r
}

// Ops returns the served operation names in sorted order
func (r *Router) Ops() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs op with the JSON argument object data. A panic never crosses
// into the host; it is reported as an unavailable error.
func (r *Router) Call(ctx context.Context, op string, data []byte) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("call panicked", zap.String("op", op), zap.Any("panic", p))
			resp = failure(op, &binding.Error{Kind: binding.KindUnavailable, Op: op, Err: fmt.Errorf("%w: %v", ErrPanicked, p)})
		}
	}()

	fn, ok := r.ops[op]
	if !ok {
		return failure(op, fmt.Errorf("%w: %q", ErrUnknownOp, op))
	}
	a, err := parseArgs(data)
	if err != nil {
		return failure(op, err)
	}
	result, err := fn(ctx, a)
	if err != nil {
		return failure(op, err)
	}
	return Response{OK: result}
}

func failure(op string, err error) Response {
	var berr *binding.Error
	if !errors.As(err, &berr) {
		berr = &binding.Error{Kind: binding.KindOf(err), Op: op, Err: err}
	}
	return Response{Error: &ErrorBody{Kind: berr.Kind, Message: berr.Error()}}
}

func (r *Router) withHandle(fn handleOp) handler {
	return func(ctx context.Context, a args) (any, error) {
		id, err := a.handle()
		if err != nil {
			return nil, err
		}
		h, err := r.table.Get(id)
		if err != nil {
			return nil, err
		}
		return fn(ctx, h, a)
	}
}

func (r *Router) initialize(_ context.Context, a args) (any, error) {
	allowReset, err := a.boolArg("allow_reset")
	if err != nil {
		return nil, err
	}
	path, err := a.optStr("storage_path")
	if err != nil {
		return nil, err
	}
	id, err := r.table.Open(allowReset, path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("handle opened", zap.Uint64("handle", id))
	return id, nil
}

func (r *Router) retain(_ context.Context, a args) (any, error) {
	id, err := a.handle()
	if err != nil {
		return nil, err
	}
	if err := r.table.Retain(id); err != nil {
		return nil, err
	}
	return binding.OK, nil
}

func (r *Router) release(_ context.Context, a args) (any, error) {
	id, err := a.handle()
	if err != nil {
		return nil, err
	}
	if err := r.table.Release(id); err != nil {
		return nil, err
	}
	return binding.OK, nil
}

func maxBatchSize(ctx context.Context, h *binding.Handle, _ args) (any, error) {
	return h.MaxBatchSize(ctx)
}

func metrics(_ context.Context, h *binding.Handle, _ args) (any, error) {
	families, err := h.Registry().Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("%w: %v", codec.ErrSerialization, err)
		}
	}
	return buf.String(), nil
}

func reset(ctx context.Context, h *binding.Handle, _ args) (any, error) {
	return h.Reset(ctx)
}

func scope(a args) (tenant, database string, err error) {
	if tenant, err = a.strOr("tenant", core.DefaultTenant); err != nil {
		return "", "", err
	}
	if database, err = a.strOr("database", core.DefaultDatabase); err != nil {
		return "", "", err
	}
	return tenant, database, nil
}

func createTenant(ctx context.Context, h *binding.Handle, a args) (any, error) {
	name, err := a.str("name")
	if err != nil {
		return nil, err
	}
	return h.CreateTenant(ctx, name)
}

func getTenant(ctx context.Context, h *binding.Handle, a args) (any, error) {
	name, err := a.str("name")
	if err != nil {
		return nil, err
	}
	return h.GetTenant(ctx, name)
}

func databaseParams(a args) (binding.DatabaseParams, error) {
	name, err := a.str("name")
	if err != nil {
		return binding.DatabaseParams{}, err
	}
	tenant, err := a.strOr("tenant", core.DefaultTenant)
	if err != nil {
		return binding.DatabaseParams{}, err
	}
	return binding.DatabaseParams{Name: name, Tenant: tenant}, nil
}

func createDatabase(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := databaseParams(a)
	if err != nil {
		return nil, err
	}
	return h.CreateDatabase(ctx, p)
}

func getDatabase(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := databaseParams(a)
	if err != nil {
		return nil, err
	}
	return h.GetDatabase(ctx, p)
}

func deleteDatabase(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := databaseParams(a)
	if err != nil {
		return nil, err
	}
	return h.DeleteDatabase(ctx, p)
}

func listParams(a args) (binding.ListParams, error) {
	var p binding.ListParams
	var err error
	if p.Tenant, p.Database, err = scope(a); err != nil {
		return p, err
	}
	if p.Limit, err = a.optInt("limit"); err != nil {
		return p, err
	}
	if p.Offset, err = a.optInt("offset"); err != nil {
		return p, err
	}
	return p, nil
}

func listDatabases(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := listParams(a)
	if err != nil {
		return nil, err
	}
	return h.ListDatabases(ctx, p)
}

func collectionParams(a args) (binding.CollectionParams, error) {
	var p binding.CollectionParams
	var err error
	if p.Name, err = a.str("name"); err != nil {
		return p, err
	}
	p.Tenant, p.Database, err = scope(a)
	return p, err
}

func createCollection(ctx context.Context, h *binding.Handle, a args) (any, error) {
	var p binding.CreateCollectionParams
	var err error
	if p.Name, err = a.str("name"); err != nil {
		return nil, err
	}
	if p.ConfigJSON, err = a.jsonText("configuration_json"); err != nil {
		return nil, err
	}
	if p.MetadataJSON, err = a.jsonText("metadata"); err != nil {
		return nil, err
	}
	if p.GetOrCreate, err = a.boolArg("get_or_create"); err != nil {
		return nil, err
	}
	if p.Tenant, p.Database, err = scope(a); err != nil {
		return nil, err
	}
	return h.CreateCollection(ctx, p)
}

func getCollection(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := collectionParams(a)
	if err != nil {
		return nil, err
	}
	return h.GetCollection(ctx, p)
}

func deleteCollection(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := collectionParams(a)
	if err != nil {
		return nil, err
	}
	return h.DeleteCollection(ctx, p)
}

func listCollections(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := listParams(a)
	if err != nil {
		return nil, err
	}
	return h.ListCollections(ctx, p)
}

func countCollections(ctx context.Context, h *binding.Handle, a args) (any, error) {
	tenant, database, err := scope(a)
	if err != nil {
		return nil, err
	}
	return h.CountCollections(ctx, tenant, database)
}

func updateCollection(ctx context.Context, h *binding.Handle, a args) (any, error) {
	var p binding.UpdateCollectionParams
	var err error
	if p.CollectionID, err = a.str("collection_id"); err != nil {
		return nil, err
	}
	if p.NewName, err = a.optStr("new_name"); err != nil {
		return nil, err
	}
	if p.NewMetadataJSON, err = a.jsonText("new_metadata"); err != nil {
		return nil, err
	}
	if p.NewConfigJSON, err = a.jsonText("new_configuration_json"); err != nil {
		return nil, err
	}
	return h.UpdateCollection(ctx, p)
}

func recordsParams(a args, embeddingsRequired bool) (binding.RecordsParams, error) {
	var p binding.RecordsParams
	var err error
	if p.CollectionID, err = a.str("collection_id"); err != nil {
		return p, err
	}
	if p.IDs, err = codec.DecodeStringList("ids", a["ids"]); err != nil {
		return p, err
	}
	if embeddingsRequired {
		p.Embeddings, err = codec.DecodeFloatMatrix("embeddings", a["embeddings"])
	} else {
		p.Embeddings, err = codec.DecodeOptionalFloatMatrix("embeddings", a["embeddings"])
	}
	if err != nil {
		return p, err
	}
	if p.MetadatasJSON, err = a.jsonTextList("metadatas"); err != nil {
		return p, err
	}
	if p.Documents, err = codec.DecodeOptionalStringList("documents", a["documents"]); err != nil {
		return p, err
	}
	if p.URIs, err = codec.DecodeOptionalStringList("uris", a["uris"]); err != nil {
		return p, err
	}
	p.Tenant, p.Database, err = scope(a)
	return p, err
}

func add(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := recordsParams(a, true)
	if err != nil {
		return nil, err
	}
	return h.Add(ctx, p)
}

func update(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := recordsParams(a, false)
	if err != nil {
		return nil, err
	}
	return h.Update(ctx, p)
}

func upsert(ctx context.Context, h *binding.Handle, a args) (any, error) {
	p, err := recordsParams(a, false)
	if err != nil {
		return nil, err
	}
	return h.Upsert(ctx, p)
}

func get(ctx context.Context, h *binding.Handle, a args) (any, error) {
	var p binding.GetParams
	var err error
	if p.CollectionID, err = a.str("collection_id"); err != nil {
		return nil, err
	}
	if p.IDs, err = codec.DecodeStringList("ids", a["ids"]); err != nil {
		return nil, err
	}
	if p.WhereJSON, err = a.jsonText("where"); err != nil {
		return nil, err
	}
	if p.WhereDocumentJSON, err = a.jsonText("where_document"); err != nil {
		return nil, err
	}
	if p.Limit, err = a.optInt("limit"); err != nil {
		return nil, err
	}
	if p.Offset, err = a.optInt("offset"); err != nil {
		return nil, err
	}
	if p.Include, err = codec.DecodeStringList("include", a["include"]); err != nil {
		return nil, err
	}
	if p.Tenant, p.Database, err = scope(a); err != nil {
		return nil, err
	}
	return h.Get(ctx, p)
}

func query(ctx context.Context, h *binding.Handle, a args) (any, error) {
	var p binding.QueryParams
	var err error
	if p.CollectionID, err = a.str("collection_id"); err != nil {
		return nil, err
	}
	if p.QueryEmbeddings, err = codec.DecodeFloatMatrix("query_embeddings", a["query_embeddings"]); err != nil {
		return nil, err
	}
	if p.NResults, err = a.intArg("n_results"); err != nil {
		return nil, err
	}
	if p.WhereJSON, err = a.jsonText("where"); err != nil {
		return nil, err
	}
	if p.WhereDocumentJSON, err = a.jsonText("where_document"); err != nil {
		return nil, err
	}
	if p.Include, err = codec.DecodeStringList("include", a["include"]); err != nil {
		return nil, err
	}
	if p.Tenant, p.Database, err = scope(a); err != nil {
		return nil, err
	}
	return h.Query(ctx, p)
}

func deleteRecords(ctx context.Context, h *binding.Handle, a args) (any, error) {
	var p binding.DeleteParams
	var err error
	if p.CollectionID, err = a.str("collection_id"); err != nil {
		return nil, err
	}
	if p.IDs, err = codec.DecodeStringList("ids", a["ids"]); err != nil {
		return nil, err
	}
	if p.WhereJSON, err = a.jsonText("where"); err != nil {
		return nil, err
	}
	if p.WhereDocumentJSON, err = a.jsonText("where_document"); err != nil {
		return nil, err
	}
	if p.Tenant, p.Database, err = scope(a); err != nil {
		return nil, err
	}
	return h.Delete(ctx, p)
}

func count(ctx context.Context, h *binding.Handle, a args) (any, error) {
	var p binding.CountParams
	var err error
	if p.CollectionID, err = a.str("collection_id"); err != nil {
		return nil, err
	}
	if p.Tenant, p.Database, err = scope(a); err != nil {
		return nil, err
	}
	return h.Count(ctx, p)
}

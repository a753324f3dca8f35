package request

import (
	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
)

// AddBatch holds the parallel record arrays of an add call. Optional
// arrays are nil when absent.
type AddBatch struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []*string
	URIs       []*string
	Metadatas  []core.Metadata
}

// UpdateBatch holds the parallel record arrays of an update or upsert call.
// A nil embedding row leaves that record's embedding unchanged.
type UpdateBatch struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []*string
	URIs       []*string
	Metadatas  []core.UpdateMetadata
}

func checkBatch(ids []string, maxBatchSize int) error {
	if len(ids) == 0 {
		return invalid("ids cannot be empty")
	}
	if maxBatchSize > 0 && len(ids) > maxBatchSize {
		return invalid("batch size %d exceeds maximum batch size %d", len(ids), maxBatchSize)
	}
	return uniqueIDs(ids)
}

// checkLength compares an optional array length with the number of ids
func checkLength(name string, present bool, n, ids int) error {
	if present && n != ids {
		return invalid("number of %s (%d) must match number of ids (%d)", name, n, ids)
	}
	return nil
}

// checkEmbeddings validates every non-nil row and requires one shared
// dimensionality. required rejects nil rows.
func checkEmbeddings(embeddings [][]float32, required bool) error {
	dimension := -1
	for i, e := range embeddings {
		if e == nil {
			if required {
				return invalid("embeddings[%d] is missing", i)
			}
			continue
		}
		if err := core.ValidateEmbedding(e); err != nil {
			return invalid("embeddings[%d]: %v", i, err)
		}
		if dimension == -1 {
			dimension = len(e)
		} else if len(e) != dimension {
			return invalid("embeddings[%d] has dimension %d, expected %d", i, len(e), dimension)
		}
	}
	return nil
}

// Add builds an add request
func Add(scope Scope, id uuid.UUID, batch AddBatch, maxBatchSize int) (core.AddRecordsRequest, error) {
	if err := requireCollectionID(id); err != nil {
		return core.AddRecordsRequest{}, err
	}
	n := len(batch.IDs)
	if err := checkBatch(batch.IDs, maxBatchSize); err != nil {
		return core.AddRecordsRequest{}, err
	}
	if err := checkLength("embeddings", true, len(batch.Embeddings), n); err != nil {
		return core.AddRecordsRequest{}, err
	}
	if err := checkLength("documents", batch.Documents != nil, len(batch.Documents), n); err != nil {
		return core.AddRecordsRequest{}, err
	}
	if err := checkLength("uris", batch.URIs != nil, len(batch.URIs), n); err != nil {
		return core.AddRecordsRequest{}, err
	}
	if err := checkLength("metadatas", batch.Metadatas != nil, len(batch.Metadatas), n); err != nil {
		return core.AddRecordsRequest{}, err
	}
	if err := checkEmbeddings(batch.Embeddings, true); err != nil {
		return core.AddRecordsRequest{}, err
	}

	records := make([]core.Record, n)
	for i, rid := range batch.IDs {
		records[i] = core.Record{ID: rid, Embedding: batch.Embeddings[i]}
		if batch.Documents != nil {
			records[i].Document = batch.Documents[i]
		}
		if batch.URIs != nil {
			records[i].URI = batch.URIs[i]
		}
		if batch.Metadatas != nil {
			records[i].Metadata = batch.Metadatas[i]
		}
	}
	return core.AddRecordsRequest{
		Tenant:       scope.Tenant,
		Database:     scope.Database,
		CollectionID: id,
		Records:      records,
	}, nil
}

func buildUpdates(id uuid.UUID, batch UpdateBatch, maxBatchSize int, requireEmbeddings bool) ([]core.RecordUpdate, error) {
	if err := requireCollectionID(id); err != nil {
		return nil, err
	}
	n := len(batch.IDs)
	if err := checkBatch(batch.IDs, maxBatchSize); err != nil {
		return nil, err
	}
	if requireEmbeddings && batch.Embeddings == nil {
		return nil, invalid("embeddings are required")
	}
	if batch.Embeddings == nil && batch.Documents == nil && batch.URIs == nil && batch.Metadatas == nil {
		return nil, invalid("at least one of embeddings, documents, uris or metadatas must be given")
	}
	if err := checkLength("embeddings", batch.Embeddings != nil, len(batch.Embeddings), n); err != nil {
		return nil, err
	}
	if err := checkLength("documents", batch.Documents != nil, len(batch.Documents), n); err != nil {
		return nil, err
	}
	if err := checkLength("uris", batch.URIs != nil, len(batch.URIs), n); err != nil {
		return nil, err
	}
	if err := checkLength("metadatas", batch.Metadatas != nil, len(batch.Metadatas), n); err != nil {
		return nil, err
	}
	if err := checkEmbeddings(batch.Embeddings, requireEmbeddings); err != nil {
		return nil, err
	}

	updates := make([]core.RecordUpdate, n)
	for i, rid := range batch.IDs {
		updates[i] = core.RecordUpdate{ID: rid}
		if batch.Embeddings != nil {
			updates[i].Embedding = batch.Embeddings[i]
		}
		if batch.Documents != nil {
			updates[i].Document = batch.Documents[i]
		}
		if batch.URIs != nil {
			updates[i].URI = batch.URIs[i]
		}
		if batch.Metadatas != nil {
			updates[i].Metadata = batch.Metadatas[i]
		}
	}
	return updates, nil
}

// Update builds an update request
func Update(scope Scope, id uuid.UUID, batch UpdateBatch, maxBatchSize int) (core.UpdateRecordsRequest, error) {
	updates, err := buildUpdates(id, batch, maxBatchSize, false)
	if err != nil {
		return core.UpdateRecordsRequest{}, err
	}
	return core.UpdateRecordsRequest{
		Tenant:       scope.Tenant,
		Database:     scope.Database,
		CollectionID: id,
		Records:      updates,
	}, nil
}

// Upsert builds an upsert request. Every record must carry an embedding.
func Upsert(scope Scope, id uuid.UUID, batch UpdateBatch, maxBatchSize int) (core.UpsertRecordsRequest, error) {
	updates, err := buildUpdates(id, batch, maxBatchSize, true)
	if err != nil {
		return core.UpsertRecordsRequest{}, err
	}
	return core.UpsertRecordsRequest{
		Tenant:       scope.Tenant,
		Database:     scope.Database,
		CollectionID: id,
		Records:      updates,
	}, nil
}

// Delete builds a delete request. With neither ids nor where every record
// is deleted.
func Delete(scope Scope, id uuid.UUID, ids []string, where core.Where) (core.DeleteRecordsRequest, error) {
	if err := requireCollectionID(id); err != nil {
		return core.DeleteRecordsRequest{}, err
	}
	if err := selectionIDs(ids); err != nil {
		return core.DeleteRecordsRequest{}, err
	}
	return core.DeleteRecordsRequest{
		Tenant:       scope.Tenant,
		Database:     scope.Database,
		CollectionID: id,
		IDs:          ids,
		Where:        where,
	}, nil
}

// Get builds a get request
func Get(scope Scope, id uuid.UUID, ids []string, where core.Where, limit, offset *int, include core.IncludeList) (core.GetRequest, error) {
	if err := requireCollectionID(id); err != nil {
		return core.GetRequest{}, err
	}
	if err := selectionIDs(ids); err != nil {
		return core.GetRequest{}, err
	}
	lim, off, err := window(limit, offset)
	if err != nil {
		return core.GetRequest{}, err
	}
	return core.GetRequest{
		Tenant:       scope.Tenant,
		Database:     scope.Database,
		CollectionID: id,
		IDs:          ids,
		Where:        where,
		Limit:        lim,
		Offset:       off,
		Include:      include,
	}, nil
}

// Query builds a query request. n_results of zero is allowed and yields
// empty result lists.
func Query(scope Scope, id uuid.UUID, embeddings [][]float32, nResults int, where core.Where, include core.IncludeList) (core.QueryRequest, error) {
	if err := requireCollectionID(id); err != nil {
		return core.QueryRequest{}, err
	}
	if len(embeddings) == 0 {
		return core.QueryRequest{}, invalid("query embeddings cannot be empty")
	}
	if err := checkEmbeddings(embeddings, true); err != nil {
		return core.QueryRequest{}, err
	}
	if nResults < 0 {
		return core.QueryRequest{}, invalid("n_results must be non-negative, got %d", nResults)
	}
	return core.QueryRequest{
		Tenant:          scope.Tenant,
		Database:        scope.Database,
		CollectionID:    id,
		Where:           where,
		QueryEmbeddings: embeddings,
		NResults:        nResults,
		Include:         include,
	}, nil
}

// Count builds a count request
func Count(scope Scope, id uuid.UUID) (core.CountRequest, error) {
	if err := requireCollectionID(id); err != nil {
		return core.CountRequest{}, err
	}
	return core.CountRequest{Tenant: scope.Tenant, Database: scope.Database, CollectionID: id}, nil
}

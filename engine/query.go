package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/index"
	"golang.org/x/sync/errgroup"
)

var errSearchPanicked = errors.New("search panicked")

// Get returns records in insertion order
func (f *Frontend) Get(ctx context.Context, req core.GetRequest) (core.GetResult, error) {
	if err := f.checkOpen(); err != nil {
		return core.GetResult{}, err
	}

	collection, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return core.GetResult{}, err
	}
	seg, err := f.segment(ctx, collection)
	if err != nil {
		return core.GetResult{}, err
	}

	records := seg.Get(req.IDs, req.Where, req.Offset, req.Limit)

	result := core.GetResult{
		IDs:     make([]string, 0, len(records)),
		Include: req.Include,
	}
	if req.Include.Has(core.IncludeEmbeddings) {
		result.Embeddings = make([][]float32, 0, len(records))
	}
	if req.Include.Has(core.IncludeDocuments) {
		result.Documents = make([]*string, 0, len(records))
	}
	if req.Include.Has(core.IncludeURIs) {
		result.URIs = make([]*string, 0, len(records))
	}
	if req.Include.Has(core.IncludeMetadatas) {
		result.Metadatas = make([]core.Metadata, 0, len(records))
	}

	for _, r := range records {
		result.IDs = append(result.IDs, r.ID)
		if result.Embeddings != nil {
			result.Embeddings = append(result.Embeddings, r.Embedding)
		}
		if result.Documents != nil {
			result.Documents = append(result.Documents, r.Document)
		}
		if result.URIs != nil {
			result.URIs = append(result.URIs, r.URI)
		}
		if result.Metadatas != nil {
			result.Metadatas = append(result.Metadatas, r.Metadata)
		}
	}
	return result, nil
}

// Query runs one nearest neighbour search per query embedding
func (f *Frontend) Query(ctx context.Context, req core.QueryRequest) (core.QueryResult, error) {
	if err := f.checkOpen(); err != nil {
		return core.QueryResult{}, err
	}

	collection, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return core.QueryResult{}, err
	}
	for _, q := range req.QueryEmbeddings {
		if err := core.ValidateDimension(q, collection.Dimension); err != nil {
			return core.QueryResult{}, err
		}
	}
	seg, err := f.segment(ctx, collection)
	if err != nil {
		return core.QueryResult{}, err
	}

	hits, err := searchAll(ctx, f.config.QueryParallelism, req.QueryEmbeddings, func(q []float32) ([]index.Neighbor, error) {
		return seg.Search(q, req.NResults, req.IDs, req.Where)
	})
	if err != nil {
		return core.QueryResult{}, err
	}

	return buildQueryResult(hits, req.Include), nil
}

// searchAll runs search for every query with at most parallelism searches
// in flight. A panic in a search is raised again on the calling goroutine
// once the group has finished.
func searchAll(ctx context.Context, parallelism int, queries [][]float32, search func([]float32) ([]index.Neighbor, error)) ([][]index.Neighbor, error) {
	hits := make([][]index.Neighbor, len(queries))
	var (
		panicOnce sync.Once
		panicked  any
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					panicOnce.Do(func() { panicked = p })
					err = errSearchPanicked
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := search(q)
			if err != nil {
				return err
			}
			hits[i] = found
			return nil
		})
	}
	err := g.Wait()
	if panicked != nil {
		panic(panicked)
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func buildQueryResult(hits [][]index.Neighbor, include core.IncludeList) core.QueryResult {
	n := len(hits)
	result := core.QueryResult{
		IDs:     make([][]string, n),
		Include: include,
	}
	if include.Has(core.IncludeEmbeddings) {
		result.Embeddings = make([][][]float32, n)
	}
	if include.Has(core.IncludeDocuments) {
		result.Documents = make([][]*string, n)
	}
	if include.Has(core.IncludeURIs) {
		result.URIs = make([][]*string, n)
	}
	if include.Has(core.IncludeMetadatas) {
		result.Metadatas = make([][]core.Metadata, n)
	}
	if include.Has(core.IncludeDistances) {
		result.Distances = make([][]float32, n)
	}

	for i, found := range hits {
		result.IDs[i] = make([]string, 0, len(found))
		if result.Embeddings != nil {
			result.Embeddings[i] = make([][]float32, 0, len(found))
		}
		if result.Documents != nil {
			result.Documents[i] = make([]*string, 0, len(found))
		}
		if result.URIs != nil {
			result.URIs[i] = make([]*string, 0, len(found))
		}
		if result.Metadatas != nil {
			result.Metadatas[i] = make([]core.Metadata, 0, len(found))
		}
		if result.Distances != nil {
			result.Distances[i] = make([]float32, 0, len(found))
		}

		for _, h := range found {
			result.IDs[i] = append(result.IDs[i], h.Record.ID)
			if result.Embeddings != nil {
				result.Embeddings[i] = append(result.Embeddings[i], h.Record.Embedding)
			}
			if result.Documents != nil {
				result.Documents[i] = append(result.Documents[i], h.Record.Document)
			}
			if result.URIs != nil {
				result.URIs[i] = append(result.URIs[i], h.Record.URI)
			}
			if result.Metadatas != nil {
				result.Metadatas[i] = append(result.Metadatas[i], h.Record.Metadata)
			}
			if result.Distances != nil {
				result.Distances[i] = append(result.Distances[i], h.Distance)
			}
		}
	}
	return result
}

// Count returns the number of records in a collection
func (f *Frontend) Count(ctx context.Context, req core.CountRequest) (int, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}

	collection, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return 0, err
	}
	seg, err := f.segment(ctx, collection)
	if err != nil {
		return 0, err
	}
	return seg.Size(), nil
}

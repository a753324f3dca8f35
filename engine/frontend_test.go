package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/index"
	"github.com/dshills/embedbridge/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrontend(t *testing.T, allowReset bool) *Frontend {
	t.Helper()
	config := DefaultConfig()
	config.AllowReset = allowReset
	f, err := NewFrontend(context.Background(), persistence.NewStore(persistence.NewMemoryBackend()), config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func createCollection(t *testing.T, f *Frontend, name string, space core.Space) core.Collection {
	t.Helper()
	c, err := f.CreateCollection(context.Background(), core.CreateCollectionRequest{
		Tenant:        core.DefaultTenant,
		Database:      core.DefaultDatabase,
		Name:          name,
		Configuration: &core.CollectionConfiguration{HNSW: &core.HNSWConfiguration{Space: space}},
	})
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func TestBootstrapCreatesDefaults(t *testing.T) {
	f := newTestFrontend(t, false)
	ctx := context.Background()

	tenant, err := f.GetTenant(ctx, core.GetTenantRequest{Name: core.DefaultTenant})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTenant, tenant.Name)

	db, err := f.GetDatabase(ctx, core.GetDatabaseRequest{Tenant: core.DefaultTenant, Name: core.DefaultDatabase})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, db.ID)

	beat, err := f.Heartbeat(ctx)
	require.NoError(t, err)
	assert.Positive(t, beat)
}

func TestTenantsAndDatabases(t *testing.T) {
	f := newTestFrontend(t, false)
	ctx := context.Background()

	_, err := f.CreateTenant(ctx, core.CreateTenantRequest{Name: "acme"})
	require.NoError(t, err)
	_, err = f.CreateTenant(ctx, core.CreateTenantRequest{Name: "acme"})
	assert.ErrorIs(t, err, core.ErrTenantExists)
	_, err = f.GetTenant(ctx, core.GetTenantRequest{Name: "nobody"})
	assert.ErrorIs(t, err, core.ErrTenantNotFound)

	_, err = f.CreateDatabase(ctx, core.CreateDatabaseRequest{Tenant: "nobody", Name: "db1"})
	assert.ErrorIs(t, err, core.ErrTenantNotFound)

	for _, name := range []string{"db1", "db2", "db3"} {
		_, err := f.CreateDatabase(ctx, core.CreateDatabaseRequest{Tenant: "acme", Name: name})
		require.NoError(t, err)
	}
	_, err = f.CreateDatabase(ctx, core.CreateDatabaseRequest{Tenant: "acme", Name: "db1"})
	assert.ErrorIs(t, err, core.ErrDatabaseExists)

	limit := 1
	dbs, err := f.ListDatabases(ctx, core.ListDatabasesRequest{Tenant: "acme", Offset: 1, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, dbs, 1)
	assert.Equal(t, "db2", dbs[0].Name)

	dbs, err = f.ListDatabases(ctx, core.ListDatabasesRequest{Tenant: "acme", Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, dbs)

	c, err := f.CreateCollection(ctx, core.CreateCollectionRequest{Tenant: "acme", Database: "db2", Name: "inner"})
	require.NoError(t, err)

	require.NoError(t, f.DeleteDatabase(ctx, core.DeleteDatabaseRequest{Tenant: "acme", Name: "db2"}))
	_, err = f.GetDatabase(ctx, core.GetDatabaseRequest{Tenant: "acme", Name: "db2"})
	assert.ErrorIs(t, err, core.ErrDatabaseNotFound)
	_, err = f.Count(ctx, core.CountRequest{CollectionID: c.ID})
	assert.ErrorIs(t, err, core.ErrCollectionNotFound)
}

func TestCollectionLifecycle(t *testing.T) {
	f := newTestFrontend(t, false)
	ctx := context.Background()

	first, err := f.CreateCollection(ctx, core.CreateCollectionRequest{
		Tenant:   core.DefaultTenant,
		Database: core.DefaultDatabase,
		Name:     "docs",
		Metadata: core.Metadata{"team": core.StringValue("search")},
	})
	require.NoError(t, err)
	assert.Equal(t, core.SpaceL2, first.Configuration.Space())
	assert.Nil(t, first.Dimension)

	// get_or_create returns the same collection unchanged
	again, err := f.CreateCollection(ctx, core.CreateCollectionRequest{
		Tenant:      core.DefaultTenant,
		Database:    core.DefaultDatabase,
		Name:        "docs",
		Metadata:    core.Metadata{"team": core.StringValue("other")},
		GetOrCreate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, core.StringValue("search"), again.Metadata["team"])

	_, err = f.CreateCollection(ctx, core.CreateCollectionRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase, Name: "docs"})
	assert.ErrorIs(t, err, core.ErrCollectionExists)

	_, err = f.CreateCollection(ctx, core.CreateCollectionRequest{Tenant: core.DefaultTenant, Database: "missing", Name: "docs"})
	assert.ErrorIs(t, err, core.ErrDatabaseNotFound)

	createCollection(t, f, "other", core.SpaceCosine)

	n, err := f.CountCollections(ctx, core.CountCollectionsRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := f.ListCollections(ctx, core.ListCollectionsRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "docs", list[0].Name)

	// Rename and patch metadata
	newName := "articles"
	ef := 20
	updated, err := f.UpdateCollection(ctx, core.UpdateCollectionRequest{
		CollectionID: first.ID,
		NewName:      &newName,
		NewMetadata: core.UpdateMetadata{
			"team":  core.NullValue(),
			"owner": core.StringValue("ops"),
		},
		NewConfiguration: &core.HNSWConfiguration{EFSearch: &ef},
	})
	require.NoError(t, err)
	assert.Equal(t, "articles", updated.Name)
	assert.Equal(t, core.Metadata{"owner": core.StringValue("ops")}, updated.Metadata)
	require.NotNil(t, updated.Configuration.HNSW.EFSearch)
	assert.Equal(t, 20, *updated.Configuration.HNSW.EFSearch)
	assert.Equal(t, core.SpaceL2, updated.Configuration.Space())

	conflict := "other"
	_, err = f.UpdateCollection(ctx, core.UpdateCollectionRequest{CollectionID: first.ID, NewName: &conflict})
	assert.ErrorIs(t, err, core.ErrCollectionExists)

	_, err = f.GetCollection(ctx, core.GetCollectionRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase, Name: "docs"})
	assert.ErrorIs(t, err, core.ErrCollectionNotFound)

	// Deleting a missing collection fails and leaves the others alone
	err = f.DeleteCollection(ctx, core.DeleteCollectionRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase, Name: "nope"})
	assert.ErrorIs(t, err, core.ErrCollectionNotFound)
	n, err = f.CountCollections(ctx, core.CountCollectionsRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, f.DeleteCollection(ctx, core.DeleteCollectionRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase, Name: "articles"}))
	n, err = f.CountCollections(ctx, core.CountCollectionsRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordWrites(t *testing.T) {
	f := newTestFrontend(t, false)
	ctx := context.Background()
	c := createCollection(t, f, "records", core.SpaceL2)

	err := f.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: []core.Record{
		{ID: "a", Embedding: []float32{1, 0}, Document: strPtr("apple"), Metadata: core.Metadata{"n": core.IntValue(1)}},
		{ID: "b", Embedding: []float32{0, 1}},
	}})
	require.NoError(t, err)

	// Adding an existing id is skipped, not an error
	err = f.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: []core.Record{
		{ID: "a", Embedding: []float32{9, 9}},
		{ID: "c", Embedding: []float32{1, 1}},
	}})
	require.NoError(t, err)

	got, err := f.Get(ctx, core.GetRequest{CollectionID: c.ID, Include: core.IncludeList{core.IncludeEmbeddings, core.IncludeDocuments, core.IncludeMetadatas}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.IDs)
	assert.Equal(t, []float32{1, 0}, got.Embeddings[0])
	require.NotNil(t, got.Documents[0])
	assert.Equal(t, "apple", *got.Documents[0])
	assert.Nil(t, got.Documents[1])
	assert.Nil(t, got.URIs)

	// The first write fixed the dimension
	err = f.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: []core.Record{{ID: "d", Embedding: []float32{1, 2, 3}}}})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	loaded, err := f.GetCollection(ctx, core.GetCollectionRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase, Name: "records"})
	require.NoError(t, err)
	require.NotNil(t, loaded.Dimension)
	assert.Equal(t, 2, *loaded.Dimension)

	// Update merges metadata and ignores unknown ids
	err = f.Update(ctx, core.UpdateRecordsRequest{CollectionID: c.ID, Records: []core.RecordUpdate{
		{ID: "a", Metadata: core.UpdateMetadata{"n": core.NullValue(), "m": core.BoolValue(true)}},
		{ID: "ghost", Document: strPtr("boo")},
	}})
	require.NoError(t, err)

	// Upsert updates b and inserts e
	err = f.Upsert(ctx, core.UpsertRecordsRequest{CollectionID: c.ID, Records: []core.RecordUpdate{
		{ID: "b", Embedding: []float32{0, 2}, URI: strPtr("s3://b")},
		{ID: "e", Embedding: []float32{5, 5}, Metadata: core.UpdateMetadata{"x": core.FloatValue(0.5), "gone": core.NullValue()}},
	}})
	require.NoError(t, err)

	got, err = f.Get(ctx, core.GetRequest{CollectionID: c.ID, Include: core.IncludeList{core.IncludeEmbeddings, core.IncludeURIs, core.IncludeMetadatas}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "e"}, got.IDs)
	assert.Equal(t, core.Metadata{"m": core.BoolValue(true)}, got.Metadatas[0])
	assert.Equal(t, []float32{0, 2}, got.Embeddings[1])
	require.NotNil(t, got.URIs[1])
	assert.Equal(t, "s3://b", *got.URIs[1])
	assert.Equal(t, core.Metadata{"x": core.FloatValue(0.5)}, got.Metadatas[3])

	// Delete by filter, then everything
	err = f.Delete(ctx, core.DeleteRecordsRequest{CollectionID: c.ID, Where: &core.MetadataExpression{Key: "m", Op: core.OpEq, Value: core.BoolValue(true)}})
	require.NoError(t, err)
	n, err := f.Count(ctx, core.CountRequest{CollectionID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, f.Delete(ctx, core.DeleteRecordsRequest{CollectionID: c.ID}))
	n, err = f.Count(ctx, core.CountRequest{CollectionID: c.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertNewRecordNeedsEmbedding(t *testing.T) {
	f := newTestFrontend(t, false)
	c := createCollection(t, f, "records", core.SpaceL2)

	err := f.Upsert(context.Background(), core.UpsertRecordsRequest{CollectionID: c.ID, Records: []core.RecordUpdate{{ID: "x", Document: strPtr("d")}}})
	assert.ErrorIs(t, err, core.ErrInvalidEmbedding)
}

func TestRecordsCheckTenantAndDatabase(t *testing.T) {
	f := newTestFrontend(t, false)
	c := createCollection(t, f, "records", core.SpaceL2)

	_, err := f.Count(context.Background(), core.CountRequest{Tenant: core.DefaultTenant, Database: "elsewhere", CollectionID: c.ID})
	assert.ErrorIs(t, err, core.ErrCollectionNotFound)
}

func TestQuery(t *testing.T) {
	f := newTestFrontend(t, false)
	ctx := context.Background()
	c := createCollection(t, f, "vectors", core.SpaceL2)

	// Query on an empty collection returns empty lists
	res, err := f.Query(ctx, core.QueryRequest{CollectionID: c.ID, QueryEmbeddings: [][]float32{{0, 0}}, NResults: 3, Include: core.DefaultQueryInclude})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{}}, res.IDs)

	require.NoError(t, f.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: []core.Record{
		{ID: "origin", Embedding: []float32{0, 0}, Metadata: core.Metadata{"kind": core.StringValue("a")}},
		{ID: "east", Embedding: []float32{1, 0}, Metadata: core.Metadata{"kind": core.StringValue("b")}},
		{ID: "far", Embedding: []float32{10, 10}, Metadata: core.Metadata{"kind": core.StringValue("a")}},
	}}))

	res, err = f.Query(ctx, core.QueryRequest{
		CollectionID:    c.ID,
		QueryEmbeddings: [][]float32{{0.1, 0}, {9, 9}},
		NResults:        2,
		Include:         core.IncludeList{core.IncludeDistances},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"origin", "east"}, {"far", "east"}}, res.IDs)
	assert.InDelta(t, 0.01, res.Distances[0][0], 1e-6)
	assert.Nil(t, res.Documents)

	res, err = f.Query(ctx, core.QueryRequest{
		CollectionID:    c.ID,
		QueryEmbeddings: [][]float32{{1, 0}},
		NResults:        5,
		Where:           &core.MetadataExpression{Key: "kind", Op: core.OpEq, Value: core.StringValue("a")},
		Include:         core.DefaultQueryInclude,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"origin", "far"}}, res.IDs)

	res, err = f.Query(ctx, core.QueryRequest{CollectionID: c.ID, QueryEmbeddings: [][]float32{{1, 0}}, NResults: 0, Include: core.DefaultQueryInclude})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{}}, res.IDs)
	assert.Equal(t, [][]float32{{}}, res.Distances)

	_, err = f.Query(ctx, core.QueryRequest{CollectionID: c.ID, QueryEmbeddings: [][]float32{{1, 0, 0}}, NResults: 1})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestSearchAllRaisesPanicOnCaller(t *testing.T) {
	queries := [][]float32{{0}, {1}, {2}, {3}}
	search := func(q []float32) ([]index.Neighbor, error) {
		if q[0] == 2 {
			panic("corrupt segment")
		}
		return []index.Neighbor{{Distance: q[0]}}, nil
	}

	assert.PanicsWithValue(t, "corrupt segment", func() {
		_, _ = searchAll(context.Background(), 2, queries, search)
	})

	hits, err := searchAll(context.Background(), 2, queries[:2], search)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestConcurrentAdds(t *testing.T) {
	f := newTestFrontend(t, false)
	ctx := context.Background()
	c := createCollection(t, f, "concurrent", core.SpaceL2)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			records := make([]core.Record, perWorker)
			for i := range records {
				records[i] = core.Record{ID: fmt.Sprintf("w%d-%d", w, i), Embedding: []float32{float32(w), float32(i)}}
			}
			errs <- f.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: records})
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := f.Count(ctx, core.CountRequest{CollectionID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, n)
}

func TestReset(t *testing.T) {
	ctx := context.Background()

	locked := newTestFrontend(t, false)
	assert.ErrorIs(t, locked.Reset(ctx), core.ErrResetDisabled)

	f := newTestFrontend(t, true)
	createCollection(t, f, "doomed", core.SpaceL2)
	require.NoError(t, f.Reset(ctx))

	n, err := f.CountCollections(ctx, core.CountCollectionsRequest{Tenant: core.DefaultTenant, Database: core.DefaultDatabase})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClosedFrontend(t *testing.T) {
	f := newTestFrontend(t, false)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err := f.Heartbeat(context.Background())
	assert.ErrorIs(t, err, core.ErrEngineClosed)
}

func TestFrontendsSharingStorage(t *testing.T) {
	ctx := context.Background()
	registry := persistence.NewRegistry(persistence.NewDefaultFactory(nil))
	config := persistence.DefaultPersistenceConfig(persistence.PersistenceBolt, filepath.Join(t.TempDir(), "data"))

	open := func() *Frontend {
		p, err := registry.Acquire(config)
		require.NoError(t, err)
		f, err := NewFrontend(ctx, p, DefaultConfig(), nil)
		require.NoError(t, err)
		return f
	}

	writer := open()
	reader := open()

	c := createCollection(t, writer, "shared", core.SpaceL2)
	require.NoError(t, writer.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: []core.Record{{ID: "1", Embedding: []float32{1}}}}))

	n, err := reader.Count(ctx, core.CountRequest{CollectionID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The reader caches its segment; a later write must still be visible
	require.NoError(t, writer.Add(ctx, core.AddRecordsRequest{CollectionID: c.ID, Records: []core.Record{{ID: "2", Embedding: []float32{2}}}}))
	n, err = reader.Count(ctx, core.CountRequest{CollectionID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, writer.Close())
	require.NoError(t, reader.Close())

	// Reopening restores the segment from its snapshot
	again := open()
	defer again.Close()
	got, err := again.Get(ctx, core.GetRequest{CollectionID: c.ID, Include: core.DefaultGetInclude})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got.IDs)
}

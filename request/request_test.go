package request

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testID    = uuid.MustParse("0f3b2d9e-6c1a-4b8e-9d2f-7a5c4e3b1a09")
	testScope = Scope{Tenant: core.DefaultTenant, Database: core.DefaultDatabase}
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func assertInvalid(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Constraint, contains)
}

func TestCatalogBuilders(t *testing.T) {
	_, err := CreateTenant("")
	assertInvalid(t, err, "tenant")

	req, err := CreateDatabase("acme", "analytics")
	require.NoError(t, err)
	assert.Equal(t, core.CreateDatabaseRequest{Tenant: "acme", Name: "analytics"}, req)

	_, err = CreateDatabase("", "analytics")
	assertInvalid(t, err, "tenant")

	_, err = ListDatabases("acme", intPtr(-1), nil)
	assertInvalid(t, err, "limit")

	list, err := ListDatabases("acme", intPtr(5), intPtr(2))
	require.NoError(t, err)
	assert.Equal(t, 2, list.Offset)
	assert.Equal(t, 5, *list.Limit)

	_, err = ListCollections(core.DefaultTenant, core.DefaultDatabase, nil, intPtr(-3))
	assertInvalid(t, err, "offset")

	_, err = GetCollection(core.DefaultTenant, core.DefaultDatabase, "")
	assertInvalid(t, err, "collection name")
}

func TestCollectionNames(t *testing.T) {
	valid := []string{"abc", "my-collection", "a.b_c-1", strings.Repeat("x", 512)}
	for _, name := range valid {
		_, err := CreateCollection(core.DefaultTenant, core.DefaultDatabase, name, nil, nil, false)
		assert.NoError(t, err, name)
	}

	invalidNames := []string{"ab", "-abc", "abc-", "a..b", "has space", "192.168.1.1", strings.Repeat("x", 513)}
	for _, name := range invalidNames {
		_, err := CreateCollection(core.DefaultTenant, core.DefaultDatabase, name, nil, nil, false)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestUpdateCollection(t *testing.T) {
	_, err := UpdateCollection(uuid.Nil, nil, nil, nil)
	assertInvalid(t, err, "collection id")

	_, err = UpdateCollection(testID, strPtr("x"), nil, nil)
	assertInvalid(t, err, "between")

	_, err = UpdateCollection(testID, nil, nil, &core.HNSWConfiguration{Space: core.SpaceIP})
	assertInvalid(t, err, "space")

	req, err := UpdateCollection(testID, strPtr("renamed"), core.UpdateMetadata{"a": core.NullValue()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", *req.NewName)
}

func TestAdd(t *testing.T) {
	batch := AddBatch{
		IDs:        []string{"a", "b"},
		Embeddings: [][]float32{{1, 2}, {3, 4}},
		Documents:  []*string{strPtr("doc"), nil},
		Metadatas:  []core.Metadata{nil, {"k": core.IntValue(1)}},
	}
	req, err := Add(testScope, testID, batch, DefaultMaxBatchSize)
	require.NoError(t, err)
	require.Len(t, req.Records, 2)
	assert.Equal(t, "doc", *req.Records[0].Document)
	assert.Nil(t, req.Records[1].Document)
	assert.Nil(t, req.Records[0].URI)
	assert.Equal(t, core.IntValue(1), req.Records[1].Metadata["k"])
}

func TestAddRejects(t *testing.T) {
	base := func() AddBatch {
		return AddBatch{IDs: []string{"a", "b"}, Embeddings: [][]float32{{1, 2}, {3, 4}}}
	}

	tests := []struct {
		name     string
		mutate   func(b *AddBatch)
		max      int
		contains string
	}{
		{"no ids", func(b *AddBatch) { b.IDs = nil; b.Embeddings = nil }, 0, "ids cannot be empty"},
		{"fewer embeddings", func(b *AddBatch) { b.Embeddings = b.Embeddings[:1] }, 0, "number of embeddings"},
		{"missing embeddings", func(b *AddBatch) { b.Embeddings = nil }, 0, "number of embeddings"},
		{"documents length", func(b *AddBatch) { b.Documents = []*string{nil} }, 0, "number of documents"},
		{"uris length", func(b *AddBatch) { b.URIs = []*string{nil, nil, nil} }, 0, "number of uris"},
		{"metadatas length", func(b *AddBatch) { b.Metadatas = []core.Metadata{nil} }, 0, "number of metadatas"},
		{"mixed dimensions", func(b *AddBatch) { b.Embeddings[1] = []float32{1, 2, 3} }, 0, "dimension"},
		{"nan", func(b *AddBatch) { b.Embeddings[0][1] = float32(math.NaN()) }, 0, "NaN"},
		{"inf", func(b *AddBatch) { b.Embeddings[0][0] = float32(math.Inf(1)) }, 0, "infinite"},
		{"empty embedding", func(b *AddBatch) { b.Embeddings[0] = []float32{} }, 0, "empty"},
		{"duplicate ids", func(b *AddBatch) { b.IDs[1] = "a" }, 0, "duplicate"},
		{"empty id", func(b *AddBatch) { b.IDs[0] = "" }, 0, "cannot be empty"},
		{"batch too large", func(b *AddBatch) {}, 1, "maximum batch size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base()
			tt.mutate(&b)
			_, err := Add(testScope, testID, b, tt.max)
			assertInvalid(t, err, tt.contains)
		})
	}
}

func TestUpdateAndUpsert(t *testing.T) {
	_, err := Update(testScope, testID, UpdateBatch{IDs: []string{"a"}}, 0)
	assertInvalid(t, err, "at least one")

	req, err := Update(testScope, testID, UpdateBatch{
		IDs:        []string{"a", "b"},
		Embeddings: [][]float32{nil, {1, 1}},
	}, 0)
	require.NoError(t, err)
	assert.Nil(t, req.Records[0].Embedding)
	assert.Equal(t, []float32{1, 1}, req.Records[1].Embedding)

	_, err = Upsert(testScope, testID, UpdateBatch{IDs: []string{"a"}, Documents: []*string{strPtr("x")}}, 0)
	assertInvalid(t, err, "embeddings are required")

	_, err = Upsert(testScope, testID, UpdateBatch{IDs: []string{"a", "b"}, Embeddings: [][]float32{{1}, nil}}, 0)
	assertInvalid(t, err, "missing")

	upsert, err := Upsert(testScope, testID, UpdateBatch{
		IDs:        []string{"a"},
		Embeddings: [][]float32{{1}},
		Metadatas:  []core.UpdateMetadata{{"gone": core.NullValue()}},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, core.NullValue(), upsert.Records[0].Metadata["gone"])
}

func TestReadBuilders(t *testing.T) {
	_, err := Get(testScope, testID, []string{}, nil, nil, nil, nil)
	assertInvalid(t, err, "ids, if given")

	get, err := Get(testScope, testID, nil, nil, intPtr(10), nil, core.DefaultGetInclude)
	require.NoError(t, err)
	assert.Nil(t, get.IDs)
	assert.Zero(t, get.Offset)

	_, err = Delete(testScope, testID, []string{}, nil)
	assertInvalid(t, err, "ids, if given")

	del, err := Delete(testScope, testID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, del.IDs)
	assert.Nil(t, del.Where)

	_, err = Query(testScope, testID, nil, 1, nil, nil)
	assertInvalid(t, err, "query embeddings")

	_, err = Query(testScope, testID, [][]float32{{1}}, -1, nil, nil)
	assertInvalid(t, err, "n_results")

	_, err = Query(testScope, testID, [][]float32{{1}, {1, 2}}, 1, nil, nil)
	assertInvalid(t, err, "dimension")

	q, err := Query(testScope, testID, [][]float32{{1, 2}}, 0, nil, core.DefaultQueryInclude)
	require.NoError(t, err)
	assert.Zero(t, q.NResults)

	_, err = Count(testScope, uuid.Nil)
	assertInvalid(t, err, "collection id")
}

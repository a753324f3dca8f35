package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/embedbridge/binding"
	"github.com/dshills/embedbridge/config"
	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	c := config.DefaultConfig()
	c.Storage.Path = t.TempDir()
	table := NewTable(
		binding.WithConfig(c),
		binding.WithLogger(zap.NewNop()),
		binding.WithRegistry(persistence.NewRegistry(persistence.NewDefaultFactory(nil))))
	t.Cleanup(func() { _ = table.CloseAll() })
	return NewRouter(table, nil)
}

func call(t *testing.T, r *Router, op string, args string) Response {
	t.Helper()
	return r.Call(context.Background(), op, []byte(args))
}

func mustOK(t *testing.T, resp Response) any {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	return resp.OK
}

func openHandle(t *testing.T, r *Router) uint64 {
	t.Helper()
	id, ok := mustOK(t, call(t, r, "initialize", `{"allow_reset": true}`)).(uint64)
	require.True(t, ok)
	return id
}

func TestRouterStatelessOps(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, binding.Version, mustOK(t, call(t, r, "version", "")))
	beat, ok := mustOK(t, call(t, r, "heartbeat", "{}")).(int64)
	require.True(t, ok)
	assert.Positive(t, beat)

	resp := call(t, r, "compact", "{}")
	require.NotNil(t, resp.Error)
	assert.Equal(t, binding.KindMalformedInput, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "unknown operation")

	assert.Contains(t, r.Ops(), "query")
	assert.Contains(t, r.Ops(), "metrics")
}

func TestRouterRecordFlow(t *testing.T) {
	r := newTestRouter(t)
	h := openHandle(t, r)

	out := mustOK(t, call(t, r, "create_collection", fmt.Sprintf(
		`{"handle": %d, "name": "docs", "configuration_json": {"hnsw": {"space": "cosine"}}, "metadata": "{\"team\": \"search\"}"}`, h)))
	var collection core.Collection
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &collection))
	assert.Equal(t, core.SpaceCosine, collection.Configuration.Space())
	assert.Equal(t, core.StringValue("search"), collection.Metadata["team"])

	mustOK(t, call(t, r, "add", fmt.Sprintf(`{
		"handle": %d,
		"collection_id": %q,
		"ids": ["a", "b", "c"],
		"embeddings": [[1, 0], [0, 1], [1, 1]],
		"documents": ["alpha", null, "gamma"],
		"metadatas": [{"rank": 1}, "{\"rank\": 2}", null]
	}`, h, collection.ID)))

	n := mustOK(t, call(t, r, "count", fmt.Sprintf(`{"handle": %d, "collection_id": %q}`, h, collection.ID)))
	assert.Equal(t, 3, n)

	out = mustOK(t, call(t, r, "get", fmt.Sprintf(
		`{"handle": %d, "collection_id": %q, "where": {"rank": {"$gte": 2}}, "include": ["metadatas"]}`, h, collection.ID)))
	var got core.GetResult
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &got))
	assert.Equal(t, []string{"b"}, got.IDs)
	assert.Nil(t, got.Documents)

	out = mustOK(t, call(t, r, "query", fmt.Sprintf(
		`{"handle": %d, "collection_id": %q, "query_embeddings": [[1, 0.1]], "n_results": 2, "where_document": {"$contains": "a"}}`, h, collection.ID)))
	var result core.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &result))
	assert.Equal(t, [][]string{{"a", "c"}}, result.IDs)

	assert.Equal(t, binding.OK, mustOK(t, call(t, r, "delete", fmt.Sprintf(
		`{"handle": %d, "collection_id": %q, "ids": ["a"]}`, h, collection.ID))))
	assert.Equal(t, 2, mustOK(t, call(t, r, "count", fmt.Sprintf(`{"handle": %d, "collection_id": %q}`, h, collection.ID))))

	text := mustOK(t, call(t, r, "metrics", fmt.Sprintf(`{"handle": %d}`, h))).(string)
	assert.Contains(t, text, `embedbridge_calls_total{op="add",outcome="ok"} 1`)
}

func TestRouterErrors(t *testing.T) {
	r := newTestRouter(t)
	h := openHandle(t, r)

	tests := []struct {
		name   string
		op     string
		args   string
		kind   binding.Kind
		prefix string
	}{
		{"missing handle", "count", `{"collection_id": "x"}`, binding.KindMalformedInput, "Request error:"},
		{"unknown handle", "count", `{"handle": 999, "collection_id": "x"}`, binding.KindUnavailable, "unknown engine handle"},
		{"args not an object", "count", `[1, 2]`, binding.KindMalformedInput, "Request error:"},
		{"bad uuid", "count", fmt.Sprintf(`{"handle": %d, "collection_id": "x"}`, h), binding.KindMalformedInput, "UUID error:"},
		{"bad metadata", "create_collection", fmt.Sprintf(`{"handle": %d, "name": "docs", "metadata": {"a": {"b": 1}}}`, h), binding.KindMalformedInput, "Metadata error:"},
		{"bad where", "get", fmt.Sprintf(`{"handle": %d, "collection_id": "0b0f2a2e-8d1e-4d7c-9a53-5d0c3c0b8f61", "where": {"a": {"$gt": "x"}}}`, h), binding.KindMalformedInput, "Where error:"},
		{"empty ids", "get", fmt.Sprintf(`{"handle": %d, "collection_id": "0b0f2a2e-8d1e-4d7c-9a53-5d0c3c0b8f61", "ids": []}`, h), binding.KindValidation, "Request error:"},
		{"missing collection", "get_collection", fmt.Sprintf(`{"handle": %d, "name": "nope"}`, h), binding.KindEngine, "collection not found"},
		{"null embedding row", "add", fmt.Sprintf(`{"handle": %d, "collection_id": "0b0f2a2e-8d1e-4d7c-9a53-5d0c3c0b8f61", "ids": ["a"], "embeddings": [null]}`, h), binding.KindMalformedInput, "Request error:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, r, tt.op, tt.args)
			require.NotNil(t, resp.Error)
			assert.Nil(t, resp.OK)
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.True(t, strings.HasPrefix(resp.Error.Message, tt.prefix) || strings.Contains(resp.Error.Message, tt.prefix),
				"message %q should carry %q", resp.Error.Message, tt.prefix)
		})
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	r := newTestRouter(t)
	r.ops["explode"] = func(context.Context, args) (any, error) {
		panic("index out of range")
	}

	resp := call(t, r, "explode", "{}")
	require.NotNil(t, resp.Error)
	assert.Nil(t, resp.OK)
	assert.Equal(t, binding.KindUnavailable, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "call panicked: index out of range")

	assert.Equal(t, binding.Version, mustOK(t, call(t, r, "version", "")))
}

func TestRouterHandleLifecycle(t *testing.T) {
	r := newTestRouter(t)
	h := openHandle(t, r)
	other := openHandle(t, r)
	assert.NotEqual(t, h, other)

	handleArgs := fmt.Sprintf(`{"handle": %d}`, h)
	assert.Equal(t, binding.OK, mustOK(t, call(t, r, "retain", handleArgs)))
	assert.Equal(t, binding.OK, mustOK(t, call(t, r, "release", handleArgs)))
	assert.Equal(t, 40000, mustOK(t, call(t, r, "max_batch_size", handleArgs)))

	assert.Equal(t, binding.OK, mustOK(t, call(t, r, "release", handleArgs)))
	resp := call(t, r, "max_batch_size", handleArgs)
	require.NotNil(t, resp.Error)
	assert.Equal(t, binding.KindUnavailable, resp.Error.Kind)

	assert.Equal(t, 40000, mustOK(t, call(t, r, "max_batch_size", fmt.Sprintf(`{"handle": %d}`, other))))

	third := openHandle(t, r)
	assert.Greater(t, third, other)
}

func TestTableCloseAll(t *testing.T) {
	c := config.DefaultConfig()
	c.Storage.Backend = string(persistence.PersistenceMemory)
	c.Storage.Path = t.TempDir()
	table := NewTable(binding.WithConfig(c), binding.WithLogger(zap.NewNop()))

	id, err := table.Open(false, nil)
	require.NoError(t, err)
	require.NoError(t, table.Retain(id))
	assert.Equal(t, 1, table.Len())

	require.NoError(t, table.CloseAll())
	assert.Zero(t, table.Len())
	_, err = table.Get(id)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

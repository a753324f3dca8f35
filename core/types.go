package core

import (
	"time"

	"github.com/google/uuid"
)

// Default names created when an engine is bootstrapped
const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
)

// Tenant is the top-level namespace
type Tenant struct {
	Name string `json:"name"`
}

// Database groups collections within a tenant
type Database struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Tenant    string    `json:"tenant"`
	CreatedAt time.Time `json:"created_at"`
}

// HNSWConfiguration carries the index parameters of a collection. Only
// Space affects search; the other fields are stored and returned as given.
type HNSWConfiguration struct {
	Space          Space    `json:"space,omitempty"`
	EFConstruction *int     `json:"ef_construction,omitempty"`
	EFSearch       *int     `json:"ef_search,omitempty"`
	MaxNeighbors   *int     `json:"max_neighbors,omitempty"`
	NumThreads     *int     `json:"num_threads,omitempty"`
	BatchSize      *int     `json:"batch_size,omitempty"`
	SyncThreshold  *int     `json:"sync_threshold,omitempty"`
	ResizeFactor   *float64 `json:"resize_factor,omitempty"`
}

// CollectionConfiguration is the configuration_json of a collection
type CollectionConfiguration struct {
	HNSW *HNSWConfiguration `json:"hnsw,omitempty"`
}

// Space returns the configured distance space, defaulting to l2
func (c CollectionConfiguration) Space() Space {
	if c.HNSW == nil || c.HNSW.Space == "" {
		return SpaceL2
	}
	return c.HNSW.Space
}

// Collection is a named set of records inside a database
type Collection struct {
	ID            uuid.UUID               `json:"id"`
	Name          string                  `json:"name"`
	Configuration CollectionConfiguration `json:"configuration_json"`
	Metadata      Metadata                `json:"metadata"`
	Dimension     *int                    `json:"dimension"`
	Tenant        string                  `json:"tenant"`
	Database      string                  `json:"database"`
	LogPosition   int64                   `json:"log_position"`
	Version       int32                   `json:"version"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Record is one stored entry of a collection
type Record struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Document  *string   `json:"document,omitempty"`
	URI       *string   `json:"uri,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// RecordUpdate describes changes to one record. Nil fields are left as is.
type RecordUpdate struct {
	ID        string
	Embedding []float32
	Document  *string
	URI       *string
	Metadata  UpdateMetadata
}

// Include names a field that get and query may return
type Include string

const (
	IncludeDocuments  Include = "documents"
	IncludeEmbeddings Include = "embeddings"
	IncludeMetadatas  Include = "metadatas"
	IncludeDistances  Include = "distances"
	IncludeURIs       Include = "uris"
)

// IncludeList is an ordered set of Include values
type IncludeList []Include

// DefaultGetInclude is used when get is called without include
var DefaultGetInclude = IncludeList{IncludeDocuments, IncludeMetadatas}

// DefaultQueryInclude is used when query is called without include
var DefaultQueryInclude = IncludeList{IncludeDocuments, IncludeMetadatas, IncludeDistances}

// Has reports whether the list contains inc
func (l IncludeList) Has(inc Include) bool {
	for _, i := range l {
		if i == inc {
			return true
		}
	}
	return false
}

// GetResult holds the records returned by get. Fields not requested in
// Include are nil and encode as null.
type GetResult struct {
	IDs        []string    `json:"ids"`
	Embeddings [][]float32 `json:"embeddings"`
	Documents  []*string   `json:"documents"`
	URIs       []*string   `json:"uris"`
	Metadatas  []Metadata  `json:"metadatas"`
	Include    IncludeList `json:"include"`
}

// QueryResult holds one result list per query embedding
type QueryResult struct {
	IDs        [][]string    `json:"ids"`
	Embeddings [][][]float32 `json:"embeddings"`
	Documents  [][]*string   `json:"documents"`
	URIs       [][]*string   `json:"uris"`
	Metadatas  [][]Metadata  `json:"metadatas"`
	Distances  [][]float32   `json:"distances"`
	Include    IncludeList   `json:"include"`
}

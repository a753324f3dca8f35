package core

import "github.com/google/uuid"

// CreateTenantRequest creates a tenant
type CreateTenantRequest struct {
	Name string
}

// GetTenantRequest fetches a tenant
type GetTenantRequest struct {
	Name string
}

// CreateDatabaseRequest creates a database inside a tenant
type CreateDatabaseRequest struct {
	Tenant string
	Name   string
}

// GetDatabaseRequest fetches a database
type GetDatabaseRequest struct {
	Tenant string
	Name   string
}

// DeleteDatabaseRequest deletes a database and its collections
type DeleteDatabaseRequest struct {
	Tenant string
	Name   string
}

// ListDatabasesRequest lists databases of a tenant. A nil Limit is unbounded.
type ListDatabasesRequest struct {
	Tenant string
	Limit  *int
	Offset int
}

// CreateCollectionRequest creates a collection
type CreateCollectionRequest struct {
	Tenant        string
	Database      string
	Name          string
	Metadata      Metadata
	Configuration *CollectionConfiguration
	GetOrCreate   bool
}

// GetCollectionRequest fetches a collection by name
type GetCollectionRequest struct {
	Tenant   string
	Database string
	Name     string
}

// DeleteCollectionRequest deletes a collection by name
type DeleteCollectionRequest struct {
	Tenant   string
	Database string
	Name     string
}

// ListCollectionsRequest lists collections of a database
type ListCollectionsRequest struct {
	Tenant   string
	Database string
	Limit    *int
	Offset   int
}

// CountCollectionsRequest counts collections of a database
type CountCollectionsRequest struct {
	Tenant   string
	Database string
}

// UpdateCollectionRequest renames a collection, patches its metadata or
// changes its tunable index parameters. Nil fields are left unchanged.
type UpdateCollectionRequest struct {
	CollectionID     uuid.UUID
	NewName          *string
	NewMetadata      UpdateMetadata
	NewConfiguration *HNSWConfiguration
}

// AddRecordsRequest inserts records. Ids that already exist are skipped.
type AddRecordsRequest struct {
	Tenant       string
	Database     string
	CollectionID uuid.UUID
	Records      []Record
}

// UpdateRecordsRequest changes existing records. Unknown ids are ignored.
type UpdateRecordsRequest struct {
	Tenant       string
	Database     string
	CollectionID uuid.UUID
	Records      []RecordUpdate
}

// UpsertRecordsRequest inserts or updates records
type UpsertRecordsRequest struct {
	Tenant       string
	Database     string
	CollectionID uuid.UUID
	Records      []RecordUpdate
}

// DeleteRecordsRequest deletes records. With neither IDs nor Where every
// record of the collection is deleted.
type DeleteRecordsRequest struct {
	Tenant       string
	Database     string
	CollectionID uuid.UUID
	IDs          []string
	Where        Where
}

// GetRequest reads records in insertion order
type GetRequest struct {
	Tenant       string
	Database     string
	CollectionID uuid.UUID
	IDs          []string
	Where        Where
	Limit        *int
	Offset       int
	Include      IncludeList
}

// QueryRequest runs a nearest neighbour search per embedding
type QueryRequest struct {
	Tenant          string
	Database        string
	CollectionID    uuid.UUID
	IDs             []string
	Where           Where
	QueryEmbeddings [][]float32
	NResults        int
	Include         IncludeList
}

// CountRequest counts the records of a collection
type CountRequest struct {
	Tenant       string
	Database     string
	CollectionID uuid.UUID
}

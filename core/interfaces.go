package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StoredRecord is a record together with its insertion sequence number.
// Sequence numbers order get results and break query ties.
type StoredRecord struct {
	Seq uint64 `json:"seq"`
	Record
}

// Persistence handles durable storage of the catalog and records. Writers
// that share one Persistence serialize through its Locker so that
// read-modify-write sequences see each other's effects.
type Persistence interface {
	sync.Locker

	// Catalog operations
	SaveTenant(ctx context.Context, tenant Tenant) error
	LoadTenant(ctx context.Context, name string) (Tenant, error)
	SaveDatabase(ctx context.Context, db Database) error
	LoadDatabases(ctx context.Context) ([]Database, error)
	DeleteDatabase(ctx context.Context, tenant, name string) error
	SaveCollection(ctx context.Context, collection Collection) error
	LoadCollection(ctx context.Context, id uuid.UUID) (Collection, error)
	LoadCollections(ctx context.Context) ([]Collection, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error

	// ApplyRecords writes puts and deletes and saves the collection in one
	// transaction, so the collection log position moves with its records.
	ApplyRecords(ctx context.Context, collection Collection, puts []StoredRecord, deletes []string) error
	LoadRecords(ctx context.Context, id uuid.UUID) ([]StoredRecord, error)

	// Index state operations
	SaveIndexState(ctx context.Context, id uuid.UUID, data []byte) error
	LoadIndexState(ctx context.Context, id uuid.UUID) ([]byte, error)

	// Reset removes everything
	Reset(ctx context.Context) error
	Close() error
}

package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
)

const (
	tenantsBucket       = "tenants"
	databasesBucket     = "databases"
	collectionsBucket   = "collections"
	indexStatesBucket   = "index_states"
	recordsBucketPrefix = "records_"
)

// Store implements core.Persistence on top of a Backend
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// NewStore creates a Store over the given backend
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Lock acquires the writer lock
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the writer lock
func (s *Store) Unlock() { s.mu.Unlock() }

func recordsBucket(id uuid.UUID) string {
	return recordsBucketPrefix + id.String()
}

func databaseKey(tenant, name string) string {
	return tenant + "\x00" + name
}

func putJSON(tx Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", bucket, key, err)
	}
	return tx.Put(bucket, key, data)
}

// SaveTenant stores a tenant
func (s *Store) SaveTenant(ctx context.Context, tenant core.Tenant) error {
	return s.backend.Update(func(tx Tx) error {
		return putJSON(tx, tenantsBucket, tenant.Name, tenant)
	})
}

// LoadTenant retrieves a tenant by name
func (s *Store) LoadTenant(ctx context.Context, name string) (core.Tenant, error) {
	var tenant core.Tenant
	err := s.backend.View(func(tx Tx) error {
		data, err := tx.Get(tenantsBucket, name)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s", core.ErrTenantNotFound, name)
		}
		return json.Unmarshal(data, &tenant)
	})
	if err != nil {
		return core.Tenant{}, err
	}
	return tenant, nil
}

// SaveDatabase stores a database
func (s *Store) SaveDatabase(ctx context.Context, db core.Database) error {
	return s.backend.Update(func(tx Tx) error {
		return putJSON(tx, databasesBucket, databaseKey(db.Tenant, db.Name), db)
	})
}

// LoadDatabases retrieves all databases ordered by creation time
func (s *Store) LoadDatabases(ctx context.Context) ([]core.Database, error) {
	var dbs []core.Database
	err := s.backend.View(func(tx Tx) error {
		return tx.ForEach(databasesBucket, func(key string, value []byte) error {
			var db core.Database
			if err := json.Unmarshal(value, &db); err != nil {
				return fmt.Errorf("failed to unmarshal database %q: %w", key, err)
			}
			dbs = append(dbs, db)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(dbs, func(i, j int) bool {
		if dbs[i].CreatedAt.Equal(dbs[j].CreatedAt) {
			return dbs[i].Name < dbs[j].Name
		}
		return dbs[i].CreatedAt.Before(dbs[j].CreatedAt)
	})
	return dbs, nil
}

// DeleteDatabase removes a database together with its collections and records
func (s *Store) DeleteDatabase(ctx context.Context, tenant, name string) error {
	return s.backend.Update(func(tx Tx) error {
		data, err := tx.Get(databasesBucket, databaseKey(tenant, name))
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s", core.ErrDatabaseNotFound, name)
		}

		var owned []uuid.UUID
		err = tx.ForEach(collectionsBucket, func(key string, value []byte) error {
			var c core.Collection
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("failed to unmarshal collection %s: %w", key, err)
			}
			if c.Tenant == tenant && c.Database == name {
				owned = append(owned, c.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range owned {
			if err := deleteCollection(tx, id); err != nil {
				return err
			}
		}
		return tx.Delete(databasesBucket, databaseKey(tenant, name))
	})
}

// SaveCollection stores collection metadata
func (s *Store) SaveCollection(ctx context.Context, collection core.Collection) error {
	return s.backend.Update(func(tx Tx) error {
		return putJSON(tx, collectionsBucket, collection.ID.String(), collection)
	})
}

// LoadCollection retrieves collection metadata by id
func (s *Store) LoadCollection(ctx context.Context, id uuid.UUID) (core.Collection, error) {
	var collection core.Collection
	err := s.backend.View(func(tx Tx) error {
		data, err := tx.Get(collectionsBucket, id.String())
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s", core.ErrCollectionNotFound, id)
		}
		return json.Unmarshal(data, &collection)
	})
	if err != nil {
		return core.Collection{}, err
	}
	return collection, nil
}

// LoadCollections retrieves all collections ordered by creation time
func (s *Store) LoadCollections(ctx context.Context) ([]core.Collection, error) {
	var collections []core.Collection
	err := s.backend.View(func(tx Tx) error {
		return tx.ForEach(collectionsBucket, func(key string, value []byte) error {
			var c core.Collection
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("failed to unmarshal collection %s: %w", key, err)
			}
			collections = append(collections, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(collections, func(i, j int) bool {
		if collections[i].CreatedAt.Equal(collections[j].CreatedAt) {
			return collections[i].Name < collections[j].Name
		}
		return collections[i].CreatedAt.Before(collections[j].CreatedAt)
	})
	return collections, nil
}

// DeleteCollection removes a collection, its records and its index state
func (s *Store) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	return s.backend.Update(func(tx Tx) error {
		data, err := tx.Get(collectionsBucket, id.String())
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s", core.ErrCollectionNotFound, id)
		}
		return deleteCollection(tx, id)
	})
}

func deleteCollection(tx Tx, id uuid.UUID) error {
	if err := tx.DeleteBucket(recordsBucket(id)); err != nil {
		return fmt.Errorf("failed to delete records of %s: %w", id, err)
	}
	if err := tx.Delete(indexStatesBucket, id.String()); err != nil {
		return fmt.Errorf("failed to delete index state of %s: %w", id, err)
	}
	return tx.Delete(collectionsBucket, id.String())
}

// ApplyRecords writes record changes and the collection in one transaction
func (s *Store) ApplyRecords(ctx context.Context, collection core.Collection, puts []core.StoredRecord, deletes []string) error {
	bucket := recordsBucket(collection.ID)
	return s.backend.Update(func(tx Tx) error {
		for _, id := range deletes {
			if err := tx.Delete(bucket, id); err != nil {
				return fmt.Errorf("failed to delete record %s: %w", id, err)
			}
		}
		for _, rec := range puts {
			if err := putJSON(tx, bucket, rec.ID, rec); err != nil {
				return err
			}
		}
		return putJSON(tx, collectionsBucket, collection.ID.String(), collection)
	})
}

// LoadRecords retrieves the records of a collection in insertion order
func (s *Store) LoadRecords(ctx context.Context, id uuid.UUID) ([]core.StoredRecord, error) {
	var records []core.StoredRecord
	err := s.backend.View(func(tx Tx) error {
		return tx.ForEach(recordsBucket(id), func(key string, value []byte) error {
			var rec core.StoredRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", key, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return records, nil
}

// SaveIndexState stores serialized index state
func (s *Store) SaveIndexState(ctx context.Context, id uuid.UUID, data []byte) error {
	return s.backend.Update(func(tx Tx) error {
		return tx.Put(indexStatesBucket, id.String(), data)
	})
}

// LoadIndexState retrieves serialized index state. It returns nil when
// no state has been saved.
func (s *Store) LoadIndexState(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var state []byte
	err := s.backend.View(func(tx Tx) error {
		data, err := tx.Get(indexStatesBucket, id.String())
		if err != nil {
			return err
		}
		if data != nil {
			state = append([]byte(nil), data...)
		}
		return nil
	})
	return state, err
}

// Reset removes all data
func (s *Store) Reset(ctx context.Context) error {
	return s.backend.DropAll()
}

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

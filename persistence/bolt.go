package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltBackend implements Backend using BoltDB. Each bucket name maps to a
// top-level bolt bucket.
type BoltBackend struct {
	db   *bbolt.DB
	path string
}

// NewBoltBackend opens or creates a BoltDB file
func NewBoltBackend(dbPath string, timeout time.Duration) (*BoltBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", dbPath, err)
	}

	return &BoltBackend{db: db, path: dbPath}, nil
}

// View runs fn in a read-only transaction
func (b *BoltBackend) View(fn func(tx Tx) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

// Update runs fn in a read-write transaction
func (b *BoltBackend) Update(fn func(tx Tx) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

// DropAll deletes every top-level bucket
func (b *BoltBackend) DropAll() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to delete bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the database file
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

type boltTx struct {
	tx *bbolt.Tx
}

func (t boltTx) Get(bucket, key string) ([]byte, error) {
	bkt := t.tx.Bucket([]byte(bucket))
	if bkt == nil {
		return nil, nil
	}
	return bkt.Get([]byte(key)), nil
}

func (t boltTx) Put(bucket, key string, value []byte) error {
	bkt, err := t.tx.CreateBucketIfNotExists([]byte(bucket))
	if err != nil {
		return fmt.Errorf("failed to create/get bucket %s: %w", bucket, err)
	}
	return bkt.Put([]byte(key), value)
}

func (t boltTx) Delete(bucket, key string) error {
	bkt := t.tx.Bucket([]byte(bucket))
	if bkt == nil {
		return nil
	}
	return bkt.Delete([]byte(key))
}

func (t boltTx) ForEach(bucket string, fn func(key string, value []byte) error) error {
	bkt := t.tx.Bucket([]byte(bucket))
	if bkt == nil {
		return nil
	}
	return bkt.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

func (t boltTx) DeleteBucket(bucket string) error {
	if t.tx.Bucket([]byte(bucket)) == nil {
		return nil
	}
	return t.tx.DeleteBucket([]byte(bucket))
}

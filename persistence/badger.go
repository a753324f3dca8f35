package persistence

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// bucketSeparator joins bucket and key into one badger key
const bucketSeparator = ":"

// BadgerBackend implements Backend using BadgerDB. Buckets are key prefixes.
type BadgerBackend struct {
	db   *badger.DB
	path string
}

// NewBadgerBackend opens or creates a BadgerDB directory
func NewBadgerBackend(dbPath string, syncWrites bool) (*BadgerBackend, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil
	opts.SyncWrites = syncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dbPath, err)
	}

	return &BadgerBackend{db: db, path: dbPath}, nil
}

func makeBadgerKey(bucket, key string) []byte {
	return []byte(bucket + bucketSeparator + key)
}

func bucketPrefix(bucket string) []byte {
	return []byte(bucket + bucketSeparator)
}

// View runs fn in a read-only transaction
func (b *BadgerBackend) View(fn func(tx Tx) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		return fn(badgerTx{txn: txn})
	})
}

// Update runs fn in a read-write transaction
func (b *BadgerBackend) Update(fn func(tx Tx) error) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return fn(badgerTx{txn: txn})
	})
}

// DropAll removes every key
func (b *BadgerBackend) DropAll() error {
	return b.db.DropAll()
}

// Close closes the database
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

func (t badgerTx) Get(bucket, key string) ([]byte, error) {
	item, err := t.txn.Get(makeBadgerKey(bucket, key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t badgerTx) Put(bucket, key string, value []byte) error {
	return t.txn.Set(makeBadgerKey(bucket, key), value)
}

func (t badgerTx) Delete(bucket, key string) error {
	return t.txn.Delete(makeBadgerKey(bucket, key))
}

func (t badgerTx) ForEach(bucket string, fn func(key string, value []byte) error) error {
	prefix := bucketPrefix(bucket)
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := string(item.Key()[len(prefix):])
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (t badgerTx) DeleteBucket(bucket string) error {
	prefix := bucketPrefix(bucket)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	var keys [][]byte
	it := t.txn.NewIterator(opts)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := t.txn.Delete(key); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	return nil
}

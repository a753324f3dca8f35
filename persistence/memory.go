package persistence

import (
	"sort"
	"sync"
)

// MemoryBackend implements Backend in memory (non-persistent). Writes of an
// Update are staged and only applied when fn succeeds.
type MemoryBackend struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]map[string][]byte)}
}

// View runs fn under a read lock
func (m *MemoryBackend) View(fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTx{backend: m})
}

// Update runs fn under a write lock and commits its staged writes
func (m *MemoryBackend) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{backend: m}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// DropAll removes every bucket
func (m *MemoryBackend) DropAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[string]map[string][]byte)
	return nil
}

// Close is a no-op
func (m *MemoryBackend) Close() error {
	return nil
}

type memoryOp struct {
	bucket       string
	key          string
	value        []byte
	deleteKey    bool
	deleteBucket bool
}

type memoryTx struct {
	backend *MemoryBackend
	ops     []memoryOp
}

// lookup resolves a key against staged writes first
func (t *memoryTx) lookup(bucket, key string) ([]byte, bool) {
	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		if op.bucket != bucket {
			continue
		}
		if op.deleteBucket {
			return nil, false
		}
		if op.key == key {
			if op.deleteKey {
				return nil, false
			}
			return op.value, true
		}
	}
	v, ok := t.backend.buckets[bucket][key]
	return v, ok
}

func (t *memoryTx) Get(bucket, key string) ([]byte, error) {
	v, ok := t.lookup(bucket, key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (t *memoryTx) Put(bucket, key string, value []byte) error {
	t.ops = append(t.ops, memoryOp{bucket: bucket, key: key, value: append([]byte(nil), value...)})
	return nil
}

func (t *memoryTx) Delete(bucket, key string) error {
	t.ops = append(t.ops, memoryOp{bucket: bucket, key: key, deleteKey: true})
	return nil
}

func (t *memoryTx) ForEach(bucket string, fn func(key string, value []byte) error) error {
	keys := make(map[string]struct{})
	for k := range t.backend.buckets[bucket] {
		keys[k] = struct{}{}
	}
	for _, op := range t.ops {
		if op.bucket == bucket && !op.deleteBucket {
			keys[op.key] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		v, ok := t.lookup(bucket, k)
		if !ok {
			continue
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTx) DeleteBucket(bucket string) error {
	t.ops = append(t.ops, memoryOp{bucket: bucket, deleteBucket: true})
	return nil
}

func (t *memoryTx) commit() {
	for _, op := range t.ops {
		switch {
		case op.deleteBucket:
			delete(t.backend.buckets, op.bucket)
		case op.deleteKey:
			delete(t.backend.buckets[op.bucket], op.key)
		default:
			bkt := t.backend.buckets[op.bucket]
			if bkt == nil {
				bkt = make(map[string][]byte)
				t.backend.buckets[op.bucket] = bkt
			}
			bkt[op.key] = op.value
		}
	}
}

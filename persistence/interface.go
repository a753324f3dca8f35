package persistence

// Backend is a transactional key/value store organised in buckets
type Backend interface {
	View(fn func(tx Tx) error) error
	Update(fn func(tx Tx) error) error
	// DropAll removes every bucket
	DropAll() error
	Close() error
}

// Tx is a transaction over a Backend. Values returned by Get and passed to
// ForEach are only valid until the transaction ends.
type Tx interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	ForEach(bucket string, fn func(key string, value []byte) error) error
	DeleteBucket(bucket string) error
}

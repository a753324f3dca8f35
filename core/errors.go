package core

import "errors"

// Engine errors
var (
	ErrTenantExists       = errors.New("tenant already exists")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrDatabaseExists     = errors.New("database already exists")
	ErrDatabaseNotFound   = errors.New("database not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrInvalidEmbedding   = errors.New("invalid embedding")
	ErrInvalidSpace       = errors.New("invalid distance space")
	ErrResetDisabled      = errors.New("reset is disabled by config")
	ErrEngineClosed       = errors.New("engine is closed")
)

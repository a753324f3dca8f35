package persistence

import (
	"fmt"
	"time"
)

// PersistenceType represents the type of persistence backend
type PersistenceType string

const (
	PersistenceMemory PersistenceType = "memory"
	PersistenceBolt   PersistenceType = "bolt"
	PersistenceBadger PersistenceType = "badger"
)

// File layout inside the storage directory
const (
	BoltFileName = "embedbridge.db"
	BadgerDir    = "badger"
	WALDir       = "wal"
)

// PersistenceConfig holds configuration for persistence layers
type PersistenceConfig struct {
	// Type of persistence backend
	Type PersistenceType `json:"type" yaml:"type"`

	// Path is the storage directory
	Path string `json:"path" yaml:"path"`

	// WAL enables write-ahead logging when set. Path defaults to <Path>/wal.
	WAL *WALConfig `json:"wal,omitempty" yaml:"wal,omitempty"`

	// BoltTimeout bounds how long opening the bolt file may wait for its lock
	BoltTimeout time.Duration `json:"bolt_timeout" yaml:"bolt_timeout"`

	// SyncWrites makes badger sync every write
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`
}

// DefaultPersistenceConfig returns a default configuration for the specified type
func DefaultPersistenceConfig(persistenceType PersistenceType, path string) PersistenceConfig {
	config := PersistenceConfig{
		Type:        persistenceType,
		Path:        path,
		BoltTimeout: time.Second,
	}
	if persistenceType != PersistenceMemory {
		config.WAL = &WALConfig{MaxSize: DefaultWALMaxSize}
	}
	return config
}

// ValidateConfig validates a persistence configuration
func ValidateConfig(config PersistenceConfig) error {
	switch config.Type {
	case PersistenceMemory:
		return nil
	case PersistenceBolt, PersistenceBadger:
		if config.Path == "" {
			return fmt.Errorf("path is required for %s persistence", config.Type)
		}
		if config.WAL != nil && config.WAL.MaxSize < 0 {
			return fmt.Errorf("WAL max size must be non-negative, got %d", config.WAL.MaxSize)
		}
		return nil
	default:
		return fmt.Errorf("unsupported persistence type: %s", config.Type)
	}
}

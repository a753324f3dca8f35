package persistence

import (
	"fmt"
	"path/filepath"

	"github.com/dshills/embedbridge/core"
	"go.uber.org/zap"
)

// DefaultFactory creates persistence instances from configuration
type DefaultFactory struct {
	logger *zap.Logger
}

// NewDefaultFactory creates a new default persistence factory
func NewDefaultFactory(logger *zap.Logger) *DefaultFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultFactory{logger: logger}
}

// CreatePersistence creates a persistence instance based on configuration
func (f *DefaultFactory) CreatePersistence(config PersistenceConfig) (core.Persistence, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid persistence configuration: %w", err)
	}

	var backend Backend
	var err error

	switch config.Type {
	case PersistenceMemory:
		backend = NewMemoryBackend()

	case PersistenceBolt:
		backend, err = NewBoltBackend(filepath.Join(config.Path, BoltFileName), config.BoltTimeout)
		if err != nil {
			return nil, err
		}

	case PersistenceBadger:
		backend, err = NewBadgerBackend(filepath.Join(config.Path, BadgerDir), config.SyncWrites)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", config.Type)
	}

	store := NewStore(backend)
	if config.WAL == nil || config.Type == PersistenceMemory {
		return store, nil
	}

	walConfig := *config.WAL
	if walConfig.Path == "" {
		walConfig.Path = filepath.Join(config.Path, WALDir)
	}
	walPersistence, err := NewWALPersistence(store, walConfig, f.logger.Named("wal"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create WAL persistence: %w", err)
	}
	return walPersistence, nil
}

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/embedbridge/core"
	"go.uber.org/zap"
)

// walRecords is the payload of a WALOpApplyRecords entry
type walRecords struct {
	Dimension *int                `json:"dimension,omitempty"`
	Puts      []core.StoredRecord `json:"puts,omitempty"`
	Deletes   []string            `json:"deletes,omitempty"`
}

// WALPersistence wraps a persistence backend with Write-Ahead Logging of
// record writes. Catalog writes go straight to the underlying store.
type WALPersistence struct {
	core.Persistence
	wal    *WAL
	logger *zap.Logger
}

// NewWALPersistence creates a WAL-enabled persistence wrapper and replays
// entries that were logged but not applied.
func NewWALPersistence(underlying core.Persistence, walConfig WALConfig, logger *zap.Logger) (*WALPersistence, error) {
	wal, err := NewWAL(walConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	w := &WALPersistence{
		Persistence: underlying,
		wal:         wal,
		logger:      logger,
	}

	replayed, err := w.RecoverFromWAL(context.Background())
	if err != nil {
		wal.Close()
		return nil, fmt.Errorf("WAL recovery failed: %w", err)
	}
	if replayed > 0 {
		logger.Info("replayed write-ahead log",
			zap.Int("entries", replayed),
			zap.String("wal_path", wal.path))
	}

	return w, nil
}

// ApplyRecords logs the record changes and then applies them
func (w *WALPersistence) ApplyRecords(ctx context.Context, collection core.Collection, puts []core.StoredRecord, deletes []string) error {
	data, err := json.Marshal(walRecords{
		Dimension: collection.Dimension,
		Puts:      puts,
		Deletes:   deletes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal records for WAL: %w", err)
	}

	if _, err := w.wal.WriteEntry(ctx, WALOpApplyRecords, collection.ID, collection.LogPosition, data); err != nil {
		return fmt.Errorf("failed to write to WAL: %w", err)
	}

	if err := w.Persistence.ApplyRecords(ctx, collection, puts, deletes); err != nil {
		return fmt.Errorf("failed to apply records to persistence: %w", err)
	}

	if w.wal.NeedsCheckpoint() {
		if err := w.wal.Truncate(ctx); err != nil {
			return fmt.Errorf("failed to checkpoint WAL: %w", err)
		}
	}
	return nil
}

// RecoverFromWAL applies the entries whose log position is past the stored
// log position of their collection, then truncates the WAL. It returns the
// number of entries applied.
func (w *WALPersistence) RecoverFromWAL(ctx context.Context) (int, error) {
	entries, err := w.wal.ReadEntries(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to read WAL entries: %w", err)
	}

	applied := 0
	for _, entry := range entries {
		ok, err := w.applyWALEntry(ctx, entry)
		if err != nil {
			return applied, fmt.Errorf("failed to apply WAL entry %d: %w", entry.ID, err)
		}
		if ok {
			applied++
		}
	}

	if len(entries) > 0 {
		if err := w.wal.Truncate(ctx); err != nil {
			return applied, fmt.Errorf("failed to truncate WAL: %w", err)
		}
	}
	return applied, nil
}

func (w *WALPersistence) applyWALEntry(ctx context.Context, entry WALEntry) (bool, error) {
	switch entry.Operation {
	case WALOpApplyRecords:
		collection, err := w.Persistence.LoadCollection(ctx, entry.Collection)
		if errors.Is(err, core.ErrCollectionNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if entry.LogPosition <= collection.LogPosition {
			return false, nil
		}

		var payload walRecords
		if err := json.Unmarshal(entry.Data, &payload); err != nil {
			return false, fmt.Errorf("failed to unmarshal records: %w", err)
		}
		collection.LogPosition = entry.LogPosition
		if collection.Dimension == nil {
			collection.Dimension = payload.Dimension
		}
		return true, w.Persistence.ApplyRecords(ctx, collection, payload.Puts, payload.Deletes)

	default:
		return false, fmt.Errorf("unknown WAL operation: %s", entry.Operation)
	}
}

// Reset discards the WAL and all stored data
func (w *WALPersistence) Reset(ctx context.Context) error {
	if err := w.wal.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	return w.Persistence.Reset(ctx)
}

// Close syncs and closes the WAL, then the underlying persistence
func (w *WALPersistence) Close() error {
	var errs []error

	if err := w.wal.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("WAL sync error: %w", err))
	}
	if err := w.wal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("WAL close error: %w", err))
	}
	if err := w.Persistence.Close(); err != nil {
		errs = append(errs, fmt.Errorf("underlying persistence close error: %w", err))
	}
	return errors.Join(errs...)
}

// WALStats describes the write-ahead log of a persistence instance
type WALStats struct {
	LastID    int64
	SizeBytes int64
}

// WALStats returns the current WAL statistics
func (w *WALPersistence) WALStats() WALStats {
	return WALStats{
		LastID:    w.wal.LastID(),
		SizeBytes: w.wal.Size(),
	}
}

// ReportWAL returns the WAL statistics of p. ok is false when p does not
// log writes ahead.
func ReportWAL(p core.Persistence) (stats WALStats, ok bool) {
	if shared, isShared := p.(*SharedPersistence); isShared {
		p = shared.Persistence
	}
	w, ok := p.(*WALPersistence)
	if !ok {
		return WALStats{}, false
	}
	return w.WALStats(), true
}

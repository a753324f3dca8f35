// Package engine implements the embedded vector engine driven by the
// binding: a system catalog of tenants, databases and collections, record
// writes through the persistence layer, and exact search over cached
// segments.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/index"
	"github.com/dshills/embedbridge/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config configures a Frontend
type Config struct {
	AllowReset bool
	// CacheCapacity is the number of segments kept in memory
	CacheCapacity int
	// Compression is used for segment snapshots
	Compression index.Compression
	// QueryParallelism bounds concurrent searches of one query call
	QueryParallelism int
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		CacheCapacity:    index.DefaultCacheCapacity,
		Compression:      index.CompressionZstd,
		QueryParallelism: 4,
	}
}

// Frontend is the engine entry point. It is safe for concurrent use;
// writers serialize through the persistence lock.
type Frontend struct {
	persistence core.Persistence
	segments    *index.SegmentCache
	config      Config
	logger      *zap.Logger
	closed      atomic.Bool
	now         func() time.Time
}

// NewFrontend creates a Frontend over p and bootstraps the default tenant
// and database.
func NewFrontend(ctx context.Context, p core.Persistence, config Config, logger *zap.Logger) (*Frontend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QueryParallelism <= 0 {
		config.QueryParallelism = 1
	}

	f := &Frontend{
		persistence: p,
		segments:    index.NewSegmentCache(config.CacheCapacity),
		config:      config,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}

	p.Lock()
	err := f.bootstrapLocked(ctx)
	p.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap engine: %w", err)
	}
	return f, nil
}

// bootstrapLocked creates the default tenant and database if absent
func (f *Frontend) bootstrapLocked(ctx context.Context) error {
	_, err := f.persistence.LoadTenant(ctx, core.DefaultTenant)
	if errors.Is(err, core.ErrTenantNotFound) {
		if err := f.persistence.SaveTenant(ctx, core.Tenant{Name: core.DefaultTenant}); err != nil {
			return err
		}
		f.logger.Info("created default tenant", zap.String("tenant", core.DefaultTenant))
	} else if err != nil {
		return err
	}

	_, err = f.findDatabase(ctx, core.DefaultTenant, core.DefaultDatabase)
	if errors.Is(err, core.ErrDatabaseNotFound) {
		db := core.Database{
			ID:        uuid.New(),
			Name:      core.DefaultDatabase,
			Tenant:    core.DefaultTenant,
			CreatedAt: f.now(),
		}
		if err := f.persistence.SaveDatabase(ctx, db); err != nil {
			return err
		}
		f.logger.Info("created default database", zap.String("database", core.DefaultDatabase))
		return nil
	}
	return err
}

func (f *Frontend) checkOpen() error {
	if f.closed.Load() {
		return core.ErrEngineClosed
	}
	return nil
}

// Heartbeat returns the current time in Unix nanoseconds
func (f *Frontend) Heartbeat(ctx context.Context) (int64, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	return time.Now().UnixNano(), nil
}

// Reset wipes all data and re-creates the defaults. It fails unless the
// engine was configured with AllowReset.
func (f *Frontend) Reset(ctx context.Context) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if !f.config.AllowReset {
		return core.ErrResetDisabled
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	f.segments.Purge()
	if err := f.persistence.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset persistence: %w", err)
	}
	f.logger.Info("engine reset")
	return f.bootstrapLocked(ctx)
}

// Close snapshots cached segments and closes persistence
func (f *Frontend) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx := context.Background()
	for _, seg := range f.segments.Purge() {
		f.saveSnapshot(ctx, seg)
	}
	return f.persistence.Close()
}

// WALStats returns the write-ahead log statistics of the persistence
// layer. ok is false when writes are not logged ahead.
func (f *Frontend) WALStats() (persistence.WALStats, bool) {
	return persistence.ReportWAL(f.persistence)
}

// CacheStats returns segment cache statistics
func (f *Frontend) CacheStats() index.CacheStats {
	return f.segments.Stats()
}

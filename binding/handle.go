// Package binding exposes the engine to a synchronous foreign host through
// reference-counted handles. Every call decodes its text parameters,
// builds a validated request, runs it on the handle's runtime under the
// handle lock and encodes the result as JSON.
package binding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/embedbridge/bridge"
	"github.com/dshills/embedbridge/config"
	"github.com/dshills/embedbridge/logging"
	"github.com/dshills/embedbridge/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Version is reported by the version call
const Version = "1.0.0"

type options struct {
	config   *config.Config
	logger   *zap.Logger
	factory  EngineFactory
	registry *persistence.Registry
}

// Option configures Initialize
type Option func(*options)

// WithConfig uses config instead of loading it from the environment
func WithConfig(c *config.Config) Option {
	return func(o *options) { o.config = c }
}

// WithLogger sets the logger of the handle and its engine
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEngineFactory replaces the engine constructor
func WithEngineFactory(factory EngineFactory) Option {
	return func(o *options) { o.factory = factory }
}

// WithRegistry opens persistence through registry instead of the
// process-wide one
func WithRegistry(registry *persistence.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// Handle owns one engine instance, the runtime it runs on and the lock
// that serializes calls against it
type Handle struct {
	// mu is held from request submission until the result is back
	mu       sync.Mutex
	poisoned atomic.Bool
	closed   atomic.Bool

	refMu sync.Mutex
	refs  int

	engine       Engine
	runtime      *bridge.Runtime
	maxBatchSize int
	storagePath  string
	logger       *zap.Logger
	ownsLogger   bool
	metrics      *metrics
}

// Initialize creates a handle. The storage directory is created if absent;
// a nil or empty storagePath uses the configured path. Either a usable
// handle or an init error is returned.
func Initialize(allowReset bool, storagePath *string, opts ...Option) (*Handle, error) {
	o := options{
		factory:  NewFrontendEngine,
		registry: persistence.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if cfg == nil {
		loaded, err := config.FromEnv()
		if err != nil {
			return nil, initError(err)
		}
		cfg = loaded
	} else {
		copied := *cfg
		cfg = &copied
	}
	if storagePath != nil && *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, initError(err)
	}

	logger := o.logger
	ownsLogger := logger == nil
	if ownsLogger {
		built, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, initError(err)
		}
		logger = built
	}

	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, initError(fmt.Errorf("failed to create storage directory %s: %w", cfg.Storage.Path, err))
	}

	rt := bridge.NewRuntime(cfg.Runtime.Workers, logger.Named("runtime"))
	eng, err := bridge.Execute(context.Background(), rt, func(ctx context.Context) (Engine, error) {
		p, err := o.registry.Acquire(cfg.PersistenceConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open persistence: %w", err)
		}
		eng, err := o.factory(ctx, p, cfg.EngineConfig(allowReset), logger.Named("engine"))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		return eng, nil
	})
	if err != nil {
		rt.Close()
		return nil, initError(err)
	}

	h := &Handle{
		refs:         1,
		engine:       eng,
		runtime:      rt,
		maxBatchSize: cfg.Engine.MaxBatchSize,
		storagePath:  cfg.Storage.Path,
		logger:       logger,
		ownsLogger:   ownsLogger,
		metrics:      newMetrics(),
	}
	h.metrics.watchCache(eng)
	h.metrics.watchWAL(eng)
	logger.Info("engine handle initialized",
		zap.String("path", cfg.Storage.Path),
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("allow_reset", allowReset),
		zap.Int("workers", rt.Workers()))
	return h, nil
}

func initError(err error) error {
	return &Error{Kind: KindInit, Op: "initialize", Err: err}
}

// StoragePath returns the storage directory of the handle
func (h *Handle) StoragePath() string {
	return h.storagePath
}

// Registry returns the metrics registry of the handle
func (h *Handle) Registry() *prometheus.Registry {
	return h.metrics.registry
}

// Retain adds a host reference
func (h *Handle) Retain() error {
	h.refMu.Lock()
	defer h.refMu.Unlock()
	if h.refs == 0 {
		return &Error{Kind: KindUnavailable, Op: "retain", Err: ErrHandleClosed}
	}
	h.refs++
	return nil
}

// Release drops a host reference. The last release tears the handle down:
// in-flight calls finish, then the engine and the runtime are stopped.
func (h *Handle) Release() error {
	h.refMu.Lock()
	if h.refs == 0 {
		h.refMu.Unlock()
		return &Error{Kind: KindUnavailable, Op: "release", Err: ErrHandleClosed}
	}
	h.refs--
	last := h.refs == 0
	h.refMu.Unlock()

	if !last {
		return nil
	}
	return h.teardown()
}

// Refs returns the number of live host references. Zero means the handle
// has been torn down.
func (h *Handle) Refs() int {
	h.refMu.Lock()
	defer h.refMu.Unlock()
	return h.refs
}

// Close releases the reference returned by Initialize
func (h *Handle) Close() error {
	return h.Release()
}

func (h *Handle) teardown() error {
	h.closed.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := bridge.Execute(context.Background(), h.runtime, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.engine.Close()
	})
	h.runtime.Close()

	if err != nil {
		h.logger.Warn("engine close failed", zap.String("path", h.storagePath), zap.Error(err))
	} else {
		h.logger.Info("engine handle released", zap.String("path", h.storagePath))
	}
	if h.ownsLogger {
		// stderr rejects fsync on most platforms
		_ = h.logger.Sync()
	}

	if err != nil {
		return &Error{Kind: KindEngine, Op: "release", Err: err}
	}
	return nil
}

// call runs fn against the engine under the handle lock. A panic inside
// fn poisons the handle.
func call[T any](ctx context.Context, h *Handle, op string, fn func(context.Context, Engine) (T, error)) (T, error) {
	start := time.Now()

	result, err := locked(ctx, h, op, start, fn)
	if err != nil {
		var zero T
		return zero, h.fail(op, start, err)
	}
	h.metrics.observe(op, outcomeOK, time.Since(start).Seconds())
	return result, nil
}

// locked holds h.mu for the engine round trip. A panic escaping the
// bridge poisons the handle before the lock is released.
func locked[T any](ctx context.Context, h *Handle, op string, start time.Time, fn func(context.Context, Engine) (T, error)) (result T, err error) {
	if err := h.available(); err != nil {
		return result, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics.lockWait.Observe(time.Since(start).Seconds())

	defer func() {
		if p := recover(); p != nil {
			h.poison(op, p)
			panic(p)
		}
	}()

	if err := h.available(); err != nil {
		return result, err
	}

	result, err = bridge.Execute(ctx, h.runtime, func(ctx context.Context) (T, error) {
		return fn(ctx, h.engine)
	})
	var perr *bridge.PanicError
	if errors.As(err, &perr) {
		h.poison(op, perr.Value)
	}
	return result, err
}

func (h *Handle) available() error {
	if h.closed.Load() {
		return ErrHandleClosed
	}
	if h.poisoned.Load() {
		return ErrPoisoned
	}
	return nil
}

func (h *Handle) poison(op string, value any) {
	h.poisoned.Store(true)
	h.logger.Error("engine handle poisoned",
		zap.String("op", op),
		zap.Any("panic", value),
		zap.String("path", h.storagePath))
}

// fail wraps err for the host, records it and logs it
func (h *Handle) fail(op string, start time.Time, err error) error {
	berr := newError(op, err)
	h.metrics.observe(op, string(berr.Kind), time.Since(start).Seconds())

	switch berr.Kind {
	case KindEngine:
		h.logger.Warn("call failed", zap.String("op", op), zap.Error(err))
	case KindUnavailable:
		h.logger.Warn("call on unavailable handle", zap.String("op", op), zap.Error(err))
	default:
		h.logger.Debug("call rejected", zap.String("op", op), zap.String("kind", string(berr.Kind)), zap.Error(err))
	}
	return berr
}

// MaxBatchSize returns the largest batch add, update and upsert accept
func (h *Handle) MaxBatchSize(ctx context.Context) (int, error) {
	return call(ctx, h, "max_batch_size", func(ctx context.Context, _ Engine) (int, error) {
		return h.maxBatchSize, nil
	})
}

// Heartbeat returns the current time in Unix nanoseconds
func Heartbeat() int64 {
	return time.Now().UnixNano()
}

package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WALOperationType represents the type of operation in the WAL
type WALOperationType string

const (
	// WALOpApplyRecords carries the resolved puts and deletes of one write
	WALOpApplyRecords WALOperationType = "apply_records"
)

// WALEntry represents a single entry in the Write-Ahead Log
type WALEntry struct {
	ID          int64            `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Operation   WALOperationType `json:"operation"`
	Collection  uuid.UUID        `json:"collection"`
	LogPosition int64            `json:"log_position"`
	Data        []byte           `json:"data,omitempty"`
	Checksum    uint32           `json:"checksum"`
}

// WAL implements Write-Ahead Logging as one JSON entry per line
type WAL struct {
	mu       sync.RWMutex
	file     *os.File
	writer   *bufio.Writer
	path     string
	nextID   int64
	size     int64
	maxSize  int64
	syncMode bool
}

// WALConfig contains configuration for the WAL
type WALConfig struct {
	Path     string `yaml:"path"`     // Directory to store the WAL file
	MaxSize  int64  `yaml:"max_size"` // Size that triggers a checkpoint (default: 64MB)
	SyncMode bool   `yaml:"sync"`     // Sync after each write
}

// DefaultWALMaxSize is used when WALConfig.MaxSize is zero
const DefaultWALMaxSize = 64 << 20

// NewWAL opens or creates the WAL file in config.Path
func NewWAL(config WALConfig) (*WAL, error) {
	if config.MaxSize == 0 {
		config.MaxSize = DefaultWALMaxSize
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	walPath := filepath.Join(config.Path, "wal.log")
	file, err := os.OpenFile(walPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat WAL file: %w", err)
	}

	wal := &WAL{
		file:     file,
		writer:   bufio.NewWriter(file),
		path:     walPath,
		nextID:   1,
		size:     stat.Size(),
		maxSize:  config.MaxSize,
		syncMode: config.SyncMode,
	}

	if err := wal.terminateTornLine(); err != nil {
		file.Close()
		return nil, err
	}

	entries, err := wal.readEntriesFromFile(0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to load existing WAL entries: %w", err)
	}
	if n := len(entries); n > 0 {
		wal.nextID = entries[n-1].ID + 1
	}

	return wal, nil
}

// terminateTornLine appends a newline when the file ends in a partial
// entry so that the next entry starts on its own line.
func (w *WAL) terminateTornLine() error {
	if w.size == 0 {
		return nil
	}
	f, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("failed to open WAL file: %w", err)
	}
	defer f.Close()

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, w.size-1); err != nil {
		return fmt.Errorf("failed to read WAL tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := w.file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to terminate WAL tail: %w", err)
	}
	w.size++
	return nil
}

// WriteEntry appends an entry and flushes it
func (w *WAL) WriteEntry(ctx context.Context, operation WALOperationType, collection uuid.UUID, logPosition int64, data []byte) (WALEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := WALEntry{
		ID:          w.nextID,
		Timestamp:   time.Now().UTC(),
		Operation:   operation,
		Collection:  collection,
		LogPosition: logPosition,
		Data:        data,
		Checksum:    crc32.ChecksumIEEE(data),
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return WALEntry{}, fmt.Errorf("failed to marshal WAL entry: %w", err)
	}
	entryData = append(entryData, '\n')

	if _, err := w.writer.Write(entryData); err != nil {
		return WALEntry{}, fmt.Errorf("failed to write WAL entry: %w", err)
	}

	if err := w.writer.Flush(); err != nil {
		return WALEntry{}, fmt.Errorf("failed to flush WAL buffer: %w", err)
	}

	if w.syncMode {
		if err := w.file.Sync(); err != nil {
			return WALEntry{}, fmt.Errorf("failed to sync WAL to disk: %w", err)
		}
	}

	w.nextID++
	w.size += int64(len(entryData))
	return entry, nil
}

// ReadEntries reads the entries with an ID of at least fromID. Torn or
// corrupted lines are skipped.
func (w *WAL) ReadEntries(ctx context.Context, fromID int64) ([]WALEntry, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.readEntriesFromFile(fromID)
}

func (w *WAL) readEntriesFromFile(fromID int64) ([]WALEntry, error) {
	file, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []WALEntry
	reader := bufio.NewReader(file)

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 1 {
			var entry WALEntry
			if err := json.Unmarshal(line, &entry); err == nil &&
				crc32.ChecksumIEEE(entry.Data) == entry.Checksum && entry.ID >= fromID {
				entries = append(entries, entry)
			}
		}
		if readErr == io.EOF {
			return entries, nil
		}
		if readErr != nil {
			return nil, readErr
		}
	}
}

// NeedsCheckpoint reports whether the WAL has grown past its maximum size
func (w *WAL) NeedsCheckpoint() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size >= w.maxSize
}

// Truncate discards every entry. Callers must have applied all of them.
func (w *WAL) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL buffer: %w", err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	w.size = 0
	return w.file.Sync()
}

// Size returns the current size of the WAL file in bytes
func (w *WAL) Size() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// LastID returns the ID of the last written entry
func (w *WAL) LastID() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nextID - 1
}

// Close closes the WAL and ensures all data is flushed
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		w.writer.Flush()
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Sync forces a sync of the WAL to disk
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

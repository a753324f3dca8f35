// Package host is the foreign-call boundary. Handles are exposed to the
// host as opaque integer ids and every operation is invoked by name with a
// JSON argument object.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/embedbridge/binding"
)

// ErrUnknownHandle is returned for ids that were never issued or whose
// handle has been released
var ErrUnknownHandle = errors.New("unknown engine handle")

// Table maps host ids to handles. Ids are never reused.
type Table struct {
	mu      sync.RWMutex
	next    uint64
	handles map[uint64]*binding.Handle
	opts    []binding.Option
}

// NewTable creates a table. opts are passed to every Initialize.
func NewTable(opts ...binding.Option) *Table {
	return &Table{
		handles: make(map[uint64]*binding.Handle),
		opts:    opts,
	}
}

// Open initializes a handle and returns its id
func (t *Table) Open(allowReset bool, storagePath *string, opts ...binding.Option) (uint64, error) {
	all := append(append([]binding.Option{}, t.opts...), opts...)
	h, err := binding.Initialize(allowReset, storagePath, all...)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.handles[t.next] = h
	return t.next, nil
}

// Get returns the handle for id
func (t *Table) Get(id uint64) (*binding.Handle, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handles[id]
	if !ok {
		return nil, unknown(id)
	}
	return h, nil
}

// Retain adds a reference to the handle for id
func (t *Table) Retain(id uint64) error {
	h, err := t.Get(id)
	if err != nil {
		return err
	}
	return h.Retain()
}

// Release drops a reference. The id is forgotten once the handle is torn
// down.
func (t *Table) Release(id uint64) error {
	h, err := t.Get(id)
	if err != nil {
		return err
	}
	err = h.Release()
	if h.Refs() == 0 {
		t.mu.Lock()
		delete(t.handles, id)
		t.mu.Unlock()
	}
	return err
}

// Len returns the number of live handles
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

// CloseAll tears down every handle regardless of outstanding references
func (t *Table) CloseAll() error {
	t.mu.Lock()
	handles := t.handles
	t.handles = make(map[uint64]*binding.Handle)
	t.mu.Unlock()

	var errs []error
	for id, h := range handles {
		for h.Refs() > 0 {
			if err := h.Release(); err != nil {
				errs = append(errs, fmt.Errorf("handle %d: %w", id, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func unknown(id uint64) error {
	return &binding.Error{Kind: binding.KindUnavailable, Op: "lookup", Err: fmt.Errorf("%w: %d", ErrUnknownHandle, id)}
}

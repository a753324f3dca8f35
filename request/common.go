package request

import (
	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
)

// DefaultMaxBatchSize is the largest record batch a single call may carry
const DefaultMaxBatchSize = 40000

// Scope identifies the tenant and database a record call is made against.
// Empty fields are not checked against the collection.
type Scope struct {
	Tenant   string
	Database string
}

func requireTenant(tenant string) error {
	if tenant == "" {
		return invalid("tenant name cannot be empty")
	}
	return nil
}

func requireName(kind, name string) error {
	if name == "" {
		return invalid("%s name cannot be empty", kind)
	}
	return nil
}

func validName(kind, name string) error {
	if err := core.ValidateName(kind, name); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func requireCollectionID(id uuid.UUID) error {
	if id == uuid.Nil {
		return invalid("collection id cannot be nil")
	}
	return nil
}

// window converts optional limit and offset values
func window(limit, offset *int) (*int, int, error) {
	if limit != nil && *limit < 0 {
		return nil, 0, invalid("limit must be non-negative, got %d", *limit)
	}
	start := 0
	if offset != nil {
		if *offset < 0 {
			return nil, 0, invalid("offset must be non-negative, got %d", *offset)
		}
		start = *offset
	}
	return limit, start, nil
}

// uniqueIDs checks that ids are non-empty and unique
func uniqueIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return invalid("ids[%d] cannot be empty", i)
		}
		if _, dup := seen[id]; dup {
			return invalid("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// selectionIDs validates an optional id selection. A nil list selects
// everything; an explicit empty list is rejected.
func selectionIDs(ids []string) error {
	if ids == nil {
		return nil
	}
	if len(ids) == 0 {
		return invalid("ids, if given, cannot be empty")
	}
	return uniqueIDs(ids)
}

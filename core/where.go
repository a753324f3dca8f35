package core

import "strings"

// Where is a filter over records. Implementations are Composite,
// MetadataExpression and DocumentExpression.
type Where interface {
	// Matches reports whether the record satisfies the filter
	Matches(r *Record) bool
}

// LogicalOp joins the children of a Composite
type LogicalOp string

const (
	OpAnd LogicalOp = "$and"
	OpOr  LogicalOp = "$or"
)

// ComparisonOp is a metadata comparison
type ComparisonOp string

const (
	OpEq  ComparisonOp = "$eq"
	OpNe  ComparisonOp = "$ne"
	OpGt  ComparisonOp = "$gt"
	OpGte ComparisonOp = "$gte"
	OpLt  ComparisonOp = "$lt"
	OpLte ComparisonOp = "$lte"
	OpIn  ComparisonOp = "$in"
	OpNin ComparisonOp = "$nin"
)

// DocumentOp is a document text comparison
type DocumentOp string

const (
	OpContains    DocumentOp = "$contains"
	OpNotContains DocumentOp = "$not_contains"
)

// Composite combines child filters with $and or $or
type Composite struct {
	Op       LogicalOp
	Children []Where
}

// Matches implements Where
func (c *Composite) Matches(r *Record) bool {
	if c.Op == OpOr {
		for _, child := range c.Children {
			if child.Matches(r) {
				return true
			}
		}
		return false
	}
	for _, child := range c.Children {
		if !child.Matches(r) {
			return false
		}
	}
	return true
}

// MetadataExpression compares one metadata key. Values is used by $in
// and $nin, Value by every other operator.
type MetadataExpression struct {
	Key    string
	Op     ComparisonOp
	Value  MetadataValue
	Values []MetadataValue
}

// Matches implements Where. Negated operators match records that do not
// carry the key.
func (e *MetadataExpression) Matches(r *Record) bool {
	v, ok := r.Metadata[e.Key]
	switch e.Op {
	case OpEq:
		return ok && v.Equal(e.Value)
	case OpNe:
		return !ok || !v.Equal(e.Value)
	case OpIn:
		return ok && containsValue(e.Values, v)
	case OpNin:
		return !ok || !containsValue(e.Values, v)
	}
	if !ok {
		return false
	}
	cmp, comparable := v.Compare(e.Value)
	if !comparable {
		return false
	}
	switch e.Op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func containsValue(values []MetadataValue, v MetadataValue) bool {
	for _, candidate := range values {
		if candidate.Equal(v) {
			return true
		}
	}
	return false
}

// DocumentExpression matches a substring of the record document
type DocumentExpression struct {
	Op   DocumentOp
	Text string
}

// Matches implements Where
func (e *DocumentExpression) Matches(r *Record) bool {
	found := r.Document != nil && strings.Contains(*r.Document, e.Text)
	if e.Op == OpNotContains {
		return !found
	}
	return found
}

// And joins filters, skipping nil ones. It returns nil when nothing is left.
func And(filters ...Where) Where {
	var kept []Where
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Composite{Op: OpAnd, Children: kept}
}

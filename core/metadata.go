package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNonScalarValue is returned when a metadata value is an object or array.
var ErrNonScalarValue = errors.New("metadata values must be string, integer, float or boolean")

// ValueKind identifies the scalar type held by a MetadataValue
type ValueKind uint8

const (
	// KindNull only appears in UpdateMetadata, where it deletes the key.
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

// String returns the JSON type name of the kind
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// MetadataValue is a scalar metadata value.
type MetadataValue struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// NullValue returns the deletion marker used by UpdateMetadata
func NullValue() MetadataValue { return MetadataValue{Kind: KindNull} }

// BoolValue returns a boolean MetadataValue
func BoolValue(b bool) MetadataValue { return MetadataValue{Kind: KindBool, Bool: b} }

// IntValue returns an integer MetadataValue
func IntValue(i int64) MetadataValue { return MetadataValue{Kind: KindInt, Int: i} }

// FloatValue returns a float MetadataValue
func FloatValue(f float64) MetadataValue { return MetadataValue{Kind: KindFloat, Float: f} }

// StringValue returns a string MetadataValue
func StringValue(s string) MetadataValue { return MetadataValue{Kind: KindString, Str: s} }

// IsNumber reports whether the value is an integer or a float
func (v MetadataValue) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func (v MetadataValue) number() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Equal compares two values. Integers and floats compare numerically.
func (v MetadataValue) Equal(o MetadataValue) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.Int == o.Int
		}
		return v.number() == o.number()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	default:
		return false
	}
}

// Compare orders two numeric values. ok is false unless both are numbers.
func (v MetadataValue) Compare(o MetadataValue) (cmp int, ok bool) {
	if !v.IsNumber() || !o.IsNumber() {
		return 0, false
	}
	if v.Kind == KindInt && o.Kind == KindInt {
		switch {
		case v.Int < o.Int:
			return -1, true
		case v.Int > o.Int:
			return 1, true
		}
		return 0, true
	}
	a, b := v.number(), o.number()
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

// MarshalJSON implements json.Marshaler. Floats always carry a decimal
// point so that they decode back as floats.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.Bool), nil
	case KindInt:
		return strconv.AppendInt(nil, v.Int, 10), nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil, fmt.Errorf("unsupported float value %v", v.Float)
		}
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case KindString:
		return json.Marshal(v.Str)
	default:
		return nil, fmt.Errorf("invalid metadata value kind %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ScalarFromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ScalarFromJSON converts a value produced by a json.Decoder with UseNumber
// into a MetadataValue. A JSON null becomes KindNull.
func ScalarFromJSON(raw any) (MetadataValue, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return numberValue(t)
	case float64:
		return FloatValue(t), nil
	default:
		return MetadataValue{}, ErrNonScalarValue
	}
}

func numberValue(n json.Number) (MetadataValue, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return MetadataValue{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return FloatValue(f), nil
}

// Metadata is a full set of scalar annotations.
type Metadata map[string]MetadataValue

// UpdateMetadata is a metadata patch. A KindNull value deletes the key.
type UpdateMetadata map[string]MetadataValue

// Clone returns a copy of the metadata
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge applies an update patch and returns the resulting metadata. The
// receiver is not modified. An empty result is returned as nil.
func (m Metadata) Merge(u UpdateMetadata) Metadata {
	out := m.Clone()
	if out == nil {
		out = make(Metadata, len(u))
	}
	for k, v := range u {
		if v.Kind == KindNull {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ToMetadata converts a patch into full metadata, dropping deletions
func (u UpdateMetadata) ToMetadata() Metadata {
	return Metadata(nil).Merge(u)
}

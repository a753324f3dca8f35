package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/embedbridge/core"
)

const documentField = "#document"

type field struct {
	key   string
	value json.RawMessage
}

// decodeObject splits a JSON object into its fields in document order
func decodeObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var fields []field
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected object key")
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = struct{}{}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, value: value})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeArray(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, errors.New("expected a list")
	}
	return items, nil
}

func filterError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFilter, fmt.Sprintf(format, args...))
}

func blank(text *string) bool {
	return text == nil || strings.TrimSpace(*text) == ""
}

// DecodeWhere decodes a metadata filter. Absent, empty and {} inputs mean
// no filter and return nil.
func DecodeWhere(text *string) (core.Where, error) {
	if blank(text) {
		return nil, nil
	}
	return decodeWhere([]byte(*text))
}

func decodeWhere(data []byte) (core.Where, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, filterError("%v", err)
	}

	children := make([]core.Where, 0, len(fields))
	for _, f := range fields {
		var child core.Where
		switch {
		case f.key == string(core.OpAnd) || f.key == string(core.OpOr):
			child, err = decodeLogical(core.LogicalOp(f.key), f.value, decodeWhere)
		case f.key == documentField:
			child, err = decodeWhereDocument(f.value)
		case strings.HasPrefix(f.key, "$"):
			err = filterError("unknown operator %q", f.key)
		default:
			child, err = decodeFieldExpression(f.key, f.value)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return core.And(children...), nil
}

func decodeLogical(op core.LogicalOp, data json.RawMessage, decodeChild func([]byte) (core.Where, error)) (core.Where, error) {
	items, err := decodeArray(data)
	if err != nil {
		return nil, filterError("%s: %v", op, err)
	}
	if len(items) < 2 {
		return nil, filterError("%s requires at least two expressions, got %d", op, len(items))
	}
	children := make([]core.Where, 0, len(items))
	for _, item := range items {
		child, err := decodeChild(item)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, filterError("%s contains an empty expression", op)
		}
		children = append(children, child)
	}
	return &core.Composite{Op: op, Children: children}, nil
}

func decodeFieldExpression(key string, data json.RawMessage) (core.Where, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		value, err := decodeFilterScalar(key, data)
		if err != nil {
			return nil, err
		}
		return &core.MetadataExpression{Key: key, Op: core.OpEq, Value: value}, nil
	}

	fields, err := decodeObject(data)
	if err != nil {
		return nil, filterError("field %q: %v", key, err)
	}
	if len(fields) != 1 {
		return nil, filterError("field %q must have exactly one operator, got %d", key, len(fields))
	}

	op := core.ComparisonOp(fields[0].key)
	switch op {
	case core.OpEq, core.OpNe:
		value, err := decodeFilterScalar(key, fields[0].value)
		if err != nil {
			return nil, err
		}
		return &core.MetadataExpression{Key: key, Op: op, Value: value}, nil
	case core.OpGt, core.OpGte, core.OpLt, core.OpLte:
		value, err := decodeFilterScalar(key, fields[0].value)
		if err != nil {
			return nil, err
		}
		if !value.IsNumber() {
			return nil, filterError("field %q: %s requires a number", key, op)
		}
		return &core.MetadataExpression{Key: key, Op: op, Value: value}, nil
	case core.OpIn, core.OpNin:
		values, err := decodeFilterList(key, op, fields[0].value)
		if err != nil {
			return nil, err
		}
		return &core.MetadataExpression{Key: key, Op: op, Values: values}, nil
	default:
		return nil, filterError("field %q: unknown operator %q", key, fields[0].key)
	}
}

func decodeFilterScalar(key string, data json.RawMessage) (core.MetadataValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return core.MetadataValue{}, filterError("field %q: %v", key, err)
	}
	value, err := core.ScalarFromJSON(raw)
	if err != nil {
		return core.MetadataValue{}, filterError("field %q: %v", key, err)
	}
	if value.Kind == core.KindNull {
		return core.MetadataValue{}, filterError("field %q: null is not a valid filter value", key)
	}
	return value, nil
}

func decodeFilterList(key string, op core.ComparisonOp, data json.RawMessage) ([]core.MetadataValue, error) {
	items, err := decodeArray(data)
	if err != nil {
		return nil, filterError("field %q: %s: %v", key, op, err)
	}
	if len(items) == 0 {
		return nil, filterError("field %q: %s requires a non-empty list", key, op)
	}
	values := make([]core.MetadataValue, len(items))
	for i, item := range items {
		value, err := decodeFilterScalar(key, item)
		if err != nil {
			return nil, err
		}
		if i > 0 && !sameType(values[0], value) {
			return nil, filterError("field %q: %s values must share one type", key, op)
		}
		values[i] = value
	}
	return values, nil
}

func sameType(a, b core.MetadataValue) bool {
	if a.IsNumber() && b.IsNumber() {
		return true
	}
	return a.Kind == b.Kind
}

// DecodeWhereDocument decodes a document text filter built from $contains,
// $not_contains, $and and $or.
func DecodeWhereDocument(text *string) (core.Where, error) {
	if blank(text) {
		return nil, nil
	}
	return decodeWhereDocument([]byte(*text))
}

func decodeWhereDocument(data []byte) (core.Where, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, filterError("document filter: %v", err)
	}
	switch len(fields) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, filterError("document filter must have exactly one operator, got %d", len(fields))
	}

	f := fields[0]
	switch f.key {
	case string(core.OpAnd), string(core.OpOr):
		return decodeLogical(core.LogicalOp(f.key), f.value, decodeWhereDocument)
	case string(core.OpContains), string(core.OpNotContains):
		var text *string
		if err := json.Unmarshal(f.value, &text); err != nil || text == nil {
			return nil, filterError("document filter: %s requires a string", f.key)
		}
		return &core.DocumentExpression{Op: core.DocumentOp(f.key), Text: *text}, nil
	default:
		return nil, filterError("document filter: unknown operator %q", f.key)
	}
}

package codec

import (
	"encoding/json"
	"fmt"
)

// The host passes list arguments as JSON values inside its argument
// object. An absent or null argument decodes to nil.

func decodeArgument(name string, data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedArgument, name, err)
	}
	return nil
}

func absent(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

// DecodeStringList decodes a list of strings. Null entries are rejected.
func DecodeStringList(name string, data json.RawMessage) ([]string, error) {
	if absent(data) {
		return nil, nil
	}
	var items []*string
	if err := decodeArgument(name, data, &items); err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: %s[%d] is null", ErrMalformedArgument, name, i)
		}
		out[i] = *item
	}
	return out, nil
}

// DecodeOptionalStringList decodes a list of strings that may contain nulls
func DecodeOptionalStringList(name string, data json.RawMessage) ([]*string, error) {
	if absent(data) {
		return nil, nil
	}
	var items []*string
	if err := decodeArgument(name, data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []*string{}
	}
	return items, nil
}

// DecodeFloatMatrix decodes a list of float vectors. Null rows are rejected.
func DecodeFloatMatrix(name string, data json.RawMessage) ([][]float32, error) {
	rows, err := DecodeOptionalFloatMatrix(name, data)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("%w: %s[%d] is null", ErrMalformedArgument, name, i)
		}
	}
	return rows, nil
}

// DecodeOptionalFloatMatrix decodes a list of float vectors where rows may
// be null
func DecodeOptionalFloatMatrix(name string, data json.RawMessage) ([][]float32, error) {
	if absent(data) {
		return nil, nil
	}
	var rows [][]float32
	if err := decodeArgument(name, data, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]float32{}
	}
	return rows, nil
}

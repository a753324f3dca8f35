package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/embedbridge/core"
)

// DecodeMetadata decodes a JSON object of scalar values. Keys must be
// unique and non-empty; null values are rejected.
func DecodeMetadata(text string) (core.Metadata, error) {
	values, err := decodeScalarObject(text, false)
	if err != nil {
		return nil, err
	}
	return core.Metadata(values), nil
}

// DecodeUpdateMetadata decodes a metadata patch. A null value marks the key
// for deletion.
func DecodeUpdateMetadata(text string) (core.UpdateMetadata, error) {
	values, err := decodeScalarObject(text, true)
	if err != nil {
		return nil, err
	}
	return core.UpdateMetadata(values), nil
}

// DecodeOptionalMetadata decodes metadata that may be absent
func DecodeOptionalMetadata(text *string) (core.Metadata, error) {
	if text == nil {
		return nil, nil
	}
	return DecodeMetadata(*text)
}

// DecodeOptionalUpdateMetadata decodes a metadata patch that may be absent
func DecodeOptionalUpdateMetadata(text *string) (core.UpdateMetadata, error) {
	if text == nil {
		return nil, nil
	}
	return DecodeUpdateMetadata(*text)
}

// DecodeMetadataList decodes one optional metadata object per record. A nil
// list stays nil; nil entries decode to nil metadata.
func DecodeMetadataList(texts []*string) ([]core.Metadata, error) {
	if texts == nil {
		return nil, nil
	}
	out := make([]core.Metadata, len(texts))
	for i, text := range texts {
		m, err := DecodeOptionalMetadata(text)
		if err != nil {
			return nil, fmt.Errorf("metadatas[%d]: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

// DecodeUpdateMetadataList is DecodeMetadataList for update and upsert
func DecodeUpdateMetadataList(texts []*string) ([]core.UpdateMetadata, error) {
	if texts == nil {
		return nil, nil
	}
	out := make([]core.UpdateMetadata, len(texts))
	for i, text := range texts {
		m, err := DecodeOptionalUpdateMetadata(text)
		if err != nil {
			return nil, fmt.Errorf("metadatas[%d]: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

// decodeScalarObject walks the token stream so duplicate keys are seen
// before encoding/json would silently keep the last one.
func decodeScalarObject(text string, allowNull bool) (map[string]core.MetadataValue, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}

	out := make(map[string]core.MetadataValue)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected object key", ErrMalformedMetadata)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrMalformedMetadata)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrMalformedMetadata, key)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrMalformedMetadata, key, err)
		}
		value, err := core.ScalarFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrMalformedMetadata, key, err)
		}
		if value.Kind == core.KindNull && !allowNull {
			return nil, fmt.Errorf("%w: key %q: null is only allowed in updates", ErrMalformedMetadata, key)
		}
		out[key] = value
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	return out, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q", want)
	}
	return nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

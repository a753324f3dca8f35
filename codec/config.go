package codec

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/embedbridge/core"
)

// DecodeConfiguration decodes a collection configuration such as
// {"hnsw": {"space": "cosine"}}. Unknown fields are ignored.
func DecodeConfiguration(text *string) (*core.CollectionConfiguration, error) {
	if blank(text) {
		return nil, nil
	}
	var config core.CollectionConfiguration
	if err := json.Unmarshal([]byte(*text), &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if config.HNSW != nil && config.HNSW.Space != "" && !config.HNSW.Space.Valid() {
		return nil, fmt.Errorf("%w: unknown space %q", ErrMalformedConfig, config.HNSW.Space)
	}
	return &config, nil
}

// DecodeConfigurationUpdate decodes the hnsw section of an update_collection
// configuration patch. It returns nil when nothing is set.
func DecodeConfigurationUpdate(text *string) (*core.HNSWConfiguration, error) {
	config, err := DecodeConfiguration(text)
	if err != nil || config == nil {
		return nil, err
	}
	return config.HNSW, nil
}

package codec

import (
	"encoding/json"
	"fmt"
)

// Encode renders an engine result as JSON text
func Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return string(data), nil
}

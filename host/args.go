package host

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/embedbridge/codec"
)

// args is the JSON argument object of one call
type args map[string]json.RawMessage

func parseArgs(data []byte) (args, error) {
	if len(data) == 0 {
		return args{}, nil
	}
	var a args
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", codec.ErrMalformedArgument, err)
	}
	if a == nil {
		a = args{}
	}
	return a, nil
}

func (a args) has(name string) bool {
	raw, ok := a[name]
	return ok && string(raw) != "null"
}

func (a args) decode(name string, v any) error {
	if err := json.Unmarshal(a[name], v); err != nil {
		return fmt.Errorf("%w: %s: %v", codec.ErrMalformedArgument, name, err)
	}
	return nil
}

func (a args) required(name string) error {
	if !a.has(name) {
		return fmt.Errorf("%w: %s is required", codec.ErrMalformedArgument, name)
	}
	return nil
}

func (a args) handle() (uint64, error) {
	if err := a.required("handle"); err != nil {
		return 0, err
	}
	var id uint64
	return id, a.decode("handle", &id)
}

func (a args) str(name string) (string, error) {
	if err := a.required(name); err != nil {
		return "", err
	}
	var s string
	return s, a.decode(name, &s)
}

// strOr returns def when name is absent, as for tenant and database
func (a args) strOr(name, def string) (string, error) {
	if !a.has(name) {
		return def, nil
	}
	var s string
	return s, a.decode(name, &s)
}

func (a args) optStr(name string) (*string, error) {
	if !a.has(name) {
		return nil, nil
	}
	var s string
	if err := a.decode(name, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// jsonText accepts a JSON-encoded string or an inline JSON value and
// returns the text for the codec
func (a args) jsonText(name string) (*string, error) {
	if !a.has(name) {
		return nil, nil
	}
	raw := a[name]
	if raw[0] == '"' {
		return a.optStr(name)
	}
	s := string(raw)
	return &s, nil
}

// jsonTextList decodes a list whose entries are JSON-encoded strings,
// inline objects or null
func (a args) jsonTextList(name string) ([]*string, error) {
	if !a.has(name) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := a.decode(name, &items); err != nil {
		return nil, err
	}
	out := make([]*string, len(items))
	for i, item := range items {
		entry := args{name: item}
		text, err := entry.jsonText(name)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		out[i] = text
	}
	return out, nil
}

func (a args) intArg(name string) (int, error) {
	if err := a.required(name); err != nil {
		return 0, err
	}
	var n int
	return n, a.decode(name, &n)
}

func (a args) optInt(name string) (*int, error) {
	if !a.has(name) {
		return nil, nil
	}
	var n int
	if err := a.decode(name, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (a args) boolArg(name string) (bool, error) {
	if !a.has(name) {
		return false, nil
	}
	var b bool
	return b, a.decode(name, &b)
}

package experiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// decode turns a serialized description into a generic tree. Documents
// starting with '{' or '[' are read as JSON with numbers kept exact, then
// as YAML flow style if that fails; anything else is read as YAML.
func decode(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, formatErrorf("empty experiment description")
	}

	var v any
	if trimmed[0] == '{' || trimmed[0] == '[' {
		jsonErr := decodeJSON(trimmed, &v)
		if jsonErr == nil {
			return v, nil
		}
		v = nil
		if err := yaml.Unmarshal(trimmed, &v); err != nil {
			return nil, formatErrorf("decode description: not JSON (%v) nor YAML (%v)", jsonErr, err)
		}
		return normalize(v), nil
	}

	if err := yaml.Unmarshal(trimmed, &v); err != nil {
		return nil, formatErrorf("decode YAML description: %v", err)
	}
	return normalize(v), nil
}

func decodeJSON(data []byte, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after top-level value")
	}
	return nil
}

// decodeReader reads r fully and decodes it.
func decodeReader(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("experiment: read description: %w", err)
	}
	return decode(data)
}

// normalize rewrites YAML's map[any]any nodes into map[string]any so the
// rest of the package only deals with one mapping type.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			x[k] = normalize(child)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, child := range x {
			m[fmt.Sprint(k)] = normalize(child)
		}
		return m
	case []any:
		for i, child := range x {
			x[i] = normalize(child)
		}
		return x
	default:
		return v
	}
}

// asMapping reports whether v is a decoded mapping.
func asMapping(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case map[any]any:
		m, ok := normalize(x).(map[string]any)
		return m, ok
	default:
		return nil, false
	}
}

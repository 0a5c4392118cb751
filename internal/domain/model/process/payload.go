package process

import (
	"encoding/json"
	"fmt"
	"math"
)

// Payload is the open key-value bag carried by a process run.
// Values must be JSON-serialisable.
type Payload map[string]any

// Clone returns a shallow copy. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new payload with the keys of other written over p.
// Keys absent from other are retained.
func (p Payload) Merge(other Payload) Payload {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Has reports whether key is present
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the string stored under key, or def when missing or not a string
func (p Payload) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the bool stored under key, or def
func (p Payload) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Int returns the integer stored under key, or def.
// Accepts the numeric shapes produced by JSON and YAML decoding.
func (p Payload) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// Strings returns the string list stored under key.
// Non-string elements make the whole value invalid.
func (p Payload) Strings(key string) ([]string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is %T, want string", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s is %T, want list of strings", key, raw)
	}
}

// MarshalPayload encodes a payload for storage; nil encodes as {}
func MarshalPayload(p Payload) (string, error) {
	if p == nil {
		p = Payload{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(b), nil
}

// UnmarshalPayload decodes a stored payload; blank input decodes as {}
func UnmarshalPayload(data string) (Payload, error) {
	p := Payload{}
	if data == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

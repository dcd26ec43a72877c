package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Payload is the structured body of a behavior event.
type Payload map[string]any

// MarshalPayload produces byte-stable JSON for a payload: keys sorted, no HTML
// escaping, every string NFC normalized. Two payloads with the same content
// always encode to the same bytes.
func MarshalPayload(p Payload) (string, error) {
	normalized, err := normalizeValue(map[string]any(p))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// UnmarshalPayload decodes a stored payload. An empty string yields an empty payload.
func UnmarshalPayload(s string) (Payload, error) {
	p := Payload{}
	if s == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

// normalizeValue NFC-normalizes strings recursively and rejects types that
// have no stable JSON form.
func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, int, int64, float64:
		return val, nil
	case string:
		return norm.NFC.String(val), nil
	case Day:
		return string(val), nil
	case BehaviorKind:
		return string(val), nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = norm.NFC.String(s)
		}
		return out, nil
	case []Day:
		out := make([]any, len(val))
		for i, d := range val {
			out[i] = string(d)
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case Payload:
		return normalizeValue(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[norm.NFC.String(k)] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", v)
	}
}

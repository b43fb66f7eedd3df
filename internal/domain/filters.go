package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IntentError marks a ValidatedFilters produced by the parse fallback.
const IntentError = "Error"

// ValidatedFilters is the structured answer extracted by the language model.
type ValidatedFilters struct {
	Intent    string       `json:"intent"`
	Filters   FilterValues `json:"validated_filters"`
	Reasoning string       `json:"reasoning"`
}

// FilterValues maps a filter name to an ordered, de-duplicated list of values.
type FilterValues map[string][]string

// UnmarshalJSON accepts an object whose values are strings, scalars, or arrays of scalars.
// A bare scalar becomes a one-element list; nulls and nested objects are dropped.
func (f *FilterValues) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = FilterValues{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("validated_filters: %w", err)
	}

	out := make(FilterValues, len(raw))
	for key, msg := range raw {
		values, err := decodeFilterValues(msg)
		if err != nil {
			return fmt.Errorf("validated_filters[%q]: %w", key, err)
		}
		out[key] = dedupe(values)
	}
	*f = out
	return nil
}

// MarshalJSON always emits an object, never null.
func (f FilterValues) MarshalJSON() ([]byte, error) {
	m := make(map[string][]string, len(f))
	for k, v := range f {
		if v == nil {
			v = []string{}
		}
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal validated_filters: %w", err)
	}
	return b, nil
}

func decodeFilterValues(msg json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := scalarText(item); ok {
				values = append(values, s)
			}
		}
		return values, nil
	case '{':
		return nil, nil
	default:
		if s, ok := scalarText(trimmed); ok {
			return []string{s}, nil
		}
		return nil, nil
	}
}

// scalarText renders a JSON scalar as the string a record payload would contain.
func scalarText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		b, err := strconv.ParseBool(string(trimmed))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	case 'n', '[', '{':
		return "", false
	default:
		return string(trimmed), true
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

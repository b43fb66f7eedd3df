package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FieldSeparator joins the scalar values of one record.
const FieldSeparator = " | "

// ErrInvalidDataset marks a source that cannot be indexed: unreadable, not a JSON array,
// or without a single usable record.
var ErrInvalidDataset = errors.New("invalid dataset")

// ParseRecords reads a JSON array and flattens each element.
// It returns the flattened texts (empty blobs dropped) and the number of array elements read.
func ParseRecords(r io.Reader) ([]string, int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, 0, fmt.Errorf("%w: top-level value is not a JSON array", ErrInvalidDataset)
	}

	var (
		texts []string
		read  int
	)
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, read, fmt.Errorf("%w: record %d: %v", ErrInvalidDataset, read, err)
		}
		read++

		text, err := Flatten(raw)
		if err != nil {
			return nil, read, fmt.Errorf("%w: record %d: %v", ErrInvalidDataset, read-1, err)
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, read, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	return texts, read, nil
}

// Flatten concatenates the scalar field values of a JSON object in source order.
// Strings are trimmed and dropped when empty; numbers keep their JSON text;
// booleans render as true/false; nested objects, arrays and nulls are ignored.
// Anything other than an object flattens to "".
func Flatten(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by caller
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", nil
	}

	var values []string
	for dec.More() {
		// key
		if _, err := dec.Token(); err != nil {
			return "", err //nolint:wrapcheck // wrapped by caller
		}

		tok, err := dec.Token()
		if err != nil {
			return "", err //nolint:wrapcheck // wrapped by caller
		}

		switch v := tok.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				values = append(values, s)
			}
		case json.Number:
			values = append(values, v.String())
		case bool:
			if v {
				values = append(values, "true")
			} else {
				values = append(values, "false")
			}
		case json.Delim:
			if err := skipNested(dec); err != nil {
				return "", err
			}
		}
	}

	return strings.Join(values, FieldSeparator), nil
}

// skipNested consumes tokens until the container just opened is closed.
func skipNested(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err //nolint:wrapcheck // wrapped by caller
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

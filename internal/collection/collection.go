// Package collection reads and writes the JSON documents that hold a whole
// collection of records, such as data/tasks.json.
//
// Other tools write these files too, so both a bare array and an object
// wrapping the array under a single key are accepted on read. Writes always
// use the form the caller asks for.
package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Form int

const (
	// FormArray is a bare JSON array: `[...]`.
	FormArray Form = iota
	// FormWrapped is an object holding the array under a key: `{"tasks": [...]}`.
	FormWrapped
)

func (f Form) String() string {
	if f == FormWrapped {
		return "wrapped"
	}
	return "array"
}

// Decode normalizes a collection document into a slice and reports which form
// it was read from. An empty document is an empty collection.
func Decode[T any](data []byte, key string) ([]T, Form, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, FormArray, nil
	}
	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, FormArray, fmt.Errorf("failed to decode %s array: %w", key, err)
		}
		return items, FormArray, nil
	case '{':
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, FormWrapped, fmt.Errorf("failed to decode %s document: %w", key, err)
		}
		raw, ok := doc[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, FormWrapped, nil
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, FormWrapped, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return items, FormWrapped, nil
	default:
		return nil, FormArray, fmt.Errorf("failed to decode %s: unexpected %q", key, trimmed[0])
	}
}

// Encode renders items in the requested form, indented for humans.
func Encode[T any](items []T, key string, form Form) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	var v any = items
	if form == FormWrapped {
		v = map[string][]T{key: items}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return append(data, '\n'), nil
}

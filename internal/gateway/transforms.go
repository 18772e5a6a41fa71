package gateway

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Transform is a server-side field update evaluated against the stored value.
type Transform interface {
	apply(current any, exists bool) (any, error)
}

type arrayUnion struct{ elems []any }

type arrayRemove struct{ elems []any }

type increment struct{ delta float64 }

// ArrayUnion appends each element not already present in the stored array.
// Elements are compared by value.
func ArrayUnion(elems ...any) Transform {
	return arrayUnion{elems: elems}
}

// ArrayRemove removes every occurrence of each element from the stored array.
func ArrayRemove(elems ...any) Transform {
	return arrayRemove{elems: elems}
}

// Increment adds delta to the stored number, treating a missing field as 0.
func Increment(delta int64) Transform {
	return increment{delta: float64(delta)}
}

func (t arrayUnion) apply(current any, exists bool) (any, error) {
	arr, err := asArray(current, exists)
	if err != nil {
		return nil, err
	}
	for _, e := range t.elems {
		v, err := Normalize(e)
		if err != nil {
			return nil, err
		}
		if !containsValue(arr, v) {
			arr = append(arr, v)
		}
	}
	return arr, nil
}

func (t arrayRemove) apply(current any, exists bool) (any, error) {
	arr, err := asArray(current, exists)
	if err != nil {
		return nil, err
	}
	for _, e := range t.elems {
		v, err := Normalize(e)
		if err != nil {
			return nil, err
		}
		kept := arr[:0]
		for _, item := range arr {
			if !reflect.DeepEqual(item, v) {
				kept = append(kept, item)
			}
		}
		arr = kept
	}
	return arr, nil
}

func (t increment) apply(current any, exists bool) (any, error) {
	if !exists || current == nil {
		return t.delta, nil
	}
	n, ok := current.(float64)
	if !ok {
		return nil, fmt.Errorf("increment: field holds %T, not a number", current)
	}
	return n + t.delta, nil
}

func asArray(current any, exists bool) ([]any, error) {
	if !exists || current == nil {
		return []any{}, nil
	}
	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("array transform: field holds %T, not an array", current)
	}
	out := make([]any, len(arr))
	copy(out, arr)
	return out, nil
}

func containsValue(arr []any, v any) bool {
	for _, item := range arr {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// Normalize converts v into the canonical JSON value space (maps, slices,
// float64, string, bool, nil) so stored values compare by deep equality.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// Encode turns a struct into document data.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// ApplyUpdate returns a copy of data with fields merged in. Plain values
// replace the stored value; Transforms are evaluated against it.
func ApplyUpdate(data map[string]any, fields map[string]any) (map[string]any, error) {
	copied, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	out, _ := copied.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case Transform:
			current, exists := out[k]
			next, err := v.apply(current, exists)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = next
		default:
			nv, err := Normalize(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = nv
		}
	}
	return out, nil
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidFieldName reports whether name can be used as an order-by field.
func ValidFieldName(name string) bool {
	return fieldNamePattern.MatchString(name)
}

// SortDocuments orders docs the way q asks for. Documents missing the
// order field come last; ties are broken by ID.
func SortDocuments(docs []Document, q Query) {
	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			a, aok := docs[i].Data[q.OrderBy]
			b, bok := docs[j].Data[q.OrderBy]
			switch {
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			case aok && bok:
				if c := compareValues(a, b); c != 0 {
					if q.Direction == Descending {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return docs[i].ID < docs[j].ID
	})
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

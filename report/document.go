// Package report holds the data model moving through filters: immutable
// report documents and uniquely keyed report sets.
//
// A Document is a tree of string keys to values. A value is one of string,
// int64, float64, bool, nil, a nested Document, or a List. Documents and
// lists are never mutated after construction; every change returns a new
// value, so they can be shared freely between concurrent filters.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	apperrors "github.com/kbukum/reportflow/errors"
)

// Document is one crash or diagnostic report.
// The zero value is an empty document.
type Document struct {
	fields map[string]any
}

// List is an immutable ordered sequence of values.
type List struct {
	items []any
}

// NewDocument builds a Document from m, deep-copying and normalizing every value.
func NewDocument(m map[string]any) (Document, error) {
	fields := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalize(v)
		if err != nil {
			return Document{}, apperrors.InvalidInput(k, err.Error())
		}
		fields[k] = nv
	}
	return Document{fields: fields}, nil
}

// MustDocument is NewDocument that panics on error. Intended for literals.
func MustDocument(m map[string]any) Document {
	d, err := NewDocument(m)
	if err != nil {
		panic(err)
	}
	return d
}

// Len returns the number of top-level keys.
func (d Document) Len() int { return len(d.fields) }

// Keys returns the top-level keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value stored under key.
func (d Document) Get(key string) (any, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Lookup walks path through nested documents. A path element addressing a
// List must be a decimal index.
func (d Document) Lookup(path ...string) (any, bool) {
	var cur any = d
	for _, p := range path {
		switch node := cur.(type) {
		case Document:
			v, ok := node.fields[p]
			if !ok {
				return nil, false
			}
			cur = v
		case List:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(node.items) {
				return nil, false
			}
			cur = node.items[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// With returns a copy of d with key set to value.
func (d Document) With(key string, value any) (Document, error) {
	nv, err := normalize(value)
	if err != nil {
		return Document{}, apperrors.InvalidInput(key, err.Error())
	}
	fields := d.shallowCopy(1)
	fields[key] = nv
	return Document{fields: fields}, nil
}

// WithPath returns a copy of d with value stored at path, creating
// intermediate documents as needed. Existing non-document values along the
// path are replaced.
func (d Document) WithPath(path []string, value any) (Document, error) {
	if len(path) == 0 {
		return Document{}, apperrors.InvalidInput("path", "empty path")
	}
	if len(path) == 1 {
		return d.With(path[0], value)
	}
	child, _ := d.fields[path[0]].(Document)
	nested, err := child.WithPath(path[1:], value)
	if err != nil {
		return Document{}, err
	}
	fields := d.shallowCopy(1)
	fields[path[0]] = nested
	return Document{fields: fields}, nil
}

// Without returns a copy of d with keys removed.
func (d Document) Without(keys ...string) Document {
	fields := d.shallowCopy(0)
	for _, k := range keys {
		delete(fields, k)
	}
	return Document{fields: fields}
}

// Map returns a deep, mutable copy of d using plain Go maps and slices.
func (d Document) Map() map[string]any {
	m := make(map[string]any, len(d.fields))
	for k, v := range d.fields {
		m[k] = plain(v)
	}
	return m
}

// Equal reports whether d and o hold the same tree. Numbers compare by
// value, so float64(3) equals int64(3).
func (d Document) Equal(o Document) bool {
	if len(d.fields) != len(o.fields) {
		return false
	}
	for k, v := range d.fields {
		ov, ok := o.fields[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes d as a JSON object with sorted keys.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}

// UnmarshalJSON decodes a JSON object into d.
func (d *Document) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDocument(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDocument decodes a JSON object into a Document. Integral numbers
// become int64, the rest float64. A float64 with an integral value, such as
// 3.0, therefore comes back from a JSON round trip as int64; Equal treats
// the two as equal.
func ParseDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	if m == nil {
		return Document{}, apperrors.InvalidInput("", "document must be a JSON object")
	}
	return NewDocument(m)
}

func (d Document) shallowCopy(extra int) map[string]any {
	fields := make(map[string]any, len(d.fields)+extra)
	for k, v := range d.fields {
		fields[k] = v
	}
	return fields
}

// NewList builds a List, normalizing every value.
func NewList(values ...any) (List, error) {
	items := make([]any, len(values))
	for i, v := range values {
		nv, err := normalize(v)
		if err != nil {
			return List{}, apperrors.InvalidInput(strconv.Itoa(i), err.Error())
		}
		items[i] = nv
	}
	return List{items: items}, nil
}

// Len returns the number of elements.
func (l List) Len() int { return len(l.items) }

// At returns the element at index i. It panics if i is out of range.
func (l List) At(i int) any { return l.items[i] }

// Values returns a copy of the elements.
func (l List) Values() []any {
	out := make([]any, len(l.items))
	copy(out, l.items)
	return out
}

// Equal reports whether l and o hold equal elements in the same order.
func (l List) Equal(o List) bool {
	if len(l.items) != len(o.items) {
		return false
	}
	for i := range l.items {
		if !valuesEqual(l.items[i], o.items[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes l as a JSON array.
func (l List) MarshalJSON() ([]byte, error) {
	if l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, Document, List:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return normalizeUint(uint64(x))
	case uint64:
		return normalizeUint(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q out of range", x.String())
		}
		return normalizeFloat(f)
	case map[string]any:
		return NewDocument(x)
	case []any:
		return NewList(x...)
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeUint(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return int64(u), nil
}

func normalizeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return f, nil
}

// normalizeReflect handles typed slices and string-keyed maps such as
// []string or map[string]int.
func normalizeReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]any, rv.Len())
		for i := range values {
			values[i] = rv.Index(i).Interface()
		}
		return NewList(values...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not string", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return NewDocument(m)
	}
	return nil, fmt.Errorf("unsupported value type %T", rv.Interface())
}

func plain(v any) any {
	switch x := v.(type) {
	case Document:
		return x.Map()
	case List:
		out := make([]any, len(x.items))
		for i, item := range x.items {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case Document:
		y, ok := b.(Document)
		return ok && x.Equal(y)
	case List:
		y, ok := b.(List)
		return ok && x.Equal(y)
	case int64:
		if y, ok := b.(float64); ok {
			return intEqualsFloat(x, y)
		}
	case float64:
		if y, ok := b.(int64); ok {
			return intEqualsFloat(y, x)
		}
	}
	return a == b
}

func intEqualsFloat(i int64, f float64) bool {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return false
	}
	return int64(f) == i
}

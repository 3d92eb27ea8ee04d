package backend

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"
)

// Meta describes how a collection of T is searched, sorted and guarded.
// Field names are JSON keys; storage layers map them to columns.
type Meta[T any] struct {
	// Entity is the URL and table name, e.g. "users".
	Entity string
	// ID points at the record's identifier.
	ID func(*T) *string
	// Search lists the fields matched by a case-insensitive substring search.
	Search []string
	// Sort lists the fields a list may be ordered by.
	Sort []string
	// Unique lists fields whose values must not repeat across records.
	Unique []string
	// Guard, if set, is checked against the stored record before an update
	// or delete.
	Guard func(*T) error
}

// Sortable reports whether key is a sortable field.
func (m *Meta[T]) Sortable(key string) bool {
	return slices.Contains(m.Sort, key)
}

// Column returns the storage column for JSON key.
func (m *Meta[T]) Column(key string) string {
	var zero T
	return columnsOf(&zero)[key]
}

// Columns returns every storage column of T in declaration order.
func (m *Meta[T]) Columns() []string {
	var zero T
	var cols []string
	for _, f := range describe(reflect.TypeOf(&zero).Elem()) {
		if f.column != "" {
			cols = append(cols, f.column)
		}
	}
	return cols
}

// Value returns the string form of the field named by JSON key.
func (m *Meta[T]) Value(record *T, key string) string {
	v := reflect.ValueOf(record).Elem()
	for _, f := range describe(v.Type()) {
		if f.json == key {
			return stringify(v.FieldByIndex(f.index))
		}
	}
	return ""
}

type fieldInfo struct {
	json   string
	column string
	index  []int
}

var fieldCache sync.Map // reflect.Type -> []fieldInfo

// describe walks the exported fields of t, descending into embedded structs.
func describe(t reflect.Type) []fieldInfo {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldInfo)
	}
	var out []fieldInfo
	var walk func(t reflect.Type, prefix []int)
	walk = func(t reflect.Type, prefix []int) {
		for i := range t.NumField() {
			sf := t.Field(i)
			index := append(slices.Clone(prefix), i)
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
				walk(sf.Type, index)
				continue
			}
			if !sf.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				continue
			}
			col, _, _ := strings.Cut(sf.Tag.Get("db"), ",")
			if col == "-" {
				col = ""
			}
			out = append(out, fieldInfo{json: name, column: col, index: index})
		}
	}
	walk(t, nil)
	fieldCache.Store(t, out)
	return out
}

func fieldsOf[T any](zero *T) []string {
	var keys []string
	for _, f := range describe(reflect.TypeOf(zero).Elem()) {
		keys = append(keys, f.json)
	}
	return keys
}

func columnsOf[T any](zero *T) map[string]string {
	cols := map[string]string{}
	for _, f := range describe(reflect.TypeOf(zero).Elem()) {
		cols[f.json] = f.column
	}
	return cols
}

func stringify(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch x := v.Interface().(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v.Interface())
}

package postgres

import (
	"reflect"
	"sync"
)

// fieldMeta describes the db-tagged fields of a struct type.
type fieldMeta struct {
	columns  []string
	indices  []int
	embedded []int
}

var fieldCache sync.Map // reflect.Type -> *fieldMeta

func metaFor(t reflect.Type) *fieldMeta {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*fieldMeta)
	}

	meta := &fieldMeta{}
	if t.Kind() == reflect.Struct {
		for i := range t.NumField() {
			f := t.Field(i)
			if f.Anonymous {
				meta.embedded = append(meta.embedded, i)
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.columns = append(meta.columns, tag)
			meta.indices = append(meta.indices, i)
		}
	}
	fieldCache.Store(t, meta)
	return meta
}

// ExtractDBColumns lists the db tags of T, embedded structs first.
func ExtractDBColumns[T any]() []string {
	return columnsOf(reflect.TypeFor[T]())
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	meta := metaFor(t)
	var cols []string
	for _, i := range meta.embedded {
		cols = append(cols, columnsOf(t.Field(i).Type)...)
	}
	return append(cols, meta.columns...)
}

// StructToMap maps db tags to field values, flattening embedded structs.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metaFor(rv.Type())
	out := make(map[string]any, len(meta.columns))
	for _, i := range meta.embedded {
		for k, val := range StructToMap(rv.Field(i).Interface()) {
			out[k] = val
		}
	}
	for n, i := range meta.indices {
		out[meta.columns[n]] = rv.Field(i).Interface()
	}
	return out
}

// Package typeutil provides small reflect helpers shared by the pipeline
// and dispatch layers: kind classification, pointer unwrapping, and
// human-readable type names for logs and reports.
package typeutil

import (
	"reflect"
	"strings"
)

// IsReferenceKind reports whether t is a reference-like kind: pointer,
// interface, map, slice, channel, function, or unsafe pointer. Everything
// else (structs, arrays, strings, numerics, booleans) counts as a value
// kind. Note that a pointer to a value type is itself reference-like.
func IsReferenceKind(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// Indirect unwraps pointer types down to their element type. Non-pointer
// types are returned unchanged.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// DisplayName returns a compact name for t with package qualifiers
// stripped, including qualifiers nested inside generic type arguments,
// map keys, and element types. A nil type renders as "<nil>".
//
//	*orders.CreateOrder            -> *CreateOrder
//	retry.Wrapper[orders.Command]  -> Wrapper[Command]
//	map[string]orders.Line         -> map[string]Line
func DisplayName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return stripQualifiers(t.String())
}

// DisplayNameOf is DisplayName applied to the dynamic type of v.
func DisplayNameOf(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	return DisplayName(reflect.TypeOf(v))
}

// stripQualifiers removes "path/to/pkg." prefixes from every identifier
// segment in a reflect type string. Segments are delimited by the
// punctuation reflect uses when printing composite and generic types.
func stripQualifiers(s string) string {
	if !strings.ContainsRune(s, '.') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', ']', ',', ' ', '*', '(', ')':
			b.WriteString(stripSegment(s[start:i]))
			b.WriteByte(s[i])
			start = i + 1
		}
	}
	b.WriteString(stripSegment(s[start:]))
	return b.String()
}

func stripSegment(seg string) string {
	if i := strings.LastIndexByte(seg, '.'); i >= 0 {
		return seg[i+1:]
	}
	return seg
}

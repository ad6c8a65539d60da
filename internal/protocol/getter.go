package protocol

import (
	"strings"
)

// Getter gives access to named fields of a structured value.
type Getter interface {
	// GetValue returns the field with the given name, which is a single path component.
	GetValue(key string) (Value, bool)
	// Keys returns the names of all fields.
	Keys() []string
}

// KeyValue is one field of a Getter.
type KeyValue struct {
	Key   string
	Value Value
}

// SplitPath splits a dotted path into its components. A backslash escapes the next character,
// so "a.b\.c" has the components "a" and "b.c", and "\\" is a literal backslash.
func SplitPath(path string) []string {
	var parts []string
	var current strings.Builder
	escaped := false
	for i := 0; i < len(path); i++ {
		ch := path[i]
		switch {
		case escaped:
			current.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '.':
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if escaped {
		current.WriteByte('\\')
	}
	return append(parts, current.String())
}

// GetPath walks a dotted path. Every component except the last must resolve to a value that is
// itself a Getter.
func GetPath(g Getter, path string) (Value, bool) {
	parts := SplitPath(path)
	current := g
	for i, part := range parts {
		v, ok := current.GetValue(part)
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := AsGetter(v)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// AsGetter returns the value as a Getter if it has fields.
func AsGetter(v Value) (Getter, bool) {
	switch t := v.(type) {
	case Getter:
		return t, true
	case map[string]Value:
		return Object(t), true
	default:
		return nil, false
	}
}

// KeysAt returns the field names of the value at path, or nil if it has no fields.
func KeysAt(g Getter, path string) []string {
	target, ok := getterAt(g, path)
	if !ok {
		return nil
	}
	return target.Keys()
}

// IterAt returns the fields of the value at path in key order.
func IterAt(g Getter, path string) []KeyValue {
	target, ok := getterAt(g, path)
	if !ok {
		return nil
	}
	keys := target.Keys()
	ret := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		v, _ := target.GetValue(k)
		ret = append(ret, KeyValue{Key: k, Value: v})
	}
	return ret
}

func getterAt(g Getter, path string) (Getter, bool) {
	if path == "" {
		return g, true
	}
	v, ok := GetPath(g, path)
	if !ok {
		return nil, false
	}
	return AsGetter(v)
}

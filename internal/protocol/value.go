package protocol

import (
	"math"
	"sort"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Value is a node of a JSON value tree. Its dynamic type is one of nil, bool, int64, float64,
// string, Array or Object.
type Value interface{}

// Array is a JSON array.
type Array []Value

// Object is a JSON object. It is also a Getter over its fields.
type Object map[string]Value

// maxSafeInteger is the largest integer that a float64 represents exactly.
const maxSafeInteger = 1 << 53

// ParseValue parses JSON into a value tree. Integral numbers become int64.
func ParseValue(data []byte) (Value, error) {
	r := jreader.NewReader(data)
	v := ReadValue(&r)
	if err := r.Error(); err != nil {
		return nil, err
	}
	if err := r.RequireEOF(); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseObject parses JSON that must be an object.
func ParseObject(data []byte) (Object, error) {
	r := jreader.NewReader(data)
	obj := readObject(&r)
	if err := r.Error(); err != nil {
		return nil, err
	}
	if err := r.RequireEOF(); err != nil {
		return nil, err
	}
	return obj, nil
}

// ReadValue reads one value of any type. Errors are recorded in the reader.
func ReadValue(r *jreader.Reader) Value {
	v := r.Any()
	switch v.Kind {
	case jreader.BoolValue:
		return v.Bool
	case jreader.NumberValue:
		if v.Number == math.Trunc(v.Number) && math.Abs(v.Number) <= maxSafeInteger {
			return int64(v.Number)
		}
		return v.Number
	case jreader.StringValue:
		return v.String
	case jreader.ArrayValue:
		arr := Array{}
		for v.Array.Next() {
			arr = append(arr, ReadValue(r))
		}
		return arr
	case jreader.ObjectValue:
		obj := Object{}
		for v.Object.Next() {
			obj[string(v.Object.Name())] = ReadValue(r)
		}
		return obj
	default:
		return nil
	}
}

func readObject(r *jreader.Reader) Object {
	obj := Object{}
	for o := r.Object(); o.Next(); {
		obj[string(o.Name())] = ReadValue(r)
	}
	return obj
}

// WriteValue writes a value tree. Object keys are written in sorted order.
func WriteValue(w *jwriter.Writer, v Value) {
	switch t := v.(type) {
	case nil:
		w.Null()
	case bool:
		w.Bool(t)
	case int64:
		w.Int(int(t))
	case int:
		w.Int(t)
	case uint64:
		w.Float64(float64(t))
	case float64:
		w.Float64(t)
	case string:
		w.String(t)
	case Array:
		arr := w.Array()
		for _, item := range t {
			WriteValue(w, item)
		}
		arr.End()
	case []Value:
		WriteValue(w, Array(t))
	case Object:
		obj := w.Object()
		for _, k := range t.Keys() {
			WriteValue(obj.Name(k), t[k])
		}
		obj.End()
	case map[string]Value:
		WriteValue(w, Object(t))
	default:
		w.Null()
	}
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	WriteValue(&w, o)
	return w.Bytes(), w.Error()
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Object) UnmarshalJSON(data []byte) error {
	parsed, err := ParseObject(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Keys returns the field names in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetValue implements Getter.
func (o Object) GetValue(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// Get returns the value at a dotted path. See GetPath.
func (o Object) Get(path string) (Value, bool) {
	return GetPath(o, path)
}

// StringField returns the field as a string, if it is one.
func (o Object) StringField(key string) (string, bool) {
	s, ok := o[key].(string)
	return s, ok
}

// IntField returns the field as an integer, if it is an integral number.
func (o Object) IntField(key string) (int64, bool) {
	switch n := o[key].(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

// AsFloat converts numeric values to float64.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// ValueEquals compares two leaf values, treating integers and floats with the same value as equal.
func ValueEquals(a, b Value) bool {
	if fa, ok := AsFloat(a); ok {
		fb, ok := AsFloat(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case nil:
		return b == nil
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	default:
		return false
	}
}

// Package payload models the opaque parameter values a job definition carries
// into the invoked job. Values are tagged (string/number/bool/array/map) so
// type information survives storage and the fire-time boundary instead of
// collapsing into interface{} soup.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable tagged value. The zero value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	m    map[string]Value
}

func Null() Value                 { return Value{} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(n float64) Value     { return Value{kind: KindNumber, num: n} }
func Int(n int) Value            { return Number(float64(n)) }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Array(vs ...Value) Value    { return Value{kind: KindArray, arr: vs} }
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Str() (string, bool)  { return v.str, v.kind == KindString }
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) Bool() (bool, bool)   { return v.b, v.kind == KindBool }

func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Get returns the map entry for key. ok is false for non-map values too.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	e, ok := v.m[key]
	return e, ok
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	ks := make([]string, 0, len(v.m))
	for k := range v.m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// WithEntry returns a copy of a map value with key set. Calling it on a null
// value starts a fresh map; any other kind is returned unchanged.
func (v Value) WithEntry(key string, e Value) Value {
	switch v.kind {
	case KindMap:
		m := make(map[string]Value, len(v.m)+1)
		for k, old := range v.m {
			m[k] = old
		}
		m[key] = e
		return Value{kind: KindMap, m: m}
	case KindNull:
		return Value{kind: KindMap, m: map[string]Value{key: e}}
	default:
		return v
	}
}

// MarshalJSON renders the value in its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("payload: cannot marshal kind %v", v.kind)
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	got, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = got
	return nil
}

// FromJSON decodes arbitrary JSON into a tagged value.
func FromJSON(b []byte) (Value, error) {
	if len(b) == 0 {
		return Null(), nil
	}
	var v Value
	if err := json.Unmarshal(b, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func fromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case bool:
		return Bool(x), nil
	case []any:
		arr := make([]Value, 0, len(x))
		for _, it := range x {
			v, err := fromAny(it)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, v)
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, it := range x {
			v, err := fromAny(it)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("payload: unsupported value %T", raw)
	}
}

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags the shape a DynamicValue currently holds.
type ValueKind int

const (
	KindUnset ValueKind = iota
	KindString
	KindBool
	KindInt64
	KindFloat64
	KindArray
)

// DynamicValue is a tagged union over the value shapes that may appear in
// per-frame metadata. Presence and type of metadata attributes are not
// guaranteed, so consumers must check the kind before reading. The zero
// value is Unset.
type DynamicValue struct {
	kind ValueKind
	str  string
	b    bool
	i    int64
	f    float64
	arr  []DynamicValue
}

// StringValue returns a DynamicValue holding a string.
func StringValue(s string) DynamicValue { return DynamicValue{kind: KindString, str: s} }

// BoolValue returns a DynamicValue holding a bool.
func BoolValue(b bool) DynamicValue { return DynamicValue{kind: KindBool, b: b} }

// IntValue returns a DynamicValue holding an int64.
func IntValue(i int64) DynamicValue { return DynamicValue{kind: KindInt64, i: i} }

// FloatValue returns a DynamicValue holding a float64.
func FloatValue(f float64) DynamicValue { return DynamicValue{kind: KindFloat64, f: f} }

// ArrayValue returns a DynamicValue holding the given elements.
func ArrayValue(items ...DynamicValue) DynamicValue {
	return DynamicValue{kind: KindArray, arr: items}
}

// UnsetValue returns the unset sentinel value.
func UnsetValue() DynamicValue { return DynamicValue{} }

// Kind returns the tag of the value.
func (v DynamicValue) Kind() ValueKind { return v.kind }

// AsString returns the string payload and whether the value is a string.
func (v DynamicValue) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsBool returns the bool payload and whether the value is a bool.
func (v DynamicValue) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the int64 payload and whether the value is an int64.
func (v DynamicValue) AsInt() (int64, bool) { return v.i, v.kind == KindInt64 }

// AsFloat returns the float64 payload and whether the value is a float64.
func (v DynamicValue) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat64 }

// AsArray returns the element slice and whether the value is an array. The
// returned slice is the value's backing storage; callers must not mutate it.
func (v DynamicValue) AsArray() ([]DynamicValue, bool) { return v.arr, v.kind == KindArray }

// Clone returns a deep copy of the value.
func (v DynamicValue) Clone() DynamicValue {
	if v.kind != KindArray {
		return v
	}
	out := v
	out.arr = make([]DynamicValue, len(v.arr))
	for i, item := range v.arr {
		out.arr[i] = item.Clone()
	}
	return out
}

// MarshalJSON encodes the value by its tag. Unset encodes as null.
func (v DynamicValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindInt64:
		return json.Marshal(v.i)
	case KindFloat64:
		return json.Marshal(v.f)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value into the matching tag. Integral
// numbers without a decimal point or exponent become Int64, all other
// numbers Float64. JSON objects and null decode to Unset.
func (v *DynamicValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := decodeDynamicValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// decodeDynamicValue reads one complete JSON value from the decoder.
func decodeDynamicValue(dec *json.Decoder) (DynamicValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return DynamicValue{}, err
	}
	return decodeDynamicToken(dec, tok)
}

func decodeDynamicToken(dec *json.Decoder, tok json.Token) (DynamicValue, error) {
	switch t := tok.(type) {
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := t.Int64(); err == nil {
				return IntValue(i), nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return DynamicValue{}, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return FloatValue(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := []DynamicValue{}
			for dec.More() {
				item, err := decodeDynamicValue(dec)
				if err != nil {
					return DynamicValue{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return DynamicValue{}, err
			}
			return ArrayValue(items...), nil
		case '{':
			// Nested objects are not part of the metadata schema; skip the
			// whole object and report it as unset.
			if err := skipObject(dec); err != nil {
				return DynamicValue{}, err
			}
			return UnsetValue(), nil
		}
		return DynamicValue{}, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return UnsetValue(), nil
	default:
		return DynamicValue{}, fmt.Errorf("unexpected token %v", tok)
	}
}

// skipObject consumes the remainder of a JSON object whose opening brace has
// already been read.
func skipObject(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
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

// DynamicMap is an insertion-ordered mapping of attribute name to
// DynamicValue. The zero value is an empty map ready for use.
type DynamicMap struct {
	keys   []string
	values map[string]DynamicValue
}

// NewDynamicMap returns an empty map.
func NewDynamicMap() DynamicMap {
	return DynamicMap{}
}

// Set stores a value under key, appending the key to the iteration order if
// it is new.
func (m *DynamicMap) Set(key string, v DynamicValue) {
	if m.values == nil {
		m.values = make(map[string]DynamicValue)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m DynamicMap) Get(key string) (DynamicValue, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the attribute names in insertion order. The returned slice
// must not be mutated.
func (m DynamicMap) Keys() []string { return m.keys }

// Len returns the number of entries.
func (m DynamicMap) Len() int { return len(m.keys) }

// Clone returns a deep copy of the map.
func (m DynamicMap) Clone() DynamicMap {
	if m.values == nil {
		return DynamicMap{}
	}
	out := DynamicMap{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]DynamicValue, len(m.values)),
	}
	copy(out.keys, m.keys)
	for k, v := range m.values {
		out.values[k] = v.Clone()
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m DynamicMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order. null decodes
// to an empty map.
func (m *DynamicMap) UnmarshalJSON(data []byte) error {
	*m = DynamicMap{}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", keyTok)
		}
		val, err := decodeDynamicValue(dec)
		if err != nil {
			return err
		}
		m.Set(key, val)
	}
	_, err = dec.Token() // closing }
	return err
}

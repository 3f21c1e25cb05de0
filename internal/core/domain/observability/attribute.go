package observability

import "encoding/json"

// AttributeKind tags the underlying representation carried by an AttributeValue.
type AttributeKind int

const (
	AttributeKindNull AttributeKind = iota
	AttributeKindString
	AttributeKindBool
	AttributeKindInt
	AttributeKindDouble
	AttributeKindArray
	AttributeKindJSON
)

// AttributeValue is a tagged union of the scalar/array/serialized-JSON shapes
// an OTLP attribute may carry once decoded. Nested objects and heterogeneous
// arrays are never represented structurally — they are serialized to JSON and
// carried as AttributeKindJSON, per the canonicalization contract.
type AttributeValue struct {
	kind   AttributeKind
	str    string
	bval   bool
	ival   int64
	dval   float64
	arr    []AttributeValue
	jsonRaw string
}

func NullAttribute() AttributeValue { return AttributeValue{kind: AttributeKindNull} }

func StringAttribute(v string) AttributeValue { return AttributeValue{kind: AttributeKindString, str: v} }

func BoolAttribute(v bool) AttributeValue { return AttributeValue{kind: AttributeKindBool, bval: v} }

func IntAttribute(v int64) AttributeValue { return AttributeValue{kind: AttributeKindInt, ival: v} }

func DoubleAttribute(v float64) AttributeValue { return AttributeValue{kind: AttributeKindDouble, dval: v} }

func ArrayAttribute(v []AttributeValue) AttributeValue {
	return AttributeValue{kind: AttributeKindArray, arr: v}
}

func JSONAttribute(raw string) AttributeValue { return AttributeValue{kind: AttributeKindJSON, jsonRaw: raw} }

func (a AttributeValue) Kind() AttributeKind { return a.kind }
func (a AttributeValue) IsNull() bool        { return a.kind == AttributeKindNull }

// StringValue returns the string stored by a string or JSON attribute. For
// every other kind (null, bool, int, double, array) it returns ("", false).
func (a AttributeValue) StringValue() (string, bool) {
	switch a.kind {
	case AttributeKindString:
		return a.str, true
	case AttributeKindJSON:
		return a.jsonRaw, true
	default:
		return "", false
	}
}

func (a AttributeValue) BoolValue() (bool, bool) {
	if a.kind == AttributeKindBool {
		return a.bval, true
	}
	return false, false
}

func (a AttributeValue) IntValue() (int64, bool) {
	if a.kind == AttributeKindInt {
		return a.ival, true
	}
	return 0, false
}

func (a AttributeValue) DoubleValue() (float64, bool) {
	switch a.kind {
	case AttributeKindDouble:
		return a.dval, true
	case AttributeKindInt:
		return float64(a.ival), true
	default:
		return 0, false
	}
}

func (a AttributeValue) ArrayValue() ([]AttributeValue, bool) {
	if a.kind == AttributeKindArray {
		return a.arr, true
	}
	return nil, false
}

// AsNumberString formats numeric kinds for embedding into derived string
// output (e.g. composing rule-trace markers); non-numeric kinds return "".
func (a AttributeValue) AsNumberString() string {
	switch a.kind {
	case AttributeKindInt:
		return jsonNumberString(a.ival)
	case AttributeKindDouble:
		return jsonNumberStringFloat(a.dval)
	default:
		return ""
	}
}

func jsonNumberString(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonNumberStringFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// MarshalJSON renders the AttributeValue the way it would have appeared on
// the wire: scalars as themselves, arrays as JSON arrays, JSON-kind values
// re-embedded as raw JSON (not double-encoded as a string).
func (a AttributeValue) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AttributeKindNull:
		return []byte("null"), nil
	case AttributeKindString:
		return json.Marshal(a.str)
	case AttributeKindBool:
		return json.Marshal(a.bval)
	case AttributeKindInt:
		return json.Marshal(a.ival)
	case AttributeKindDouble:
		return json.Marshal(a.dval)
	case AttributeKindArray:
		return json.Marshal(a.arr)
	case AttributeKindJSON:
		if json.Valid([]byte(a.jsonRaw)) {
			return []byte(a.jsonRaw), nil
		}
		return json.Marshal(a.jsonRaw)
	default:
		return []byte("null"), nil
	}
}

// AttributeMap is an ordered string-keyed map of AttributeValue. Iteration
// order follows first-insertion order; re-setting an existing key does not
// move it.
type AttributeMap struct {
	values map[string]AttributeValue
	order  []string
}

func NewAttributeMap() *AttributeMap {
	return &AttributeMap{values: make(map[string]AttributeValue)}
}

func (m *AttributeMap) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

func (m *AttributeMap) Get(key string) (AttributeValue, bool) {
	if m == nil {
		return AttributeValue{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set writes key=value, appending to iteration order only on first insert.
// Setting a NullAttribute value is a no-op per the "null attempt to set MUST
// be a no-op" invariant.
func (m *AttributeMap) Set(key string, value AttributeValue) {
	if value.IsNull() {
		return
	}
	if _, exists := m.values[key]; !exists {
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

// Take returns and removes the value at key, if present.
func (m *AttributeMap) Take(key string) (AttributeValue, bool) {
	v, ok := m.values[key]
	if ok {
		m.Delete(key)
	}
	return v, ok
}

// TakeAny returns the key/value of the first present key in keys (in the
// order given), removing it from the map.
func (m *AttributeMap) TakeAny(keys []string) (string, AttributeValue, bool) {
	for _, k := range keys {
		if v, ok := m.Take(k); ok {
			return k, v, true
		}
	}
	return "", AttributeValue{}, false
}

// GetAny returns the first present value among keys without removing it.
func (m *AttributeMap) GetAny(keys []string) (string, AttributeValue, bool) {
	for _, k := range keys {
		if v, ok := m.Get(k); ok {
			return k, v, true
		}
	}
	return "", AttributeValue{}, false
}

func (m *AttributeMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *AttributeMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Remaining returns a snapshot of the map's current contents in insertion
// order. The returned slice is safe to range over while the map is mutated.
func (m *AttributeMap) Remaining() []KV {
	out := make([]KV, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, KV{Key: k, Value: m.values[k]})
	}
	return out
}

// Keys returns the current keys in insertion order.
func (m *AttributeMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// KV is an ordered key/value pair snapshot from an AttributeMap.
type KV struct {
	Key   string
	Value AttributeValue
}

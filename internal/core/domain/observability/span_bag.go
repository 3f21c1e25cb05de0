package observability

import "encoding/json"

// CanonicalEvent is a timestamped span annotation carried through canonicalization.
type CanonicalEvent struct {
	Name       string
	TimeUnixMs int64
	Attributes *AttributeMap
}

// EventBag is the mutable collection of events belonging to one span.
type EventBag struct {
	events []CanonicalEvent
}

func NewEventBag(events []CanonicalEvent) *EventBag {
	return &EventBag{events: events}
}

// TakeAll removes and returns every event whose name matches, preserving
// relative order among the matches.
func (b *EventBag) TakeAll(name string) []CanonicalEvent {
	var matched []CanonicalEvent
	var rest []CanonicalEvent
	for _, e := range b.events {
		if e.Name == name {
			matched = append(matched, e)
		} else {
			rest = append(rest, e)
		}
	}
	b.events = rest
	return matched
}

// Remaining returns a snapshot of events still held by the bag, in their
// current order.
func (b *EventBag) Remaining() []CanonicalEvent {
	out := make([]CanonicalEvent, len(b.events))
	copy(out, b.events)
	return out
}

// DefaultMaxParseSize is the getParsed safety guard: strings larger than this
// are never JSON-parsed and are returned as-is.
const DefaultMaxParseSize = 2_000_000

// SpanDataBag is the mutable per-span container consumed by extractors: the
// remaining (unconsumed) attributes and events. It is constructed once per
// span and discarded after the canonicalization pass.
type SpanDataBag struct {
	Attrs  *AttributeMap
	Events *EventBag

	parsedCache map[string]interface{}
}

func NewSpanDataBag(attrs *AttributeMap, events *EventBag) *SpanDataBag {
	if attrs == nil {
		attrs = NewAttributeMap()
	}
	if events == nil {
		events = NewEventBag(nil)
	}
	return &SpanDataBag{
		Attrs:       attrs,
		Events:      events,
		parsedCache: make(map[string]interface{}),
	}
}

func (b *SpanDataBag) Has(key string) bool { return b.Attrs.Has(key) }

func (b *SpanDataBag) Get(key string) (AttributeValue, bool) { return b.Attrs.Get(key) }

func (b *SpanDataBag) Take(key string) (AttributeValue, bool) {
	delete(b.parsedCache, key)
	return b.Attrs.Take(key)
}

func (b *SpanDataBag) TakeAny(keys []string) (string, AttributeValue, bool) {
	key, v, ok := b.Attrs.TakeAny(keys)
	if ok {
		delete(b.parsedCache, key)
	}
	return key, v, ok
}

func (b *SpanDataBag) GetAny(keys []string) (string, AttributeValue, bool) {
	return b.Attrs.GetAny(keys)
}

func (b *SpanDataBag) Delete(key string) {
	delete(b.parsedCache, key)
	b.Attrs.Delete(key)
}

func (b *SpanDataBag) Remaining() []KV { return b.Attrs.Remaining() }

// GetParsed memoizes a JSON parse of a string-looking attribute value.
// Non-string values are returned as-is. Values whose byte length exceeds
// maxSafeSize are never parsed (the raw value is returned unparsed). A parse
// failure caches and returns the original value unchanged. Pass maxSafeSize
// <= 0 to use DefaultMaxParseSize.
func (b *SpanDataBag) GetParsed(key string, maxSafeSize int) (interface{}, bool) {
	if maxSafeSize <= 0 {
		maxSafeSize = DefaultMaxParseSize
	}
	if cached, ok := b.parsedCache[key]; ok {
		return cached, true
	}

	v, ok := b.Attrs.Get(key)
	if !ok {
		return nil, false
	}

	raw, isString := v.StringValue()
	if !isString {
		// Non-string values (bool/int/double/array) are returned as-is.
		result := attributeValueToInterface(v)
		b.parsedCache[key] = result
		return result, true
	}

	if !looksLikeJSON(raw) || len(raw) > maxSafeSize {
		b.parsedCache[key] = raw
		return raw, true
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		b.parsedCache[key] = raw
		return raw, true
	}

	b.parsedCache[key] = parsed
	return parsed, true
}

func looksLikeJSON(s string) bool {
	trimmed := trimSpaceFast(s)
	if len(trimmed) < 2 {
		return false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}

func trimSpaceFast(s string) string {
	start := 0
	for start < len(s) && isSpaceByte(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func attributeValueToInterface(v AttributeValue) interface{} {
	switch v.Kind() {
	case AttributeKindString:
		s, _ := v.StringValue()
		return s
	case AttributeKindBool:
		b, _ := v.BoolValue()
		return b
	case AttributeKindInt:
		i, _ := v.IntValue()
		return i
	case AttributeKindDouble:
		d, _ := v.DoubleValue()
		return d
	case AttributeKindArray:
		arr, _ := v.ArrayValue()
		out := make([]interface{}, len(arr))
		for i, el := range arr {
			out[i] = attributeValueToInterface(el)
		}
		return out
	case AttributeKindJSON:
		s, _ := v.StringValue()
		var parsed interface{}
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed
		}
		return s
	default:
		return nil
	}
}

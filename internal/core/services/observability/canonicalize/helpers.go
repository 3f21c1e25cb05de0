package canonicalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"brokle/internal/core/domain/observability"
)

// ToAttributeValue coerces an arbitrary decoded-JSON value into an
// AttributeValue: scalar -> scalar, homogeneous scalar array -> array,
// anything else -> JSON string. nil -> AttributeKindNull.
func ToAttributeValue(v interface{}) observability.AttributeValue {
	switch val := v.(type) {
	case nil:
		return observability.NullAttribute()
	case observability.AttributeValue:
		return val
	case string:
		return observability.StringAttribute(val)
	case bool:
		return observability.BoolAttribute(val)
	case int:
		return observability.IntAttribute(int64(val))
	case int32:
		return observability.IntAttribute(int64(val))
	case int64:
		return observability.IntAttribute(val)
	case float64:
		if val == float64(int64(val)) {
			return observability.IntAttribute(int64(val))
		}
		return observability.DoubleAttribute(val)
	case float32:
		return observability.DoubleAttribute(float64(val))
	case []string:
		arr := make([]observability.AttributeValue, len(val))
		for i, s := range val {
			arr[i] = observability.StringAttribute(s)
		}
		return observability.ArrayAttribute(arr)
	case []interface{}:
		if isHomogeneousScalarArray(val) {
			arr := make([]observability.AttributeValue, len(val))
			for i, el := range val {
				arr[i] = ToAttributeValue(el)
			}
			return observability.ArrayAttribute(arr)
		}
		return jsonEncodeAttribute(val)
	case map[string]interface{}:
		return jsonEncodeAttribute(val)
	default:
		return jsonEncodeAttribute(val)
	}
}

func isHomogeneousScalarArray(arr []interface{}) bool {
	if len(arr) == 0 {
		return true
	}
	kindOf := func(v interface{}) int {
		switch v.(type) {
		case string:
			return 1
		case bool:
			return 2
		case float64, int, int64:
			return 3
		default:
			return 0
		}
	}
	first := kindOf(arr[0])
	if first == 0 {
		return false
	}
	for _, el := range arr {
		if kindOf(el) != first {
			return false
		}
	}
	return true
}

func jsonEncodeAttribute(v interface{}) observability.AttributeValue {
	b, err := json.Marshal(v)
	if err != nil {
		return observability.NullAttribute()
	}
	return observability.JSONAttribute(string(b))
}

// SafeJSONParse parses v if it's a string that looks like a JSON object or
// array; on failure, or if v isn't a JSON-looking string, it returns v
// unchanged.
func SafeJSONParse(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return v
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	looksJSON := (first == '{' && last == '}') || (first == '[' && last == ']')
	if !looksJSON {
		return v
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return v
	}
	return parsed
}

// AsNumber accepts a float64, int, or numeric string and returns it as a
// float64; non-finite or non-numeric inputs return (0, false).
func AsNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !isNonFinite(val)
	case float32:
		return float64(val), !isNonFinite(float64(val))
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		if isNonFinite(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// CoerceToStringArray wraps a single value in a one-element slice, or passes
// through a slice, dropping empty strings; returns (nil, false) if nothing
// survives.
func CoerceToStringArray(v interface{}) ([]string, bool) {
	var raw []interface{}
	switch val := v.(type) {
	case []interface{}:
		raw = val
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case string:
		raw = []interface{}{val}
	case nil:
		return nil, false
	default:
		raw = []interface{}{fmt.Sprintf("%v", val)}
	}

	out := make([]string, 0, len(raw))
	for _, el := range raw {
		s, ok := el.(string)
		if !ok {
			s = fmt.Sprintf("%v", el)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// DecodeMessagesPayload normalizes a structured wrapper's payload: an array
// passes through; {messages:[...]} unwraps to the inner array; anything
// else passes through unchanged.
func DecodeMessagesPayload(p interface{}) interface{} {
	switch val := p.(type) {
	case []interface{}:
		return val
	case map[string]interface{}:
		if inner, ok := val["messages"].([]interface{}); ok {
			return inner
		}
		return val
	default:
		return p
	}
}

// UnwrapWrappedMessages unwraps elements shaped as {message: {...}} (and
// nothing else) into the inner object, leaving other elements untouched.
func UnwrapWrappedMessages(msgs []interface{}) []interface{} {
	out := make([]interface{}, len(msgs))
	for i, m := range msgs {
		if obj, ok := m.(map[string]interface{}); ok && len(obj) == 1 {
			if inner, ok := obj["message"]; ok {
				out[i] = inner
				continue
			}
		}
		out[i] = m
	}
	return out
}

// NormalizeToMessages coerces raw input into a canonical []interface{} of
// message objects:
//   - string    -> [{role: defaultRole, content: raw}]
//   - array     -> unwrapped via UnwrapWrappedMessages
//   - {messages:[...]} -> unwrapped inner array
//   - else      -> wrapped as a single message
func NormalizeToMessages(raw interface{}, defaultRole string) []interface{} {
	switch val := raw.(type) {
	case string:
		return []interface{}{map[string]interface{}{"role": defaultRole, "content": val}}
	case []interface{}:
		return UnwrapWrappedMessages(val)
	case map[string]interface{}:
		if inner, ok := val["messages"].([]interface{}); ok {
			return UnwrapWrappedMessages(inner)
		}
		return []interface{}{val}
	case nil:
		return nil
	default:
		return []interface{}{map[string]interface{}{"role": defaultRole, "content": val}}
	}
}

// ExtractSystemInstructionFromMessages returns the concatenated text of the
// first message when its role is "system"; otherwise it returns ("", false).
func ExtractSystemInstructionFromMessages(msgs []interface{}) (string, bool) {
	if len(msgs) == 0 {
		return "", false
	}
	obj, ok := msgs[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	role, _ := obj["role"].(string)
	if role != "system" {
		return "", false
	}
	content, ok := obj["content"]
	if !ok {
		return "", false
	}
	return extractTextFromContent(content), true
}

func extractTextFromContent(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var parts []string
		for _, block := range v {
			if s, ok := block.(string); ok {
				parts = append(parts, s)
				continue
			}
			if obj, ok := block.(map[string]interface{}); ok {
				if t, ok := obj["type"].(string); ok && t == "text" {
					if text, ok := obj["text"].(string); ok {
						parts = append(parts, text)
						continue
					}
					if text, ok := obj["content"].(string); ok {
						parts = append(parts, text)
						continue
					}
				}
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

// StripLeadingSystemMessage removes a leading system-role message from msgs,
// returning the remaining messages. Used after the system instruction has
// been lifted out, so it is not duplicated in the emitted message array.
func StripLeadingSystemMessage(msgs []interface{}) []interface{} {
	if len(msgs) == 0 {
		return msgs
	}
	if obj, ok := msgs[0].(map[string]interface{}); ok {
		if role, _ := obj["role"].(string); role == "system" {
			return msgs[1:]
		}
	}
	return msgs
}

// NormaliseModelFromAiModelObject renders {id, provider} as
// "<provider-prefix>/<id>", splitting provider on the first '.'; if
// provider is empty, returns id unchanged.
func NormaliseModelFromAiModelObject(id, provider string) string {
	if provider == "" {
		return id
	}
	prefix := provider
	if idx := strings.IndexByte(provider, '.'); idx >= 0 {
		prefix = provider[:idx]
	}
	return prefix + "/" + id
}

// messagesToJSONAttribute serializes a message slice for writing into the
// canonical output map.
func messagesToJSONAttribute(msgs []interface{}) observability.AttributeValue {
	if msgs == nil {
		return observability.NullAttribute()
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return observability.NullAttribute()
	}
	return observability.JSONAttribute(string(b))
}

// stringify renders a value as a string the way the LangWatch/Vercel
// extractors need it: pass strings through, JSON-encode everything else.
func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// DetectMimeType auto-detects a MIME type for a raw string value when none
// was declared, and falls back to text/plain if a declared application/json
// type doesn't actually parse.
func DetectMimeType(value, declared string) string {
	if declared == "" {
		if json.Valid([]byte(value)) {
			return "application/json"
		}
		return "text/plain"
	}
	if declared == "application/json" && !json.Valid([]byte(value)) {
		return "text/plain"
	}
	return declared
}

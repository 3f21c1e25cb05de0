package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokle/internal/core/domain/observability"
)

func TestToAttributeValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want observability.AttributeKind
	}{
		{"nil", nil, observability.AttributeKindNull},
		{"string", "x", observability.AttributeKindString},
		{"bool", true, observability.AttributeKindBool},
		{"int", 3, observability.AttributeKindInt},
		{"whole float collapses to int", 3.0, observability.AttributeKindInt},
		{"fractional float", 3.5, observability.AttributeKindDouble},
		{"homogeneous strings", []interface{}{"a", "b"}, observability.AttributeKindArray},
		{"heterogeneous array serializes", []interface{}{"a", 1}, observability.AttributeKindJSON},
		{"object serializes", map[string]interface{}{"k": "v"}, observability.AttributeKindJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToAttributeValue(tt.in).Kind())
		})
	}
}

func TestToAttributeValue_ObjectIsJSONString(t *testing.T) {
	av := ToAttributeValue(map[string]interface{}{"a": 1})
	s, ok := av.StringValue()
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, s)
}

func TestSafeJSONParse(t *testing.T) {
	parsed := SafeJSONParse(`{"a":1}`)
	obj, ok := parsed.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, obj["a"])

	assert.Equal(t, "not json", SafeJSONParse("not json"))
	assert.Equal(t, `{"broken`, SafeJSONParse(`{"broken`))
	assert.Equal(t, 42, SafeJSONParse(42))
}

func TestAsNumber(t *testing.T) {
	n, ok := AsNumber(1.5)
	require.True(t, ok)
	assert.Equal(t, 1.5, n)

	n, ok = AsNumber("720")
	require.True(t, ok)
	assert.Equal(t, 720.0, n)

	_, ok = AsNumber("abc")
	assert.False(t, ok)

	_, ok = AsNumber(nil)
	assert.False(t, ok)
}

func TestCoerceToStringArray(t *testing.T) {
	got, ok := CoerceToStringArray("single")
	require.True(t, ok)
	assert.Equal(t, []string{"single"}, got)

	got, ok = CoerceToStringArray([]interface{}{"a", "", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = CoerceToStringArray([]interface{}{"", ""})
	assert.False(t, ok)

	_, ok = CoerceToStringArray(nil)
	assert.False(t, ok)
}

func TestDecodeMessagesPayload(t *testing.T) {
	arr := []interface{}{map[string]interface{}{"role": "user"}}
	assert.Equal(t, arr, DecodeMessagesPayload(arr))

	wrapped := map[string]interface{}{"messages": arr}
	assert.Equal(t, arr, DecodeMessagesPayload(wrapped))

	assert.Equal(t, "raw", DecodeMessagesPayload("raw"))
}

func TestUnwrapWrappedMessages(t *testing.T) {
	inner := map[string]interface{}{"role": "user", "content": "hi"}
	msgs := []interface{}{
		map[string]interface{}{"message": inner},
		inner,
		map[string]interface{}{"message": inner, "extra": true},
	}
	out := UnwrapWrappedMessages(msgs)
	assert.Equal(t, inner, out[0], "single-key {message:...} wrapper unwraps")
	assert.Equal(t, inner, out[1])
	assert.Equal(t, msgs[2], out[2], "multi-key objects stay wrapped")
}

func TestNormalizeToMessages(t *testing.T) {
	out := NormalizeToMessages("hello", "user")
	require.Len(t, out, 1)
	msg := out[0].(map[string]interface{})
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hello", msg["content"])

	arr := []interface{}{map[string]interface{}{"role": "assistant", "content": "ok"}}
	assert.Equal(t, arr, NormalizeToMessages(arr, "user"))

	wrapped := map[string]interface{}{"messages": arr}
	assert.Equal(t, arr, NormalizeToMessages(wrapped, "user"))

	obj := map[string]interface{}{"role": "user", "content": "x"}
	assert.Equal(t, []interface{}{obj}, NormalizeToMessages(obj, "user"))

	assert.Nil(t, NormalizeToMessages(nil, "user"))
}

func TestExtractSystemInstructionFromMessages(t *testing.T) {
	sys, ok := ExtractSystemInstructionFromMessages([]interface{}{
		map[string]interface{}{"role": "system", "content": "Be terse."},
		map[string]interface{}{"role": "user", "content": "Hi"},
	})
	require.True(t, ok)
	assert.Equal(t, "Be terse.", sys)

	// Block-array content concatenates the extracted texts.
	sys, ok = ExtractSystemInstructionFromMessages([]interface{}{
		map[string]interface{}{"role": "system", "content": []interface{}{
			map[string]interface{}{"type": "text", "text": "Part one. "},
			map[string]interface{}{"type": "text", "content": "Part two."},
			map[string]interface{}{"type": "image_url", "url": "ignored"},
		}},
	})
	require.True(t, ok)
	assert.Equal(t, "Part one. Part two.", sys)

	// Not a system-first array.
	_, ok = ExtractSystemInstructionFromMessages([]interface{}{
		map[string]interface{}{"role": "user", "content": "Hi"},
		map[string]interface{}{"role": "system", "content": "late system"},
	})
	assert.False(t, ok)

	_, ok = ExtractSystemInstructionFromMessages(nil)
	assert.False(t, ok)
}

func TestStripLeadingSystemMessage(t *testing.T) {
	msgs := []interface{}{
		map[string]interface{}{"role": "system", "content": "s"},
		map[string]interface{}{"role": "user", "content": "u"},
	}
	out := StripLeadingSystemMessage(msgs)
	require.Len(t, out, 1)
	assert.Equal(t, "user", out[0].(map[string]interface{})["role"])

	noSys := []interface{}{map[string]interface{}{"role": "user", "content": "u"}}
	assert.Equal(t, noSys, StripLeadingSystemMessage(noSys))
}

func TestNormaliseModelFromAiModelObject(t *testing.T) {
	assert.Equal(t, "openai/gpt-4", NormaliseModelFromAiModelObject("gpt-4", "openai.chat"))
	assert.Equal(t, "anthropic/claude", NormaliseModelFromAiModelObject("claude", "anthropic"))
	assert.Equal(t, "gpt-4", NormaliseModelFromAiModelObject("gpt-4", ""))
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/json", DetectMimeType(`{"a":1}`, ""))
	assert.Equal(t, "text/plain", DetectMimeType("hello", ""))
	assert.Equal(t, "text/plain", DetectMimeType("not json", "application/json"))
	assert.Equal(t, "text/markdown", DetectMimeType("# h", "text/markdown"))
}

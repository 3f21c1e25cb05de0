package canonicalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokle/internal/core/domain/observability"
)

func TestLangWatch_ChatMessagesWrapper(t *testing.T) {
	span := testSpan("dspy.predict", "", map[string]interface{}{
		"langwatch.input": `{"type":"chat_messages","value":[{"role":"system","content":"You are helpful."},{"role":"user","content":"Hi"}]}`,
	})

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, attrs, observability.KeyGenAIInputMessages)), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, "Hi", msgs[0]["content"])

	assert.Equal(t, "You are helpful.", attrString(t, attrs, observability.KeyGenAISystemInstruction))
	assert.Equal(t, "llm", attrString(t, attrs, observability.KeyLangWatchSpanType))

	vt, ok := attrs.Get(observability.KeyLangWatchReservedValueTypes)
	require.True(t, ok)
	arr, ok := vt.ArrayValue()
	require.True(t, ok)
	var entries []string
	for _, v := range arr {
		s, _ := v.StringValue()
		entries = append(entries, s)
	}
	assert.Contains(t, entries, "langwatch.input=chat_messages")
}

func TestLangWatch_MetadataHoist(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"metadata": `{"user_id":"u1","thread_id":"t1","customer_id":"c1","labels":["a","b"],"env":"prod"}`,
	})

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	assert.Equal(t, "u1", attrString(t, attrs, observability.KeyLangWatchUserID))
	assert.Equal(t, "t1", attrString(t, attrs, observability.KeyGenAIConversationID))
	assert.Equal(t, "c1", attrString(t, attrs, observability.KeyLangWatchCustomerID))
	assert.Equal(t, "prod", attrString(t, attrs, "metadata.env"))
	assert.False(t, attrs.Has("metadata"), "raw metadata blob must be consumed")

	labels, ok := attrs.Get(observability.KeyLangWatchLabels)
	require.True(t, ok)
	arr, ok := labels.ArrayValue()
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestLangWatch_MetadataDropsFrameworkIOKeys(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"metadata": `{"env":"prod","input":"dup payload","messages":[{"role":"user"}]}`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "prod", attrString(t, result.Attributes, "metadata.env"))
	assert.False(t, result.Attributes.Has("metadata.input"))
	assert.False(t, result.Attributes.Has("metadata.messages"))
}

func TestLangWatch_MetadataNonObjectFallsBackToRaw(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"metadata": "just a note",
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "just a note", attrString(t, result.Attributes, observability.KeyMetadataRaw))
	assert.False(t, result.Attributes.Has("metadata"))
}

func TestLangWatch_ExplicitIDsBeatMetadata(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.user.id": "explicit",
		"metadata":          `{"user_id":"from-metadata"}`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "explicit", attrString(t, result.Attributes, observability.KeyLangWatchUserID))
}

func TestLangWatch_ThreadIDAliases(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.thread_id": "thread-9",
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "thread-9", attrString(t, result.Attributes, observability.KeyGenAIConversationID))
	assert.False(t, result.Attributes.Has("langwatch.thread_id"))
}

func TestLangWatch_JSONOutputWrapperJoinsItems(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.output": `{"type":"json","value":["first",{"k":2}]}`,
	})

	result := canonicalizeSpan(t, span)

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, result.Attributes, observability.KeyGenAIOutputMessages)), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "assistant", msgs[0]["role"])
	assert.Equal(t, "first\n{\"k\":2}", msgs[0]["content"])
}

func TestLangWatch_TextWrapperUnwrapsValue(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.input": `{"type":"text","value":"plain prompt"}`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "plain prompt", attrString(t, result.Attributes, observability.KeyLangWatchInput))

	vt, ok := result.Attributes.Get(observability.KeyLangWatchReservedValueTypes)
	require.True(t, ok)
	arr, _ := vt.ArrayValue()
	s, _ := arr[0].StringValue()
	assert.Equal(t, "langwatch.input=text", s)
}

func TestLangWatch_SingleElementArrayFlattens(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.input": `["only one"]`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "only one", attrString(t, result.Attributes, observability.KeyLangWatchInput))
}

func TestLangWatch_MetricsBlob(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.metrics": `{"type":"json","value":{"promptTokens":12,"completionTokens":4,"cost":0.003,"tokensEstimated":true}}`,
	})

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	tokens, ok := attrs.Get(observability.KeyGenAIUsageInputTokens)
	require.True(t, ok)
	i, _ := tokens.IntValue()
	assert.Equal(t, int64(12), i)

	out, ok := attrs.Get(observability.KeyGenAIUsageOutputTokens)
	require.True(t, ok)
	i, _ = out.IntValue()
	assert.Equal(t, int64(4), i)

	cost, ok := attrs.Get(observability.KeyLangWatchSpanCost)
	require.True(t, ok)
	d, _ := cost.DoubleValue()
	assert.InDelta(t, 0.003, d, 1e-9)

	estimated, ok := attrs.Get(observability.KeyLangWatchTokensEstimated)
	require.True(t, ok)
	b, _ := estimated.BoolValue()
	assert.True(t, b)
}

func TestLangWatch_MetricsZeroTokensSkipped(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.metrics": `{"type":"json","value":{"promptTokens":0,"completionTokens":0}}`,
	})

	result := canonicalizeSpan(t, span)
	assert.False(t, result.Attributes.Has(observability.KeyGenAIUsageInputTokens))
	assert.False(t, result.Attributes.Has(observability.KeyGenAIUsageOutputTokens))
}

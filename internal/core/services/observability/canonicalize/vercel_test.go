package canonicalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokle/internal/core/domain/observability"
)

func TestVercel_GenerateText(t *testing.T) {
	span := testSpan("ai.generateText", "ai", map[string]interface{}{
		"ai.model":  `{"id":"gpt-4","provider":"openai.chat"}`,
		"ai.usage":  `{"promptTokens":10,"completionTokens":5}`,
		"ai.prompt": "Hi",
	})

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	assert.Equal(t, "llm", attrString(t, attrs, observability.KeyLangWatchSpanType))
	assert.Equal(t, "openai/gpt-4", attrString(t, attrs, observability.KeyGenAIRequestModel))
	assert.Equal(t, "openai/gpt-4", attrString(t, attrs, observability.KeyGenAIResponseModel))

	in, ok := attrs.Get(observability.KeyGenAIUsageInputTokens)
	require.True(t, ok)
	i, _ := in.IntValue()
	assert.Equal(t, int64(10), i)

	out, ok := attrs.Get(observability.KeyGenAIUsageOutputTokens)
	require.True(t, ok)
	i, _ = out.IntValue()
	assert.Equal(t, int64(5), i)

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, attrs, observability.KeyGenAIInputMessages)), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, "Hi", msgs[0]["content"])
}

func TestVercel_RequiresAIScope(t *testing.T) {
	span := testSpan("ai.generateText", "not-ai", map[string]interface{}{
		"ai.model": `{"id":"gpt-4","provider":"openai.chat"}`,
	})

	result := canonicalizeSpan(t, span)
	assert.False(t, result.Attributes.Has(observability.KeyGenAIRequestModel))
	assert.True(t, result.Attributes.Has("ai.model"), "unrecognized vendor attributes pass through")
}

func TestVercel_ToolCallSpanType(t *testing.T) {
	span := testSpan("ai.toolCall", "ai", nil)
	result := canonicalizeSpan(t, span)
	assert.Equal(t, "tool", attrString(t, result.Attributes, observability.KeyLangWatchSpanType))
}

func TestVercel_PromptMessagesForm(t *testing.T) {
	span := testSpan("ai.streamText", "ai", map[string]interface{}{
		"ai.prompt.messages": `[{"role":"system","content":"Sys."},{"role":"user","content":"Q"}]`,
	})

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	assert.Equal(t, "Sys.", attrString(t, attrs, observability.KeyGenAISystemInstruction))
	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, attrs, observability.KeyGenAIInputMessages)), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
}

func TestVercel_ResponseTextAndToolCalls(t *testing.T) {
	span := testSpan("ai.generateText", "ai", map[string]interface{}{
		"ai.response.text":      "All done",
		"ai.response.toolCalls": `[{"toolName":"search","args":{"q":"go"}}]`,
	})

	result := canonicalizeSpan(t, span)

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, result.Attributes, observability.KeyGenAIOutputMessages)), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "assistant", msgs[0]["role"])
	assert.Equal(t, "All done", msgs[0]["content"])
	calls, ok := msgs[0]["tool_calls"].([]interface{})
	require.True(t, ok)
	assert.Len(t, calls, 1)
}

func TestVercel_ResponseObjectFallback(t *testing.T) {
	span := testSpan("ai.generateObject", "ai", map[string]interface{}{
		"ai.response.object": `{"answer":42}`,
	})

	result := canonicalizeSpan(t, span)

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, result.Attributes, observability.KeyGenAIOutputMessages)), &msgs))
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"answer":42}`, msgs[0]["content"].(string))
}

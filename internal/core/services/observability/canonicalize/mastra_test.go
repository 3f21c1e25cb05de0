package canonicalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokle/internal/core/domain/observability"
)

func TestMastra_EvalDetectionOnOrphanModelStep(t *testing.T) {
	span := testSpan("model_step", "@mastra/otel", map[string]interface{}{
		"mastra.span.type":        "model_step",
		"mastra.model_step.input": `{"body":{"model":"grok","messages":[{"role":"system","content":"Score translation"}]}}`,
		"mastra.model_step.output": `{"object":{"score":9}}`,
	})
	// ParentSpanID is nil: orphan model_step => evaluation.

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	assert.Equal(t, "evaluation", attrString(t, attrs, observability.KeyLangWatchSpanType))
	assert.Equal(t, "Score translation", attrString(t, attrs, observability.KeyLangWatchInput))
	assert.JSONEq(t, `{"score":9}`, attrString(t, attrs, observability.KeyLangWatchOutput))
	assert.Equal(t, "Eval: Score translation", span.Name)
}

func TestMastra_EvalDetectionViaResponseFormat(t *testing.T) {
	parent := "abcdabcdabcdabcd"
	span := testSpan("model_step", "@mastra/otel", map[string]interface{}{
		"mastra.span.type":        "model_step",
		"mastra.model_step.input": `{"body":{"model":"gpt-4","response_format":{"type":"json_schema"},"messages":[{"role":"system","content":"Judge"}]}}`,
	})
	span.ParentSpanID = &parent

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "evaluation", attrString(t, result.Attributes, observability.KeyLangWatchSpanType))
}

func TestMastra_ChildModelStepIsLLM(t *testing.T) {
	parent := "abcdabcdabcdabcd"
	span := testSpan("model_step", "@mastra/otel", map[string]interface{}{
		"mastra.span.type":         "model_step",
		"mastra.model_step.input":  `{"body":{"model":"gpt-4","messages":[{"role":"system","content":"Be kind."},{"role":"user","content":"Hello"}]}}`,
		"mastra.model_step.output": `{"text":"Hi there"}`,
	})
	span.ParentSpanID = &parent

	result := canonicalizeSpan(t, span)
	attrs := result.Attributes

	assert.Equal(t, "llm", attrString(t, attrs, observability.KeyLangWatchSpanType))
	assert.Equal(t, "gpt-4", attrString(t, attrs, observability.KeyGenAIRequestModel))
	assert.Equal(t, "Be kind.", attrString(t, attrs, observability.KeyGenAISystemInstruction))
	assert.Equal(t, "Hello", attrString(t, attrs, observability.KeyLangWatchInput))
	assert.Equal(t, "Hi there", attrString(t, attrs, observability.KeyLangWatchOutput))
	assert.Equal(t, "LLM Step: gpt-4", span.Name)

	var outMsgs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(attrString(t, attrs, observability.KeyGenAIOutputMessages)), &outMsgs))
	require.Len(t, outMsgs, 1)
	assert.Equal(t, "assistant", outMsgs[0]["role"])
	assert.Equal(t, "Hi there", outMsgs[0]["content"])
}

func TestMastra_ModelGenerationDisplayName(t *testing.T) {
	span := testSpan("model_generation", "@mastra/otel", map[string]interface{}{
		"mastra.span.type": "model_generation",
		"mastra.metadata":  `{"modelMetadata":{"modelId":"gemini-pro"}}`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "llm", attrString(t, result.Attributes, observability.KeyLangWatchSpanType))
	assert.Equal(t, "LLM: gemini-pro", span.Name, "model_generation spans use the bare LLM prefix")
}

func TestMastra_SpanTypeMapping(t *testing.T) {
	tests := []struct {
		mastraType string
		want       string
	}{
		{"agent_run", "agent"},
		{"workflow_run", "workflow"},
		{"workflow_step", "component"},
		{"processor_run", "component"},
		{"model_generation", "llm"},
		{"model_chunk", "span"},
		{"tool_call", "tool"},
		{"mcp_tool_call", "tool"},
		{"generic", "span"},
		{"something_new", "span"},
	}
	for _, tt := range tests {
		t.Run(tt.mastraType, func(t *testing.T) {
			span := testSpan("op", "@mastra/otel", map[string]interface{}{
				"mastra.span.type": tt.mastraType,
			})
			result := canonicalizeSpan(t, span)
			assert.Equal(t, tt.want, attrString(t, result.Attributes, observability.KeyLangWatchSpanType))
		})
	}
}

func TestMastra_TakesPrecedenceOverExistingType(t *testing.T) {
	span := testSpan("op", "@mastra/otel", map[string]interface{}{
		"langwatch.span.type": "span",
		"mastra.span.type":    "agent_run",
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "agent", attrString(t, result.Attributes, observability.KeyLangWatchSpanType))
}

func TestMastra_ThreadIDFromMetadata(t *testing.T) {
	span := testSpan("op", "@mastra/otel", map[string]interface{}{
		"mastra.span.type": "agent_run",
		"mastra.metadata":  `{"threadId":"th-1","modelMetadata":{"modelId":"gemini"}}`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "th-1", attrString(t, result.Attributes, observability.KeyGenAIConversationID))
}

func TestMastra_ModelFromMetadataFallback(t *testing.T) {
	span := testSpan("op", "@mastra/otel", map[string]interface{}{
		"mastra.span.type": "model_generation",
		"mastra.metadata":  `{"modelMetadata":{"modelId":"gemini-pro"}}`,
	})

	result := canonicalizeSpan(t, span)
	assert.Equal(t, "gemini-pro", attrString(t, result.Attributes, observability.KeyGenAIRequestModel))
}

func TestMastra_CachedTokenAlias(t *testing.T) {
	span := testSpan("op", "@mastra/otel", map[string]interface{}{
		"mastra.span.type":                  "model_generation",
		"gen_ai.usage.cached_input_tokens": "128",
	})

	result := canonicalizeSpan(t, span)
	v, ok := result.Attributes.Get(observability.KeyGenAIUsageCacheReadInputTokens)
	require.True(t, ok)
	i, _ := v.IntValue()
	assert.Equal(t, int64(128), i)
	assert.False(t, result.Attributes.Has("gen_ai.usage.cached_input_tokens"))
}

func TestMastra_NotDetectedWithoutScopeOrAttribute(t *testing.T) {
	span := testSpan("op", "some.other.scope", map[string]interface{}{
		"unrelated": "x",
	})

	result := canonicalizeSpan(t, span)
	if v, ok := result.Attributes.Get(observability.KeyLangWatchSpanType); ok {
		s, _ := v.StringValue()
		assert.NotEqual(t, "span", s)
	}
}

func TestMastra_EvalExcerptTruncation(t *testing.T) {
	long := "This system prompt is deliberately much longer than sixty characters to trigger truncation"
	span := testSpan("model_step", "@mastra/otel", map[string]interface{}{
		"mastra.span.type":        "model_step",
		"mastra.model_step.input": `{"body":{"model":"grok","messages":[{"role":"system","content":"` + long + `"}]}}`,
	})

	_ = canonicalizeSpan(t, span)
	require.True(t, len(span.Name) > len("Eval: "))
	label := span.Name[len("Eval: "):]
	assert.Len(t, []rune(label), 60)
	assert.Equal(t, "...", label[len(label)-3:])
	assert.Equal(t, long[:57], label[:57])
}

package canonicalize

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokle/internal/core/domain/observability"
)

// testSpan builds a NormalizedSpan whose attributes are coerced through
// ToAttributeValue, the same way the OTLP decode stage populates them.
func testSpan(name, scopeName string, attrs map[string]interface{}) *observability.NormalizedSpan {
	m := observability.NewAttributeMap()
	for k, v := range attrs {
		m.Set(k, ToAttributeValue(v))
	}
	return &observability.NormalizedSpan{
		Name:                 name,
		InstrumentationScope: observability.InstrumentationScope{Name: scopeName},
		SpanAttributes:       m,
	}
}

func canonicalizeSpan(t *testing.T, span *observability.NormalizedSpan) *CanonicalizeResult {
	t.Helper()
	svc := NewCanonicalizeService(slog.Default())
	result, err := svc.Canonicalize(span)
	require.NoError(t, err)
	return result
}

func attrString(t *testing.T, m *observability.AttributeMap, key string) string {
	t.Helper()
	v, ok := m.Get(key)
	require.True(t, ok, "expected attribute %q", key)
	s, ok := v.StringValue()
	require.True(t, ok, "expected %q to carry a string", key)
	return s
}

type overwriteExtractor struct{}

func (overwriteExtractor) ID() string { return "test-overwrite" }
func (overwriteExtractor) Apply(ctx *ExtractorContext) error {
	ctx.SetAttr("custom.key", "canonical")
	ctx.RecordRule("test:overwrite")
	return nil
}

func TestCanonicalize_OutputWinsOnCollision(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"custom.key": "raw",
		"untouched":  "kept",
	})

	svc := NewCanonicalizeService(slog.Default())
	svc.RegisterExtractor(overwriteExtractor{})
	result, err := svc.Canonicalize(span)
	require.NoError(t, err)

	assert.Equal(t, "canonical", attrString(t, result.Attributes, "custom.key"))
	assert.Equal(t, "kept", attrString(t, result.Attributes, "untouched"))
	assert.Contains(t, result.AppliedRules, "test:overwrite")
}

func TestCanonicalize_TakenAttributesLeaveNoResidue(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"gen_ai.system": "openai",
	})

	result := canonicalizeSpan(t, span)

	// gen_ai.system is taken by the GenAI extractor and re-emitted under the
	// canonical provider key only.
	assert.False(t, result.Attributes.Has("gen_ai.system"))
	assert.Equal(t, "openai", attrString(t, result.Attributes, observability.KeyGenAIProviderName))
}

func TestCanonicalize_IdempotentOnCanonicalInput(t *testing.T) {
	span := testSpan("op", "", map[string]interface{}{
		"langwatch.span.type":   "llm",
		"gen_ai.input.messages": `[{"role":"user","content":"Hi"}]`,
		"gen_ai.provider.name":  "openai",
	})

	first := canonicalizeSpan(t, span)

	span2 := &observability.NormalizedSpan{
		Name:           "op",
		SpanAttributes: first.Attributes,
		Events:         first.Events,
	}
	second := canonicalizeSpan(t, span2)

	assert.Equal(t, attrString(t, first.Attributes, observability.KeyLangWatchSpanType),
		attrString(t, second.Attributes, observability.KeyLangWatchSpanType))
	assert.Equal(t, attrString(t, first.Attributes, observability.KeyGenAIInputMessages),
		attrString(t, second.Attributes, observability.KeyGenAIInputMessages))
	assert.Equal(t, attrString(t, first.Attributes, observability.KeyGenAIProviderName),
		attrString(t, second.Attributes, observability.KeyGenAIProviderName))
}

func TestCanonicalize_EventsSurviveWhenUnconsumed(t *testing.T) {
	span := testSpan("op", "", nil)
	attrs := observability.NewAttributeMap()
	attrs.Set("note", observability.StringAttribute("x"))
	span.Events = []observability.CanonicalEvent{{Name: "custom.event", TimeUnixMs: 5, Attributes: attrs}}

	result := canonicalizeSpan(t, span)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "custom.event", result.Events[0].Name)
}

package canonicalize

import (
	"strings"

	"brokle/internal/core/domain/observability"
)

// OpenInferenceExtractor canonicalizes the OpenInference (Arize/Phoenix)
// instrumentation namespace.
type OpenInferenceExtractor struct{}

func NewOpenInferenceExtractor() *OpenInferenceExtractor { return &OpenInferenceExtractor{} }

func (e *OpenInferenceExtractor) ID() string { return "openinference" }

// openInferenceKindMap maps OpenInference span kinds to canonical span
// types; kinds already spelled as an allowed type (case-insensitive) pass
// straight through.
var openInferenceKindMap = map[string]string{
	"LLM":       "llm",
	"AGENT":     "agent",
	"TOOL":      "tool",
	"RETRIEVER": "rag",
	"CHAIN":     "span",
	"EMBEDDING": "span",
	"RERANKER":  "span",
	"GUARDRAIL": "span",
	"EVALUATOR": "span",
}

func (e *OpenInferenceExtractor) Apply(ctx *ExtractorContext) error {
	if v, ok := ctx.Bag.Take("openinference.span.kind"); ok {
		if kind, ok := v.StringValue(); ok && kind != "" {
			resolved := kind
			if mapped, ok := openInferenceKindMap[strings.ToUpper(kind)]; ok {
				resolved = mapped
			}
			if observability.AllowedSpanTypes[strings.ToLower(resolved)] {
				ctx.SetAttr(observability.KeyLangWatchSpanType, strings.ToLower(resolved))
				ctx.RecordRule("openinference:span_kind")
			}
		}
	}

	if v, ok := ctx.Bag.Take("user.id"); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			ctx.SetAttr(observability.KeyLangWatchUserID, s)
			ctx.RecordRule("openinference:user_id")
		}
	}

	if v, ok := ctx.Bag.Take("session.id"); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			ctx.SetAttr(observability.KeyGenAIConversationID, s)
			ctx.RecordRule("openinference:session_id")
		}
	}

	if v, ok := ctx.Bag.Take("tag.tags"); ok {
		decoded := decodeMetadataValue(v)
		if arr, ok := CoerceToStringArray(decoded); ok {
			ctx.SetAttr(observability.KeyLangWatchLabels, arr)
			ctx.RecordRule("openinference:tags")
		}
	}

	return nil
}

package canonicalize

import (
	"strings"

	"brokle/internal/core/domain/observability"
)

// TraceloopExtractor canonicalizes the Traceloop (OpenLLMetry) attribute
// namespace.
type TraceloopExtractor struct{}

func NewTraceloopExtractor() *TraceloopExtractor { return &TraceloopExtractor{} }

func (e *TraceloopExtractor) ID() string { return "traceloop" }

func (e *TraceloopExtractor) Apply(ctx *ExtractorContext) error {
	if v, ok := ctx.Bag.Take("traceloop.span.kind"); ok {
		if kind, ok := v.StringValue(); ok {
			lower := strings.ToLower(kind)
			if observability.AllowedSpanTypes[lower] {
				ctx.SetAttr(observability.KeyLangWatchSpanType, lower)
				ctx.RecordRule("traceloop:span_kind")
			}
		}
	}

	if key, _, ok := ctx.Bag.GetAny([]string{"traceloop.entity.input"}); ok {
		raw, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
		ctx.Bag.Take(key)
		msgs := NormalizeToMessages(DecodeMessagesPayload(raw), "user")
		ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(msgs))
		ctx.RecordRule("traceloop:entity_input")
	}

	if key, _, ok := ctx.Bag.GetAny([]string{"traceloop.entity.output"}); ok {
		raw, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
		ctx.Bag.Take(key)
		msgs := NormalizeToMessages(DecodeMessagesPayload(raw), "assistant")
		ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(msgs))
		ctx.RecordRule("traceloop:entity_output")
	}

	return nil
}

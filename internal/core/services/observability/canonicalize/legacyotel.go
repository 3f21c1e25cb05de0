package canonicalize

import (
	"strings"

	"brokle/internal/core/domain/observability"
)

// LegacyOtelExtractor canonicalizes older, pre-GenAI-semconv OTel
// instrumentation shapes: a bare "type" attribute, span.kind strings,
// input.value/output.value, and ad hoc error attributes.
type LegacyOtelExtractor struct{}

func NewLegacyOtelExtractor() *LegacyOtelExtractor { return &LegacyOtelExtractor{} }

func (e *LegacyOtelExtractor) ID() string { return "legacyotel" }

func (e *LegacyOtelExtractor) Apply(ctx *ExtractorContext) error {
	e.applySpanType(ctx)
	e.applyInputOutputValue(ctx)
	e.applyToolCallArgs(ctx)
	if errType, ok := consolidateErrorInfo(ctx); ok {
		ctx.SetAttr(observability.KeyErrorType, errType)
		ctx.RecordRule("legacyotel:error")
	}
	return nil
}

func (e *LegacyOtelExtractor) applySpanType(ctx *ExtractorContext) {
	if v, ok := ctx.Bag.Take("type"); ok {
		if s, ok := v.StringValue(); ok {
			lower := strings.ToLower(s)
			if observability.AllowedSpanTypes[lower] {
				ctx.SetAttr(observability.KeyLangWatchSpanType, lower)
				ctx.RecordRule("legacyotel:type")
			}
		}
	}

	if v, ok := ctx.Bag.Get("span.kind"); ok {
		if s, ok := v.StringValue(); ok && strings.Contains(strings.ToUpper(s), "SERVER") {
			ctx.SetAttrIfAbsent(observability.KeyLangWatchSpanType, "server")
			ctx.RecordRule("legacyotel:span_kind_server")
		}
	}

	if v, ok := ctx.Bag.Get("llm.request.type"); ok {
		if s, ok := v.StringValue(); ok && s == "chat" {
			ctx.SetAttrIfAbsent(observability.KeyLangWatchSpanType, "llm")
			ctx.RecordRule("legacyotel:llm_request_type")
		}
	}
}

func (e *LegacyOtelExtractor) applyInputOutputValue(ctx *ExtractorContext) {
	if v, ok := ctx.Bag.Take("input.value"); ok {
		ctx.SetAttrRaw(observability.KeyLangWatchInput, v)
		e.applyMimeType(ctx, "input.mime_type", observability.KeyLangWatchInputMimeType, v)
		ctx.RecordRule("legacyotel:input_value")
	}
	if v, ok := ctx.Bag.Take("output.value"); ok {
		ctx.SetAttrRaw(observability.KeyLangWatchOutput, v)
		e.applyMimeType(ctx, "output.mime_type", observability.KeyLangWatchOutputMimeType, v)
		ctx.RecordRule("legacyotel:output_value")
	}
}

// applyMimeType normalizes the OpenInference-style declared MIME type
// alongside a raw value: a declared application/json that doesn't actually
// parse degrades to text/plain, and a missing declaration is auto-detected.
func (e *LegacyOtelExtractor) applyMimeType(ctx *ExtractorContext, rawKey, outKey string, value observability.AttributeValue) {
	declared := ""
	if dv, ok := ctx.Bag.Take(rawKey); ok {
		declared, _ = dv.StringValue()
	}
	s, isStr := value.StringValue()
	if !isStr {
		if declared != "" {
			ctx.SetAttr(outKey, declared)
		}
		return
	}
	ctx.SetAttr(outKey, DetectMimeType(s, declared))
}

func (e *LegacyOtelExtractor) applyToolCallArgs(ctx *ExtractorContext) {
	key, _, ok := ctx.Bag.GetAny([]string{"ai.toolCall.args"})
	if !ok {
		return
	}
	parsed, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)
	ctx.SetAttr(observability.KeyLangWatchInput, parsed)
	ctx.RecordRule("legacyotel:tool_call_args")
}

// consolidateErrorInfo implements the shared error-consolidation priority
// used by both LegacyOtel and Fallback: an explicit
// span-error flag plus message, else exception.type/exception.message, else
// status.message.
func consolidateErrorInfo(ctx *ExtractorContext) (string, bool) {
	flagged := false
	if v, ok := ctx.Bag.Take("span.error"); ok {
		flagged, _ = v.BoolValue()
	}
	if msgV, ok := ctx.Bag.Take("span.error.message"); ok {
		msg, _ := msgV.StringValue()
		if flagged && msg != "" {
			return msg, true
		}
	}

	excType, hasType := ctx.Bag.Take("exception.type")
	excMsg, hasMsg := ctx.Bag.Take("exception.message")
	if hasType || hasMsg {
		typeStr, _ := excType.StringValue()
		msgStr, _ := excMsg.StringValue()
		switch {
		case typeStr != "" && msgStr != "":
			return typeStr + ": " + msgStr, true
		case typeStr != "":
			return typeStr, true
		case msgStr != "":
			return msgStr, true
		}
	}

	if msg := ctx.Span.StatusMessage(); msg != nil && *msg != "" {
		return *msg, true
	}

	return "", false
}

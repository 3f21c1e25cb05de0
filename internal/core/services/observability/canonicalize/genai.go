package canonicalize

import (
	"brokle/internal/core/domain/observability"
)

// GenAIExtractor canonicalizes OTel GenAI semantic-convention attributes and
// their legacy aliases.
type GenAIExtractor struct{}

func NewGenAIExtractor() *GenAIExtractor { return &GenAIExtractor{} }

func (e *GenAIExtractor) ID() string { return "genai" }

func (e *GenAIExtractor) Apply(ctx *ExtractorContext) error {
	e.applyOperationName(ctx)
	e.applyProvider(ctx)
	e.applyAgentName(ctx)
	e.applyModel(ctx)
	e.applyMessages(ctx)
	e.applyOutputMessages(ctx)
	e.applyUsageTokens(ctx)
	e.applyRequestParameters(ctx)
	e.applyInvocationParameters(ctx)
	return nil
}

var spanTypeToOperationName = map[string]string{
	"llm":   "chat",
	"tool":  "tool",
	"agent": "agent",
	"rag":   "retrieval",
}

func (e *GenAIExtractor) applyOperationName(ctx *ExtractorContext) {
	typ, ok := ctx.Out.Get(observability.KeyLangWatchSpanType)
	if !ok {
		return
	}
	s, ok := typ.StringValue()
	if !ok {
		return
	}
	op, ok := spanTypeToOperationName[s]
	if !ok {
		return
	}
	ctx.SetAttrIfAbsent(observability.KeyGenAIOperationName, op)
}

func (e *GenAIExtractor) applyProvider(ctx *ExtractorContext) {
	if v, ok := ctx.Bag.Take("gen_ai.system"); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			ctx.SetAttr(observability.KeyGenAIProviderName, s)
			ctx.RecordRule("genai:provider")
		}
	}
}

func (e *GenAIExtractor) applyAgentName(ctx *ExtractorContext) {
	_, v, ok := ctx.Bag.TakeAny([]string{"gen_ai.agent.name", "gen_ai.agent", "agent.name"})
	if !ok {
		return
	}
	if s, ok := v.StringValue(); ok && s != "" {
		ctx.SetAttr(observability.KeyGenAIAgentName, s)
		ctx.RecordRule("genai:agent_name")
	}
}

func (e *GenAIExtractor) applyModel(ctx *ExtractorContext) {
	v, ok := ctx.Bag.Take("llm.model_name")
	if !ok {
		return
	}
	s, ok := v.StringValue()
	if !ok || s == "" {
		return
	}
	// The legacy alias only fills in when neither modern model key is
	// already present.
	if ctx.Bag.Has(observability.KeyGenAIRequestModel) || ctx.Bag.Has(observability.KeyGenAIResponseModel) {
		return
	}
	ctx.SetAttrIfAbsent(observability.KeyGenAIRequestModel, s)
	ctx.SetAttrIfAbsent(observability.KeyGenAIResponseModel, s)
	ctx.RecordRule("genai:model")
}

func (e *GenAIExtractor) applyMessages(ctx *ExtractorContext) {
	if existing, ok := ctx.Bag.GetParsed(observability.KeyGenAIInputMessages, observability.DefaultMaxParseSize); ok {
		if msgs, ok := existing.([]interface{}); ok {
			if sys, hasSys := ExtractSystemInstructionFromMessages(msgs); hasSys {
				ctx.SetAttrIfAbsent(observability.KeyGenAISystemInstruction, sys)
				stripped := StripLeadingSystemMessage(msgs)
				ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(stripped))
				ctx.RecordRule("genai:strip_existing_system")
			}
		}
		return
	}

	key, _, ok := ctx.Bag.GetAny([]string{"gen_ai.prompt", "llm.input_messages"})
	if !ok {
		return
	}
	raw, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	msgs := NormalizeToMessages(DecodeMessagesPayload(raw), "user")
	if sys, hasSys := ExtractSystemInstructionFromMessages(msgs); hasSys {
		ctx.SetAttr(observability.KeyGenAISystemInstruction, sys)
		msgs = StripLeadingSystemMessage(msgs)
	}
	ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(msgs))
	ctx.AppendValueType(observability.KeyGenAIInputMessages, "chat_messages")
	ctx.RecordRule("genai:input_messages")
}

func (e *GenAIExtractor) applyOutputMessages(ctx *ExtractorContext) {
	if ctx.Bag.Has(observability.KeyGenAIOutputMessages) {
		return
	}
	key, _, ok := ctx.Bag.GetAny([]string{"gen_ai.completion", "llm.output_messages"})
	if !ok {
		return
	}
	raw, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	msgs := NormalizeToMessages(DecodeMessagesPayload(raw), "assistant")
	ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(msgs))
	ctx.AppendValueType(observability.KeyGenAIOutputMessages, "chat_messages")
	ctx.RecordRule("genai:output_messages")
}

func (e *GenAIExtractor) applyUsageTokens(ctx *ExtractorContext) {
	if _, v, ok := ctx.Bag.TakeAny([]string{observability.KeyGenAIUsageInputTokens, "gen_ai.usage.prompt_tokens"}); ok {
		if n, ok := AsNumber(attributeValueScalar(v)); ok {
			ctx.SetAttr(observability.KeyGenAIUsageInputTokens, int64(n))
			ctx.RecordRule("genai:usage_input_tokens")
		}
	}
	if _, v, ok := ctx.Bag.TakeAny([]string{observability.KeyGenAIUsageOutputTokens, "gen_ai.usage.completion_tokens"}); ok {
		if n, ok := AsNumber(attributeValueScalar(v)); ok {
			ctx.SetAttr(observability.KeyGenAIUsageOutputTokens, int64(n))
			ctx.RecordRule("genai:usage_output_tokens")
		}
	}
}

// extendedTokenFields and requestParamFields both use string->number
// coercion.
var extendedTokenFields = map[string]string{
	"gen_ai.usage.reasoning_tokens":         observability.KeyGenAIUsageReasoningTokens,
	"gen_ai.usage.cache_read_input_tokens":  observability.KeyGenAIUsageCacheReadInputTokens,
	"gen_ai.usage.cache_creation_input_tokens": observability.KeyGenAIUsageCacheCreationInputTokens,
}

var requestParamFields = map[string]string{
	"llm.invocation_parameters.temperature": observability.KeyGenAIRequestTemperature,
	"gen_ai.request.temperature":            observability.KeyGenAIRequestTemperature,
	"gen_ai.request.max_tokens":             observability.KeyGenAIRequestMaxTokens,
	"gen_ai.request.top_p":                  observability.KeyGenAIRequestTopP,
	"gen_ai.request.frequency_penalty":      observability.KeyGenAIRequestFrequencyPenalty,
	"gen_ai.request.presence_penalty":       observability.KeyGenAIRequestPresencePenalty,
	"gen_ai.request.seed":                   observability.KeyGenAIRequestSeed,
}

func (e *GenAIExtractor) applyRequestParameters(ctx *ExtractorContext) {
	for rawKey, canonicalKey := range extendedTokenFields {
		v, ok := ctx.Bag.Take(rawKey)
		if !ok {
			continue
		}
		if n, ok := AsNumber(attributeValueScalar(v)); ok {
			ctx.SetAttr(canonicalKey, int64(n))
			ctx.RecordRule("genai:extended_token:" + rawKey)
		}
	}
	for rawKey, canonicalKey := range requestParamFields {
		v, ok := ctx.Bag.Take(rawKey)
		if !ok {
			continue
		}
		if n, ok := AsNumber(attributeValueScalar(v)); ok {
			ctx.SetAttr(canonicalKey, n)
			ctx.RecordRule("genai:request_param:" + rawKey)
		}
	}
}

func (e *GenAIExtractor) applyInvocationParameters(ctx *ExtractorContext) {
	key, _, ok := ctx.Bag.GetAny([]string{"llm.invocation_parameters"})
	if !ok {
		return
	}
	parsed, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return
	}
	ctx.RecordRule("genai:invocation_parameters")

	if v, ok := AsNumber(obj["temperature"]); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIRequestTemperature, v)
	}
	if v, ok := AsNumber(obj["max_tokens"]); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIRequestMaxTokens, int64(v))
	}
	if v, ok := AsNumber(obj["top_p"]); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIRequestTopP, v)
	}
	if v, ok := AsNumber(obj["frequency_penalty"]); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIRequestFrequencyPenalty, v)
	}
	if v, ok := AsNumber(obj["presence_penalty"]); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIRequestPresencePenalty, v)
	}
	if v, ok := AsNumber(obj["seed"]); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIRequestSeed, int64(v))
	}
	if stop, ok := CoerceToStringArray(obj["stop"]); ok {
		ctx.SetAttr(observability.KeyGenAIRequestStopSequences, stop)
	}
	if n, ok := AsNumber(obj["n"]); ok && n != 1 {
		ctx.SetAttr(observability.KeyGenAIRequestChoiceCount, int64(n))
	}
}

// attributeValueScalar renders an AttributeValue back to a plain scalar for
// AsNumber's string/float acceptance, since extractors work with decoded
// bag values rather than raw interface{}.
func attributeValueScalar(v observability.AttributeValue) interface{} {
	if s, ok := v.StringValue(); ok {
		return s
	}
	if i, ok := v.IntValue(); ok {
		return i
	}
	if d, ok := v.DoubleValue(); ok {
		return d
	}
	if b, ok := v.BoolValue(); ok {
		return b
	}
	return nil
}

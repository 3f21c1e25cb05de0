package canonicalize

import (
	"strings"

	"brokle/internal/core/domain/observability"
)

// VercelExtractor canonicalizes the Vercel AI SDK's "ai.*" attribute
// namespace. It only runs when the instrumentation scope name is exactly
// "ai".
type VercelExtractor struct{}

func NewVercelExtractor() *VercelExtractor { return &VercelExtractor{} }

func (e *VercelExtractor) ID() string { return "vercel" }

func (e *VercelExtractor) Apply(ctx *ExtractorContext) error {
	if ctx.Span.InstrumentationScopeName() != "ai" {
		return nil
	}

	e.applySpanType(ctx)
	e.applyModel(ctx)
	e.applyUsage(ctx)
	e.applyInputMessages(ctx)
	e.applyOutputMessages(ctx)
	return nil
}

func (e *VercelExtractor) applySpanType(ctx *ExtractorContext) {
	name := ctx.Span.Name()
	var typ string
	switch {
	case strings.HasPrefix(name, "ai.toolCall"):
		typ = "tool"
	case strings.HasPrefix(name, "ai.generateText"), strings.HasPrefix(name, "ai.streamText"),
		strings.HasPrefix(name, "ai.generateObject"), strings.HasPrefix(name, "ai.streamObject"):
		typ = "llm"
	case strings.HasPrefix(name, "ai.embed"):
		typ = "span"
	case strings.HasPrefix(name, "ai.agent"):
		typ = "agent"
	}
	if typ != "" {
		ctx.SetAttr(observability.KeyLangWatchSpanType, typ)
		ctx.RecordRule("vercel:span_type:" + typ)
	}
}

func (e *VercelExtractor) applyModel(ctx *ExtractorContext) {
	key, _, ok := ctx.Bag.GetAny([]string{"ai.model"})
	if !ok {
		return
	}
	parsed, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return
	}
	id, _ := obj["id"].(string)
	provider, _ := obj["provider"].(string)
	if id == "" {
		return
	}
	model := NormaliseModelFromAiModelObject(id, provider)
	ctx.SetAttrIfAbsent(observability.KeyGenAIRequestModel, model)
	ctx.SetAttrIfAbsent(observability.KeyGenAIResponseModel, model)
	ctx.RecordRule("vercel:model")
}

func (e *VercelExtractor) applyUsage(ctx *ExtractorContext) {
	key, _, ok := ctx.Bag.GetAny([]string{"ai.usage"})
	if !ok {
		return
	}
	parsed, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return
	}
	if n, ok := AsNumber(firstNonNil(obj["promptTokens"], obj["inputTokens"])); ok && n > 0 {
		ctx.SetAttrIfAbsent(observability.KeyGenAIUsageInputTokens, int64(n))
	}
	if n, ok := AsNumber(firstNonNil(obj["completionTokens"], obj["outputTokens"])); ok && n > 0 {
		ctx.SetAttrIfAbsent(observability.KeyGenAIUsageOutputTokens, int64(n))
	}
	ctx.RecordRule("vercel:usage")
}

func firstNonNil(vals ...interface{}) interface{} {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func (e *VercelExtractor) applyInputMessages(ctx *ExtractorContext) {
	key, _, ok := ctx.Bag.GetAny([]string{"ai.prompt.messages", "ai.prompt"})
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
	ctx.RecordRule("vercel:input_messages")
}

func (e *VercelExtractor) applyOutputMessages(ctx *ExtractorContext) {
	var text interface{}
	var hasText bool
	var toolCalls interface{}
	var hasToolCalls bool

	if v, ok := ctx.Bag.Take("ai.response.text"); ok {
		text, hasText = decodeMetadataValue(v), true
	} else if v, ok := ctx.Bag.Take("ai.result.text"); ok {
		text, hasText = decodeMetadataValue(v), true
	}
	if v, ok := ctx.Bag.Take("ai.response.toolCalls"); ok {
		toolCalls, hasToolCalls = decodeMetadataValue(v), true
	} else if v, ok := ctx.Bag.Take("ai.result.toolCalls"); ok {
		toolCalls, hasToolCalls = decodeMetadataValue(v), true
	}

	if !hasText && !hasToolCalls {
		if v, ok := ctx.Bag.Take("ai.response.object"); ok {
			e.setSingleOutputMessage(ctx, stringify(decodeMetadataValue(v)))
			return
		}
		if v, ok := ctx.Bag.Take("ai.result.object"); ok {
			e.setSingleOutputMessage(ctx, stringify(decodeMetadataValue(v)))
			return
		}
		return
	}

	msg := map[string]interface{}{"role": "assistant"}
	if hasText {
		msg["content"] = text
	} else {
		msg["content"] = ""
	}
	if hasToolCalls {
		msg["tool_calls"] = toolCalls
	}
	ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute([]interface{}{msg}))
	ctx.RecordRule("vercel:output_messages")
}

func (e *VercelExtractor) setSingleOutputMessage(ctx *ExtractorContext, content string) {
	msg := []interface{}{map[string]interface{}{"role": "assistant", "content": content}}
	ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(msg))
	ctx.RecordRule("vercel:output_messages")
}

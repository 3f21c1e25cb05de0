package canonicalize

import (
	"brokle/internal/core/domain/observability"
)

// FallbackExtractor runs last in the pipeline. It infers a span type from
// residual signals when nothing upstream has already classified the span,
// and consolidates error information using the same priority LegacyOtel
// uses.
type FallbackExtractor struct{}

func NewFallbackExtractor() *FallbackExtractor { return &FallbackExtractor{} }

func (e *FallbackExtractor) ID() string { return "fallback" }

func (e *FallbackExtractor) Apply(ctx *ExtractorContext) error {
	if !e.hasSpanType(ctx) {
		e.inferSpanType(ctx)
	}

	// LegacyOtel already consolidated what it could; only fill the gap so
	// an earlier, higher-priority error is never overwritten.
	if _, done := ctx.Out.Get(observability.KeyErrorType); !done {
		if errType, ok := consolidateErrorInfo(ctx); ok {
			ctx.SetAttr(observability.KeyErrorType, errType)
			ctx.RecordRule("fallback:error")
		}
	}

	return nil
}

func (e *FallbackExtractor) hasSpanType(ctx *ExtractorContext) bool {
	if _, ok := ctx.Out.Get(observability.KeyLangWatchSpanType); ok {
		return true
	}
	return ctx.Bag.Has(observability.KeyLangWatchSpanType)
}

func (e *FallbackExtractor) inferSpanType(ctx *ExtractorContext) {
	switch {
	case e.hasToolSignal(ctx):
		ctx.SetAttr(observability.KeyLangWatchSpanType, "tool")
		ctx.RecordRule("fallback:infer:tool")
	case e.hasAgentSignal(ctx):
		ctx.SetAttr(observability.KeyLangWatchSpanType, "agent")
		ctx.RecordRule("fallback:infer:agent")
	case e.hasLLMSignal(ctx):
		ctx.SetAttr(observability.KeyLangWatchSpanType, "llm")
		ctx.RecordRule("fallback:infer:llm")
	}
}

func (e *FallbackExtractor) hasToolSignal(ctx *ExtractorContext) bool {
	if v, ok := ctx.Bag.Get("operation.name"); ok {
		if s, ok := v.StringValue(); ok && s == "ai.toolCall" {
			return true
		}
	}
	if ctx.Bag.Has("ai.toolCall.name") {
		return true
	}
	if v, ok := ctx.Bag.Get("gen_ai.operation.name"); ok {
		if s, ok := v.StringValue(); ok && s == "tool" {
			return true
		}
	}
	return false
}

func (e *FallbackExtractor) hasAgentSignal(ctx *ExtractorContext) bool {
	if _, ok := ctx.Out.Get(observability.KeyGenAIAgentName); ok {
		return true
	}
	return ctx.Bag.Has("gen_ai.agent.name") || ctx.Bag.Has("agent.name") || ctx.Bag.Has("gen_ai.agent")
}

func (e *FallbackExtractor) hasLLMSignal(ctx *ExtractorContext) bool {
	outKeys := []string{
		observability.KeyGenAIInputMessages,
		observability.KeyGenAIOutputMessages,
		observability.KeyGenAIRequestModel,
		observability.KeyGenAIResponseModel,
		observability.KeyGenAIProviderName,
	}
	for _, k := range outKeys {
		if _, ok := ctx.Out.Get(k); ok {
			return true
		}
	}

	bagKeys := []string{
		"llm.model_name",
		"llm.input_messages",
		"llm.invocation_parameters",
		"ai.model",
		"ai.prompt",
		"ai.prompt.messages",
		"llm.request.type",
	}
	for _, k := range bagKeys {
		if ctx.Bag.Has(k) {
			return true
		}
	}
	return false
}

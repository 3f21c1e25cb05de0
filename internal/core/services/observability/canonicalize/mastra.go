package canonicalize

import (
	"strings"

	"brokle/internal/core/domain/observability"
)

// MastraExtractor canonicalizes the Mastra agent framework's span shape.
// It detects via instrumentation scope name or the
// mastra.span.type attribute, and its span-type mapping takes precedence
// over any type already present in the bag.
type MastraExtractor struct{}

func NewMastraExtractor() *MastraExtractor { return &MastraExtractor{} }

func (e *MastraExtractor) ID() string { return "mastra" }

var mastraSpanTypeMap = map[string]string{
	"agent_run":        "agent",
	"workflow_step":    "component",
	"processor_run":    "component",
	"model_generation": "llm",
	"model_step":       "llm",
	"model_chunk":      "span",
	"tool_call":        "tool",
	"mcp_tool_call":    "tool",
	"generic":          "span",
	"default":          "span",
}

func (e *MastraExtractor) detects(ctx *ExtractorContext) bool {
	scope := ctx.Span.InstrumentationScopeName()
	if scope == "@mastra/otel" || scope == "@mastra/otel-bridge" || strings.HasPrefix(scope, "@mastra/") {
		return true
	}
	return ctx.Bag.Has("mastra.span.type")
}

func (e *MastraExtractor) Apply(ctx *ExtractorContext) error {
	if !e.detects(ctx) {
		return nil
	}

	mastraType, _ := ctx.Bag.Take("mastra.span.type")
	typStr, _ := mastraType.StringValue()

	body := e.modelStepBody(ctx)

	resolved := e.resolveSpanType(typStr)
	isEval := e.isEvaluation(ctx, typStr, body)
	if isEval {
		resolved = "evaluation"
	}
	if resolved != "" {
		ctx.SetAttr(observability.KeyLangWatchSpanType, resolved)
		ctx.RecordRule("mastra:span_type:" + resolved)
	}

	model := e.extractModel(ctx, body)
	if model != "" {
		ctx.SetAttr(observability.KeyGenAIRequestModel, model)
	}

	e.applyInputMessages(ctx, body, isEval)
	if isEval {
		e.applyEvalOutput(ctx)
	} else if resolved == "llm" {
		e.applyModelStepOutput(ctx)
	}

	ctx.Bag.Delete("mastra.model_step.input")
	ctx.Bag.Delete("mastra.model_step.output")

	e.applyDisplayName(ctx, typStr, resolved, model, isEval)
	e.applyThreadID(ctx)
	e.applyCachedTokenAlias(ctx)

	return nil
}

// modelStepBody unwraps the mastra.model_step.input attribute down to its
// request body object, if present.
func (e *MastraExtractor) modelStepBody(ctx *ExtractorContext) map[string]interface{} {
	if !ctx.Bag.Has("mastra.model_step.input") {
		return nil
	}
	parsed, _ := ctx.Bag.GetParsed("mastra.model_step.input", observability.DefaultMaxParseSize)
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil
	}
	if body, ok := obj["body"].(map[string]interface{}); ok {
		return body
	}
	return nil
}

func (e *MastraExtractor) modelStepOutput(ctx *ExtractorContext) map[string]interface{} {
	if !ctx.Bag.Has("mastra.model_step.output") {
		return nil
	}
	parsed, _ := ctx.Bag.GetParsed("mastra.model_step.output", observability.DefaultMaxParseSize)
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil
	}
	return obj
}

func (e *MastraExtractor) resolveSpanType(typ string) string {
	if strings.HasPrefix(typ, "workflow_") && typ != "workflow_step" {
		return "workflow"
	}
	if mapped, ok := mastraSpanTypeMap[typ]; ok {
		return mapped
	}
	if typ == "" {
		return ""
	}
	return "span"
}

// isEvaluation implements the eval rule: a model_step is an evaluation iff
// its parent span id is null, or its body carries a non-null response_format.
func (e *MastraExtractor) isEvaluation(ctx *ExtractorContext, typ string, body map[string]interface{}) bool {
	if typ != "model_step" {
		return false
	}
	if ctx.Span.ParentSpanID() == nil {
		return true
	}
	if body == nil {
		return false
	}
	return body["response_format"] != nil
}

func (e *MastraExtractor) extractModel(ctx *ExtractorContext, body map[string]interface{}) string {
	if body != nil {
		if m, ok := body["model"].(string); ok && m != "" {
			return m
		}
	}
	if ctx.Bag.Has("mastra.metadata") {
		parsed, _ := ctx.Bag.GetParsed("mastra.metadata", observability.DefaultMaxParseSize)
		if obj, ok := parsed.(map[string]interface{}); ok {
			if meta, ok := obj["modelMetadata"].(map[string]interface{}); ok {
				if m, ok := meta["modelId"].(string); ok && m != "" {
					return m
				}
			}
		}
	}
	return ""
}

func (e *MastraExtractor) applyInputMessages(ctx *ExtractorContext, body map[string]interface{}, isEval bool) {
	if body == nil {
		return
	}
	rawMsgs, ok := body["messages"]
	if !ok {
		return
	}
	msgs := NormalizeToMessages(DecodeMessagesPayload(rawMsgs), "user")

	if isEval {
		// Evals carry their prompt in the system message; it becomes the
		// span input rather than a lifted instruction.
		if sys, hasSys := ExtractSystemInstructionFromMessages(msgs); hasSys {
			ctx.SetAttr(observability.KeyLangWatchInput, sys)
		}
		return
	}

	if sys, hasSys := ExtractSystemInstructionFromMessages(msgs); hasSys {
		ctx.SetAttr(observability.KeyGenAISystemInstruction, sys)
		msgs = StripLeadingSystemMessage(msgs)
	}
	ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(msgs))
	ctx.RecordRule("mastra:input_messages")

	if lastUser := lastUserMessageText(msgs); lastUser != "" {
		ctx.SetAttr(observability.KeyLangWatchInput, lastUser)
	}
}

func lastUserMessageText(msgs []interface{}) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		obj, ok := msgs[i].(map[string]interface{})
		if !ok {
			continue
		}
		if role, _ := obj["role"].(string); role != "user" {
			continue
		}
		return extractTextFromContent(obj["content"])
	}
	return ""
}

func (e *MastraExtractor) applyModelStepOutput(ctx *ExtractorContext) {
	out := e.modelStepOutput(ctx)
	if out == nil {
		return
	}
	text, ok := out["text"].(string)
	if !ok || text == "" {
		return
	}
	ctx.SetAttr(observability.KeyLangWatchOutput, text)
	msg := []interface{}{map[string]interface{}{"role": "assistant", "content": text}}
	ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(msg))
	ctx.RecordRule("mastra:model_step_output")
}

func (e *MastraExtractor) applyEvalOutput(ctx *ExtractorContext) {
	out := e.modelStepOutput(ctx)
	if out == nil {
		return
	}

	var rendered string
	if obj, ok := out["object"]; ok && obj != nil {
		if s, isStr := obj.(string); isStr {
			rendered = s
		} else {
			rendered = stringify(obj)
		}
	} else if text, ok := out["text"].(string); ok {
		rendered = text
	}
	if rendered != "" {
		ctx.SetAttr(observability.KeyLangWatchOutput, rendered)
		ctx.RecordRule("mastra:eval_output")
	}
}

// applyDisplayName rewrites the span name for model and eval spans. The
// LLM/LLM Step distinction follows the mastra span type: model_generation
// spans are the model call itself, model_step spans are one step of a
// multi-step generation.
func (e *MastraExtractor) applyDisplayName(ctx *ExtractorContext, mastraType, resolved, model string, isEval bool) {
	switch {
	case isEval:
		excerpt, ok := ctx.Out.Get(observability.KeyLangWatchInput)
		label := model
		if ok {
			if s, isStr := excerpt.StringValue(); isStr && s != "" {
				label = truncateWithEllipsis(s, 60)
			}
		}
		if label != "" {
			ctx.Span.SetName("Eval: " + label)
			ctx.RecordRule("mastra:display_name:eval")
		}
	case resolved == "llm" && model != "":
		if mastraType == "model_step" {
			ctx.Span.SetName("LLM Step: " + model)
		} else {
			ctx.Span.SetName("LLM: " + model)
		}
		ctx.RecordRule("mastra:display_name:llm")
	}
}

// truncateWithEllipsis truncates s to at most n characters, replacing the
// final three with "..." when truncation occurs.
func truncateWithEllipsis(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func (e *MastraExtractor) applyThreadID(ctx *ExtractorContext) {
	if !ctx.Bag.Has("mastra.metadata") {
		return
	}
	parsed, _ := ctx.Bag.GetParsed("mastra.metadata", observability.DefaultMaxParseSize)
	ctx.Bag.Take("mastra.metadata")
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return
	}
	if s, ok := obj["threadId"].(string); ok && s != "" {
		ctx.SetAttrIfAbsent(observability.KeyGenAIConversationID, s)
		ctx.RecordRule("mastra:thread_id")
	}
}

func (e *MastraExtractor) applyCachedTokenAlias(ctx *ExtractorContext) {
	v, ok := ctx.Bag.Take("gen_ai.usage.cached_input_tokens")
	if !ok {
		return
	}
	s, ok := v.StringValue()
	if !ok {
		return
	}
	n, ok := AsNumber(s)
	if !ok {
		return
	}
	ctx.SetAttrIfAbsent(observability.KeyGenAIUsageCacheReadInputTokens, int64(n))
	ctx.RecordRule("mastra:cached_token_alias")
}

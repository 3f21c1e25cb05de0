package canonicalize

import (
	"brokle/internal/core/domain/observability"
)

// StrandsExtractor canonicalizes the Strands Agents SDK's event-based span
// shape: messages arrive as span events rather than attributes. It
// detects via instrumentation scope name or gen_ai.system.
type StrandsExtractor struct{}

func NewStrandsExtractor() *StrandsExtractor { return &StrandsExtractor{} }

func (e *StrandsExtractor) ID() string { return "strands" }

var strandsOperationToSpanType = map[string]string{
	"chat":         "llm",
	"execute_tool": "tool",
	"invoke_agent": "agent",
}

func (e *StrandsExtractor) detects(ctx *ExtractorContext) bool {
	if ctx.Span.InstrumentationScopeName() == "strands.telemetry.tracer" {
		return true
	}
	if v, ok := ctx.Bag.Get("gen_ai.system"); ok {
		if s, ok := v.StringValue(); ok && s == "strands-agents" {
			return true
		}
	}
	return false
}

func (e *StrandsExtractor) Apply(ctx *ExtractorContext) error {
	if !e.detects(ctx) {
		return nil
	}

	if v, ok := ctx.Bag.Get("gen_ai.operation.name"); ok {
		if op, ok := v.StringValue(); ok {
			if typ, ok := strandsOperationToSpanType[op]; ok {
				ctx.SetAttr(observability.KeyLangWatchSpanType, typ)
				ctx.RecordRule("strands:operation:" + typ)
			}
		}
	}

	e.applyMessageEvents(ctx)
	return nil
}

// applyMessageEvents reconstructs input/output messages from
// gen_ai.{user,system,assistant}.message and gen_ai.choice events, which is
// how the Strands SDK carries conversation turns.
func (e *StrandsExtractor) applyMessageEvents(ctx *ExtractorContext) {
	var inputMsgs []interface{}

	for _, sysEvent := range ctx.Bag.Events.TakeAll("gen_ai.system.message") {
		content := eventAttrString(sysEvent, "content")
		if content == "" {
			continue
		}
		inputMsgs = append(inputMsgs, map[string]interface{}{"role": "system", "content": content})
	}
	for _, userEvent := range ctx.Bag.Events.TakeAll("gen_ai.user.message") {
		content := eventAttrString(userEvent, "content")
		if content == "" {
			continue
		}
		inputMsgs = append(inputMsgs, map[string]interface{}{"role": "user", "content": content})
	}
	for _, asstEvent := range ctx.Bag.Events.TakeAll("gen_ai.assistant.message") {
		content := eventAttrString(asstEvent, "content")
		if content == "" {
			continue
		}
		inputMsgs = append(inputMsgs, map[string]interface{}{"role": "assistant", "content": content})
	}

	if len(inputMsgs) > 0 {
		if sys, hasSys := ExtractSystemInstructionFromMessages(inputMsgs); hasSys {
			ctx.SetAttr(observability.KeyGenAISystemInstruction, sys)
			inputMsgs = StripLeadingSystemMessage(inputMsgs)
		}
		ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(inputMsgs))
		ctx.RecordRule("strands:input_messages")
	}

	var outputMsgs []interface{}
	for _, choiceEvent := range ctx.Bag.Events.TakeAll("gen_ai.choice") {
		content := eventAttrString(choiceEvent, "message")
		if content == "" {
			content = eventAttrString(choiceEvent, "content")
		}
		if content == "" {
			continue
		}
		outputMsgs = append(outputMsgs, map[string]interface{}{"role": "assistant", "content": content})
	}
	if len(outputMsgs) > 0 {
		ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(outputMsgs))
		ctx.RecordRule("strands:output_messages")
	}
}

func eventAttrString(ev observability.CanonicalEvent, key string) string {
	if ev.Attributes == nil {
		return ""
	}
	v, ok := ev.Attributes.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.StringValue()
	return s
}

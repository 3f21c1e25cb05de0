package canonicalize

import (
	"brokle/internal/core/domain/observability"
)

// LogfireExtractor canonicalizes Pydantic Logfire's raw_input attribute and
// gen_ai.choice events.
type LogfireExtractor struct{}

func NewLogfireExtractor() *LogfireExtractor { return &LogfireExtractor{} }

func (e *LogfireExtractor) ID() string { return "logfire" }

func (e *LogfireExtractor) Apply(ctx *ExtractorContext) error {
	sawRawInput := false

	if key, _, ok := ctx.Bag.GetAny([]string{"raw_input"}); ok {
		raw, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
		ctx.Bag.Take(key)
		msgs := NormalizeToMessages(DecodeMessagesPayload(raw), "user")
		if sys, hasSys := ExtractSystemInstructionFromMessages(msgs); hasSys {
			ctx.SetAttr(observability.KeyGenAISystemInstruction, sys)
			msgs = StripLeadingSystemMessage(msgs)
		}
		ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(msgs))
		ctx.RecordRule("logfire:raw_input")
		sawRawInput = true
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
		ctx.RecordRule("logfire:output_messages")
	}

	if sawRawInput {
		ctx.SetAttrIfAbsent(observability.KeyLangWatchSpanType, "llm")
		ctx.RecordRule("logfire:infer_llm")
	}

	return nil
}

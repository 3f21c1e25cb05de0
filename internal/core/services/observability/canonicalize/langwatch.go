package canonicalize

import (
	"encoding/json"

	"brokle/internal/core/domain/observability"
)

// LangWatchExtractor canonicalizes SDK-native langwatch.* attributes and the
// metadata blob. It runs first: LangWatch SDK-native
// attributes are the most authoritative signal in the pipeline.
type LangWatchExtractor struct{}

func NewLangWatchExtractor() *LangWatchExtractor { return &LangWatchExtractor{} }

func (e *LangWatchExtractor) ID() string { return "langwatch" }

func (e *LangWatchExtractor) Apply(ctx *ExtractorContext) error {
	e.applySpanType(ctx)
	e.applyConversationID(ctx)
	e.applyUserAndCustomerID(ctx)
	e.applyRAGContexts(ctx)
	e.applyMetadata(ctx)
	e.applyInputOutputWrappers(ctx)
	e.applyMetrics(ctx)
	return nil
}

func (e *LangWatchExtractor) applySpanType(ctx *ExtractorContext) {
	v, ok := ctx.Bag.Get(observability.KeyLangWatchSpanType)
	if !ok {
		return
	}
	s, ok := v.StringValue()
	if !ok || !observability.AllowedSpanTypes[s] {
		return
	}
	ctx.SetAttr(observability.KeyLangWatchSpanType, s)
	ctx.RecordRule("langwatch:span_type")
}

func (e *LangWatchExtractor) applyConversationID(ctx *ExtractorContext) {
	_, v, ok := ctx.Bag.TakeAny([]string{
		"langwatch.thread.id", "langwatch.thread_id", "thread_id", "langwatch.langgraph.thread_id",
	})
	if !ok {
		return
	}
	s, ok := v.StringValue()
	if !ok || s == "" {
		return
	}
	ctx.SetAttr(observability.KeyGenAIConversationID, s)
	ctx.RecordRule("langwatch:conversation_id")
}

func (e *LangWatchExtractor) applyUserAndCustomerID(ctx *ExtractorContext) {
	if _, v, ok := ctx.Bag.TakeAny([]string{"langwatch.user.id", "langwatch.user_id", "user_id"}); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			ctx.SetAttr(observability.KeyLangWatchUserID, s)
			ctx.RecordRule("langwatch:user_id")
		}
	}
	if _, v, ok := ctx.Bag.TakeAny([]string{"langwatch.customer.id", "langwatch.customer_id", "customer_id"}); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			ctx.SetAttr(observability.KeyLangWatchCustomerID, s)
			ctx.RecordRule("langwatch:customer_id")
		}
	}
}

func (e *LangWatchExtractor) applyRAGContexts(ctx *ExtractorContext) {
	if _, v, ok := ctx.Bag.TakeAny([]string{"langwatch.rag.contexts", "langwatch.rag_contexts", "rag.contexts"}); ok {
		ctx.SetAttrRaw(observability.KeyLangWatchRAGContexts, v)
		ctx.RecordRule("langwatch:rag_contexts")
	}
	if _, v, ok := ctx.Bag.TakeAny([]string{"langwatch.labels", "labels"}); ok {
		ctx.SetAttrRaw(observability.KeyLangWatchLabels, v)
		ctx.RecordRule("langwatch:labels")
	}
}

// applyMetadata unpacks the "metadata" (or "langwatch.metadata") blob:
// user_id/thread_id/customer_id and labels are promoted to their canonical
// keys when those keys are still absent, and every other key is written as
// metadata.<key>. A non-object blob falls back to a single metadata._raw
// string.
func (e *LangWatchExtractor) applyMetadata(ctx *ExtractorContext) {
	key, _, ok := ctx.Bag.GetAny([]string{"metadata", "langwatch.metadata"})
	if !ok {
		return
	}
	parsed, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		ctx.SetAttr(observability.KeyMetadataRaw, parsed)
		ctx.RecordRule("langwatch:metadata_raw")
		return
	}

	promoted := map[string]bool{}
	if v, ok := firstPresentString(obj, "user_id", "userId"); ok {
		ctx.SetAttrIfAbsent(observability.KeyLangWatchUserID, v)
		promoted["user_id"], promoted["userId"] = true, true
	}
	if v, ok := firstPresentString(obj, "thread_id", "threadId"); ok {
		ctx.SetAttrIfAbsent(observability.KeyGenAIConversationID, v)
		promoted["thread_id"], promoted["threadId"] = true, true
	}
	if v, ok := firstPresentString(obj, "customer_id", "customerId"); ok {
		ctx.SetAttrIfAbsent(observability.KeyLangWatchCustomerID, v)
		promoted["customer_id"], promoted["customerId"] = true, true
	}
	if labels, ok := obj["labels"].([]interface{}); ok {
		ctx.SetAttrIfAbsent(observability.KeyLangWatchLabels, labels)
		promoted["labels"] = true
	}

	for k, v := range obj {
		if promoted[k] || frameworkIOKeys[k] {
			continue
		}
		ctx.SetAttr(observability.KeyMetadataRawPrefix+k, v)
	}
	ctx.RecordRule("langwatch:metadata")
}

// frameworkIOKeys are raw I/O payload keys some SDKs mirror into their
// metadata blob; promoting them to metadata.* would duplicate the span's
// input/output under a second key.
var frameworkIOKeys = map[string]bool{
	"input":             true,
	"output":            true,
	"prompt":            true,
	"completion":        true,
	"messages":          true,
	"gen_ai.prompt":     true,
	"gen_ai.completion": true,
}

func firstPresentString(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func decodeMetadataValue(v observability.AttributeValue) interface{} {
	if s, ok := v.StringValue(); ok {
		return SafeJSONParse(s)
	}
	return attrValueToJSON(v)
}

func attrValueToJSON(v observability.AttributeValue) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func (e *LangWatchExtractor) applyInputOutputWrappers(ctx *ExtractorContext) {
	if v, ok := ctx.Bag.Take(observability.KeyLangWatchInput); ok {
		e.applyStructuredValue(ctx, observability.KeyLangWatchInput, v, true)
	}
	if v, ok := ctx.Bag.Take(observability.KeyLangWatchOutput); ok {
		e.applyStructuredValue(ctx, observability.KeyLangWatchOutput, v, false)
	}
}

func (e *LangWatchExtractor) applyStructuredValue(ctx *ExtractorContext, outKey string, v observability.AttributeValue, isInput bool) {
	decoded := decodeMetadataValue(v)
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		e.applyUnstructuredValue(ctx, outKey, decoded)
		return
	}

	typ, _ := obj["type"].(string)
	value := obj["value"]
	if typ == "" {
		e.applyUnstructuredValue(ctx, outKey, decoded)
		return
	}

	ctx.AppendValueType(outKey, typ)
	ctx.RecordRule("langwatch:value_type:" + typ)

	switch typ {
	case "chat_messages":
		arr, ok := value.([]interface{})
		if !ok {
			return
		}
		msgs := UnwrapWrappedMessages(arr)
		if isInput {
			if sys, hasSys := ExtractSystemInstructionFromMessages(msgs); hasSys {
				ctx.SetAttr(observability.KeyGenAISystemInstruction, sys)
				msgs = StripLeadingSystemMessage(msgs)
			}
			ctx.SetAttrRaw(observability.KeyGenAIInputMessages, messagesToJSONAttribute(msgs))
			ctx.SetAttrIfAbsent(observability.KeyLangWatchSpanType, "llm")
		} else {
			ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(msgs))
		}
	case "json":
		if !isInput {
			if arr, ok := value.([]interface{}); ok {
				var parts []string
				for _, item := range arr {
					if s, ok := item.(string); ok {
						parts = append(parts, s)
					} else {
						parts = append(parts, stringify(item))
					}
				}
				joined := joinLines(parts)
				msg := []interface{}{map[string]interface{}{"role": "assistant", "content": joined}}
				ctx.SetAttrRaw(observability.KeyGenAIOutputMessages, messagesToJSONAttribute(msg))
				return
			}
		}
		ctx.SetAttr(outKey, stringify(value))
	case "text", "raw", "list":
		ctx.SetAttr(outKey, value)
	default:
		e.applyUnstructuredValue(ctx, outKey, decoded)
	}
}

func (e *LangWatchExtractor) applyUnstructuredValue(ctx *ExtractorContext, outKey string, decoded interface{}) {
	if arr, ok := decoded.([]interface{}); ok && len(arr) == 1 {
		ctx.SetAttr(outKey, arr[0])
		return
	}
	ctx.SetAttr(outKey, decoded)
}

func joinLines(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}

func (e *LangWatchExtractor) applyMetrics(ctx *ExtractorContext) {
	v, ok := ctx.Bag.Take("langwatch.metrics")
	if !ok {
		return
	}
	decoded := decodeMetadataValue(v)
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return
	}
	typ, _ := obj["type"].(string)
	if typ != "json" {
		return
	}
	metrics, ok := obj["value"].(map[string]interface{})
	if !ok {
		return
	}

	if promptTokens, ok := AsNumber(metrics["promptTokens"]); ok && promptTokens > 0 {
		ctx.SetAttrIfAbsent(observability.KeyGenAIUsageInputTokens, int64(promptTokens))
	}
	if completionTokens, ok := AsNumber(metrics["completionTokens"]); ok && completionTokens > 0 {
		ctx.SetAttrIfAbsent(observability.KeyGenAIUsageOutputTokens, int64(completionTokens))
	}
	if cost, ok := AsNumber(metrics["cost"]); ok && cost > 0 {
		ctx.SetAttrIfAbsent(observability.KeyLangWatchSpanCost, cost)
	}
	if estimated, ok := metrics["tokensEstimated"].(bool); ok && estimated {
		ctx.SetAttr(observability.KeyLangWatchTokensEstimated, true)
	}
	ctx.RecordRule("langwatch:metrics")
}

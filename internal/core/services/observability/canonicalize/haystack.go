package canonicalize

import (
	"encoding/json"

	"brokle/internal/core/domain/observability"
)

// HaystackExtractor canonicalizes the Haystack RAG framework's
// retrieval.documents attribute into langwatch.rag.contexts.
// It only runs under the Haystack OpenInference instrumentation scope.
type HaystackExtractor struct{}

func NewHaystackExtractor() *HaystackExtractor { return &HaystackExtractor{} }

func (e *HaystackExtractor) ID() string { return "haystack" }

func (e *HaystackExtractor) Apply(ctx *ExtractorContext) error {
	if ctx.Span.InstrumentationScopeName() != "openinference.instrumentation.haystack" {
		return nil
	}

	key, _, ok := ctx.Bag.GetAny([]string{"retrieval.documents"})
	if !ok {
		return nil
	}
	parsed, _ := ctx.Bag.GetParsed(key, observability.DefaultMaxParseSize)
	ctx.Bag.Take(key)

	arr, ok := parsed.([]interface{})
	if !ok {
		return nil
	}

	type ragContext struct {
		DocumentID string `json:"document_id,omitempty"`
		Content    string `json:"content"`
	}

	var contexts []ragContext
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		doc, ok := obj["document"].(map[string]interface{})
		if !ok {
			continue
		}
		content, _ := doc["content"].(string)
		id, _ := doc["id"].(string)
		contexts = append(contexts, ragContext{DocumentID: id, Content: content})
	}
	if len(contexts) == 0 {
		return nil
	}

	b, err := json.Marshal(contexts)
	if err != nil {
		return nil
	}
	ctx.SetAttrRaw(observability.KeyLangWatchRAGContexts, observability.JSONAttribute(string(b)))
	ctx.SetAttrIfAbsent(observability.KeyLangWatchSpanType, "rag")
	ctx.RecordRule("haystack:rag_contexts")
	return nil
}

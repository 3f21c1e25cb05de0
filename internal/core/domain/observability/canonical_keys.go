package observability

// Canonical attribute keys. These may only be written through the
// extractor output channel (ExtractorContext.setAttr/setAttrIfAbsent) per
// never set directly on a SpanDataBag.
const (
	KeyLangWatchSpanType             = "langwatch.span.type"
	KeyLangWatchInput                = "langwatch.input"
	KeyLangWatchOutput                = "langwatch.output"
	KeyLangWatchUserID                = "langwatch.user.id"
	KeyLangWatchCustomerID            = "langwatch.customer.id"
	KeyLangWatchLabels                = "langwatch.labels"
	KeyLangWatchRAGContexts           = "langwatch.rag.contexts"
	KeyLangWatchReservedValueTypes    = "langwatch.reserved.value_types"
	KeyLangWatchReservedPIIRedaction  = "langwatch.reserved.pii_redaction_status"
	KeyLangWatchSpanCost              = "langwatch.span.cost"
	KeyLangWatchInputMimeType         = "langwatch.input.mime_type"
	KeyLangWatchOutputMimeType        = "langwatch.output.mime_type"
	KeyLangWatchTokensEstimated       = "langwatch.tokens.estimated"
	KeyMetadataRawPrefix              = "metadata."
	KeyMetadataRaw                    = "metadata._raw"

	KeyGenAIConversationID      = "gen_ai.conversation.id"
	KeyGenAIProviderName        = "gen_ai.provider.name"
	KeyGenAIAgentName           = "gen_ai.agent.name"
	KeyGenAIRequestModel        = "gen_ai.request.model"
	KeyGenAIResponseModel       = "gen_ai.response.model"
	KeyGenAIInputMessages       = "gen_ai.input.messages"
	KeyGenAIOutputMessages      = "gen_ai.output.messages"
	KeyGenAISystemInstruction   = "gen_ai.request.system_instruction"
	KeyGenAIUsageInputTokens    = "gen_ai.usage.input_tokens"
	KeyGenAIUsageOutputTokens   = "gen_ai.usage.output_tokens"
	KeyGenAIUsageReasoningTokens          = "gen_ai.usage.reasoning_tokens"
	KeyGenAIUsageCacheReadInputTokens     = "gen_ai.usage.cache_read.input_tokens"
	KeyGenAIUsageCacheCreationInputTokens = "gen_ai.usage.cache_creation.input_tokens"
	KeyGenAIOperationName       = "gen_ai.operation.name"

	KeyGenAIRequestTemperature       = "gen_ai.request.temperature"
	KeyGenAIRequestMaxTokens         = "gen_ai.request.max_tokens"
	KeyGenAIRequestTopP              = "gen_ai.request.top_p"
	KeyGenAIRequestFrequencyPenalty  = "gen_ai.request.frequency_penalty"
	KeyGenAIRequestPresencePenalty   = "gen_ai.request.presence_penalty"
	KeyGenAIRequestSeed              = "gen_ai.request.seed"
	KeyGenAIRequestStopSequences     = "gen_ai.request.stop_sequences"
	KeyGenAIRequestChoiceCount       = "gen_ai.request.choice.count"

	KeyErrorType = "error.type"
)

// AllowedSpanTypes is the set of span types accepted when a raw span-type
// attribute is re-emitted as langwatch.span.type. The Mastra extractor also
// writes workflow, component and evaluation, which are not in this set.
var AllowedSpanTypes = map[string]bool{
	"span":     true,
	"llm":      true,
	"tool":     true,
	"agent":    true,
	"rag":      true,
	"server":   true,
	"client":   true,
	"producer": true,
	"consumer": true,
}

package observability

import (
	"fmt"

	"brokle/internal/core/domain/observability"
	"brokle/internal/core/services/observability/canonicalize"
	apperrors "brokle/pkg/errors"
	"brokle/pkg/utils"
)

// SpanNormalizationPipeline decodes a raw OTLP span into a NormalizedSpan,
// runs it through the attribute canonicalizer, and enriches RAG contexts
// with content-derived document ids. It holds no state of
// its own beyond the canonicalizer it was built with.
type SpanNormalizationPipeline struct {
	canonicalizer *canonicalize.CanonicalizeService
}

func NewSpanNormalizationPipeline(canonicalizer *canonicalize.CanonicalizeService) *SpanNormalizationPipeline {
	return &SpanNormalizationPipeline{canonicalizer: canonicalizer}
}

// NormalizeSpanReceived is the pipeline's single entry point: decode OTLP ->
// canonicalize -> enrich RAG contexts -> return.
func (p *SpanNormalizationPipeline) NormalizeSpanReceived(
	tenantID string,
	span observability.OTLPSpan,
	resource *observability.Resource,
	scope *observability.Scope,
) (*observability.NormalizedSpan, error) {
	if tenantID == "" {
		return nil, apperrors.NewAppError(apperrors.ValidationError, "tenant id must not be empty", "", nil)
	}

	normalized, err := p.decode(tenantID, span, resource, scope)
	if err != nil {
		return nil, err
	}

	result, err := p.canonicalizer.Canonicalize(normalized)
	if err != nil {
		return nil, err
	}
	normalized.SpanAttributes = result.Attributes
	normalized.Events = result.Events

	p.enrichRAGContexts(normalized)

	return normalized, nil
}

func (p *SpanNormalizationPipeline) decode(
	tenantID string,
	span observability.OTLPSpan,
	resource *observability.Resource,
	scope *observability.Scope,
) (*observability.NormalizedSpan, error) {
	traceID, err := convertTraceID(span.TraceID)
	if err != nil {
		return nil, fmt.Errorf("invalid trace_id: %w", err)
	}
	spanID, err := convertSpanID(span.SpanID)
	if err != nil {
		return nil, fmt.Errorf("invalid span_id: %w", err)
	}

	var parentSpanID *string
	if !isRootSpanCheck(span.ParentSpanID) {
		if pid, err := convertSpanID(span.ParentSpanID); err == nil && pid != "" {
			parentSpanID = &pid
		}
	}

	startTime := convertUnixNano(span.StartTimeUnixNano)
	endTime := convertUnixNano(span.EndTimeUnixNano)

	var startMs int64
	if startTime != nil {
		startMs = startTime.UnixMilli()
	}
	endMs := startMs
	if endTime != nil {
		endMs = endTime.UnixMilli()
	}

	recordID, err := utils.HashString(
		fmt.Sprintf("%s|%s|%s|%d", tenantID, traceID, spanID, startMs),
		utils.AlgorithmSHA256,
	)
	if err != nil {
		return nil, fmt.Errorf("computing record id: %w", err)
	}

	var instrScope observability.InstrumentationScope
	if scope != nil {
		instrScope = observability.InstrumentationScope{Name: scope.Name, Version: scope.Version}
	}

	var statusCode *int
	var statusMessage *string
	if span.Status != nil {
		code := int(convertStatusCode(span.Status))
		statusCode = &code
		if span.Status.Message != "" {
			msg := span.Status.Message
			statusMessage = &msg
		}
	}

	// The low byte of flags mirrors the W3C trace flags; bits 8/9 carry
	// "has is_remote" / "is_remote" for the parent context.
	sampled := span.Flags&0x01 != 0
	parentIsRemote := span.Flags&0x100 != 0 && span.Flags&0x200 != 0

	normalized := &observability.NormalizedSpan{
		TenantID:             tenantID,
		RecordID:             recordID,
		TraceID:              traceID,
		SpanID:               spanID,
		ParentSpanID:         parentSpanID,
		ParentIsRemote:       parentIsRemote,
		Sampled:              sampled,
		Name:                 span.Name,
		Kind:                 convertSpanKind(span.Kind),
		InstrumentationScope: instrScope,
		StatusCode:           statusCode,
		StatusMessage:        statusMessage,
		ResourceAttributes:   decodeAttributeMap(resource),
		SpanAttributes:       decodeSpanAttributeMap(span.Attributes),
		Events:               decodeEvents(span.Events),
		Links:                decodeLinks(span.Links),
	}
	normalized.SetDuration(startMs, endMs)

	return normalized, nil
}

func decodeAttributeMap(resource *observability.Resource) *observability.AttributeMap {
	out := observability.NewAttributeMap()
	if resource == nil {
		return out
	}
	for _, kv := range resource.Attributes {
		out.Set(kv.Key, canonicalize.ToAttributeValue(extractValue(kv.Value)))
	}
	return out
}

func decodeSpanAttributeMap(kvs []observability.KeyValue) *observability.AttributeMap {
	out := observability.NewAttributeMap()
	for _, kv := range kvs {
		out.Set(kv.Key, canonicalize.ToAttributeValue(extractValue(kv.Value)))
	}
	return out
}

func decodeEvents(events []observability.OTLPEvent) []observability.CanonicalEvent {
	out := make([]observability.CanonicalEvent, 0, len(events))
	for _, e := range events {
		attrs := observability.NewAttributeMap()
		for _, kv := range e.Attributes {
			attrs.Set(kv.Key, canonicalize.ToAttributeValue(extractValue(kv.Value)))
		}
		var timeMs int64
		if t := convertUnixNano(e.TimeUnixNano); t != nil {
			timeMs = t.UnixMilli()
		}
		out = append(out, observability.CanonicalEvent{
			Name:       e.Name,
			TimeUnixMs: timeMs,
			Attributes: attrs,
		})
	}
	return out
}

func decodeLinks(links []observability.Link) []observability.SpanLinkRef {
	out := make([]observability.SpanLinkRef, 0, len(links))
	for _, l := range links {
		traceID, err := convertTraceID(l.TraceID)
		if err != nil {
			continue
		}
		spanID, err := convertSpanID(l.SpanID)
		if err != nil {
			continue
		}
		attrs := observability.NewAttributeMap()
		for _, kv := range l.Attributes {
			attrs.Set(kv.Key, canonicalize.ToAttributeValue(extractValue(kv.Value)))
		}
		out = append(out, observability.SpanLinkRef{TraceID: traceID, SpanID: spanID, Attributes: attrs})
	}
	return out
}

// enrichRAGContexts rewrites langwatch.rag.contexts in place with
// content-derived document ids when every entry in the array is missing one.
func (p *SpanNormalizationPipeline) enrichRAGContexts(span *observability.NormalizedSpan) {
	v, ok := span.SpanAttributes.Get(observability.KeyLangWatchRAGContexts)
	if !ok {
		return
	}
	raw, ok := v.StringValue()
	if !ok {
		return
	}
	enriched, changed := enrichRAGContextIDs(raw)
	if !changed {
		return
	}
	span.SpanAttributes.Set(observability.KeyLangWatchRAGContexts, observability.JSONAttribute(enriched))
}

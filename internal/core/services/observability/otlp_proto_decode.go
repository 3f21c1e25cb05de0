package observability

import (
	"encoding/hex"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"brokle/internal/core/domain/observability"
)

// DecodeProtoRequest converts an official OTLP protobuf export request into
// the internal wire representation consumed by the normalization pipeline.
// Byte-array ids become hex strings and unix-nano timestamps become int64, so
// both the protobuf and JSON ingestion paths feed the pipeline identically.
func DecodeProtoRequest(protoReq *coltracepb.ExportTraceServiceRequest) observability.OTLPRequest {
	var internalReq observability.OTLPRequest

	for _, protoRS := range protoReq.ResourceSpans {
		internalRS := observability.ResourceSpan{}

		if protoRS.Resource != nil {
			internalResource := &observability.Resource{}
			for _, attr := range protoRS.Resource.Attributes {
				internalResource.Attributes = append(internalResource.Attributes, observability.KeyValue{
					Key:   attr.Key,
					Value: decodeProtoAnyValue(attr.Value),
				})
			}
			internalRS.Resource = internalResource
		}

		for _, protoSS := range protoRS.ScopeSpans {
			internalSS := observability.ScopeSpan{}

			if protoSS.Scope != nil {
				internalScope := &observability.Scope{
					Name:    protoSS.Scope.Name,
					Version: protoSS.Scope.Version,
				}
				for _, attr := range protoSS.Scope.Attributes {
					internalScope.Attributes = append(internalScope.Attributes, observability.KeyValue{
						Key:   attr.Key,
						Value: decodeProtoAnyValue(attr.Value),
					})
				}
				internalSS.Scope = internalScope
			}

			for _, protoSpan := range protoSS.Spans {
				internalSS.Spans = append(internalSS.Spans, decodeProtoSpan(protoSpan))
			}

			internalRS.ScopeSpans = append(internalRS.ScopeSpans, internalSS)
		}

		internalReq.ResourceSpans = append(internalReq.ResourceSpans, internalRS)
	}

	return internalReq
}

func decodeProtoSpan(protoSpan *tracepb.Span) observability.OTLPSpan {
	var parentSpanID interface{}
	if len(protoSpan.ParentSpanId) > 0 {
		parentSpanID = hex.EncodeToString(protoSpan.ParentSpanId)
	}

	internalSpan := observability.OTLPSpan{
		TraceID:           hex.EncodeToString(protoSpan.TraceId),
		SpanID:            hex.EncodeToString(protoSpan.SpanId),
		ParentSpanID:      parentSpanID,
		TraceState:        protoSpan.TraceState,
		Name:              protoSpan.Name,
		Kind:              int(protoSpan.Kind),
		StartTimeUnixNano: int64(protoSpan.StartTimeUnixNano),
		EndTimeUnixNano:   int64(protoSpan.EndTimeUnixNano),
		Flags:             protoSpan.Flags,
	}

	for _, attr := range protoSpan.Attributes {
		internalSpan.Attributes = append(internalSpan.Attributes, observability.KeyValue{
			Key:   attr.Key,
			Value: decodeProtoAnyValue(attr.Value),
		})
	}

	if protoSpan.Status != nil {
		internalSpan.Status = &observability.Status{
			Code:    int(protoSpan.Status.Code),
			Message: protoSpan.Status.Message,
		}
	}

	for _, protoEvent := range protoSpan.Events {
		internalEvent := observability.OTLPEvent{
			TimeUnixNano: int64(protoEvent.TimeUnixNano),
			Name:         protoEvent.Name,
		}
		for _, attr := range protoEvent.Attributes {
			internalEvent.Attributes = append(internalEvent.Attributes, observability.KeyValue{
				Key:   attr.Key,
				Value: decodeProtoAnyValue(attr.Value),
			})
		}
		internalSpan.Events = append(internalSpan.Events, internalEvent)
	}

	for _, protoLink := range protoSpan.Links {
		internalLink := observability.Link{
			TraceID: hex.EncodeToString(protoLink.TraceId),
			SpanID:  hex.EncodeToString(protoLink.SpanId),
		}
		for _, attr := range protoLink.Attributes {
			internalLink.Attributes = append(internalLink.Attributes, observability.KeyValue{
				Key:   attr.Key,
				Value: decodeProtoAnyValue(attr.Value),
			})
		}
		internalSpan.Links = append(internalSpan.Links, internalLink)
	}

	return internalSpan
}

func decodeProtoAnyValue(value *commonpb.AnyValue) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_BoolValue:
		return v.BoolValue
	case *commonpb.AnyValue_IntValue:
		return v.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return v.DoubleValue
	case *commonpb.AnyValue_ArrayValue:
		if v.ArrayValue == nil {
			return nil
		}
		arr := make([]interface{}, len(v.ArrayValue.Values))
		for i, item := range v.ArrayValue.Values {
			arr[i] = decodeProtoAnyValue(item)
		}
		return arr
	case *commonpb.AnyValue_KvlistValue:
		if v.KvlistValue == nil {
			return nil
		}
		m := make(map[string]interface{})
		for _, kv := range v.KvlistValue.Values {
			m[kv.Key] = decodeProtoAnyValue(kv.Value)
		}
		return m
	case *commonpb.AnyValue_BytesValue:
		return v.BytesValue
	default:
		return nil
	}
}

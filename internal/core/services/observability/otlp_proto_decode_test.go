package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

func strAnyValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func TestDecodeProtoRequest(t *testing.T) {
	traceID := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	spanID := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{{Key: "service.name", Value: strAnyValue("agent")}},
			},
			ScopeSpans: []*tracepb.ScopeSpans{{
				Scope: &commonpb.InstrumentationScope{Name: "ai", Version: "4.0.0"},
				Spans: []*tracepb.Span{{
					TraceId:           traceID,
					SpanId:            spanID,
					Name:              "ai.generateText",
					Kind:              tracepb.Span_SPAN_KIND_CLIENT,
					StartTimeUnixNano: 1_700_000_000_000_000_000,
					EndTimeUnixNano:   1_700_000_000_500_000_000,
					Attributes: []*commonpb.KeyValue{
						{Key: "ai.prompt", Value: strAnyValue("Hi")},
						{Key: "count", Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: 5}}},
					},
					Status: &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK, Message: "ok"},
					Events: []*tracepb.Span_Event{{
						Name:         "gen_ai.choice",
						TimeUnixNano: 1_700_000_000_250_000_000,
						Attributes:   []*commonpb.KeyValue{{Key: "content", Value: strAnyValue("answer")}},
					}},
				}},
			}},
		}},
	}

	decoded := DecodeProtoRequest(req)
	require.Len(t, decoded.ResourceSpans, 1)

	rs := decoded.ResourceSpans[0]
	require.NotNil(t, rs.Resource)
	assert.Equal(t, "service.name", rs.Resource.Attributes[0].Key)
	assert.Equal(t, "agent", rs.Resource.Attributes[0].Value)

	require.Len(t, rs.ScopeSpans, 1)
	ss := rs.ScopeSpans[0]
	require.NotNil(t, ss.Scope)
	assert.Equal(t, "ai", ss.Scope.Name)

	require.Len(t, ss.Spans, 1)
	span := ss.Spans[0]
	assert.Equal(t, "0123456789abcdef0123456789abcdef", span.TraceID)
	assert.Equal(t, "0123456789abcdef", span.SpanID)
	assert.Nil(t, span.ParentSpanID)
	assert.Equal(t, 3, span.Kind)
	assert.Equal(t, int64(1_700_000_000_000_000_000), span.StartTimeUnixNano)
	require.NotNil(t, span.Status)
	assert.Equal(t, 1, span.Status.Code)

	assert.Equal(t, "Hi", span.Attributes[0].Value)
	assert.Equal(t, int64(5), span.Attributes[1].Value)

	require.Len(t, span.Events, 1)
	assert.Equal(t, "gen_ai.choice", span.Events[0].Name)
	assert.Equal(t, "answer", span.Events[0].Attributes[0].Value)
}

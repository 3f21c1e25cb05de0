package observability

// NormSpanKind mirrors the OTLP span kind enum. It reuses the numeric
// values defined by the SpanKind* constants in span_enums.go so every span
// representation agrees on the wire encoding.
type NormSpanKind = uint8

// InstrumentationScope identifies the library/SDK that produced a span.
type InstrumentationScope struct {
	Name    string
	Version string
}

// NormalizedSpan is the canonical, mutable, per-span record passed between
// pipeline stages: decoded from OTLP, mutated in place by the
// canonicalizer, then handed to downstream collaborators (trace I/O
// extraction, a trace-summary writer, etc). It holds no `db:` tags and is
// never itself persisted — persistence is an external collaborator's job.
type NormalizedSpan struct {
	TenantID string
	RecordID string

	TraceID      string
	SpanID       string
	ParentSpanID *string
	ParentTraceID *string
	ParentIsRemote bool
	Sampled        bool

	StartTimeUnixMs int64
	EndTimeUnixMs   int64
	DurationMs      int64

	// Name is mutable: extractors may override it (e.g. Mastra's display
	// name rewrite).
	Name string
	Kind NormSpanKind

	InstrumentationScope InstrumentationScope

	StatusCode    *int
	StatusMessage *string

	ResourceAttributes *AttributeMap
	SpanAttributes     *AttributeMap

	Events []CanonicalEvent
	Links  []SpanLinkRef

	DroppedAttributesCount uint32
	DroppedEventsCount      uint32
	DroppedLinksCount       uint32
}

// SpanLinkRef is a reference to a span in another trace, carried alongside a
// NormalizedSpan.
type SpanLinkRef struct {
	TraceID    string
	SpanID     string
	Attributes *AttributeMap
}

// SetDuration enforces the invariant endTimeUnixMs >= startTimeUnixMs and
// recomputes DurationMs. If endTimeUnixMs is before startTimeUnixMs it is
// clamped to startTimeUnixMs (a malformed span should never report negative
// duration).
func (s *NormalizedSpan) SetDuration(startMs, endMs int64) {
	if endMs < startMs {
		endMs = startMs
	}
	s.StartTimeUnixMs = startMs
	s.EndTimeUnixMs = endMs
	s.DurationMs = endMs - startMs
}

func (s *NormalizedSpan) IsRoot() bool {
	return s.ParentSpanID == nil || *s.ParentSpanID == ""
}

// OTEL span kind enum values, aliasing the SpanKind* constants.
const (
	NormSpanKindUnspecified = SpanKindUnspecified
	NormSpanKindInternal    = SpanKindInternal
	NormSpanKindServer      = SpanKindServer
	NormSpanKindClient      = SpanKindClient
	NormSpanKindProducer    = SpanKindProducer
	NormSpanKindConsumer    = SpanKindConsumer
)

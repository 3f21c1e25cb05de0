package canonicalize

import (
	"fmt"
	"log/slog"

	"brokle/internal/core/domain/observability"
)

// defaultExtractors returns the fixed, significant registration order:
// LangWatch SDK-native attributes are most authoritative,
// GenAI semantic conventions next, framework-specific detectors follow,
// Fallback infers span type from residual signals last.
func defaultExtractors() []Extractor {
	return []Extractor{
		NewLangWatchExtractor(),
		NewGenAIExtractor(),
		NewMastraExtractor(),
		NewOpenInferenceExtractor(),
		NewTraceloopExtractor(),
		NewVercelExtractor(),
		NewStrandsExtractor(),
		NewLogfireExtractor(),
		NewHaystackExtractor(),
		NewLegacyOtelExtractor(),
		NewFallbackExtractor(),
	}
}

// CanonicalizeResult is the outcome of one canonicalization pass.
type CanonicalizeResult struct {
	Attributes   *observability.AttributeMap
	Events       []observability.CanonicalEvent
	AppliedRules []string
}

// CanonicalizeService orders and runs extractors over a span's data bag,
// merging the remaining bag with the extractor output (output wins on
// collision).
type CanonicalizeService struct {
	logger     *slog.Logger
	extractors []Extractor
}

func NewCanonicalizeService(logger *slog.Logger) *CanonicalizeService {
	return &CanonicalizeService{
		logger:     logger,
		extractors: defaultExtractors(),
	}
}

// RegisterExtractor appends a custom extractor after the built-in ones.
// Extractor registration must happen before first use of the service
// (the extractor list is immutable and process-wide once in
// use).
func (s *CanonicalizeService) RegisterExtractor(e Extractor) {
	s.extractors = append(s.extractors, e)
}

// Canonicalize runs every registered extractor, in order, over span's
// attributes/events, then merges the remaining (unconsumed) bag with the
// extractor output map, with output winning every collision.
// An extractor error aborts the pass: extractor exceptions must not be
// swallowed.
func (s *CanonicalizeService) Canonicalize(span *observability.NormalizedSpan) (*CanonicalizeResult, error) {
	bag := observability.NewSpanDataBag(span.SpanAttributes, observability.NewEventBag(span.Events))
	ctx := NewExtractorContext(bag, span)

	for _, extractor := range s.extractors {
		if err := extractor.Apply(ctx); err != nil {
			return nil, fmt.Errorf("extractor %q failed: %w", extractor.ID(), err)
		}
	}

	merged := observability.NewAttributeMap()
	for _, kv := range bag.Remaining() {
		merged.Set(kv.Key, kv.Value)
	}
	for _, kv := range ctx.Out.Remaining() {
		merged.Set(kv.Key, kv.Value)
	}

	return &CanonicalizeResult{
		Attributes:   merged,
		Events:       bag.Events.Remaining(),
		AppliedRules: ctx.AppliedRules(),
	}, nil
}

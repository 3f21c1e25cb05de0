package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"brokle/internal/core/domain/observability"
	apperrors "brokle/pkg/errors"
)

// PiiRedactionLevel controls whether and how aggressively PII scanning runs
// on raw OTLP telemetry before canonicalization.
type PiiRedactionLevel string

const (
	PiiRedactionDisabled  PiiRedactionLevel = "DISABLED"
	PiiRedactionEssential PiiRedactionLevel = "ESSENTIAL"
	PiiRedactionStrict    PiiRedactionLevel = "STRICT"
)

// DefaultPiiBearingAttributeKeys is the default set of attribute keys
// scanned for PII.
var DefaultPiiBearingAttributeKeys = []string{
	"gen_ai.prompt",
	"gen_ai.completion",
	"gen_ai.input.messages",
	"gen_ai.output.messages",
	"gen_ai.request.input_messages",
	"gen_ai.response.output_messages",
	"langwatch.input",
	"langwatch.output",
	"input.value",
	"output.value",
}

// DefaultPiiRedactionMaxAttributeLength is the per-value skip threshold
// above which an attribute is left unredacted and marked skipped.
const DefaultPiiRedactionMaxAttributeLength = 250_000

// PiiClearer is the external PII-clearing backend interface: it
// redacts the string at object[keysPath...] in place.
type PiiClearer interface {
	ClearPII(ctx context.Context, object map[string]interface{}, keysPath []string, opts PiiClearOptions) error
}

// StubPiiClearer is the no-op clearer: it leaves values unredacted. A
// deployment with a reachable langevals backend wires a real
// presidio-backed clearer in its place.
type StubPiiClearer struct{}

func NewStubPiiClearer() *StubPiiClearer { return &StubPiiClearer{} }

func (s *StubPiiClearer) ClearPII(ctx context.Context, object map[string]interface{}, keysPath []string, opts PiiClearOptions) error {
	return nil
}

// PiiClearOptions carries the per-call configuration passed to the external
// clearer.
type PiiClearOptions struct {
	PiiRedactionLevel PiiRedactionLevel
	Enforced          bool
	MainMethod        string
}

// PiiRedactionConfig configures a PiiRedactionService instance.
type PiiRedactionConfig struct {
	Clearer                        PiiClearer
	PiiBearingAttributeKeys        []string
	IsLangevalsConfigured          bool
	IsProduction                   bool
	PiiRedactionMaxAttributeLength int
}

// PiiRedactionService scans a fixed set of PII-bearing attribute keys on raw
// OTLP telemetry (span attributes, event attributes, and link attributes)
// and delegates redaction to an external clearer, before normalization
// runs. In production, an unconfigured backend is a hard error;
// outside production it degrades to a no-op, matching the "enforced in
// production" invariant.
type PiiRedactionService struct {
	clearer        PiiClearer
	bearingKeys    map[string]bool
	langevalsReady bool
	isProduction   bool
	maxAttrLength  int
	logger         *slog.Logger
}

func NewPiiRedactionService(cfg PiiRedactionConfig, logger *slog.Logger) *PiiRedactionService {
	keys := cfg.PiiBearingAttributeKeys
	if keys == nil {
		keys = DefaultPiiBearingAttributeKeys
	}
	bearing := make(map[string]bool, len(keys))
	for _, k := range keys {
		bearing[k] = true
	}
	maxLen := cfg.PiiRedactionMaxAttributeLength
	if maxLen <= 0 {
		maxLen = DefaultPiiRedactionMaxAttributeLength
	}
	return &PiiRedactionService{
		clearer:        cfg.Clearer,
		bearingKeys:    bearing,
		langevalsReady: cfg.IsLangevalsConfigured,
		isProduction:   cfg.IsProduction,
		maxAttrLength:  maxLen,
		logger:         logger,
	}
}

// redactionTarget addresses one PII-bearing string attribute in place: attrs
// is the slice it lives in (span-, event-, or link-level) and idx its
// position, so the redacted value can be written straight back.
type redactionTarget struct {
	attrs []observability.KeyValue
	idx   int
}

func (t redactionTarget) value() string {
	s, _ := t.attrs[t.idx].Value.(string)
	return s
}

func (t redactionTarget) write(v string) {
	t.attrs[t.idx].Value = v
}

// RedactSpan scans span, its events, and its links for PII-bearing
// attributes and redacts them concurrently via the configured external
// clearer, before the span is normalized. It mutates
// span.Attributes (and nested event/link attributes) in place.
func (s *PiiRedactionService) RedactSpan(ctx context.Context, span *observability.OTLPSpan, level PiiRedactionLevel) error {
	if os.Getenv("DISABLE_PII_REDACTION") != "" {
		return nil
	}
	if level == PiiRedactionDisabled {
		return nil
	}
	if s.clearer == nil || !s.langevalsReady {
		if s.isProduction {
			return apperrors.NewAppError(apperrors.ServiceUnavailable, "PII redaction backend is not configured", "", nil)
		}
		return nil
	}

	targets, skippedAny := s.collectTargets(span)

	if len(targets) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range targets {
			t := t
			g.Go(func() error {
				obj := map[string]interface{}{"value": t.value()}
				if err := s.clearer.ClearPII(gctx, obj, []string{"value"}, PiiClearOptions{
					PiiRedactionLevel: level,
					Enforced:          s.isProduction,
					MainMethod:        "presidio",
				}); err != nil {
					s.logger.Error("pii redaction failed", "error", err)
					return fmt.Errorf("pii redaction failed: %w", err)
				}
				if redacted, ok := obj["value"].(string); ok {
					t.write(redacted)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	switch {
	case len(targets) > 0 && skippedAny:
		setSpanAttrString(span, observability.KeyLangWatchReservedPIIRedaction, "partial")
	case len(targets) == 0 && skippedAny:
		setSpanAttrString(span, observability.KeyLangWatchReservedPIIRedaction, "none")
	}

	return nil
}

// collectTargets walks span/event/link attributes, selecting every
// PII-bearing key whose string value is present and within the length
// guard. Oversized values are left unchanged and reported via skippedAny.
func (s *PiiRedactionService) collectTargets(span *observability.OTLPSpan) ([]redactionTarget, bool) {
	var targets []redactionTarget
	skippedAny := false

	scan := func(attrs []observability.KeyValue) {
		for i, kv := range attrs {
			if !s.bearingKeys[kv.Key] {
				continue
			}
			str, ok := kv.Value.(string)
			if !ok || str == "" {
				continue
			}
			if len(str) > s.maxAttrLength {
				skippedAny = true
				continue
			}
			targets = append(targets, redactionTarget{attrs: attrs, idx: i})
		}
	}

	scan(span.Attributes)
	for i := range span.Events {
		scan(span.Events[i].Attributes)
	}
	for i := range span.Links {
		scan(span.Links[i].Attributes)
	}

	return targets, skippedAny
}

func setSpanAttrString(span *observability.OTLPSpan, key, value string) {
	for i := range span.Attributes {
		if span.Attributes[i].Key == key {
			span.Attributes[i].Value = value
			return
		}
	}
	span.Attributes = append(span.Attributes, observability.KeyValue{Key: key, Value: value})
}

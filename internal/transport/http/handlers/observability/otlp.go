package observability

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"brokle/internal/config"
	"brokle/internal/core/domain/observability"
	obsServices "brokle/internal/core/services/observability"
	"brokle/pkg/response"
)

// OTLPHandler handles OTLP HTTP trace ingestion: PII redaction on the raw
// spans, then span-by-span normalization through the canonicalization
// pipeline.
type OTLPHandler struct {
	pipeline    *obsServices.SpanNormalizationPipeline
	piiRedactor *obsServices.PiiRedactionService
	piiLevel    obsServices.PiiRedactionLevel
	logger      *slog.Logger
}

// NewOTLPHandler creates a new OTLP handler.
func NewOTLPHandler(
	pipeline *obsServices.SpanNormalizationPipeline,
	piiRedactor *obsServices.PiiRedactionService,
	piiCfg config.PIIConfig,
	logger *slog.Logger,
) *OTLPHandler {
	return &OTLPHandler{
		pipeline:    pipeline,
		piiRedactor: piiRedactor,
		piiLevel:    obsServices.PiiRedactionLevel(piiCfg.RedactionLevel),
		logger:      logger,
	}
}

// HandleTraces handles POST /v1/traces
// Accepts OpenTelemetry Protocol (OTLP) traces in JSON or Protobuf format.
func (h *OTLPHandler) HandleTraces(c *gin.Context) {
	ctx := c.Request.Context()

	tenantID := c.GetHeader("X-Tenant-ID")
	if tenantID == "" {
		response.BadRequest(c, "missing tenant", "X-Tenant-ID header is required")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read OTLP request body", "error", err)
		response.BadRequest(c, "invalid request", "Failed to read request body")
		return
	}

	if strings.Contains(c.GetHeader("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			response.BadRequest(c, "invalid encoding", "Failed to decompress gzip data")
			return
		}
		defer gzipReader.Close()

		body, err = io.ReadAll(gzipReader)
		if err != nil {
			response.BadRequest(c, "invalid encoding", "Failed to read decompressed data")
			return
		}
	}

	var protoReq coltracepb.ExportTraceServiceRequest
	if strings.Contains(c.GetHeader("Content-Type"), "application/x-protobuf") {
		if err := proto.Unmarshal(body, &protoReq); err != nil {
			response.ValidationError(c, "invalid OTLP protobuf", err.Error())
			return
		}
	} else {
		if err := protojson.Unmarshal(body, &protoReq); err != nil {
			response.ValidationError(c, "invalid OTLP JSON", err.Error())
			return
		}
	}

	otlpReq := obsServices.DecodeProtoRequest(&protoReq)
	if len(otlpReq.ResourceSpans) == 0 {
		response.ValidationError(c, "empty request", "OTLP request must contain at least one resource span")
		return
	}

	var normalized []*observability.NormalizedSpan
	var rejected int

	for ri := range otlpReq.ResourceSpans {
		rs := &otlpReq.ResourceSpans[ri]
		for si := range rs.ScopeSpans {
			ss := &rs.ScopeSpans[si]
			for pi := range ss.Spans {
				span := &ss.Spans[pi]

				// Redaction runs on the raw span, before normalization.
				if err := h.piiRedactor.RedactSpan(ctx, span, h.piiLevel); err != nil {
					h.logger.Error("pii redaction failed", "tenant_id", tenantID, "error", err)
					response.InternalServerError(c, "Failed to redact telemetry")
					return
				}

				ns, err := h.pipeline.NormalizeSpanReceived(tenantID, *span, rs.Resource, ss.Scope)
				if err != nil {
					h.logger.Warn("span normalization failed",
						"tenant_id", tenantID,
						"span_name", span.Name,
						"error", err,
					)
					rejected++
					continue
				}
				normalized = append(normalized, ns)
			}
		}
	}

	h.logger.Debug("OTLP traces normalized",
		"tenant_id", tenantID,
		"processed_spans", len(normalized),
		"rejected_spans", rejected,
	)

	response.Success(c, map[string]interface{}{
		"status":          "accepted",
		"processed_spans": len(normalized),
		"rejected_spans":  rejected,
	})
}

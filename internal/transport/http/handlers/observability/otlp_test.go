package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokle/internal/config"
	obsServices "brokle/internal/core/services/observability"
	"brokle/internal/core/services/observability/canonicalize"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pipeline := obsServices.NewSpanNormalizationPipeline(canonicalize.NewCanonicalizeService(slog.Default()))
	piiRedactor := obsServices.NewPiiRedactionService(obsServices.PiiRedactionConfig{}, slog.Default())
	handler := NewOTLPHandler(pipeline, piiRedactor, config.PIIConfig{RedactionLevel: "DISABLED"}, slog.Default())

	router := gin.New()
	router.POST("/v1/traces", handler.HandleTraces)
	return router
}

func otlpJSONBody() []byte {
	return []byte(`{
		"resourceSpans": [{
			"scopeSpans": [{
				"scope": {"name": "ai"},
				"spans": [{
					"traceId": "ASNFZ4mrze8BI0VniavN7w==",
					"spanId": "ASNFZ4mrze8=",
					"name": "ai.generateText",
					"kind": 3,
					"startTimeUnixNano": "1700000000000000000",
					"endTimeUnixNano": "1700000000500000000",
					"attributes": [
						{"key": "ai.prompt", "value": {"stringValue": "Hi"}}
					]
				}]
			}]
		}]
	}`)
}

func TestHandleTraces_AcceptsOTLPJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader(otlpJSONBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, float64(1), resp.Data["processed_spans"])
	assert.Equal(t, float64(0), resp.Data["rejected_spans"])
}

func TestHandleTraces_RequiresTenantHeader(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader(otlpJSONBody()))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTraces_RejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader([]byte(`{"broken`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTraces_RejectsEmptyRequest(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

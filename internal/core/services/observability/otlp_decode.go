package observability

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"brokle/internal/core/domain/observability"
)

// OTLP wire decoding helpers for the span normalization pipeline. The wire
// shapes are loose on purpose: ids arrive as hex strings, raw bytes, or
// {data: [...]} buffers, and unix-nano timestamps as int64, float64, decimal
// strings, or {low, high} bigint pairs, depending on the exporting SDK.

// isRootSpanCheck determines if a span is a root span by checking if parent ID
// is nil, empty, all-zero hex, or a zero-byte buffer.
func isRootSpanCheck(parentSpanID interface{}) bool {
	if parentSpanID == nil {
		return true
	}

	if str, ok := parentSpanID.(string); ok {
		if str == "" || str == "0000000000000000" {
			return true
		}
	}

	if mapVal, ok := parentSpanID.(map[string]interface{}); ok {
		if data, ok := mapVal["data"].([]interface{}); ok {
			allZero := true
			for _, b := range data {
				if intVal, ok := b.(float64); ok && intVal != 0 {
					allZero = false
					break
				}
			}
			return allZero
		}
	}

	if bytes, ok := parentSpanID.([]byte); ok {
		for _, b := range bytes {
			if b != 0 {
				return false
			}
		}
		return true
	}

	return false
}

func convertTraceID(traceID interface{}) (string, error) {
	switch v := traceID.(type) {
	case string:
		if len(v) == 32 {
			return v, nil
		}
		return "", fmt.Errorf("invalid trace_id length: %d (expected 32)", len(v))
	case map[string]interface{}:
		if data, ok := v["data"].([]interface{}); ok {
			return bytesToHex(data), nil
		}
	case []byte:
		return hex.EncodeToString(v), nil
	}
	return "", fmt.Errorf("unsupported trace_id type: %T", traceID)
}

func convertSpanID(spanID interface{}) (string, error) {
	switch v := spanID.(type) {
	case string:
		if len(v) == 16 {
			return v, nil
		}
		return "", fmt.Errorf("invalid span_id length: %d (expected 16)", len(v))
	case map[string]interface{}:
		if data, ok := v["data"].([]interface{}); ok {
			return bytesToHex(data), nil
		}
	case []byte:
		return hex.EncodeToString(v), nil
	}
	return "", fmt.Errorf("unsupported span_id type: %T", spanID)
}

// convertUnixNano accepts int64/float64 nanos, the OTLP/JSON decimal-string
// encoding of uint64, and the {low, high} bigint pair some JS exporters emit.
func convertUnixNano(ts interface{}) *time.Time {
	if ts == nil {
		return nil
	}

	var nanos int64
	switch v := ts.(type) {
	case int64:
		nanos = v
	case float64:
		nanos = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil
		}
		nanos = parsed
	case map[string]interface{}:
		low, lowOk := v["low"].(float64)
		high, highOk := v["high"].(float64)
		if !lowOk || !highOk {
			return nil
		}
		nanos = int64(high)*4294967296 + int64(low)
	default:
		return nil
	}

	if nanos == 0 {
		return nil
	}

	t := time.Unix(0, nanos)
	return &t
}

func convertSpanKind(kind int) uint8 {
	switch kind {
	case 0:
		return observability.SpanKindUnspecified
	case 1:
		return observability.SpanKindInternal
	case 2:
		return observability.SpanKindServer
	case 3:
		return observability.SpanKindClient
	case 4:
		return observability.SpanKindProducer
	case 5:
		return observability.SpanKindConsumer
	default:
		return observability.SpanKindInternal
	}
}

func convertStatusCode(status *observability.Status) uint8 {
	if status == nil {
		return observability.StatusCodeUnset
	}
	switch status.Code {
	case 0:
		return observability.StatusCodeUnset
	case 1:
		return observability.StatusCodeOK
	case 2:
		return observability.StatusCodeError
	default:
		return observability.StatusCodeUnset
	}
}

// extractValue unwraps the OTLP attribute value union
// ({stringValue|intValue|boolValue|doubleValue|arrayValue}) into a plain Go
// value; already-plain scalars pass through.
func extractValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case map[string]interface{}:
		if sv, ok := val["stringValue"].(string); ok {
			return sv
		}
		if iv, ok := val["intValue"].(float64); ok {
			return int64(iv)
		}
		if iv, ok := val["intValue"].(string); ok {
			if parsed, err := strconv.ParseInt(iv, 10, 64); err == nil {
				return parsed
			}
			return iv
		}
		if bv, ok := val["boolValue"].(bool); ok {
			return bv
		}
		if dv, ok := val["doubleValue"].(float64); ok {
			return dv
		}
		if av, ok := val["arrayValue"].(map[string]interface{}); ok {
			if values, ok := av["values"].([]interface{}); ok {
				result := make([]interface{}, len(values))
				for i, item := range values {
					result[i] = extractValue(item)
				}
				return result
			}
		}
		return val
	case string, int, int64, float64, bool:
		return val
	}

	return v
}

func bytesToHex(data []interface{}) string {
	bytes := make([]byte, len(data))
	for i, v := range data {
		if f, ok := v.(float64); ok {
			bytes[i] = byte(f)
		}
	}
	return hex.EncodeToString(bytes)
}

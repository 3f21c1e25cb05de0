package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTraceID(t *testing.T) {
	id, err := convertTraceID(testTraceID)
	require.NoError(t, err)
	assert.Equal(t, testTraceID, id)

	_, err = convertTraceID("deadbeef")
	assert.Error(t, err)

	id, err = convertTraceID([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, "0102", id)

	id, err = convertTraceID(map[string]interface{}{
		"data": []interface{}{float64(0), float64(255)},
	})
	require.NoError(t, err)
	assert.Equal(t, "00ff", id)

	_, err = convertTraceID(42)
	assert.Error(t, err)
}

func TestConvertUnixNano(t *testing.T) {
	tm := convertUnixNano(int64(1_500_000_000))
	require.NotNil(t, tm)
	assert.Equal(t, int64(1500), tm.UnixMilli())

	tm = convertUnixNano("2000000000")
	require.NotNil(t, tm)
	assert.Equal(t, int64(2000), tm.UnixMilli())

	tm = convertUnixNano(map[string]interface{}{"low": float64(0), "high": float64(1)})
	require.NotNil(t, tm)
	assert.Equal(t, int64(4294967296), tm.UnixNano())

	assert.Nil(t, convertUnixNano(nil))
	assert.Nil(t, convertUnixNano(int64(0)))
	assert.Nil(t, convertUnixNano("not a number"))
}

func TestIsRootSpanCheck(t *testing.T) {
	assert.True(t, isRootSpanCheck(nil))
	assert.True(t, isRootSpanCheck(""))
	assert.True(t, isRootSpanCheck("0000000000000000"))
	assert.False(t, isRootSpanCheck("fedcba9876543210"))
	assert.True(t, isRootSpanCheck(map[string]interface{}{
		"data": []interface{}{float64(0), float64(0)},
	}))
	assert.False(t, isRootSpanCheck(map[string]interface{}{
		"data": []interface{}{float64(0), float64(7)},
	}))
}

func TestExtractValue(t *testing.T) {
	assert.Equal(t, "s", extractValue(map[string]interface{}{"stringValue": "s"}))
	assert.Equal(t, int64(5), extractValue(map[string]interface{}{"intValue": float64(5)}))
	assert.Equal(t, int64(9), extractValue(map[string]interface{}{"intValue": "9"}))
	assert.Equal(t, true, extractValue(map[string]interface{}{"boolValue": true}))
	assert.Equal(t, 1.5, extractValue(map[string]interface{}{"doubleValue": 1.5}))

	arr := extractValue(map[string]interface{}{
		"arrayValue": map[string]interface{}{
			"values": []interface{}{
				map[string]interface{}{"stringValue": "a"},
				map[string]interface{}{"intValue": float64(2)},
			},
		},
	})
	assert.Equal(t, []interface{}{"a", int64(2)}, arr)

	assert.Equal(t, "plain", extractValue("plain"))
	assert.Nil(t, extractValue(nil))
}

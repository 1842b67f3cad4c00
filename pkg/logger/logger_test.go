package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedLoggersAddFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")

	l.WithRequestID("req-1").
		WithStallKey("A01|2026-02-01").
		WithError(errors.New("redis down")).
		WithFields(map[string]interface{}{"attempt": 2}).
		ErrorContext(context.Background(), "sweep failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sweep failed", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "A01|2026-02-01", line["stall_key"])
	assert.Equal(t, "redis down", line["error"])
	assert.EqualValues(t, 2, line["attempt"])
}

func TestLevelFiltering(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

package logger

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"bogus", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(Options{Level: tt.level, Format: "text", Output: &bytes.Buffer{}})
			assert.Equal(t, tt.want, l.Logger.GetLevel())
		})
	}
}

func TestWithRequest_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Output: &buf})

	req := httptest.NewRequest("POST", "/process", nil)
	req.Header.Set("X-Request-ID", "req-42")
	l.WithRequest(req).WithRun("run-1").Info("accepted")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["req_id"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/process", line["path"])
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, "accepted", line["msg"])
}

func TestWithRequest_GeneratesID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Output: &buf})

	l.WithRequest(httptest.NewRequest("GET", "/progress", nil)).Info("poll")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotEmpty(t, line["req_id"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Output: &buf})

	l.WithError(assert.AnError).Error("boom")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, assert.AnError.Error(), line["error"])
}

package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditorLogger_Output(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	logger.WithComponent("enforcer").With("root", "editor").
		Warn(context.Background(), errors.New("boom"), "hook failed", "tag", "p")

	out := buf.String()
	assert.Contains(t, out, `"component":"enforcer"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"root":"editor"`)
	assert.Contains(t, out, `"tag":"p"`)
	assert.Contains(t, out, "hook failed")
}

func TestEditorLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "debug message")
	logger.Info(context.Background(), "info message")
	assert.Empty(t, buf.String())

	logger.Error(context.Background(), nil, "error message")
	assert.Contains(t, buf.String(), "error message")
}

func TestEditorLogger_WithDoesNotLeakFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	_ = base.With("session", "abc")
	base.Info(context.Background(), "plain")

	assert.NotContains(t, buf.String(), "session")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestStartOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	StartOperation(logger, "normalize").End(context.Background())
	assert.Contains(t, buf.String(), `"operation":"normalize"`)
	assert.Contains(t, buf.String(), "Operation completed")

	buf.Reset()
	StartOperation(logger, "apply").EndWithError(context.Background(), errors.New("no block"))
	assert.Contains(t, buf.String(), `"error":"no block"`)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

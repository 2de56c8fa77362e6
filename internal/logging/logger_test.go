package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("engine %s mounted", "kv")
	logger.Warn("snapshot missing for %s", "pki/root")
	logger.Error("apply failed")
	logger.Debug("should not appear")

	out := buf.String()
	assert.Contains(t, out, "✓ engine kv mounted")
	assert.Contains(t, out, "⚠ snapshot missing for pki/root")
	assert.Contains(t, out, "✗ apply failed")
	assert.NotContains(t, out, "should not appear")
}

func TestLoggerDebugEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	logger.Debug("dispatching %d nodes", 3)
	assert.Contains(t, buf.String(), "[DEBUG] dispatching 3 nodes")
}

func TestSecretNeverPrints(t *testing.T) {
	t.Parallel()

	s := Secret("hunter2-hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{
			name:     "single secret",
			input:    "token=s3cr3tvalue rest",
			secrets:  []string{"s3cr3tvalue"},
			expected: "token=[REDACTED] rest",
		},
		{
			name:     "short secrets left alone",
			input:    "a=b",
			secrets:  []string{"b"},
			expected: "a=b",
		},
		{
			name:     "empty secret list",
			input:    "nothing here",
			secrets:  nil,
			expected: "nothing here",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Redact(tt.input, tt.secrets))
		})
	}
}

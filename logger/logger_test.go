package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		level, err := ParseLevel(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
		assert.Equal(t, tt.expected, level, tt.name)
	}
}

func TestSlogLogger_JSON(t *testing.T) {
	t.Setenv("ENV", "")
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("port", "/dev/ttyACM0").Warn("firmata: discarded frame", "kind", "PinState")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("WARN", rec["level"])
	require.Equal("firmata: discarded frame", rec["msg"])
	require.Equal("/dev/ttyACM0", rec["port"])
	require.Equal("PinState", rec["kind"])
	require.Contains(rec, "ts")
}

func TestSlogLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, WarnLevel, false)
	assert.Equal(t, WarnLevel, l.Level())

	child := l.With("k", "v")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	l.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, l.Level())
}

func TestMockLogger_AllowAll(t *testing.T) {
	m := NewMockLogger().AllowAll()
	m.Warn("firmata: test", "a", 1)
	m.With("x", 1).Info("child")

	m.AssertCalled(t, "Warn", "firmata: test", []any{"a", 1})
	m.AssertCalled(t, "Info", "child", []any(nil))
}

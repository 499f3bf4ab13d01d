package gridlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewZeroLogger_DefaultIsJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("", "info", false)
	l := logger.Output(&buf)
	l.Info().Msg("test message")

	out := buf.String()

	if !strings.Contains(out, `"level":"info"`) {
		t.Fatalf("expected JSON output with level field, got: %s", out)
	}
	if !strings.Contains(out, `"message":"test message"`) {
		t.Fatalf("expected JSON output with message field, got: %s", out)
	}
}

func TestZeroDefaultLevelIsInfo(t *testing.T) {
	level := Zero.GetLevel()
	if level != zerolog.InfoLevel {
		t.Fatalf("expected default log level to be Info, got: %v", level)
	}
}

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)

	for in, want := range map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"garbage": zerolog.InfoLevel,
	} {
		assert.Equal(want, parseLevel(in), in)
	}
}

func TestNewZeroLoggerWritesToFile(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "grid.log")
	logger := NewZeroLogger(path, "debug", false)
	logger.Debug().Str("collection", "books").Msg("hello")

	data, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Contains(string(data), `"collection":"books"`)
}

func TestSince(t *testing.T) {
	start := time.Now().Add(-5 * time.Millisecond)
	assert.GreaterOrEqual(t, Since(start), float64(5))
}

package gridlog

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", false)

// NewZeroLogger builds the process logger. Output is JSON unless pretty is
// set, in which case a human readable console writer is used.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	_, writer, err := newWriter(filepath)
	if err != nil {
		writer = os.Stdout
	}
	if pretty {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(writer).Level(parseLevel(level)).With().Timestamp().Logger()

	return &logger
}

// ReloadLogger replaces the global logger, keeping nothing from the old one.
func ReloadLogger(filepath string, level string, pretty bool) {
	Zero = NewZeroLogger(filepath, level, pretty)
}

func UpdateZeroLogLevel(logLevel string) error {
	level := parseLevel(logLevel)
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

package gridlog

import (
	"io"
	"os"
	"time"
)

// newWriter returns os.Stdout for an empty filepath, otherwise the file
// opened in append mode.
func newWriter(filepath string) (*os.File, io.Writer, error) {
	if filepath == "" {
		return nil, os.Stdout, nil
	}
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// Since reports elapsed milliseconds, the unit every duration field in the
// logs uses.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

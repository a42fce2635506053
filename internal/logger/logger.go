// Package logger builds the process-wide zerolog root logger. Components
// receive children of it via their Config structs.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New creates a JSON logger at the given level, writing to stderr. Unknown
// levels fall back to info.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

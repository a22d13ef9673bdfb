package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger and installs it as the global zerolog
// logger. Debug mode switches to a human readable console writer with debug
// level and stack traces.
func Setup(dev bool) zerolog.Logger {
	return SetupWriter(os.Stderr, dev)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(out io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.TimeOnly)
		}}).Level(level).With().Caller().Stack().Logger()
	}

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	return logger
}

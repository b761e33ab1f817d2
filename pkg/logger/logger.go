package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "evalmate"

func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    false,
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Caller().
		Logger()

	return logger.Level(zerolog.InfoLevel)
}

func NewWithConfig(level string, pretty, noColor bool) zerolog.Logger {
	return newWithWriter(os.Stdout, level, pretty, noColor)
}

func newWithWriter(out io.Writer, level string, pretty, noColor bool) zerolog.Logger {
	var log zerolog.Logger

	if pretty {
		output := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
		log = zerolog.New(output).With().Timestamp().Str("service", serviceName).Logger()
	} else {
		log = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
	}

	return log.Level(ParseLevel(level))
}

// ParseLevel понимает debug/info/warn/error, всё остальное считается info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

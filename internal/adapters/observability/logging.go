package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process-wide zerolog Logger, stamped with the
// service name so api, scheduler, and worker lines are tellable apart in
// shared log streams. APP_ENV=dev (or development) uses a human-friendly
// console writer.
func NewLogger(service, env string) zerolog.Logger {
	l := zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
	if env == "dev" || env == "development" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Str("service", service).Logger()
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		l = l.Level(lvl)
	}
	return l
}

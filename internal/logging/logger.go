package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// New builds the service logger and installs it as the global zerolog logger.
// Development output is human readable; everything else is JSON.
func New(service, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", service).Logger()
	zlog.Logger = logger
	zerolog.DefaultContextLogger = &zlog.Logger
	return logger
}

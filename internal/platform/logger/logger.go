package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New crea el logger del servicio.
// - level: debug|info|warn|error (default info)
// - format: json|console (default json; console para dev)
func New(app, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stdout)
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	ctx := out.Level(lvl).With().Timestamp()
	if app = strings.TrimSpace(app); app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}

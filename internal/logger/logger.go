// Package logger provides structured logging setup for BreachCache.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/BreachCache/internal/config"
)

// Async handler sizing. Lookups log at debug on every request, so the
// buffer is sized for bursts rather than steady state.
const (
	asyncBufferSize = 4096
	asyncWorkers    = 2
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and a
// "request_id" attribute whenever the context carries one. The returned
// Closer flushes buffered records in async mode.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newWithWriter(os.Stdout, cfg)
}

func newWithWriter(w io.Writer, cfg config.Logging) (*slog.Logger, Closer) {
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	if cfg.Async {
		ah := NewAsyncHandler(base, asyncBufferSize, asyncWorkers)
		return slog.New(ah).With("service", cfg.Service), ah
	}

	return slog.New(&ContextHandler{inner: base}).With("service", cfg.Service), nopCloser{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

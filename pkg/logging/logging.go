// Package logging provides the engine's default slog handler: a colorized
// tint handler writing to stderr. Callers are expected to thread a
// *slog.Logger through constructors rather than reach for a package-level
// singleton; Default is provided only as the fallback those constructors
// use when the caller passes nil.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Default builds the tint-backed stderr logger used whenever a component's
// constructor receives a nil *slog.Logger.
func Default() *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		AddSource:  true,
	})
	return slog.New(handler)
}

package logger

import (
	"log"
	"log/slog"
)

// New bridges a slog.Logger into a stdlib *log.Logger tagged with a component,
// for APIs such as http.Server.ErrorLog that only accept the latter.
func New(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelError)
}

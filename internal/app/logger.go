package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger. JSON output is meant for log
// shippers; pretty output keeps source locations for local debugging.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	env := "development"
	if cfg != nil {
		env = cfg.AppEnv
	}
	if !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "pharmadist"), slog.String("env", env))
}

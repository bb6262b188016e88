// Package logger opens the simulation trace for the TUI. Bubbletea owns the
// terminal, so the trace goes to a file; the same *slog.Logger is handed to
// the simulated machine, which means kernel traces (page faults, frame
// allocations, disk parking) and UI events (worker spawned, yield, verify)
// interleave in one stream, in order.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// traceFile is the per-run trace, truncated on every start so a session's
// log reads front to back.
const traceFile = "trace.jsonl"

// Setup returns the trace logger and a close function. Disabled, it returns
// a logger that discards everything and a no-op close. dir overrides the
// default ~/.kernview location.
func Setup(enabled bool, dir string) (*slog.Logger, func() error, error) {
	if !enabled {
		noop := func() error { return nil }
		return slog.New(slog.NewTextHandler(io.Discard, nil)), noop, nil
	}

	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, err
		}
		dir = filepath.Join(home, ".kernview")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, err
	}

	f, err := os.Create(filepath.Join(dir, traceFile))
	if err != nil {
		return nil, nil, err
	}

	log := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	log.Info("trace opened", "pid", os.Getpid())
	return log, f.Close, nil
}

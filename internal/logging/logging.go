// Package logging configures the run log: a slog text handler writing to a
// file (or any writer) that records per-paper outcomes and timings alongside
// the progress lines the stages print.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the run log written in the working directory.
const DefaultFile = "workflow-miner.log"

// New returns a text logger writing to w at the named level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// Open appends to the log file at path and installs the logger as the slog
// default. The returned closer releases the file. An empty path or "-"
// logs to stderr.
func Open(path, level string) (*slog.Logger, io.Closer, error) {
	if path == "" || path == "-" {
		l := New(os.Stderr, level)
		slog.SetDefault(l)
		return l, io.NopCloser(nil), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	l := New(f, level)
	slog.SetDefault(l)
	return l, f, nil
}

// ParseLevel maps debug, info, warn and error to slog levels; anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Package obslog builds the kernel's structured logger: a log/slog.Logger
// over a rotating file sink, the same text-handler-over-slog.Logger shape
// the teacher's daemon uses, generalized from io.Discard-in-tests to a real
// rotating destination.
package obslog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where logs go and how verbose they are.
type Config struct {
	// Path is the log file; empty means stderr only.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
	JSON       bool
}

// New builds a *slog.Logger per cfg. When cfg.Path is set, output is
// duplicated to both the rotating file and stderr so a foreground run still
// shows activity while a daemonized run still has a durable log.
func New(cfg Config) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.Path != "" {
		rl := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rl)
		closer = rl
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

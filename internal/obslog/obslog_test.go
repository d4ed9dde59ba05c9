package obslog

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aide.log")

	log, closer := New(Config{Path: path, Level: slog.LevelInfo})
	defer closer.Close()

	log.Info("turn finalized", "page_id", "p1")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain the logged line")
	}
}

func TestNewDefaultsToStderrWithoutPath(t *testing.T) {
	log, closer := New(Config{Level: slog.LevelWarn})
	defer closer.Close()
	if log == nil {
		t.Fatal("expected a non-nil logger")
	}
}

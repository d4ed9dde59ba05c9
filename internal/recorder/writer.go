package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Writer is the append-only JSONL sink flight records are batched onto,
// grounded on audit.Append's encode-and-flush shape, generalized from one
// entry per call to one batch per call and from a bare os.File to a
// lumberjack-rotated one.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	rl  *lumberjack.Logger
}

// NewWriter opens (creating if needed) a rotating JSONL file at path.
// maxSizeMB/maxBackups/maxAgeDays follow lumberjack.Logger's own semantics;
// zero values take lumberjack's defaults (100 MB per file, no backup cap,
// no age limit).
func NewWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) *Writer {
	rl := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return &Writer{out: rl, rl: rl}
}

// AppendBatch writes each entry as one JSON line. A single entry that fails
// to marshal is skipped (§4.8 "serialization errors skip the single bad
// record"); the rest of the batch still writes.
func (w *Writer) AppendBatch(entries []entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bw := bufio.NewWriter(w.out)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	var skipped int
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			skipped++
			continue
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("recorder: flush batch: %w", err)
	}
	if skipped > 0 {
		return fmt.Errorf("recorder: skipped %d unserializable record(s)", skipped)
	}
	return nil
}

// Close releases the underlying rotated file handle.
func (w *Writer) Close() error {
	return w.rl.Close()
}

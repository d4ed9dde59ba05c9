// Package daemon provides the single-instance bootstrap lock for `aide
// serve` — spec.md scopes this kernel to single-node correctness only, so
// unlike the teacher's multi-workspace daemon registry (one entry per
// workspace, cross-host discovery, kill-all), there is exactly one lock:
// "is an aide server already running against this data directory."
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// PIDFile is the lock file name under the data directory.
const PIDFile = "aide.pid"

// Lock holds the exclusive file lock backing a single running server
// instance.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes the exclusive instance lock under dataDir, creating dataDir
// if needed, and writes the current PID into the lock file for operator
// visibility (`cat .aide/aide.pid`). It returns ErrAlreadyRunning if another
// process already holds it.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("daemon: create data directory: %w", err)
	}

	path := filepath.Join(dataDir, PIDFile)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("daemon: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("daemon: write pid file: %w", err)
	}

	return &Lock{fl: fl, path: path}, nil
}

// Release drops the instance lock. It does not remove the pid file, so an
// operator inspecting a crashed server's data directory can still see the
// last owning PID.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("daemon: release lock: %w", err)
	}
	return nil
}

// ErrAlreadyRunning is returned by Acquire when another process holds the
// instance lock.
var ErrAlreadyRunning = fmt.Errorf("daemon: another aide server already holds the instance lock")

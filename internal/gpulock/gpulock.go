// Package gpulock serializes GPU-bound operations across detlab processes
// with an advisory file lock. The downscaler, frame extractor, trainer, and
// predictor all contend for a single GPU, so only one may run at a time.
package gpulock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock guards GPU work behind a file lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// New creates a lock for the given path. Nothing is acquired yet.
func New(path string) *Lock {
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. A held lock yields an error
// naming the lock file so the operator can find the competing process.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire gpu lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another gpu operation holds %s", l.path)
	}
	return nil
}

// Release drops the lock. Safe to call when nothing is held.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

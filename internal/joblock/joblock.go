// Package joblock serializes runs of the same regeneration job across
// processes with per-job lock files.
package joblock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrJobLocked is returned when another invocation holds the job's lock.
var ErrJobLocked = errors.New("job is already being processed")

// Locker hands out locks under a directory.
type Locker struct {
	dir string
}

// New returns a Locker writing lock files under dir.
func New(dir string) *Locker {
	return &Locker{dir: dir}
}

// Lock is a held job lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock for jobID without blocking. It returns ErrJobLocked
// when the lock is held elsewhere.
func (l *Locker) Acquire(jobID string) (*Lock, error) {
	name := lockName(jobID)
	if name == "" {
		return nil, errors.New("acquire job lock: job id is empty")
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	path := filepath.Join(l.dir, name+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobLocked, jobID)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	_ = os.Remove(l.path)
	return nil
}

// lockName maps each distinct id to its own fixed-length file name.
func lockName(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(jobID))
	return hex.EncodeToString(sum[:])
}

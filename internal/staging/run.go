package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"imscp/internal/textutil"
)

// LockName is the lock file held inside every active run directory.
const LockName = ".run.lock"

// OutputLockName guards an output directory against concurrent packaging.
const OutputLockName = ".imscp.lock"

// ErrOutputLocked reports another process packaging into the same output dir.
var ErrOutputLocked = errors.New("output directory is locked by another imscp process")

// Run is a locked per-invocation work directory under staging_dir.
type Run struct {
	Dir  string
	lock *flock.Flock
}

// Begin creates and locks a fresh run directory named after label.
func Begin(stagingDir, label string) (*Run, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, errors.New("staging directory is not configured")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	dir, err := os.MkdirTemp(stagingDir, "run-"+textutil.SanitizeToken(label)+"-")
	if err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockName))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		_ = os.RemoveAll(dir)
		if err == nil {
			err = errors.New("lock already held")
		}
		return nil, fmt.Errorf("lock run directory: %w", err)
	}
	return &Run{Dir: dir, lock: lock}, nil
}

// Path joins elem onto the run directory.
func (r *Run) Path(elem ...string) string {
	return filepath.Join(append([]string{r.Dir}, elem...)...)
}

// Close releases the lock and removes the run directory.
func (r *Run) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.lock != nil {
		errs = append(errs, r.lock.Unlock())
	}
	errs = append(errs, os.RemoveAll(r.Dir))
	return errors.Join(errs...)
}

// Keep releases the lock but leaves the directory for inspection.
func (r *Run) Keep() error {
	if r == nil || r.lock == nil {
		return nil
	}
	return r.lock.Unlock()
}

// OutputLock is an exclusive lock on an output directory.
type OutputLock struct {
	lock *flock.Flock
}

// LockOutput takes the output directory lock or returns ErrOutputLocked.
func LockOutput(outputDir string) (*OutputLock, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, OutputLockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return nil, ErrOutputLocked
	}
	return &OutputLock{lock: lock}, nil
}

// Release unlocks the output directory.
func (l *OutputLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// active reports whether dir holds a run lock owned by a live process.
func active(dir string) bool {
	path := filepath.Join(dir, LockName)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

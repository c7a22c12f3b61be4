package filelock

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
)

// retryInterval is how long Acquire sleeps between non-blocking attempts.
// Contended sections are short (single JSON read-modify-write), so a small
// interval keeps acquisition latency low without spinning.
const retryInterval = 10 * time.Millisecond

// Lock is a held advisory lock on a resource path. The zero value is not
// usable; obtain a Lock via Acquire.
type Lock struct {
	path string
	file *os.File
}

// Acquire obtains an exclusive lock on the given lock file path, creating the
// file if needed. It retries non-blocking flock attempts until the timeout
// elapses, then fails with errors.ErrLockTimeout. A non-positive timeout
// allows exactly one attempt.
func Acquire(path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.NewLockError("open lock file", err).WithResource(path)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &Lock{path: path, file: f}, nil
		}
		if err != syscall.EWOULDBLOCK {
			_ = f.Close()
			return nil, errors.NewLockError("flock", err).WithResource(path)
		}
		if !time.Now().Before(deadline) {
			_ = f.Close()
			return nil, errors.NewLockError(
				fmt.Sprintf("not acquired within %s", timeout),
				errors.ErrLockTimeout,
			).WithResource(path)
		}
		time.Sleep(retryInterval)
	}
}

// TryAcquire attempts to obtain the lock without waiting.
// Returns (nil, false, nil) if the lock is held elsewhere.
func TryAcquire(path string) (*Lock, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, errors.NewLockError("open lock file", err).WithResource(path)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, errors.NewLockError("flock", err).WithResource(path)
	}
	return &Lock{path: path, file: f}, true, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. Releasing an already-released
// lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		l.file = nil
		return errors.NewLockError("funlock", err).WithResource(l.path)
	}

	err := l.file.Close()
	l.file = nil
	return err
}

// WithLock acquires the lock, runs fn, and releases on every exit path.
// The lock is not held across anything fn defers beyond its own return.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lock, err := Acquire(path, timeout)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

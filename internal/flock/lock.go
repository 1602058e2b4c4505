package flock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Acquire opens lockPath and retries an exclusive lock until it succeeds,
// ctx is canceled, or timeout elapses.
func Acquire(ctx context.Context, lockPath string, timeout time.Duration) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- path is built by the caller from the artifact path
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return nil, err
		}

		if err := tryLock(f.Fd()); err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", lockPath, tabulaerrors.ErrLockTimeout)
		}

		time.Sleep(constants.LockRetryInterval)
	}
}

// Release unlocks and closes f. The lock file stays in place so every
// process locks the same inode.
func Release(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}

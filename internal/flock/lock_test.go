//go:build unix

package flock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

func TestAcquire_Release(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "unit.yaml.lock")

	f, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.NoError(t, Release(f))

	// lock is free again
	f, err = Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.NoError(t, Release(f))
}

func TestRelease_KeepsLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.lock")

	held, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	before, err := os.Stat(path)
	require.NoError(t, err)

	// a waiter opens the lock file while it is held
	acquired := make(chan *os.File, 1)
	go func() {
		f, err := Acquire(context.Background(), path, 2*time.Second)
		if err != nil {
			acquired <- nil
			return
		}
		acquired <- f
	}()

	require.NoError(t, Release(held))
	after, err := os.Stat(path)
	require.NoError(t, err, "lock file survives release")
	assert.True(t, os.SameFile(before, after))

	waiter := <-acquired
	require.NotNil(t, waiter)
	defer func() { _ = Release(waiter) }()

	// a newcomer locks the same file and must wait for the waiter
	_, err = Acquire(context.Background(), path, 100*time.Millisecond)
	require.ErrorIs(t, err, tabulaerrors.ErrLockTimeout)
}

func TestAcquire_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.lock")

	held, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	defer func() { _ = Release(held) }()

	_, err = Acquire(context.Background(), path, 100*time.Millisecond)
	require.ErrorIs(t, err, tabulaerrors.ErrLockTimeout)
}

func TestAcquire_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, filepath.Join(t.TempDir(), "x.lock"), time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRelease_Nil(t *testing.T) {
	assert.NoError(t, Release(nil))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")

	require.NoError(t, WriteFile(context.Background(), path, []byte("one"), time.Second))
	require.NoError(t, WriteFile(context.Background(), path, []byte("two"), time.Second))

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

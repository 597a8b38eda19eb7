package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"bento/internal/lockfile"
	"bento/pkg/logging"
)

var (
	// ErrNotRunning is returned by StopRunning when no lock file exists.
	ErrNotRunning = errors.New("bento-cluster is not running")
	// ErrStopTimeout is returned when the lock file outlives the stop timeout.
	ErrStopTimeout = errors.New("timed out waiting for bento-cluster to stop")
)

const stopPollInterval = 200 * time.Millisecond

// StopRunning signals the run holding the lock of stateDir and waits until
// it has released the lock or ctx ends.
func StopRunning(ctx context.Context, stateDir string) error {
	guard := lockfile.New(stateDir)
	pid, err := guard.ReadPID()
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w in %s", ErrNotRunning, stateDir)
	}
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find pid %d from %s: %w", pid, guard.Path(), err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return &lockfile.AlreadyRunningError{PID: pid, Path: guard.Path(), Alive: false}
	}
	logging.Info("CLI", "Sent SIGTERM to bento-cluster (pid %d), waiting for it to stop", pid)

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(guard.Path()); errors.Is(err, fs.ErrNotExist) {
			logging.Info("CLI", "bento-cluster stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (pid %d): %v", ErrStopTimeout, pid, ctx.Err())
		case <-ticker.C:
		}
	}
}

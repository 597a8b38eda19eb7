// Package lockfile guards a state directory against concurrent cluster runs
// with a pid file.
//
// The pid file only appears once a cluster is running. While a run is still
// negotiating ports and starting engines it holds an advisory lock on a
// separate startup file instead, so two runs never start in the same state
// directory at once.
//
// A lock whose body cannot be parsed is reported as corrupt and a lock that
// names a dead process is still reported as held: removing a stale lock is
// always left to the operator.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"

	"bento/pkg/logging"
)

// FileName is the lock file created inside the state directory.
const FileName = "bento-cluster.pid"

// StartupFileName is locked for the duration of a startup.
const StartupFileName = ".bento-cluster.startup"

// ErrCorruptLock is returned when the lock file exists but does not hold a
// process id.
var ErrCorruptLock = errors.New("lock file is corrupt")

// AlreadyRunningError reports a lock held by another run.
type AlreadyRunningError struct {
	PID  int
	Path string
	// Alive is false when no process with PID could be signalled.
	Alive bool
	// Starting is set when the other run has not finished starting yet.
	Starting bool
}

func (e *AlreadyRunningError) Error() string {
	if e.Starting {
		return fmt.Sprintf("bento-cluster is already starting with pid %d (lock file %s)", e.PID, e.Path)
	}
	msg := fmt.Sprintf("bento-cluster is already running with pid %d (lock file %s)", e.PID, e.Path)
	if !e.Alive {
		msg += "; that process no longer appears to be alive"
	}
	return msg
}

// Guard is the lock for one state directory.
type Guard struct {
	path    string
	pid     int
	startup *flock.Flock
}

// New returns the guard for stateDir, recording the current process id.
func New(stateDir string) *Guard {
	return &Guard{
		path:    filepath.Join(stateDir, FileName),
		pid:     os.Getpid(),
		startup: flock.New(filepath.Join(stateDir, StartupFileName)),
	}
}

// Path is the lock file location.
func (g *Guard) Path() string {
	return g.path
}

// Check fails when a lock is already present, without creating one.
func (g *Guard) Check() error {
	pid, err := g.ReadPID()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AlreadyRunningError{PID: pid, Path: g.path, Alive: processAlive(pid)}
}

// Hold takes the startup lock and then checks for a running cluster. It
// fails with an AlreadyRunningError when another run is starting or
// running. A successful Hold must be paired with Unhold.
func (g *Guard) Hold() error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	locked, err := g.startup.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", g.startup.Path(), err)
	}
	if !locked {
		pid, _ := readPID(g.startup.Path())
		return &AlreadyRunningError{PID: pid, Path: g.startup.Path(), Alive: true, Starting: true}
	}

	if err := g.Check(); err != nil {
		g.Unhold()
		return err
	}
	if err := os.WriteFile(g.startup.Path(), []byte(strconv.Itoa(g.pid)+"\n"), 0o644); err != nil {
		logging.Warn("Lockfile", "Could not record pid in %s: %v", g.startup.Path(), err)
	}
	logging.Debug("Lockfile", "Holding %s for pid %d", g.startup.Path(), g.pid)
	return nil
}

// Unhold releases the startup lock. The file itself is left in place.
func (g *Guard) Unhold() {
	if !g.startup.Locked() {
		return
	}
	if err := g.startup.Unlock(); err != nil {
		logging.Error("Lockfile", err, "Could not unlock %s", g.startup.Path())
	}
}

// Acquire creates the lock file containing the current pid. The file is
// published with a hard link so that two racing runs cannot both succeed.
func (g *Guard) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(g.path), "."+FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, werr := tmp.WriteString(strconv.Itoa(g.pid) + "\n")
	cerr := tmp.Close()
	if werr != nil {
		return fmt.Errorf("failed to write lock file: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("failed to write lock file: %w", cerr)
	}

	if err := os.Link(tmpName, g.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if cerr := g.Check(); cerr != nil {
				return cerr
			}
		}
		return fmt.Errorf("failed to create lock file %s: %w", g.path, err)
	}
	logging.Debug("Lockfile", "Acquired %s for pid %d", g.path, g.pid)
	return nil
}

// Release removes the lock file. Removing an absent lock is not an error.
func (g *Guard) Release() error {
	if err := os.Remove(g.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file %s: %w", g.path, err)
	}
	return nil
}

// ReadPID returns the pid recorded in the lock file. It returns an error
// wrapping fs.ErrNotExist when there is no lock and ErrCorruptLock when the
// body is not a positive integer.
func (g *Guard) ReadPID() (int, error) {
	return readPID(g.path)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s could not be read: %v", ErrCorruptLock, path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %s does not contain a process id", ErrCorruptLock, path)
	}
	return pid, nil
}

// processAlive reports whether pid can be signalled.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

package app

import (
	"errors"
	"fmt"
	"strings"

	"bento/internal/lockfile"
	"bento/internal/orchestrator"
	"bento/internal/ports"
	"bento/internal/prompt"
)

// Explain renders err as a single line naming what failed and what the
// operator can do about it.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	var (
		running   *lockfile.AlreadyRunningError
		noPort    *ports.NoPortAvailableError
		badPort   *ports.InvalidPortError
		startFail *orchestrator.ServiceStartError
	)

	var msg string
	switch {
	case errors.As(err, &running) && running.Starting:
		msg = fmt.Sprintf("Another bento-cluster (pid %d) is still starting in this state directory; wait for it or stop it with `bento stop` once it is running.", running.PID)
	case errors.As(err, &running) && !running.Alive:
		msg = fmt.Sprintf("The lock file %s names pid %d, which is no longer running; remove the stale lock file %s and try again.", running.Path, running.PID, running.Path)
	case errors.As(err, &running):
		msg = fmt.Sprintf("bento-cluster is already running (pid %d); stop the other instance with `bento stop` first.", running.PID)
	case errors.Is(err, lockfile.ErrCorruptLock):
		msg = fmt.Sprintf("%v; remove the stale lock file and try again.", err)
	case errors.Is(err, orchestrator.ErrPortsChanged):
		msg = fmt.Sprintf("%v; rerun with --accept-ports or choose ports with `bento config`.", err)
	case errors.As(err, &noPort):
		msg = fmt.Sprintf("No open port found at or above %d; free the port or run `bento config` to choose another.", noPort.Start)
	case errors.As(err, &badPort):
		msg = fmt.Sprintf("%v; choose a port between %d and %d.", badPort, ports.MinPort, ports.MaxPort)
	case errors.As(err, &startFail):
		msg = fmt.Sprintf("%s failed to start: %v; free its ports or rerun with --debug to see its output.", startFail.Service, startFail.Err)
	case errors.Is(err, orchestrator.ErrServiceExited):
		msg = fmt.Sprintf("%v; rerun with --debug to see the engine output.", err)
	case errors.Is(err, prompt.ErrAborted):
		msg = "Port selection aborted; no configuration was written."
	case errors.Is(err, ErrNoStateDir):
		msg = "A state directory is required; pass --state-dir or set BENTO_STATE_DIR."
	case errors.Is(err, ErrNotRunning):
		msg = fmt.Sprintf("%v; nothing to stop.", err)
	case errors.Is(err, ErrStopTimeout):
		msg = fmt.Sprintf("%v; try again with a longer --timeout.", err)
	default:
		msg = err.Error()
	}
	return strings.Join(strings.Fields(msg), " ")
}

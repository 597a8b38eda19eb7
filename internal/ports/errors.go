package ports

import (
	"errors"
	"fmt"
)

// ErrUnknownPort is returned when an operation names a port that is not part
// of the negotiator's spec set.
var ErrUnknownPort = errors.New("unknown port")

// NoPortAvailableError reports that checking upward from Start reached the end
// of the valid range without finding a usable port.
type NoPortAvailableError struct {
	Start int
}

func (e *NoPortAvailableError) Error() string {
	return fmt.Sprintf("no open port available between %d and %d", e.Start, MaxPort)
}

// InvalidPortError reports a port outside [MinPort, MaxPort].
type InvalidPortError struct {
	Port int
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid start port %d: must be between %d and %d", e.Port, MinPort, MaxPort)
}

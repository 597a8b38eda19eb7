package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrPortsChanged is returned when negotiation moved ports off their
	// defaults and the change was not confirmed.
	ErrPortsChanged = errors.New("negotiated ports differ from the configured ports")
	// ErrServiceExited is returned by Wait when a service ended on its own.
	ErrServiceExited = errors.New("service exited unexpectedly")
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ServiceStartError reports the service whose startup aborted the run.
type ServiceStartError struct {
	Service string
	Err     error
}

func (e *ServiceStartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Service, e.Err)
}

func (e *ServiceStartError) Unwrap() error {
	return e.Err
}

package services

import (
	"context"
)

// ServiceState represents the current state of a service
type ServiceState string

const (
	StateUnknown  ServiceState = "Unknown"
	StateStarting ServiceState = "Starting"
	StateRunning  ServiceState = "Running"
	StateStopping ServiceState = "Stopping"
	StateStopped  ServiceState = "Stopped"
	StateFailed   ServiceState = "Failed"
)

// Service is the contract the orchestrator drives every cluster engine
// through.
type Service interface {
	// Start launches the engine and blocks until it is ready to accept
	// clients or has failed to start.
	Start(ctx context.Context) error
	// Stop shuts the engine down and blocks until it has exited.
	Stop(ctx context.Context) error

	GetState() ServiceState
	GetLastError() error

	GetLabel() string
	GetDependencies() []string
}

// ExitNotifier is implemented by services that can end on their own after a
// successful start. Done is closed when that happens.
type ExitNotifier interface {
	Done() <-chan struct{}
}

// HealthChecker is implemented by services that can be checked while
// running.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// StateChangeCallback is called when a service's state changes
type StateChangeCallback func(label string, oldState, newState ServiceState, err error)

package services

import (
	"sync"
)

// BaseService carries the identity and state bookkeeping shared by service
// implementations.
type BaseService struct {
	mu sync.RWMutex

	label        string
	dependencies []string
	state        ServiceState
	lastError    error
	callback     StateChangeCallback
}

// NewBaseService returns a base in StateUnknown.
func NewBaseService(label string, dependencies []string) *BaseService {
	return &BaseService{
		label:        label,
		dependencies: append([]string(nil), dependencies...),
		state:        StateUnknown,
	}
}

func (b *BaseService) GetLabel() string {
	return b.label
}

func (b *BaseService) GetDependencies() []string {
	return append([]string(nil), b.dependencies...)
}

func (b *BaseService) GetState() ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BaseService) GetLastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

// SetStateChangeCallback registers cb for subsequent state changes.
func (b *BaseService) SetStateChangeCallback(cb StateChangeCallback) {
	b.mu.Lock()
	b.callback = cb
	b.mu.Unlock()
}

// UpdateState records a new state and notifies the callback outside the lock.
func (b *BaseService) UpdateState(state ServiceState, err error) {
	b.mu.Lock()
	old := b.state
	b.state = state
	b.lastError = err
	cb := b.callback
	b.mu.Unlock()

	if cb != nil && old != state {
		cb(b.label, old, state, err)
	}
}

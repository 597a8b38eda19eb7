package orchestrator

import (
	"bento/internal/ports"
	"bento/internal/services"
	"bento/pkg/logging"
)

// State is the lifecycle state of a run.
type State string

const (
	StateIdle              State = "Idle"
	StateNegotiating       State = "Negotiating"
	StateStarting          State = "Starting"
	StateRunning           State = "Running"
	StateStoppingOnRequest State = "StoppingOnRequest"
	StateStoppingOnFailure State = "StoppingOnFailure"
	StateStopped           State = "Stopped"
	StateRejected          State = "Rejected"
)

// AllStates lists every state in lifecycle order.
func AllStates() []State {
	return []State{
		StateIdle, StateNegotiating, StateStarting, StateRunning,
		StateStoppingOnRequest, StateStoppingOnFailure, StateStopped, StateRejected,
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateRejected
}

type pidReporter interface {
	PID() int
}

type stateReporter interface {
	SetStateChangeCallback(cb services.StateChangeCallback)
}

// ServiceStatus is a point-in-time view of one managed service.
type ServiceStatus struct {
	Name  string                `json:"name"`
	State services.ServiceState `json:"state"`
	Error string                `json:"error,omitempty"`
	// PID of the engine process, when the service runs one.
	PID int `json:"pid,omitempty"`
	// Healthy is the last health check result, nil before the first check.
	Healthy *bool `json:"healthy,omitempty"`
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	State    State            `json:"state"`
	Ports    ports.Assignment `json:"ports,omitempty"`
	Services []ServiceStatus  `json:"services"`
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Snapshot returns the current state, ports and services in start order.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := Snapshot{
		State:    o.state,
		Services: make([]ServiceStatus, 0, len(o.ordered)),
	}
	if o.assignment != nil {
		snap.Ports = o.assignment.Clone()
	}
	for _, svc := range o.ordered {
		st := ServiceStatus{Name: svc.GetLabel(), State: svc.GetState()}
		if err := svc.GetLastError(); err != nil {
			st.Error = err.Error()
		}
		if p, ok := svc.(pidReporter); ok {
			st.PID = p.PID()
		}
		if healthy, ok := o.health[svc.GetLabel()]; ok {
			st.Healthy = &healthy
		}
		snap.Services = append(snap.Services, st)
	}
	return snap
}

// Transitions returns every state entered so far, in order.
func (o *Orchestrator) Transitions() []State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]State(nil), o.history...)
}

// transition moves from one of the allowed states to next.
func (o *Orchestrator) transition(next State, from ...State) error {
	o.mu.Lock()
	current := o.state
	allowed := false
	for _, f := range from {
		if current == f {
			allowed = true
			break
		}
	}
	if !allowed {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.setStateLocked(next)
	o.mu.Unlock()

	o.notifyState(next)
	return nil
}

// setStateLocked must be called with o.mu held.
func (o *Orchestrator) setStateLocked(next State) {
	logging.Debug("Orchestrator", "State %s -> %s", o.state, next)
	o.state = next
	o.history = append(o.history, next)
	if next.Terminal() && !o.terminatedClosed {
		o.terminatedClosed = true
		close(o.terminated)
	}
}

func (o *Orchestrator) notifyState(s State) {
	if o.cfg.Observer != nil {
		o.cfg.Observer.StateChanged(string(s))
	}
}

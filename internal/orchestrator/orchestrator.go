package orchestrator

import (
	"sync"
	"time"

	"bento/internal/lockfile"
	"bento/internal/ports"
	"bento/internal/services"
	"bento/internal/siteconf"
)

// ArtifactStore persists site files and gives back prior port choices.
type ArtifactStore interface {
	ports.PropertySource
	Write(artifacts []*siteconf.Artifact) error
}

// ServiceFactory builds the services of a run once ports are known.
type ServiceFactory func(assignment ports.Assignment) ([]services.Service, error)

// ConfirmFunc is asked to approve an assignment that moved ports off their
// defaults. It may adjust the assignment through the negotiator. Returning
// an error aborts the run.
type ConfirmFunc func(n *ports.Negotiator) error

// Observer receives lifecycle events, typically to record metrics.
type Observer interface {
	Negotiated(shifted []string)
	ServiceStarted(name string, took time.Duration)
	ServiceStopped(name string)
	StateChanged(state string)
}

// Config holds everything one run needs. Nothing is read from process-wide
// state.
type Config struct {
	StateDir   string
	Negotiator *ports.Negotiator
	Store      ArtifactStore
	Services   ServiceFactory

	// UseConventionalDefaults ignores ports persisted by a previous run.
	UseConventionalDefaults bool
	// Confirm is consulted when ports moved; nil rejects with ErrPortsChanged.
	Confirm ConfirmFunc
	// BuildArtifacts renders the site files; defaults to siteconf.BuildArtifacts.
	BuildArtifacts func(ports.Assignment) []*siteconf.Artifact
	// Observer is optional. If it also implements HealthObserver it receives
	// health check results.
	Observer Observer
	// HealthInterval is how often running services are checked; zero or less
	// disables health checks.
	HealthInterval time.Duration
}

// Orchestrator runs the cluster through a single lifecycle.
type Orchestrator struct {
	cfg   Config
	guard *lockfile.Guard

	mu               sync.RWMutex
	state            State
	history          []State
	assignment       ports.Assignment
	ordered          []services.Service
	started          []services.Service
	lockHeld         bool
	health           map[string]bool
	terminated       chan struct{}
	terminatedClosed bool

	startDone chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
	exitCh    chan string
}

// New returns an orchestrator in StateIdle.
func New(cfg Config) *Orchestrator {
	if cfg.BuildArtifacts == nil {
		cfg.BuildArtifacts = siteconf.BuildArtifacts
	}
	return &Orchestrator{
		cfg:        cfg,
		guard:      lockfile.New(cfg.StateDir),
		state:      StateIdle,
		history:    []State{StateIdle},
		health:     make(map[string]bool),
		terminated: make(chan struct{}),
		startDone:  make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
}

// LockPath is the lock file guarding this run's state directory.
func (o *Orchestrator) LockPath() string {
	return o.guard.Path()
}

// Terminated is closed once the run reaches Stopped or Rejected.
func (o *Orchestrator) Terminated() <-chan struct{} {
	return o.terminated
}

func (o *Orchestrator) requestStop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
}

func (o *Orchestrator) stopRequested() bool {
	select {
	case <-o.stopCh:
		return true
	default:
		return false
	}
}

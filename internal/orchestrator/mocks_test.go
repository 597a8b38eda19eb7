package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"bento/internal/services"
)

// eventLog records start/stop calls across services in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// mockService is a mock implementation of services.Service for testing
type mockService struct {
	mu sync.RWMutex

	// Configurable fields
	label        string
	state        services.ServiceState
	lastError    error
	dependencies []string
	log          *eventLog

	// Function hooks for testing
	startFunc func(ctx context.Context) error
	stopFunc  func(ctx context.Context) error
}

func newMockService(label string, log *eventLog, deps ...string) *mockService {
	return &mockService{
		label:        label,
		state:        services.StateUnknown,
		dependencies: deps,
		log:          log,
	}
}

func (m *mockService) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.log != nil {
		m.log.add("start:" + m.label)
	}
	if m.startFunc != nil {
		if err := m.startFunc(ctx); err != nil {
			m.state = services.StateFailed
			m.lastError = err
			return err
		}
	}
	m.state = services.StateRunning
	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.log != nil {
		m.log.add("stop:" + m.label)
	}
	if m.stopFunc != nil {
		if err := m.stopFunc(ctx); err != nil {
			m.lastError = err
			return err
		}
	}
	m.state = services.StateStopped
	return nil
}

func (m *mockService) GetState() services.ServiceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *mockService) GetLastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *mockService) GetLabel() string {
	return m.label
}

func (m *mockService) GetDependencies() []string {
	return m.dependencies
}

// exitingService is a mockService that can end on its own.
type exitingService struct {
	*mockService
	done     chan struct{}
	exitOnce sync.Once
}

func newExitingService(label string, log *eventLog, deps ...string) *exitingService {
	s := &exitingService{
		mockService: newMockService(label, log, deps...),
		done:        make(chan struct{}),
	}
	s.stopFunc = func(ctx context.Context) error {
		s.exit()
		return nil
	}
	return s
}

func (s *exitingService) Done() <-chan struct{} {
	return s.done
}

func (s *exitingService) exit() {
	s.exitOnce.Do(func() { close(s.done) })
}

// checkedService is a mockService with a configurable health check.
type checkedService struct {
	*mockService
	mu      sync.Mutex
	healthy bool
}

func (p *checkedService) CheckHealth(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.healthy {
		return errors.New("connection refused")
	}
	return nil
}

func (p *checkedService) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// processLikeService reports a pid and accepts a state change callback.
type processLikeService struct {
	*mockService
	pid int

	cbMu sync.Mutex
	cb   services.StateChangeCallback
}

func (p *processLikeService) PID() int {
	return p.pid
}

func (p *processLikeService) SetStateChangeCallback(cb services.StateChangeCallback) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.cb = cb
}

func (p *processLikeService) callback() services.StateChangeCallback {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	return p.cb
}

// fakeObserver records observer callbacks.
type fakeObserver struct {
	mu        sync.Mutex
	shifted   [][]string
	started   []string
	stopped   []string
	states    []string
	durations []time.Duration
	health    map[string]bool
}

func (f *fakeObserver) Negotiated(shifted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shifted = append(f.shifted, shifted)
}

func (f *fakeObserver) ServiceStarted(name string, took time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	f.durations = append(f.durations, took)
}

func (f *fakeObserver) ServiceStopped(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
}

func (f *fakeObserver) StateChanged(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeObserver) ServiceHealth(name string, healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.health == nil {
		f.health = make(map[string]bool)
	}
	f.health[name] = healthy
}

func (f *fakeObserver) healthOf(name string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.health[name]
	return h, ok
}

package orchestrator

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bento/internal/dependency"
	"bento/internal/services"
	"bento/pkg/logging"
)

// Run starts the cluster, calls onRunning (if non-nil) once every service is
// ready, and blocks until ctx ends, SIGINT or SIGTERM arrives, Stop is
// called or a service exits. A signal received during startup is honoured
// only after startup has finished.
func (o *Orchestrator) Run(ctx context.Context, onRunning func()) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := o.Start(context.WithoutCancel(sigCtx)); err != nil {
		return err
	}
	if onRunning != nil {
		onRunning()
	}
	return o.Wait(sigCtx)
}

// Start takes the run from Idle to Running. On failure every service that
// was started is stopped again before the error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.transition(StateNegotiating, StateIdle); err != nil {
		return err
	}
	defer close(o.startDone)

	if err := o.guard.Hold(); err != nil {
		logging.Error("Orchestrator", err, "Refusing to start")
		o.finish(StateRejected)
		return err
	}
	defer o.guard.Unhold()

	if err := o.negotiate(); err != nil {
		logging.Error("Orchestrator", err, "Configuration failed, no service was started")
		o.finish(StateStopped)
		return err
	}

	if err := o.transition(StateStarting, StateNegotiating); err != nil {
		return err
	}
	return o.startServices(ctx)
}

func (o *Orchestrator) negotiate() error {
	n := o.cfg.Negotiator

	var err error
	if o.cfg.UseConventionalDefaults {
		err = n.InitializeFromDefaults()
	} else {
		err = n.InitializeFromPersisted(o.cfg.Store)
	}
	if err != nil {
		return fmt.Errorf("port negotiation failed: %w", err)
	}

	shifted := n.Shifted()
	if !n.IsAllDefaultsUsed() {
		if o.cfg.Confirm == nil {
			return fmt.Errorf("%w: %s", ErrPortsChanged, describeShift(o, shifted))
		}
		if err := o.cfg.Confirm(n); err != nil {
			return err
		}
	}

	assignment := n.Assignment()
	if err := o.cfg.Store.Write(o.cfg.BuildArtifacts(assignment)); err != nil {
		return fmt.Errorf("failed to write site configuration: %w", err)
	}

	o.mu.Lock()
	o.assignment = assignment
	o.mu.Unlock()

	if o.cfg.Observer != nil {
		o.cfg.Observer.Negotiated(shifted)
	}
	return nil
}

func describeShift(o *Orchestrator, shifted []string) string {
	parts := make([]string, 0, len(shifted))
	for _, name := range shifted {
		from, _ := o.cfg.Negotiator.EffectiveDefault(name)
		to, _ := o.cfg.Negotiator.Port(name)
		parts = append(parts, fmt.Sprintf("%s %d -> %d", name, from, to))
	}
	return strings.Join(parts, ", ")
}

func (o *Orchestrator) startServices(ctx context.Context) error {
	o.mu.RLock()
	assignment := o.assignment.Clone()
	o.mu.RUnlock()

	svcs, err := o.cfg.Services(assignment)
	if err != nil {
		err = fmt.Errorf("failed to prepare services: %w", err)
		o.rollback(err)
		return err
	}
	ordered, err := startOrder(svcs)
	if err != nil {
		o.rollback(err)
		return err
	}

	o.mu.Lock()
	o.ordered = ordered
	o.mu.Unlock()

	for _, svc := range ordered {
		if r, ok := svc.(stateReporter); ok {
			r.SetStateChangeCallback(serviceStateChanged)
		}
	}

	for _, svc := range ordered {
		name := svc.GetLabel()
		began := time.Now()
		logging.Info("Orchestrator", "Starting %s", name)

		if err := svc.Start(ctx); err != nil {
			startErr := &ServiceStartError{Service: name, Err: err}
			o.rollback(startErr)
			return startErr
		}

		o.mu.Lock()
		o.started = append(o.started, svc)
		o.mu.Unlock()
		if o.cfg.Observer != nil {
			o.cfg.Observer.ServiceStarted(name, time.Since(began))
		}
	}

	if err := o.guard.Acquire(); err != nil {
		o.rollback(err)
		return err
	}

	o.mu.Lock()
	o.lockHeld = true
	o.exitCh = make(chan string, len(ordered))
	o.mu.Unlock()

	for _, svc := range ordered {
		if n, ok := svc.(services.ExitNotifier); ok {
			go o.watchExit(svc.GetLabel(), n.Done())
		}
	}

	if err := o.transition(StateRunning, StateStarting); err != nil {
		return err
	}
	logging.Info("Orchestrator", "Cluster is running (%d services, lock %s)", len(ordered), o.guard.Path())
	if o.cfg.HealthInterval > 0 {
		go o.monitorHealth(o.cfg.HealthInterval)
	}
	return nil
}

func serviceStateChanged(label string, oldState, newState services.ServiceState, err error) {
	if newState == services.StateFailed {
		logging.Error("Orchestrator", err, "%s failed (was %s)", label, oldState)
		return
	}
	logging.Debug("Orchestrator", "%s: %s -> %s", label, oldState, newState)
}

// startOrder sorts svcs so every service follows its dependencies, keeping
// the factory's order among independent services.
func startOrder(svcs []services.Service) ([]services.Service, error) {
	byName := make(map[string]services.Service, len(svcs))
	g := dependency.New()
	for _, svc := range svcs {
		name := svc.GetLabel()
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate service %q", name)
		}
		byName[name] = svc

		var deps []dependency.NodeID
		for _, d := range svc.GetDependencies() {
			deps = append(deps, dependency.NodeID(d))
		}
		g.AddNode(dependency.Node{
			ID:           dependency.NodeID(name),
			FriendlyName: name,
			Kind:         dependency.KindService,
			DependsOn:    deps,
		})
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("cannot order services: %w", err)
	}
	out := make([]services.Service, 0, len(order))
	for _, id := range order {
		out = append(out, byName[string(id)])
	}
	return out, nil
}

func (o *Orchestrator) watchExit(name string, done <-chan struct{}) {
	select {
	case <-done:
		if o.stopRequested() {
			return
		}
		o.exitCh <- name
	case <-o.terminated:
	}
}

// Wait blocks while the cluster is Running. It tears the cluster down and
// returns nil when ctx ends or Stop is called, and returns ErrServiceExited
// when a service ended on its own.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.RLock()
	state, exitCh := o.state, o.exitCh
	o.mu.RUnlock()

	if state.Terminal() {
		return nil
	}
	if state != StateRunning {
		return ErrInvalidTransition
	}

	var result error
	select {
	case <-o.stopCh:
		o.teardown(StateStoppingOnRequest)
	case <-ctx.Done():
		logging.Info("Orchestrator", "Stop signal received, shutting down")
		o.teardown(StateStoppingOnRequest)
	case name := <-exitCh:
		if o.stopRequested() {
			o.teardown(StateStoppingOnRequest)
			break
		}
		result = fmt.Errorf("%w: %s", ErrServiceExited, name)
		logging.Error("Orchestrator", result, "Shutting down the cluster")
		o.teardown(StateStoppingOnFailure)
	}

	<-o.terminated
	return result
}

// Stop asks a run to shut down and waits until it has. A startup in progress
// finishes first. Stopping an idle orchestrator moves it straight to Stopped.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.requestStop()

	o.mu.Lock()
	if o.state == StateIdle {
		o.setStateLocked(StateStopped)
		o.mu.Unlock()
		o.notifyState(StateStopped)
		return nil
	}
	o.mu.Unlock()

	select {
	case <-o.startDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	o.teardown(StateStoppingOnRequest)

	select {
	case <-o.terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// teardown stops a Running cluster. It is a no-op in any other state, so
// concurrent callers tear down at most once.
func (o *Orchestrator) teardown(reason State) {
	o.requestStop()

	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	o.setStateLocked(reason)
	o.mu.Unlock()
	o.notifyState(reason)

	o.stopServices()
	o.releaseLock()
	o.finish(StateStopped)
	logging.Info("Orchestrator", "Cluster stopped")
}

// rollback undoes a failed startup. The caller returns cause.
func (o *Orchestrator) rollback(cause error) {
	_ = o.transition(StateStoppingOnFailure, StateStarting)

	o.mu.RLock()
	n := len(o.started)
	o.mu.RUnlock()
	logging.Error("Orchestrator", cause, "Startup failed, stopping %d started service(s)", n)

	o.stopServices()
	o.releaseLock()
	o.finish(StateStopped)
}

// stopServices stops started services in reverse start order. Failures are
// logged and do not prevent the remaining services from being stopped.
func (o *Orchestrator) stopServices() {
	o.mu.Lock()
	started := o.started
	o.started = nil
	o.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		svc := started[i]
		name := svc.GetLabel()
		logging.Info("Orchestrator", "Stopping %s", name)
		if err := svc.Stop(context.Background()); err != nil {
			logging.Error("Orchestrator", err, "Failed to stop %s, continuing", name)
		}
		if o.cfg.Observer != nil {
			o.cfg.Observer.ServiceStopped(name)
		}
	}
}

func (o *Orchestrator) releaseLock() {
	o.mu.Lock()
	held := o.lockHeld
	o.lockHeld = false
	o.mu.Unlock()
	if !held {
		return
	}
	if err := o.guard.Release(); err != nil {
		logging.Error("Orchestrator", err, "Could not remove lock file; remove %s manually", o.guard.Path())
	}
}

func (o *Orchestrator) finish(final State) {
	o.mu.Lock()
	o.setStateLocked(final)
	o.mu.Unlock()
	o.notifyState(final)
}

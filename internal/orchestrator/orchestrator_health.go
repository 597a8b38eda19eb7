package orchestrator

import (
	"context"
	"time"

	"bento/internal/services"
	"bento/pkg/logging"
)

const healthCheckTimeout = 5 * time.Second

// HealthObserver is optionally implemented by an Observer to receive health
// check results.
type HealthObserver interface {
	ServiceHealth(name string, healthy bool)
}

// monitorHealth checks every started service each interval until a stop is
// requested.
func (o *Orchestrator) monitorHealth(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.performHealthChecks()
		}
	}
}

func (o *Orchestrator) performHealthChecks() {
	o.mu.RLock()
	svcs := append([]services.Service(nil), o.started...)
	o.mu.RUnlock()

	for _, svc := range svcs {
		checker, ok := svc.(services.HealthChecker)
		if !ok {
			continue
		}
		if o.stopRequested() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		err := checker.CheckHealth(ctx)
		cancel()
		o.recordHealth(svc.GetLabel(), err)
	}
}

func (o *Orchestrator) recordHealth(name string, err error) {
	healthy := err == nil

	o.mu.Lock()
	prev, seen := o.health[name]
	o.health[name] = healthy
	o.mu.Unlock()

	switch {
	case !healthy && (!seen || prev):
		logging.Warn("Orchestrator", "%s failed its health check: %v", name, err)
	case healthy && seen && !prev:
		logging.Info("Orchestrator", "%s is healthy again", name)
	}

	if ho, ok := o.cfg.Observer.(HealthObserver); ok {
		ho.ServiceHealth(name, healthy)
	}
}

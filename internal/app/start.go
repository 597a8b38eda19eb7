package app

import (
	"context"
	"fmt"
	"time"

	"bento/internal/color"
	"bento/internal/metrics"
	"bento/internal/orchestrator"
	"bento/internal/ports"
	"bento/internal/report"
	"bento/internal/statusserver"
	"bento/pkg/logging"
)

const statusShutdownTimeout = 5 * time.Second

// Start runs the cluster until it is stopped by a signal, by `bento stop`
// or by an engine exiting.
func (a *Application) Start(ctx context.Context) error {
	harness := a.config.Harness

	states := orchestrator.AllStates()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	recorder := metrics.New(names)

	var confirm orchestrator.ConfirmFunc
	if a.config.AcceptPorts {
		confirm = acceptShiftedPorts
	}

	orch := orchestrator.New(orchestrator.Config{
		StateDir:       a.config.StateDir,
		Negotiator:     a.newNegotiator(),
		Store:          a.store,
		Services:       a.serviceFactory(),
		Confirm:        confirm,
		Observer:       recorder,
		HealthInterval: harness.HealthInterval,
	})

	var status *statusserver.Server
	err := orch.Run(ctx, func() {
		fmt.Fprintln(a.out, color.OKStyle.Render("bento-cluster is running. Press Ctrl+C to stop."))
		if err := report.WritePorts(a.out, ports.DefaultSpecs(), orch.Snapshot().Ports); err != nil {
			logging.Warn("CLI", "Failed to print the port report: %v", err)
		}

		if harness.StatusAddress == "" {
			return
		}
		s, err := statusserver.Start(harness.StatusAddress, orch.Snapshot, recorder.Handler())
		if err != nil {
			logging.Warn("CLI", "Status endpoint disabled: %v", err)
			return
		}
		status = s
	})

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
		defer cancel()
		if serr := status.Shutdown(shutdownCtx); serr != nil {
			logging.Warn("CLI", "Status endpoint did not shut down cleanly: %v", serr)
		}
	}
	return err
}

func acceptShiftedPorts(n *ports.Negotiator) error {
	for _, name := range n.Shifted() {
		from, _ := n.EffectiveDefault(name)
		to, _ := n.Port(name)
		logging.Warn("CLI", "Port %d for %s is in use, using %d instead", from, name, to)
	}
	return nil
}

// Package orchestrator drives one run of the local cluster.
//
// A run is a small state machine:
//
//	Idle -> Negotiating -> Starting -> Running -> StoppingOnRequest -> Stopped
//	                           |           \
//	                           |            -> StoppingOnFailure -> Stopped
//	                           -> StoppingOnFailure -> Stopped
//	Idle -> Rejected (another run holds the state directory)
//
// Negotiating picks the ports and writes the site files. Starting brings the
// services up one at a time in dependency order, each Start call returning
// only once the service is ready. If any service fails to start, every
// service already started is stopped again in reverse order and the original
// error is returned. The lock file is written when the last service is ready
// and removed after teardown, whether or not every stop succeeded.
//
// While Running, services implementing services.HealthChecker are checked
// every HealthInterval. Failed checks are logged and reported to the
// Observer; they do not end the run.
//
// # Usage Example
//
//	orch := orchestrator.New(orchestrator.Config{
//	    StateDir:   stateDir,
//	    Negotiator: ports.NewNegotiator(ports.DefaultSpecs()),
//	    Store:      siteconf.NewStore(hadoopDir, hbaseDir),
//	    Services:   buildServices,
//	})
//	if err := orch.Run(ctx, nil); err != nil {
//	    return err
//	}
//
// An Orchestrator is single use: once it reaches Stopped or Rejected a new
// one must be created.
package orchestrator

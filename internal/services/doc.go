// Package services provides the service abstraction for the engines of a
// bento cluster.
//
// # Core Concepts
//
// Service: one cluster engine (ZooKeeper, HDFS, HBase, MapReduce) that the
// orchestrator starts, stops and observes. Start blocks until the engine is
// ready to accept clients; Stop blocks until it has exited.
//
// ServiceState: the state of one engine (Unknown, Starting, Running,
// Stopping, Stopped, Failed).
//
// Descriptor: the static description of an engine, naming the engines it
// depends on, the port that signals readiness, the configuration artifacts
// it reads and its default command. DefaultDescriptors returns them in the
// order used to break ties in the start order.
//
// # Process-backed engines
//
// ProcessService runs an engine as a child process in its own process group.
// Its output is forwarded to the logger line by line. Readiness is a TCP
// connect to the ready port; stopping sends SIGTERM to the group and SIGKILL
// once the stop timeout has passed.
//
// Optional capabilities are discovered by type assertion:
//
//   - ExitNotifier: Done is closed when the engine exits on its own
//   - HealthChecker: CheckHealth checks a running engine
package services

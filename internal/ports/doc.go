// Package ports negotiates a collision-free set of TCP ports for the local
// cluster.
//
// Every negotiable port is described by a Spec: a stable name, a conventional
// default and the artifact/key under which the chosen value is persisted. A
// Negotiator walks the specs in their declared order and, for each one, checks
// upward from its effective default until it finds a port that is both
// bindable on this host and not already claimed by an earlier spec. The
// declared order is the tie-break, so a given set of occupied ports always
// yields the same Assignment.
//
// Availability is tested by binding a listener with address reuse enabled and
// closing it again. Nothing stops another process from taking the port between
// the check and the engine's real bind; callers must treat an Assignment as a
// best-effort reservation only.
package ports

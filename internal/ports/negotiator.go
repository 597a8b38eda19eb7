package ports

import (
	"fmt"

	"bento/pkg/logging"
)

// PropertySource exposes values persisted by a previous run.
type PropertySource interface {
	// ReadProperty returns the stored value of key in the named artifact, or
	// fallback when the artifact or key does not exist.
	ReadProperty(artifact, key, fallback string) string
}

// Assignment maps a port name to the port chosen for it.
type Assignment map[string]int

// Clone returns an independent copy of a.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithPortChecker replaces the socket checker, mainly for tests.
func WithPortChecker(p PortChecker) Option {
	return func(n *Negotiator) {
		n.checker = p
	}
}

// Negotiator produces a collision-free Assignment for a fixed set of Specs.
// It is not safe for concurrent use.
type Negotiator struct {
	specs   []Spec
	checker PortChecker

	// seeds holds the effective default each spec was negotiated from.
	seeds    map[string]int
	assigned map[string]int
}

// NewNegotiator returns a negotiator over specs, negotiated in slice order.
func NewNegotiator(specs []Spec, opts ...Option) *Negotiator {
	n := &Negotiator{
		specs:    append([]Spec(nil), specs...),
		checker:  SocketChecker{},
		seeds:    make(map[string]int),
		assigned: make(map[string]int),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Specs returns the negotiated port set in negotiation order.
func (n *Negotiator) Specs() []Spec {
	return append([]Spec(nil), n.specs...)
}

// InitializeFromDefaults negotiates every spec starting from its conventional
// default.
func (n *Negotiator) InitializeFromDefaults() error {
	return n.negotiate(func(s Spec) int { return s.Default })
}

// InitializeFromPersisted negotiates every spec starting from the value a
// previous run stored in src, falling back to the conventional default when
// nothing usable was stored.
func (n *Negotiator) InitializeFromPersisted(src PropertySource) error {
	return n.negotiate(func(s Spec) int { return persistedOrDefault(s, src) })
}

// PersistedAssignment returns the ports stored in src without checking them.
// Specs with nothing usable stored get their conventional default.
func PersistedAssignment(specs []Spec, src PropertySource) Assignment {
	out := make(Assignment, len(specs))
	for _, s := range specs {
		out[s.Name] = persistedOrDefault(s, src)
	}
	return out
}

func persistedOrDefault(s Spec, src PropertySource) int {
	raw := src.ReadProperty(s.Artifact, s.Key, "")
	if raw == "" {
		return s.Default
	}
	p, ok := ParsePersisted(raw)
	if !ok {
		logging.Warn("Negotiator", "Ignoring unparsable %s value %q in %s, using default %d", s.Key, raw, s.Artifact, s.Default)
		return s.Default
	}
	return p
}

func (n *Negotiator) negotiate(seed func(Spec) int) error {
	n.ClearAssignments()
	for _, s := range n.specs {
		start := seed(s)
		n.seeds[s.Name] = start

		p, err := n.FindOpenPort(start)
		if err != nil {
			n.ClearAssignments()
			return fmt.Errorf("negotiating %s: %w", s.Name, err)
		}
		n.assigned[s.Name] = p
		if p != start {
			logging.Info("Negotiator", "Port %d for %s is taken, using %d", start, s.Name, p)
		} else {
			logging.Debug("Negotiator", "Using port %d for %s", p, s.Name)
		}
	}
	return nil
}

// IsAllDefaultsUsed reports whether every spec ended up on the effective
// default it was seeded with. It is false before any negotiation.
func (n *Negotiator) IsAllDefaultsUsed() bool {
	if len(n.assigned) != len(n.specs) {
		return false
	}
	for _, s := range n.specs {
		if n.assigned[s.Name] != n.seeds[s.Name] {
			return false
		}
	}
	return true
}

// Shifted returns, in negotiation order, the names of ports whose assignment
// differs from their effective default.
func (n *Negotiator) Shifted() []string {
	var out []string
	for _, s := range n.specs {
		p, ok := n.assigned[s.Name]
		if ok && p != n.seeds[s.Name] {
			out = append(out, s.Name)
		}
	}
	return out
}

// TakenDefaults returns, in negotiation order, the specs whose effective
// default is currently not bindable.
func (n *Negotiator) TakenDefaults() []Spec {
	var out []Spec
	for _, s := range n.specs {
		start, _ := n.EffectiveDefault(s.Name)
		if !n.checker.IsOpen(start) {
			out = append(out, s)
		}
	}
	return out
}

// FindOpenPort returns the first port >= start that is bindable and not
// already claimed by this negotiator.
func (n *Negotiator) FindOpenPort(start int) (int, error) {
	if !InRange(start) {
		return 0, &InvalidPortError{Port: start}
	}
	for p := start; p <= MaxPort; p++ {
		if n.isChosen(p) {
			continue
		}
		if n.checker.IsOpen(p) {
			return p, nil
		}
	}
	return 0, &NoPortAvailableError{Start: start}
}

// OverridePort assigns an operator-supplied port to name. When candidate is
// taken, the nearest open port above it is used instead and returned. The
// port currently held by name does not count as taken.
func (n *Negotiator) OverridePort(name string, candidate int) (int, error) {
	if _, ok := n.spec(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}

	prev, hadPrev := n.assigned[name]
	delete(n.assigned, name)

	p, err := n.FindOpenPort(candidate)
	if err != nil {
		if hadPrev {
			n.assigned[name] = prev
		}
		return 0, err
	}
	n.assigned[name] = p
	if p != candidate {
		logging.Info("Negotiator", "Requested port %d for %s is taken, using %d", candidate, name, p)
	}
	return p, nil
}

// ClearAssignments discards the current assignment.
func (n *Negotiator) ClearAssignments() {
	n.assigned = make(map[string]int)
	n.seeds = make(map[string]int)
}

// Assignment returns a copy of the current assignment.
func (n *Negotiator) Assignment() Assignment {
	return Assignment(n.assigned).Clone()
}

// Port returns the port assigned to name.
func (n *Negotiator) Port(name string) (int, bool) {
	p, ok := n.assigned[name]
	return p, ok
}

// EffectiveDefault returns the value name was seeded with in the last
// negotiation, or its conventional default if it has not been negotiated.
func (n *Negotiator) EffectiveDefault(name string) (int, bool) {
	if p, ok := n.seeds[name]; ok {
		return p, true
	}
	s, ok := n.spec(name)
	if !ok {
		return 0, false
	}
	return s.Default, true
}

func (n *Negotiator) isChosen(port int) bool {
	for _, p := range n.assigned {
		if p == port {
			return true
		}
	}
	return false
}

func (n *Negotiator) spec(name string) (Spec, bool) {
	for _, s := range n.specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

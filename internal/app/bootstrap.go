package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bento/internal/config"
	"bento/internal/ports"
	"bento/internal/prompt"
	"bento/internal/siteconf"
	"bento/pkg/logging"
)

// ErrNoStateDir is returned when no state directory was given.
var ErrNoStateDir = errors.New("no state directory given")

// Application wires configuration, port negotiation, the site file store and
// the cluster engines together for one command.
type Application struct {
	config  *Config
	store   *siteconf.Store
	checker ports.PortChecker

	in     io.Reader
	out    io.Writer
	prompt func(n *ports.Negotiator) error
}

// Option adjusts an Application, mainly for tests.
type Option func(*Application)

// WithPortChecker replaces the socket checker used for negotiation.
func WithPortChecker(p ports.PortChecker) Option {
	return func(a *Application) {
		a.checker = p
	}
}

// WithIO sets where operator input is read from and reports are written to.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *Application) {
		a.in = in
		a.out = out
	}
}

// WithPrompt replaces the interactive port prompt.
func WithPrompt(fn func(n *ports.Negotiator) error) Option {
	return func(a *Application) {
		a.prompt = fn
	}
}

// NewApplication creates and initializes a new application instance
func NewApplication(cfg *Config, opts ...Option) (*Application, error) {
	// Configure logging based on debug flag
	appLogLevel := logging.LevelFromEnv(logging.LevelInfo)
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, os.Stderr)

	if cfg.StateDir == "" {
		return nil, ErrNoStateDir
	}
	stateDir, err := filepath.Abs(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory %s: %w", cfg.StateDir, err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	cfg.StateDir = stateDir

	harness, err := config.LoadConfig(stateDir, cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load bento configuration")
		return nil, fmt.Errorf("failed to load bento configuration: %w", err)
	}
	if cfg.StatusAddress != "" {
		harness.StatusAddress = cfg.StatusAddress
	}
	cfg.Harness = &harness
	logging.Debug("Bootstrap", "Using state directory %s", stateDir)

	a := &Application{
		config: cfg,
		store: siteconf.NewStore(
			config.ResolveDir(stateDir, harness.HadoopConfDir),
			config.ResolveDir(stateDir, harness.HBaseConfDir),
		),
		checker: ports.SocketChecker{},
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.prompt == nil {
		a.prompt = func(n *ports.Negotiator) error {
			return prompt.Run(n, a.in, a.out)
		}
	}
	return a, nil
}

func (a *Application) newNegotiator() *ports.Negotiator {
	return ports.NewNegotiator(ports.DefaultSpecs(), ports.WithPortChecker(a.checker))
}

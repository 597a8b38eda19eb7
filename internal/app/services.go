package app

import (
	"fmt"
	"os"

	"bento/internal/config"
	"bento/internal/dependency"
	"bento/internal/orchestrator"
	"bento/internal/ports"
	"bento/internal/services"
	"bento/internal/siteconf"
	"bento/pkg/logging"
)

// Descriptors applies the harness configuration to the bundled engines:
// command overrides replace the default command and disabled engines are
// dropped along with the dependencies other engines had on them.
func Descriptors(harness config.HarnessConfig) []services.Descriptor {
	all := services.DefaultDescriptors()
	full := services.Graph(all)

	var out []services.Descriptor
	for _, d := range all {
		def := harness.Services[d.Name]
		if def.Disabled {
			logging.Info("Bootstrap", "Engine %s is disabled", d.Name)
			for _, dependent := range full.Dependents(dependency.NodeID(d.Name)) {
				if !harness.Services[string(dependent)].Disabled {
					logging.Warn("Bootstrap", "%s depends on %s and will start without it", dependent, d.Name)
				}
			}
			continue
		}
		if len(def.Command) > 0 {
			d.Command = append([]string(nil), def.Command...)
		}
		out = append(out, d)
	}

	g := services.Graph(out)
	for i, d := range out {
		var deps []string
		for _, id := range g.Dependencies(dependency.NodeID(d.Name)) {
			deps = append(deps, string(id))
		}
		out[i].DependsOn = deps
	}
	return out
}

// serviceFactory returns the factory the orchestrator calls once ports are
// negotiated. Every engine runs as a child process in its data directory.
func (a *Application) serviceFactory() orchestrator.ServiceFactory {
	harness := *a.config.Harness
	descs := Descriptors(harness)

	return func(assignment ports.Assignment) ([]services.Service, error) {
		env := services.EngineEnv{
			StateDir:  a.config.StateDir,
			HadoopDir: a.store.HadoopDir,
			HBaseDir:  a.store.HBaseDir,
			Ports:     assignment,
		}

		out := make([]services.Service, 0, len(descs))
		for _, d := range descs {
			readyPort, ok := assignment[d.ReadyPort]
			if !ok {
				return nil, fmt.Errorf("no port assigned for %s (ready port of %s)", d.ReadyPort, d.Name)
			}
			for _, artifact := range d.Artifacts {
				if !a.store.Exists(artifact) {
					return nil, fmt.Errorf("%s reads %s, which has not been written to %s", d.Name, siteconf.FileName(artifact), a.store.DirFor(artifact))
				}
			}

			vars := engineVars(env, d.Name, harness.Services[d.Name].Env)

			dataDir := env.DataDir(d.Name)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory for %s: %w", d.Name, err)
			}

			out = append(out, services.NewProcessService(services.ProcessConfig{
				Name:         d.Name,
				DependsOn:    d.DependsOn,
				Command:      services.Expand(d.Command, vars),
				Env:          vars,
				Dir:          dataDir,
				ReadyPort:    readyPort,
				ReadyTimeout: harness.ReadyTimeout,
				StopTimeout:  harness.StopTimeout,
			}))
		}
		return out, nil
	}
}

// engineVars returns the base variables of service overlaid with custom.
// Custom values are expanded against the base variables only, so entries
// never see each other.
func engineVars(env services.EngineEnv, service string, custom map[string]string) map[string]string {
	base := env.Vars(service)
	vars := make(map[string]string, len(base)+len(custom))
	for k, v := range base {
		vars[k] = v
	}
	for k, v := range custom {
		vars[k] = services.Expand([]string{v}, base)[0]
	}
	return vars
}

package app

import (
	"fmt"

	"bento/internal/color"
	"bento/internal/siteconf"
	"bento/pkg/logging"
)

// ConfigureOptions selects how `bento config` chooses ports.
type ConfigureOptions struct {
	// AlwaysPrompt asks for every port even when all are free.
	AlwaysPrompt bool
	// UseHadoopDefaults ignores ports chosen by a previous run.
	UseHadoopDefaults bool
	// Reset implies UseHadoopDefaults and rewrites the clean site files.
	Reset bool
}

// Configure negotiates ports and writes the site files without starting
// anything. The operator is prompted when a port moved or when asked to.
func (a *Application) Configure(opts ConfigureOptions) error {
	configured := a.store.AnyExists()

	n := a.newNegotiator()
	var err error
	if opts.UseHadoopDefaults || opts.Reset {
		err = n.InitializeFromDefaults()
	} else {
		err = n.InitializeFromPersisted(a.store)
	}
	if err != nil {
		return fmt.Errorf("port negotiation failed: %w", err)
	}

	if !opts.AlwaysPrompt {
		if configured {
			fmt.Fprintln(a.out, "Checking if already configured ports are still open...")
		} else {
			fmt.Fprintln(a.out, "Checking if default Hadoop/HBase ports are open...")
		}
		if !n.IsAllDefaultsUsed() {
			fmt.Fprintln(a.out, color.WarnStyle.Render("Some ports are in use."))
			fmt.Fprintln(a.out)
		}
	}

	if !n.IsAllDefaultsUsed() || opts.AlwaysPrompt {
		if err := a.prompt(n); err != nil {
			return err
		}
	} else {
		if configured {
			fmt.Fprintln(a.out, "Already configured ports are open.")
		} else {
			fmt.Fprintln(a.out, "Default Hadoop/HBase ports are open.")
		}
		fmt.Fprintln(a.out, "Using these in the Hadoop/HBase configuration for your cluster.")
		fmt.Fprintln(a.out)
	}

	if err := a.store.Write(siteconf.BuildArtifacts(n.Assignment())); err != nil {
		return fmt.Errorf("failed to write site configuration: %w", err)
	}
	written, err := a.store.WriteCleanFiles(opts.Reset)
	if err != nil {
		return fmt.Errorf("failed to write site files: %w", err)
	}
	for _, path := range written {
		logging.Debug("CLI", "Wrote %s", path)
	}

	fmt.Fprintln(a.out, color.OKStyle.Render("Configuration complete."))
	return nil
}

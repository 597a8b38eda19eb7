package app

import (
	"fmt"

	"github.com/atotto/clipboard"

	"bento/internal/color"
	"bento/internal/ports"
	"bento/internal/report"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// CheckPorts prints the configured ports that are currently occupied and
// returns how many there were.
func (a *Application) CheckPorts() (int, error) {
	n := a.newNegotiator()
	if err := n.InitializeFromPersisted(a.store); err != nil {
		return 0, fmt.Errorf("port negotiation failed: %w", err)
	}
	return report.WriteTaken(a.out, n)
}

// ConfiguredPorts returns the ports recorded in the site files, or the
// conventional defaults where nothing was recorded.
func (a *Application) ConfiguredPorts() ports.Assignment {
	return ports.PersistedAssignment(ports.DefaultSpecs(), a.store)
}

// ReportPorts prints the web UI addresses and service ports of the
// configured cluster and optionally copies the report to the clipboard.
func (a *Application) ReportPorts(copyToClipboard bool) error {
	specs := ports.DefaultSpecs()
	assignment := a.ConfiguredPorts()
	if err := report.WritePorts(a.out, specs, assignment); err != nil {
		return err
	}
	if !copyToClipboard {
		return nil
	}
	if err := writeClipboard(report.Plain(specs, assignment)); err != nil {
		return fmt.Errorf("failed to copy the report to the clipboard: %w", err)
	}
	fmt.Fprintln(a.out, color.HintStyle.Render("Copied to clipboard."))
	return nil
}

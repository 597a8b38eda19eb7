// Package report renders the operator-facing port listings printed by
// `bento check-ports` and `bento ports`.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"bento/internal/color"
	"bento/internal/ports"
)

const takenIntro = "The following configured ports are in use. Please free the ports or " +
	"reconfigure bento-cluster by running `bento config` before trying to start the clusters."

// Entry is one labelled row of a report.
type Entry struct {
	Label string
	Value string
}

// WriteTaken lists the specs of n whose effective default is occupied and
// returns how many there were. Nothing is written when all are free.
func WriteTaken(w io.Writer, n *ports.Negotiator) (int, error) {
	taken := n.TakenDefaults()
	if len(taken) == 0 {
		return 0, nil
	}

	rows := make([]Entry, 0, len(taken))
	for _, s := range taken {
		p, _ := n.EffectiveDefault(s.Name)
		rows = append(rows, Entry{Label: s.Description, Value: fmt.Sprintf("%d", p)})
	}
	var b strings.Builder
	b.WriteString(color.WarnStyle.Render(takenIntro))
	b.WriteString("\n")
	writeRows(&b, rows, color.ErrorStyle.Render)
	_, err := io.WriteString(w, b.String())
	return len(taken), err
}

// Addresses splits an assignment into web UI addresses and plain service
// ports, both in spec order. Specs missing from a are skipped.
func Addresses(specs []ports.Spec, a ports.Assignment) (webUIs, services []Entry) {
	for _, s := range specs {
		p, ok := a[s.Name]
		if !ok {
			continue
		}
		if s.WebUI {
			webUIs = append(webUIs, Entry{Label: s.Description, Value: fmt.Sprintf("http://localhost:%d", p)})
		} else {
			services = append(services, Entry{Label: s.Description, Value: fmt.Sprintf("%d", p)})
		}
	}
	return webUIs, services
}

// Plain renders the address report without styling, suitable for the
// clipboard.
func Plain(specs []ports.Spec, a ports.Assignment) string {
	return render(specs, a, plain, plain)
}

// WritePorts prints the styled address report.
func WritePorts(w io.Writer, specs []ports.Spec, a ports.Assignment) error {
	_, err := io.WriteString(w, render(specs, a, color.HeaderStyle.Render, color.PortStyle.Render))
	return err
}

// styler matches lipgloss.Style.Render.
type styler func(strs ...string) string

func plain(strs ...string) string {
	return strings.Join(strs, " ")
}

func render(specs []ports.Spec, a ports.Assignment, header, value styler) string {
	webUIs, services := Addresses(specs, a)
	var b strings.Builder
	if len(webUIs) > 0 {
		b.WriteString(header("Cluster webapps can be visited at these web addresses:"))
		b.WriteString("\n")
		writeRows(&b, webUIs, value)
		b.WriteString("\n")
	}
	if len(services) > 0 {
		b.WriteString(header("Cluster services are available on the following ports:"))
		b.WriteString("\n")
		writeRows(&b, services, value)
		b.WriteString("\n")
	}
	return b.String()
}

// writeRows aligns values in a column after the widest label.
func writeRows(b *strings.Builder, rows []Entry, value styler) {
	width := 0
	for _, r := range rows {
		if w := runewidth.StringWidth(r.Label); w > width {
			width = w
		}
	}
	for _, r := range rows {
		fmt.Fprintf(b, "  %s  %s\n", runewidth.FillRight(r.Label+":", width+1), value(r.Value))
	}
}

// Package prompt asks the operator to confirm or override each negotiated
// port in a small terminal program.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"bento/internal/color"
	"bento/internal/ports"
)

// ErrAborted is returned when the operator leaves the prompt before every
// port has been chosen.
var ErrAborted = errors.New("port selection aborted")

const (
	introText           = "Please enter a value for each port, or press enter to use suggestion."
	portInUseNotice     = "That port is in use. Please try again."
	invalidNumberNotice = "Please enter a valid integer to use as the port."
)

type chosenPort struct {
	spec ports.Spec
	port int
}

// Model walks through the negotiator's specs one at a time. Each answer is
// applied with OverridePort, so an occupied entry is re-suggested as the next
// open port above it.
type Model struct {
	negotiator *ports.Negotiator
	specs      []ports.Spec
	defaults   map[string]int

	idx        int
	suggestion int
	chosen     []chosenPort
	input      textinput.Model
	notice     string

	err     error
	aborted bool
	done    bool
}

// New clears the negotiator's assignment and prepares a prompt that suggests,
// for every spec, the first open port at or above the default it was last
// negotiated from.
func New(n *ports.Negotiator) (Model, error) {
	specs := n.Specs()
	defaults := make(map[string]int, len(specs))
	for _, s := range specs {
		defaults[s.Name], _ = n.EffectiveDefault(s.Name)
	}
	n.ClearAssignments()

	ti := textinput.New()
	ti.Placeholder = "press enter to accept"
	ti.CharLimit = 5
	ti.Width = 24
	ti.Prompt = "> "
	ti.Focus()

	m := Model{
		negotiator: n,
		specs:      specs,
		defaults:   defaults,
		input:      ti,
	}
	if len(specs) == 0 {
		m.done = true
		return m, nil
	}
	if err := m.suggest(); err != nil {
		return m, err
	}
	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.done {
		return m, tea.Quit
	}
	spec := m.specs[m.idx]
	raw := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	candidate := m.suggestion
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			m.notice = invalidNumberNotice
			return m, nil
		}
		candidate = v
	}

	got, err := m.negotiator.OverridePort(spec.Name, candidate)
	if err != nil {
		var invalid *ports.InvalidPortError
		var exhausted *ports.NoPortAvailableError
		if errors.As(err, &invalid) || errors.As(err, &exhausted) {
			m.notice = err.Error()
			return m, nil
		}
		m.err = err
		return m, tea.Quit
	}
	if got != candidate {
		m.suggestion = got
		m.notice = portInUseNotice
		return m, nil
	}

	m.chosen = append(m.chosen, chosenPort{spec: spec, port: got})
	m.notice = ""
	m.idx++
	if m.idx == len(m.specs) {
		m.done = true
		return m, tea.Quit
	}
	if err := m.suggest(); err != nil {
		m.err = err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) suggest() error {
	spec := m.specs[m.idx]
	p, err := m.negotiator.FindOpenPort(m.defaults[spec.Name])
	if err != nil {
		return fmt.Errorf("suggesting a port for %s: %w", spec.Description, err)
	}
	m.suggestion = p
	return nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(color.HeaderStyle.Render(introText))
	b.WriteString("\n\n")
	for _, c := range m.chosen {
		fmt.Fprintf(&b, "%s %s\n", color.OKStyle.Render("✓"), label(c.spec, c.port))
	}
	if m.done || m.aborted || m.err != nil {
		return b.String()
	}

	spec := m.specs[m.idx]
	fmt.Fprintf(&b, "%s %s\n", color.PromptStyle.Render(spec.Description), color.HintStyle.Render(fmt.Sprintf("[%d]", m.suggestion)))
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(color.WarnStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(color.HintStyle.Render("enter: accept  esc: abort"))
	b.WriteString("\n")
	return b.String()
}

func label(s ports.Spec, port int) string {
	return fmt.Sprintf("%s: %s", s.Description, color.PortStyle.Render(strconv.Itoa(port)))
}

// Done reports whether every port has been chosen.
func (m Model) Done() bool {
	return m.done
}

// Run shows the prompt on out, reading keys from in. On success every spec of
// n holds the operator's choice.
func Run(n *ports.Negotiator, in io.Reader, out io.Writer) error {
	m, err := New(n)
	if err != nil {
		return err
	}
	if m.done {
		return nil
	}

	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return fmt.Errorf("running port prompt: %w", err)
	}
	result, ok := final.(Model)
	if !ok {
		return fmt.Errorf("unexpected prompt model %T", final)
	}
	if result.err != nil {
		return result.err
	}
	if result.aborted || !result.done {
		return ErrAborted
	}
	return nil
}

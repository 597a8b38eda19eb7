package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette entries adapt to light and dark terminals.
var (
	primary = lipgloss.AdaptiveColor{Light: "#1F4E96", Dark: "#7AA2F7"}
	success = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#9ECE6A"}
	warning = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#E0AF68"}
	failure = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F7768E"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8C8FA1"}
)

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	PortStyle    = lipgloss.NewStyle().Bold(true)
	HintStyle    = lipgloss.NewStyle().Foreground(muted)
	OKStyle      = lipgloss.NewStyle().Foreground(success)
	WarnStyle    = lipgloss.NewStyle().Foreground(warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(failure).Bold(true)
	PromptStyle  = lipgloss.NewStyle().Foreground(primary)
	ChangedStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
)

// Initialize fixes the background darkness used by adaptive colors. With
// NO_COLOR set every style renders plain text.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

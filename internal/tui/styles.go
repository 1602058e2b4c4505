// Package tui renders run results for the terminal.
//
// Colors use AdaptiveColor so output reads on light and dark terminals.
// Every status is shown as icon, color and text together, so nothing is
// lost when colors are disabled.
//
// Call CheckNoColor at the start of commands that print styled text. It
// honors NO_COLOR and TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/tabula/internal/constants"
)

//nolint:gochecknoglobals // Package-level styling API
var (
	// ColorPrimary is blue, used for headers and informational text.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for passed steps and runs.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for warnings.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failures and errors.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for skipped steps and secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies faint formatting.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// StatusColor returns the color of a step status.
func StatusColor(status constants.StepStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.StepStatusPass:
		return ColorSuccess
	case constants.StepStatusFail:
		return ColorError
	case constants.StepStatusWarn:
		return ColorWarning
	default:
		return ColorMuted
	}
}

// StatusIcon returns the icon of a step status.
func StatusIcon(status constants.StepStatus) string {
	switch status {
	case constants.StepStatusPass:
		return "✓"
	case constants.StepStatusFail:
		return "✗"
	case constants.StepStatusWarn:
		return "⚠"
	case constants.StepStatusSkipped:
		return "○"
	default:
		return "?"
	}
}

// RenderStatus renders icon and text in the status color. Without color
// support only the plain text is returned.
func RenderStatus(status constants.StepStatus) string {
	text := StatusIcon(status) + " " + status.String()
	if !HasColorSupport() {
		return text
	}
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(text)
}

// OutputStyles holds common message styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
}

// NewOutputStyles creates the message styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// TableStyles holds the summary table styles.
type TableStyles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	Failed lipgloss.Style
}

// NewTableStyles creates the summary table styles.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(ColorMuted),
		Failed: lipgloss.NewStyle().Padding(0, 1).Foreground(ColorError),
	}
}

// CheckNoColor switches lipgloss to plain ASCII when colors are unsupported.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport reports false when NO_COLOR is present (any value,
// including empty) or TERM is dumb. See https://no-color.org/.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

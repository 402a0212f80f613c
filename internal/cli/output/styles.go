package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles for terminal output. All styles share
// one renderer bound to the output writer, so colors degrade together.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	MetricName lipgloss.Style
	SourceName lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

// newStyles builds the style set for w. A non-terminal destination gets
// the ASCII profile, which renders every style as plain text.
func newStyles(w io.Writer, isTTY bool) *Styles {
	lr := lipgloss.NewRenderer(w)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		Header1: lr.NewStyle().Bold(true).Underline(true),
		Header2: lr.NewStyle().Bold(true),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),

		Success: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("9")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("12")),

		MetricName: lr.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		SourceName: lr.NewStyle().Foreground(lipgloss.Color("13")),

		StatusSuccess: lr.NewStyle().SetString("✓").Foreground(lipgloss.Color("10")),
		StatusFailed:  lr.NewStyle().SetString("✗").Foreground(lipgloss.Color("9")),
		StatusSkipped: lr.NewStyle().SetString("-").Foreground(lipgloss.Color("8")),
	}
}

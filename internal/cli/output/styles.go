package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// plainStyles render text unchanged.
func plainStyles() *Styles {
	return &Styles{
		Header:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle(),
	}
}

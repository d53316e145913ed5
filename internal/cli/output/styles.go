package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header        lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	ModelPath     lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:        r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:          r.NewStyle().Bold(true),
		Muted:         r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:       r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:       r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:         r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:          r.NewStyle().Foreground(lipgloss.Color("14")),
		ModelPath:     r.NewStyle().Underline(true),
		StatusSuccess: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		StatusFailed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

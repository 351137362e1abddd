package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
const (
	ColorHeader    = lipgloss.Color("12")
	ColorMuted     = lipgloss.Color("8")
	ColorSelected  = lipgloss.Color("10")
	ColorHighlight = lipgloss.Color("229")
	ColorCursorBg  = lipgloss.Color("57")
	ColorError     = lipgloss.Color("9")
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	selectedStyle = lipgloss.NewStyle().Foreground(ColorSelected)
	cursorStyle   = lipgloss.NewStyle().Foreground(ColorHighlight).Background(ColorCursorBg)
	errorStyle    = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
)

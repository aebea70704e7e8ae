package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	StreakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1).
			Bold(true)
)

// Streak renders a streak count with its flame
func Streak(n int) string {
	if n == 0 {
		return MutedStyle.Render("0")
	}
	return StreakStyle.Render(strconv.Itoa(n) + " 🔥")
}

// DayMark renders one cell of a week row
func DayMark(done bool) string {
	if done {
		return SuccessStyle.Render("■")
	}
	return MutedStyle.Render("□")
}

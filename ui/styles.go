package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	faintFg = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#5C5C5C"}
	textFg  = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#DDDDDD"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textFg).
			Render

	subtleStyle = lipgloss.NewStyle().
			Foreground(faintFg).
			Render

	otherTakeStyle = lipgloss.NewStyle().
			Foreground(faintFg).
			Render

	wordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.AdaptiveColor{Light: "#FFE58F", Dark: "#E7C65C"}).
			Render

	takeLabelStyle = lipgloss.NewStyle().
			Foreground(faintFg).
			Render

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#2B8C6E")).
			Bold(true).
			Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarStateStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(red).
				Render

	pickerCursorStyle = lipgloss.NewStyle().
				Foreground(green).
				Bold(true).
				Render

	pickerMatchStyle = lipgloss.NewStyle().
				Underline(true).
				Render

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Render
)

func logoView() string {
	return logoStyle(" 책 읽어주는 ")
}

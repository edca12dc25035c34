package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/reader"
)

const ellipsis = "…"

func stateIcon(s playback.State) string {
	switch s {
	case playback.StateGenerating:
		return "⟳"
	case playback.StatePlaying:
		return "▶"
	case playback.StatePaused:
		return "⏸"
	case playback.StateEnded:
		return "■"
	default:
		return "○"
	}
}

func stateColor(s playback.State) lipgloss.TerminalColor {
	switch s {
	case playback.StatePlaying:
		return green
	case playback.StatePaused:
		return lipgloss.Color("#E7C65C")
	case playback.StateGenerating:
		return lipgloss.Color("#00AAFF")
	default:
		return faintFg
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// progressView shows which take is current, and the position within it.
func progressView(s reader.Snapshot) string {
	n := len(s.Takes)
	if n == 0 || !s.State.Active() {
		return ""
	}
	out := fmt.Sprintf("%d/%d", s.CurrentTake+1, n)
	if s.Duration > 0 {
		out += fmt.Sprintf(" %s/%s", formatDuration(s.Position), formatDuration(s.Duration))
	}
	return out
}

// progressBar draws how far through the reading the session is.
func progressBar(s reader.Snapshot, width int) string {
	n := len(s.Takes)
	if n == 0 || width < 10 {
		return ""
	}

	done := s.CurrentTake
	if s.State == playback.StateEnded {
		done = n
	}
	filled := min(done*width/n, width)

	return lipgloss.NewStyle().Foreground(stateColor(s.State)).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(faintFg).Render(strings.Repeat("░", width-filled))
}

// statusBarView lays out the logo, a note, the session state and the help
// hint across the full width.
func (m model) statusBarView(b *strings.Builder) {
	s := m.snap

	logo := logoView()

	state := " " + stateIcon(s.State) + " " + s.State.String()
	if p := progressView(s); p != "" {
		state += " " + p
	}
	state += " "

	helpNote := " ? Help "

	var note string
	switch {
	case m.errMessage != "":
		note = m.errMessage
	case m.statusMessage != "":
		note = m.statusMessage
	default:
		note = m.voiceNote()
	}

	avail := max(0, m.width-
		ansi.PrintableRuneWidth(logo)-
		ansi.PrintableRuneWidth(state)-
		ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec
	padding := strings.Repeat(" ", max(0, avail-runewidth.StringWidth(note)))

	switch {
	case m.errMessage != "":
		note = statusBarErrorStyle(note + padding)
	case m.statusMessage != "":
		note = statusBarMessageStyle(note + padding)
	default:
		note = statusBarNoteStyle(note + padding)
	}

	fmt.Fprintf(b, "%s%s%s%s",
		logo,
		note,
		statusBarStateStyle(state),
		statusBarNoteStyle(helpNote),
	)
}

func (m model) voiceNote() string {
	s := m.snap
	note := "목소리: " + s.Voice.Name
	if m.source != "" {
		note = m.source + " · " + note
	}
	return note
}

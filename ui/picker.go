package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// voiceSource adapts catalog voices to fuzzy.Source.
type voiceSource []catalog.Voice

func (v voiceSource) String(i int) string { return v[i].Name + " " + v[i].Description }
func (v voiceSource) Len() int            { return len(v) }

// FilterVoices returns the voices matching term, best first. An empty term
// keeps catalog order.
func FilterVoices(voices []catalog.Voice, term string) []fuzzy.Match {
	if strings.TrimSpace(term) == "" {
		out := make([]fuzzy.Match, len(voices))
		for i, v := range voices {
			out[i] = fuzzy.Match{Str: v.Name, Index: i}
		}
		return out
	}
	return fuzzy.FindFrom(term, voiceSource(voices))
}

type (
	voiceChosenMsg  struct{ name string }
	customVoiceMsg  struct{ id string }
	pickerClosedMsg struct{}
)

// pickerModel lets the user choose a voice by name or enter a voice id.
type pickerModel struct {
	voices  []catalog.Voice
	current string

	filter  textinput.Model
	custom  textinput.Model
	editing bool // Entering a custom id
	matches []fuzzy.Match
	cursor  int
	err     string
}

func newPickerModel(voices []catalog.Voice) pickerModel {
	filter := textinput.New()
	filter.Prompt = "찾기: "
	filter.Placeholder = "목소리 이름"

	custom := textinput.New()
	custom.Prompt = "voice id: "
	custom.CharLimit = catalog.VoiceIDLength
	custom.Placeholder = strings.Repeat("·", catalog.VoiceIDLength)

	m := pickerModel{voices: voices, filter: filter, custom: custom}
	m.refilter()
	return m
}

// open resets the picker, focusing the filter.
func (m *pickerModel) open(current string) tea.Cmd {
	m.current = current
	m.editing = false
	m.err = ""
	m.filter.SetValue("")
	m.custom.SetValue("")
	m.custom.Blur()
	m.refilter()
	for i, match := range m.matches {
		if m.voices[match.Index].Name == current {
			m.cursor = i
		}
	}
	return m.filter.Focus()
}

func (m *pickerModel) refilter() {
	m.matches = FilterVoices(m.voices, m.filter.Value())
	if m.cursor >= len(m.matches) {
		m.cursor = max(len(m.matches)-1, 0)
	}
}

func (m *pickerModel) setError(err error) {
	if err == nil {
		m.err = ""
		return
	}
	m.err = ttypes.UserMessage(ttypes.KindOf(err))
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, pickerKeys.Close):
		if m.editing {
			m.editing = false
			m.err = ""
			m.custom.Blur()
			return m, m.filter.Focus()
		}
		return m, func() tea.Msg { return pickerClosedMsg{} }

	case key.Matches(keyMsg, pickerKeys.Custom):
		m.editing = !m.editing
		m.err = ""
		if m.editing {
			m.filter.Blur()
			return m, m.custom.Focus()
		}
		m.custom.Blur()
		return m, m.filter.Focus()

	case key.Matches(keyMsg, pickerKeys.Choose):
		if m.editing {
			id := m.custom.Value()
			return m, func() tea.Msg { return customVoiceMsg{id: id} }
		}
		if len(m.matches) == 0 {
			return m, nil
		}
		name := m.voices[m.matches[m.cursor].Index].Name
		return m, func() tea.Msg { return voiceChosenMsg{name: name} }

	case !m.editing && key.Matches(keyMsg, pickerKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case !m.editing && key.Matches(keyMsg, pickerKeys.Down):
		if m.cursor < len(m.matches)-1 {
			m.cursor++
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.editing {
		m.custom, cmd = m.custom.Update(msg)
		m.err = ""
		return m, cmd
	}
	m.filter, cmd = m.filter.Update(msg)
	m.refilter()
	return m, cmd
}

func (m pickerModel) view(width int) string {
	var b strings.Builder

	b.WriteString(titleStyle("목소리 고르기") + "\n\n")
	if m.editing {
		b.WriteString(m.custom.View() + "\n")
		b.WriteString(subtleStyle(fmt.Sprintf("%d characters, letters and digits", catalog.VoiceIDLength)) + "\n")
	} else {
		b.WriteString(m.filter.View() + "\n\n")
		for i, match := range m.matches {
			v := m.voices[match.Index]

			cursor := "  "
			if i == m.cursor {
				cursor = pickerCursorStyle("> ")
			}
			name := highlightMatch(v.Name, match.MatchedIndexes)
			if v.Name == m.current {
				name += subtleStyle(" (사용 중)")
			}
			line := cursor + name
			if v.Description != "" && width > 40 {
				line += "  " + subtleStyle(v.Description)
			}
			b.WriteString(line + "\n")
		}
		if len(m.matches) == 0 {
			b.WriteString(subtleStyle("  no match") + "\n")
		}
	}
	if m.err != "" {
		b.WriteString("\n" + errorStyle(m.err) + "\n")
	}
	return b.String()
}

// highlightMatch underlines the matched runes of s. Indexes beyond s come
// from the description and are ignored.
func highlightMatch(s string, idx []int) string {
	if len(idx) == 0 {
		return s
	}
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}

	var b strings.Builder
	for i, r := range s {
		if set[i] {
			b.WriteString(pickerMatchStyle(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

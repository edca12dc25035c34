// Package ui provides the terminal reader for readaloud.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/prefs"
	"github.com/dgnsrekt/readaloud/internal/reader"
)

const statusMessageTimeout = time.Second * 3

// Deps are the services the program drives.
type Deps struct {
	Reader  *reader.Reader
	Catalog *catalog.Catalog
	Prefs   *prefs.Store // Optional
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("starting reader", "layout", cfg.Layout, "autoplay", cfg.AutoPlay)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

// mode is the top-level application state.
type mode int

const (
	modeRead mode = iota
	modeEdit
	modePicker
)

func (m mode) String() string {
	return map[mode]string{
		modeRead:   "reading",
		modeEdit:   "editing",
		modePicker: "choosing a voice",
	}[m]
}

type model struct {
	cfg    Config
	deps   Deps
	layout prefs.Layout
	mode   mode

	width  int
	height int

	snap   reader.Snapshot
	prefs  prefs.Prefs
	source string

	editor   textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	picker   pickerModel

	statusMessage string
	errMessage    string
	statusSeq     int

	// Last take scrolled into view, so manual scrolling is left alone
	// until the reading moves on.
	followed int

	sub    *subscription
	ctx    context.Context
	cancel context.CancelFunc
}

func newModel(cfg Config, deps Deps) model {
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}

	layout := prefs.Layout(cfg.Layout)
	if layout != prefs.Mobile {
		layout = prefs.PC
	}

	ta := textarea.New()
	ta.Placeholder = "읽어 줄 글을 붙여 넣거나 적어 주세요."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetValue(cfg.Text)

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{
		Up:       readKeys.Up,
		Down:     readKeys.Down,
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := model{
		cfg:      cfg,
		deps:     deps,
		layout:   layout,
		mode:     modeRead,
		source:   cfg.Source,
		editor:   ta,
		viewport: vp,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		picker:   newPickerModel(deps.Catalog.Voices),
		followed: -1,
		sub:      newSubscription(),
		ctx:      ctx,
		cancel:   cancel,
	}

	m.prefs = prefs.Defaults()
	if deps.Prefs != nil {
		m.prefs = deps.Prefs.Get()
	}
	lipgloss.SetHasDarkBackground(m.prefs.Dark)

	if strings.TrimSpace(cfg.Text) != "" {
		deps.Reader.SetText(cfg.Text)
	} else {
		m.mode = modeEdit
		m.editor.Focus()
	}
	deps.Reader.OnChange(m.sub.snapshot)
	deps.Reader.OnError(m.sub.failed)
	m.snap = deps.Reader.Snapshot()
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.sub.wait}
	if m.mode == modeEdit {
		cmds = append(cmds, textarea.Blink)
	}
	if m.deps.Prefs != nil {
		cmds = append(cmds, watchPrefsCmd(m.ctx, m.deps.Prefs, m.sub))
	}
	if m.cfg.AutoPlay && m.mode == modeRead {
		cmds = append(cmds, startCmd(m.deps.Reader, m.cfg.Text))
	}
	return tea.Batch(cmds...)
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	m.sub.close()
	return m, tea.Quit
}

func (m *model) showStatus(s string) tea.Cmd {
	m.statusMessage = s
	m.errMessage = ""
	return m.expireStatus()
}

func (m *model) showError(err error) tea.Cmd {
	msg := errorMessage(err)
	if msg == "" {
		return nil
	}
	m.errMessage = msg
	return m.expireStatus()
}

func (m *model) expireStatus() tea.Cmd {
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg(seq)
	})
}

func (m *model) applyPrefs(p prefs.Prefs) {
	m.prefs = p
	lipgloss.SetHasDarkBackground(p.Dark)
	m.render()
}

func (m *model) openPicker() tea.Cmd {
	m.mode = modePicker
	m.editor.Blur()
	m.deps.Reader.OpenVoicePicker(true)
	return m.picker.open(m.snap.Voice.Name)
}

func (m *model) closePicker() {
	m.deps.Reader.OpenVoicePicker(false)
	m.mode = modeRead
	if strings.TrimSpace(m.snap.Text) == "" {
		m.mode = modeEdit
		m.editor.Focus()
	}
}

func (m *model) edit() tea.Cmd {
	m.mode = modeEdit
	m.editor.SetValue(m.snap.Text)
	return m.editor.Focus()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setSize()
		m.render()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modePicker:
			var cmd tea.Cmd
			m.picker, cmd = m.picker.update(msg)
			return m, cmd
		default:
			return m.updateRead(msg)
		}

	case snapshotMsg:
		m.snap = reader.Snapshot(msg)
		if m.snap.VoicePickerOpen && m.mode != modePicker {
			cmds = append(cmds, m.picker.open(m.snap.Voice.Name))
			m.mode = modePicker
			m.editor.Blur()
		}
		m.render()
		return m, tea.Batch(append(cmds, m.sub.wait)...)

	case readerErrMsg:
		if m.mode == modePicker {
			m.picker.setError(msg.err)
		}
		return m, tea.Batch(m.showError(msg.err), m.sub.wait)

	case prefsMsg:
		m.applyPrefs(prefs.Prefs(msg))
		return m, m.sub.wait

	case prefsSavedMsg:
		m.applyPrefs(prefs.Prefs(msg))
		return m, nil

	case actionMsg:
		if msg.err != nil {
			log.Debug("action failed", "op", msg.op, "error", msg.err)
			return m, m.showError(msg.err)
		}
		return m, nil

	case pasteMsg:
		switch {
		case msg.err != nil:
			return m, m.showError(msg.err)
		case msg.res.Prompt:
			return m, m.showStatus("링크 대신 글을 만들어 달라는 요청을 클립보드에 담았어요")
		default:
			m.editor.SetValue(msg.res.Text)
			m.snap = m.deps.Reader.Snapshot()
			m.render()
			return m, m.showStatus("붙여 넣었어요")
		}

	case randomMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		m.mode = modeRead
		m.editor.Blur()
		m.editor.SetValue(msg.pick.Text)
		m.source = msg.pick.Material.Name
		return m, m.showStatus(msg.pick.Material.Name + " · " + msg.pick.Voice.Name)

	case voiceSetMsg:
		if msg.err != nil {
			m.picker.setError(msg.err)
			if !msg.custom {
				return m, m.showError(msg.err)
			}
			return m, nil
		}
		m.closePicker()
		m.snap = m.deps.Reader.Snapshot()
		m.render()
		return m, m.showStatus("목소리: " + m.snap.Voice.Name)

	case pickerClosedMsg:
		m.closePicker()
		return m, nil

	case voiceChosenMsg:
		return m, changeVoiceCmd(m.deps.Reader, msg.name)

	case customVoiceMsg:
		return m, customVoiceCmd(m.deps.Reader, msg.id)

	case editorFinishedMsg:
		if msg.err != nil {
			log.Error("editor", "error", msg.err)
			return m, m.showStatus("편집기를 열 수 없었어요")
		}
		m.editor.SetValue(strings.TrimRight(msg.text, "\n"))
		return m, nil

	case statusMessageTimeoutMsg:
		if int(msg) == m.statusSeq {
			m.statusMessage = ""
			m.errMessage = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Generating >= 0 || m.snap.TitlePending {
			m.render()
		}
		return m, cmd
	}

	if m.mode == modeEdit {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) updateRead(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := m.deps.Reader

	switch {
	case key.Matches(msg, readKeys.Quit):
		return m.quit()

	case key.Matches(msg, readKeys.Toggle):
		m.errMessage = ""
		return m, toggleCmd(r)

	case key.Matches(msg, readKeys.Next):
		return m, nextCmd(r)

	case key.Matches(msg, readKeys.Previous):
		return m, previousCmd(r)

	case key.Matches(msg, readKeys.Stop):
		return m, stopCmd(r)

	case key.Matches(msg, readKeys.Random):
		return m, randomCmd(r)

	case key.Matches(msg, readKeys.Voice):
		return m, m.openPicker()

	case key.Matches(msg, readKeys.Paste):
		return m, pasteCmd(r)

	case key.Matches(msg, readKeys.Edit):
		return m, m.edit()

	case key.Matches(msg, readKeys.Dark):
		if m.deps.Prefs == nil {
			return m, nil
		}
		return m, updatePrefsCmd(m.deps.Prefs, func(p prefs.Prefs) prefs.Prefs {
			p.Dark = !p.Dark
			return p
		})

	case key.Matches(msg, readKeys.Wider), key.Matches(msg, readKeys.Narrower):
		steps := 1
		if key.Matches(msg, readKeys.Narrower) {
			steps = -1
		}
		if m.deps.Prefs == nil {
			m.prefs = m.prefs.AdjustWidth(m.layout, steps)
			m.render()
			return m, nil
		}
		layout := m.layout
		return m, updatePrefsCmd(m.deps.Prefs, func(p prefs.Prefs) prefs.Prefs {
			return p.AdjustWidth(layout, steps)
		})

	case key.Matches(msg, readKeys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.setSize()
		m.render()
		return m, nil

	case msg.String() == "ctrl+z":
		return m, tea.Suspend
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := m.deps.Reader

	switch {
	case key.Matches(msg, editKeys.Quit):
		return m.quit()

	case key.Matches(msg, editKeys.Read):
		text := m.editor.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.mode = modeRead
		m.editor.Blur()
		m.followed = -1
		return m, startCmd(r, text)

	case key.Matches(msg, editKeys.Back):
		if strings.TrimSpace(m.editor.Value()) == "" {
			return m, nil
		}
		r.SetText(m.editor.Value())
		m.snap = r.Snapshot()
		m.mode = modeRead
		m.editor.Blur()
		m.render()
		return m, nil

	case key.Matches(msg, editKeys.Paste):
		return m, pasteCmd(r)

	case key.Matches(msg, editKeys.Random):
		return m, randomCmd(r)

	case key.Matches(msg, editKeys.Voice):
		return m, m.openPicker()

	case key.Matches(msg, editKeys.External):
		return m, openEditorCmd(m.editor.Value())
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// Layout

const (
	headerHeight    = 2
	statusBarHeight = 1
)

func (m model) helpView() string {
	switch m.mode {
	case modeEdit:
		return m.help.View(editKeys)
	case modePicker:
		return m.help.View(pickerKeys)
	default:
		return m.help.View(readKeys)
	}
}

func (m *model) setSize() {
	helpHeight := lipgloss.Height(m.helpView())
	body := max(1, m.height-headerHeight-statusBarHeight-helpHeight)

	m.viewport.Width = m.width
	m.viewport.Height = body
	m.editor.SetWidth(max(10, m.width-4))
	m.editor.SetHeight(max(3, body-1))
}

// columns returns the text column width and the margin centering it.
func (m model) columns() (int, int) {
	col := int(float64(m.width) * m.prefs.Width.Get(m.layout))
	col = max(min(col, m.width-2), 10)
	return col, max(0, (m.width-col)/2)
}

// render redraws the takes into the viewport and keeps the current take
// in view while a session runs.
func (m *model) render() {
	if m.width == 0 {
		return
	}
	col, margin := m.columns()

	spacing := 0
	if m.prefs.LineHeight.Get(m.layout) >= 2 {
		spacing = 1
	}

	s := m.snap
	v := takeView{
		Takes:       s.Takes,
		Current:     -1,
		Word:        -1,
		Generating:  s.Generating,
		Numbers:     m.cfg.ShowTakeNumbers,
		Width:       col,
		Margin:      margin,
		LineSpacing: spacing,
	}
	if s.State.Active() || s.State == playback.StateEnded {
		v.Current = s.CurrentTake
		v.Word = s.CurrentWord
	}
	if len(s.Takes) == 0 && s.Text != "" {
		m.viewport.SetContent(otherTakeStyle(s.Text))
		return
	}

	content, start := renderTakes(v, m.spinner.View())
	m.viewport.SetContent(content)

	if v.Current >= 0 && v.Current != m.followed && s.State.Active() {
		m.followed = v.Current
		if start < m.viewport.YOffset || start >= m.viewport.YOffset+m.viewport.Height-2 {
			m.viewport.SetYOffset(max(0, start-1))
		}
	}
}

func (m model) headerView() string {
	s := m.snap
	var t string
	switch {
	case s.Title != "":
		t = titleStyle(s.Title)
	case s.TitlePending:
		t = m.spinner.View() + " " + subtleStyle("제목을 짓고 있어요")
	case m.source != "":
		t = titleStyle(m.source)
	default:
		t = titleStyle("책 읽어주는")
	}
	_, margin := m.columns()
	return strings.Repeat(" ", margin) + t + "\n"
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	switch m.mode {
	case modeEdit:
		b.WriteString(titleStyle(" 읽을 글") + "\n\n")
		b.WriteString(m.editor.View() + "\n")
	case modePicker:
		b.WriteString(m.picker.view(m.width))
	default:
		b.WriteString(m.headerView() + "\n")
		b.WriteString(m.viewport.View() + "\n")
	}

	body := b.String()
	if pad := m.height - statusBarHeight - lipgloss.Height(m.helpView()) - lipgloss.Height(body); pad > 0 {
		body += strings.Repeat("\n", pad)
	}

	var out strings.Builder
	out.WriteString(body)
	m.statusBarView(&out)
	out.WriteString("\n" + m.helpView())
	return out.String()
}

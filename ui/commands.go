package ui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/editor"

	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/prefs"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

type (
	snapshotMsg  reader.Snapshot
	readerErrMsg struct{ err error }
	prefsMsg     prefs.Prefs // Changed on disk

	prefsSavedMsg prefs.Prefs

	actionMsg struct {
		op  string
		err error
	}
	pasteMsg struct {
		res reader.PasteResult
		err error
	}
	randomMsg struct {
		pick catalog.Pick
		err  error
	}
	voiceSetMsg struct {
		custom bool
		err    error
	}
	editorFinishedMsg struct {
		text string
		err  error
	}

	statusMessageTimeoutMsg int
)

// subscription carries reader events into the program. Reader listeners run
// on whatever goroutine caused the change, sometimes inside Update, so
// they must never block: snapshots and prefs keep only the latest value and
// errors are dropped when nobody is reading.
type subscription struct {
	snaps chan reader.Snapshot
	errs  chan error
	prefs chan prefs.Prefs
	done  chan struct{}
}

func newSubscription() *subscription {
	return &subscription{
		snaps: make(chan reader.Snapshot, 1),
		errs:  make(chan error, 4),
		prefs: make(chan prefs.Prefs, 1),
		done:  make(chan struct{}),
	}
}

func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *subscription) snapshot(snap reader.Snapshot) { offer(s.snaps, snap) }
func (s *subscription) prefsChanged(p prefs.Prefs)    { offer(s.prefs, p) }

func (s *subscription) failed(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *subscription) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// wait blocks for the next event. Handlers re-arm it.
func (s *subscription) wait() tea.Msg {
	select {
	case snap := <-s.snaps:
		return snapshotMsg(snap)
	case err := <-s.errs:
		return readerErrMsg{err}
	case p := <-s.prefs:
		return prefsMsg(p)
	case <-s.done:
		return nil
	}
}

func watchPrefsCmd(ctx context.Context, store *prefs.Store, sub *subscription) tea.Cmd {
	return func() tea.Msg {
		if err := store.Watch(ctx, sub.prefsChanged); err != nil {
			return actionMsg{op: "watch prefs", err: err}
		}
		return nil
	}
}

func toggleCmd(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: "toggle", err: r.Toggle()}
	}
}

func startCmd(r *reader.Reader, text string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: "start", err: r.Start(text)}
	}
}

func nextCmd(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: "next", err: r.Next()}
	}
}

func previousCmd(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: "previous", err: r.Previous()}
	}
}

func stopCmd(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		r.Stop()
		return nil
	}
}

func pasteCmd(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		res, err := r.Paste()
		return pasteMsg{res: res, err: err}
	}
}

func randomCmd(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		pick, err := r.RandomText()
		return randomMsg{pick: pick, err: err}
	}
}

func changeVoiceCmd(r *reader.Reader, name string) tea.Cmd {
	return func() tea.Msg {
		return voiceSetMsg{err: r.ChangeVoice(name)}
	}
}

func customVoiceCmd(r *reader.Reader, id string) tea.Cmd {
	return func() tea.Msg {
		return voiceSetMsg{custom: true, err: r.SetCustomVoice(id)}
	}
}

func updatePrefsCmd(store *prefs.Store, fn func(prefs.Prefs) prefs.Prefs) tea.Cmd {
	return func() tea.Msg {
		p, err := store.Update(fn)
		if err != nil {
			return actionMsg{op: "save prefs", err: err}
		}
		return prefsSavedMsg(p)
	}
}

// openEditorCmd hands text to $EDITOR and reads it back.
func openEditorCmd(text string) tea.Cmd {
	f, err := os.CreateTemp("", "readaloud-*.md")
	if err != nil {
		return func() tea.Msg { return editorFinishedMsg{err: err} }
	}
	path := f.Name()
	_, err = f.WriteString(text)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return func() tea.Msg { return editorFinishedMsg{err: err} }
	}

	c, err := editor.Cmd("readaloud", path)
	if err != nil {
		_ = os.Remove(path)
		return func() tea.Msg { return editorFinishedMsg{err: err} }
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		defer os.Remove(path) //nolint:errcheck
		if err != nil {
			return editorFinishedMsg{err: err}
		}
		data, err := os.ReadFile(path)
		return editorFinishedMsg{text: string(data), err: err}
	})
}

// errorMessage is what the status bar shows for err; empty for errors the
// user should not see.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	k := ttypes.KindOf(err)
	if k.Silent() {
		return ""
	}
	return ttypes.UserMessage(k)
}

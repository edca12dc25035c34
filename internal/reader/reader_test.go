package reader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/prefetch"
	"github.com/dgnsrekt/readaloud/internal/prefs"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

const customID = "weKbNjMh2V5MuXziwHwjoT"

const threeTakes = "First take.\n\nSecond one here.\n\nAnd the third."

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeTitles struct {
	mu    sync.Mutex
	calls int
	title string
}

func (f *fakeTitles) Generate(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.title, nil
}

func (f *fakeTitles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClipboard struct {
	text    string
	readErr error
	written string
}

func (c *fakeClipboard) ReadAll() (string, error) { return c.text, c.readErr }

func (c *fakeClipboard) WriteAll(text string) error {
	c.written = text
	return nil
}

type fixture struct {
	r      *Reader
	out    *audio.MockOutput
	synth  *synth.Mock
	store  *prefs.Store
	titles *fakeTitles
	clip   *fakeClipboard
}

func newFixture(t *testing.T, p prefs.Prefs) *fixture {
	t.Helper()

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.yml"), prefs.Defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Update(func(prefs.Prefs) prefs.Prefs { return p }); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		out:    audio.NewMockOutput(audio.MockCallbacks{}),
		synth:  synth.NewMock(),
		store:  store,
		titles: &fakeTitles{title: "## 세 개의 테이크"},
		clip:   &fakeClipboard{},
	}
	d := playback.NewDriver(f.out, prefetch.New(f.synth, nil), playback.Options{TickInterval: 5 * time.Millisecond})
	f.r = New(d, Config{
		Prefs:     store,
		Titles:    f.titles,
		Clipboard: f.clip,
	})
	t.Cleanup(func() { _ = f.r.Close() })
	return f
}

func (f *fixture) playing() bool { return f.out.State() == audio.StatePlaying }

func TestStartGeneratesTitle(t *testing.T) {
	f := newFixture(t, prefs.Defaults())

	if err := f.r.Start(threeTakes); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first take", f.playing)
	waitFor(t, "title", func() bool { return f.r.Snapshot().Title != "" })

	s := f.r.Snapshot()
	if s.Title != "세 개의 테이크" {
		t.Errorf("title = %q", s.Title)
	}
	if len(s.Takes) != 3 || s.Text != threeTakes {
		t.Errorf("snapshot takes = %d text = %q", len(s.Takes), s.Text)
	}
	if s.Voice.Name != "책뚫남" {
		t.Errorf("voice = %s, want default", s.Voice.Name)
	}

	// Restarting the same text keeps the title.
	if err := f.r.JumpTo(2); err != nil {
		t.Fatal(err)
	}
	if n := f.titles.count(); n != 1 {
		t.Errorf("title generated %d times, want 1", n)
	}
}

func TestStartPresetSkipsTitleGeneration(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	m, _ := catalog.Default().Material(catalog.KindEssay)

	if err := f.r.Start(m.Texts[0]); err != nil {
		t.Fatal(err)
	}
	if got := f.r.Snapshot().Title; got != m.Name {
		t.Errorf("title = %q, want %q", got, m.Name)
	}
	if f.titles.count() != 0 {
		t.Error("preset text should not be sent for a title")
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	f.r.SetText(threeTakes)

	if err := f.r.Toggle(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback", f.playing)

	if err := f.r.Toggle(); err != nil {
		t.Fatal(err)
	}
	if s := f.r.Snapshot(); !s.Paused {
		t.Errorf("state = %v, want paused", s.State)
	}

	if err := f.r.Toggle(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "resume", f.playing)
}

func TestToggleWithoutTextDoesNothing(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	if err := f.r.Toggle(); err != nil {
		t.Fatal(err)
	}
	if f.r.Snapshot().State != playback.StateIdle {
		t.Error("toggle without text left idle")
	}
}

func TestChangeVoiceRestartsAtCurrentTake(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	cat := catalog.Default()
	target, _ := cat.Voice("이석원")

	if err := f.r.Start(threeTakes); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first take", f.playing)
	f.out.Finish()
	waitFor(t, "second take", func() bool { return f.playing() && f.r.Snapshot().CurrentTake == 1 })

	if err := f.r.ChangeVoice(target.Name); err != nil {
		t.Fatalf("ChangeVoice() error = %v", err)
	}
	waitFor(t, "restart with new voice", func() bool {
		s := f.r.Snapshot()
		return f.playing() && s.VoiceID == target.ID
	})

	if s := f.r.Snapshot(); s.CurrentTake != 1 {
		t.Errorf("restarted at take %d, want 1", s.CurrentTake)
	}
	if got := f.store.Get().Voice; got != target.Name {
		t.Errorf("stored voice = %s", got)
	}

	var found bool
	for _, c := range f.synth.Calls() {
		if c.Index == 1 && c.VoiceID == target.ID {
			found = true
		}
	}
	if !found {
		t.Error("take 1 was not synthesized with the new voice")
	}
}

func TestChangeVoiceIdle(t *testing.T) {
	f := newFixture(t, prefs.Defaults())

	if err := f.r.ChangeVoice("릭 루빈"); err != nil {
		t.Fatal(err)
	}
	if f.r.Snapshot().State != playback.StateIdle {
		t.Error("changing voice while idle should not start reading")
	}
	if f.synth.CallCount() != 0 {
		t.Error("changing voice while idle should not synthesize")
	}

	if err := f.r.ChangeVoice("nobody"); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("ChangeVoice(nobody) error = %v, want ErrUnknownVoice", err)
	}
}

func TestSetCustomVoice(t *testing.T) {
	f := newFixture(t, prefs.Defaults())

	err := f.r.SetCustomVoice("too short")
	if ttypes.KindOf(err) != ttypes.KindInvalidVoiceID {
		t.Fatalf("SetCustomVoice(invalid) error = %v", err)
	}
	if f.store.Get().CustomVoiceID != "" {
		t.Error("invalid id was stored")
	}

	for _, id := range []string{" " + customID, customID + "\n", customID[:11] + " " + customID[12:]} {
		if err := f.r.SetCustomVoice(id); ttypes.KindOf(err) != ttypes.KindInvalidVoiceID {
			t.Errorf("SetCustomVoice(%q) error = %v, want invalid voice id", id, err)
		}
	}
	if f.store.Get().CustomVoiceID != "" {
		t.Error("id with whitespace was stored")
	}

	if err := f.r.SetCustomVoice(customID); err != nil {
		t.Fatalf("SetCustomVoice() error = %v", err)
	}
	v := f.r.Snapshot().Voice
	if !v.Custom || v.ID != customID || v.Name != catalog.CustomVoiceName {
		t.Errorf("voice = %+v", v)
	}
	if f.store.Get().CustomVoiceID != customID {
		t.Error("custom id was not stored")
	}
}

func TestFirstTakeFailureOpensVoicePicker(t *testing.T) {
	p := prefs.Defaults()
	p.Voice = "이석원"
	p.CustomVoiceID = customID
	f := newFixture(t, p)

	if v := f.r.Snapshot().Voice; !v.Custom {
		t.Fatalf("stored custom voice not restored: %+v", v)
	}

	var mu sync.Mutex
	var got []error
	f.r.OnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	})

	f.synth.FailTake(0, errors.New("voice not found"))
	if err := f.r.Start(threeTakes); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "voice picker", func() bool { return f.r.Snapshot().VoicePickerOpen })
	waitFor(t, "error report", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})

	s := f.r.Snapshot()
	if s.Voice.Custom || s.Voice.Name != "이석원" {
		t.Errorf("voice after failure = %+v, want stored catalog voice", s.Voice)
	}
	if f.store.Get().CustomVoiceID != "" {
		t.Error("custom voice was not cleared")
	}
	if s.State != playback.StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || ttypes.KindOf(got[0]) != ttypes.KindSynthesisFailed {
		t.Errorf("errors = %v", got)
	}
	if msg := ttypes.UserMessage(ttypes.KindOf(got[0])); strings.Contains(msg, "voice not found") {
		t.Errorf("user message leaks transport error: %q", msg)
	}
}

func TestRandomText(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	f.r.cfg.Rand = &fixedRand{}

	p, err := f.r.RandomText()
	if err != nil {
		t.Fatal(err)
	}
	s := f.r.Snapshot()
	if s.Text != p.Text || s.Title != p.Material.Name {
		t.Errorf("snapshot text/title = %q / %q", s.Text, s.Title)
	}
	if s.Voice != p.Voice || f.store.Get().Voice != p.Voice.Name {
		t.Errorf("voice = %+v, stored %s, want %+v", s.Voice, f.store.Get().Voice, p.Voice)
	}

	next, err := f.r.RandomText()
	if err != nil {
		t.Fatal(err)
	}
	if next.Text == p.Text {
		t.Error("RandomText() repeated the current text")
	}
}

// fixedRand always picks the first candidate.
type fixedRand struct{}

func (fixedRand) IntN(int) int { return 0 }

func TestPaste(t *testing.T) {
	t.Run("text replaces input", func(t *testing.T) {
		f := newFixture(t, prefs.Defaults())
		f.clip.text = "  붙여 넣은 글.  "

		res, err := f.r.Paste()
		if err != nil {
			t.Fatal(err)
		}
		if res.Prompt || res.Text != "붙여 넣은 글." {
			t.Errorf("Paste() = %+v", res)
		}
		if f.r.Snapshot().Text != "붙여 넣은 글." {
			t.Error("input was not replaced")
		}
	})

	t.Run("url becomes prompt", func(t *testing.T) {
		f := newFixture(t, prefs.Defaults())
		f.clip.text = "https://example.com/article"

		res, err := f.r.Paste()
		if err != nil {
			t.Fatal(err)
		}
		if !res.Prompt {
			t.Errorf("Paste() = %+v, want prompt", res)
		}
		if !strings.HasPrefix(f.clip.written, "https://example.com/article\n\n위 내용을") {
			t.Errorf("clipboard = %q", f.clip.written)
		}
		if f.r.Snapshot().Text != "" {
			t.Error("url should not become input")
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t, prefs.Defaults())
		f.clip.readErr = errors.New("no xclip")

		_, err := f.r.Paste()
		if !errors.Is(err, ttypes.ErrClipboardUnavailable) {
			t.Errorf("Paste() error = %v, want ErrClipboardUnavailable", err)
		}
	})
}

func TestSetTextStopsSession(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	if err := f.r.Start(threeTakes); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback", f.playing)

	f.r.SetText("Something else.")
	s := f.r.Snapshot()
	if s.State != playback.StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if s.Title != "" {
		t.Errorf("title %q carried over to new text", s.Title)
	}
}

func TestNextPrevious(t *testing.T) {
	f := newFixture(t, prefs.Defaults())
	if err := f.r.Start(threeTakes); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback", f.playing)

	if err := f.r.Next(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "take 1", func() bool { return f.playing() && f.r.Snapshot().CurrentTake == 1 })

	if err := f.r.Previous(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "take 0", func() bool { return f.playing() && f.r.Snapshot().CurrentTake == 0 })

	if err := f.r.JumpTo(7); !errors.Is(err, playback.ErrNoSuchTake) {
		t.Errorf("JumpTo(7) error = %v", err)
	}
}

// Package reader runs reading sessions: it segments text, picks voices,
// names the reading and hands the takes to the playback driver.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/prefs"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/title"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// rewritePrompt turns a pasted link into a request for book-like prose.
const rewritePrompt = "%s\n\n위 내용을 책의 문장으로 활용하게 충분한 분량으로 재구성 해줘. " +
	"해당 콘텐츠에 맞는 문체로, 문장의 나열로, 표나 카테고리 구분을 짓지 않고, 소제목도 필요없어. " +
	"가능하다면 여러 문단으로 구성해줘. 만약 댓글이 있다면 댓글내용도 요약해서 마지막에 문장 하나로 구성해줘. " +
	"내용 앞뒤에 답변도 절대 달지 말아줘."

// ErrUnknownVoice is returned for a voice name missing from the catalog.
var ErrUnknownVoice = errors.New("unknown voice")

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Config wires a Reader.
type Config struct {
	Catalog       *catalog.Catalog
	Prefs         *prefs.Store    // Optional; without it choices are not persisted
	Titles        title.Generator // Optional; without it readings use the fallback title
	Clipboard     Clipboard       // Defaults to the system clipboard
	Rand          catalog.Intn    // Defaults to math/rand
	MaxTakeLength int             // Defaults to take.DefaultMaxLength
	Logger        *log.Logger
}

// Snapshot is everything a view needs to draw the reader.
type Snapshot struct {
	playback.Snapshot
	Text            string
	Title           string
	TitlePending    bool
	Voice           catalog.Voice
	VoicePickerOpen bool
}

// PasteResult describes what Paste did.
type PasteResult struct {
	Text   string // New input text, empty when a prompt was produced
	Prompt bool   // A URL was turned into a rewrite prompt on the clipboard
}

// Reader is the session orchestrator.
type Reader struct {
	driver *playback.Driver
	cfg    Config
	logger *log.Logger

	mu         sync.Mutex
	text       string
	takes      []take.Take
	title      string
	titleFor   string // Text the title belongs to
	titleSeq   uint64
	cancel     context.CancelFunc
	voice      catalog.Voice
	pickerOpen bool

	listenMu sync.Mutex
	onChange []func(Snapshot)
	onError  []func(error)

	emitMu  sync.Mutex
	emitted uint64 // Seq of the last delivered snapshot
}

// New creates a Reader around driver. The initial voice comes from the
// stored preferences.
func New(driver *playback.Driver, cfg Config) *Reader {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Clipboard == nil {
		cfg.Clipboard = systemClipboard{}
	}
	if cfg.MaxTakeLength <= 0 {
		cfg.MaxTakeLength = take.DefaultMaxLength
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	r := &Reader{
		driver: driver,
		cfg:    cfg,
		logger: cfg.Logger.WithPrefix("reader"),
		voice:  cfg.Catalog.DefaultVoice(),
	}
	if cfg.Prefs != nil {
		r.voice = r.storedVoice(cfg.Prefs.Get())
	}

	driver.OnChange(func(s playback.Snapshot) { r.emit(s) })
	driver.OnError(r.failed)
	return r
}

func (r *Reader) storedVoice(p prefs.Prefs) catalog.Voice {
	if p.CustomVoiceID != "" {
		if v, err := catalog.CustomVoice(p.CustomVoiceID); err == nil {
			return v
		}
		r.logger.Warn("ignoring stored custom voice", "id", p.CustomVoiceID)
	}
	if v, ok := r.cfg.Catalog.Voice(p.Voice); ok {
		return v
	}
	return r.cfg.Catalog.DefaultVoice()
}

// OnChange registers a listener for every visible change. Listeners run one
// at a time, newest snapshot last, and must not call back into the Reader.
func (r *Reader) OnChange(fn func(Snapshot)) {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// OnError registers a listener for session failures.
func (r *Reader) OnError(fn func(error)) {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()
	r.onError = append(r.onError, fn)
}

// SetText replaces the input. Any running session is stopped.
func (r *Reader) SetText(text string) {
	r.mu.Lock()
	changed := text != r.text
	if changed {
		r.text = text
		r.takes = nil
	}
	r.mu.Unlock()

	if changed {
		r.driver.Stop()
	}
}

// Start reads text from the first take. The title is generated in the
// background unless text is a preset.
func (r *Reader) Start(text string) error {
	return r.startAt(text, 0)
}

func (r *Reader) startAt(text string, n int) error {
	r.mu.Lock()
	if text != r.text || r.takes == nil {
		r.text = text
		r.takes = take.Segment(text, r.cfg.MaxTakeLength)
	}
	takes, voice := r.takes, r.voice
	if len(takes) > 0 && (n < 0 || n >= len(takes)) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", playback.ErrNoSuchTake, n)
	}
	r.nameLocked(text)
	r.mu.Unlock()

	r.logger.Debug("starting", "takes", len(takes), "at", n, "voice", voice.Name)
	return r.driver.Start(takes, n, voice.ID)
}

// nameLocked resolves the title for text, starting generation if needed.
func (r *Reader) nameLocked(text string) {
	if text == r.titleFor && (r.title != "" || r.cancel != nil) {
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.titleSeq++
	r.titleFor = text
	r.title = ""

	if m, ok := r.cfg.Catalog.MaterialFor(text); ok {
		r.title = m.Name
		return
	}
	if r.cfg.Titles == nil || strings.TrimSpace(text) == "" {
		r.title = ttypes.FallbackTitle
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.generateTitle(ctx, r.titleSeq, text)
}

func (r *Reader) generateTitle(ctx context.Context, seq uint64, text string) {
	t, err := title.Resolve(ctx, r.cfg.Titles, text)
	if ttypes.IsCancelled(err) {
		return
	}
	if err != nil {
		r.logger.Warn("title generation failed", "err", err)
	}

	r.mu.Lock()
	if seq != r.titleSeq {
		r.mu.Unlock()
		return
	}
	r.title = t
	r.cancel = nil
	r.mu.Unlock()

	r.emit(r.driver.Snapshot())
}

// Toggle pauses, resumes, or starts reading the current text.
func (r *Reader) Toggle() error {
	if r.driver.Toggle() {
		return nil
	}
	r.mu.Lock()
	text := r.text
	r.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return r.Start(text)
}

// JumpTo starts reading at take n.
func (r *Reader) JumpTo(n int) error {
	r.mu.Lock()
	text := r.text
	r.mu.Unlock()
	return r.startAt(text, n)
}

// Next jumps to the take after the current one.
func (r *Reader) Next() error {
	s := r.driver.Snapshot()
	if s.CurrentTake+1 >= len(s.Takes) {
		return nil
	}
	return r.JumpTo(s.CurrentTake + 1)
}

// Previous jumps to the take before the current one.
func (r *Reader) Previous() error {
	s := r.driver.Snapshot()
	if len(s.Takes) == 0 {
		return nil
	}
	return r.JumpTo(max(s.CurrentTake-1, 0))
}

// Stop ends the session.
func (r *Reader) Stop() {
	r.driver.Stop()
}

// ChangeVoice switches to a catalog voice, persists it and, when a session
// is running, restarts it from the current take.
func (r *Reader) ChangeVoice(name string) error {
	v, ok := r.cfg.Catalog.Voice(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, name)
	}
	if r.cfg.Prefs != nil {
		if err := r.cfg.Prefs.SetVoice(v.Name); err != nil {
			r.logger.Warn("saving voice", "err", err)
		}
	}
	return r.useVoice(v)
}

// SetCustomVoice validates id and switches to it. It fails synchronously
// with an InvalidVoiceID error.
func (r *Reader) SetCustomVoice(id string) error {
	v, err := catalog.CustomVoice(id)
	if err != nil {
		return err
	}
	if r.cfg.Prefs != nil {
		if err := r.cfg.Prefs.SetCustomVoice(v.ID); err != nil {
			r.logger.Warn("saving custom voice", "err", err)
		}
	}
	return r.useVoice(v)
}

func (r *Reader) useVoice(v catalog.Voice) error {
	r.mu.Lock()
	r.voice = v
	r.pickerOpen = false
	r.mu.Unlock()

	s := r.driver.Snapshot()
	if !s.State.Active() {
		r.emit(s)
		return nil
	}
	r.logger.Debug("voice changed mid-session", "voice", v.Name, "take", s.CurrentTake)
	return r.driver.Start(s.Takes, s.CurrentTake, v.ID)
}

// OpenVoicePicker marks the voice picker as open or closed.
func (r *Reader) OpenVoicePicker(open bool) {
	r.mu.Lock()
	r.pickerOpen = open
	r.mu.Unlock()
	r.emit(r.driver.Snapshot())
}

// RandomText reads a random preset text other than the current one with
// its material's voice.
func (r *Reader) RandomText() (catalog.Pick, error) {
	r.mu.Lock()
	current := r.text
	r.mu.Unlock()

	p, ok := r.cfg.Catalog.RandomText(current, r.cfg.Rand)
	if !ok {
		return catalog.Pick{}, errors.New("no preset texts")
	}

	if r.cfg.Prefs != nil {
		if err := r.cfg.Prefs.SetVoice(p.Voice.Name); err != nil {
			r.logger.Warn("saving voice", "err", err)
		}
	}
	r.mu.Lock()
	r.voice = p.Voice
	r.pickerOpen = false
	r.mu.Unlock()

	r.logger.Debug("random text", "material", p.Material.Kind, "voice", p.Voice.Name)
	return p, r.Start(p.Text)
}

// Paste reads the clipboard. Plain text replaces the input. A URL is
// turned into a rewrite prompt that is written back to the clipboard.
func (r *Reader) Paste() (PasteResult, error) {
	const op = "paste"

	text, err := r.cfg.Clipboard.ReadAll()
	if err != nil {
		return PasteResult{}, ttypes.NewError(ttypes.KindClipboardUnavailable, op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return PasteResult{}, ttypes.NewError(ttypes.KindClipboardUnavailable, op, errors.New("clipboard is empty"))
	}

	if source.IsURL(text) {
		if err := r.cfg.Clipboard.WriteAll(fmt.Sprintf(rewritePrompt, text)); err != nil {
			return PasteResult{}, ttypes.NewError(ttypes.KindClipboardUnavailable, op, err)
		}
		return PasteResult{Prompt: true}, nil
	}

	r.SetText(text)
	return PasteResult{Text: text}, nil
}

// Snapshot returns the current view.
func (r *Reader) Snapshot() Snapshot {
	return r.snapshot(r.driver.Snapshot())
}

func (r *Reader) snapshot(s playback.Snapshot) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.title
	if r.titleFor != r.text {
		t = ""
	}
	return Snapshot{
		Snapshot:        s,
		Text:            r.text,
		Title:           t,
		TitlePending:    r.cancel != nil && r.titleFor == r.text,
		Voice:           r.voice,
		VoicePickerOpen: r.pickerOpen,
	}
}

// Close stops everything and releases the driver.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.titleSeq++
	r.mu.Unlock()
	return r.driver.Close()
}

// failed handles a session failure reported by the driver.
func (r *Reader) failed(err error) {
	var f *playback.Failure
	if errors.As(err, &f) && f.First && f.Kind() == ttypes.KindSynthesisFailed {
		r.mu.Lock()
		custom := r.voice.Custom
		r.mu.Unlock()

		fallback := r.cfg.Catalog.DefaultVoice()
		if r.cfg.Prefs != nil {
			if custom {
				if err := r.cfg.Prefs.SetCustomVoice(""); err != nil {
					r.logger.Warn("clearing custom voice", "err", err)
				}
			}
			fallback = r.storedVoice(r.cfg.Prefs.Get())
		}

		r.mu.Lock()
		if custom {
			r.voice = fallback
		}
		r.pickerOpen = true
		r.mu.Unlock()
		r.logger.Info("first take failed, asking for another voice", "custom", custom)
	}

	r.listenMu.Lock()
	listeners := append([]func(error){}, r.onError...)
	r.listenMu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
	r.emit(r.driver.Snapshot())
}

// emit hands s to the change listeners unless a newer snapshot already
// went out.
func (r *Reader) emit(s playback.Snapshot) {
	r.listenMu.Lock()
	listeners := append([]func(Snapshot){}, r.onChange...)
	r.listenMu.Unlock()
	if len(listeners) == 0 {
		return
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if s.Seq < r.emitted {
		return
	}
	r.emitted = s.Seq

	snap := r.snapshot(s)
	for _, fn := range listeners {
		fn(snap)
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// headless reads a text to the end without a UI, logging a line per take.
type headless struct {
	reader *reader.Reader
	logger *log.Logger

	mu    sync.Mutex
	take  int
	title string
	done  chan error
	once  sync.Once
}

func newHeadless(r *reader.Reader, w io.Writer) *headless {
	h := &headless{
		reader: r,
		logger: log.NewWithOptions(w, log.Options{ReportTimestamp: true, Prefix: appName}),
		take:   -1,
		done:   make(chan error, 1),
	}
	r.OnChange(h.changed)
	r.OnError(h.failed)
	return h
}

func (h *headless) finish(err error) {
	h.once.Do(func() { h.done <- err })
}

func (h *headless) changed(s reader.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.Title != "" && s.Title != h.title {
		h.title = s.Title
		h.logger.Info("title", "title", s.Title)
	}
	if s.State == playback.StatePlaying && s.CurrentTake != h.take && s.CurrentTake < len(s.Takes) {
		h.take = s.CurrentTake
		t := s.Takes[s.CurrentTake]
		h.logger.Info(t.Name(), "of", len(s.Takes), "voice", s.Voice.Name, "text", t.Display)
	}
	if s.State == playback.StateEnded {
		h.logger.Info("finished", "takes", len(s.Takes))
		h.finish(nil)
	}
}

func (h *headless) failed(err error) {
	var f *playback.Failure
	if !errors.As(err, &f) {
		h.logger.Warn("reader", "error", err)
		return
	}
	h.logger.Error(ttypes.UserMessage(f.Kind()), "take", f.Take+1, "error", f.Err)
	h.finish(err)
}

// Run plays text and blocks until the last take ends, a take fails or
// ctx is done.
func (h *headless) Run(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return source.ErrEmpty
	}
	if err := h.reader.Start(text); err != nil {
		return err
	}

	select {
	case err := <-h.done:
		return err
	case <-ctx.Done():
		h.reader.Stop()
		h.logger.Info("stopped")
		return nil
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/prefetch"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/take"
)

const threeTakes = "First take.\n\nSecond one here.\n\nAnd the third."

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestReader(t *testing.T, s *synth.Mock) *reader.Reader {
	t.Helper()
	s.SetPerRune(time.Millisecond)
	d := playback.NewDriver(audio.NewRealtimeMockOutput(), prefetch.New(s, nil), playback.Options{
		InterTakeDelay: 5 * time.Millisecond,
		TickInterval:   5 * time.Millisecond,
	})
	r := reader.New(d, reader.Config{})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestHeadlessReadsToTheEnd(t *testing.T) {
	var out syncBuffer
	h := newHeadless(newTestReader(t, synth.NewMock()), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Run(ctx, threeTakes); err != nil {
		t.Fatalf("run: %v", err)
	}

	log := out.String()
	for _, want := range []string{"Take_1", "Take_2", "Take_3", "finished"} {
		if !strings.Contains(log, want) {
			t.Errorf("log is missing %q:\n%s", want, log)
		}
	}
}

func TestHeadlessStopsOnFailure(t *testing.T) {
	s := synth.NewMock()
	s.FailTake(0, errors.New("service down"))

	var out syncBuffer
	h := newHeadless(newTestReader(t, s), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := h.Run(ctx, threeTakes)
	var f *playback.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected a take failure, got %v", err)
	}
	if f.Take != 0 {
		t.Errorf("failed take = %d, want 0", f.Take)
	}
}

func TestHeadlessInterrupted(t *testing.T) {
	s := synth.NewMock()
	gate := make(chan struct{})
	s.SetGate(gate)
	defer close(gate)

	var out syncBuffer
	h := newHeadless(newTestReader(t, s), &out)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := h.Run(ctx, threeTakes); err != nil {
		t.Fatalf("interrupted run returned %v", err)
	}
	if !strings.Contains(out.String(), "stopped") {
		t.Errorf("expected a stop line, got:\n%s", out.String())
	}
}

func TestHeadlessEmptyText(t *testing.T) {
	h := newHeadless(newTestReader(t, synth.NewMock()), &syncBuffer{})
	if err := h.Run(context.Background(), "   "); err == nil {
		t.Error("expected an error for blank text")
	}
}

func TestPrintTakes(t *testing.T) {
	var b bytes.Buffer
	if err := printTakes(&b, take.Segment(threeTakes, take.DefaultMaxLength), false); err != nil {
		t.Fatal(err)
	}
	got := ansi.Strip(b.String())

	want := "Take_1  11 chars  2 words\nFirst take.\n\n" +
		"Take_2  16 chars  3 words\nSecond one here.\n\n" +
		"Take_3  14 chars  3 words\nAnd the third.\n"
	if got != want {
		t.Errorf("printTakes:\n%s\nwant:\n%s", got, want)
	}
}

func TestVoicesMarkdown(t *testing.T) {
	cat := catalog.Default()

	md := voicesMarkdown(cat, "")
	for _, v := range cat.Voices {
		if !strings.Contains(md, v.ID) {
			t.Errorf("voice %s missing", v.Name)
		}
	}
	if strings.Count(md, "★") != 1 {
		t.Errorf("expected exactly one default marker:\n%s", md)
	}

	md = voicesMarkdown(cat, "루빈")
	rows := strings.Split(strings.TrimSpace(md), "\n")
	if len(rows) < 3 || !strings.Contains(rows[2], "릭 루빈") {
		t.Errorf("expected 릭 루빈 first:\n%s", md)
	}
}

func TestMaterialsMarkdown(t *testing.T) {
	cat := catalog.Default()
	md := materialsMarkdown(cat)
	for _, m := range cat.Materials {
		if !strings.Contains(md, "## "+m.Name) {
			t.Errorf("material %s missing", m.Kind)
		}
	}
	if !strings.Contains(md, "voice: 릭 루빈") {
		t.Errorf("fixed voice not shown:\n%s", md)
	}
}

package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/dgnsrekt/readaloud/internal/take"
)

const threeTakes = "First take.\n\nSecond one here.\n\nAnd the third."

func TestRenderTakesStartLine(t *testing.T) {
	takes := take.Segment(threeTakes, take.DefaultMaxLength)
	if len(takes) != 3 {
		t.Fatalf("expected 3 takes, got %d", len(takes))
	}

	tests := []struct {
		name    string
		view    takeView
		current int
		want    int
	}{
		{"first", takeView{Width: 80}, 0, 0},
		{"second", takeView{Width: 80}, 1, 2},
		{"third", takeView{Width: 80}, 2, 4},
		{"with labels", takeView{Width: 80, Numbers: true}, 2, 6},
		{"double spaced", takeView{Width: 80, LineSpacing: 1}, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.view
			v.Takes = takes
			v.Current = tt.current
			v.Word = -1
			v.Generating = -1

			out, start := renderTakes(v, "")
			out = ansi.Strip(out)
			if start != tt.want {
				t.Errorf("start line = %d, want %d", start, tt.want)
			}
			lines := strings.Split(out, "\n")
			if start >= len(lines) {
				t.Fatalf("start line %d beyond %d lines", start, len(lines))
			}
			if tt.view.Numbers {
				if !strings.Contains(lines[start], takes[tt.current].Name()) {
					t.Errorf("line %d = %q, want label %q", start, lines[start], takes[tt.current].Name())
				}
				return
			}
			if !strings.Contains(lines[start], strings.Fields(takes[tt.current].Display)[0]) {
				t.Errorf("line %d = %q does not start take %d", start, lines[start], tt.current)
			}
		})
	}
}

func TestRenderTakesWrapsAndIndents(t *testing.T) {
	takes := take.Segment("one two three four five six seven eight nine ten", take.DefaultMaxLength)
	out, _ := renderTakes(takeView{
		Takes:      takes,
		Current:    -1,
		Word:       -1,
		Generating: -1,
		Width:      12,
		Margin:     3,
	}, "")

	for _, line := range strings.Split(ansi.Strip(out), "\n") {
		if !strings.HasPrefix(line, "   ") {
			t.Errorf("line %q is not indented", line)
		}
		if w := len(strings.TrimSpace(line)); w > 12 {
			t.Errorf("line %q is %d wide", line, w)
		}
	}
}

func TestRenderTakesSpinner(t *testing.T) {
	takes := take.Segment(threeTakes, take.DefaultMaxLength)
	out, _ := renderTakes(takeView{
		Takes:      takes,
		Current:    1,
		Word:       -1,
		Generating: 1,
		Width:      80,
	}, "*")

	if strings.Count(out, "*") != 1 {
		t.Errorf("expected one spinner in %q", out)
	}
}

func TestHighlightWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "Second one here.", "Second one here."},
		{"collapses spaces", "a   b\tc", "a b c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := -1; i < 3; i++ {
				if got := ansi.Strip(highlightWords(tt.text, i)); got != tt.want {
					t.Errorf("highlightWords(%q, %d) = %q, want %q", tt.text, i, got, tt.want)
				}
			}
		})
	}
}

// Package prefs persists the reader's display and voice preferences.
package prefs

import (
	"math"
)

// Layout selects the per-layout value of a preference.
type Layout string

// Layouts
const (
	Mobile Layout = "mobile"
	PC     Layout = "pc"
)

// Bounds
const (
	MinFontSize   = 8
	MaxFontSize   = 64
	MinLineHeight = 1.0
	MaxLineHeight = 3.0
	LineStep      = 0.1
	MinWidth      = 0.3
	MaxWidth      = 0.9
	WidthStep     = 0.05
)

// ByLayout holds one value per layout.
type ByLayout[T int | float64] struct {
	Mobile T `yaml:"mobile"`
	PC     T `yaml:"pc"`
}

// Get returns the value for l. Anything but PC reads the mobile value.
func (b ByLayout[T]) Get(l Layout) T {
	if l == PC {
		return b.PC
	}
	return b.Mobile
}

// Set stores v for l.
func (b *ByLayout[T]) Set(l Layout, v T) {
	if l == PC {
		b.PC = v
		return
	}
	b.Mobile = v
}

// Prefs is the stored preference record.
type Prefs struct {
	Voice         string            `yaml:"voice"`
	CustomVoiceID string            `yaml:"custom_voice_id,omitempty"`
	Font          string            `yaml:"font"`
	FontSize      ByLayout[int]     `yaml:"font_size"`
	LineHeight    ByLayout[float64] `yaml:"line_height"`
	Width         ByLayout[float64] `yaml:"width"`
	Dark          bool              `yaml:"dark"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{
		Voice:      "책뚫남",
		Font:       "var(--font-mysteria)",
		FontSize:   ByLayout[int]{Mobile: 15, PC: 15},
		LineHeight: ByLayout[float64]{Mobile: 1.7, PC: 1.7},
		Width:      ByLayout[float64]{Mobile: 0.8, PC: 0.45},
	}
}

// Clamp brings every value into its allowed range.
func (p Prefs) Clamp() Prefs {
	d := Defaults()
	if p.Voice == "" {
		p.Voice = d.Voice
	}
	if p.Font == "" {
		p.Font = d.Font
	}
	for _, l := range []Layout{Mobile, PC} {
		p.FontSize.Set(l, clampInt(p.FontSize.Get(l), d.FontSize.Get(l), MinFontSize, MaxFontSize))
		p.LineHeight.Set(l, clampStep(p.LineHeight.Get(l), d.LineHeight.Get(l), MinLineHeight, MaxLineHeight, LineStep))
		p.Width.Set(l, clampStep(p.Width.Get(l), d.Width.Get(l), MinWidth, MaxWidth, WidthStep))
	}
	return p
}

// zero means unset
func clampInt(v, def, lo, hi int) int {
	if v == 0 {
		return def
	}
	return min(max(v, lo), hi)
}

func clampStep(v, def, lo, hi, step float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return def
	}
	v = math.Round(v/step) * step
	v = min(max(v, lo), hi)
	// Keep two decimals so the file stays readable.
	return math.Round(v*100) / 100
}

// AdjustFontSize moves the font size of l by delta.
func (p Prefs) AdjustFontSize(l Layout, delta int) Prefs {
	p.FontSize.Set(l, min(max(p.FontSize.Get(l)+delta, MinFontSize), MaxFontSize))
	return p
}

// AdjustLineHeight moves the line height of l by steps of LineStep.
func (p Prefs) AdjustLineHeight(l Layout, steps int) Prefs {
	p.LineHeight.Set(l, clampStep(p.LineHeight.Get(l)+float64(steps)*LineStep, MinLineHeight, MinLineHeight, MaxLineHeight, LineStep))
	return p
}

// AdjustWidth moves the width of l by steps of WidthStep.
func (p Prefs) AdjustWidth(l Layout, steps int) Prefs {
	p.Width.Set(l, clampStep(p.Width.Get(l)+float64(steps)*WidthStep, MinWidth, MinWidth, MaxWidth, WidthStep))
	return p
}

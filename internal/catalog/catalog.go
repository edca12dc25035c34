// Package catalog holds the voices a reading can use and the preset
// materials offered by the random-text action.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

//go:embed catalog.yml
var defaultCatalog []byte

// CustomVoiceName is shown for a voice the user entered by id.
const CustomVoiceName = "내가 좋아하는 목소리"

// VoiceIDLength is the exact length of a voice id.
const VoiceIDLength = 22

// Kind identifies a material.
type Kind string

// Materials
const (
	KindNews       Kind = "news"
	KindWayOfCode  Kind = "wayofcode"
	KindLiterature Kind = "literature"
	KindMusicCamp  Kind = "musiccamp"
	KindEssay      Kind = "essay"
	KindSonagi     Kind = "sonagi"
)

// Kinds lists every material kind in display order.
var Kinds = []Kind{KindNews, KindWayOfCode, KindLiterature, KindMusicCamp, KindEssay, KindSonagi}

func (k Kind) valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Voice is a speaker offered by the speech service.
type Voice struct {
	Name        string `yaml:"name"`
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	Custom      bool   `yaml:"-"`
}

// Material is a group of preset texts.
type Material struct {
	Kind  Kind     `yaml:"kind"`
	Name  string   `yaml:"name"`
	Voice string   `yaml:"voice,omitempty"` // Fixed voice name; empty picks one at random
	Texts []string `yaml:"texts"`
}

// Catalog is the full set of voices and materials.
type Catalog struct {
	DefaultName string     `yaml:"default_voice"`
	Voices      []Voice    `yaml:"voices"`
	Materials   []Material `yaml:"materials"`
}

// Intn is the randomness used for picks; *rand.Rand satisfies it.
type Intn interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. A missing file yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every reference in the catalog resolves.
func (c *Catalog) Validate() error {
	if len(c.Voices) == 0 {
		return errors.New("catalog has no voices")
	}
	seen := make(map[string]bool)
	for _, v := range c.Voices {
		if seen[v.Name] {
			return fmt.Errorf("duplicate voice %q", v.Name)
		}
		seen[v.Name] = true
		if err := ValidateVoiceID(v.ID); err != nil {
			return fmt.Errorf("voice %q: %w", v.Name, err)
		}
	}
	if !seen[c.DefaultName] {
		return fmt.Errorf("default voice %q is not in the catalog", c.DefaultName)
	}

	for _, m := range c.Materials {
		if !m.Kind.valid() {
			return fmt.Errorf("unknown material kind %q", m.Kind)
		}
		if m.Voice != "" && !seen[m.Voice] {
			return fmt.Errorf("material %s: unknown voice %q", m.Kind, m.Voice)
		}
	}
	return nil
}

// Voice looks a voice up by name.
func (c *Catalog) Voice(name string) (Voice, bool) {
	for _, v := range c.Voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}

// VoiceByID looks a voice up by id.
func (c *Catalog) VoiceByID(id string) (Voice, bool) {
	for _, v := range c.Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// DefaultVoice returns the default voice.
func (c *Catalog) DefaultVoice() Voice {
	v, _ := c.Voice(c.DefaultName)
	return v
}

// Material returns the material of a kind.
func (c *Catalog) Material(k Kind) (Material, bool) {
	for _, m := range c.Materials {
		if m.Kind == k {
			return m, true
		}
	}
	return Material{}, false
}

// MaterialFor returns the material containing text verbatim.
func (c *Catalog) MaterialFor(text string) (Material, bool) {
	for _, m := range c.Materials {
		for _, t := range m.Texts {
			if t == text {
				return m, true
			}
		}
	}
	return Material{}, false
}

// RandomVoice picks any catalog voice.
func (c *Catalog) RandomVoice(r Intn) Voice {
	if r == nil {
		r = globalRand{}
	}
	return c.Voices[r.IntN(len(c.Voices))]
}

// Pick is the outcome of RandomText.
type Pick struct {
	Text     string
	Material Material
	Voice    Voice
}

// RandomText picks a preset text different from current (unless it is the
// only one) and the voice to read it with: the material's fixed voice, or a
// random one.
func (c *Catalog) RandomText(current string, r Intn) (Pick, bool) {
	if r == nil {
		r = globalRand{}
	}

	type entry struct {
		text string
		m    Material
	}
	var all []entry
	for _, m := range c.Materials {
		for _, t := range m.Texts {
			all = append(all, entry{t, m})
		}
	}
	if len(all) == 0 {
		return Pick{}, false
	}

	var candidates []entry
	for _, e := range all {
		if e.text != current {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		candidates = all
	}

	e := candidates[r.IntN(len(candidates))]
	p := Pick{Text: e.text, Material: e.m}
	if v, ok := c.Voice(e.m.Voice); ok {
		p.Voice = v
	} else {
		p.Voice = c.RandomVoice(r)
	}
	return p, true
}

// ValidateVoiceID checks a custom voice id: exactly 22 characters, letters
// and digits only.
func ValidateVoiceID(id string) error {
	r := []rune(id)
	if len(r) != VoiceIDLength {
		return ttypes.NewError(ttypes.KindInvalidVoiceID, "validate voice id",
			fmt.Errorf("must be %d characters, got %d", VoiceIDLength, len(r)))
	}
	for _, c := range r {
		if unicode.IsSpace(c) {
			return ttypes.NewError(ttypes.KindInvalidVoiceID, "validate voice id",
				errors.New("must not contain whitespace"))
		}
		if c > unicode.MaxASCII || !(unicode.IsLetter(c) || unicode.IsDigit(c)) {
			return ttypes.NewError(ttypes.KindInvalidVoiceID, "validate voice id",
				errors.New("must contain only letters and digits"))
		}
	}
	return nil
}

// CustomVoice validates id and returns it as a voice.
func CustomVoice(id string) (Voice, error) {
	if err := ValidateVoiceID(id); err != nil {
		return Voice{}, err
	}
	return Voice{Name: CustomVoiceName, ID: id, Custom: true}, nil
}

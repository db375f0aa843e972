// Package symbolset reads color and symbol presets from YAML and applies
// them to maps. New documents start from such a preset.
package symbolset

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orimap/orimap/internal/document"
)

var (
	ErrUnknownColor  = errors.New("unknown color")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrUnknownType   = errors.New("unknown symbol type")
	ErrDuplicateName = errors.New("duplicate name")
)

//go:embed default.yaml
var defaultPreset []byte

// Set is a parsed preset. Lengths are in millimeters.
type Set struct {
	Name    string   `yaml:"name"`
	Colors  []Color  `yaml:"colors"`
	Symbols []Symbol `yaml:"symbols"`
}

// Color is given either as CMYK or as RGB components in [0, 1].
type Color struct {
	Name    string    `yaml:"name"`
	CMYK    []float64 `yaml:"cmyk,omitempty"`
	RGB     []float64 `yaml:"rgb,omitempty"`
	Opacity *float64  `yaml:"opacity,omitempty"`
}

// Symbol is a flat union over the symbol types. Colors and parts refer to
// names.
type Symbol struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Number      string `yaml:"number,omitempty"`
	Description string `yaml:"description,omitempty"`
	Helper      bool   `yaml:"helper,omitempty"`

	Color string `yaml:"color,omitempty"`

	// line
	Width float64   `yaml:"width,omitempty"`
	Dash  []float64 `yaml:"dash,omitempty"`

	// point
	InnerRadius float64 `yaml:"innerRadius,omitempty"`
	InnerColor  string  `yaml:"innerColor,omitempty"`
	OuterWidth  float64 `yaml:"outerWidth,omitempty"`
	OuterColor  string  `yaml:"outerColor,omitempty"`
	Rotatable   bool    `yaml:"rotatable,omitempty"`

	// text
	Font   string  `yaml:"font,omitempty"`
	Size   float64 `yaml:"size,omitempty"`
	Bold   bool    `yaml:"bold,omitempty"`
	Italic bool    `yaml:"italic,omitempty"`

	// combined
	Parts []string `yaml:"parts,omitempty"`
}

func Parse(r io.Reader) (*Set, error) {
	var s Set
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode symbol set: %w", err)
	}
	return &s, nil
}

func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol set: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Default returns the builtin preset.
func Default() *Set {
	var s Set
	if err := yaml.Unmarshal(defaultPreset, &s); err != nil {
		panic(fmt.Sprintf("builtin symbol set: %v", err))
	}
	return &s
}

// Apply appends the colors and symbols of s to m. Color references resolve
// against the preset first, then against the colors m already has. On
// error m is left unchanged.
func (s *Set) Apply(m *document.Map) error {
	colors := make(map[string]*document.Color)
	for i := range m.NumColors() {
		c := m.Color(i)
		colors[c.Name] = c
	}

	newColors := make([]*document.Color, 0, len(s.Colors))
	seen := make(map[string]bool)
	for _, c := range s.Colors {
		if seen[c.Name] {
			return fmt.Errorf("color %q: %w", c.Name, ErrDuplicateName)
		}
		seen[c.Name] = true
		col, err := c.build()
		if err != nil {
			return err
		}
		colors[c.Name] = col
		newColors = append(newColors, col)
	}

	symbols := make(map[string]document.Symbol)
	newSymbols := make([]document.Symbol, 0, len(s.Symbols))
	for _, def := range s.Symbols {
		if _, ok := symbols[def.Name]; ok {
			return fmt.Errorf("symbol %q: %w", def.Name, ErrDuplicateName)
		}
		sym, err := def.build(colors, symbols)
		if err != nil {
			return fmt.Errorf("symbol %q: %w", def.Name, err)
		}
		symbols[def.Name] = sym
		newSymbols = append(newSymbols, sym)
	}

	for _, c := range newColors {
		m.AddColor(c, m.NumColors())
	}
	for _, sym := range newSymbols {
		m.AddSymbol(sym, m.NumSymbols())
	}
	return nil
}

func (c Color) build() (*document.Color, error) {
	var col *document.Color
	switch {
	case len(c.CMYK) == 4:
		col = document.NewCMYKColor(c.Name, c.CMYK[0], c.CMYK[1], c.CMYK[2], c.CMYK[3])
	case len(c.RGB) == 3:
		col = document.NewRGBColor(c.Name, c.RGB[0], c.RGB[1], c.RGB[2])
	default:
		return nil, fmt.Errorf("color %q: need 4 cmyk or 3 rgb components", c.Name)
	}
	if c.Opacity != nil {
		col.Opacity = *c.Opacity
	}
	return col, nil
}

func (def Symbol) build(colors map[string]*document.Color, symbols map[string]document.Symbol) (document.Symbol, error) {
	color := func(name string) (*document.Color, error) {
		if name == "" {
			return nil, nil
		}
		c, ok := colors[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownColor, name)
		}
		return c, nil
	}

	var sym document.Symbol
	switch def.Type {
	case "point":
		inner, err := color(def.InnerColor)
		if err != nil {
			return nil, err
		}
		outer, err := color(def.OuterColor)
		if err != nil {
			return nil, err
		}
		p := document.NewPointSymbol(def.Name)
		p.InnerRadius = native(def.InnerRadius)
		p.InnerColor = inner
		p.OuterWidth = native(def.OuterWidth)
		p.OuterColor = outer
		p.Rotatable = def.Rotatable
		sym = p
	case "line":
		c, err := color(def.Color)
		if err != nil {
			return nil, err
		}
		l := document.NewLineSymbol(def.Name)
		l.Color = c
		l.LineWidth = native(def.Width)
		if len(def.Dash) == 2 {
			l.Dashed = true
			l.DashLength = native(def.Dash[0])
			l.BreakLength = native(def.Dash[1])
		}
		sym = l
	case "area":
		c, err := color(def.Color)
		if err != nil {
			return nil, err
		}
		a := document.NewAreaSymbol(def.Name)
		a.Color = c
		sym = a
	case "text":
		c, err := color(def.Color)
		if err != nil {
			return nil, err
		}
		t := document.NewTextSymbol(def.Name)
		t.Color = c
		if def.Font != "" {
			t.FontFamily = def.Font
		}
		if def.Size > 0 {
			t.FontSize = native(def.Size)
		}
		t.Bold = def.Bold
		t.Italic = def.Italic
		sym = t
	case "combined":
		parts := make([]document.Symbol, 0, len(def.Parts))
		for _, name := range def.Parts {
			part, ok := symbols[name]
			if !ok {
				return nil, fmt.Errorf("%w %q", ErrUnknownSymbol, name)
			}
			parts = append(parts, part)
		}
		sym = document.NewCombinedSymbol(def.Name, parts...)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, def.Type)
	}

	base := sym.Base()
	base.Number = def.Number
	base.Description = def.Description
	base.Helper = def.Helper
	return sym, nil
}

func native(mm float64) int64 { return int64(math.Round(mm * 1000)) }

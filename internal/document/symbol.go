package document

import (
	"math"

	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/typeid"
)

// SymbolType is a bit set so that combined symbols can report every type
// they contain.
type SymbolType int

const (
	NoSymbol    SymbolType = 0
	SymbolPoint SymbolType = 1 << (iota - 1)
	SymbolLine
	SymbolArea
	SymbolText
	SymbolCombined

	SymbolAll = SymbolPoint | SymbolLine | SymbolArea | SymbolText | SymbolCombined
)

func (t SymbolType) String() string {
	switch t {
	case NoSymbol:
		return "none"
	case SymbolPoint:
		return "point"
	case SymbolLine:
		return "line"
	case SymbolArea:
		return "area"
	case SymbolText:
		return "text"
	case SymbolCombined:
		return "combined"
	default:
		return "mixed"
	}
}

// Symbol defines how objects are drawn. The set of implementations is
// closed: *PointSymbol, *LineSymbol, *AreaSymbol, *TextSymbol and
// *CombinedSymbol.
type Symbol interface {
	Base() *SymbolBase
	Type() SymbolType
	// ContainedTypes includes the types of the parts of combined symbols.
	ContainedTypes() SymbolType
	ContainsColor(c *Color) bool
	Scale(factor float64)
	// Duplicate returns a deep copy with a fresh id. Parts of combined
	// symbols are shared, not copied.
	Duplicate() Symbol

	createRenderables(obj Object, parts []flatPart, out []*Renderable) []*Renderable
	// colorDeleted drops references to c and reports whether anything changed.
	colorDeleted(c *Color) bool
	// symbolChanged replaces references to old by replacement (which may be
	// nil) and reports whether anything changed.
	symbolChanged(old, replacement Symbol) bool
}

// SymbolBase holds the attributes shared by all symbol types.
type SymbolBase struct {
	ID          string
	Name        string
	Number      string
	Description string
	Hidden      bool
	Protected   bool
	Helper      bool
}

func newSymbolBase(name string) SymbolBase {
	return SymbolBase{ID: typeid.NewSymbolID(), Name: name}
}

func (b *SymbolBase) Base() *SymbolBase { return b }

func (b *SymbolBase) duplicateBase() SymbolBase {
	dup := *b
	dup.ID = typeid.NewSymbolID()
	return dup
}

// IsTypeCompatible reports whether obj's geometry can carry sym.
func IsTypeCompatible(sym Symbol, obj Object) bool {
	switch sym.Type() {
	case SymbolPoint:
		return obj.Type() == ObjectPoint
	case SymbolLine, SymbolArea, SymbolCombined:
		return obj.Type() == ObjectPath
	case SymbolText:
		return obj.Type() == ObjectText
	}
	return false
}

func scaleLength(v int64, factor float64) int64 {
	return int64(math.Round(float64(v) * factor))
}

func nativeToMM(v int64) float64 { return float64(v) / 1000 }

// PointSymbol draws a filled dot with an optional ring around it. Sizes are
// in 1/1000 mm.
type PointSymbol struct {
	SymbolBase
	InnerRadius int64
	InnerColor  *Color
	OuterWidth  int64
	OuterColor  *Color
	Rotatable   bool
}

func NewPointSymbol(name string) *PointSymbol {
	return &PointSymbol{SymbolBase: newSymbolBase(name)}
}

func (s *PointSymbol) Type() SymbolType           { return SymbolPoint }
func (s *PointSymbol) ContainedTypes() SymbolType { return SymbolPoint }

func (s *PointSymbol) ContainsColor(c *Color) bool {
	return c != nil && (s.InnerColor == c || s.OuterColor == c)
}

func (s *PointSymbol) Scale(factor float64) {
	s.InnerRadius = scaleLength(s.InnerRadius, factor)
	s.OuterWidth = scaleLength(s.OuterWidth, factor)
}

func (s *PointSymbol) Duplicate() Symbol {
	dup := *s
	dup.SymbolBase = s.duplicateBase()
	return &dup
}

// radius returns the outer radius in mm.
func (s *PointSymbol) radius() float64 {
	r := nativeToMM(s.InnerRadius)
	if s.OuterColor != nil {
		r += nativeToMM(s.OuterWidth)
	}
	return r
}

func (s *PointSymbol) createRenderables(obj Object, parts []flatPart, out []*Renderable) []*Renderable {
	if len(parts) == 0 || len(parts[0].points) == 0 {
		return out
	}
	center := parts[0].points[0]
	inner := nativeToMM(s.InnerRadius)
	if s.InnerColor != nil && s.InnerRadius > 0 {
		out = append(out, newDotRenderable(s.InnerColor, center, inner))
	}
	if s.OuterColor != nil && s.OuterWidth > 0 {
		width := nativeToMM(s.OuterWidth)
		out = append(out, newCircleRenderable(s.OuterColor, center, inner+width/2, width))
	}
	return out
}

func (s *PointSymbol) colorDeleted(c *Color) bool {
	changed := false
	if s.InnerColor == c {
		s.InnerColor = nil
		changed = true
	}
	if s.OuterColor == c {
		s.OuterColor = nil
		changed = true
	}
	return changed
}

func (s *PointSymbol) symbolChanged(old, replacement Symbol) bool { return false }

// LineSymbol strokes paths. Widths and dash lengths are in 1/1000 mm.
type LineSymbol struct {
	SymbolBase
	LineWidth   int64
	Color       *Color
	Dashed      bool
	DashLength  int64
	BreakLength int64
}

func NewLineSymbol(name string) *LineSymbol {
	return &LineSymbol{SymbolBase: newSymbolBase(name)}
}

func (s *LineSymbol) Type() SymbolType           { return SymbolLine }
func (s *LineSymbol) ContainedTypes() SymbolType { return SymbolLine }

func (s *LineSymbol) ContainsColor(c *Color) bool { return c != nil && s.Color == c }

func (s *LineSymbol) Scale(factor float64) {
	s.LineWidth = scaleLength(s.LineWidth, factor)
	s.DashLength = scaleLength(s.DashLength, factor)
	s.BreakLength = scaleLength(s.BreakLength, factor)
}

func (s *LineSymbol) Duplicate() Symbol {
	dup := *s
	dup.SymbolBase = s.duplicateBase()
	return &dup
}

func (s *LineSymbol) createRenderables(obj Object, parts []flatPart, out []*Renderable) []*Renderable {
	if s.Color == nil || s.LineWidth <= 0 {
		return out
	}
	width := nativeToMM(s.LineWidth)
	for _, part := range parts {
		if len(part.points) < 2 {
			continue
		}
		r := newLineRenderable(s.Color, part.points, width, part.closed)
		if s.Dashed {
			r.Dash = []float64{nativeToMM(s.DashLength), nativeToMM(s.BreakLength)}
		}
		out = append(out, r)
	}
	return out
}

func (s *LineSymbol) colorDeleted(c *Color) bool {
	if s.Color != c {
		return false
	}
	s.Color = nil
	return true
}

func (s *LineSymbol) symbolChanged(old, replacement Symbol) bool { return false }

// AreaSymbol fills closed paths. Holes use the even-odd rule.
type AreaSymbol struct {
	SymbolBase
	Color *Color
}

func NewAreaSymbol(name string) *AreaSymbol {
	return &AreaSymbol{SymbolBase: newSymbolBase(name)}
}

func (s *AreaSymbol) Type() SymbolType           { return SymbolArea }
func (s *AreaSymbol) ContainedTypes() SymbolType { return SymbolArea }

func (s *AreaSymbol) ContainsColor(c *Color) bool { return c != nil && s.Color == c }

func (s *AreaSymbol) Scale(float64) {}

func (s *AreaSymbol) Duplicate() Symbol {
	dup := *s
	dup.SymbolBase = s.duplicateBase()
	return &dup
}

func (s *AreaSymbol) createRenderables(obj Object, parts []flatPart, out []*Renderable) []*Renderable {
	if s.Color == nil {
		return out
	}
	rings := make([][]geom.MapCoordF, 0, len(parts))
	for _, part := range parts {
		if len(part.points) >= 3 {
			rings = append(rings, part.points)
		}
	}
	if len(rings) == 0 {
		return out
	}
	return append(out, newAreaRenderable(s.Color, rings))
}

func (s *AreaSymbol) colorDeleted(c *Color) bool {
	if s.Color != c {
		return false
	}
	s.Color = nil
	return true
}

func (s *AreaSymbol) symbolChanged(old, replacement Symbol) bool { return false }

// TextSymbol draws the text of text objects. FontSize is in 1/1000 mm.
type TextSymbol struct {
	SymbolBase
	FontFamily string
	FontSize   int64
	Bold       bool
	Italic     bool
	Color      *Color
}

func NewTextSymbol(name string) *TextSymbol {
	return &TextSymbol{SymbolBase: newSymbolBase(name), FontFamily: "Arial", FontSize: 4000}
}

func (s *TextSymbol) Type() SymbolType           { return SymbolText }
func (s *TextSymbol) ContainedTypes() SymbolType { return SymbolText }

func (s *TextSymbol) ContainsColor(c *Color) bool { return c != nil && s.Color == c }

func (s *TextSymbol) Scale(factor float64) {
	s.FontSize = scaleLength(s.FontSize, factor)
}

func (s *TextSymbol) Duplicate() Symbol {
	dup := *s
	dup.SymbolBase = s.duplicateBase()
	return &dup
}

func (s *TextSymbol) createRenderables(obj Object, parts []flatPart, out []*Renderable) []*Renderable {
	text, ok := obj.(*TextObject)
	if !ok || s.Color == nil || text.Text == "" || len(parts) == 0 || len(parts[0].points) == 0 {
		return out
	}
	return append(out, newTextRenderable(s, parts[0].points[0], text.Text, text.Rotation))
}

func (s *TextSymbol) colorDeleted(c *Color) bool {
	if s.Color != c {
		return false
	}
	s.Color = nil
	return true
}

func (s *TextSymbol) symbolChanged(old, replacement Symbol) bool { return false }

// CombinedSymbol draws an object with each of its parts in turn. Parts are
// references to other symbols of the map; a nil part is skipped.
type CombinedSymbol struct {
	SymbolBase
	Parts []Symbol
}

func NewCombinedSymbol(name string, parts ...Symbol) *CombinedSymbol {
	return &CombinedSymbol{SymbolBase: newSymbolBase(name), Parts: parts}
}

func (s *CombinedSymbol) Type() SymbolType { return SymbolCombined }

func (s *CombinedSymbol) ContainedTypes() SymbolType {
	t := SymbolCombined
	for _, p := range s.Parts {
		if p != nil {
			t |= p.ContainedTypes()
		}
	}
	return t
}

func (s *CombinedSymbol) ContainsColor(c *Color) bool {
	for _, p := range s.Parts {
		if p != nil && p.ContainsColor(c) {
			return true
		}
	}
	return false
}

// Scale is a no-op: the parts are map symbols and get scaled on their own.
func (s *CombinedSymbol) Scale(float64) {}

func (s *CombinedSymbol) Duplicate() Symbol {
	dup := *s
	dup.SymbolBase = s.duplicateBase()
	dup.Parts = append([]Symbol(nil), s.Parts...)
	return &dup
}

func (s *CombinedSymbol) createRenderables(obj Object, parts []flatPart, out []*Renderable) []*Renderable {
	for _, p := range s.Parts {
		if p != nil {
			out = p.createRenderables(obj, parts, out)
		}
	}
	return out
}

func (s *CombinedSymbol) colorDeleted(*Color) bool { return false }

func (s *CombinedSymbol) symbolChanged(old, replacement Symbol) bool {
	changed := false
	for i, p := range s.Parts {
		if p == old {
			s.Parts[i] = replacement
			changed = true
		}
	}
	return changed
}

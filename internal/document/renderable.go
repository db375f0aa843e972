package document

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/orimap/orimap/internal/geom"
)

type RenderableKind int

const (
	RenderDot RenderableKind = iota
	RenderCircle
	RenderLine
	RenderArea
	RenderText
)

func (k RenderableKind) String() string {
	switch k {
	case RenderDot:
		return "dot"
	case RenderCircle:
		return "circle"
	case RenderLine:
		return "line"
	case RenderArea:
		return "area"
	case RenderText:
		return "text"
	}
	return "unknown"
}

// Renderable is one cached drawing primitive of an object, in map
// coordinates (mm).
type Renderable struct {
	Kind  RenderableKind
	Color *Color

	// Parts holds the polyline of a line or the rings of an area.
	Parts  [][]geom.MapCoordF
	Closed bool
	Dash   []float64

	// Center is the dot/circle center or the text anchor.
	Center geom.MapCoordF
	Radius float64
	Width  float64

	Text       string
	FontFamily string
	FontSize   float64
	Bold       bool
	Italic     bool
	Rotation   float64

	Extent geom.Rect
}

func newDotRenderable(c *Color, center geom.MapCoordF, radius float64) *Renderable {
	return &Renderable{
		Kind:   RenderDot,
		Color:  c,
		Center: center,
		Radius: radius,
		Extent: geom.Rect{X: center.X - radius, Y: center.Y - radius, Width: 2 * radius, Height: 2 * radius},
	}
}

func newCircleRenderable(c *Color, center geom.MapCoordF, radius, width float64) *Renderable {
	outer := radius + width/2
	return &Renderable{
		Kind:   RenderCircle,
		Color:  c,
		Center: center,
		Radius: radius,
		Width:  width,
		Extent: geom.Rect{X: center.X - outer, Y: center.Y - outer, Width: 2 * outer, Height: 2 * outer},
	}
}

func newLineRenderable(c *Color, points []geom.MapCoordF, width float64, closed bool) *Renderable {
	return &Renderable{
		Kind:   RenderLine,
		Color:  c,
		Parts:  [][]geom.MapCoordF{points},
		Closed: closed,
		Width:  width,
		Extent: geom.BoundingRect(points).Adjusted(width / 2),
	}
}

func newAreaRenderable(c *Color, rings [][]geom.MapCoordF) *Renderable {
	extent := geom.Rect{}
	for _, ring := range rings {
		extent = extent.Union(geom.BoundingRect(ring))
	}
	return &Renderable{
		Kind:   RenderArea,
		Color:  c,
		Parts:  rings,
		Closed: true,
		Extent: extent,
	}
}

// newTextRenderable estimates the text box from the font size; the painter
// does the real layout. The box is centered on the anchor.
func newTextRenderable(s *TextSymbol, anchor geom.MapCoordF, text string, rotation float64) *Renderable {
	size := nativeToMM(s.FontSize)
	width := 0.6 * size * float64(utf8.RuneCountInString(text))
	box := geom.Rect{X: -width / 2, Y: -size / 2, Width: width, Height: size}
	extent := geom.Translate(anchor.X, anchor.Y).Multiply(geom.Rotate(rotation)).TransformRect(box)
	return &Renderable{
		Kind:       RenderText,
		Color:      s.Color,
		Center:     anchor,
		Text:       text,
		FontFamily: s.FontFamily,
		FontSize:   size,
		Bold:       s.Bold,
		Italic:     s.Italic,
		Rotation:   rotation,
		Extent:     extent,
	}
}

// DrawItem pairs a renderable with the object it belongs to.
type DrawItem struct {
	Object     Object
	Renderable *Renderable
}

type renderEntry struct {
	seq   uint64
	items []*Renderable
}

// RenderableContainer indexes the renderables of many objects and yields
// them in drawing order: descending color priority, then object order
// within the map (layer by layer), then insertion order.
type RenderableContainer struct {
	m       *Map
	entries map[Object]*renderEntry
	seq     uint64
}

func newRenderableContainer(m *Map) *RenderableContainer {
	return &RenderableContainer{m: m, entries: make(map[Object]*renderEntry)}
}

// InsertRenderablesOfObject stores the current renderables of obj,
// replacing any previously stored ones.
func (rc *RenderableContainer) InsertRenderablesOfObject(obj Object) {
	if e, ok := rc.entries[obj]; ok {
		e.items = obj.Renderables()
		return
	}
	rc.seq++
	rc.entries[obj] = &renderEntry{seq: rc.seq, items: obj.Renderables()}
}

// RemoveRenderablesOfObject drops the renderables of obj. With
// markAreaDirty the area they covered is reported to the map widgets.
func (rc *RenderableContainer) RemoveRenderablesOfObject(obj Object, markAreaDirty bool) {
	e, ok := rc.entries[obj]
	if !ok {
		return
	}
	delete(rc.entries, obj)
	if !markAreaDirty || rc.m == nil {
		return
	}
	area := geom.Rect{}
	for _, r := range e.items {
		area = area.Union(r.Extent)
	}
	if area.IsValid() {
		rc.m.SetObjectAreaDirty(area)
	}
}

func (rc *RenderableContainer) Clear() {
	clear(rc.entries)
}

func (rc *RenderableContainer) Contains(obj Object) bool {
	_, ok := rc.entries[obj]
	return ok
}

// NumObjects returns the number of objects with stored renderables.
func (rc *RenderableContainer) NumObjects() int { return len(rc.entries) }

// DrawOrder returns the renderables intersecting bbox in painter's order.
// Within a color priority, objects in the map draw in map order and
// objects outside it draw afterwards in insertion order. An invalid bbox
// selects everything. Helper symbols are skipped unless
// showHelper is set.
func (rc *RenderableContainer) DrawOrder(bbox geom.Rect, showHelper bool) []DrawItem {
	type ranked struct {
		item     DrawItem
		priority int
		detached bool
		seq      uint64
		index    int
	}
	var positions map[Object]int
	if rc.m != nil {
		positions = rc.m.objectPositions()
	}
	var all []ranked
	for obj, e := range rc.entries {
		seq, detached := e.seq, true
		if pos, ok := positions[obj]; ok {
			seq, detached = uint64(pos), false
		}
		if sym := obj.Symbol(); sym != nil && sym.Base().Helper && !showHelper {
			continue
		}
		for i, r := range e.items {
			if r.Color == nil {
				continue
			}
			if bbox.IsValid() && !bbox.Intersects(r.Extent) {
				continue
			}
			all = append(all, ranked{
				item:     DrawItem{Object: obj, Renderable: r},
				priority: r.Color.Priority,
				detached: detached,
				seq:      seq,
				index:    i,
			})
		}
	}
	slices.SortFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(b.priority, a.priority); c != 0 {
			return c
		}
		if a.detached != b.detached {
			if a.detached {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.seq, b.seq); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	out := make([]DrawItem, len(all))
	for i, r := range all {
		out[i] = r.item
	}
	return out
}

package document

import (
	"slices"

	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/typeid"
)

// ObjectType is also the type tag written in front of each object in the
// native layer record.
type ObjectType int

const (
	ObjectPoint ObjectType = 0
	ObjectPath  ObjectType = 1
	ObjectText  ObjectType = 4
)

func (t ObjectType) String() string {
	switch t {
	case ObjectPoint:
		return "point"
	case ObjectPath:
		return "path"
	case ObjectText:
		return "text"
	}
	return "unknown"
}

// Object is a map entity bound to one symbol. The set of implementations is
// closed: *PointObject, *PathObject and *TextObject.
//
// Renderables and extent are caches. After any mutation the object is dirty
// and Update must run before they are read.
type Object interface {
	ID() string
	Type() ObjectType
	Symbol() Symbol
	// SetSymbol assigns sym. Unless noChecks is set it refuses symbols whose
	// type does not fit the geometry and returns false.
	SetSymbol(sym Symbol, noChecks bool) bool
	// Map returns the owning map, nil while detached.
	Map() *Map
	Coords() []geom.MapCoord
	SetCoords(coords []geom.MapCoord)
	Extent() geom.Rect
	Renderables() []*Renderable
	IsDirty() bool
	SetOutputDirty()
	// Update regenerates renderables and extent when dirty or forced. With
	// removeOld the previous renderables are first taken out of the map's
	// container. Returns whether anything was regenerated.
	Update(force, removeOld bool) bool
	IsPointOnObject(p geom.MapCoordF, tolerance float64, extended bool) SymbolType
	IntersectsBox(r geom.Rect) bool
	Move(dx, dy int64)
	Scale(factor float64)
	// Duplicate returns a detached, dirty copy with the same id.
	Duplicate() Object
	// Equal compares type, symbol and geometry.
	Equal(other Object) bool

	base() *objectBase
}

// Reidentify gives obj a fresh id and returns it, for copies that become
// new objects of their own.
func Reidentify(obj Object) Object {
	obj.base().id = typeid.NewObjectID()
	return obj
}

// WithID sets the id of obj, e.g. when it is read back from a file, and
// returns it.
func WithID(obj Object, id string) Object {
	obj.base().id = id
	return obj
}

const curveSegments = 8

// flatPart is a polyline with curves already flattened.
type flatPart struct {
	points []geom.MapCoordF
	closed bool
}

type objectBase struct {
	id          string
	symbol      Symbol
	m           *Map
	coords      []geom.MapCoord
	extent      geom.Rect
	renderables []*Renderable
	dirty       bool
}

func newObjectBase(sym Symbol, coords []geom.MapCoord) objectBase {
	return objectBase{
		id:     typeid.NewObjectID(),
		symbol: sym,
		coords: slices.Clone(coords),
		dirty:  true,
	}
}

func (b *objectBase) base() *objectBase          { return b }
func (b *objectBase) ID() string                 { return b.id }
func (b *objectBase) Symbol() Symbol             { return b.symbol }
func (b *objectBase) Map() *Map                  { return b.m }
func (b *objectBase) Coords() []geom.MapCoord    { return slices.Clone(b.coords) }
func (b *objectBase) Extent() geom.Rect          { return b.extent }
func (b *objectBase) Renderables() []*Renderable { return b.renderables }
func (b *objectBase) IsDirty() bool              { return b.dirty }
func (b *objectBase) SetOutputDirty()            { b.dirty = true }
func (b *objectBase) setMap(m *Map)              { b.m = m }
func (b *objectBase) NumCoords() int             { return len(b.coords) }
func (b *objectBase) Coord(i int) geom.MapCoord  { return b.coords[i] }

func (b *objectBase) SetCoord(i int, c geom.MapCoord) {
	b.coords[i] = c
	b.dirty = true
}

func (b *objectBase) SetCoords(coords []geom.MapCoord) {
	b.coords = slices.Clone(coords)
	b.dirty = true
}

func (b *objectBase) Move(dx, dy int64) {
	for i, c := range b.coords {
		b.coords[i] = c.Moved(dx, dy)
	}
	b.dirty = true
}

func (b *objectBase) Scale(factor float64) {
	for i, c := range b.coords {
		b.coords[i] = c.Scaled(factor)
	}
	b.dirty = true
}

func (b *objectBase) setSymbol(self Object, sym Symbol, noChecks bool) bool {
	if !noChecks && (sym == nil || !IsTypeCompatible(sym, self)) {
		return false
	}
	b.symbol = sym
	b.dirty = true
	return true
}

func (b *objectBase) duplicate() objectBase {
	return objectBase{
		id:     b.id,
		symbol: b.symbol,
		coords: slices.Clone(b.coords),
		dirty:  true,
	}
}

func (b *objectBase) equalBase(o *objectBase) bool {
	return b.symbol == o.symbol && slices.Equal(b.coords, o.coords)
}

func (b *objectBase) update(self Object, parts []flatPart, force, removeOld bool) bool {
	if !force && !b.dirty {
		return false
	}
	if removeOld && b.m != nil {
		b.m.RemoveRenderablesOfObject(self, false)
	}

	var rs []*Renderable
	if b.symbol != nil {
		rs = b.symbol.createRenderables(self, parts, nil)
	}
	extent := geom.Rect{}
	for _, r := range rs {
		extent = extent.Union(r.Extent)
	}
	for _, part := range parts {
		extent = extent.Union(geom.BoundingRect(part.points))
	}
	b.renderables = rs
	b.extent = extent
	b.dirty = false

	if b.m != nil {
		b.m.InsertRenderablesOfObject(self)
		if extent.IsValid() {
			b.m.SetObjectAreaDirty(extent)
		}
	}
	return true
}

// detach clears the caches of an object leaving its map.
func (b *objectBase) detach() {
	b.m = nil
	b.renderables = nil
	b.dirty = true
}

// PointObject is a single symbol placement.
type PointObject struct {
	objectBase
	Rotation float64
}

func NewPointObject(sym Symbol, pos geom.MapCoord) *PointObject {
	return &PointObject{objectBase: newObjectBase(sym, []geom.MapCoord{pos})}
}

func (o *PointObject) Type() ObjectType { return ObjectPoint }

func (o *PointObject) Position() geom.MapCoord { return o.coords[0] }

func (o *PointObject) SetPosition(c geom.MapCoord) {
	o.coords[0] = c
	o.dirty = true
}

func (o *PointObject) SetRotation(r float64) {
	o.Rotation = r
	o.dirty = true
}

func (o *PointObject) SetSymbol(sym Symbol, noChecks bool) bool {
	return o.setSymbol(o, sym, noChecks)
}

func (o *PointObject) Update(force, removeOld bool) bool {
	return o.update(o, []flatPart{{points: []geom.MapCoordF{o.coords[0].ToF()}}}, force, removeOld)
}

func (o *PointObject) IsPointOnObject(p geom.MapCoordF, tolerance float64, extended bool) SymbolType {
	radius := 0.0
	if ps, ok := o.symbol.(*PointSymbol); ok {
		radius = ps.radius()
	}
	limit := tolerance + radius
	if p.LengthSquaredTo(o.coords[0].ToF()) <= limit*limit {
		return SymbolPoint
	}
	return NoSymbol
}

func (o *PointObject) IntersectsBox(r geom.Rect) bool {
	c := o.coords[0].ToF()
	return r.Contains(c.X, c.Y)
}

func (o *PointObject) Duplicate() Object {
	return &PointObject{objectBase: o.duplicate(), Rotation: o.Rotation}
}

func (o *PointObject) Equal(other Object) bool {
	p, ok := other.(*PointObject)
	return ok && o.equalBase(&p.objectBase) && o.Rotation == p.Rotation
}

// PathPart is an inclusive coordinate range of a path. Parts after the
// first are holes.
type PathPart struct {
	Start int
	End   int
}

// PathObject is a line or area geometry made of one or more parts. A part
// ends at a coordinate flagged as hole point or at the last coordinate; a
// close point flag on that end coordinate closes the part. A curve start
// flag at i makes i..i+3 a cubic bezier segment.
type PathObject struct {
	objectBase
}

func NewPathObject(sym Symbol, coords ...geom.MapCoord) *PathObject {
	return &PathObject{objectBase: newObjectBase(sym, coords)}
}

func (o *PathObject) Type() ObjectType { return ObjectPath }

func (o *PathObject) SetSymbol(sym Symbol, noChecks bool) bool {
	return o.setSymbol(o, sym, noChecks)
}

func (o *PathObject) Parts() []PathPart {
	var parts []PathPart
	start := 0
	for i, c := range o.coords {
		if c.IsHolePoint() || i == len(o.coords)-1 {
			parts = append(parts, PathPart{Start: start, End: i})
			start = i + 1
		}
	}
	return parts
}

func (o *PathObject) IsPartClosed(part int) bool {
	return o.coords[o.Parts()[part].End].IsClosePoint()
}

// ConnectPartEnds closes a part by moving its end onto its start.
func (o *PathObject) ConnectPartEnds(part int) {
	pp := o.Parts()[part]
	start, end := o.coords[pp.Start], o.coords[pp.End]
	closed := geom.FromNative(start.NativeX(), start.NativeY())
	for _, f := range []geom.CoordFlag{geom.FlagHolePoint, geom.FlagDashPoint} {
		closed = closed.WithFlag(f, end.HasFlag(f))
	}
	o.coords[pp.End] = closed.WithFlag(geom.FlagClosePoint, true)
	o.dirty = true
}

func (o *PathObject) flatten() []flatPart {
	parts := o.Parts()
	out := make([]flatPart, 0, len(parts))
	for _, pp := range parts {
		coords := o.coords[pp.Start : pp.End+1]
		out = append(out, flatPart{points: flattenCoords(coords), closed: coords[len(coords)-1].IsClosePoint()})
	}
	return out
}

func flattenCoords(coords []geom.MapCoord) []geom.MapCoordF {
	points := make([]geom.MapCoordF, 0, len(coords))
	for i := 0; i < len(coords); {
		p0 := coords[i].ToF()
		points = append(points, p0)
		if coords[i].IsCurveStart() && i+3 < len(coords) {
			p1, p2, p3 := coords[i+1].ToF(), coords[i+2].ToF(), coords[i+3].ToF()
			for s := 1; s < curveSegments; s++ {
				t := float64(s) / curveSegments
				u := 1 - t
				points = append(points, geom.MapCoordF{
					X: u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X,
					Y: u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y,
				})
			}
			i += 3
			continue
		}
		i++
	}
	return points
}

func (o *PathObject) Update(force, removeOld bool) bool {
	return o.update(o, o.flatten(), force, removeOld)
}

func lineHalfWidth(sym Symbol) float64 {
	switch s := sym.(type) {
	case *LineSymbol:
		return nativeToMM(s.LineWidth) / 2
	case *CombinedSymbol:
		w := 0.0
		for _, p := range s.Parts {
			if p != nil {
				w = max(w, lineHalfWidth(p))
			}
		}
		return w
	}
	return 0
}

func (o *PathObject) IsPointOnObject(p geom.MapCoordF, tolerance float64, extended bool) SymbolType {
	if o.symbol == nil {
		return NoSymbol
	}
	contained := o.symbol.ContainedTypes()
	parts := o.flatten()

	if contained&SymbolLine != 0 || (extended && contained&SymbolArea != 0) {
		limit := tolerance + lineHalfWidth(o.symbol)
		for _, part := range parts {
			pts := part.points
			for i := 1; i < len(pts); i++ {
				if geom.DistanceToSegmentSquared(p, pts[i-1], pts[i]) <= limit*limit {
					if contained&SymbolLine != 0 {
						return SymbolLine
					}
					return SymbolArea
				}
			}
		}
	}
	if contained&SymbolArea != 0 {
		rings := make([][]geom.MapCoordF, len(parts))
		for i, part := range parts {
			rings[i] = part.points
		}
		if geom.PointInPolygons(p, rings) {
			return SymbolArea
		}
	}
	return NoSymbol
}

func (o *PathObject) IntersectsBox(r geom.Rect) bool {
	parts := o.flatten()
	for _, part := range parts {
		pts := part.points
		if len(pts) == 1 && r.Contains(pts[0].X, pts[0].Y) {
			return true
		}
		for i := 1; i < len(pts); i++ {
			if geom.SegmentIntersectsRect(pts[i-1], pts[i], r) {
				return true
			}
		}
	}
	if o.symbol != nil && o.symbol.ContainedTypes()&SymbolArea != 0 {
		rings := make([][]geom.MapCoordF, len(parts))
		for i, part := range parts {
			rings[i] = part.points
		}
		cx, cy := r.Center()
		return geom.PointInPolygons(geom.MapCoordF{X: cx, Y: cy}, rings)
	}
	return false
}

// Reverse reverses the direction of every part. Curve segments stay curve
// segments, dash points stay with their coordinates and the end flags stay
// on the end coordinate of each part.
func (o *PathObject) Reverse() {
	for _, pp := range o.Parts() {
		n := pp.End - pp.Start + 1
		src := o.coords[pp.Start : pp.End+1]
		rev := make([]geom.MapCoord, n)
		for j := range n {
			c := src[n-1-j]
			rev[j] = geom.FromNative(c.NativeX(), c.NativeY()).WithFlag(geom.FlagDashPoint, c.IsDashPoint())
		}
		for k := range n {
			if src[k].IsCurveStart() && k+3 < n {
				j := n - 1 - (k + 3)
				rev[j] = rev[j].WithFlag(geom.FlagCurveStart, true)
			}
		}
		last := src[n-1]
		rev[n-1] = rev[n-1].
			WithFlag(geom.FlagClosePoint, last.IsClosePoint()).
			WithFlag(geom.FlagHolePoint, last.IsHolePoint())
		copy(src, rev)
	}
	o.dirty = true
}

type pathJoint int

const (
	appendForward pathJoint = iota
	appendReversed
	prependForward
	prependReversed
)

func (o *PathObject) isSingleOpenPart() bool {
	return len(o.coords) >= 2 && len(o.Parts()) == 1 && !o.IsPartClosed(0)
}

func (o *PathObject) joint(other *PathObject, maxDistSq float64) (pathJoint, bool) {
	start, end := o.coords[0].ToF(), o.coords[len(o.coords)-1].ToF()
	otherStart, otherEnd := other.coords[0].ToF(), other.coords[len(other.coords)-1].ToF()
	switch {
	case end.LengthSquaredTo(otherStart) <= maxDistSq:
		return appendForward, true
	case end.LengthSquaredTo(otherEnd) <= maxDistSq:
		return appendReversed, true
	case start.LengthSquaredTo(otherEnd) <= maxDistSq:
		return prependForward, true
	case start.LengthSquaredTo(otherStart) <= maxDistSq:
		return prependReversed, true
	}
	return 0, false
}

// CanBeConnected reports whether other can be joined to this path. Only
// single open parts are joined.
func (o *PathObject) CanBeConnected(other *PathObject, maxDistSq float64) bool {
	if o == other || !o.isSingleOpenPart() || !other.isSingleOpenPart() {
		return false
	}
	_, ok := o.joint(other, maxDistSq)
	return ok
}

// ConnectIfClose joins other to this path if an end of other lies within
// the distance of an end of this path. other is left unchanged.
func (o *PathObject) ConnectIfClose(other *PathObject, maxDistSq float64) bool {
	if !o.CanBeConnected(other, maxDistSq) {
		return false
	}
	j, _ := o.joint(other, maxDistSq)
	coords := slices.Clone(other.coords)
	if j == appendReversed || j == prependReversed {
		tmp := &PathObject{objectBase: objectBase{coords: coords}}
		tmp.Reverse()
		coords = tmp.coords
	}
	switch j {
	case appendForward, appendReversed:
		last := len(o.coords) - 1
		o.coords[last] = o.coords[last].WithFlag(geom.FlagCurveStart, coords[0].IsCurveStart())
		o.coords = append(o.coords, coords[1:]...)
	default:
		o.coords = append(coords[:len(coords)-1], o.coords...)
	}
	o.dirty = true
	return true
}

func (o *PathObject) Duplicate() Object {
	return &PathObject{objectBase: o.duplicate()}
}

func (o *PathObject) Equal(other Object) bool {
	p, ok := other.(*PathObject)
	return ok && o.equalBase(&p.objectBase)
}

// TextObject places a text at an anchor coordinate.
type TextObject struct {
	objectBase
	Text     string
	Rotation float64
}

func NewTextObject(sym Symbol, anchor geom.MapCoord, text string) *TextObject {
	return &TextObject{objectBase: newObjectBase(sym, []geom.MapCoord{anchor}), Text: text}
}

func (o *TextObject) Type() ObjectType { return ObjectText }

func (o *TextObject) SetText(text string) {
	o.Text = text
	o.dirty = true
}

func (o *TextObject) SetSymbol(sym Symbol, noChecks bool) bool {
	return o.setSymbol(o, sym, noChecks)
}

func (o *TextObject) Update(force, removeOld bool) bool {
	return o.update(o, []flatPart{{points: []geom.MapCoordF{o.coords[0].ToF()}}}, force, removeOld)
}

func (o *TextObject) IsPointOnObject(p geom.MapCoordF, tolerance float64, extended bool) SymbolType {
	if o.extent.Adjusted(tolerance).Contains(p.X, p.Y) {
		return SymbolText
	}
	return NoSymbol
}

func (o *TextObject) IntersectsBox(r geom.Rect) bool {
	return r.Intersects(o.extent)
}

func (o *TextObject) Duplicate() Object {
	return &TextObject{objectBase: o.duplicate(), Text: o.Text, Rotation: o.Rotation}
}

func (o *TextObject) Equal(other Object) bool {
	t, ok := other.(*TextObject)
	return ok && o.equalBase(&t.objectBase) && o.Text == t.Text && o.Rotation == t.Rotation
}

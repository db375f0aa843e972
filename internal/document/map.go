package document

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/typeid"
	"github.com/orimap/orimap/internal/undo"
)

const DefaultLayerName = "default layer"

// Map is the document: colors, symbols, templates and layers of objects,
// plus the selection, the object undo history and the dirty state.
//
// A Map is not safe for concurrent use; all access happens from one
// goroutine.
type Map struct {
	ID string

	colors    *ColorSet
	symbols   []Symbol
	templates []*Template
	// Templates before firstFrontTemplate are drawn below the objects, the
	// others above.
	firstFrontTemplate int

	layers       []*Layer
	currentLayer int

	selected      []Object
	selectedSet   map[Object]struct{}
	firstSelected Object

	renderables          *RenderableContainer
	selectionRenderables *RenderableContainer

	undo    *undo.Manager
	widgets []Widget

	colorsDirty    bool
	symbolsDirty   bool
	templatesDirty bool
	objectsDirty   bool
	unsavedChanges bool

	notes         string
	print         PrintParameters
	printSet      bool
	imageDefaults ImageTemplateDefaults
	gps           *GPSProjectionParameters
	gpsSet        bool

	subscribers      []subscriber
	nextSubscription Subscription

	logger *slog.Logger
}

// NewMap creates an empty map with one default layer.
func NewMap() *Map {
	m := &Map{
		ID:     typeid.NewMapID(),
		undo:   undo.NewManager(0),
		logger: slog.Default(),
	}
	m.renderables = newRenderableContainer(m)
	m.selectionRenderables = newRenderableContainer(m)
	m.Clear()
	return m
}

func (m *Map) SetLogger(l *slog.Logger) { m.logger = l }

// Clear resets the map to the state of a new document. Attached widgets and
// event subscribers stay attached.
func (m *Map) Clear() {
	if m.colors != nil {
		m.colors.release()
	}
	m.colors = newColorSet()

	m.symbols = nil
	m.templates = nil
	m.firstFrontTemplate = 0

	for _, l := range m.layers {
		for _, obj := range l.objects {
			obj.base().detach()
		}
	}
	m.layers = []*Layer{newLayer(DefaultLayerName, m)}
	m.currentLayer = 0

	m.selected = nil
	m.selectedSet = make(map[Object]struct{})
	m.firstSelected = nil
	m.renderables.Clear()
	m.selectionRenderables.Clear()

	m.undo.Clear(true)

	m.notes = ""
	m.print = PrintParameters{}
	m.printSet = false
	m.imageDefaults = ImageTemplateDefaults{UseMetersPerPixel: true}
	m.gps = NewGPSProjectionParameters()
	m.gpsSet = false

	m.colorsDirty = false
	m.symbolsDirty = false
	m.templatesDirty = false
	m.objectsDirty = false
	m.unsavedChanges = false
}

// UndoManager returns the object undo history of this map.
func (m *Map) UndoManager() *undo.Manager { return m.undo }

// Renderables holds the renderables of all objects.
func (m *Map) Renderables() *RenderableContainer { return m.renderables }

// ---- colors ----

func (m *Map) NumColors() int { return len(m.colors.colors) }

func (m *Map) Color(i int) *Color {
	m.checkColorIndex(i)
	return m.colors.colors[i]
}

// Colors returns a copy of the color list in priority order.
func (m *Map) Colors() []*Color { return slices.Clone(m.colors.colors) }

func (m *Map) ColorSet() *ColorSet { return m.colors }

func (m *Map) checkColorIndex(i int) {
	if i < 0 || i >= len(m.colors.colors) {
		panic(fmt.Sprintf("document: color index %d out of range [0, %d)", i, len(m.colors.colors)))
	}
}

// SetColor replaces the color at pos.
func (m *Map) SetColor(c *Color, pos int) {
	m.checkColorIndex(pos)
	m.colors.colors[pos] = c
	c.Priority = pos
	m.emit(Event{Kind: EventColorChanged, Index: pos, Color: c})
	m.SetColorsDirty()
}

// AddNewColor inserts a black default color at pos.
func (m *Map) AddNewColor(pos int) *Color {
	c := NewCMYKColor("New color", 0, 0, 0, 1)
	m.AddColor(c, pos)
	return c
}

func (m *Map) AddColor(c *Color, pos int) {
	if pos < 0 || pos > len(m.colors.colors) {
		panic(fmt.Sprintf("document: color position %d out of range [0, %d]", pos, len(m.colors.colors)))
	}
	m.colors.colors = slices.Insert(m.colors.colors, pos, c)
	m.adjustColorPriorities(pos, len(m.colors.colors)-1)
	if m.NumColors() == 1 {
		m.UpdateAllWidgets()
	}
	m.emit(Event{Kind: EventColorAdded, Index: pos, Color: c})
	m.SetColorsDirty()
}

// DeleteColor removes the color at pos. Every symbol is told before the
// color is gone so it can drop its references.
func (m *Map) DeleteColor(pos int) {
	m.checkColorIndex(pos)
	c := m.colors.colors[pos]
	m.colors.colors = slices.Delete(m.colors.colors, pos, pos+1)
	m.adjustColorPriorities(pos, len(m.colors.colors)-1)

	if m.NumColors() == 0 {
		m.UpdateAllWidgets()
	}

	for _, sym := range m.symbols {
		if sym.colorDeleted(c) {
			m.UpdateAllObjectsWithSymbol(sym)
		}
	}
	m.emit(Event{Kind: EventColorDeleted, Index: pos, Color: c})
	m.SetColorsDirty()
}

// FindColorIndex returns -1 if the color is not part of this map.
func (m *Map) FindColorIndex(c *Color) int {
	return slices.Index(m.colors.colors, c)
}

// MoveColor changes the priority of a color.
func (m *Map) MoveColor(from, to int) {
	m.checkColorIndex(from)
	m.checkColorIndex(to)
	c := m.colors.colors[from]
	m.colors.colors = slices.Delete(m.colors.colors, from, from+1)
	m.colors.colors = slices.Insert(m.colors.colors, to, c)
	m.adjustColorPriorities(min(from, to), max(from, to))
	m.UpdateAllObjects(true)
	m.SetColorsDirty()
}

func (m *Map) adjustColorPriorities(first, last int) {
	for i := first; i <= last; i++ {
		m.colors.colors[i].Priority = i
	}
}

// UseColorsFrom makes this map share the color set of other. Changes
// through either map are seen by both.
func (m *Map) UseColorsFrom(other *Map) {
	if m.colors == other.colors {
		return
	}
	m.colors.release()
	m.colors = other.colors
	m.colors.retain()
}

func (m *Map) IsColorUsedByASymbol(c *Color) bool {
	for _, sym := range m.symbols {
		if sym.ContainsColor(c) {
			return true
		}
	}
	return false
}

// ---- symbols ----

func (m *Map) NumSymbols() int { return len(m.symbols) }

func (m *Map) Symbol(i int) Symbol {
	m.checkSymbolIndex(i)
	return m.symbols[i]
}

func (m *Map) Symbols() []Symbol { return slices.Clone(m.symbols) }

func (m *Map) checkSymbolIndex(i int) {
	if i < 0 || i >= len(m.symbols) {
		panic(fmt.Sprintf("document: symbol index %d out of range [0, %d)", i, len(m.symbols)))
	}
}

func (m *Map) AddSymbol(sym Symbol, pos int) {
	if pos < 0 || pos > len(m.symbols) {
		panic(fmt.Sprintf("document: symbol position %d out of range [0, %d]", pos, len(m.symbols)))
	}
	m.symbols = slices.Insert(m.symbols, pos, sym)
	if m.NumSymbols() == 1 {
		m.UpdateAllWidgets()
	}
	m.emit(Event{Kind: EventSymbolAdded, Index: pos, Symbol: sym})
	m.SetSymbolsDirty()
}

// MoveSymbol moves the symbol at from so that it ends up before the symbol
// currently at to.
func (m *Map) MoveSymbol(from, to int) {
	m.checkSymbolIndex(from)
	if to < 0 || to > len(m.symbols) {
		panic(fmt.Sprintf("document: symbol position %d out of range [0, %d]", to, len(m.symbols)))
	}
	m.symbols = slices.Insert(m.symbols, to, m.symbols[from])
	if from > to {
		from++
	}
	m.symbols = slices.Delete(m.symbols, from, from+1)
	m.SetSymbolsDirty()
}

// SortSymbols orders the symbol list stably by less.
func (m *Map) SortSymbols(less func(a, b Symbol) bool) {
	if less == nil {
		return
	}
	slices.SortStableFunc(m.symbols, func(a, b Symbol) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	m.SetSymbolsDirty()
}

// SetSymbol replaces the symbol at pos. Objects move over to the new
// symbol; those that cannot carry it are deleted.
func (m *Map) SetSymbol(sym Symbol, pos int) {
	m.checkSymbolIndex(pos)
	old := m.symbols[pos]
	m.ChangeSymbolForAllObjects(old, sym)

	for i, other := range m.symbols {
		if i != pos && other.symbolChanged(old, sym) {
			m.UpdateAllObjectsWithSymbol(other)
		}
	}

	m.symbols[pos] = sym
	m.emit(Event{Kind: EventSymbolChanged, Index: pos, Symbol: sym, OldSymbol: old})
	m.SetSymbolsDirty()
}

// DeleteSymbol deletes the symbol at pos together with every object using
// it. If objects were deleted the undo history is cleared, since its steps
// may refer to the symbol.
func (m *Map) DeleteSymbol(pos int) {
	m.checkSymbolIndex(pos)
	sym := m.symbols[pos]

	m.RemoveSymbolFromSelection(sym, true)
	if m.DeleteAllObjectsWithSymbol(sym) {
		m.logger.Debug("symbol deletion removed objects, clearing undo history", "symbol", sym.Base().Name)
		m.undo.Clear(!m.unsavedChanges)
	}

	for i, other := range m.symbols {
		if i != pos && other.symbolChanged(sym, nil) {
			m.UpdateAllObjectsWithSymbol(other)
		}
	}

	m.symbols = slices.Delete(m.symbols, pos, pos+1)
	if m.NumSymbols() == 0 {
		m.UpdateAllWidgets()
	}
	m.emit(Event{Kind: EventSymbolDeleted, Index: pos, Symbol: sym})
	m.SetSymbolsDirty()
}

// FindSymbolIndex returns the position of sym, -2 for the builtin undefined
// point and -3 for the builtin undefined line. Any other symbol must belong
// to this map.
func (m *Map) FindSymbolIndex(sym Symbol) int {
	if i := slices.Index(m.symbols, sym); i >= 0 {
		return i
	}
	b := Builtins()
	switch sym {
	case Symbol(b.UndefinedPoint):
		return -2
	case Symbol(b.UndefinedLine):
		return -3
	}
	panic("document: symbol not found in map")
}

// ScaleAllSymbols scales sizes of all symbols and refreshes the objects.
func (m *Map) ScaleAllSymbols(factor float64) {
	for i, sym := range m.symbols {
		sym.Scale(factor)
		m.emit(Event{Kind: EventSymbolChanged, Index: i, Symbol: sym, OldSymbol: sym})
	}
	m.UpdateAllObjects(true)
	m.SetSymbolsDirty()
}

// ---- templates ----

func (m *Map) NumTemplates() int { return len(m.templates) }

func (m *Map) Template(i int) *Template {
	m.checkTemplateIndex(i)
	return m.templates[i]
}

func (m *Map) Templates() []*Template { return slices.Clone(m.templates) }

func (m *Map) checkTemplateIndex(i int) {
	if i < 0 || i >= len(m.templates) {
		panic(fmt.Sprintf("document: template index %d out of range [0, %d)", i, len(m.templates)))
	}
}

func (m *Map) FirstFrontTemplate() int { return m.firstFrontTemplate }

func (m *Map) SetFirstFrontTemplate(i int) {
	if i < 0 || i > len(m.templates) {
		panic(fmt.Sprintf("document: first front template %d out of range [0, %d]", i, len(m.templates)))
	}
	m.firstFrontTemplate = i
}

// IsFrontTemplate reports whether t draws above the objects. This is the
// only place deciding between front and back.
func (m *Map) IsFrontTemplate(t *Template) bool {
	return m.FindTemplateIndex(t) >= m.firstFrontTemplate
}

func (m *Map) SetTemplate(t *Template, pos int) {
	m.checkTemplateIndex(pos)
	m.templates[pos].m = nil
	t.m = m
	m.templates[pos] = t
	m.emit(Event{Kind: EventTemplateChanged, Index: pos, Template: t})
	m.SetTemplatesDirty()
}

// AddTemplate inserts t at pos. The caller adjusts the first front
// template index if needed.
func (m *Map) AddTemplate(t *Template, pos int) {
	if pos < 0 || pos > len(m.templates) {
		panic(fmt.Sprintf("document: template position %d out of range [0, %d]", pos, len(m.templates)))
	}
	t.m = m
	m.templates = slices.Insert(m.templates, pos, t)
	if m.NumTemplates() == 1 {
		m.UpdateAllWidgets()
	}
	m.emit(Event{Kind: EventTemplateAdded, Index: pos, Template: t})
	m.SetTemplatesDirty()
}

// DeleteTemplate removes the template at pos and its visibility records
// from the views of all widgets.
func (m *Map) DeleteTemplate(pos int) {
	m.checkTemplateIndex(pos)
	t := m.templates[pos]
	for _, w := range m.widgets {
		w.View().DeleteTemplateVisibility(t)
	}
	m.templates = slices.Delete(m.templates, pos, pos+1)
	if pos < m.firstFrontTemplate {
		m.firstFrontTemplate--
	}
	if m.NumTemplates() == 0 {
		m.UpdateAllWidgets()
	}
	m.emit(Event{Kind: EventTemplateDeleted, Index: pos, Template: t})
	t.m = nil
	m.SetTemplatesDirty()
}

// FindTemplateIndex returns the position of t, which must belong to this map.
func (m *Map) FindTemplateIndex(t *Template) int {
	if i := slices.Index(m.templates, t); i >= 0 {
		return i
	}
	panic("document: template not found in map")
}

// SetTemplateAreaDirty invalidates area (map mm) of the template cache in
// every widget that shows t.
func (m *Map) SetTemplateAreaDirty(t *Template, area geom.Rect, pixelBorder int) {
	front := m.IsFrontTemplate(t)
	for _, w := range m.widgets {
		v := w.View()
		if v.IsTemplateVisible(t) {
			w.MarkTemplateCacheDirty(v.CalculateViewBoundingBox(area), pixelBorder, front)
		}
	}
}

// SetTemplateAreaDirtyAt invalidates the whole template at index i. An
// index of -1 stands for the object layer and is ignored.
func (m *Map) SetTemplateAreaDirtyAt(i int) {
	if i == -1 {
		return
	}
	m.checkTemplateIndex(i)
	m.templates[i].SetTemplateAreaDirty()
}

func (m *Map) EmitTemplateChanged(t *Template) {
	m.emit(Event{Kind: EventTemplateChanged, Index: m.FindTemplateIndex(t), Template: t})
}

// ---- layers ----

func (m *Map) NumLayers() int { return len(m.layers) }

func (m *Map) Layer(i int) *Layer {
	if i < 0 || i >= len(m.layers) {
		panic(fmt.Sprintf("document: layer index %d out of range [0, %d)", i, len(m.layers)))
	}
	return m.layers[i]
}

func (m *Map) CurrentLayer() *Layer   { return m.layers[m.currentLayer] }
func (m *Map) CurrentLayerIndex() int { return m.currentLayer }

func (m *Map) SetCurrentLayerIndex(i int) {
	m.Layer(i)
	m.currentLayer = i
}

// FindLayerIndex returns the position of l, which must belong to this map.
func (m *Map) FindLayerIndex(l *Layer) int {
	if i := slices.Index(m.layers, l); i >= 0 {
		return i
	}
	panic("document: layer not found in map")
}

// AddLayer inserts an empty layer at pos.
func (m *Map) AddLayer(name string, pos int) *Layer {
	if pos < 0 || pos > len(m.layers) {
		panic(fmt.Sprintf("document: layer position %d out of range [0, %d]", pos, len(m.layers)))
	}
	l := newLayer(name, m)
	m.layers = slices.Insert(m.layers, pos, l)
	if pos <= m.currentLayer {
		m.currentLayer++
	}
	m.SetObjectsDirty()
	return l
}

// DeleteLayer removes the layer at pos with all its objects. The last
// layer cannot be deleted. The undo history is cleared because its steps
// address layers by index.
func (m *Map) DeleteLayer(pos int) {
	l := m.Layer(pos)
	if len(m.layers) == 1 {
		panic("document: cannot delete the only layer")
	}
	for i := l.NumObjects() - 1; i >= 0; i-- {
		l.DeleteObjectAt(i, false)
	}
	m.layers = slices.Delete(m.layers, pos, pos+1)
	if m.currentLayer > pos || m.currentLayer == len(m.layers) {
		m.currentLayer--
	}
	m.undo.Clear(false)
	m.SetObjectsDirty()
}

// ---- objects ----

func (m *Map) NumObjects() int {
	n := 0
	for _, l := range m.layers {
		n += len(l.objects)
	}
	return n
}

// AddObject appends obj to the layer (the current one for a negative
// index) and returns its index there.
func (m *Map) AddObject(obj Object, layerIndex int) int {
	if layerIndex < 0 {
		layerIndex = m.currentLayer
	}
	l := m.Layer(layerIndex)
	pos := len(l.objects)
	l.AddObject(obj, pos)
	return pos
}

// DeleteObject removes obj from whichever layer holds it. It must be in
// one of them.
func (m *Map) DeleteObject(obj Object, removeOnly bool) {
	for _, l := range m.layers {
		if l.DeleteObject(obj, removeOnly) {
			return
		}
	}
	panic("document: object not found in map")
}

// objectPositions numbers all objects in drawing order.
func (m *Map) objectPositions() map[Object]int {
	positions := make(map[Object]int, m.NumObjects())
	n := 0
	for _, l := range m.layers {
		for _, obj := range l.objects {
			positions[obj] = n
			n++
		}
	}
	return positions
}

// UpdateObjects flushes dirty objects into their renderables.
func (m *Map) UpdateObjects() {
	for _, l := range m.layers {
		for _, obj := range l.objects {
			obj.Update(false, true)
		}
	}
}

func (m *Map) RemoveRenderablesOfObject(obj Object, markAreaDirty bool) {
	m.renderables.RemoveRenderablesOfObject(obj, markAreaDirty)
	if m.IsObjectSelected(obj) {
		m.removeSelectionRenderables(obj)
	}
}

func (m *Map) InsertRenderablesOfObject(obj Object) {
	m.renderables.InsertRenderablesOfObject(obj)
	if m.IsObjectSelected(obj) {
		m.addSelectionRenderables(obj)
	}
}

// CalculateExtent unions the extents of all layers and, optionally, of the
// templates visible in view (all templates when view is nil).
func (m *Map) CalculateExtent(includeHelperSymbols, includeTemplates bool, view WidgetView) geom.Rect {
	rect := geom.Rect{}
	for _, l := range m.layers {
		rect = rect.Union(l.CalculateExtent(includeHelperSymbols))
	}
	if includeTemplates {
		for _, t := range m.templates {
			if view != nil && !view.IsTemplateVisible(t) {
				continue
			}
			rect = rect.Union(t.CalculateMapExtent())
		}
	}
	return rect
}

// FindObjectsAt queries the current layer.
func (m *Map) FindObjectsAt(p geom.MapCoordF, tolerance float64, extended, includeHidden, includeProtected bool) []SelectionInfo {
	return m.CurrentLayer().FindObjectsAt(p, tolerance, extended, includeHidden, includeProtected)
}

// FindObjectByID searches all layers and returns nil if no object has the
// id.
func (m *Map) FindObjectByID(id string) Object {
	for _, l := range m.layers {
		for _, obj := range l.objects {
			if obj.ID() == id {
				return obj
			}
		}
	}
	return nil
}

// FindObjectsAtBox queries the current layer.
func (m *Map) FindObjectsAtBox(corner1, corner2 geom.MapCoordF, includeHidden, includeProtected bool) []Object {
	return m.CurrentLayer().FindObjectsAtBox(corner1, corner2, includeHidden, includeProtected)
}

func (m *Map) ScaleAllObjects(factor float64) {
	for _, l := range m.layers {
		l.ScaleAllObjects(factor)
	}
}

func (m *Map) UpdateAllObjects(removeOld bool) {
	for _, l := range m.layers {
		l.UpdateAllObjects(removeOld)
	}
}

func (m *Map) UpdateAllObjectsWithSymbol(sym Symbol) {
	for _, l := range m.layers {
		l.UpdateAllObjectsWithSymbol(sym)
	}
}

func (m *Map) ChangeSymbolForAllObjects(oldSym, newSym Symbol) {
	for _, l := range m.layers {
		l.ChangeSymbolForAllObjects(oldSym, newSym)
	}
}

// DeleteAllObjectsWithSymbol deletes in every layer and reports whether
// anything was deleted.
func (m *Map) DeleteAllObjectsWithSymbol(sym Symbol) bool {
	deleted := false
	for _, l := range m.layers {
		if l.DeleteAllObjectsWithSymbol(sym) {
			deleted = true
		}
	}
	return deleted
}

func (m *Map) DoObjectsExistWithSymbol(sym Symbol) bool {
	for _, l := range m.layers {
		if l.DoObjectsExistWithSymbol(sym) {
			return true
		}
	}
	return false
}

func (m *Map) ForceUpdateOfAllObjects(sym Symbol) {
	for _, l := range m.layers {
		l.ForceUpdateOfAllObjects(sym)
	}
}

// ---- dirty state ----

func (m *Map) HasUnsavedChanges() bool { return m.unsavedChanges }
func (m *Map) AreColorsDirty() bool    { return m.colorsDirty }
func (m *Map) AreSymbolsDirty() bool   { return m.symbolsDirty }
func (m *Map) AreTemplatesDirty() bool { return m.templatesDirty }
func (m *Map) AreObjectsDirty() bool   { return m.objectsDirty }

// SetHasUnsavedChanges(true) raises the aggregate flag, notifying
// observers the first time. SetHasUnsavedChanges(false) clears every dirty
// flag, as after a successful save.
func (m *Map) SetHasUnsavedChanges(unsaved bool) {
	if !unsaved {
		m.colorsDirty = false
		m.symbolsDirty = false
		m.templatesDirty = false
		m.objectsDirty = false
		m.unsavedChanges = false
		return
	}
	if !m.unsavedChanges {
		m.unsavedChanges = true
		m.emit(Event{Kind: EventGotUnsavedChanges, Index: -1})
	}
}

func (m *Map) SetColorsDirty() {
	m.SetHasUnsavedChanges(true)
	m.colorsDirty = true
}

func (m *Map) SetSymbolsDirty() {
	m.SetHasUnsavedChanges(true)
	m.symbolsDirty = true
}

func (m *Map) SetTemplatesDirty() {
	m.SetHasUnsavedChanges(true)
	m.templatesDirty = true
}

func (m *Map) SetObjectsDirty() {
	m.SetHasUnsavedChanges(true)
	m.objectsDirty = true
}

// MarkSaved clears the dirty state and records the current undo position
// as the saved one.
func (m *Map) MarkSaved() {
	m.SetHasUnsavedChanges(false)
	m.undo.NotifyOfSave()
}

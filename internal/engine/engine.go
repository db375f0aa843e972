package engine

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/editor"
	"github.com/orimap/orimap/internal/format"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

// Engine is the map editor core behind one client viewport. It owns the
// map, its view, the editing controller and the retained scene. It
// processes commands from the frontend and returns query results.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	m      *document.Map
	v      *view.MapView
	editor *editor.Controller
	canvas *Canvas
	logger *slog.Logger

	// Viewport size in pixels
	width  int
	height int

	opts  Options
	scene *Scene

	// Warnings of the last load
	warnings []string

	mapChanged func(m *document.Map)
}

// NewEngine creates an engine holding an empty map.
func NewEngine() *Engine {
	e := &Engine{
		logger: slog.Default(),
		opts:   DefaultOptions(),
		width:  800,
		height: 600,
	}
	e.attach(document.NewMap(), nil)
	return e
}

func (e *Engine) SetLogger(l *slog.Logger) {
	e.logger = l
	e.m.SetLogger(l)
	e.editor.SetLogger(l)
}

// attach makes m the edited map, replacing the previous one. A nil view
// creates a fresh one.
func (e *Engine) attach(m *document.Map, v *view.MapView) {
	if e.canvas != nil {
		e.v.RemoveWidget(e.canvas)
	}
	if v == nil {
		v = view.New(m)
	}
	m.SetLogger(e.logger)
	e.m, e.v = m, v
	e.editor = editor.New(m)
	e.editor.SetLogger(e.logger)
	e.canvas = NewCanvas(v)
	v.AddWidget(e.canvas)
	v.SetViewOrigin(-e.width/2, -e.height/2)
	e.scene = nil
	e.warnings = nil
	if e.mapChanged != nil {
		e.mapChanged(m)
	}
}

// OnMapChanged registers fn to be called whenever the edited map is
// replaced. It is called once right away with the current map.
func (e *Engine) OnMapChanged(fn func(m *document.Map)) {
	e.mapChanged = fn
	if fn != nil {
		fn(e.m)
	}
}

// --- Commands (frontend → backend) ---

// LoadDocument replaces the map with the one read from r. The format is
// detected from the content or the extension of path. On error the
// current map stays.
func (e *Engine) LoadDocument(r io.Reader, path string) ([]string, error) {
	m, v, warnings, err := format.Load(r, path)
	if err != nil {
		return nil, err
	}
	e.attach(m, v)
	e.warnings = warnings
	for _, w := range warnings {
		e.logger.Warn("import warning", "path", path, "warning", w)
	}
	return warnings, nil
}

// SaveDocument writes the map in the format with the given id, the native
// format when id is empty.
func (e *Engine) SaveDocument(w io.Writer, formatID string) error {
	if e.editor.IsEditing() {
		return fmt.Errorf("save while editing: %w", format.ErrNotSupported)
	}
	return format.Save(w, formatID, e.m, e.v)
}

// LoadSampleDocument loads the built-in sample map and fits it into the
// viewport.
func (e *Engine) LoadSampleDocument() {
	e.attach(document.NewSampleMap(), nil)
	e.FitToMap()
}

// SetMap replaces the edited map, e.g. with one restored from a snapshot.
func (e *Engine) SetMap(m *document.Map, v *view.MapView) {
	e.attach(m, v)
}

// Resize sets the viewport size. The camera center stays in the middle.
func (e *Engine) Resize(width, height int) {
	if width <= 0 || height <= 0 || width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	e.v.SetViewOrigin(-width/2, -height/2)
	e.canvas.UpdateEverything()
}

// ZoomSteps zooms around the viewport point (x, y). Positive steps zoom in.
func (e *Engine) ZoomSteps(steps, x, y float64) bool {
	return e.v.ZoomSteps(steps, true, x, y)
}

func (e *Engine) SetZoom(zoom float64) { e.v.SetZoom(zoom) }

func (e *Engine) SetRotation(radians float64) { e.v.SetRotation(radians) }

// DragTo shows the map shifted by (dx, dy) pixels during a pan.
func (e *Engine) DragTo(dx, dy int) { e.v.SetDragOffset(image.Pt(dx, dy)) }

// Pan moves the camera so that the map follows the pointer by (dx, dy)
// pixels.
func (e *Engine) Pan(dx, dy int) { e.v.CompleteDragging(image.Pt(dx, dy)) }

// FitToMap centers the whole map in the viewport.
func (e *Engine) FitToMap() {
	extent := e.m.CalculateExtent(false, true, e.v)
	e.v.CenterOn(extent, e.width, e.height)
}

// SetTemplateVisibility shows or hides the template at index.
func (e *Engine) SetTemplateVisibility(index int, visible bool, opacity float32) {
	t := e.m.Template(index)
	vis := e.v.TemplateVisibility(t)
	vis.Visible, vis.Opacity = visible, max(0, min(1, opacity))
	e.m.SetTemplateAreaDirtyAt(index)
}

// AddImageTemplate places an image of the given pixel size centered on the
// camera, behind the map or in front of it, and returns its index. The
// pixel size in millimeters follows the map's image template defaults.
func (e *Engine) AddImageTemplate(path string, width, height int, front bool) int {
	t := document.NewTemplate(path, geom.Rect{Width: float64(width), Height: float64(height)})
	scale := e.m.ImageTemplateScale()
	t.ScaleX, t.ScaleY = scale, scale
	t.X = e.v.PositionX() - int64(math.Round(float64(width)*scale*500))
	t.Y = e.v.PositionY() - int64(math.Round(float64(height)*scale*500))

	pos := e.m.FirstFrontTemplate()
	if front {
		pos = e.m.NumTemplates()
	}
	e.m.AddTemplate(t, pos)
	if !front {
		e.m.SetFirstFrontTemplate(e.m.FirstFrontTemplate() + 1)
	}
	vis := e.v.TemplateVisibility(t)
	vis.Visible, vis.Opacity = true, 1
	e.m.SetTemplateAreaDirtyAt(pos)
	return pos
}

func (e *Engine) SetCurrentLayer(index int) { e.m.SetCurrentLayerIndex(index) }

func (e *Engine) SetShowHelperSymbols(show bool) {
	if e.opts.ShowHelperSymbols != show {
		e.opts.ShowHelperSymbols = show
		e.canvas.UpdateEverything()
	}
}

// SelectAt selects the topmost object of the current layer at the viewport
// point (x, y). With add the object is toggled in the existing selection;
// otherwise it replaces it. Returns whether an object was hit.
func (e *Engine) SelectAt(x, y float64, add bool) bool {
	obj := HitTest(e.m, e.v, x, y)
	if !add {
		e.m.ClearObjectSelection(obj == nil)
	}
	if obj == nil {
		return false
	}
	if add && e.m.IsObjectSelected(obj) {
		e.m.RemoveObjectFromSelection(obj, true)
	} else {
		e.m.AddObjectToSelection(obj, true)
	}
	return true
}

// SelectBox selects the objects of the current layer inside the viewport
// rect spanned by two corners and returns how many it found.
func (e *Engine) SelectBox(x1, y1, x2, y2 float64, add bool) int {
	objs := HitTestBox(e.m, e.v, x1, y1, x2, y2)
	if !add {
		e.m.ClearObjectSelection(len(objs) == 0)
	}
	n := 0
	for i, obj := range objs {
		if !e.m.IsObjectSelected(obj) {
			e.m.AddObjectToSelection(obj, i == len(objs)-1)
			n++
		} else if i == len(objs)-1 {
			e.m.EmitSelectionChanged()
		}
	}
	return n
}

// SetSelection selects the objects with the given ids. Unknown ids are
// ignored.
func (e *Engine) SetSelection(ids []string) {
	e.m.ClearObjectSelection(false)
	for _, id := range ids {
		if obj := e.m.FindObjectByID(id); obj != nil && !e.m.IsObjectSelected(obj) {
			e.m.AddObjectToSelection(obj, false)
		}
	}
	e.m.EmitSelectionChanged()
}

func (e *Engine) ClearSelection() { e.m.ClearObjectSelection(true) }

// Undo reverts the last step and scrolls its result into view.
func (e *Engine) Undo() bool {
	rect, ok := e.editor.Undo()
	if ok {
		e.ensureVisible(rect)
	}
	return ok
}

func (e *Engine) Redo() bool {
	rect, ok := e.editor.Redo()
	if ok {
		e.ensureVisible(rect)
	}
	return ok
}

// ensureVisible centers the camera on rect if it lies outside the viewport.
func (e *Engine) ensureVisible(rect geom.Rect) {
	if !rect.IsValid() {
		return
	}
	viewed := e.v.CalculateViewedRect(geom.Rect{Width: float64(e.width), Height: float64(e.height)})
	if viewed.Intersects(rect) {
		return
	}
	cx, cy := rect.Center()
	e.v.SetPosition(int64(math.Round(cx*1000)), int64(math.Round(cy*1000)))
}

func (e *Engine) DeleteSelection() int    { return e.editor.DeleteSelection() }
func (e *Engine) DuplicateSelection() int { return e.editor.DuplicateSelection() }
func (e *Engine) SwitchDashes() int       { return e.editor.SwitchDashes() }
func (e *Engine) ConnectPaths() bool      { return e.editor.ConnectPaths() }

// SwitchSymbol gives the selected objects the symbol at index.
func (e *Engine) SwitchSymbol(index int) bool {
	return e.editor.SwitchSymbol(e.m.Symbol(index))
}

// FillOrCreateBorder adds copies of the selected paths with the symbol at
// index.
func (e *Engine) FillOrCreateBorder(index int) bool {
	return e.editor.FillOrCreateBorder(e.m.Symbol(index))
}

// MoveSelection moves the selection by a distance given in view pixels,
// which is rotated into map space.
func (e *Engine) MoveSelection(dx, dy float64) bool {
	origin := e.v.ViewToMapF(0, 0)
	target := e.v.ViewToMapF(dx, dy)
	return e.editor.MoveSelection(
		int64(math.Round((target.X-origin.X)*1000)),
		int64(math.Round((target.Y-origin.Y)*1000)),
	)
}

// --- Queries (frontend ← backend) ---

// Scene returns the retained scene, rebuilding it if the canvas reported a
// change since the last call.
func (e *Engine) Scene() *Scene {
	if e.scene == nil || e.canvas.NeedsRender() {
		e.scene = BuildScene(e.m, e.v, e.width, e.height, e.opts)
		e.canvas.Reset()
	}
	return e.scene
}

// Render returns the draw commands for the viewport as JSON.
func (e *Engine) Render() string {
	result, err := DrawCommandsToJSON(e.Scene().Commands)
	if err != nil {
		e.logger.Error("encode draw commands", "error", err)
	}
	return result
}

// RenderMsgpack returns the draw commands for the viewport as MessagePack.
func (e *Engine) RenderMsgpack() ([]byte, error) {
	return DrawCommandsToMsgpack(e.Scene().Commands)
}

// NeedsRender reports whether the last rendered commands are stale.
func (e *Engine) NeedsRender() bool { return e.scene == nil || e.canvas.NeedsRender() }

// HitTest returns the id of the topmost object at the viewport point, or
// the empty string.
func (e *Engine) HitTest(x, y float64) string {
	if obj := HitTest(e.m, e.v, x, y); obj != nil {
		return obj.ID()
	}
	return ""
}

// GetSelectionBounds returns the view bounding box of the selection as JSON.
func (e *Engine) GetSelectionBounds() string {
	return RectToJSON(SelectionBounds(e.m, e.v))
}

// GetSelection returns the ids of the selected objects as JSON.
func (e *Engine) GetSelection() string {
	ids := []string{}
	for _, obj := range e.m.SelectedObjects() {
		ids = append(ids, obj.ID())
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

// State is the editor state the frontend shows around the canvas.
type State struct {
	MapID             string      `json:"mapId"`
	Zoom              float64     `json:"zoom"`
	Rotation          float64     `json:"rotation"`
	PositionX         int64       `json:"positionX"`
	PositionY         int64       `json:"positionY"`
	CanUndo           bool        `json:"canUndo"`
	CanRedo           bool        `json:"canRedo"`
	HasUnsavedChanges bool        `json:"hasUnsavedChanges"`
	SelectionCount    int         `json:"selectionCount"`
	CurrentLayer      int         `json:"currentLayer"`
	Layers            []LayerInfo `json:"layers"`
}

type LayerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ObjectCount int    `json:"objectCount"`
}

func (e *Engine) State() State {
	s := State{
		MapID:             e.m.ID,
		Zoom:              e.v.Zoom(),
		Rotation:          e.v.Rotation(),
		PositionX:         e.v.PositionX(),
		PositionY:         e.v.PositionY(),
		CanUndo:           e.editor.CanUndo(),
		CanRedo:           e.editor.CanRedo(),
		HasUnsavedChanges: e.m.HasUnsavedChanges(),
		SelectionCount:    e.m.NumSelectedObjects(),
		CurrentLayer:      e.m.CurrentLayerIndex(),
	}
	for i := range e.m.NumLayers() {
		l := e.m.Layer(i)
		s.Layers = append(s.Layers, LayerInfo{ID: l.ID, Name: l.Name(), ObjectCount: l.NumObjects()})
	}
	return s
}

// GetState returns State as JSON.
func (e *Engine) GetState() string {
	data, _ := json.Marshal(e.State())
	return string(data)
}

// SymbolInfo describes one entry of the symbol palette.
type SymbolInfo struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
	// Compatible reports whether the selection could switch to this symbol.
	Compatible bool `json:"compatible"`
}

func (e *Engine) Symbols() []SymbolInfo {
	var out []SymbolInfo
	for i, sym := range e.m.Symbols() {
		b := sym.Base()
		compatible, _ := e.m.GetSelectionToSymbolCompatibility(sym)
		out = append(out, SymbolInfo{
			Index:      i,
			ID:         b.ID,
			Type:       sym.Type().String(),
			Name:       b.Name,
			Number:     b.Number,
			Hidden:     b.Hidden,
			Compatible: compatible,
		})
	}
	return out
}

// GetSymbols returns Symbols as JSON.
func (e *Engine) GetSymbols() string {
	data, _ := json.Marshal(e.Symbols())
	return string(data)
}

// GetDocument returns the full map as a JSON document.
func (e *Engine) GetDocument() string {
	data, err := json.Marshal(format.ToJSONDocument(e.m, e.v))
	if err != nil {
		e.logger.Error("encode document", "error", err)
		return "{}"
	}
	return string(data)
}

// Warnings returns the warnings of the last load.
func (e *Engine) Warnings() []string { return e.warnings }

func (e *Engine) Map() *document.Map         { return e.m }
func (e *Engine) View() *view.MapView        { return e.v }
func (e *Engine) Editor() *editor.Controller { return e.editor }
func (e *Engine) Canvas() *Canvas            { return e.canvas }
func (e *Engine) ViewportSize() (int, int)   { return e.width, e.height }
func (e *Engine) Options() Options           { return e.opts }

// SetOptions changes what Render draws.
func (e *Engine) SetOptions(opts Options) {
	e.opts = opts
	e.canvas.UpdateEverything()
}

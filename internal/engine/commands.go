package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
// Geometry is in map millimeters; Transform maps it to view pixels.
type DrawCommand struct {
	Op          string        `json:"op" msgpack:"op"`                                       // "path", "circle", "text", "image"
	ObjectID    string        `json:"objectId,omitempty" msgpack:"objectId,omitempty"`       // For hit correlation
	Transform   []float64     `json:"transform,omitempty" msgpack:"transform,omitempty"`     // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty" msgpack:"path,omitempty"`               // Path data for "path" ops
	Fill        string        `json:"fill,omitempty" msgpack:"fill,omitempty"`               // Fill color
	FillRule    string        `json:"fillRule,omitempty" msgpack:"fillRule,omitempty"`       // "evenodd" for areas with holes
	Stroke      string        `json:"stroke,omitempty" msgpack:"stroke,omitempty"`           // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty" msgpack:"strokeWidth,omitempty"` // Stroke width in mm
	Dash        []float64     `json:"dash,omitempty" msgpack:"dash,omitempty"`               // Dash pattern in mm
	Opacity     float64       `json:"opacity,omitempty" msgpack:"opacity,omitempty"`         // Global alpha

	// Circles and text
	X        float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y        float64 `json:"y,omitempty" msgpack:"y,omitempty"`
	Radius   float64 `json:"radius,omitempty" msgpack:"radius,omitempty"`
	Text     string  `json:"text,omitempty" msgpack:"text,omitempty"`
	Font     string  `json:"font,omitempty" msgpack:"font,omitempty"` // CSS font shorthand
	Rotation float64 `json:"rotation,omitempty" msgpack:"rotation,omitempty"`

	// Templates
	TemplateID  string  `json:"templateId,omitempty" msgpack:"templateId,omitempty"`
	ImagePath   string  `json:"imagePath,omitempty" msgpack:"imagePath,omitempty"`
	ImageWidth  float64 `json:"imageWidth,omitempty" msgpack:"imageWidth,omitempty"`
	ImageHeight float64 `json:"imageHeight,omitempty" msgpack:"imageHeight,omitempty"`

	Selected bool `json:"selected,omitempty" msgpack:"selected,omitempty"`
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["Z"].
type PathCommand []any

// SelectionStrokePixels is the on-screen width of selection outlines.
const SelectionStrokePixels = 2.0

// Options controls what CompileDrawCommands emits.
type Options struct {
	// ShowHelperSymbols includes objects whose symbol is marked as helper.
	ShowHelperSymbols bool
	// ShowTemplates includes visible templates.
	ShowTemplates bool
	// ShowSelection outlines the selected objects.
	ShowSelection bool
}

func DefaultOptions() Options {
	return Options{ShowTemplates: true, ShowSelection: true}
}

// CompileDrawCommands generates the draw command buffer for the part of the
// map visible in viewRect (view pixels; an invalid rect draws everything).
// Commands are in painter's order: back templates, objects by color
// priority, front templates, then selection outlines.
func CompileDrawCommands(m *document.Map, v *view.MapView, viewRect geom.Rect, opts Options) []DrawCommand {
	bbox := geom.Rect{}
	if viewRect.IsValid() {
		bbox = v.CalculateViewedRect(viewRect)
	}
	transform := v.MapToView().ToSlice()

	var commands []DrawCommand
	templates := func(front bool) {
		if !opts.ShowTemplates {
			return
		}
		for _, t := range m.Templates() {
			if m.IsFrontTemplate(t) != front || !v.IsTemplateVisible(t) {
				continue
			}
			if bbox.IsValid() && !bbox.Intersects(t.CalculateMapExtent()) {
				continue
			}
			commands = append(commands, templateCommand(t, v))
		}
	}

	templates(false)
	for _, item := range m.Renderables().DrawOrder(bbox, opts.ShowHelperSymbols) {
		commands = append(commands, renderableCommand(item, transform))
	}
	templates(true)

	if opts.ShowSelection {
		outline := float64(v.PixelToLength(SelectionStrokePixels)) / 1000
		highlight := document.Builtins().CoveringRed.Hex()
		for _, item := range m.SelectionRenderables().DrawOrder(bbox, true) {
			commands = append(commands, selectionCommand(item, transform, highlight, outline))
		}
	}
	return commands
}

func templateCommand(t *document.Template, v *view.MapView) DrawCommand {
	toView := v.MapToView().Multiply(t.Transform()).Multiply(geom.Translate(t.Extent.X, t.Extent.Y))
	return DrawCommand{
		Op:          "image",
		TemplateID:  t.ID,
		Transform:   toView.ToSlice(),
		Opacity:     float64(v.TemplateVisibility(t).Opacity),
		ImagePath:   t.Path,
		ImageWidth:  t.Extent.Width,
		ImageHeight: t.Extent.Height,
	}
}

func renderableCommand(item document.DrawItem, transform []float64) DrawCommand {
	r := item.Renderable
	cmd := DrawCommand{
		ObjectID:  item.Object.ID(),
		Transform: transform,
		Opacity:   r.Color.Opacity,
	}
	color := r.Color.Hex()
	switch r.Kind {
	case document.RenderDot:
		cmd.Op, cmd.X, cmd.Y, cmd.Radius, cmd.Fill = "circle", r.Center.X, r.Center.Y, r.Radius, color
	case document.RenderCircle:
		cmd.Op, cmd.X, cmd.Y, cmd.Radius = "circle", r.Center.X, r.Center.Y, r.Radius
		cmd.Stroke, cmd.StrokeWidth = color, r.Width
	case document.RenderLine:
		cmd.Op, cmd.Path = "path", polylinePath(r.Parts, r.Closed)
		cmd.Stroke, cmd.StrokeWidth, cmd.Dash = color, r.Width, r.Dash
	case document.RenderArea:
		cmd.Op, cmd.Path = "path", polylinePath(r.Parts, true)
		cmd.Fill, cmd.FillRule = color, "evenodd"
	case document.RenderText:
		cmd.Op, cmd.X, cmd.Y, cmd.Text, cmd.Fill = "text", r.Center.X, r.Center.Y, r.Text, color
		cmd.Font, cmd.Rotation = cssFont(r), r.Rotation
	}
	return cmd
}

// selectionCommand outlines a selected renderable. Fills are dropped so the
// outline never hides what is below it.
func selectionCommand(item document.DrawItem, transform []float64, color string, width float64) DrawCommand {
	r := item.Renderable
	cmd := DrawCommand{
		ObjectID:    item.Object.ID(),
		Transform:   transform,
		Stroke:      color,
		StrokeWidth: width,
		Opacity:     1,
		Selected:    true,
	}
	switch r.Kind {
	case document.RenderDot, document.RenderCircle:
		cmd.Op, cmd.X, cmd.Y, cmd.Radius = "circle", r.Center.X, r.Center.Y, r.Radius
	case document.RenderLine, document.RenderArea:
		cmd.Op, cmd.Path = "path", polylinePath(r.Parts, r.Closed)
	case document.RenderText:
		e := r.Extent
		ring := []geom.MapCoordF{{X: e.Left(), Y: e.Top()}, {X: e.Right(), Y: e.Top()}, {X: e.Right(), Y: e.Bottom()}, {X: e.Left(), Y: e.Bottom()}}
		cmd.Op, cmd.Path = "path", polylinePath([][]geom.MapCoordF{ring}, true)
	}
	return cmd
}

func polylinePath(parts [][]geom.MapCoordF, closed bool) []PathCommand {
	var path []PathCommand
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		path = append(path, PathCommand{"M", part[0].X, part[0].Y})
		for _, p := range part[1:] {
			path = append(path, PathCommand{"L", p.X, p.Y})
		}
		if closed {
			path = append(path, PathCommand{"Z"})
		}
	}
	return path
}

func cssFont(r *document.Renderable) string {
	style := ""
	if r.Italic {
		style += "italic "
	}
	if r.Bold {
		style += "bold "
	}
	return fmt.Sprintf("%s%gpx %s", style, r.FontSize, r.FontFamily)
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// DrawCommandsToMsgpack serializes draw commands to MessagePack, which is
// considerably smaller for path heavy maps.
func DrawCommandsToMsgpack(commands []DrawCommand) ([]byte, error) {
	return msgpack.Marshal(commands)
}

// HitTestResult contains information about a hit test.
type HitTestResult struct {
	ObjectID string  `json:"objectId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// HitTolerancePixels is how far from a line a click still hits it.
const HitTolerancePixels = 4.0

// HitTest returns the topmost object of the current layer at the view
// point (x, y), or nil.
func HitTest(m *document.Map, v *view.MapView, x, y float64) document.Object {
	p := v.ViewToMapF(x, y)
	tolerance := float64(v.PixelToLength(HitTolerancePixels)) / 1000
	hits := m.FindObjectsAt(p, tolerance, false, false, false)
	if len(hits) == 0 {
		return nil
	}
	return hits[len(hits)-1].Object
}

// HitTestBox returns the objects of the current layer touching the view
// rect spanned by two corners.
func HitTestBox(m *document.Map, v *view.MapView, x1, y1, x2, y2 float64) []document.Object {
	return m.FindObjectsAtBox(v.ViewToMapF(x1, y1), v.ViewToMapF(x2, y2), false, false)
}

// SelectionBounds returns the view rect covering the selected objects.
func SelectionBounds(m *document.Map, v *view.MapView) geom.Rect {
	bounds := m.IncludeSelectionRect(geom.Rect{})
	if bounds.IsEmpty() {
		return geom.Rect{}
	}
	return v.CalculateViewBoundingBox(bounds)
}

// RectToJSON serializes a Rect to JSON.
func RectToJSON(r geom.Rect) string {
	round := func(f float64) float64 { return math.Round(f*1000) / 1000 }
	data, _ := json.Marshal(map[string]float64{
		"x":      round(r.X),
		"y":      round(r.Y),
		"width":  round(r.Width),
		"height": round(r.Height),
	})
	return string(data)
}

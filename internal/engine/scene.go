package engine

import (
	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

// Scene is the compiled, render-ready state of a map for one viewport.
// It is retained between frames and rebuilt only when the canvas reports
// a change.
type Scene struct {
	Commands []DrawCommand
	// Bounds holds the view space bounding box of every drawn object.
	Bounds map[string]geom.Rect
	// Viewport is the view rect the scene was compiled for.
	Viewport geom.Rect
}

// BuildScene compiles m as seen through v into a viewport of the given
// size whose top left corner is the view origin.
func BuildScene(m *document.Map, v *view.MapView, width, height int, opts Options) *Scene {
	viewport := geom.Rect{Width: float64(width), Height: float64(height)}
	s := &Scene{
		Commands: CompileDrawCommands(m, v, viewport, opts),
		Bounds:   make(map[string]geom.Rect),
		Viewport: viewport,
	}
	drawn := make(map[string]struct{})
	for _, cmd := range s.Commands {
		if cmd.ObjectID != "" && !cmd.Selected {
			drawn[cmd.ObjectID] = struct{}{}
		}
	}
	for i := range m.NumLayers() {
		for _, obj := range m.Layer(i).Objects() {
			if _, ok := drawn[obj.ID()]; ok {
				s.Bounds[obj.ID()] = v.CalculateViewBoundingBox(obj.Extent())
			}
		}
	}
	return s
}

// BoundsOf returns the combined view bounds of the given objects. Objects
// that were not drawn are skipped.
func (s *Scene) BoundsOf(ids []string) geom.Rect {
	var result geom.Rect
	for _, id := range ids {
		result = result.Union(s.Bounds[id])
	}
	return result
}

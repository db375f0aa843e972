package view

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"slices"
)

var ErrUnknownTemplate = errors.New("view record references unknown template")

// recordHeader is the fixed part of the persisted view, little endian.
type recordHeader struct {
	Zoom       float64
	Rotation   float64
	PositionX  int64
	PositionY  int64
	ViewX      int32
	ViewY      int32
	DragX      int32
	DragY      int32
	Visibility int32
}

type visibilityRecord struct {
	Template int32
	Visible  bool
	Opacity  float32
}

// Save writes the camera and the template visibilities. Visibilities are
// written in template order and refer to templates by index.
func (v *MapView) Save(w io.Writer) error {
	type indexed struct {
		pos int
		vis *TemplateVisibility
	}
	entries := make([]indexed, 0, len(v.visibilities))
	for t, vis := range v.visibilities {
		entries = append(entries, indexed{pos: v.m.FindTemplateIndex(t), vis: vis})
	}
	slices.SortFunc(entries, func(a, b indexed) int { return a.pos - b.pos })

	header := recordHeader{
		Zoom:       v.zoom,
		Rotation:   v.rotation,
		PositionX:  v.positionX,
		PositionY:  v.positionY,
		ViewX:      int32(v.viewX),
		ViewY:      int32(v.viewY),
		DragX:      int32(v.dragOffset.X),
		DragY:      int32(v.dragOffset.Y),
		Visibility: int32(len(entries)),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing view header: %w", err)
	}
	for _, e := range entries {
		rec := visibilityRecord{Template: int32(e.pos), Visible: e.vis.Visible, Opacity: e.vis.Opacity}
		if err := binary.Write(w, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("writing template visibility: %w", err)
		}
	}
	return nil
}

// Load replaces the camera and the template visibilities with the record
// read from r. Template indices refer to the templates of the view's map,
// which must already be loaded. The view is unchanged on error.
func (v *MapView) Load(r io.Reader) error {
	var header recordHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("reading view header: %w", err)
	}
	if header.Visibility < 0 {
		return fmt.Errorf("reading view header: negative visibility count %d", header.Visibility)
	}
	if header.Zoom < ZoomOutLimit || header.Zoom > ZoomInLimit {
		return fmt.Errorf("reading view header: zoom %g out of range", header.Zoom)
	}

	// At most one visibility per template.
	if int(header.Visibility) > v.m.NumTemplates() {
		return fmt.Errorf("reading view header: %d visibilities for %d templates", header.Visibility, v.m.NumTemplates())
	}

	var records []visibilityRecord
	for i := range int(header.Visibility) {
		var rec visibilityRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("reading template visibility %d: %w", i, err)
		}
		if pos := int(rec.Template); pos < 0 || pos >= v.m.NumTemplates() {
			return fmt.Errorf("%w: index %d", ErrUnknownTemplate, pos)
		}
		records = append(records, rec)
	}

	v.zoom = header.Zoom
	v.rotation = header.Rotation
	v.positionX = header.PositionX
	v.positionY = header.PositionY
	v.viewX = int(header.ViewX)
	v.viewY = int(header.ViewY)
	v.dragOffset = image.Point{X: int(header.DragX), Y: int(header.DragY)}
	v.update()

	clear(v.visibilities)
	for _, rec := range records {
		vis := v.TemplateVisibility(v.m.Template(int(rec.Template)))
		vis.Visible = rec.Visible
		vis.Opacity = rec.Opacity
	}
	return nil
}

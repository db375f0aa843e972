package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

// JSONVersion is the version of the JSON interchange document.
const JSONVersion = 1

type JSONDocument struct {
	Version            int                `json:"version"`
	ID                 string             `json:"id"`
	Notes              string             `json:"notes,omitempty"`
	Colors             []JSONColor        `json:"colors"`
	Symbols            []JSONSymbol       `json:"symbols"`
	Templates          []JSONTemplate     `json:"templates"`
	FirstFrontTemplate int                `json:"firstFrontTemplate"`
	Layers             []JSONLayer        `json:"layers"`
	CurrentLayer       int                `json:"currentLayer"`
	View               JSONView           `json:"view"`
	Print              *JSONPrint         `json:"print,omitempty"`
	GPS                *JSONGPSProjection `json:"gps,omitempty"`
}

type JSONColor struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	C       float64 `json:"c"`
	M       float64 `json:"m"`
	Y       float64 `json:"y"`
	K       float64 `json:"k"`
	R       float64 `json:"r"`
	G       float64 `json:"g"`
	B       float64 `json:"b"`
	Opacity float64 `json:"opacity"`
}

type JSONSymbolType string

const (
	JSONSymbolPoint    JSONSymbolType = "Point"
	JSONSymbolLine     JSONSymbolType = "Line"
	JSONSymbolArea     JSONSymbolType = "Area"
	JSONSymbolText     JSONSymbolType = "Text"
	JSONSymbolCombined JSONSymbolType = "Combined"
)

// JSONSymbol carries the fields of every symbol type; only those of Type
// are used. Color and part references are positions, -1 for none.
type JSONSymbol struct {
	ID          string         `json:"id"`
	Type        JSONSymbolType `json:"type"`
	Name        string         `json:"name"`
	Number      string         `json:"number,omitempty"`
	Description string         `json:"description,omitempty"`
	Hidden      bool           `json:"hidden,omitempty"`
	Protected   bool           `json:"protected,omitempty"`
	Helper      bool           `json:"helper,omitempty"`

	Color       int   `json:"color"`
	InnerRadius int64 `json:"innerRadius,omitempty"`
	OuterWidth  int64 `json:"outerWidth,omitempty"`
	OuterColor  int   `json:"outerColor"`
	Rotatable   bool  `json:"rotatable,omitempty"`

	LineWidth   int64 `json:"lineWidth,omitempty"`
	Dashed      bool  `json:"dashed,omitempty"`
	DashLength  int64 `json:"dashLength,omitempty"`
	BreakLength int64 `json:"breakLength,omitempty"`

	FontFamily string `json:"fontFamily,omitempty"`
	FontSize   int64  `json:"fontSize,omitempty"`
	Bold       bool   `json:"bold,omitempty"`
	Italic     bool   `json:"italic,omitempty"`

	Parts []int `json:"parts,omitempty"`
}

type JSONTemplate struct {
	ID       string     `json:"id"`
	Path     string     `json:"path"`
	Extent   [4]float64 `json:"extent"`
	X        int64      `json:"x"`
	Y        int64      `json:"y"`
	Rotation float64    `json:"rotation"`
	ScaleX   float64    `json:"scaleX"`
	ScaleY   float64    `json:"scaleY"`
}

type JSONLayer struct {
	Name    string       `json:"name"`
	Objects []JSONObject `json:"objects"`
}

type JSONObjectType string

const (
	JSONObjectPoint JSONObjectType = "Point"
	JSONObjectPath  JSONObjectType = "Path"
	JSONObjectText  JSONObjectType = "Text"
)

// JSONObject stores coordinates as [x, y, flags] in 1/1000 mm.
type JSONObject struct {
	ID       string         `json:"id"`
	Type     JSONObjectType `json:"type"`
	Symbol   int            `json:"symbol"`
	Coords   [][3]int64     `json:"coords"`
	Text     string         `json:"text,omitempty"`
	Rotation float64        `json:"rotation,omitempty"`
}

type JSONView struct {
	Zoom      float64                  `json:"zoom"`
	Rotation  float64                  `json:"rotation"`
	PositionX int64                    `json:"positionX"`
	PositionY int64                    `json:"positionY"`
	Templates []JSONTemplateVisibility `json:"templates,omitempty"`
}

type JSONTemplateVisibility struct {
	Template int     `json:"template"`
	Visible  bool    `json:"visible"`
	Opacity  float32 `json:"opacity"`
}

type JSONPrint struct {
	Orientation   int     `json:"orientation"`
	Format        int     `json:"format"`
	DPI           float64 `json:"dpi"`
	ShowTemplates bool    `json:"showTemplates"`
	Center        bool    `json:"center"`
	Left          float64 `json:"left"`
	Top           float64 `json:"top"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
}

type JSONGPSProjection struct {
	CenterLatitude   float64 `json:"centerLatitude"`
	CenterLongitude  float64 `json:"centerLongitude"`
	ScaleDenominator int     `json:"scaleDenominator"`
}

// JSON is a text interchange format for the browser front end.
type JSON struct{}

func (JSON) ID() string           { return "json" }
func (JSON) Description() string  { return "OriMap JSON document" }
func (JSON) Extensions() []string { return []string{"json"} }
func (JSON) Magic() []byte        { return nil }
func (JSON) CanImport() bool      { return true }
func (JSON) CanExport() bool      { return true }

func (JSON) Export(w io.Writer, m *document.Map, v *view.MapView) error {
	enc := json.NewEncoder(w)
	return enc.Encode(ToJSONDocument(m, v))
}

func (JSON) Import(r io.Reader, m *document.Map, v *view.MapView) ([]string, error) {
	var doc JSONDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return FromJSONDocument(&doc, m, v)
}

// ToJSONDocument converts a map and its view to the interchange model.
func ToJSONDocument(m *document.Map, v *view.MapView) *JSONDocument {
	doc := &JSONDocument{
		Version:            JSONVersion,
		ID:                 m.ID,
		Notes:              m.Notes(),
		FirstFrontTemplate: m.FirstFrontTemplate(),
		CurrentLayer:       m.CurrentLayerIndex(),
	}
	for _, c := range m.Colors() {
		doc.Colors = append(doc.Colors, JSONColor{
			ID: c.ID, Name: c.Name,
			C: c.C, M: c.M, Y: c.Y, K: c.K,
			R: c.R, G: c.G, B: c.B, Opacity: c.Opacity,
		})
	}
	for _, sym := range m.Symbols() {
		doc.Symbols = append(doc.Symbols, toJSONSymbol(m, sym))
	}
	for _, t := range m.Templates() {
		doc.Templates = append(doc.Templates, JSONTemplate{
			ID:       t.ID,
			Path:     t.Path,
			Extent:   [4]float64{t.Extent.X, t.Extent.Y, t.Extent.Width, t.Extent.Height},
			X:        t.X,
			Y:        t.Y,
			Rotation: t.Rotation,
			ScaleX:   t.ScaleX,
			ScaleY:   t.ScaleY,
		})
	}
	for i := range m.NumLayers() {
		layer := m.Layer(i)
		jl := JSONLayer{Name: layer.Name(), Objects: []JSONObject{}}
		for _, obj := range layer.Objects() {
			jl.Objects = append(jl.Objects, toJSONObject(m, obj))
		}
		doc.Layers = append(doc.Layers, jl)
	}

	doc.View = JSONView{Zoom: v.Zoom(), Rotation: v.Rotation(), PositionX: v.PositionX(), PositionY: v.PositionY()}
	for i, t := range m.Templates() {
		if v.HasTemplateVisibility(t) {
			vis := v.TemplateVisibility(t)
			doc.View.Templates = append(doc.View.Templates, JSONTemplateVisibility{Template: i, Visible: vis.Visible, Opacity: vis.Opacity})
		}
	}

	if p, ok := m.PrintParameters(); ok {
		jp := JSONPrint(p)
		doc.Print = &jp
	}
	if m.AreGPSProjectionParametersSet() {
		gps := m.GPSProjectionParameters()
		doc.GPS = &JSONGPSProjection{gps.CenterLatitude, gps.CenterLongitude, gps.ScaleDenominator}
	}
	return doc
}

func toJSONSymbol(m *document.Map, sym document.Symbol) JSONSymbol {
	b := sym.Base()
	js := JSONSymbol{
		ID: b.ID, Name: b.Name, Number: b.Number, Description: b.Description,
		Hidden: b.Hidden, Protected: b.Protected, Helper: b.Helper,
		Color: -1, OuterColor: -1,
	}
	switch s := sym.(type) {
	case *document.PointSymbol:
		js.Type = JSONSymbolPoint
		js.InnerRadius, js.OuterWidth, js.Rotatable = s.InnerRadius, s.OuterWidth, s.Rotatable
		js.Color = int(colorIndex(m, s.InnerColor))
		js.OuterColor = int(colorIndex(m, s.OuterColor))
	case *document.LineSymbol:
		js.Type = JSONSymbolLine
		js.LineWidth, js.Dashed, js.DashLength, js.BreakLength = s.LineWidth, s.Dashed, s.DashLength, s.BreakLength
		js.Color = int(colorIndex(m, s.Color))
	case *document.AreaSymbol:
		js.Type = JSONSymbolArea
		js.Color = int(colorIndex(m, s.Color))
	case *document.TextSymbol:
		js.Type = JSONSymbolText
		js.FontFamily, js.FontSize, js.Bold, js.Italic = s.FontFamily, s.FontSize, s.Bold, s.Italic
		js.Color = int(colorIndex(m, s.Color))
	case *document.CombinedSymbol:
		js.Type = JSONSymbolCombined
		for _, part := range s.Parts {
			idx := -1
			if part != nil {
				idx = m.FindSymbolIndex(part)
			}
			js.Parts = append(js.Parts, idx)
		}
	}
	return js
}

func toJSONObject(m *document.Map, obj document.Object) JSONObject {
	jo := JSONObject{ID: obj.ID(), Symbol: -1}
	if sym := obj.Symbol(); sym != nil {
		jo.Symbol = m.FindSymbolIndex(sym)
	}
	for _, c := range obj.Coords() {
		jo.Coords = append(jo.Coords, [3]int64{c.NativeX(), c.NativeY(), int64(c.Flags())})
	}
	switch o := obj.(type) {
	case *document.PointObject:
		jo.Type, jo.Rotation = JSONObjectPoint, o.Rotation
	case *document.PathObject:
		jo.Type = JSONObjectPath
	case *document.TextObject:
		jo.Type, jo.Text, jo.Rotation = JSONObjectText, o.Text, o.Rotation
	}
	return jo
}

// FromJSONDocument fills the empty map m and its view v from doc.
func FromJSONDocument(doc *JSONDocument, m *document.Map, v *view.MapView) ([]string, error) {
	if doc.Version != JSONVersion {
		return nil, fmt.Errorf("unsupported version: %d", doc.Version)
	}
	if len(doc.Layers) == 0 || doc.CurrentLayer < 0 || doc.CurrentLayer >= len(doc.Layers) {
		return nil, fmt.Errorf("%w: %d layers, current %d", ErrCorrupt, len(doc.Layers), doc.CurrentLayer)
	}
	if doc.FirstFrontTemplate < 0 || doc.FirstFrontTemplate > len(doc.Templates) {
		return nil, fmt.Errorf("%w: first front template %d of %d", ErrCorrupt, doc.FirstFrontTemplate, len(doc.Templates))
	}
	if doc.ID != "" {
		m.ID = doc.ID
	}
	m.SetNotes(doc.Notes)
	if doc.Print != nil {
		m.SetPrintParameters(document.PrintParameters(*doc.Print))
	}
	if doc.GPS != nil {
		gps := m.GPSProjectionParameters()
		gps.CenterLatitude, gps.CenterLongitude, gps.ScaleDenominator = doc.GPS.CenterLatitude, doc.GPS.CenterLongitude, doc.GPS.ScaleDenominator
		m.SetGPSProjectionParameters(gps)
	}

	for i, jc := range doc.Colors {
		c := document.NewCMYKColor(jc.Name, jc.C, jc.M, jc.Y, jc.K)
		c.ID = jc.ID
		c.R, c.G, c.B, c.Opacity = jc.R, jc.G, jc.B, jc.Opacity
		m.AddColor(c, i)
	}
	color := func(idx int) (*document.Color, error) {
		if idx == -1 {
			return nil, nil
		}
		if idx < 0 || idx >= m.NumColors() {
			return nil, fmt.Errorf("%w: color index %d out of range", ErrCorrupt, idx)
		}
		return m.Color(idx), nil
	}

	var warnings []string
	for i, js := range doc.Symbols {
		sym, err := fromJSONSymbol(js, color)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		m.AddSymbol(sym, i)
	}
	for i, js := range doc.Symbols {
		if js.Type != JSONSymbolCombined {
			continue
		}
		combined := m.Symbol(i).(*document.CombinedSymbol)
		combined.Parts = make([]document.Symbol, len(js.Parts))
		for j, idx := range js.Parts {
			switch {
			case idx == -1:
			case idx < 0 || idx >= m.NumSymbols():
				warnings = append(warnings, fmt.Sprintf("symbol %q: part %d refers to missing symbol %d", js.Name, j, idx))
			default:
				combined.Parts[j] = m.Symbol(idx)
			}
		}
	}

	for i, jt := range doc.Templates {
		t := document.NewTemplate(jt.Path, geom.Rect{X: jt.Extent[0], Y: jt.Extent[1], Width: jt.Extent[2], Height: jt.Extent[3]})
		if jt.ID != "" {
			t.ID = jt.ID
		}
		t.X, t.Y, t.Rotation, t.ScaleX, t.ScaleY = jt.X, jt.Y, jt.Rotation, jt.ScaleX, jt.ScaleY
		m.AddTemplate(t, i)
	}
	m.SetFirstFrontTemplate(doc.FirstFrontTemplate)

	for i, jl := range doc.Layers {
		var layer *document.Layer
		if i == 0 {
			layer = m.Layer(0)
			layer.SetName(jl.Name)
		} else {
			layer = m.AddLayer(jl.Name, i)
		}
		for _, jo := range jl.Objects {
			obj, warning, err := fromJSONObject(m, jo)
			if err != nil {
				return nil, err
			}
			if warning != "" {
				warnings = append(warnings, warning)
			}
			layer.AddObject(obj, layer.NumObjects())
		}
	}
	m.SetCurrentLayerIndex(doc.CurrentLayer)

	if doc.View.Zoom != 0 {
		v.SetZoom(doc.View.Zoom)
	}
	v.SetRotation(doc.View.Rotation)
	v.SetPosition(doc.View.PositionX, doc.View.PositionY)
	for _, tv := range doc.View.Templates {
		if tv.Template < 0 || tv.Template >= m.NumTemplates() {
			return nil, fmt.Errorf("%w: index %d", view.ErrUnknownTemplate, tv.Template)
		}
		vis := v.TemplateVisibility(m.Template(tv.Template))
		vis.Visible, vis.Opacity = tv.Visible, tv.Opacity
	}
	return warnings, nil
}

func fromJSONSymbol(js JSONSymbol, color func(int) (*document.Color, error)) (document.Symbol, error) {
	var sym document.Symbol
	var err error
	switch js.Type {
	case JSONSymbolPoint:
		s := document.NewPointSymbol(js.Name)
		s.InnerRadius, s.OuterWidth, s.Rotatable = js.InnerRadius, js.OuterWidth, js.Rotatable
		if s.InnerColor, err = color(js.Color); err == nil {
			s.OuterColor, err = color(js.OuterColor)
		}
		sym = s
	case JSONSymbolLine:
		s := document.NewLineSymbol(js.Name)
		s.LineWidth, s.Dashed, s.DashLength, s.BreakLength = js.LineWidth, js.Dashed, js.DashLength, js.BreakLength
		s.Color, err = color(js.Color)
		sym = s
	case JSONSymbolArea:
		s := document.NewAreaSymbol(js.Name)
		s.Color, err = color(js.Color)
		sym = s
	case JSONSymbolText:
		s := document.NewTextSymbol(js.Name)
		s.FontFamily, s.FontSize, s.Bold, s.Italic = js.FontFamily, js.FontSize, js.Bold, js.Italic
		s.Color, err = color(js.Color)
		sym = s
	case JSONSymbolCombined:
		sym = document.NewCombinedSymbol(js.Name)
	default:
		return nil, fmt.Errorf("%w: unknown symbol type %q", ErrCorrupt, js.Type)
	}
	if err != nil {
		return nil, err
	}
	b := sym.Base()
	if js.ID != "" {
		b.ID = js.ID
	}
	b.Number, b.Description = js.Number, js.Description
	b.Hidden, b.Protected, b.Helper = js.Hidden, js.Protected, js.Helper
	return sym, nil
}

func fromJSONObject(m *document.Map, jo JSONObject) (document.Object, string, error) {
	coords := make([]geom.MapCoord, len(jo.Coords))
	for i, c := range jo.Coords {
		coord := geom.FromNative(c[0], c[1])
		for _, f := range []geom.CoordFlag{geom.FlagCurveStart, geom.FlagClosePoint, geom.FlagHolePoint, geom.FlagDashPoint} {
			coord = coord.WithFlag(f, geom.CoordFlag(c[2])&f != 0)
		}
		coords[i] = coord
	}

	var obj document.Object
	switch jo.Type {
	case JSONObjectPoint, JSONObjectText:
		if len(coords) != 1 {
			return nil, "", fmt.Errorf("%w: %s object %s has %d coordinates", ErrCorrupt, jo.Type, jo.ID, len(coords))
		}
		if jo.Type == JSONObjectPoint {
			p := document.NewPointObject(nil, coords[0])
			p.Rotation = jo.Rotation
			obj = p
		} else {
			t := document.NewTextObject(nil, coords[0], jo.Text)
			t.Rotation = jo.Rotation
			obj = t
		}
	case JSONObjectPath:
		obj = document.NewPathObject(nil, coords...)
	default:
		return nil, "", fmt.Errorf("%w: object %s has unknown type %q", ErrCorrupt, jo.ID, jo.Type)
	}
	if jo.ID != "" {
		document.WithID(obj, jo.ID)
	}

	builtins := document.Builtins()
	fallback := document.Symbol(builtins.UndefinedLine)
	if jo.Type == JSONObjectPoint {
		fallback = builtins.UndefinedPoint
	}
	switch {
	case jo.Symbol == -2:
		obj.SetSymbol(builtins.UndefinedPoint, true)
	case jo.Symbol == -3:
		obj.SetSymbol(builtins.UndefinedLine, true)
	case jo.Symbol >= 0 && jo.Symbol < m.NumSymbols():
		if !obj.SetSymbol(m.Symbol(jo.Symbol), false) {
			obj.SetSymbol(fallback, true)
			return obj, fmt.Sprintf("object %s: symbol %d does not fit a %s object", jo.ID, jo.Symbol, jo.Type), nil
		}
	default:
		obj.SetSymbol(fallback, true)
		return obj, fmt.Sprintf("object %s: missing symbol %d", jo.ID, jo.Symbol), nil
	}
	return obj, "", nil
}

package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

/*
Native file layout, little endian:

	[Header]       fixed size, see nativeHeader
	[String Table] uvarint count, then uvarint length + bytes per string
	[Body]         map properties, colors, symbols, templates, layers with
	               their objects, then the view record

Each layer is its name followed by the layer record: an int32 object count,
then per object an int32 type tag and the object payload.

Strings in the body are uvarint indices into the string table. Colors and
symbols are referenced by their int32 position, -1 for none. Objects use -2
and -3 for the builtin undefined point and line symbols.
*/

const (
	// NativeMagic is "OMAP" read as a little endian uint32.
	NativeMagic   uint32 = 0x50414D4F
	NativeVersion uint8  = 2
)

type nativeHeader struct {
	Magic              uint32
	Version            uint8
	Flags              uint8
	Reserved           [2]uint8
	ColorCount         uint32
	SymbolCount        uint32
	TemplateCount      uint32
	LayerCount         uint32
	CurrentLayer       uint32
	FirstFrontTemplate uint32
}

type gpsRecord struct {
	CenterLatitude   float64
	CenterLongitude  float64
	ScaleDenominator int32
}

type printRecord struct {
	Orientation   int32
	Format        int32
	DPI           float64
	ShowTemplates bool
	Center        bool
	Left          float64
	Top           float64
	Width         float64
	Height        float64
}

type imageDefaultsRecord struct {
	UseMetersPerPixel bool
	MetersPerPixel    float64
	DPI               float64
	Scale             float64
}

type colorRecord struct {
	C, M, Y, K float64
	R, G, B    float64
	Opacity    float64
}

type templateRecord struct {
	Extent   [4]float64
	X, Y     int64
	Rotation float64
	ScaleX   float64
	ScaleY   float64
}

const (
	symbolHidden uint8 = 1 << iota
	symbolProtected
	symbolHelper
)

// Native is the binary format of the editor.
type Native struct{}

func (Native) ID() string           { return "omap" }
func (Native) Description() string  { return "OriMap binary map" }
func (Native) Extensions() []string { return []string{"omap"} }
func (Native) CanImport() bool      { return true }
func (Native) CanExport() bool      { return true }

func (Native) Magic() []byte {
	return binary.LittleEndian.AppendUint32(nil, NativeMagic)
}

// ---- encoding ----

type nativeEncoder struct {
	strings   []string
	stringIdx map[string]uint64
	body      bytes.Buffer
}

func (e *nativeEncoder) internString(s string) uint64 {
	if idx, ok := e.stringIdx[s]; ok {
		return idx
	}
	idx := uint64(len(e.strings))
	e.strings = append(e.strings, s)
	e.stringIdx[s] = idx
	return idx
}

// put writes fixed size values. Writes to a bytes.Buffer cannot fail.
func (e *nativeEncoder) put(v any) { _ = binary.Write(&e.body, binary.LittleEndian, v) }

func (e *nativeEncoder) uvarint(v uint64) { e.body.Write(binary.AppendUvarint(nil, v)) }
func (e *nativeEncoder) str(s string)     { e.uvarint(e.internString(s)) }

func (Native) Export(w io.Writer, m *document.Map, v *view.MapView) error {
	e := &nativeEncoder{stringIdx: make(map[string]uint64)}

	e.str(m.ID)
	e.str(m.Notes())
	gps := m.GPSProjectionParameters()
	e.put(m.AreGPSProjectionParametersSet())
	e.put(gpsRecord{gps.CenterLatitude, gps.CenterLongitude, int32(gps.ScaleDenominator)})
	p, printSet := m.PrintParameters()
	e.put(printSet)
	e.put(printRecord{
		Orientation:   int32(p.Orientation),
		Format:        int32(p.Format),
		DPI:           p.DPI,
		ShowTemplates: p.ShowTemplates,
		Center:        p.Center,
		Left:          p.Left,
		Top:           p.Top,
		Width:         p.Width,
		Height:        p.Height,
	})
	d := m.ImageTemplateDefaults()
	e.put(imageDefaultsRecord{d.UseMetersPerPixel, d.MetersPerPixel, d.DPI, d.Scale})

	for _, c := range m.Colors() {
		e.str(c.ID)
		e.str(c.Name)
		e.put(colorRecord{c.C, c.M, c.Y, c.K, c.R, c.G, c.B, c.Opacity})
	}
	for _, sym := range m.Symbols() {
		e.putSymbol(m, sym)
	}
	for _, t := range m.Templates() {
		e.str(t.ID)
		e.str(t.Path)
		e.put(templateRecord{
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
		e.str(layer.Name())
		e.putLayer(m, layer)
	}
	if err := v.Save(&e.body); err != nil {
		return fmt.Errorf("writing view: %w", err)
	}

	header := nativeHeader{
		Magic:              NativeMagic,
		Version:            NativeVersion,
		ColorCount:         uint32(m.NumColors()),
		SymbolCount:        uint32(m.NumSymbols()),
		TemplateCount:      uint32(m.NumTemplates()),
		LayerCount:         uint32(m.NumLayers()),
		CurrentLayer:       uint32(m.CurrentLayerIndex()),
		FirstFrontTemplate: uint32(m.FirstFrontTemplate()),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := e.writeStringTable(w); err != nil {
		return fmt.Errorf("writing string table: %w", err)
	}
	if _, err := w.Write(e.body.Bytes()); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	return nil
}

func (e *nativeEncoder) writeStringTable(w io.Writer) error {
	var buf []byte
	buf = binary.AppendUvarint(buf, uint64(len(e.strings)))
	for _, s := range e.strings {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	_, err := w.Write(buf)
	return err
}

func colorIndex(m *document.Map, c *document.Color) int32 {
	if c == nil {
		return -1
	}
	return int32(m.FindColorIndex(c))
}

func (e *nativeEncoder) putSymbol(m *document.Map, sym document.Symbol) {
	b := sym.Base()
	e.put(uint8(sym.Type()))
	e.str(b.ID)
	e.str(b.Name)
	e.str(b.Number)
	e.str(b.Description)
	var flags uint8
	if b.Hidden {
		flags |= symbolHidden
	}
	if b.Protected {
		flags |= symbolProtected
	}
	if b.Helper {
		flags |= symbolHelper
	}
	e.put(flags)

	switch s := sym.(type) {
	case *document.PointSymbol:
		e.put(s.InnerRadius)
		e.put(colorIndex(m, s.InnerColor))
		e.put(s.OuterWidth)
		e.put(colorIndex(m, s.OuterColor))
		e.put(s.Rotatable)
	case *document.LineSymbol:
		e.put(s.LineWidth)
		e.put(colorIndex(m, s.Color))
		e.put(s.Dashed)
		e.put(s.DashLength)
		e.put(s.BreakLength)
	case *document.AreaSymbol:
		e.put(colorIndex(m, s.Color))
	case *document.TextSymbol:
		e.str(s.FontFamily)
		e.put(s.FontSize)
		e.put(s.Bold)
		e.put(s.Italic)
		e.put(colorIndex(m, s.Color))
	case *document.CombinedSymbol:
		e.uvarint(uint64(len(s.Parts)))
		for _, part := range s.Parts {
			idx := int32(-1)
			if part != nil {
				idx = int32(m.FindSymbolIndex(part))
			}
			e.put(idx)
		}
	}
}

func (e *nativeEncoder) putLayer(m *document.Map, layer *document.Layer) {
	e.put(int32(layer.NumObjects()))
	for _, obj := range layer.Objects() {
		e.putObject(m, obj)
	}
}

func (e *nativeEncoder) putObject(m *document.Map, obj document.Object) {
	e.put(int32(obj.Type()))
	e.str(obj.ID())
	symIdx := int32(-1)
	if sym := obj.Symbol(); sym != nil {
		symIdx = int32(m.FindSymbolIndex(sym))
	}
	e.put(symIdx)
	coords := obj.Coords()
	e.uvarint(uint64(len(coords)))
	for _, c := range coords {
		x, y := c.Raw()
		e.put([2]int64{x, y})
	}
	switch o := obj.(type) {
	case *document.PointObject:
		e.put(o.Rotation)
	case *document.TextObject:
		e.str(o.Text)
		e.put(o.Rotation)
	}
}

// ---- decoding ----

// nativeDecoder keeps the first error and turns later reads into no-ops,
// so the import code can check once per section.
type nativeDecoder struct {
	r       *bytes.Reader
	strings []string
	err     error
}

func (d *nativeDecoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
	}
}

func (d *nativeDecoder) get(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
}

func (d *nativeDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(d.r)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return v
}

// count reads an element count and rejects counts the remaining input
// cannot possibly hold.
func (d *nativeDecoder) count() int {
	return d.checkCount(d.uvarint())
}

// count32 is count for fixed width int32 counts.
func (d *nativeDecoder) count32() int {
	n := d.i32()
	if n < 0 {
		d.fail("negative count %d", n)
		return 0
	}
	return d.checkCount(uint64(n))
}

func (d *nativeDecoder) checkCount(n uint64) int {
	if d.err != nil {
		return 0
	}
	if n > uint64(d.r.Len()) {
		d.fail("count %d exceeds remaining %d bytes", n, d.r.Len())
		return 0
	}
	return int(n)
}

func (d *nativeDecoder) str() string {
	idx := d.uvarint()
	if d.err != nil {
		return ""
	}
	if idx >= uint64(len(d.strings)) {
		d.fail("string index %d out of range", idx)
		return ""
	}
	return d.strings[idx]
}

func (d *nativeDecoder) i32() int32 {
	var v int32
	d.get(&v)
	return v
}

func (d *nativeDecoder) i64() int64 {
	var v int64
	d.get(&v)
	return v
}

func (d *nativeDecoder) f64() float64 {
	var v float64
	d.get(&v)
	return v
}

func (d *nativeDecoder) boolean() bool {
	var v bool
	d.get(&v)
	return v
}

func (d *nativeDecoder) u8() uint8 {
	var v uint8
	d.get(&v)
	return v
}

func (d *nativeDecoder) readStringTable() {
	n := d.count()
	d.strings = make([]string, 0, n)
	for range n {
		size := d.count()
		if d.err != nil {
			return
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(d.r, buf); err != nil {
			d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
			return
		}
		d.strings = append(d.strings, string(buf))
	}
}

func (Native) Import(r io.Reader, m *document.Map, v *view.MapView) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := &nativeDecoder{r: bytes.NewReader(data)}

	var header nativeHeader
	d.get(&header)
	if d.err != nil {
		return nil, fmt.Errorf("reading header: %w", d.err)
	}
	if header.Magic != NativeMagic {
		return nil, fmt.Errorf("%w: invalid magic number %x", ErrCorrupt, header.Magic)
	}
	if header.Version != NativeVersion {
		return nil, fmt.Errorf("unsupported version: %d", header.Version)
	}
	if header.LayerCount == 0 || header.CurrentLayer >= header.LayerCount {
		return nil, fmt.Errorf("%w: layer count %d, current %d", ErrCorrupt, header.LayerCount, header.CurrentLayer)
	}
	if header.FirstFrontTemplate > header.TemplateCount {
		return nil, fmt.Errorf("%w: first front template %d of %d", ErrCorrupt, header.FirstFrontTemplate, header.TemplateCount)
	}
	d.readStringTable()
	if d.err != nil {
		return nil, fmt.Errorf("reading string table: %w", d.err)
	}

	var warnings []string
	d.readProperties(m)
	d.readColors(m, int(header.ColorCount))
	warnings = append(warnings, d.readSymbols(m, int(header.SymbolCount))...)
	d.readTemplates(m, int(header.TemplateCount), int(header.FirstFrontTemplate))
	warnings = append(warnings, d.readLayers(m, int(header.LayerCount))...)
	if d.err != nil {
		return nil, d.err
	}
	m.SetCurrentLayerIndex(int(header.CurrentLayer))

	if err := v.Load(d.r); err != nil {
		return nil, fmt.Errorf("reading view: %w", err)
	}
	return warnings, nil
}

func (d *nativeDecoder) readProperties(m *document.Map) {
	if id := d.str(); id != "" {
		m.ID = id
	}
	m.SetNotes(d.str())
	gpsSet := d.boolean()
	var gps gpsRecord
	d.get(&gps)
	printSet := d.boolean()
	var p printRecord
	d.get(&p)
	var img imageDefaultsRecord
	d.get(&img)
	if d.err != nil {
		return
	}
	if gpsSet {
		params := m.GPSProjectionParameters()
		params.CenterLatitude = gps.CenterLatitude
		params.CenterLongitude = gps.CenterLongitude
		params.ScaleDenominator = int(gps.ScaleDenominator)
		m.SetGPSProjectionParameters(params)
	}
	if printSet {
		m.SetPrintParameters(document.PrintParameters{
			Orientation:   int(p.Orientation),
			Format:        int(p.Format),
			DPI:           p.DPI,
			ShowTemplates: p.ShowTemplates,
			Center:        p.Center,
			Left:          p.Left,
			Top:           p.Top,
			Width:         p.Width,
			Height:        p.Height,
		})
	}
	m.SetImageTemplateDefaults(document.ImageTemplateDefaults(img))
}

func (d *nativeDecoder) readColors(m *document.Map, n int) {
	for i := range n {
		id, name := d.str(), d.str()
		var rec colorRecord
		d.get(&rec)
		if d.err != nil {
			return
		}
		c := document.NewCMYKColor(name, rec.C, rec.M, rec.Y, rec.K)
		c.ID = id
		c.R, c.G, c.B, c.Opacity = rec.R, rec.G, rec.B, rec.Opacity
		m.AddColor(c, i)
	}
}

func (d *nativeDecoder) color(m *document.Map) *document.Color {
	idx := d.i32()
	if d.err != nil || idx == -1 {
		return nil
	}
	if idx < 0 || int(idx) >= m.NumColors() {
		d.fail("color index %d out of range", idx)
		return nil
	}
	return m.Color(int(idx))
}

func (d *nativeDecoder) readSymbols(m *document.Map, n int) []string {
	var warnings []string
	type pendingParts struct {
		sym   *document.CombinedSymbol
		parts []int32
	}
	var pending []pendingParts

	for i := range n {
		kind := document.SymbolType(d.u8())
		id, name, number, description := d.str(), d.str(), d.str(), d.str()
		flags := d.u8()

		var sym document.Symbol
		switch kind {
		case document.SymbolPoint:
			s := document.NewPointSymbol(name)
			s.InnerRadius = d.i64()
			s.InnerColor = d.color(m)
			s.OuterWidth = d.i64()
			s.OuterColor = d.color(m)
			s.Rotatable = d.boolean()
			sym = s
		case document.SymbolLine:
			s := document.NewLineSymbol(name)
			s.LineWidth = d.i64()
			s.Color = d.color(m)
			s.Dashed = d.boolean()
			s.DashLength = d.i64()
			s.BreakLength = d.i64()
			sym = s
		case document.SymbolArea:
			s := document.NewAreaSymbol(name)
			s.Color = d.color(m)
			sym = s
		case document.SymbolText:
			s := document.NewTextSymbol(name)
			s.FontFamily = d.str()
			s.FontSize = d.i64()
			s.Bold = d.boolean()
			s.Italic = d.boolean()
			s.Color = d.color(m)
			sym = s
		case document.SymbolCombined:
			s := document.NewCombinedSymbol(name)
			parts := make([]int32, d.count())
			for j := range parts {
				parts[j] = d.i32()
			}
			pending = append(pending, pendingParts{sym: s, parts: parts})
			sym = s
		default:
			d.fail("symbol %d has unknown type %d", i, kind)
		}
		if d.err != nil {
			return warnings
		}

		b := sym.Base()
		b.ID, b.Number, b.Description = id, number, description
		b.Hidden = flags&symbolHidden != 0
		b.Protected = flags&symbolProtected != 0
		b.Helper = flags&symbolHelper != 0
		m.AddSymbol(sym, i)
	}

	for _, p := range pending {
		p.sym.Parts = make([]document.Symbol, len(p.parts))
		for j, idx := range p.parts {
			switch {
			case idx == -1:
			case idx < 0 || int(idx) >= m.NumSymbols():
				warnings = append(warnings, fmt.Sprintf("symbol %q: part %d refers to missing symbol %d", p.sym.Name, j, idx))
			default:
				p.sym.Parts[j] = m.Symbol(int(idx))
			}
		}
	}
	return warnings
}

func (d *nativeDecoder) readTemplates(m *document.Map, n, firstFront int) {
	for i := range n {
		id, path := d.str(), d.str()
		var rec templateRecord
		d.get(&rec)
		if d.err != nil {
			return
		}
		t := document.NewTemplate(path, geom.Rect{X: rec.Extent[0], Y: rec.Extent[1], Width: rec.Extent[2], Height: rec.Extent[3]})
		t.ID = id
		t.X, t.Y = rec.X, rec.Y
		t.Rotation, t.ScaleX, t.ScaleY = rec.Rotation, rec.ScaleX, rec.ScaleY
		m.AddTemplate(t, i)
	}
	if d.err == nil {
		m.SetFirstFrontTemplate(firstFront)
	}
}

func (d *nativeDecoder) readLayers(m *document.Map, n int) []string {
	var warnings []string
	for i := range n {
		name := d.str()
		var layer *document.Layer
		if i == 0 {
			layer = m.Layer(0)
			layer.SetName(name)
		} else {
			layer = m.AddLayer(name, i)
		}
		count := d.count32()
		for range count {
			obj, warning := d.readObject(m)
			if d.err != nil {
				return warnings
			}
			if warning != "" {
				warnings = append(warnings, warning)
			}
			layer.AddObject(obj, layer.NumObjects())
		}
	}
	return warnings
}

func (d *nativeDecoder) readObject(m *document.Map) (document.Object, string) {
	kind := document.ObjectType(d.i32())
	id := d.str()
	symIdx := d.i32()
	coords := make([]geom.MapCoord, d.count())
	for i := range coords {
		var raw [2]int64
		d.get(&raw)
		coords[i] = geom.FromRaw(raw[0], raw[1])
	}

	var obj document.Object
	switch kind {
	case document.ObjectPoint:
		rotation := d.f64()
		if len(coords) != 1 {
			d.fail("point object %s has %d coordinates", id, len(coords))
			return nil, ""
		}
		p := document.NewPointObject(nil, coords[0])
		p.Rotation = rotation
		obj = p
	case document.ObjectPath:
		obj = document.NewPathObject(nil, coords...)
	case document.ObjectText:
		text, rotation := d.str(), d.f64()
		if len(coords) != 1 {
			d.fail("text object %s has %d coordinates", id, len(coords))
			return nil, ""
		}
		t := document.NewTextObject(nil, coords[0], text)
		t.Rotation = rotation
		obj = t
	default:
		d.fail("object %s has unknown type %d", id, kind)
	}
	if d.err != nil {
		return nil, ""
	}
	document.WithID(obj, id)

	builtins := document.Builtins()
	var warning string
	switch {
	case symIdx == -2:
		obj.SetSymbol(builtins.UndefinedPoint, true)
	case symIdx == -3:
		obj.SetSymbol(builtins.UndefinedLine, true)
	case symIdx >= 0 && int(symIdx) < m.NumSymbols():
		if !obj.SetSymbol(m.Symbol(int(symIdx)), false) {
			warning = fmt.Sprintf("object %s: symbol %d does not fit a %s object", id, symIdx, kind)
		}
	default:
		warning = fmt.Sprintf("object %s: missing symbol %d", id, symIdx)
	}
	if warning != "" {
		if kind == document.ObjectPoint {
			obj.SetSymbol(builtins.UndefinedPoint, true)
		} else {
			obj.SetSymbol(builtins.UndefinedLine, true)
		}
	}
	return obj, warning
}

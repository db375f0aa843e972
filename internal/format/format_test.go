package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

// objectSummary compares objects across maps, where symbols are distinct
// pointers.
type objectSummary struct {
	ID     string
	Type   document.ObjectType
	Symbol string
	Coords []geom.MapCoord
}

func summarize(m *document.Map) [][]objectSummary {
	var out [][]objectSummary
	for i := range m.NumLayers() {
		var layer []objectSummary
		for _, obj := range m.Layer(i).Objects() {
			layer = append(layer, objectSummary{obj.ID(), obj.Type(), obj.Symbol().Base().Name, obj.Coords()})
		}
		out = append(out, layer)
	}
	return out
}

func sampleWithExtras(t *testing.T) (*document.Map, *view.MapView) {
	t.Helper()
	m := document.NewSampleMap()
	control := m.Symbol(4)
	label := m.Symbol(5)
	m.AddSymbol(document.NewCombinedSymbol("Control with number", control, label), m.NumSymbols())

	back := document.NewTemplate("ortho.png", geom.Rect{Width: 400, Height: 300})
	back.X, back.Y, back.Rotation = 1000, -2000, 0.1
	front := document.NewTemplate("course.gpx", geom.Rect{Width: 10, Height: 10})
	m.AddTemplate(back, 0)
	m.AddTemplate(front, 1)
	m.SetFirstFrontTemplate(1)

	second := m.AddLayer("course", 1)
	second.AddObject(document.NewPointObject(control, geom.NewMapCoord(5, 5)), 0)
	m.SetCurrentLayerIndex(1)
	m.SetNotes("Spring relay")
	gps := m.GPSProjectionParameters()
	gps.CenterLatitude, gps.CenterLongitude = 48.1, 11.5
	m.SetGPSProjectionParameters(gps)

	v := view.New(m)
	v.SetZoom(4)
	v.SetRotation(0.25)
	v.SetPosition(12000, -3000)
	vis := v.TemplateVisibility(back)
	vis.Visible, vis.Opacity = true, 0.5
	return m, v
}

func assertSameDocument(t *testing.T, m *document.Map, v *view.MapView, loaded *document.Map, lv *view.MapView) {
	t.Helper()
	assert.Equal(t, m.ID, loaded.ID)
	assert.Equal(t, m.Notes(), loaded.Notes())
	assert.Equal(t, summarize(m), summarize(loaded))
	assert.Equal(t, m.CurrentLayerIndex(), loaded.CurrentLayerIndex())
	assert.Equal(t, m.Layer(1).Name(), loaded.Layer(1).Name())

	require.Equal(t, m.NumColors(), loaded.NumColors())
	for i, c := range m.Colors() {
		assert.Equal(t, c.Hex(), loaded.Color(i).Hex())
		assert.Equal(t, c.ID, loaded.Color(i).ID)
	}
	require.Equal(t, m.NumSymbols(), loaded.NumSymbols())
	for i, s := range m.Symbols() {
		assert.Equal(t, s.Base().ID, loaded.Symbol(i).Base().ID)
		assert.Equal(t, s.Type(), loaded.Symbol(i).Type())
	}
	combined := loaded.Symbol(m.NumSymbols() - 1).(*document.CombinedSymbol)
	require.Len(t, combined.Parts, 2)
	assert.Same(t, loaded.Symbol(4), combined.Parts[0])

	require.Equal(t, 2, loaded.NumTemplates())
	assert.Equal(t, 1, loaded.FirstFrontTemplate())
	assert.Equal(t, int64(-2000), loaded.Template(0).Y)
	assert.InDelta(t, 0.1, loaded.Template(0).Rotation, 1e-9)

	assert.InDelta(t, 48.1, loaded.GPSProjectionParameters().CenterLatitude, 1e-9)
	assert.True(t, loaded.AreGPSProjectionParametersSet())

	assert.InDelta(t, v.Zoom(), lv.Zoom(), 1e-9)
	assert.InDelta(t, v.Rotation(), lv.Rotation(), 1e-9)
	assert.Equal(t, v.PositionX(), lv.PositionX())
	assert.True(t, lv.IsTemplateVisible(loaded.Template(0)))
	assert.InDelta(t, 0.5, lv.TemplateVisibility(loaded.Template(0)).Opacity, 1e-6)
	assert.False(t, lv.HasTemplateVisibility(loaded.Template(1)))

	assert.False(t, loaded.HasUnsavedChanges())
}

func TestNativeRoundTrip(t *testing.T) {
	m, v := sampleWithExtras(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "", m, v))
	assert.False(t, m.HasUnsavedChanges())
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("OMAP")))

	loaded, lv, warnings, err := Load(bytes.NewReader(buf.Bytes()), "whatever.bin")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assertSameDocument(t, m, v, loaded, lv)
}

func TestJSONRoundTrip(t *testing.T) {
	m, v := sampleWithExtras(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "json", m, v))

	loaded, lv, warnings, err := Load(bytes.NewReader(buf.Bytes()), "course.JSON")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assertSameDocument(t, m, v, loaded, lv)
}

func TestRegistryLookup(t *testing.T) {
	assert.Equal(t, "omap", Default.DefaultFormat().ID())
	assert.Equal(t, "json", Default.FindByExtension("a/b/map.Json").ID())
	assert.Nil(t, Default.FindByExtension("map"))
	assert.Nil(t, Default.FindByID("ocd"))
	assert.Equal(t, "omap", Default.Sniff(Native{}.Magic()).ID())
	assert.Nil(t, Default.Sniff([]byte("{}")))
	assert.Panics(t, func() { Default.Register(JSON{}) })
}

func TestLoadUnknownFormat(t *testing.T) {
	m, v, warnings, err := Load(bytes.NewReader([]byte("hello")), "notes.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Nil(t, m)
	assert.Nil(t, v)
	assert.Nil(t, warnings)

	err = Save(&bytes.Buffer{}, "ocd", document.NewMap(), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadTruncatedNative(t *testing.T) {
	m, v := sampleWithExtras(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "omap", m, v))

	for _, n := range []int{4, 12, buf.Len() / 2, buf.Len() - 1} {
		loaded, lv, _, err := Load(bytes.NewReader(buf.Bytes()[:n]), "cut.omap")
		assert.Error(t, err, "prefix of %d bytes", n)
		assert.Nil(t, loaded)
		assert.Nil(t, lv)
	}
}

func TestLoadNativeWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "", document.NewMap(), view.New(document.NewMap())))
	data := buf.Bytes()
	data[4] = 99

	_, _, _, err := Load(bytes.NewReader(data), "new.omap")
	assert.Error(t, err)
}

func TestLoadCorruptJSON(t *testing.T) {
	_, _, _, err := Load(bytes.NewReader([]byte(`{"version": 1, "layers": [`)), "broken.json")
	assert.ErrorIs(t, err, ErrCorrupt)

	_, _, _, err = Load(bytes.NewReader([]byte(`{"version": 1, "layers": []}`)), "empty.json")
	assert.ErrorIs(t, err, ErrCorrupt)

	_, _, _, err = Load(bytes.NewReader([]byte(`{"version": 7, "layers": [{"name": "x"}]}`)), "future.json")
	assert.Error(t, err)
}

func TestJSONMissingSymbolFallsBack(t *testing.T) {
	doc := `{
		"version": 1,
		"layers": [{"name": "default", "objects": [
			{"id": "a", "type": "Point", "symbol": 9, "coords": [[1000, 2000, 0]]},
			{"id": "b", "type": "Path", "symbol": -3, "coords": [[0, 0, 0], [5000, 0, 0]]}
		]}],
		"view": {"zoom": 2}
	}`
	m, v, warnings, err := Load(bytes.NewReader([]byte(doc)), "old.json")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "missing symbol 9")

	builtins := document.Builtins()
	layer := m.Layer(0)
	assert.Same(t, builtins.UndefinedPoint, layer.Object(0).Symbol())
	assert.Same(t, builtins.UndefinedLine, layer.Object(1).Symbol())
	assert.Equal(t, geom.NewMapCoord(1, 2), layer.Object(0).Coords()[0])
	assert.InDelta(t, 2.0, v.Zoom(), 1e-9)
}

func TestJSONUnknownTemplateVisibility(t *testing.T) {
	doc := `{"version": 1, "layers": [{"name": "x"}], "view": {"templates": [{"template": 3, "visible": true}]}}`
	_, _, _, err := Load(bytes.NewReader([]byte(doc)), "vis.json")
	assert.ErrorIs(t, err, view.ErrUnknownTemplate)
}

func TestUndefinedSymbolSurvivesNativeRoundTrip(t *testing.T) {
	m := document.NewMap()
	sym := document.NewLineSymbol("Ditch")
	m.AddSymbol(sym, 0)
	m.AddObject(document.NewPathObject(sym, geom.NewMapCoord(0, 0), geom.NewMapCoord(1, 1)), 0)
	// An object whose symbol was swapped for one foreign to the map cannot
	// be saved by index, so build the file from JSON instead.
	var buf bytes.Buffer
	require.NoError(t, JSON{}.Export(&buf, m, view.New(m)))
	patched := bytes.Replace(buf.Bytes(), []byte(`"symbol":0`), []byte(`"symbol":5`), 1)

	loaded, lv, warnings, err := Load(bytes.NewReader(patched), "x.json")
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	var native bytes.Buffer
	require.NoError(t, Save(&native, "omap", loaded, lv))
	again, _, warnings, err := Load(&native, "x.omap")
	require.NoError(t, err)
	assert.Empty(t, warnings, "the undefined builtin survives the native round trip")
	assert.Same(t, document.Builtins().UndefinedLine, again.Layer(0).Object(0).Symbol())
}

func TestLayerRecordLayout(t *testing.T) {
	m := document.NewMap()
	sym := document.NewPointSymbol("Boulder")
	m.AddSymbol(sym, 0)
	obj := document.NewPointObject(sym, geom.NewMapCoord(1, 2))
	obj.Rotation = 0.5
	m.Layer(0).AddObject(obj, 0)

	e := &nativeEncoder{stringIdx: make(map[string]uint64)}
	e.putLayer(m, m.Layer(0))
	b := e.body.Bytes()

	require.Len(t, b, 4+4+1+4+1+16+8)
	assert.Equal(t, []byte{1, 0, 0, 0}, b[0:4], "int32 object count")
	assert.Equal(t, []byte{byte(document.ObjectPoint), 0, 0, 0}, b[4:8], "int32 type tag")
	assert.Equal(t, []byte{0}, b[8:9], "object id string index")
	assert.Equal(t, []byte{0, 0, 0, 0}, b[9:13], "symbol index")
	assert.Equal(t, []byte{1}, b[13:14], "coordinate count")
	assert.Equal(t, []string{obj.ID()}, e.strings)

	// Prefix the layer name, string index 1.
	d := &nativeDecoder{r: bytes.NewReader(append([]byte{1}, b...)), strings: []string{obj.ID(), "terrain"}}
	loaded := document.NewMap()
	loaded.AddSymbol(document.NewPointSymbol("Boulder"), 0)
	warnings := d.readLayers(loaded, 1)
	require.NoError(t, d.err)
	assert.Empty(t, warnings)
	require.Equal(t, 1, loaded.Layer(0).NumObjects())
	got := loaded.Layer(0).Object(0)
	assert.Equal(t, "terrain", loaded.Layer(0).Name())
	assert.Equal(t, obj.ID(), got.ID())
	assert.Equal(t, obj.Coords(), got.Coords())
}

func TestLayerRecordRejectsHugeCount(t *testing.T) {
	data := []byte{0, 0xff, 0xff, 0xff, 0x7f}
	d := &nativeDecoder{r: bytes.NewReader(data), strings: []string{"terrain"}}
	d.readLayers(document.NewMap(), 1)
	assert.ErrorIs(t, d.err, ErrCorrupt)

	d = &nativeDecoder{r: bytes.NewReader([]byte{0, 0xff, 0xff, 0xff, 0xff}), strings: []string{"terrain"}}
	d.readLayers(document.NewMap(), 1)
	assert.ErrorIs(t, d.err, ErrCorrupt)
}

package document

import "math"

// GPSProjectionParameters anchor the map on the globe. Map coordinates are
// projected onto a plane tangent to the WGS84 ellipsoid at the center.
type GPSProjectionParameters struct {
	CenterLatitude   float64 // degrees
	CenterLongitude  float64 // degrees
	ScaleDenominator int     // map scale, e.g. 15000 for 1:15000

	metersPerDegreeLat float64
	metersPerDegreeLon float64
}

const (
	wgs84SemiMajor    = 6378137.0
	wgs84Eccentricity = 0.0818191908426
)

func NewGPSProjectionParameters() *GPSProjectionParameters {
	p := &GPSProjectionParameters{ScaleDenominator: 15000}
	p.Update()
	return p
}

// Update recomputes the derived curvature values after the center changed.
func (p *GPSProjectionParameters) Update() {
	lat := p.CenterLatitude * math.Pi / 180
	e2 := wgs84Eccentricity * wgs84Eccentricity
	w := math.Sqrt(1 - e2*math.Sin(lat)*math.Sin(lat))
	meridional := wgs84SemiMajor * (1 - e2) / (w * w * w)
	normal := wgs84SemiMajor / w
	p.metersPerDegreeLat = meridional * math.Pi / 180
	p.metersPerDegreeLon = normal * math.Cos(lat) * math.Pi / 180
}

// ToMap converts a WGS84 position to map millimeters. Map y grows south.
func (p *GPSProjectionParameters) ToMap(lat, lon float64) (x, y float64) {
	east := (lon - p.CenterLongitude) * p.metersPerDegreeLon
	north := (lat - p.CenterLatitude) * p.metersPerDegreeLat
	mmPerMeter := 1000 / float64(p.ScaleDenominator)
	return east * mmPerMeter, -north * mmPerMeter
}

// ToGPS is the inverse of ToMap.
func (p *GPSProjectionParameters) ToGPS(x, y float64) (lat, lon float64) {
	metersPerMM := float64(p.ScaleDenominator) / 1000
	lat = p.CenterLatitude - y*metersPerMM/p.metersPerDegreeLat
	if p.metersPerDegreeLon == 0 {
		return lat, p.CenterLongitude
	}
	lon = p.CenterLongitude + x*metersPerMM/p.metersPerDegreeLon
	return lat, lon
}

// PrintParameters describe the print area in map millimeters.
type PrintParameters struct {
	Orientation   int
	Format        int
	DPI           float64
	ShowTemplates bool
	Center        bool
	Left          float64
	Top           float64
	Width         float64
	Height        float64
}

// ImageTemplateDefaults are the georeferencing defaults proposed when an
// image template is opened.
type ImageTemplateDefaults struct {
	UseMetersPerPixel bool
	MetersPerPixel    float64
	DPI               float64
	Scale             float64
}

func (m *Map) GPSProjectionParameters() GPSProjectionParameters { return *m.gps }

// AreGPSProjectionParametersSet reports whether they were set explicitly
// rather than left at their defaults.
func (m *Map) AreGPSProjectionParametersSet() bool { return m.gpsSet }

func (m *Map) SetGPSProjectionParameters(p GPSProjectionParameters) {
	*m.gps = p
	m.gps.Update()
	m.gpsSet = true
	m.emit(Event{Kind: EventGPSProjectionChanged, Index: -1})
	m.SetHasUnsavedChanges(true)
}

// PrintParameters returns the print setup and whether it was ever set.
func (m *Map) PrintParameters() (PrintParameters, bool) { return m.print, m.printSet }

func (m *Map) SetPrintParameters(p PrintParameters) {
	if p != m.print {
		m.SetHasUnsavedChanges(true)
	}
	m.print = p
	m.printSet = true
}

func (m *Map) ImageTemplateDefaults() ImageTemplateDefaults { return m.imageDefaults }

func (m *Map) SetImageTemplateDefaults(d ImageTemplateDefaults) { m.imageDefaults = d }

func (m *Map) Notes() string { return m.notes }

func (m *Map) SetNotes(notes string) {
	if notes != m.notes {
		m.notes = notes
		m.SetHasUnsavedChanges(true)
	}
}

// ImageTemplateScale returns the size of one image pixel in map
// millimeters according to the image template defaults.
func (m *Map) ImageTemplateScale() float64 {
	d := m.imageDefaults
	scale := float64(m.gps.ScaleDenominator)
	switch {
	case d.UseMetersPerPixel && d.MetersPerPixel > 0 && scale > 0:
		return d.MetersPerPixel * 1000 / scale
	case d.DPI > 0 && d.Scale > 0 && scale > 0:
		return 25.4 / d.DPI * d.Scale / scale
	default:
		return 25.4 / 96
	}
}

package symbolset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/document"
)

func TestDefaultApplies(t *testing.T) {
	m := document.NewMap()
	require.NoError(t, Default().Apply(m))

	assert.Equal(t, 6, m.NumColors())
	assert.Equal(t, 10, m.NumSymbols())

	footpath, ok := m.Symbol(2).(*document.LineSymbol)
	require.True(t, ok)
	assert.Equal(t, "Footpath", footpath.Base().Name)
	assert.Equal(t, "507", footpath.Base().Number)
	assert.Equal(t, int64(250), footpath.LineWidth)
	assert.True(t, footpath.Dashed)
	assert.Equal(t, int64(2000), footpath.DashLength)
	assert.Same(t, m.Color(1), footpath.Color)

	combined, ok := m.Symbol(5).(*document.CombinedSymbol)
	require.True(t, ok)
	require.Len(t, combined.Parts, 2)
	assert.Same(t, m.Symbol(3), combined.Parts[0])
	assert.Same(t, m.Symbol(4), combined.Parts[1])

	text, ok := m.Symbol(9).(*document.TextSymbol)
	require.True(t, ok)
	assert.Equal(t, int64(4000), text.FontSize)
	assert.Equal(t, "Arial", text.FontFamily)
}

func TestColorReferencesResolveAgainstMap(t *testing.T) {
	m := document.NewSampleMap()
	colors := m.NumColors()
	set, err := Parse(strings.NewReader(`
name: extra
symbols:
  - type: area
    name: Marsh
    color: Blue
    helper: true
`))
	require.NoError(t, err)
	require.NoError(t, set.Apply(m))

	assert.Equal(t, colors, m.NumColors())
	marsh := m.Symbol(m.NumSymbols() - 1).(*document.AreaSymbol)
	assert.Equal(t, "Blue", marsh.Color.Name)
	assert.True(t, marsh.Base().Helper)
}

func TestApplyErrorsLeaveMapUnchanged(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  error
	}{
		{
			name: "unknown color",
			yaml: "symbols:\n  - {type: line, name: A, color: Pink}\n",
			err:  ErrUnknownColor,
		},
		{
			name: "unknown part",
			yaml: "symbols:\n  - {type: combined, name: A, parts: [B]}\n",
			err:  ErrUnknownSymbol,
		},
		{
			name: "unknown type",
			yaml: "symbols:\n  - {type: hatch, name: A}\n",
			err:  ErrUnknownType,
		},
		{
			name: "duplicate symbol",
			yaml: "symbols:\n  - {type: area, name: A}\n  - {type: area, name: A}\n",
			err:  ErrDuplicateName,
		},
		{
			name: "duplicate color",
			yaml: "colors:\n  - {name: A, rgb: [1, 0, 0]}\n  - {name: A, rgb: [0, 1, 0]}\n",
			err:  ErrDuplicateName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := document.NewMap()
			set, err := Parse(strings.NewReader(tt.yaml))
			require.NoError(t, err)

			err = set.Apply(m)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 0, m.NumColors())
			assert.Equal(t, 0, m.NumSymbols())
		})
	}
}

func TestColorComponents(t *testing.T) {
	set, err := Parse(strings.NewReader(`
colors:
  - name: Red
    rgb: [1, 0, 0]
    opacity: 0.5
  - name: Broken
    rgb: [1, 0]
`))
	require.NoError(t, err)

	red, err := set.Colors[0].build()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, red.Opacity, 1e-9)
	assert.InDelta(t, 1.0, red.M, 1e-9)

	_, err = set.Colors[1].build()
	assert.Error(t, err)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("colours: []\n"))
	assert.Error(t, err)
}

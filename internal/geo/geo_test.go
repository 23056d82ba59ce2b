package geo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateName(t *testing.T) {
	tx, lower, blank, foreign := "TX", "ca", "  ", "Italy"
	assert.Equal(t, "Texas", StateName(&tx))
	assert.Equal(t, "California", StateName(&lower))
	assert.Equal(t, model.OnlineState, StateName(nil))
	assert.Equal(t, model.OnlineState, StateName(&blank))
	assert.Equal(t, "Italy", StateName(&foreign))

	assert.True(t, IsUSState("Ohio"))
	assert.False(t, IsUSState("Italy"))
}

func TestPadZip(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2138", "02138", true},
		{"2138.0", "02138", true},
		{"58523", "58523", true},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		got, ok := PadZip(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestReadZipTable(t *testing.T) {
	data := "zip,latitude,longitude\n2138,42.38,-71.13\n78701,30.27,-97.74\nbad,1,2\n12345,x,2\n"
	table, err := ReadZipTable(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, table, 2)

	p, ok := table.Locate("02138")
	require.True(t, ok)
	assert.InDelta(t, 42.38, p.Lat, 1e-9)
	_, ok = table.Locate("99999")
	assert.False(t, ok)
}

func TestLoadZipTable_MissingFile(t *testing.T) {
	table, err := LoadZipTable(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Empty(t, table)

	path := filepath.Join(t.TempDir(), "z.csv")
	require.NoError(t, os.WriteFile(path, []byte("zip,lat,lon\n10001,40.75,-73.99\n"), 0600))
	table, err = LoadZipTable(path)
	require.NoError(t, err)
	assert.Len(t, table, 1)
}

func TestRoundedRectangle(t *testing.T) {
	spec := RectSpec{Center: Point{Lat: 10, Lon: 20}, Width: 4, Height: 2, Radius: 0.5, CornerSegments: 4}
	ring := RoundedRectangle(spec)

	require.Len(t, ring, 4*5+1)
	assert.Equal(t, ring[0], ring[len(ring)-1], "ring must be closed")
	for _, p := range ring {
		assert.LessOrEqual(t, p.Lat, 11.0+1e-9)
		assert.GreaterOrEqual(t, p.Lat, 9.0-1e-9)
		assert.LessOrEqual(t, p.Lon, 22.0+1e-9)
		assert.GreaterOrEqual(t, p.Lon, 18.0-1e-9)
	}

	// Radius larger than half the short side is clamped.
	clamped := RoundedRectangle(RectSpec{Width: 2, Height: 2, Radius: 5, CornerSegments: 1})
	for _, p := range clamped {
		assert.LessOrEqual(t, p.Lat*p.Lat+p.Lon*p.Lon, 1.0+1e-9)
	}
	assert.NotEmpty(t, RoundedRectangle(OnlineRegion))
}

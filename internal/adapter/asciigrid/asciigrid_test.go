package asciigrid

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lakerise/internal/domain"
)

const sample = `ncols 3
nrows 2
xllcorner 100
yllcorner 200
cellsize 30
nodata_value -9999
1 2 -9999
4 5 6
`

func TestDecode(t *testing.T) {
	t.Run("parses header and flips rows south-up", func(t *testing.T) {
		g, err := Decode(strings.NewReader(sample), 2016, domain.BandGreen)
		require.NoError(t, err)

		assert.Equal(t, 2, g.Rows)
		assert.Equal(t, 3, g.Cols)
		assert.Equal(t, 100.0, g.Xo)
		assert.Equal(t, 200.0, g.Yo)
		assert.Equal(t, 30.0, g.CellSize)
		assert.Equal(t, 2016, g.Year)
		assert.Equal(t, domain.BandGreen, g.Band)

		// File row 0 is the north row, grid row 1.
		assert.Equal(t, 1.0, g.At(1, 0))
		assert.True(t, domain.IsNoData(g.At(1, 2)))
		assert.Equal(t, 4.0, g.At(0, 0))
		assert.Equal(t, 6.0, g.At(0, 2))
	})

	t.Run("nodata header is optional", func(t *testing.T) {
		in := "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 10\n7 8\n"
		g, err := Decode(strings.NewReader(in), 2016, domain.BandDEM)
		require.NoError(t, err)
		assert.Equal(t, 7.0, g.At(0, 0))
		assert.Equal(t, 8.0, g.At(0, 1))
	})

	t.Run("rejects short rows", func(t *testing.T) {
		in := "ncols 3\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 10\n1 2\n"
		_, err := Decode(strings.NewReader(in), 2016, domain.BandDEM)
		assert.Error(t, err)
	})

	t.Run("rejects missing rows", func(t *testing.T) {
		in := "ncols 2\nnrows 3\nxllcorner 0\nyllcorner 0\ncellsize 10\n1 2\n"
		_, err := Decode(strings.NewReader(in), 2016, domain.BandDEM)
		assert.Error(t, err)
	})

	t.Run("rejects out-of-order header", func(t *testing.T) {
		in := "nrows 1\nncols 2\nxllcorner 0\nyllcorner 0\ncellsize 10\n1 2\n"
		_, err := Decode(strings.NewReader(in), 2016, domain.BandDEM)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive cellsize", func(t *testing.T) {
		in := "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 0\n1 2\n"
		_, err := Decode(strings.NewReader(in), 2016, domain.BandDEM)
		assert.Error(t, err)
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := domain.Frame{Xo: -50, Yo: 75, CellSize: 12.5, Rows: 3, Cols: 4}
	g := domain.NewGrid(f, 2025, domain.BandSWIR)
	g.Set(0.125, 0, 0)
	g.Set(-3.5, 1, 2)
	g.Set(domain.NoData, 2, 3)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g))

	back, err := Decode(&buf, 2025, domain.BandSWIR)
	require.NoError(t, err)

	assert.Equal(t, g.Frame, back.Frame)
	assert.Equal(t, 0.125, back.At(0, 0))
	assert.Equal(t, -3.5, back.At(1, 2))
	assert.True(t, domain.IsNoData(back.At(2, 3)))
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.asc")
	f := domain.Frame{CellSize: 30, Rows: 2, Cols: 2}
	g := domain.NewGrid(f, 0, domain.BandDEM)
	g.Set(9.5, 1, 1)

	require.NoError(t, WriteFile(path, g))
	back, err := ReadFile(path, 0, domain.BandDEM)
	require.NoError(t, err)
	assert.Equal(t, 9.5, back.At(1, 1))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.asc"), 0, domain.BandDEM)
	assert.Error(t, err)
}

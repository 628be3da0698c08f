package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampDEM builds a DEM whose elevation equals the row index in meters, a
// shore sloping up away from the bottom edge.
func rampDEM(f Frame) *Grid {
	dem := NewGrid(f, 0, BandDEM)
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			dem.Set(float64(r), r, c)
		}
	}
	return dem
}

func TestLevelTrendProject(t *testing.T) {
	tr := LevelTrend{Intercept: -400, Slope: 0.2}
	assert.InDelta(t, 6.0, tr.Project(2030), 1e-9)
	assert.InDelta(t, 5.0, tr.Project(2025), 1e-9)
}

func TestShorelineLevel(t *testing.T) {
	f := testFrame(20, 20, 10)
	dem := rampDEM(f)

	t.Run("median of boundary samples", func(t *testing.T) {
		// Square spanning rows 2..8; the vertex cells sit in rows 2 and 8.
		s := Shoreline{Year: 2016, Geom: rect(20, 20, 80, 80)}
		level, err := ShorelineLevel(dem, s)
		require.NoError(t, err)
		assert.InDelta(t, 5, level, 1e-9)
	})

	t.Run("no valid samples fails", func(t *testing.T) {
		nodata := NewGrid(f, 0, BandDEM)
		nodata.Fill(NoData)
		s := Shoreline{Year: 2016, Geom: rect(20, 20, 80, 80)}
		_, err := ShorelineLevel(nodata, s)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("rejects non-DEM grid", func(t *testing.T) {
		s := Shoreline{Year: 2016, Geom: rect(20, 20, 80, 80)}
		_, err := ShorelineLevel(gridOf(f, 0, BandGreen, 1), s)
		assert.ErrorIs(t, err, ErrMissingBand)
	})
}

func TestFitLevelTrend(t *testing.T) {
	f := testFrame(30, 30, 10)
	dem := rampDEM(f)

	t.Run("rising shorelines fit a positive slope", func(t *testing.T) {
		shorelines := []Shoreline{
			{Year: 2007, Geom: rect(0, 0, 290, 40)},  // vertex rows 0, 4
			{Year: 2016, Geom: rect(0, 0, 290, 80)},  // vertex rows 0, 8
			{Year: 2025, Geom: rect(0, 0, 290, 120)}, // vertex rows 0, 12
		}
		tr, err := FitLevelTrend(dem, shorelines)
		require.NoError(t, err)

		assert.Positive(t, tr.Slope)
		assert.Equal(t, []int{2007, 2016, 2025}, tr.Years)
		assert.Greater(t, tr.Project(2030), tr.Project(2025))
	})

	t.Run("one year is not a trend", func(t *testing.T) {
		_, err := FitLevelTrend(dem, []Shoreline{{Year: 2025, Geom: rect(0, 0, 100, 100)}})
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestSimulateShoreline(t *testing.T) {
	f := testFrame(20, 20, 10)
	dem := rampDEM(f)
	cfg := VectorizeConfig{MinAreaM2: 100}

	t.Run("floods everything at or below the level", func(t *testing.T) {
		s, err := SimulateShoreline(dem, 5, cfg, 2030)
		require.NoError(t, err)
		assert.Equal(t, 2030, s.Year)
		// Rows 0..5 inclusive, 20 columns, 100 m² cells.
		assert.InDelta(t, 6*20*100, s.AreaM2, 1e-6)
	})

	t.Run("higher level floods at least as much", func(t *testing.T) {
		lo, err := SimulateShoreline(dem, 3, cfg, 2030)
		require.NoError(t, err)
		hi, err := SimulateShoreline(dem, 9, cfg, 2030)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, hi.AreaM2, lo.AreaM2)
	})

	t.Run("level below the terrain yields no shoreline", func(t *testing.T) {
		_, err := SimulateShoreline(dem, -1, cfg, 2030)
		assert.ErrorIs(t, err, ErrEmptyShoreline)
	})
}

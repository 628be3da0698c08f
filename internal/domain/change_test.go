package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectChange(t *testing.T) {
	early := Shoreline{Year: 2007, Geom: rect(0, 0, 100, 100), AreaM2: 10_000}
	late := Shoreline{Year: 2016, Geom: rect(50, 0, 150, 100), AreaM2: 10_000}

	t.Run("growth and shrink partition the symmetric difference", func(t *testing.T) {
		ch, err := DetectChange(early, late)
		require.NoError(t, err)

		assert.Equal(t, 2007, ch.YearEarly)
		assert.Equal(t, 2016, ch.YearLate)
		assert.InDelta(t, 5000, ch.GrowthM2, 1e-6)
		assert.InDelta(t, 5000, ch.ShrinkM2, 1e-6)
		assert.InDelta(t, 0, ch.NetDeltaM2, 1e-6)

		inter := polyArea(late.Geom.Intersection(early.Geom))
		union := polyArea(late.Geom.Union(early.Geom))
		assert.InDelta(t, union, ch.GrowthM2+ch.ShrinkM2+inter, 1e-6)
	})

	t.Run("pure expansion has no shrink", func(t *testing.T) {
		bigger := Shoreline{Year: 2025, Geom: rect(-10, -10, 110, 110), AreaM2: 14_400}
		ch, err := DetectChange(early, bigger)
		require.NoError(t, err)

		assert.InDelta(t, 4400, ch.GrowthM2, 1e-6)
		assert.InDelta(t, 0, ch.ShrinkM2, 1e-6)
		assert.InDelta(t, 4400, ch.NetDeltaM2, 1e-6)
	})

	t.Run("rejects non-increasing years", func(t *testing.T) {
		_, err := DetectChange(late, early)
		assert.Error(t, err)
	})

	t.Run("rejects empty geometry", func(t *testing.T) {
		_, err := DetectChange(Shoreline{Year: 2007}, late)
		assert.ErrorIs(t, err, ErrEmptyShoreline)
	})
}

func TestChangeSeries(t *testing.T) {
	s2007 := Shoreline{Year: 2007, Geom: rect(0, 0, 100, 100), AreaM2: 10_000}
	s2016 := Shoreline{Year: 2016, Geom: rect(0, 0, 120, 100), AreaM2: 12_000}
	s2025 := Shoreline{Year: 2025, Geom: rect(0, 0, 150, 100), AreaM2: 15_000}

	t.Run("pairs consecutive years after sorting", func(t *testing.T) {
		changes, err := ChangeSeries([]Shoreline{s2025, s2007, s2016})
		require.NoError(t, err)
		require.Len(t, changes, 2)

		assert.Equal(t, 2007, changes[0].YearEarly)
		assert.Equal(t, 2016, changes[0].YearLate)
		assert.InDelta(t, 2000, changes[0].GrowthM2, 1e-6)

		assert.Equal(t, 2016, changes[1].YearEarly)
		assert.Equal(t, 2025, changes[1].YearLate)
		assert.InDelta(t, 3000, changes[1].GrowthM2, 1e-6)
	})

	t.Run("needs at least two years", func(t *testing.T) {
		_, err := ChangeSeries([]Shoreline{s2007})
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

// TestChangeFromMasks runs the raster path end to end: two masks where the
// late year adds a strip of cells, vectorized then differenced.
func TestChangeFromMasks(t *testing.T) {
	f := testFrame(20, 20, 10)

	earlyMask := NewMask(f, 2007)
	maskRect(earlyMask, 5, 15, 5, 12)
	lateMask := NewMask(f, 2025)
	maskRect(lateMask, 5, 15, 5, 16) // four extra columns, 10 rows

	cfg := VectorizeConfig{MinAreaM2: 100}
	early, err := Vectorize(earlyMask, cfg)
	require.NoError(t, err)
	late, err := Vectorize(lateMask, cfg)
	require.NoError(t, err)

	ch, err := DetectChange(early, late)
	require.NoError(t, err)

	assert.InDelta(t, 4*10*100, ch.GrowthM2, 1e-6)
	assert.InDelta(t, 0, ch.ShrinkM2, 1e-6)
	assert.InDelta(t, ch.GrowthM2, ch.NetDeltaM2, 1e-6)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lakeScenario builds a frame where water has always covered the low rows:
// elevation rises with the row index, and the water masks flood rows below
// the given level per year.
type lakeScenario struct {
	frame  Frame
	layers *FeatureLayers
	masks  map[int]*Mask
}

func newLakeScenario(t *testing.T) *lakeScenario {
	t.Helper()
	f := testFrame(12, 12, 10)
	dem := rampDEM(f)

	slope, err := Slope(dem)
	require.NoError(t, err)

	masks := map[int]*Mask{}
	dist := map[int]*Grid{}
	for year, level := range map[int]int{2007: 3, 2016: 4, 2025: 5} {
		m := NewMask(f, year)
		maskRect(m, 0, level+1, 0, f.Cols)
		masks[year] = m
		dist[year] = DistanceToWater(m)
	}
	// The scenario year reuses the latest observed distance layer.
	dist[2030] = dist[2025]

	rainfall := map[int]float64{}
	for y := 2004; y <= 2030; y++ {
		rainfall[y] = 100 + float64(y-2004)
	}

	return &lakeScenario{
		frame: f,
		masks: masks,
		layers: &FeatureLayers{
			Elevation: dem,
			Slope:     slope,
			VegTrend:  gridOf(f, 0, BandVegTrend, -0.01),
			Distance:  dist,
			Rainfall:  rainfall,
			Lookback:  3,
		},
	}
}

func TestBuildTrainingSet(t *testing.T) {
	sc := newLakeScenario(t)
	years := []int{2025, 2007, 2016}

	t.Run("one sample per pixel per year", func(t *testing.T) {
		ts, err := BuildTrainingSet(sc.layers, sc.masks, years)
		require.NoError(t, err)

		n, p := ts.X.Dims()
		assert.Equal(t, 3*12*12, n)
		assert.Equal(t, len(FeatureNames), p)
		assert.Equal(t, []int{2007, 2016, 2025}, ts.Years, "years sorted")

		var pos int
		for _, v := range ts.Y {
			if v == 1 {
				pos++
			}
		}
		assert.Equal(t, (4+5+6)*12, pos, "flooded rows across the three years")
	})

	t.Run("missing mask fails", func(t *testing.T) {
		_, err := BuildTrainingSet(sc.layers, sc.masks, []int{2007, 1999})
		assert.Error(t, err)
	})

	t.Run("all-water labels are degenerate", func(t *testing.T) {
		flooded := NewMask(sc.frame, 2016)
		maskRect(flooded, 0, sc.frame.Rows, 0, sc.frame.Cols)
		_, err := BuildTrainingSet(sc.layers, map[int]*Mask{2016: flooded}, []int{2016})
		assert.ErrorIs(t, err, ErrDegenerateLabels)
	})
}

func TestTrainHoldout(t *testing.T) {
	sc := newLakeScenario(t)
	ts, err := BuildTrainingSet(sc.layers, sc.masks, []int{2007, 2016, 2025})
	require.NoError(t, err)

	t.Run("withholds the holdout year and beats chance", func(t *testing.T) {
		model, ev, err := TrainHoldout(NewLogistic(42), ts, 2025)
		require.NoError(t, err)

		assert.Equal(t, []int{2007, 2016}, model.TrainYears)
		assert.Equal(t, "train-2007-2016", model.Version)
		assert.Equal(t, 2025, ev.HoldoutYear)
		assert.Equal(t, 12*12, ev.Samples)
		assert.Greater(t, ev.Accuracy, 0.8, "elevation separates water cleanly")
		assert.Greater(t, ev.BalancedAccuracy, 0.7)
	})

	t.Run("holdout year without samples fails", func(t *testing.T) {
		_, _, err := TrainHoldout(NewLogistic(42), ts, 1999)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestPredictSurfaceAndRiskZones(t *testing.T) {
	sc := newLakeScenario(t)
	ts, err := BuildTrainingSet(sc.layers, sc.masks, []int{2007, 2016, 2025})
	require.NoError(t, err)
	model, _, err := TrainHoldout(NewLogistic(42), ts, 2025)
	require.NoError(t, err)

	prob, err := PredictSurface(model, sc.layers, 2030)
	require.NoError(t, err)

	t.Run("probabilities follow the terrain", func(t *testing.T) {
		assert.Equal(t, BandProbability, prob.Band)
		assert.Equal(t, 2030, prob.Year)
		low := prob.At(0, 6)
		high := prob.At(11, 6)
		assert.Greater(t, low, high, "low ground floods before high ground")
	})

	t.Run("risk zones cover the low rows", func(t *testing.T) {
		zones, err := RiskZones(prob, 0.6, VectorizeConfig{MinAreaM2: 100})
		require.NoError(t, err)
		assert.Equal(t, 2030, zones.Year)
		assert.Positive(t, zones.AreaM2)
	})

	t.Run("threshold outside the open interval fails", func(t *testing.T) {
		_, err := RiskZones(prob, 0, VectorizeConfig{})
		assert.Error(t, err)
		_, err = RiskZones(prob, 1, VectorizeConfig{})
		assert.Error(t, err)
	})

	t.Run("wrong band fails", func(t *testing.T) {
		_, err := RiskZones(sc.layers.Elevation, 0.5, VectorizeConfig{})
		assert.ErrorIs(t, err, ErrMissingBand)
	})
}

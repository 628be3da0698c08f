package domain

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LevelTrend is a fitted linear trend of representative shoreline elevation
// versus year. Ordinary least squares is used; the fit is deterministic for
// a given input set.
type LevelTrend struct {
	Intercept float64
	Slope     float64 // meters of water level per year
	Years     []int   // historical years the trend was fitted on
}

// Project extrapolates the trend to the given year.
func (t LevelTrend) Project(year int) float64 {
	return t.Intercept + t.Slope*float64(year)
}

// ShorelineLevel samples the DEM at the vertices of every shoreline ring and
// returns the median elevation. The median is robust against the occasional
// stray DEM pixel along the boundary.
func ShorelineLevel(dem *Grid, s Shoreline) (float64, error) {
	if dem.Band != BandDEM {
		return 0, fmt.Errorf("shoreline level: operand is %q: %w", dem.Band, ErrMissingBand)
	}
	var samples []float64
	for _, ring := range s.Geom {
		for _, pt := range ring {
			r, c := dem.CellAt(pt)
			if v := dem.At(r, c); !IsNoData(v) {
				samples = append(samples, v)
			}
		}
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("year %d: no valid DEM samples along shoreline: %w", s.Year, ErrInsufficientData)
	}
	sort.Float64s(samples)
	mid := len(samples) / 2
	if len(samples)%2 == 1 {
		return samples[mid], nil
	}
	return (samples[mid-1] + samples[mid]) / 2, nil
}

// FitLevelTrend fits the elevation-versus-year trend over the historical
// shorelines. Fewer than two years cannot constrain a trend and fail with
// ErrInsufficientData rather than extrapolating from one point.
func FitLevelTrend(dem *Grid, shorelines []Shoreline) (LevelTrend, error) {
	if len(shorelines) < 2 {
		return LevelTrend{}, fmt.Errorf("level trend needs ≥2 years, got %d: %w",
			len(shorelines), ErrInsufficientData)
	}

	ss := make([]Shoreline, len(shorelines))
	copy(ss, shorelines)
	sort.Slice(ss, func(i, j int) bool { return ss[i].Year < ss[j].Year })

	xs := make([]float64, 0, len(ss))
	ys := make([]float64, 0, len(ss))
	years := make([]int, 0, len(ss))
	for _, s := range ss {
		level, err := ShorelineLevel(dem, s)
		if err != nil {
			return LevelTrend{}, err
		}
		xs = append(xs, float64(s.Year))
		ys = append(ys, level)
		years = append(years, s.Year)
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return LevelTrend{Intercept: alpha, Slope: beta, Years: years}, nil
}

// SimulateShoreline derives the predicted shoreline for a projected water
// level by thresholding the DEM (elevation ≤ level) and passing the result
// through the standard vectorizer cleanup.
func SimulateShoreline(dem *Grid, level float64, cfg VectorizeConfig, year int) (Shoreline, error) {
	if dem.Band != BandDEM {
		return Shoreline{}, fmt.Errorf("simulate shoreline: operand is %q: %w", dem.Band, ErrMissingBand)
	}
	m := NewMask(dem.Frame, year)
	for r := 0; r < dem.Rows; r++ {
		for c := 0; c < dem.Cols; c++ {
			v := dem.At(r, c)
			if !IsNoData(v) && v <= level {
				m.Set(true, r, c)
			}
		}
	}
	return Vectorize(m, cfg)
}

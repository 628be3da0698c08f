package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slope derives a slope-magnitude grid from a DEM using central differences
// (one-sided at the grid border), in meters of rise per meter of run.
func Slope(dem *Grid) (*Grid, error) {
	if dem.Band != BandDEM {
		return nil, fmt.Errorf("slope: operand is %q: %w", dem.Band, ErrMissingBand)
	}
	out := NewGrid(dem.Frame, dem.Year, BandSlope)
	for r := 0; r < dem.Rows; r++ {
		for c := 0; c < dem.Cols; c++ {
			if IsNoData(dem.At(r, c)) {
				out.Set(NoData, r, c)
				continue
			}
			dzdx, okx := gradient(dem, r, c, 0, 1)
			dzdy, oky := gradient(dem, r, c, 1, 0)
			if !okx || !oky {
				out.Set(NoData, r, c)
				continue
			}
			out.Set(math.Hypot(dzdx, dzdy), r, c)
		}
	}
	return out, nil
}

// gradient estimates the partial derivative at (r, c) along (dr, dc),
// falling back to a one-sided difference at the border or next to no-data.
func gradient(g *Grid, r, c, dr, dc int) (float64, bool) {
	at := func(rr, cc int) (float64, bool) {
		if rr < 0 || rr >= g.Rows || cc < 0 || cc >= g.Cols {
			return 0, false
		}
		v := g.At(rr, cc)
		return v, !IsNoData(v)
	}
	prev, okP := at(r-dr, c-dc)
	next, okN := at(r+dr, c+dc)
	cur := g.At(r, c)
	switch {
	case okP && okN:
		return (next - prev) / (2 * g.CellSize), true
	case okN:
		return (next - cur) / g.CellSize, true
	case okP:
		return (cur - prev) / g.CellSize, true
	default:
		return 0, false
	}
}

// DistanceToWater computes the exact Euclidean distance, in meters, from
// each cell to the nearest water cell of the mask, using the two-pass
// lower-envelope-of-parabolas transform. Water cells have distance zero.
func DistanceToWater(m *Mask) *Grid {
	const inf = math.MaxFloat64 / 4

	// Squared distances, initialized to 0 on water and +inf elsewhere.
	d := make([]float64, m.Rows*m.Cols)
	for i, b := range m.Bits {
		if !b {
			d[i] = inf
		}
	}

	// Pass 1: columns.
	col := make([]float64, m.Rows)
	for c := 0; c < m.Cols; c++ {
		for r := 0; r < m.Rows; r++ {
			col[r] = d[r*m.Cols+c]
		}
		edt1d(col)
		for r := 0; r < m.Rows; r++ {
			d[r*m.Cols+c] = col[r]
		}
	}
	// Pass 2: rows.
	for r := 0; r < m.Rows; r++ {
		edt1d(d[r*m.Cols : (r+1)*m.Cols])
	}

	out := NewGrid(m.Frame, m.Year, BandDistance)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Set(math.Sqrt(d[r*m.Cols+c])*m.CellSize, r, c)
		}
	}
	return out
}

// edt1d replaces f with the 1D squared-distance transform
// d(p) = min_q ((p−q)² + f(q)), computed via the lower envelope of parabolas.
func edt1d(f []float64) {
	n := len(f)
	d := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		for s <= z[k] {
			k--
			s = ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
	copy(f, d)
}

// RainfallAggregate sums the regional rainfall series over the lookback
// window (year−lookback, year]. At least one observation must fall inside
// the window.
func RainfallAggregate(series map[int]float64, year, lookback int) (float64, error) {
	if lookback < 1 {
		return 0, fmt.Errorf("rainfall lookback %d must be ≥1", lookback)
	}
	var sum float64
	var n int
	for y := year - lookback + 1; y <= year; y++ {
		if v, ok := series[y]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("no rainfall observations in (%d, %d]: %w",
			year-lookback, year, ErrInsufficientData)
	}
	return sum, nil
}

// VegetationTrend fits a per-pixel least-squares slope of the vegetation
// index across years. Pixels with fewer than two valid observations carry
// no-data. At least two aligned grids are required.
func VegetationTrend(series []*Grid) (*Grid, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("vegetation trend needs ≥2 years, got %d: %w",
			len(series), ErrInsufficientData)
	}
	base := series[0]
	for _, g := range series[1:] {
		if err := checkAligned(base.Frame, g.Frame, "vegetation trend"); err != nil {
			return nil, err
		}
	}

	out := NewGrid(base.Frame, 0, BandVegTrend)
	for r := 0; r < base.Rows; r++ {
		for c := 0; c < base.Cols; c++ {
			var sx, sy, sxx, sxy float64
			var n int
			for _, g := range series {
				v := g.At(r, c)
				if IsNoData(v) {
					continue
				}
				x := float64(g.Year)
				sx += x
				sy += v
				sxx += x * x
				sxy += x * v
				n++
			}
			if n < 2 {
				out.Set(NoData, r, c)
				continue
			}
			fn := float64(n)
			denom := fn*sxx - sx*sx
			if denom == 0 {
				out.Set(NoData, r, c)
				continue
			}
			out.Set((fn*sxy-sx*sy)/denom, r, c)
		}
	}
	return out, nil
}

// FeatureLayers bundles the per-pixel predictor layers of the water
// classifier: static terrain layers, the per-year distance-to-shoreline
// layers, and the regional rainfall series.
type FeatureLayers struct {
	Elevation *Grid
	Slope     *Grid
	VegTrend  *Grid
	Distance  map[int]*Grid   // keyed by year
	Rainfall  map[int]float64 // annual regional rainfall, mm
	Lookback  int             // rainfall lookback window, years
}

// FeatureNames lists the columns of the feature matrix, in order.
var FeatureNames = []string{
	"elevation", "slope", "distance_to_shoreline", "rainfall_aggregate", "vegetation_trend",
}

// Matrix assembles the feature matrix for one year: one row per pixel whose
// features are all valid, columns ordered as FeatureNames. It also returns
// the flat cell index of each row so predictions can be written back.
func (l *FeatureLayers) Matrix(year int) (*mat.Dense, []int, error) {
	dist, ok := l.Distance[year]
	if !ok {
		return nil, nil, fmt.Errorf("no distance layer for year %d: %w", year, ErrMissingBand)
	}
	for _, g := range []*Grid{l.Slope, l.VegTrend, dist} {
		if err := checkAligned(l.Elevation.Frame, g.Frame, "feature layers"); err != nil {
			return nil, nil, err
		}
	}
	rain, err := RainfallAggregate(l.Rainfall, year, l.Lookback)
	if err != nil {
		return nil, nil, err
	}

	f := l.Elevation.Frame
	rows := make([]float64, 0, f.Rows*f.Cols*len(FeatureNames))
	idx := make([]int, 0, f.Rows*f.Cols)
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			e := l.Elevation.At(r, c)
			s := l.Slope.At(r, c)
			d := dist.At(r, c)
			v := l.VegTrend.At(r, c)
			if IsNoData(e) || IsNoData(s) || IsNoData(d) || IsNoData(v) {
				continue
			}
			rows = append(rows, e, s, d, rain, v)
			idx = append(idx, r*f.Cols+c)
		}
	}
	if len(idx) == 0 {
		return nil, nil, fmt.Errorf("year %d: no pixels with complete features: %w", year, ErrNoDataExcessive)
	}
	return mat.NewDense(len(idx), len(FeatureNames), rows), idx, nil
}

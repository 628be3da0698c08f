package domain

import "fmt"

// WaterIndex computes the normalized green/SWIR water index per pixel:
// (green − swir) / (green + swir). Pixels where either band is no-data, or
// where the denominator is zero, carry the no-data sentinel.
func WaterIndex(green, swir *Grid) (*Grid, error) {
	if green.Band != BandGreen {
		return nil, fmt.Errorf("water index: green operand is %q: %w", green.Band, ErrMissingBand)
	}
	if swir.Band != BandSWIR {
		return nil, fmt.Errorf("water index: swir operand is %q: %w", swir.Band, ErrMissingBand)
	}
	if err := checkAligned(green.Frame, swir.Frame, "water index"); err != nil {
		return nil, err
	}

	idx := NewGrid(green.Frame, green.Year, BandWaterIndex)
	for r := 0; r < green.Rows; r++ {
		for c := 0; c < green.Cols; c++ {
			g, s := green.At(r, c), swir.At(r, c)
			if IsNoData(g) || IsNoData(s) || g+s == 0 {
				idx.Set(NoData, r, c)
				continue
			}
			idx.Set((g-s)/(g+s), r, c)
		}
	}
	return idx, nil
}

// ThresholdWater converts a water-index grid into a binary water mask.
// A pixel is water iff its index is ≥ threshold, it is not flagged in the
// cloud mask, and it is not no-data. cloud may be nil when the scene carries
// no cloud flags. The threshold is a configuration input; this function only
// guarantees monotonic inclusion (a higher threshold never adds water).
func ThresholdWater(index *Grid, cloud *Mask, threshold float64) (*Mask, error) {
	if index.Band != BandWaterIndex {
		return nil, fmt.Errorf("threshold: operand is %q: %w", index.Band, ErrMissingBand)
	}
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("threshold %g outside [-1, 1]", threshold)
	}
	if cloud != nil {
		if err := checkAligned(index.Frame, cloud.Frame, "cloud mask"); err != nil {
			return nil, err
		}
	}

	m := NewMask(index.Frame, index.Year)
	for r := 0; r < index.Rows; r++ {
		for c := 0; c < index.Cols; c++ {
			v := index.At(r, c)
			if IsNoData(v) || v < threshold {
				continue
			}
			if cloud != nil && cloud.At(r, c) {
				continue
			}
			m.Set(true, r, c)
		}
	}
	return m, nil
}

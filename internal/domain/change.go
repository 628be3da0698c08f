package domain

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
)

// Change holds the geometric difference between two years' shorelines.
// Growth is the late extent minus the early extent; Shrink the reverse.
// Growth and Shrink are disjoint, and together with the intersection they
// reconstruct the union of both inputs (up to geometric tolerance).
type Change struct {
	YearEarly int
	YearLate  int

	Growth geom.Polygonal // nil when the lake did not grow
	Shrink geom.Polygonal // nil when the lake did not shrink

	AreaEarlyM2 float64
	AreaLateM2  float64
	GrowthM2    float64
	ShrinkM2    float64
	// NetDeltaM2 = AreaLateM2 − AreaEarlyM2.
	NetDeltaM2 float64
}

// DetectChange computes growth and shrink zones between two shoreline years.
func DetectChange(early, late Shoreline) (Change, error) {
	if early.Year >= late.Year {
		return Change{}, fmt.Errorf("change %d→%d: years not increasing", early.Year, late.Year)
	}
	if len(early.Geom) == 0 || len(late.Geom) == 0 {
		return Change{}, fmt.Errorf("change %d→%d: %w", early.Year, late.Year, ErrEmptyShoreline)
	}

	growth := late.Geom.Difference(early.Geom)
	shrink := early.Geom.Difference(late.Geom)

	ch := Change{
		YearEarly:   early.Year,
		YearLate:    late.Year,
		Growth:      growth,
		Shrink:      shrink,
		AreaEarlyM2: early.AreaM2,
		AreaLateM2:  late.AreaM2,
		GrowthM2:    polyArea(growth),
		ShrinkM2:    polyArea(shrink),
		NetDeltaM2:  late.AreaM2 - early.AreaM2,
	}
	return ch, nil
}

// ChangeSeries computes changes for each consecutive year pair. The input is
// sorted by year; at least two shorelines are required.
func ChangeSeries(shorelines []Shoreline) ([]Change, error) {
	if len(shorelines) < 2 {
		return nil, fmt.Errorf("change detection needs ≥2 years, got %d: %w",
			len(shorelines), ErrInsufficientData)
	}
	ss := make([]Shoreline, len(shorelines))
	copy(ss, shorelines)
	sort.Slice(ss, func(i, j int) bool { return ss[i].Year < ss[j].Year })

	changes := make([]Change, 0, len(ss)-1)
	for i := 1; i < len(ss); i++ {
		ch, err := DetectChange(ss[i-1], ss[i])
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

// polyArea returns the area of p, treating a nil (empty) result of a clipping
// operation as zero.
func polyArea(p geom.Polygonal) float64 {
	if p == nil {
		return 0
	}
	return p.Area()
}

package domain

import (
	"fmt"
	"time"

	"github.com/ctessum/geom"
)

// VectorizeConfig carries the cleanup parameters of the vectorizer. The
// values are deployment calibration, not constants the vectorizer invents.
type VectorizeConfig struct {
	// MinAreaM2 discards connected components below this area as sensor
	// noise.
	MinAreaM2 float64
	// CloseRadius is the disk radius, in cells, of the morphological close
	// applied before component extraction. 0 disables the close.
	CloseRadius int
	// TileSize bounds the working-set size of the close for large grids;
	// 0 processes the grid in one piece.
	TileSize int
}

// Shoreline is the dissolved water extent for one year: a single multi-ring
// polygon whose interior rings are islands.
type Shoreline struct {
	Year       int
	Geom       geom.Polygon
	AreaM2     float64
	ProducedAt time.Time
}

// Vectorize converts a binary water mask into a cleaned Shoreline:
// morphological close, 4-connected component extraction, minimum-area noise
// filtering, then a dissolve of the survivors into one polygon. The output is
// valid (constructed exclusively through polygon-clipping unions) and
// deterministic for a given mask and configuration.
func Vectorize(m *Mask, cfg VectorizeConfig) (Shoreline, error) {
	closed := CloseTiled(m, cfg.CloseRadius, cfg.TileSize)

	var kept []geom.Polygonal
	for _, comp := range components(closed) {
		p := componentPolygon(closed, comp)
		if p == nil || p.Area() < cfg.MinAreaM2 {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return Shoreline{}, fmt.Errorf("year %d: %w", m.Year, ErrEmptyShoreline)
	}

	dissolved := kept[0]
	for _, p := range kept[1:] {
		dissolved = dissolved.Union(p)
	}
	area := dissolved.Area()
	if area <= 0 {
		return Shoreline{}, fmt.Errorf("year %d: zero area after dissolve: %w", m.Year, ErrEmptyShoreline)
	}

	var rings geom.Polygon
	for _, p := range dissolved.Polygons() {
		rings = append(rings, p...)
	}
	return Shoreline{
		Year:       m.Year,
		Geom:       rings,
		AreaM2:     area,
		ProducedAt: clock.Now(),
	}, nil
}

// components labels 4-connected set cells in row-major order and returns each
// component as a sorted slice of flat cell indices. The scan order makes
// labeling deterministic; the resulting geometry is independent of it.
func components(m *Mask) [][]int {
	seen := make([]bool, len(m.Bits))
	var comps [][]int
	var stack []int
	for start, b := range m.Bits {
		if !b || seen[start] {
			continue
		}
		var comp []int
		stack = append(stack[:0], start)
		seen[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, i)
			r, c := i/m.Cols, i%m.Cols
			for _, n := range [][2]int{{r - 1, c}, {r + 1, c}, {r, c - 1}, {r, c + 1}} {
				if n[0] < 0 || n[0] >= m.Rows || n[1] < 0 || n[1] >= m.Cols {
					continue
				}
				j := n[0]*m.Cols + n[1]
				if m.Bits[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// componentPolygon unions the cell rectangles of one component into a single
// polygon. Horizontal runs of cells collapse into one rectangle each before
// the union, and enclosed non-water cells become interior rings.
func componentPolygon(m *Mask, comp []int) geom.Polygonal {
	inComp := make(map[int]bool, len(comp))
	minIdx, maxIdx := comp[0], comp[0]
	for _, i := range comp {
		inComp[i] = true
		if i < minIdx {
			minIdx = i
		}
		if i > maxIdx {
			maxIdx = i
		}
	}

	var u geom.Polygonal
	for r := minIdx / m.Cols; r <= maxIdx/m.Cols; r++ {
		c := 0
		for c < m.Cols {
			if !inComp[r*m.Cols+c] {
				c++
				continue
			}
			runStart := c
			for c < m.Cols && inComp[r*m.Cols+c] {
				c++
			}
			rect := runRect(m.Frame, r, runStart, c)
			if u == nil {
				u = rect
			} else {
				u = u.Union(rect)
			}
		}
	}
	return u
}

// runRect returns the rectangle covering cells [c0, c1) of row r as a
// polygon with counter-clockwise winding.
func runRect(f Frame, r, c0, c1 int) geom.Polygon {
	x0 := f.Xo + f.CellSize*float64(c0)
	x1 := f.Xo + f.CellSize*float64(c1)
	y0 := f.Yo + f.CellSize*float64(r)
	y1 := y0 + f.CellSize
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

// Rasterize burns a polygon back onto a frame by cell-center containment.
// Vectorizing a mask and rasterizing the result at the same resolution
// reproduces at least 99% of the original water pixels.
func Rasterize(p geom.Polygonal, f Frame, year int) *Mask {
	m := NewMask(f, year)
	b := p.Bounds()
	r0, c0 := f.CellAt(b.Min)
	r1, c1 := f.CellAt(b.Max)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if f.CellCenter(r, c).Within(p) == geom.Inside {
				m.Set(true, r, c)
			}
		}
	}
	return m
}

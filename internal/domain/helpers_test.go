package domain

import (
	"github.com/ctessum/geom"
)

// testFrame builds a small georeferenced frame anchored at the origin.
func testFrame(rows, cols int, cellSize float64) Frame {
	return Frame{Xo: 0, Yo: 0, CellSize: cellSize, Rows: rows, Cols: cols}
}

// gridOf builds a grid where every cell holds v.
func gridOf(f Frame, year int, band Band, v float64) *Grid {
	g := NewGrid(f, year, band)
	g.Fill(v)
	return g
}

// maskRect sets the cells in rows [r0,r1) and columns [c0,c1).
func maskRect(m *Mask, r0, r1, c0, c1 int) {
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			m.Set(true, r, c)
		}
	}
}

// rect builds a counterclockwise axis-aligned polygon.
func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

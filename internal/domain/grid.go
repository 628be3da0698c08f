package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Band identifies what a grid's values measure.
type Band string

const (
	BandGreen       Band = "green"
	BandSWIR        Band = "swir16"
	BandVegetation  Band = "ndvi"
	BandCloud       Band = "cloud"
	BandWaterIndex  Band = "mndwi"
	BandDEM         Band = "dem"
	BandSlope       Band = "slope"
	BandDistance    Band = "distance"
	BandVegTrend    Band = "ndvi_trend"
	BandProbability Band = "probability"
)

// NoData is the sentinel for missing pixels. Use IsNoData to test values;
// NaN never compares equal to itself.
var NoData = math.NaN()

// IsNoData reports whether v is the missing-pixel sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Frame is the georeferencing shared by grids and masks: a regular cell grid
// anchored at its lower-left corner (Xo, Yo) with square cells of CellSize
// meters. Row 0 is the southernmost row.
type Frame struct {
	Xo, Yo   float64
	CellSize float64
	Rows     int
	Cols     int
}

// Aligns reports whether two frames describe the same cell grid.
func (f Frame) Aligns(o Frame) bool {
	return f.Xo == o.Xo && f.Yo == o.Yo && f.CellSize == o.CellSize &&
		f.Rows == o.Rows && f.Cols == o.Cols
}

// Bounds returns the spatial extent of the frame.
func (f Frame) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: f.Xo, Y: f.Yo},
		Max: geom.Point{
			X: f.Xo + f.CellSize*float64(f.Cols),
			Y: f.Yo + f.CellSize*float64(f.Rows),
		},
	}
}

// CellBounds returns the rectangle covered by cell (r, c).
func (f Frame) CellBounds(r, c int) *geom.Bounds {
	x0 := f.Xo + f.CellSize*float64(c)
	y0 := f.Yo + f.CellSize*float64(r)
	return &geom.Bounds{
		Min: geom.Point{X: x0, Y: y0},
		Max: geom.Point{X: x0 + f.CellSize, Y: y0 + f.CellSize},
	}
}

// CellCenter returns the center point of cell (r, c).
func (f Frame) CellCenter(r, c int) geom.Point {
	return geom.Point{
		X: f.Xo + f.CellSize*(float64(c)+0.5),
		Y: f.Yo + f.CellSize*(float64(r)+0.5),
	}
}

// CellAt returns the cell containing point p, clamped to the frame.
func (f Frame) CellAt(p geom.Point) (r, c int) {
	c = int(math.Floor((p.X - f.Xo) / f.CellSize))
	r = int(math.Floor((p.Y - f.Yo) / f.CellSize))
	if c < 0 {
		c = 0
	}
	if c >= f.Cols {
		c = f.Cols - 1
	}
	if r < 0 {
		r = 0
	}
	if r >= f.Rows {
		r = f.Rows - 1
	}
	return r, c
}

// CellArea returns the area of one cell in square meters.
func (f Frame) CellArea() float64 { return f.CellSize * f.CellSize }

// Grid is a 2D raster of float64 values over a Frame, tagged with acquisition
// year and band identity. Grids are treated as immutable once produced.
type Grid struct {
	Frame
	Year int
	Band Band

	data *sparse.DenseArray
}

// NewGrid allocates a grid of the frame's shape filled with zeros.
func NewGrid(f Frame, year int, band Band) *Grid {
	return &Grid{
		Frame: f,
		Year:  year,
		Band:  band,
		data:  sparse.ZerosDense(f.Rows, f.Cols),
	}
}

// NewGridLike allocates a zero grid sharing g's frame.
func NewGridLike(g *Grid, year int, band Band) *Grid {
	return NewGrid(g.Frame, year, band)
}

// At returns the value of cell (r, c).
func (g *Grid) At(r, c int) float64 { return g.data.Get(r, c) }

// Set assigns the value of cell (r, c). Intended for producers only; a grid
// handed downstream is not mutated.
func (g *Grid) Set(v float64, r, c int) { g.data.Set(v, r, c) }

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.data.Elements {
		g.data.Elements[i] = v
	}
}

// NoDataFraction returns the fraction of cells carrying the no-data sentinel.
func (g *Grid) NoDataFraction() float64 {
	if len(g.data.Elements) == 0 {
		return 0
	}
	var n int
	for _, v := range g.data.Elements {
		if IsNoData(v) {
			n++
		}
	}
	return float64(n) / float64(len(g.data.Elements))
}

// Mask is a binary grid of water/non-water (or risk/non-risk) cells sharing
// a Frame with its source imagery.
type Mask struct {
	Frame
	Year int
	Bits []bool
}

// NewMask allocates an all-false mask over f.
func NewMask(f Frame, year int) *Mask {
	return &Mask{Frame: f, Year: year, Bits: make([]bool, f.Rows*f.Cols)}
}

// At reports whether cell (r, c) is set.
func (m *Mask) At(r, c int) bool { return m.Bits[r*m.Cols+c] }

// Set assigns cell (r, c).
func (m *Mask) Set(v bool, r, c int) { m.Bits[r*m.Cols+c] = v }

// Count returns the number of set cells.
func (m *Mask) Count() int {
	var n int
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	o := NewMask(m.Frame, m.Year)
	copy(o.Bits, m.Bits)
	return o
}

// checkAligned returns ErrExtentMismatch context when two frames differ.
func checkAligned(a, b Frame, what string) error {
	if !a.Aligns(b) {
		return fmt.Errorf("%s: %dx%d cell %g at (%g,%g) vs %dx%d cell %g at (%g,%g): %w",
			what, a.Rows, a.Cols, a.CellSize, a.Xo, a.Yo,
			b.Rows, b.Cols, b.CellSize, b.Xo, b.Yo, ErrExtentMismatch)
	}
	return nil
}

package domain

import (
	"runtime"
	"sync"
)

// diskOffsets returns the (dr, dc) offsets of a disk structuring element of
// the given radius, in deterministic row-major order.
func diskOffsets(radius int) [][2]int {
	var offs [][2]int
	r2 := radius * radius
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			if dr*dr+dc*dc <= r2 {
				offs = append(offs, [2]int{dr, dc})
			}
		}
	}
	return offs
}

// dilate sets each output cell that has any set cell within the structuring
// element. Cells outside the grid count as unset.
func dilate(m *Mask, offs [][2]int) *Mask {
	out := NewMask(m.Frame, m.Year)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if !m.At(r, c) {
				continue
			}
			for _, o := range offs {
				rr, cc := r+o[0], c+o[1]
				if rr >= 0 && rr < m.Rows && cc >= 0 && cc < m.Cols {
					out.Set(true, rr, cc)
				}
			}
		}
	}
	return out
}

// erode keeps only cells whose whole structuring element lies on set cells.
// Cells outside the grid count as unset.
func erode(m *Mask, offs [][2]int) *Mask {
	out := NewMask(m.Frame, m.Year)
	for r := 0; r < m.Rows; r++ {
	cells:
		for c := 0; c < m.Cols; c++ {
			for _, o := range offs {
				rr, cc := r+o[0], c+o[1]
				if rr < 0 || rr >= m.Rows || cc < 0 || cc >= m.Cols || !m.At(rr, cc) {
					continue cells
				}
			}
			out.Set(true, r, c)
		}
	}
	return out
}

// pad returns a copy of m surrounded by a width-wide band of unset cells,
// with the frame origin shifted so cell geometry is preserved.
func pad(m *Mask, width int) *Mask {
	out := NewMask(Frame{
		Xo:       m.Xo - m.CellSize*float64(width),
		Yo:       m.Yo - m.CellSize*float64(width),
		CellSize: m.CellSize,
		Rows:     m.Rows + 2*width,
		Cols:     m.Cols + 2*width,
	}, m.Year)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.At(r, c) {
				out.Set(true, r+width, c+width)
			}
		}
	}
	return out
}

// crop extracts the width-inset interior of m into a mask with frame f.
func crop(m *Mask, f Frame, year, width int) *Mask {
	out := NewMask(f, year)
	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			out.Set(m.At(r+width, c+width), r, c)
		}
	}
	return out
}

// Close applies a morphological close (dilate then erode) with a disk
// structuring element of the given radius in cells. Radius 0 returns a copy.
// Closing merges narrow striping artifacts into contiguous water bodies
// without growing the overall extent. The mask is padded by radius before
// the pass so water touching the grid border is not eroded away; closing
// always contains its input.
func Close(m *Mask, radius int) *Mask {
	if radius <= 0 {
		return m.Clone()
	}
	offs := diskOffsets(radius)
	closed := erode(dilate(pad(m, radius), offs), offs)
	return crop(closed, m.Frame, m.Year, radius)
}

// CloseTiled computes the same result as Close but processes the mask in
// square tiles of tileSize cells, bounding peak memory on large grids. Each
// tile is closed over a padded window whose overlap margin exceeds the full
// reach of the close (2·radius), so tile seams cannot alter the output.
// tileSize ≤ 0, or a grid no larger than one tile, falls through to Close.
func CloseTiled(m *Mask, radius, tileSize int) *Mask {
	if tileSize <= 0 || (m.Rows <= tileSize && m.Cols <= tileSize) {
		return Close(m, radius)
	}
	margin := 2*radius + 1

	type tile struct{ r0, c0 int }
	var tiles []tile
	for r0 := 0; r0 < m.Rows; r0 += tileSize {
		for c0 := 0; c0 < m.Cols; c0 += tileSize {
			tiles = append(tiles, tile{r0, c0})
		}
	}

	out := NewMask(m.Frame, m.Year)
	var mu sync.Mutex
	tileChan := make(chan tile)
	var wg sync.WaitGroup
	for p := 0; p < runtime.GOMAXPROCS(-1); p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tileChan {
				r1 := min(t.r0+tileSize, m.Rows)
				c1 := min(t.c0+tileSize, m.Cols)
				pr0 := max(t.r0-margin, 0)
				pc0 := max(t.c0-margin, 0)
				pr1 := min(r1+margin, m.Rows)
				pc1 := min(c1+margin, m.Cols)

				sub := NewMask(Frame{
					Xo:       m.Xo + m.CellSize*float64(pc0),
					Yo:       m.Yo + m.CellSize*float64(pr0),
					CellSize: m.CellSize,
					Rows:     pr1 - pr0,
					Cols:     pc1 - pc0,
				}, m.Year)
				for r := pr0; r < pr1; r++ {
					for c := pc0; c < pc1; c++ {
						sub.Set(m.At(r, c), r-pr0, c-pc0)
					}
				}

				closed := Close(sub, radius)

				mu.Lock()
				for r := t.r0; r < r1; r++ {
					for c := t.c0; c < c1; c++ {
						out.Set(closed.At(r-pr0, c-pc0), r, c)
					}
				}
				mu.Unlock()
			}
		}()
	}
	for _, t := range tiles {
		tileChan <- t
	}
	close(tileChan)
	wg.Wait()
	return out
}

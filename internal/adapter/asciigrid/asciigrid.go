// Package asciigrid reads and writes rasters in the ESRI ASCII grid format,
// the interchange format the analysis uses for scene bands, DEMs, and
// derived layers. The format is plain text: a six-line header (ncols, nrows,
// xllcorner, yllcorner, cellsize, nodata_value) followed by rows of values,
// north row first.
package asciigrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/lakerise/internal/domain"
)

// DefaultNoData is the nodata_value written by Encode.
const DefaultNoData = -9999.0

// Decode reads an ASCII grid into a Grid tagged with the given year and band.
func Decode(r io.Reader, year int, band domain.Band) (*domain.Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	// Fixed header order: ncols, nrows, xllcorner, yllcorner, cellsize,
	// then an optional nodata_value.
	hdr := map[string]float64{}
	for _, key := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if !sc.Scan() {
			return nil, fmt.Errorf("asciigrid: truncated header: %w", scanErr(sc))
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 || strings.ToLower(fields[0]) != key {
			return nil, fmt.Errorf("asciigrid: malformed header line %q, want %s", sc.Text(), key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("asciigrid: header %s: %w", key, err)
		}
		hdr[key] = v
	}

	cols := int(hdr["ncols"])
	rows := int(hdr["nrows"])
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("asciigrid: invalid dimensions %dx%d", rows, cols)
	}

	// Peek the next line: either the nodata_value header or the first data row.
	if !sc.Scan() {
		return nil, fmt.Errorf("asciigrid: missing data rows: %w", scanErr(sc))
	}
	var nodata float64
	hasNoData := false
	pending := sc.Text()
	if fields := strings.Fields(pending); len(fields) == 2 && strings.ToLower(fields[0]) == "nodata_value" {
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("asciigrid: header nodata_value: %w", err)
		}
		nodata, hasNoData = v, true
		pending = ""
	}

	f := domain.Frame{
		Xo:       hdr["xllcorner"],
		Yo:       hdr["yllcorner"],
		CellSize: hdr["cellsize"],
		Rows:     rows,
		Cols:     cols,
	}
	if f.CellSize <= 0 {
		return nil, fmt.Errorf("asciigrid: cellsize %g must be positive", f.CellSize)
	}
	g := domain.NewGrid(f, year, band)

	// Values arrive north row first; row 0 of the grid is the south row.
	for fileRow := 0; fileRow < rows; fileRow++ {
		line := pending
		pending = ""
		if line == "" {
			if !sc.Scan() {
				return nil, fmt.Errorf("asciigrid: %d of %d data rows: %w", fileRow, rows, scanErr(sc))
			}
			line = sc.Text()
		}
		fields := strings.Fields(line)
		if len(fields) != cols {
			return nil, fmt.Errorf("asciigrid: row %d has %d values, want %d", fileRow, len(fields), cols)
		}
		r := rows - 1 - fileRow
		for c, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("asciigrid: row %d col %d: %w", fileRow, c, err)
			}
			if hasNoData && v == nodata {
				v = domain.NoData
			}
			g.Set(v, r, c)
		}
	}
	return g, nil
}

// Encode writes the grid in ASCII grid format, mapping no-data cells to
// DefaultNoData.
func Encode(w io.Writer, g *domain.Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", g.Cols)
	fmt.Fprintf(bw, "nrows %d\n", g.Rows)
	fmt.Fprintf(bw, "xllcorner %g\n", g.Xo)
	fmt.Fprintf(bw, "yllcorner %g\n", g.Yo)
	fmt.Fprintf(bw, "cellsize %g\n", g.CellSize)
	fmt.Fprintf(bw, "nodata_value %g\n", DefaultNoData)

	for fileRow := 0; fileRow < g.Rows; fileRow++ {
		r := g.Rows - 1 - fileRow
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			v := g.At(r, c)
			if domain.IsNoData(v) {
				v = DefaultNoData
			}
			if _, err := bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFile decodes the grid stored at path.
func ReadFile(path string, year int, band domain.Band) (*domain.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := Decode(f, year, band)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// WriteFile encodes the grid to path.
func WriteFile(path string, g *domain.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, g); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func scanErr(sc *bufio.Scanner) error {
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

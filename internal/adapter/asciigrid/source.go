package asciigrid

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/lakerise/internal/domain"
	"github.com/couchcryptid/lakerise/internal/pipeline"
)

// FileSource serves rasters from a directory tree:
//
//	<dir>/dem.asc
//	<dir>/rainfall.csv            year,mm rows
//	<dir>/scenes/<year>/green.asc
//	<dir>/scenes/<year>/swir16.asc
//	<dir>/scenes/<year>/ndvi.asc
//	<dir>/scenes/<year>/cloud.asc  optional, nonzero = cloud
type FileSource struct {
	dir string
}

// NewFileSource returns a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) sceneDir(year int) string {
	return filepath.Join(s.dir, "scenes", strconv.Itoa(year))
}

// Scene loads the raster bands of one observation year.
func (s *FileSource) Scene(_ context.Context, year int) (*pipeline.Scene, error) {
	dir := s.sceneDir(year)
	green, err := ReadFile(filepath.Join(dir, "green.asc"), year, domain.BandGreen)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	swir, err := ReadFile(filepath.Join(dir, "swir16.asc"), year, domain.BandSWIR)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	veg, err := ReadFile(filepath.Join(dir, "ndvi.asc"), year, domain.BandVegetation)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}

	sc := &pipeline.Scene{Green: green, SWIR: swir, Vegetation: veg}
	cloud, err := ReadFile(filepath.Join(dir, "cloud.asc"), year, domain.BandCloud)
	switch {
	case err == nil:
		m := domain.NewMask(cloud.Frame, year)
		for r := 0; r < cloud.Rows; r++ {
			for c := 0; c < cloud.Cols; c++ {
				if v := cloud.At(r, c); !domain.IsNoData(v) && v != 0 {
					m.Set(true, r, c)
				}
			}
		}
		sc.Cloud = m
	case errors.Is(err, fs.ErrNotExist):
		// Cloud mask is optional.
	default:
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	return sc, nil
}

// DEM loads the elevation model.
func (s *FileSource) DEM(context.Context) (*domain.Grid, error) {
	return ReadFile(filepath.Join(s.dir, "dem.asc"), 0, domain.BandDEM)
}

// Rainfall loads the annual rainfall series.
func (s *FileSource) Rainfall(context.Context) (map[int]float64, error) {
	path := filepath.Join(s.dir, "rainfall.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	series := make(map[int]float64, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("%s: row %d has %d fields, want 2", path, i+1, len(row))
		}
		year, err := strconv.Atoi(row[0])
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("%s: row %d year: %w", path, i+1, err)
		}
		mm, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d rainfall: %w", path, i+1, err)
		}
		series[year] = mm
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: no rainfall observations", path)
	}
	return series, nil
}

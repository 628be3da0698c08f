// Command genscene generates a synthetic lake scenario in the data layout
// the analysis service reads: per-year scene bands, a DEM, and a rainfall
// series. The lake sits in a bowl-shaped valley and expands year over year,
// which gives every pipeline stage something to detect.
//
// Usage:
//
//	go run ./cmd/genscene -out data -years 2007,2016,2025 -size 256
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/lakerise/internal/adapter/asciigrid"
	"github.com/couchcryptid/lakerise/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "output directory")
	yearsFlag := flag.String("years", "2007,2016,2025", "comma-separated scene years")
	size := flag.Int("size", 256, "grid size in cells")
	cellSize := flag.Float64("cellsize", 30, "cell size in meters")
	seed := flag.Int64("seed", 1, "noise seed")
	flag.Parse()

	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}
	if *size < 16 {
		return fmt.Errorf("grid size %d too small", *size)
	}

	f := domain.Frame{CellSize: *cellSize, Rows: *size, Cols: *size}
	rng := rand.New(rand.NewSource(*seed))

	dem := buildDEM(f, rng)
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	if err := asciigrid.WriteFile(filepath.Join(*out, "dem.asc"), dem); err != nil {
		return err
	}

	// Water level rises a little under half a meter per year.
	for i, year := range years {
		level := 2.0 + 0.4*float64(year-years[0])
		if err := writeScene(*out, f, dem, year, level, i, rng); err != nil {
			return err
		}
		log.Printf("year %d: level %.1f m", year, level)
	}

	if err := writeRainfall(*out, years); err != nil {
		return err
	}
	log.Printf("scenario written to %s", *out)
	return nil
}

// buildDEM shapes a bowl valley: lowest at the center, rising toward the
// edges, with gentle correlated noise.
func buildDEM(f domain.Frame, rng *rand.Rand) *domain.Grid {
	dem := domain.NewGrid(f, 0, domain.BandDEM)
	cx, cy := float64(f.Cols)/2, float64(f.Rows)/2
	maxD := math.Hypot(cx, cy)
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			d := math.Hypot(float64(c)-cx, float64(r)-cy) / maxD
			elev := 40*d*d + rng.Float64()*0.3
			dem.Set(elev, r, c)
		}
	}
	return dem
}

// writeScene derives green/SWIR reflectances from the flood extent at the
// given water level, plus a vegetation band that browns as the lake rises.
func writeScene(out string, f domain.Frame, dem *domain.Grid, year int, level float64, idx int, rng *rand.Rand) error {
	dir := filepath.Join(out, "scenes", strconv.Itoa(year))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	green := domain.NewGrid(f, year, domain.BandGreen)
	swir := domain.NewGrid(f, year, domain.BandSWIR)
	ndvi := domain.NewGrid(f, year, domain.BandVegetation)
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			noise := rng.Float64() * 0.02
			if dem.At(r, c) <= level {
				// Water: bright green band, dark SWIR.
				green.Set(0.25+noise, r, c)
				swir.Set(0.05+noise, r, c)
				ndvi.Set(0.05+noise, r, c)
			} else {
				green.Set(0.08+noise, r, c)
				swir.Set(0.22+noise, r, c)
				ndvi.Set(0.55-0.015*float64(idx)+noise, r, c)
			}
		}
	}

	for name, g := range map[string]*domain.Grid{
		"green.asc":  green,
		"swir16.asc": swir,
		"ndvi.asc":   ndvi,
	} {
		if err := asciigrid.WriteFile(filepath.Join(dir, name), g); err != nil {
			return err
		}
	}
	return nil
}

// writeRainfall emits an annual series covering every scene year plus a
// lookback margin, trending slightly wetter.
func writeRainfall(out string, years []int) error {
	first, last := years[0], years[len(years)-1]
	path := filepath.Join(out, "rainfall.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"year", "rainfall_mm"}); err != nil {
		return err
	}
	for y := first - 5; y <= last+5; y++ {
		mm := 820 + 4.5*float64(y-first)
		if err := w.Write([]string{strconv.Itoa(y), strconv.FormatFloat(mm, 'f', 1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, p := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", p)
		}
		years = append(years, y)
	}
	if len(years) < 2 {
		return nil, fmt.Errorf("need at least two years, got %d", len(years))
	}
	sort.Ints(years)
	return years, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
// Analysis parameters are validated here, before any processing starts, so a
// bad threshold or target year never reaches the pipeline.
type Config struct {
	// Analysis surface.
	Years               []int   // historical years, sorted ascending
	TargetYear          int     // prediction year, must exceed the last historical year
	WaterIndexThreshold float64 // water iff index ≥ threshold, in [-1, 1]
	MinPolygonAreaM2    float64
	CloseRadiusCells    int
	TileSizeCells       int
	RainfallLookback    int // years
	RiskThreshold       float64
	TrainSeed           int64

	// I/O.
	DataDir   string
	ResultsDB string

	// Infrastructure provider. OriginLat/OriginLon anchor the local plane
	// on the WGS84 ellipsoid.
	OverpassURL       string
	OverpassTimeout   time.Duration
	OverpassCacheSize int
	OriginLat         float64
	OriginLon         float64

	// Service surface.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset and rejecting invalid values.
func Load() (*Config, error) {
	years, err := parseYears(envOrDefault("ANALYSIS_YEARS", "2007,2016,2025"))
	if err != nil {
		return nil, err
	}

	targetYear, err := parseInt("TARGET_YEAR", 2030)
	if err != nil {
		return nil, err
	}
	threshold, err := parseFloat("WATER_INDEX_THRESHOLD", 0.1)
	if err != nil {
		return nil, err
	}
	minArea, err := parseFloat("MIN_POLYGON_AREA_M2", 1000)
	if err != nil {
		return nil, err
	}
	closeRadius, err := parseInt("CLOSE_RADIUS_CELLS", 3)
	if err != nil {
		return nil, err
	}
	tileSize, err := parseInt("TILE_SIZE_CELLS", 2048)
	if err != nil {
		return nil, err
	}
	lookback, err := parseInt("RAINFALL_LOOKBACK_YEARS", 3)
	if err != nil {
		return nil, err
	}
	riskThreshold, err := parseFloat("RISK_THRESHOLD", 0.6)
	if err != nil {
		return nil, err
	}
	seed, err := parseInt("TRAIN_SEED", 42)
	if err != nil {
		return nil, err
	}
	overpassTimeout, err := parseDuration("OVERPASS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("OVERPASS_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	originLat, err := parseFloat("ORIGIN_LAT", 0)
	if err != nil {
		return nil, err
	}
	originLon, err := parseFloat("ORIGIN_LON", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Years:               years,
		TargetYear:          targetYear,
		WaterIndexThreshold: threshold,
		MinPolygonAreaM2:    minArea,
		CloseRadiusCells:    closeRadius,
		TileSizeCells:       tileSize,
		RainfallLookback:    lookback,
		RiskThreshold:       riskThreshold,
		TrainSeed:           int64(seed),
		DataDir:             envOrDefault("DATA_DIR", "data"),
		ResultsDB:           envOrDefault("RESULTS_DB", "data/results.db"),
		OverpassURL:         envOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		OverpassTimeout:     overpassTimeout,
		OverpassCacheSize:   cacheSize,
		OriginLat:           originLat,
		OriginLon:           originLon,
		HTTPAddr:            envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Years) < 2 {
		return errors.New("ANALYSIS_YEARS needs at least two years")
	}
	if c.TargetYear <= c.Years[len(c.Years)-1] {
		return fmt.Errorf("TARGET_YEAR %d must be after the last analysis year %d",
			c.TargetYear, c.Years[len(c.Years)-1])
	}
	if c.WaterIndexThreshold < -1 || c.WaterIndexThreshold > 1 {
		return fmt.Errorf("WATER_INDEX_THRESHOLD %g outside [-1, 1]", c.WaterIndexThreshold)
	}
	if c.MinPolygonAreaM2 < 0 {
		return errors.New("MIN_POLYGON_AREA_M2 must be ≥ 0")
	}
	if c.CloseRadiusCells < 0 {
		return errors.New("CLOSE_RADIUS_CELLS must be ≥ 0")
	}
	if c.RainfallLookback < 1 {
		return errors.New("RAINFALL_LOOKBACK_YEARS must be ≥ 1")
	}
	if c.RiskThreshold <= 0 || c.RiskThreshold >= 1 {
		return fmt.Errorf("RISK_THRESHOLD %g outside (0, 1)", c.RiskThreshold)
	}
	if c.TileSizeCells > 0 && c.TileSizeCells <= 2*c.CloseRadiusCells {
		return fmt.Errorf("TILE_SIZE_CELLS %d must exceed twice CLOSE_RADIUS_CELLS %d",
			c.TileSizeCells, c.CloseRadiusCells)
	}
	if c.OriginLat < -90 || c.OriginLat > 90 {
		return fmt.Errorf("ORIGIN_LAT %g outside [-90, 90]", c.OriginLat)
	}
	if c.OriginLon < -180 || c.OriginLon > 180 {
		return fmt.Errorf("ORIGIN_LON %g outside [-180, 180]", c.OriginLon)
	}
	return nil
}

func parseYears(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	years := make([]int, 0, len(parts))
	seen := map[int]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ANALYSIS_YEARS entry %q", p)
		}
		if seen[y] {
			return nil, fmt.Errorf("duplicate ANALYSIS_YEARS entry %d", y)
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

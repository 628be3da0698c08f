package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{2007, 2016, 2025}, cfg.Years)
	assert.Equal(t, 2030, cfg.TargetYear)
	assert.Equal(t, 0.1, cfg.WaterIndexThreshold)
	assert.Equal(t, 1000.0, cfg.MinPolygonAreaM2)
	assert.Equal(t, 3, cfg.CloseRadiusCells)
	assert.Equal(t, 0.6, cfg.RiskThreshold)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.OverpassTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_YEARS", "2016, 2007 ,2025")
	t.Setenv("TARGET_YEAR", "2040")
	t.Setenv("WATER_INDEX_THRESHOLD", "0.25")
	t.Setenv("TILE_SIZE_CELLS", "512")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{2007, 2016, 2025}, cfg.Years, "years are sorted")
	assert.Equal(t, 2040, cfg.TargetYear)
	assert.Equal(t, 0.25, cfg.WaterIndexThreshold)
	assert.Equal(t, 512, cfg.TileSizeCells)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"single year", "ANALYSIS_YEARS", "2025"},
		{"duplicate year", "ANALYSIS_YEARS", "2007,2007"},
		{"unparseable year", "ANALYSIS_YEARS", "two-thousand-seven"},
		{"target year not in the future", "TARGET_YEAR", "2020"},
		{"threshold above one", "WATER_INDEX_THRESHOLD", "1.5"},
		{"threshold below minus one", "WATER_INDEX_THRESHOLD", "-2"},
		{"negative min area", "MIN_POLYGON_AREA_M2", "-10"},
		{"negative close radius", "CLOSE_RADIUS_CELLS", "-1"},
		{"zero lookback", "RAINFALL_LOOKBACK_YEARS", "0"},
		{"risk threshold at zero", "RISK_THRESHOLD", "0"},
		{"risk threshold at one", "RISK_THRESHOLD", "1"},
		{"tile smaller than close window", "TILE_SIZE_CELLS", "4"},
		{"negative timeout", "OVERPASS_TIMEOUT", "-1s"},
		{"origin latitude off the globe", "ORIGIN_LAT", "95"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/lakerise/internal/adapter/http"
	"github.com/couchcryptid/lakerise/internal/domain"

	"github.com/ctessum/geom"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockResults struct {
	shoreline domain.Shoreline
	changes   []domain.Change
	summaries []domain.ZoneSummary
	err       error
}

func (m *mockResults) Shoreline(_ context.Context, year int, kind string) (domain.Shoreline, error) {
	if m.err != nil {
		return domain.Shoreline{}, m.err
	}
	return m.shoreline, nil
}

func (m *mockResults) Changes(context.Context) ([]domain.Change, error) {
	return m.changes, m.err
}

func (m *mockResults) LatestEvaluation(context.Context) (domain.Evaluation, string, error) {
	if m.err != nil {
		return domain.Evaluation{}, "", m.err
	}
	return domain.Evaluation{HoldoutYear: 2025, Samples: 144, Accuracy: 0.93, BalancedAccuracy: 0.9}, "train-2007-2016", nil
}

func (m *mockResults) ZoneSummaries(context.Context) ([]domain.ZoneSummary, error) {
	return m.summaries, m.err
}

func newTestServer(readyErr error, results *mockResults) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, results, logger)
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(newTestServer(nil, &mockResults{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rec := get(newTestServer(nil, &mockResults{}), "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		rec := get(newTestServer(fmt.Errorf("no completed run"), &mockResults{}), "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "no completed run", body["error"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, &mockResults{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShorelineEndpoint(t *testing.T) {
	results := &mockResults{shoreline: domain.Shoreline{
		Year:       2016,
		Geom:       geom.Polygon{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}},
		AreaM2:     100,
		ProducedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}

	t.Run("returns rings and area", func(t *testing.T) {
		rec := get(newTestServer(nil, results), "/api/v1/shorelines/2016")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Year   int            `json:"year"`
			Kind   string         `json:"kind"`
			AreaM2 float64        `json:"area_m2"`
			Rings  [][][2]float64 `json:"rings"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2016, body.Year)
		assert.Equal(t, "observed", body.Kind, "kind defaults to observed")
		assert.Equal(t, 100.0, body.AreaM2)
		require.Len(t, body.Rings, 1)
		assert.Len(t, body.Rings[0], 4)
	})

	t.Run("invalid year", func(t *testing.T) {
		rec := get(newTestServer(nil, results), "/api/v1/shorelines/not-a-year")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing shoreline", func(t *testing.T) {
		rec := get(newTestServer(nil, &mockResults{err: fmt.Errorf("not found")}), "/api/v1/shorelines/1999")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestChangesEndpoint(t *testing.T) {
	results := &mockResults{changes: []domain.Change{
		{YearEarly: 2007, YearLate: 2016, GrowthM2: 2000, NetDeltaM2: 2000},
	}}
	rec := get(newTestServer(nil, results), "/api/v1/changes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, float64(2007), body[0]["year_early"])
	assert.Equal(t, 2000.0, body[0]["growth_m2"])
}

func TestEvaluationEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, &mockResults{}), "/api/v1/evaluation")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "train-2007-2016", body["model_version"])
	assert.Equal(t, 0.93, body["accuracy"])
}

func TestZonesEndpoint(t *testing.T) {
	results := &mockResults{summaries: []domain.ZoneSummary{{
		ZoneID:          "risk-2030",
		AssetsByCat:     map[string]int{"building": 3},
		HectaresByClass: map[string]float64{"farmland": 1.2},
	}}}
	rec := get(newTestServer(nil, results), "/api/v1/zones")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []domain.ZoneSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, results.summaries, body)
}

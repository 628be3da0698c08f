// Package store persists analysis results in a SQLite database. Geometries
// are stored as JSON ring arrays alongside their summary figures, so results
// remain queryable with plain SQL and exportable without the raster inputs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/geom"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/couchcryptid/lakerise/internal/domain"
)

// SQLite is a results store backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS shorelines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	year INTEGER NOT NULL,
	kind TEXT NOT NULL,
	area_m2 REAL NOT NULL,
	produced_at TEXT NOT NULL,
	geom TEXT NOT NULL,
	UNIQUE (year, kind)
);
CREATE TABLE IF NOT EXISTS changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	year_early INTEGER NOT NULL,
	year_late INTEGER NOT NULL,
	growth_m2 REAL NOT NULL,
	shrink_m2 REAL NOT NULL,
	net_delta_m2 REAL NOT NULL,
	growth_geom TEXT,
	shrink_geom TEXT,
	UNIQUE (year_early, year_late)
);
CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model_version TEXT NOT NULL,
	holdout_year INTEGER NOT NULL,
	samples INTEGER NOT NULL,
	accuracy REAL NOT NULL,
	balanced_accuracy REAL NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS impact_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	zone_id TEXT NOT NULL,
	asset_id TEXT,
	category TEXT,
	land_cover_class TEXT,
	overlap_m2 REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS zone_summaries (
	zone_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);
`

// Open creates or opens the results database at path and ensures the schema.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// SaveShoreline upserts one shoreline of the given kind.
func (s *SQLite) SaveShoreline(ctx context.Context, sh domain.Shoreline, kind string) error {
	g, err := marshalGeom(sh.Geom)
	if err != nil {
		return fmt.Errorf("shoreline %d/%s: %w", sh.Year, kind, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shorelines (year, kind, area_m2, produced_at, geom)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (year, kind) DO UPDATE SET
			area_m2 = excluded.area_m2,
			produced_at = excluded.produced_at,
			geom = excluded.geom`,
		sh.Year, kind, sh.AreaM2, sh.ProducedAt.UTC().Format(time.RFC3339Nano), g)
	if err != nil {
		return fmt.Errorf("save shoreline %d/%s: %w", sh.Year, kind, err)
	}
	return nil
}

// Shoreline loads one shoreline by year and kind.
func (s *SQLite) Shoreline(ctx context.Context, year int, kind string) (domain.Shoreline, error) {
	var (
		sh       domain.Shoreline
		produced string
		g        string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT year, area_m2, produced_at, geom FROM shorelines
		WHERE year = ? AND kind = ?`, year, kind).
		Scan(&sh.Year, &sh.AreaM2, &produced, &g)
	if err != nil {
		return domain.Shoreline{}, fmt.Errorf("load shoreline %d/%s: %w", year, kind, err)
	}
	if sh.ProducedAt, err = time.Parse(time.RFC3339Nano, produced); err != nil {
		return domain.Shoreline{}, fmt.Errorf("shoreline %d/%s produced_at: %w", year, kind, err)
	}
	if sh.Geom, err = unmarshalGeom(g); err != nil {
		return domain.Shoreline{}, fmt.Errorf("shoreline %d/%s geometry: %w", year, kind, err)
	}
	return sh, nil
}

// SaveChanges upserts the change records of a run in one transaction.
func (s *SQLite) SaveChanges(ctx context.Context, changes []domain.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ch := range changes {
		growth, err := marshalPolygonal(ch.Growth)
		if err != nil {
			return fmt.Errorf("change %d-%d growth: %w", ch.YearEarly, ch.YearLate, err)
		}
		shrink, err := marshalPolygonal(ch.Shrink)
		if err != nil {
			return fmt.Errorf("change %d-%d shrink: %w", ch.YearEarly, ch.YearLate, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO changes (year_early, year_late, growth_m2, shrink_m2, net_delta_m2, growth_geom, shrink_geom)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (year_early, year_late) DO UPDATE SET
				growth_m2 = excluded.growth_m2,
				shrink_m2 = excluded.shrink_m2,
				net_delta_m2 = excluded.net_delta_m2,
				growth_geom = excluded.growth_geom,
				shrink_geom = excluded.shrink_geom`,
			ch.YearEarly, ch.YearLate, ch.GrowthM2, ch.ShrinkM2, ch.NetDeltaM2, growth, shrink); err != nil {
			return fmt.Errorf("save change %d-%d: %w", ch.YearEarly, ch.YearLate, err)
		}
	}
	return tx.Commit()
}

// Changes loads all change records ordered by year pair.
func (s *SQLite) Changes(ctx context.Context) ([]domain.Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year_early, year_late, growth_m2, shrink_m2, net_delta_m2
		FROM changes ORDER BY year_early, year_late`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.Change
	for rows.Next() {
		var ch domain.Change
		if err := rows.Scan(&ch.YearEarly, &ch.YearLate, &ch.GrowthM2, &ch.ShrinkM2, &ch.NetDeltaM2); err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}

// SaveEvaluation appends a model evaluation.
func (s *SQLite) SaveEvaluation(ctx context.Context, ev domain.Evaluation, modelVersion string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (model_version, holdout_year, samples, accuracy, balanced_accuracy, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		modelVersion, ev.HoldoutYear, ev.Samples, ev.Accuracy, ev.BalancedAccuracy,
		domain.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save evaluation %s: %w", modelVersion, err)
	}
	return nil
}

// LatestEvaluation loads the most recent evaluation.
func (s *SQLite) LatestEvaluation(ctx context.Context) (domain.Evaluation, string, error) {
	var (
		ev      domain.Evaluation
		version string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT model_version, holdout_year, samples, accuracy, balanced_accuracy
		FROM evaluations ORDER BY id DESC LIMIT 1`).
		Scan(&version, &ev.HoldoutYear, &ev.Samples, &ev.Accuracy, &ev.BalancedAccuracy)
	if err != nil {
		return domain.Evaluation{}, "", err
	}
	return ev, version, nil
}

// SaveImpacts replaces the impact records and zone summaries of each touched
// zone in one transaction.
func (s *SQLite) SaveImpacts(ctx context.Context, records []domain.ImpactRecord, summaries []domain.ZoneSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, sum := range summaries {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM impact_records WHERE zone_id = ?`, sum.ZoneID); err != nil {
			return fmt.Errorf("clear impacts for %s: %w", sum.ZoneID, err)
		}
		payload, err := json.Marshal(sum)
		if err != nil {
			return fmt.Errorf("encode summary %s: %w", sum.ZoneID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO zone_summaries (zone_id, payload) VALUES (?, ?)
			ON CONFLICT (zone_id) DO UPDATE SET payload = excluded.payload`,
			sum.ZoneID, string(payload)); err != nil {
			return fmt.Errorf("save summary %s: %w", sum.ZoneID, err)
		}
	}
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO impact_records (zone_id, asset_id, category, land_cover_class, overlap_m2)
			VALUES (?, ?, ?, ?, ?)`,
			rec.ZoneID, rec.AssetID, rec.Category, rec.LandCoverClass, rec.OverlapM2); err != nil {
			return fmt.Errorf("save impact for %s: %w", rec.ZoneID, err)
		}
	}
	return tx.Commit()
}

// ZoneSummaries loads all zone summaries.
func (s *SQLite) ZoneSummaries(ctx context.Context) ([]domain.ZoneSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM zone_summaries ORDER BY zone_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ZoneSummary
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sum domain.ZoneSummary
		if err := json.Unmarshal([]byte(payload), &sum); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// ImpactRecords loads the impact records of one zone.
func (s *SQLite) ImpactRecords(ctx context.Context, zoneID string) ([]domain.ImpactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT zone_id, asset_id, category, land_cover_class, overlap_m2
		FROM impact_records WHERE zone_id = ? ORDER BY id`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ImpactRecord
	for rows.Next() {
		var rec domain.ImpactRecord
		if err := rows.Scan(&rec.ZoneID, &rec.AssetID, &rec.Category, &rec.LandCoverClass, &rec.OverlapM2); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// marshalGeom encodes polygon rings as a JSON array of [x, y] pairs.
func marshalGeom(p geom.Polygon) (string, error) {
	rings := make([][][2]float64, len(p))
	for i, ring := range p {
		rings[i] = make([][2]float64, len(ring))
		for j, pt := range ring {
			rings[i][j] = [2]float64{pt.X, pt.Y}
		}
	}
	b, err := json.Marshal(rings)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalGeom(s string) (geom.Polygon, error) {
	var rings [][][2]float64
	if err := json.Unmarshal([]byte(s), &rings); err != nil {
		return nil, err
	}
	p := make(geom.Polygon, len(rings))
	for i, ring := range rings {
		p[i] = make([]geom.Point, len(ring))
		for j, pt := range ring {
			p[i][j] = geom.Point{X: pt[0], Y: pt[1]}
		}
	}
	return p, nil
}

// marshalPolygonal flattens a clipping result to rings; nil stays NULL.
func marshalPolygonal(p geom.Polygonal) (any, error) {
	if p == nil {
		return nil, nil
	}
	var flat geom.Polygon
	for _, poly := range p.Polygons() {
		flat = append(flat, poly...)
	}
	return marshalGeom(flat)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/lakerise/internal/domain"
	"github.com/couchcryptid/lakerise/internal/observability"
)

// Scene bundles the raster inputs of one observation year.
type Scene struct {
	Green      *domain.Grid
	SWIR       *domain.Grid
	Vegetation *domain.Grid
	Cloud      *domain.Mask // optional
}

// RasterSource provides the raster inputs of the analysis.
type RasterSource interface {
	Scene(ctx context.Context, year int) (*Scene, error)
	DEM(ctx context.Context) (*domain.Grid, error)
	Rainfall(ctx context.Context) (map[int]float64, error)
}

// AssetSource provides the infrastructure and land-cover inputs of the
// impact stage, limited to the given bounding box.
type AssetSource interface {
	Assets(ctx context.Context, bounds *geom.Bounds) ([]domain.Asset, error)
	LandCover(ctx context.Context, bounds *geom.Bounds) ([]domain.LandCoverParcel, error)
}

// Store persists analysis results.
type Store interface {
	SaveShoreline(ctx context.Context, s domain.Shoreline, kind string) error
	SaveChanges(ctx context.Context, changes []domain.Change) error
	SaveEvaluation(ctx context.Context, ev domain.Evaluation, modelVersion string) error
	SaveImpacts(ctx context.Context, records []domain.ImpactRecord, summaries []domain.ZoneSummary) error
}

// Shoreline kinds as persisted by the store.
const (
	KindObserved  = "observed"
	KindProjected = "projected"
	KindRisk      = "risk"
)

// Params carries the analysis parameters of one run.
type Params struct {
	Years          []int
	TargetYear     int
	IndexThreshold float64
	Vectorize      domain.VectorizeConfig
	RainLookback   int
	RiskThreshold  float64
	TrainSeed      int64

	// MaxNoDataFrac rejects a scene band when more of it than this fraction
	// is no-data.
	MaxNoDataFrac float64
}

// Result summarizes a completed analysis run.
type Result struct {
	Shorelines []domain.Shoreline
	Changes    []domain.Change
	Trend      domain.LevelTrend
	Projected  domain.Shoreline
	Risk       domain.Shoreline
	Evaluation domain.Evaluation
	Summaries  []domain.ZoneSummary

	// YearErrors holds per-year failures that did not abort the run.
	YearErrors []error
}

// Pipeline orchestrates the shoreline analysis: per-year extraction fanned
// out across workers, then change detection, level projection, the water
// classifier, and impact analysis in sequence.
type Pipeline struct {
	rasters RasterSource
	assets  AssetSource
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
	params  Params
	ready   atomic.Bool
}

// New creates a Pipeline with the given sources, sink, and observability.
func New(r RasterSource, a AssetSource, s Store, logger *slog.Logger, metrics *observability.Metrics, params Params) *Pipeline {
	if params.MaxNoDataFrac <= 0 {
		params.MaxNoDataFrac = 0.5
	}
	return &Pipeline{
		rasters: r,
		assets:  a,
		store:   s,
		logger:  logger,
		metrics: metrics,
		params:  params,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no completed analysis run yet")
	}
	return nil
}

// yearProduct is the output of one year's extraction.
type yearProduct struct {
	year       int
	shoreline  domain.Shoreline
	water      *domain.Mask
	vegetation *domain.Grid
}

// Run executes one full analysis. Individual year failures are isolated; the
// run aborts only when fewer than two years survive extraction or a later
// stage fails outright.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.logger.Info("analysis started",
		"years", p.params.Years, "target_year", p.params.TargetYear)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res := &Result{}

	products, yearErrs := p.extractYears(ctx)
	res.YearErrors = yearErrs
	if len(products) < 2 {
		return res, fmt.Errorf("only %d of %d years usable: %w",
			len(products), len(p.params.Years), domain.ErrInsufficientData)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].year < products[j].year })
	for _, pr := range products {
		res.Shorelines = append(res.Shorelines, pr.shoreline)
	}

	if err := p.runChange(ctx, res); err != nil {
		return res, err
	}
	dem, err := p.runLevels(ctx, res)
	if err != nil {
		return res, err
	}
	if err := p.runClassifier(ctx, dem, products, res); err != nil {
		return res, err
	}
	if err := p.runImpact(ctx, res); err != nil {
		return res, err
	}

	p.ready.Store(true)
	p.logger.Info("analysis complete",
		"net_delta_m2", res.Changes[len(res.Changes)-1].NetDeltaM2,
		"projected_area_m2", res.Projected.AreaM2,
		"holdout_accuracy", res.Evaluation.Accuracy)
	return res, nil
}

// extractYears fans the per-year shoreline extraction out across workers.
func (p *Pipeline) extractYears(ctx context.Context) ([]yearProduct, []error) {
	type outcome struct {
		product yearProduct
		err     error
	}

	years := make(chan int)
	outcomes := make(chan outcome, len(p.params.Years))
	var wg sync.WaitGroup

	workers := runtime.GOMAXPROCS(0)
	if workers > len(p.params.Years) {
		workers = len(p.params.Years)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for year := range years {
				pr, err := p.processYear(ctx, year)
				outcomes <- outcome{product: pr, err: err}
			}
		}()
	}
	for _, y := range p.params.Years {
		years <- y
	}
	close(years)
	wg.Wait()
	close(outcomes)

	var products []yearProduct
	var errs []error
	for o := range outcomes {
		if o.err != nil {
			p.logger.Error("year failed", "error", o.err)
			errs = append(errs, o.err)
			continue
		}
		products = append(products, o.product)
		p.metrics.YearsProcessed.Inc()
	}
	return products, errs
}

// processYear runs scene load, water index, threshold, and vectorization for
// one year. Failures come back as a YearError naming the stage.
func (p *Pipeline) processYear(ctx context.Context, year int) (yearProduct, error) {
	fail := func(stage string, err error) (yearProduct, error) {
		p.metrics.YearErrors.WithLabelValues(stage).Inc()
		return yearProduct{}, &domain.YearError{Year: year, Stage: stage, Err: err}
	}

	done := p.stageTimer("scene")
	scene, err := p.rasters.Scene(ctx, year)
	done()
	if err != nil {
		return fail("scene", err)
	}
	for band, g := range map[string]*domain.Grid{"green": scene.Green, "swir": scene.SWIR} {
		if g == nil {
			return fail("scene", fmt.Errorf("band %s absent: %w", band, domain.ErrMissingBand))
		}
		if frac := g.NoDataFraction(); frac > p.params.MaxNoDataFrac {
			return fail("scene", fmt.Errorf("band %s is %.0f%% no-data: %w",
				band, frac*100, domain.ErrNoDataExcessive))
		}
	}

	done = p.stageTimer("water_index")
	idx, err := domain.WaterIndex(scene.Green, scene.SWIR)
	if err != nil {
		done()
		return fail("water_index", err)
	}
	water, err := domain.ThresholdWater(idx, scene.Cloud, p.params.IndexThreshold)
	done()
	if err != nil {
		return fail("water_index", err)
	}

	done = p.stageTimer("vectorize")
	shoreline, err := domain.Vectorize(water, p.params.Vectorize)
	done()
	if err != nil {
		return fail("vectorize", err)
	}

	if err := p.store.SaveShoreline(ctx, shoreline, KindObserved); err != nil {
		return fail("store", err)
	}
	p.logger.Info("shoreline extracted",
		"year", year, "area_m2", shoreline.AreaM2, "water_cells", water.Count())
	return yearProduct{
		year:       year,
		shoreline:  shoreline,
		water:      water,
		vegetation: scene.Vegetation,
	}, nil
}

func (p *Pipeline) runChange(ctx context.Context, res *Result) error {
	defer p.stageTimer("change")()
	changes, err := domain.ChangeSeries(res.Shorelines)
	if err != nil {
		return fmt.Errorf("change detection: %w", err)
	}
	if err := p.store.SaveChanges(ctx, changes); err != nil {
		return fmt.Errorf("store changes: %w", err)
	}
	res.Changes = changes
	for _, ch := range changes {
		p.logger.Info("change detected",
			"early", ch.YearEarly, "late", ch.YearLate,
			"growth_m2", ch.GrowthM2, "shrink_m2", ch.ShrinkM2)
	}
	return nil
}

func (p *Pipeline) runLevels(ctx context.Context, res *Result) (*domain.Grid, error) {
	defer p.stageTimer("levels")()
	dem, err := p.rasters.DEM(ctx)
	if err != nil {
		return nil, fmt.Errorf("load DEM: %w", err)
	}
	trend, err := domain.FitLevelTrend(dem, res.Shorelines)
	if err != nil {
		return nil, fmt.Errorf("level trend: %w", err)
	}
	level := trend.Project(p.params.TargetYear)
	projected, err := domain.SimulateShoreline(dem, level, p.params.Vectorize, p.params.TargetYear)
	if err != nil {
		return nil, fmt.Errorf("simulate year %d at level %.2f m: %w", p.params.TargetYear, level, err)
	}
	if err := p.store.SaveShoreline(ctx, projected, KindProjected); err != nil {
		return nil, fmt.Errorf("store projection: %w", err)
	}
	res.Trend = trend
	res.Projected = projected
	p.logger.Info("level projected",
		"slope_m_per_year", trend.Slope, "level_m", level, "area_m2", projected.AreaM2)
	return dem, nil
}

func (p *Pipeline) runClassifier(ctx context.Context, dem *domain.Grid, products []yearProduct, res *Result) error {
	defer p.stageTimer("classifier")()

	rainfall, err := p.rasters.Rainfall(ctx)
	if err != nil {
		return fmt.Errorf("load rainfall: %w", err)
	}
	slope, err := domain.Slope(dem)
	if err != nil {
		return err
	}

	masks := map[int]*domain.Mask{}
	dist := map[int]*domain.Grid{}
	years := make([]int, 0, len(products))
	var vegetation []*domain.Grid
	for _, pr := range products {
		masks[pr.year] = pr.water
		dist[pr.year] = domain.DistanceToWater(pr.water)
		years = append(years, pr.year)
		if pr.vegetation != nil {
			vegetation = append(vegetation, pr.vegetation)
		}
	}
	// The scenario year has no observed mask; its distance layer reuses the
	// latest observed year.
	dist[p.params.TargetYear] = dist[years[len(years)-1]]

	vegTrend, err := domain.VegetationTrend(vegetation)
	if err != nil {
		return fmt.Errorf("vegetation trend: %w", err)
	}

	layers := &domain.FeatureLayers{
		Elevation: dem,
		Slope:     slope,
		VegTrend:  vegTrend,
		Distance:  dist,
		Rainfall:  rainfall,
		Lookback:  p.params.RainLookback,
	}
	ts, err := domain.BuildTrainingSet(layers, masks, years)
	if err != nil {
		return fmt.Errorf("training set: %w", err)
	}

	holdout := years[len(years)-1]
	model, ev, err := domain.TrainHoldout(domain.NewLogistic(p.params.TrainSeed), ts, holdout)
	if err != nil {
		return fmt.Errorf("train with holdout %d: %w", holdout, err)
	}
	if err := p.store.SaveEvaluation(ctx, ev, model.Version); err != nil {
		return fmt.Errorf("store evaluation: %w", err)
	}
	p.logger.Info("model evaluated",
		"version", model.Version, "holdout", holdout,
		"accuracy", ev.Accuracy, "balanced_accuracy", ev.BalancedAccuracy)

	prob, err := domain.PredictSurface(model, layers, p.params.TargetYear)
	if err != nil {
		return fmt.Errorf("predict year %d: %w", p.params.TargetYear, err)
	}
	risk, err := domain.RiskZones(prob, p.params.RiskThreshold, p.params.Vectorize)
	if err != nil {
		return fmt.Errorf("risk zones: %w", err)
	}
	if err := p.store.SaveShoreline(ctx, risk, KindRisk); err != nil {
		return fmt.Errorf("store risk zones: %w", err)
	}
	res.Evaluation = ev
	res.Risk = risk
	return nil
}

func (p *Pipeline) runImpact(ctx context.Context, res *Result) error {
	defer p.stageTimer("impact")()

	last := res.Changes[len(res.Changes)-1]
	var zones []domain.Zone
	if last.Growth != nil && last.Growth.Area() > 0 {
		zones = append(zones, domain.Zone{
			ID:   fmt.Sprintf("growth-%d-%d", last.YearEarly, last.YearLate),
			Geom: last.Growth,
		})
	}
	zones = append(zones, domain.Zone{
		ID:   fmt.Sprintf("risk-%d", res.Risk.Year),
		Geom: res.Risk.Geom,
	})

	bounds := geom.NewBounds()
	for _, z := range zones {
		bounds.Extend(z.Geom.Bounds())
	}

	assets, err := p.assets.Assets(ctx, bounds)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	parcels, err := p.assets.LandCover(ctx, bounds)
	if err != nil {
		return fmt.Errorf("load land cover: %w", err)
	}

	records, summaries, err := domain.AnalyzeImpact(zones, assets, parcels)
	if err != nil {
		return fmt.Errorf("impact analysis: %w", err)
	}
	if err := p.store.SaveImpacts(ctx, records, summaries); err != nil {
		return fmt.Errorf("store impacts: %w", err)
	}
	res.Summaries = summaries
	for _, s := range summaries {
		p.logger.Info("zone impact",
			"zone", s.ZoneID, "asset_categories", len(s.AssetsByCat),
			"land_cover_classes", len(s.HectaresByClass))
	}
	return nil
}

// stageTimer starts timing a named stage and returns the function that
// records the observation.
func (p *Pipeline) stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/lakerise/internal/adapter/asciigrid"
	httpadapter "github.com/couchcryptid/lakerise/internal/adapter/http"
	"github.com/couchcryptid/lakerise/internal/adapter/overpass"
	"github.com/couchcryptid/lakerise/internal/adapter/store"
	"github.com/couchcryptid/lakerise/internal/config"
	"github.com/couchcryptid/lakerise/internal/domain"
	"github.com/couchcryptid/lakerise/internal/observability"
	"github.com/couchcryptid/lakerise/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	rasters := asciigrid.NewFileSource(cfg.DataDir)

	client := overpass.New(cfg.OverpassURL, cfg.OverpassTimeout,
		overpass.Projection{Lat0: cfg.OriginLat, Lon0: cfg.OriginLon}, logger, metrics)
	assets := overpass.NewCachedSource(client, cfg.OverpassCacheSize, metrics)

	results, err := store.Open(cfg.ResultsDB)
	if err != nil {
		logger.Error("failed to open results store", "path", cfg.ResultsDB, "error", err)
		os.Exit(1)
	}

	p := pipeline.New(rasters, assets, results, logger, metrics, pipeline.Params{
		Years:          cfg.Years,
		TargetYear:     cfg.TargetYear,
		IndexThreshold: cfg.WaterIndexThreshold,
		Vectorize: domain.VectorizeConfig{
			MinAreaM2:   cfg.MinPolygonAreaM2,
			CloseRadius: cfg.CloseRadiusCells,
			TileSize:    cfg.TileSizeCells,
		},
		RainLookback:  cfg.RainfallLookback,
		RiskThreshold: cfg.RiskThreshold,
		TrainSeed:     cfg.TrainSeed,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, results, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if _, err := p.Run(ctx); err != nil {
			logger.Error("analysis error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := results.Close(); err != nil {
		logger.Error("results store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

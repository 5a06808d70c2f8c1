package main

import (
	"log/slog"

	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/csvfile"
	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/fcc"
	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/sqlite"
	"github.com/couchcryptid/fcc-block-geocoder/internal/config"
	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
	"github.com/couchcryptid/fcc-block-geocoder/internal/observability"
)

func newGeocoder(cfg *config.Config, logger *slog.Logger, m *observability.Metrics) domain.Geocoder {
	client := fcc.NewClient(logger,
		fcc.WithBaseURL(cfg.FCCBaseURL),
		fcc.WithTimeout(cfg.FCCTimeout),
		fcc.WithRateLimit(cfg.RequestsPerSecond),
		fcc.WithMetrics(m),
	)
	if cfg.CacheSize > 0 {
		logger.Info("lookup cache enabled", "size", cfg.CacheSize)
		return fcc.NewCachedGeocoder(client, cfg.CacheSize, m)
	}
	return client
}

func newSink(cfg *config.Config) domain.Sink {
	if cfg.Format() == config.FormatSQLite {
		return sqlite.NewSink(cfg.IncludeFullResponse)
	}
	return csvfile.NewSink(cfg.IncludeFullResponse)
}

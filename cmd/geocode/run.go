package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/csvfile"
	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/fcc"
	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/fcc-block-geocoder/internal/adapter/kafka"
	"github.com/couchcryptid/fcc-block-geocoder/internal/config"
	"github.com/couchcryptid/fcc-block-geocoder/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Geocode every pair in the input file",
		Long: `Looks up each latitude/longitude pair in the input CSV, in order, and
writes one row per pair to the output. Rate-limited lookups pause the whole run
and are retried. Partial results are checkpointed next to the output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyRunFlags(cmd, a.cfg); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			progress, _ := cmd.Flags().GetBool("progress")
			return a.run(ctx, progress, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("input", "", "input CSV path (GEOCODE_INPUT)")
	f.String("output", "", "output path (GEOCODE_OUTPUT)")
	f.String("lat-column", "", "latitude column name (LAT_COLUMN)")
	f.String("lon-column", "", "longitude column name (LON_COLUMN)")
	f.Int("backoff-minutes", 0, "minutes to wait after a rate limit (BACKOFF_MINUTES)")
	f.Int("max-backoff-retries", 0, "rate-limited attempts per pair, 0 for unbounded (MAX_BACKOFF_RETRIES)")
	f.Bool("full-response", false, "store the raw provider response (INCLUDE_FULL_RESPONSE)")
	f.String("format", "", "output format: csv or sqlite (OUTPUT_FORMAT)")
	f.Bool("progress", false, "show a progress bar when stderr is a terminal")
	return cmd
}

// applyRunFlags copies explicitly set flags over the environment config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	for name, dst := range map[string]*string{
		"input":      &cfg.InputPath,
		"output":     &cfg.OutputPath,
		"lat-column": &cfg.LatitudeColumn,
		"lon-column": &cfg.LongitudeColumn,
	} {
		if f.Changed(name) {
			v, _ := f.GetString(name)
			*dst = v
		}
	}

	if f.Changed("backoff-minutes") {
		n, _ := f.GetInt("backoff-minutes")
		if n <= 0 {
			return fmt.Errorf("--backoff-minutes must be positive, got %d", n)
		}
		cfg.Backoff = time.Duration(n) * time.Minute
	}
	if f.Changed("max-backoff-retries") {
		n, _ := f.GetInt("max-backoff-retries")
		if n < 0 {
			return fmt.Errorf("--max-backoff-retries must not be negative, got %d", n)
		}
		cfg.MaxBackoffRetries = n
	}
	if f.Changed("full-response") {
		cfg.IncludeFullResponse, _ = f.GetBool("full-response")
	}
	if f.Changed("format") {
		format, _ := f.GetString("format")
		if format != config.FormatCSV && format != config.FormatSQLite {
			return fmt.Errorf("--format must be csv or sqlite, got %q", format)
		}
		cfg.OutputFormat = format
	}
	return nil
}

func (a *app) run(ctx context.Context, showProgress bool, out io.Writer) error {
	cfg, logger := a.cfg, a.logger

	coords, err := csvfile.ReadCoordinatesFile(cfg.InputPath, cfg.LatitudeColumn, cfg.LongitudeColumn)
	if err != nil {
		return err
	}
	logger.Info("input loaded", "path", cfg.InputPath, "pairs", len(coords))

	m := metrics()
	opts := []pipeline.Option{
		pipeline.WithRetryPolicy(pipeline.RetryPolicy{Backoff: cfg.Backoff, MaxAttempts: cfg.MaxBackoffRetries}),
		pipeline.WithProgressInterval(cfg.ProgressInterval),
		pipeline.WithCheckpointInterval(cfg.CheckpointInterval),
		pipeline.WithCheckpointSuffix(cfg.CheckpointSuffix),
		pipeline.WithVerbose(cfg.IncludeFullResponse),
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("publishing outcomes", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if showProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar := progressbar.NewOptions(len(coords),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		opts = append(opts, pipeline.WithProgress(func(done, _ int) { _ = bar.Set(done) }))
	}

	geocoder := newGeocoder(cfg, logger, m)
	if cached, ok := geocoder.(*fcc.CachedGeocoder); ok {
		defer func() { logger.Info("lookup cache", "entries", cached.Len(), "size", cfg.CacheSize) }()
	}
	runner := pipeline.New(geocoder, newSink(cfg), logger, m, opts...)

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, runner, logger)
		srv.StartBackground()
		defer func() {
			if err := srv.Shutdown(context.Background(), cfg.ShutdownTimeout); err != nil {
				logger.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	rep, err := runner.Run(ctx, cfg.OutputPath, coords)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d rows (ok %d, no match %d, errors %d, exceptions %d) in %s\n",
		cfg.OutputPath, rep.Total, rep.OK, rep.Empty, rep.Errors, rep.Exceptions, rep.Duration.Round(time.Second))
	return nil
}

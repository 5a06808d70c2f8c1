package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
	"github.com/couchcryptid/fcc-block-geocoder/internal/observability"
)

// Defaults applied when the matching option is not given.
const (
	DefaultBackoff            = 30 * time.Minute
	DefaultProgressInterval   = 1000
	DefaultCheckpointInterval = 50000
	DefaultCheckpointSuffix   = "_bak"
)

// cancelFlushTimeout bounds publisher flushes and the checkpoint written
// after the run context is cancelled.
const cancelFlushTimeout = 10 * time.Second

// RetryPolicy controls how a rate-limited pair is retried.
type RetryPolicy struct {
	// Backoff is how long the whole run pauses after a rate-limited lookup.
	Backoff time.Duration
	// MaxAttempts caps rate-limited attempts per pair. Zero retries forever.
	MaxAttempts int
}

// Report summarizes a completed run.
type Report struct {
	Total       int
	OK          int
	Empty       int
	Errors      int
	Exceptions  int
	Backoffs    int
	Checkpoints int
	Duration    time.Duration
}

func (r *Report) record(o domain.Outcome) {
	switch o.Class() {
	case domain.ClassOK:
		r.OK++
	case domain.ClassEmpty:
		r.Empty++
	case domain.ClassException:
		r.Exceptions++
	default:
		r.Errors++
	}
}

// Runner geocodes an ordered list of coordinates one at a time, pausing the
// whole run when the provider signals a rate limit.
type Runner struct {
	geocoder  domain.Geocoder
	sink      domain.Sink
	publisher domain.Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	retry              RetryPolicy
	progressInterval   int
	checkpointInterval int
	checkpointSuffix   string
	verbose            bool
	preflight          Preflight
	onProgress         func(done, total int)

	ready atomic.Bool
}

// Option configures the Runner.
type Option func(*Runner)

// WithClock replaces the clock used for backoff waits and run timing.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithRetryPolicy sets the rate-limit backoff. A non-positive Backoff keeps the default.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Runner) {
		if p.Backoff > 0 {
			r.retry.Backoff = p.Backoff
		}
		if p.MaxAttempts >= 0 {
			r.retry.MaxAttempts = p.MaxAttempts
		}
	}
}

// WithProgressInterval sets how many completed pairs pass between progress
// log lines and publisher flushes.
func WithProgressInterval(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.progressInterval = n
		}
	}
}

// WithCheckpointInterval sets how many completed pairs pass between checkpoints.
func WithCheckpointInterval(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.checkpointInterval = n
		}
	}
}

// WithCheckpointSuffix sets the suffix appended to the output path for checkpoints.
func WithCheckpointSuffix(s string) Option {
	return func(r *Runner) {
		if s != "" {
			r.checkpointSuffix = s
		}
	}
}

// WithVerbose asks the geocoder to attach the raw provider response.
func WithVerbose(v bool) Option {
	return func(r *Runner) {
		r.verbose = v
	}
}

// WithPreflight replaces the known-good lookup made before each run.
func WithPreflight(p Preflight) Option {
	return func(r *Runner) {
		r.preflight = p
	}
}

// WithPublisher streams outcomes downstream as the run progresses.
func WithPublisher(p domain.Publisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithProgress registers a callback invoked after every completed pair.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// New creates a Runner that looks pairs up with geocoder and persists results to sink.
func New(geocoder domain.Geocoder, sink domain.Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Runner {
	r := &Runner{
		geocoder:           geocoder,
		sink:               sink,
		logger:             logger,
		metrics:            metrics,
		clock:              clockwork.NewRealClock(),
		retry:              RetryPolicy{Backoff: DefaultBackoff},
		progressInterval:   DefaultProgressInterval,
		checkpointInterval: DefaultCheckpointInterval,
		checkpointSuffix:   DefaultCheckpointSuffix,
		preflight:          DefaultPreflight,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckReadiness returns nil once a preflight lookup has succeeded.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("preflight check has not passed yet")
	}
	return nil
}

// CheckpointPath returns where partial results for output are written.
func (r *Runner) CheckpointPath(output string) string {
	return output + r.checkpointSuffix
}

// Run preflights the provider, then geocodes coords in order and writes one
// outcome per pair to output. Partial results are written to the checkpoint
// path every checkpoint interval and when ctx is cancelled mid-run.
func (r *Runner) Run(ctx context.Context, output string, coords []domain.Coordinate) (Report, error) {
	start := r.clock.Now()
	r.metrics.RunActive.Set(1)
	defer r.metrics.RunActive.Set(0)
	r.metrics.PairsTotal.Set(float64(len(coords)))
	r.metrics.PairsCompleted.Set(0)

	if err := r.Preflight(ctx); err != nil {
		return Report{}, err
	}

	r.logger.Info("run started",
		"pairs", len(coords),
		"output", output,
		"backoff", r.retry.Backoff,
		"checkpoint_interval", r.checkpointInterval,
	)

	rep := Report{Total: len(coords)}
	acc := make([]domain.Outcome, 0, len(coords))
	var pending []domain.Outcome

	for i, c := range coords {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, output, acc, pending, rep, start, err)
		}

		out, err := r.step(ctx, i, c, &rep)
		if err != nil {
			return r.abort(ctx, output, acc, pending, rep, start, err)
		}

		acc = append(acc, out)
		rep.record(out)
		if r.publisher != nil {
			pending = append(pending, out)
		}
		r.metrics.PairsCompleted.Set(float64(len(acc)))
		if r.onProgress != nil {
			r.onProgress(len(acc), len(coords))
		}

		if len(acc)%r.progressInterval == 0 {
			r.logger.Info("progress",
				"done", len(acc),
				"total", len(coords),
				"elapsed", r.clock.Since(start).Round(time.Second),
			)
			pending = r.flush(ctx, pending)
		}
		if len(acc)%r.checkpointInterval == 0 {
			r.checkpoint(ctx, output, acc, &rep)
		}
	}

	// Every pair has an outcome now; a late cancellation must not discard them.
	finalCtx := context.WithoutCancel(ctx)
	if err := r.sink.Write(finalCtx, output, acc); err != nil {
		r.logger.Error("output write failed, saving checkpoint", "error", err, "path", output)
		r.checkpoint(finalCtx, output, acc, &rep)
		return rep, fmt.Errorf("write output %s: %w", output, err)
	}
	flushCtx, cancel := context.WithTimeout(finalCtx, cancelFlushTimeout)
	defer cancel()
	r.flush(flushCtx, pending)

	rep.Duration = r.clock.Since(start)
	r.logger.Info("run complete",
		"pairs", rep.Total,
		"ok", rep.OK,
		"empty", rep.Empty,
		"errors", rep.Errors,
		"exceptions", rep.Exceptions,
		"backoffs", rep.Backoffs,
		"duration", rep.Duration,
	)
	return rep, nil
}

// step drives one pair to a recorded outcome. It only returns an error when
// ctx is cancelled; every other failure becomes part of the outcome.
func (r *Runner) step(ctx context.Context, index int, c domain.Coordinate, rep *Report) (domain.Outcome, error) {
	attempts := 0
	for {
		out, err := r.geocoder.Lookup(ctx, c, r.verbose)
		wait := r.retry.Backoff

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return domain.Outcome{}, ctx.Err()
		case domain.IsRateLimited(err):
			var rl *domain.RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > wait {
				wait = rl.RetryAfter
			}
			out = domain.Outcome{Latitude: c.Latitude, Longitude: c.Longitude, Status: domain.StatusOverLimit}
		default:
			r.logger.Error("lookup failed",
				"error", err,
				"row", index+1,
				"latitude", c.Latitude,
				"longitude", c.Longitude,
			)
			r.metrics.Lookups.WithLabelValues(string(domain.ClassException)).Inc()
			return domain.ExceptionOutcome(c), nil
		}

		class := out.Class()
		r.metrics.Lookups.WithLabelValues(string(class)).Inc()

		switch class {
		case domain.ClassOK, domain.ClassEmpty:
			r.logger.Debug("lookup ok", "row", index+1, "fips", out.FIPSOrEmpty())
			return out, nil
		case domain.ClassOverLimit:
		default:
			r.logger.Warn("lookup returned non-OK status",
				"status", out.Status,
				"row", index+1,
				"latitude", c.Latitude,
				"longitude", c.Longitude,
			)
			return out, nil
		}

		attempts++
		if r.retry.MaxAttempts > 0 && attempts >= r.retry.MaxAttempts {
			r.logger.Warn("rate limit retries exhausted, recording outcome",
				"row", index+1,
				"attempts", attempts,
			)
			return out, nil
		}

		r.logger.Info("backing off", "row", index+1, "attempt", attempts, "wait", wait)
		r.metrics.Backoffs.Inc()
		rep.Backoffs++

		select {
		case <-ctx.Done():
			return domain.Outcome{}, ctx.Err()
		case <-r.clock.After(wait):
		}
	}
}

// checkpoint writes the full accumulator to the checkpoint path. Failures are
// logged and counted; the run continues.
func (r *Runner) checkpoint(ctx context.Context, output string, acc []domain.Outcome, rep *Report) {
	dest := r.CheckpointPath(output)
	if err := r.sink.Write(ctx, dest, acc); err != nil {
		r.logger.Error("checkpoint write failed", "error", err, "path", dest, "rows", len(acc))
		r.metrics.Checkpoints.WithLabelValues("error").Inc()
		return
	}
	rep.Checkpoints++
	r.metrics.Checkpoints.WithLabelValues("success").Inc()
	r.logger.Info("checkpoint written", "path", dest, "rows", len(acc))
}

// flush publishes buffered outcomes and returns the buffer emptied for reuse.
func (r *Runner) flush(ctx context.Context, pending []domain.Outcome) []domain.Outcome {
	if r.publisher == nil || len(pending) == 0 {
		return pending[:0]
	}
	if err := r.publisher.Publish(ctx, pending); err != nil {
		r.logger.Error("publish outcomes failed", "error", err, "count", len(pending))
		r.metrics.PublishErrors.Inc()
	}
	return pending[:0]
}

// abort saves the completed prefix to the checkpoint path and returns cause.
func (r *Runner) abort(ctx context.Context, output string, acc, pending []domain.Outcome, rep Report, start time.Time, cause error) (Report, error) {
	r.logger.Warn("run interrupted", "reason", cause, "done", len(acc), "total", rep.Total)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelFlushTimeout)
	defer cancel()
	if len(acc) > 0 {
		r.checkpoint(flushCtx, output, acc, &rep)
	}
	r.flush(flushCtx, pending)

	rep.Duration = r.clock.Since(start)
	return rep, fmt.Errorf("run interrupted after %d of %d pairs: %w", len(acc), rep.Total, cause)
}

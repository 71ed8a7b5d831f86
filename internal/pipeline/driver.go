// Package pipeline drives a full emojidb run.
//
// A run loads the Unicode registry, bootstraps the detail site build token,
// then resolves every record in registry order and streams it to the sinks.
// Records are handled one at a time with a minimum spacing between starts.
// Resolution problems never stop a run; registry, bootstrap and sink
// failures do.
package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"emojidb/internal/common/errors"
	"emojidb/internal/common/logging"
	"emojidb/internal/common/ratelimit"
	"emojidb/internal/enrichers"
	"emojidb/internal/gateway"
	"emojidb/internal/metrics"
	"emojidb/internal/models"
	"emojidb/internal/registry"
	"emojidb/internal/storage"
)

// StdoutOutput selects the driver's stdout writer as the JSON destination
const StdoutOutput = "-"

// finalizeTimeout bounds store and push calls made after the run context ends
const finalizeTimeout = 10 * time.Second

// progressEvery controls how often progress is logged at info level
const progressEvery = 100

// Resolver is the part of the enrichment resolver the driver uses
type Resolver interface {
	ResolveDetailed(ctx context.Context, rec models.Record) enrichers.Result
	SetBuildID(buildID string)
}

// Config configures a Driver
type Config struct {
	RegistryURL  string
	RegistryPath string
	SiteURL      string
	OutputPath   string
	// Offset skips records from the start of the registry; Limit caps the
	// number processed when positive
	Offset         int
	Limit          int
	RecordDelay    time.Duration
	PushgatewayURL string
}

// Summary describes a finished run
type Summary struct {
	RunID     string
	BuildID   string
	Registry  registry.Stats
	Total     int
	Enriched  int
	Unchanged int
	Attempts  int
	Sources   map[string]int
	Duration  time.Duration
}

// Option customizes a Driver
type Option func(*Driver)

// WithStore mirrors records into store
func WithStore(store storage.RecordStore) Option {
	return func(d *Driver) {
		d.store = store
	}
}

// WithMetrics records run metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithLimiter replaces the limiter built from Config.RecordDelay
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(d *Driver) {
		d.limiter = limiter
	}
}

// RunLock is a held lease that must be renewed while the run makes progress
type RunLock interface {
	Extend(ctx context.Context) error
}

// WithRunLock extends lock before each record and aborts the run once it is lost
func WithRunLock(lock RunLock) Option {
	return func(d *Driver) {
		d.lock = lock
	}
}

// WithStdout sets the writer used when OutputPath is "-"
func WithStdout(w io.Writer) Option {
	return func(d *Driver) {
		d.stdout = w
	}
}

// Driver runs the pipeline
type Driver struct {
	config   Config
	gateway  gateway.Gateway
	resolver Resolver
	limiter  ratelimit.Limiter
	store    storage.RecordStore
	metrics  *metrics.Metrics
	lock     RunLock
	stdout   io.Writer
	logger   logging.Logger
}

// NewDriver creates a driver. A nil logger uses the global logger.
func NewDriver(config Config, gw gateway.Gateway, resolver Resolver, logger logging.Logger, opts ...Option) (*Driver, error) {
	if gw == nil {
		return nil, errors.ConfigError("gateway is required")
	}
	if resolver == nil {
		return nil, errors.ConfigError("resolver is required")
	}
	if config.RegistryURL == "" && config.RegistryPath == "" {
		return nil, errors.ConfigError("registry URL or path is required")
	}
	if config.Offset < 0 || config.Limit < 0 {
		return nil, errors.ConfigError("offset and limit must not be negative")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	config.SiteURL = strings.TrimRight(config.SiteURL, "/")
	if config.OutputPath == "" {
		config.OutputPath = StdoutOutput
	}

	d := &Driver{
		config:   config,
		gateway:  gw,
		resolver: resolver,
		stdout:   os.Stdout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.limiter == nil {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
			Interval: config.RecordDelay,
			Enabled:  config.RecordDelay > 0,
		})
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid record delay: %v", err))
		}
		d.limiter = limiter
	}

	return d, nil
}

// Run executes one full pipeline run.
//
// On cancellation the run stops before the next record, the JSON array is
// still terminated and ctx.Err() is returned along with the partial summary.
func (d *Driver) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := d.logger.WithContext(ctx)

	summary = Summary{RunID: runID, Sources: make(map[string]int)}
	defer func() { summary.Duration = time.Since(start) }()

	records, stats, err := d.loadRecords(ctx)
	if err != nil {
		logger.Error("Failed to load registry", err)
		return summary, err
	}
	summary.Registry = stats
	logger.Info("Registry loaded",
		logging.Int("records", len(records)),
		logging.Int("groups", stats.Groups),
		logging.Int("dropped", stats.Dropped),
	)

	buildID, err := d.bootstrap(ctx)
	if err != nil {
		logger.Error("Bootstrap failed", err)
		return summary, err
	}
	summary.BuildID = buildID
	d.resolver.SetBuildID(buildID)
	logger.Info("Site bootstrapped", logging.String("build_id", buildID))

	run := &storage.Run{ID: runID}
	sink, err := d.openSinks(ctx, run)
	if err != nil {
		logger.Error("Failed to open sinks", err)
		return summary, err
	}

	runErr := d.process(ctx, records, sink, &summary, logger)

	if err := sink.Close(); err != nil && runErr == nil {
		runErr = errors.FatalError("failed to close sinks", err)
	}

	d.finishRun(ctx, run, &summary, runErr, logger)
	d.pushMetrics(ctx, logger)

	if runErr != nil {
		if isCancellation(ctx, runErr) {
			logger.Warn("Run cancelled",
				logging.Int("written", summary.Total),
				logging.Int("remaining", len(records)-summary.Total),
			)
			return summary, ctx.Err()
		}
		logger.Error("Run failed", runErr, logging.Int("written", summary.Total))
		return summary, runErr
	}

	logger.Info("Run completed",
		logging.Int("records", summary.Total),
		logging.Int("enriched", summary.Enriched),
		logging.Int("unchanged", summary.Unchanged),
		logging.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// ParseOnly writes the unenriched base records to w as a JSON array. A nil
// w writes to the configured output, which is created only once the
// registry has loaded.
func (d *Driver) ParseOnly(ctx context.Context, w io.Writer) (int, error) {
	records, _, err := d.loadRecords(ctx)
	if err != nil {
		return 0, err
	}

	var sink *JSONArraySink
	if w != nil {
		sink, err = NewJSONArraySink(w)
	} else {
		sink, err = d.openJSONSink()
	}
	if err != nil {
		return 0, errors.FatalError("failed to open output", err)
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			sink.Close()
			return sink.Count(), err
		}
		if err := sink.Write(ctx, rec); err != nil {
			sink.Close()
			return sink.Count(), errors.FatalError("failed to write record", err)
		}
	}
	if err := sink.Close(); err != nil {
		return sink.Count(), errors.FatalError("failed to finalize output", err)
	}
	return sink.Count(), nil
}

// process resolves and writes each record in order
func (d *Driver) process(ctx context.Context, records []models.Record, sink Sink, summary *Summary, logger logging.Logger) error {
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.InternalError("scheduler wait failed", err)
		}
		if d.lock != nil {
			if err := d.lock.Extend(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return errors.FatalError("run lock lost", err)
			}
		}

		started := time.Now()
		result := d.resolver.ResolveDetailed(ctx, rec)
		elapsed := time.Since(started)

		// A record interrupted mid-resolution is not written
		if ctx.Err() != nil && isCancellation(ctx, result.Err) {
			return ctx.Err()
		}

		// A resolved record is written even if ctx ends meanwhile
		if err := sink.Write(context.WithoutCancel(ctx), result.Record); err != nil {
			return errors.FatalError("sink write failed", err)
		}
		// The quiet period before the next record starts from here
		d.limiter.Done()

		summary.Total++
		summary.Attempts += result.Attempts
		summary.Sources[string(result.Source)]++
		outcome := metrics.OutcomeUnchanged
		if result.Enriched() {
			summary.Enriched++
			outcome = metrics.OutcomeEnriched
		} else {
			summary.Unchanged++
		}
		d.metrics.ObserveResolve(string(result.Source), result.Attempts, elapsed)
		d.metrics.IncrementRecord(outcome)

		logger.Debug("Record written",
			logging.String("code", rec.Code),
			logging.String("source", string(result.Source)),
			logging.Int("attempts", result.Attempts),
			logging.Duration("elapsed", elapsed),
		)
		if (i+1)%progressEvery == 0 {
			logger.Info("Progress",
				logging.Int("done", i+1),
				logging.Int("total", len(records)),
				logging.Int("enriched", summary.Enriched),
			)
		}
	}
	return nil
}

// loadRecords reads the registry and applies the offset and limit window
func (d *Driver) loadRecords(ctx context.Context) ([]models.Record, registry.Stats, error) {
	var (
		records []models.Record
		stats   registry.Stats
	)

	if d.config.RegistryPath != "" {
		file, err := os.Open(d.config.RegistryPath)
		if err != nil {
			return nil, stats, errors.FatalError("failed to open registry file", err).
				WithContext("path", d.config.RegistryPath)
		}
		defer file.Close()

		records, stats, err = registry.ParseReader(file)
		if err != nil {
			return nil, stats, errors.FatalError("failed to read registry file", err).
				WithContext("path", d.config.RegistryPath)
		}
	} else {
		body, err := d.gateway.FetchPage(ctx, d.config.RegistryURL)
		if err != nil {
			return nil, stats, errors.FatalError("failed to fetch registry", err).
				WithContext("url", d.config.RegistryURL)
		}
		records, stats, err = registry.ParseReader(bytes.NewReader(body))
		if err != nil {
			return nil, stats, errors.FatalError("failed to read registry", err)
		}
	}

	return window(records, d.config.Offset, d.config.Limit), stats, nil
}

// window returns records[offset:offset+limit], clamped; a zero limit means
// no cap
func window(records []models.Record, offset, limit int) []models.Record {
	if offset >= len(records) {
		return records[:0]
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// bootstrap reads the site build token from the home page
func (d *Driver) bootstrap(ctx context.Context) (string, error) {
	page, err := d.gateway.FetchEmbedded(ctx, d.config.SiteURL+"/")
	if err != nil {
		return "", errors.FatalError("failed to fetch site home page", err)
	}

	nextData, err := gateway.ParseNextData(page.NextData)
	if err != nil {
		return "", errors.FatalError("failed to read site build data", err)
	}
	if nextData.BuildID == "" {
		return "", errors.FatalError("site build token is empty", nil)
	}
	return nextData.BuildID, nil
}

// openSinks creates the JSON output and, when configured, starts the stored
// run. Nothing is created before this point.
func (d *Driver) openSinks(ctx context.Context, run *storage.Run) (Sink, error) {
	jsonSink, err := d.openJSONSink()
	if err != nil {
		return nil, errors.FatalError("failed to open output", err)
	}

	sinks := MultiSink{jsonSink}
	if d.store != nil {
		if err := d.store.StartRun(ctx, run); err != nil {
			jsonSink.Close()
			return nil, errors.FatalError("failed to start stored run", err)
		}
		sinks = append(sinks, NewStoreSink(d.store, run.ID))
	}
	return sinks, nil
}

func (d *Driver) openJSONSink() (*JSONArraySink, error) {
	if d.config.OutputPath == StdoutOutput {
		return NewJSONArraySink(d.stdout)
	}
	return CreateJSONFileSink(d.config.OutputPath)
}

// finishRun records the final status of a stored run
func (d *Driver) finishRun(ctx context.Context, run *storage.Run, summary *Summary, runErr error, logger logging.Logger) {
	if d.store == nil {
		return
	}

	run.Status = storage.RunStatusCompleted
	switch {
	case runErr == nil:
	case isCancellation(ctx, runErr):
		run.Status = storage.RunStatusCancelled
	default:
		run.Status = storage.RunStatusFailed
	}
	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt
	run.Total = summary.Total
	run.Enriched = summary.Enriched
	run.Unchanged = summary.Unchanged

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := d.store.FinishRun(finishCtx, run); err != nil {
		logger.Error("Failed to finish stored run", err, logging.String("status", run.Status))
	}
}

// pushMetrics sends run metrics to the Pushgateway; failures are logged only
func (d *Driver) pushMetrics(ctx context.Context, logger logging.Logger) {
	if d.config.PushgatewayURL == "" {
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := d.metrics.Push(pushCtx, d.config.PushgatewayURL, metrics.DefaultJob); err != nil {
		logger.Warn("Failed to push metrics", logging.Err(err))
	}
}

func isCancellation(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}

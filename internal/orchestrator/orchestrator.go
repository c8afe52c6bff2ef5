// Package orchestrator sequences one pipeline run: select, download, extract,
// aggregate, report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brensch/ificstats/internal/aggregate"
	"github.com/brensch/ificstats/internal/catalog"
	"github.com/brensch/ificstats/internal/config"
	"github.com/brensch/ificstats/internal/downloader"
	"github.com/brensch/ificstats/internal/extractor"
	"github.com/brensch/ificstats/internal/recordsource"
	"github.com/brensch/ificstats/internal/report"
	"github.com/brensch/ificstats/internal/util"
)

// ErrInvalidRange is returned when the start date is after the end date.
var ErrInvalidRange = errors.New("start date is after end date")

// Confirmer answers the two questions asked during a run.
type Confirmer interface {
	ConfirmDownload(ctx context.Context, missing int) (bool, error)
	ConfirmAggregate(ctx context.Context) (bool, error)
}

// FixedAnswers is a Confirmer for non-interactive runs.
type FixedAnswers struct {
	Download  bool
	Aggregate bool
}

func (f FixedAnswers) ConfirmDownload(context.Context, int) (bool, error) { return f.Download, nil }
func (f FixedAnswers) ConfirmAggregate(context.Context) (bool, error)     { return f.Aggregate, nil }

// Executor runs planned downloads. *downloader.Manager implements it.
type Executor interface {
	Execute(ctx context.Context, tasks []downloader.Task) []downloader.Result
}

// Deps are the collaborators of a run.
type Deps struct {
	Catalog    catalog.YearFetcher
	Downloader Executor
	Open       recordsource.Opener
	Sinks      []report.Sink
	Confirm    Confirmer
	Logger     *slog.Logger
}

// Options select the catalog date range, inclusive at both ends.
type Options struct {
	Start time.Time
	End   time.Time
}

// SinkResult is the outcome of writing the report to one sink.
type SinkResult struct {
	Sink string
	Err  error
}

// Summary collects every per-unit outcome of a run.
type Summary struct {
	Years       []catalog.YearResult
	Records     []catalog.Record
	Planned     []downloader.Task
	Downloads   []downloader.Result
	Extractions []extractor.Result
	Files       []aggregate.FileResult
	Counters    aggregate.Counters
	Tables      report.Tables
	Sinks       []SinkResult

	Aborted    bool // download declined, nothing after phase 2 ran
	Aggregated bool
	Duration   time.Duration
}

// Err joins every per-unit failure. Catalog years that do not exist are not failures.
func (s Summary) Err() error {
	var errs []error
	for _, y := range s.Years {
		if y.Err != nil && !errors.Is(y.Err, catalog.ErrCatalogUnavailable) {
			errs = append(errs, fmt.Errorf("catalog year %d: %w", y.Year, y.Err))
		}
	}
	for _, d := range downloader.Failed(s.Downloads) {
		errs = append(errs, fmt.Errorf("download %s: %w", d.Task.Record.URL, d.Err))
	}
	for _, e := range s.Extractions {
		if e.Err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", e.Archive, e.Err))
		}
	}
	for _, f := range s.Files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("aggregate %s: %w", f.Path, f.Err))
		}
	}
	for _, r := range s.Sinks {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("report %s: %w", r.Sink, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Run executes the full pipeline. Only setup problems and declined or failed
// confirmations are returned as errors; per-unit failures live in the Summary.
func Run(ctx context.Context, cfg config.Config, deps Deps, opts Options) (Summary, error) {
	logger := deps.Logger
	start := time.Now()
	var sum Summary

	if opts.Start.After(opts.End) {
		return sum, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			util.FormatCatalogDate(opts.Start), util.FormatCatalogDate(opts.End))
	}
	if err := ensureDirs(cfg.DownloadDir, cfg.ExtractDir); err != nil {
		return sum, err
	}
	logger.Info("Starting run.",
		slog.String("start", util.FormatCatalogDate(opts.Start)),
		slog.String("end", util.FormatCatalogDate(opts.End)))

	// --- Phase 1: Select records in range ---
	logger.Info("Phase 1: Reading catalog pages.", slog.Int("from_year", opts.Start.Year()), slog.Int("to_year", opts.End.Year()))
	sum.Records, sum.Years = catalog.SelectRange(ctx, deps.Catalog, opts.Start, opts.End, logger)
	if len(sum.Records) == 0 {
		logger.Info("No records found in range. Run finished.")
		return finish(sum, start, logger), nil
	}
	for _, rec := range sum.Records {
		logger.Info("Record in range.", slog.String("date", util.FormatCatalogDate(rec.Date)), slog.String("url", rec.URL))
	}

	// --- Phase 2: Plan downloads ---
	sum.Planned = downloader.Plan(sum.Records, cfg.DownloadDir)
	logger.Info("Phase 2: Download plan ready.", slog.Int("records", len(sum.Records)), slog.Int("missing", len(sum.Planned)))
	if len(sum.Planned) > 0 {
		ok, err := deps.Confirm.ConfirmDownload(ctx, len(sum.Planned))
		if err != nil {
			return finish(sum, start, logger), fmt.Errorf("confirm download: %w", err)
		}
		if !ok {
			logger.Warn("Download declined. Run aborted.")
			sum.Aborted = true
			return finish(sum, start, logger), nil
		}

		// --- Phase 3: Download ---
		logger.Info("Phase 3: Downloading missing archives.", slog.Int("files", len(sum.Planned)))
		sum.Downloads = deps.Downloader.Execute(ctx, sum.Planned)
		if failed := downloader.Failed(sum.Downloads); len(failed) > 0 {
			logger.Warn("Some downloads failed.", slog.Int("failed", len(failed)), slog.Int("total", len(sum.Downloads)))
		}
	} else {
		logger.Info("Phase 3: All archives already downloaded.")
	}

	// --- Phase 4: Extract payloads from every archive in range ---
	archives := archivePaths(sum.Records, cfg.DownloadDir)
	logger.Info("Phase 4: Extracting payloads.", slog.Int("archives", len(archives)), slog.String("extract_dir", cfg.ExtractDir))
	sum.Extractions = extractor.ExtractAll(ctx, archives, extractor.Options{Dir: cfg.ExtractDir, Extension: cfg.Payload.Extension}, logger)

	// --- Phase 5: Aggregate ---
	ok, err := deps.Confirm.ConfirmAggregate(ctx)
	if err != nil {
		return finish(sum, start, logger), fmt.Errorf("confirm aggregate: %w", err)
	}
	if !ok {
		logger.Info("Aggregation skipped.")
		return finish(sum, start, logger), nil
	}
	aggregateAndReport(ctx, cfg, deps, &sum)
	return finish(sum, start, logger), nil
}

// RunAggregate runs the aggregate and report phases over whatever is already
// in the extract directory.
func RunAggregate(ctx context.Context, cfg config.Config, deps Deps) (Summary, error) {
	start := time.Now()
	var sum Summary
	if _, err := os.Stat(cfg.ExtractDir); err != nil {
		return sum, fmt.Errorf("extract dir: %w", err)
	}
	aggregateAndReport(ctx, cfg, deps, &sum)
	return finish(sum, start, deps.Logger), nil
}

func aggregateAndReport(ctx context.Context, cfg config.Config, deps Deps, sum *Summary) {
	logger := deps.Logger
	logger.Info("Phase 5: Aggregating payloads.", slog.String("dir", cfg.ExtractDir), slog.String("driver", cfg.Payload.Driver))
	sum.Counters, sum.Files = aggregate.Aggregate(ctx, cfg.ExtractDir, cfg.Payload.Extension, deps.Open, logger)
	sum.Aggregated = true

	// --- Phase 6: Report ---
	sum.Tables = report.Build(sum.Counters)
	logger.Info("Phase 6: Writing report.", slog.Int("sinks", len(deps.Sinks)), slog.Int("total", sum.Tables.Total))
	for _, sink := range deps.Sinks {
		err := sink.Write(ctx, sum.Tables)
		if err != nil {
			logger.Error("Report sink failed.", slog.String("sink", sink.Name()), "error", err)
		}
		sum.Sinks = append(sum.Sinks, SinkResult{Sink: sink.Name(), Err: err})
	}
}

// archivePaths returns the distinct local archive paths for records, in order.
func archivePaths(records []catalog.Record, dir string) []string {
	var paths []string
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		p := downloader.LocalPath(rec, dir)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths
}

func ensureDirs(dirs ...string) error {
	var errs []error
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create directory %s: %w", d, err))
		}
	}
	return errors.Join(errs...)
}

func finish(sum Summary, start time.Time, logger *slog.Logger) Summary {
	sum.Duration = time.Since(start)

	var downloadsFailed, extractFailed, noPayload, filesFailed int
	downloadsFailed = len(downloader.Failed(sum.Downloads))
	for _, e := range sum.Extractions {
		if e.Err != nil {
			extractFailed++
		}
		if e.NoPayload {
			noPayload++
		}
	}
	for _, f := range sum.Files {
		if f.Err != nil {
			filesFailed++
		}
	}

	l := logger.With(
		slog.Int("records", len(sum.Records)),
		slog.Int("downloaded", len(sum.Downloads)-downloadsFailed),
		slog.Int("downloads_failed", downloadsFailed),
		slog.Int("archives_failed", extractFailed),
		slog.Int("archives_without_payload", noPayload),
		slog.Int("files_aggregated", len(sum.Files)-filesFailed),
		slog.Int("files_failed", filesFailed),
		slog.Int("total_notices", sum.Counters.Total),
		slog.Duration("duration", sum.Duration.Round(time.Millisecond)),
	)
	if err := sum.Err(); err != nil {
		l.Warn("Run finished with errors.", "error", err)
	} else {
		l.Info("Run finished.")
	}
	return sum
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// YearFetcher is the part of Reader used by the range selection.
type YearFetcher interface {
	FetchYear(ctx context.Context, year int) ([]Record, error)
}

// YearResult is the outcome of reading one year's catalog page.
type YearResult struct {
	Year     int
	Found    int // records on the page
	Selected int // records inside the requested range
	Err      error
}

// SelectRange reads every catalog year from start to end and keeps the records
// dated within [start, end]. Records are ordered by year, then by their
// position on the page. A year whose page cannot be read is logged and skipped.
func SelectRange(ctx context.Context, fetcher YearFetcher, start, end time.Time, logger *slog.Logger) ([]Record, []YearResult) {
	var (
		selected []Record
		results  []YearResult
	)
	for year := start.Year(); year <= end.Year(); year++ {
		if ctx.Err() != nil {
			logger.Warn("Range selection cancelled.", slog.Int("next_year", year), "error", ctx.Err())
			results = append(results, YearResult{Year: year, Err: ctx.Err()})
			break
		}

		records, err := fetcher.FetchYear(ctx, year)
		if err != nil {
			if errors.Is(err, ErrCatalogUnavailable) {
				logger.Warn("Catalog page not found, skipping year.", slog.Int("year", year), "error", err)
			} else {
				logger.Error("Failed to read catalog page, skipping year.", slog.Int("year", year), "error", err)
			}
			results = append(results, YearResult{Year: year, Err: err})
			continue
		}

		res := YearResult{Year: year, Found: len(records)}
		for _, rec := range records {
			if InRange(rec.Date, start, end) {
				selected = append(selected, rec)
				res.Selected++
			}
		}
		logger.Debug("Catalog year read.", slog.Int("year", year), slog.Int("found", res.Found), slog.Int("selected", res.Selected))
		results = append(results, res)
	}
	return selected, results
}

// InRange reports whether start <= t <= end.
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// FirstYear is the earliest year with a catalog page.
const FirstYear = 1998

// AvailableYears probes the catalog pages for every year in [from, to] and
// returns the years whose page could be fetched.
func AvailableYears(ctx context.Context, fetcher YearFetcher, from, to int, logger *slog.Logger) ([]int, error) {
	if from > to {
		return nil, fmt.Errorf("invalid year range %d-%d", from, to)
	}
	var years []int
	for year := from; year <= to; year++ {
		if err := ctx.Err(); err != nil {
			return years, err
		}
		if _, err := fetcher.FetchYear(ctx, year); err != nil {
			logger.Debug("Catalog year unavailable.", slog.Int("year", year), "error", err)
			continue
		}
		years = append(years, year)
	}
	return years, nil
}

// Package aggregate folds notice rows from extracted payloads into counters.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brensch/ificstats/internal/extractor"
	"github.com/brensch/ificstats/internal/recordsource"
)

// Unknown replaces missing or blank administration and reason values.
const Unknown = "Unknown"

// NoticeType is the single-letter notice type code.
type NoticeType string

const (
	TypeGeostationary    NoticeType = "G"
	TypeNonGeostationary NoticeType = "N"
	TypeSpecificEarth    NoticeType = "S"
	TypeTypicalEarth     NoticeType = "T"
	TypeRadioAstronomy   NoticeType = "R"
)

// NoticeTypes lists the recognised types in code order.
var NoticeTypes = []NoticeType{
	TypeGeostationary,
	TypeNonGeostationary,
	TypeRadioAstronomy,
	TypeSpecificEarth,
	TypeTypicalEarth,
}

var typeLabels = map[NoticeType]string{
	TypeGeostationary:    "Geostationary",
	TypeNonGeostationary: "Non-geostationary",
	TypeSpecificEarth:    "Specific Earth station",
	TypeTypicalEarth:     "Typical Earth station",
	TypeRadioAstronomy:   "Radio astronomy station",
}

// Label returns the human-readable name of t, or the code itself if unknown.
func (t NoticeType) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Known reports whether t is one of the recognised notice types.
func (t NoticeType) Known() bool {
	_, ok := typeLabels[t]
	return ok
}

// Counters are the running totals over all processed rows.
//
// Every row adds one to Total, to one Administrations entry and to one Reasons
// entry, so both maps always sum to Total. Types only counts recognised codes.
type Counters struct {
	Total           int
	Administrations map[string]int
	Reasons         map[string]int
	Types           map[NoticeType]int
}

// NewCounters returns empty counters.
func NewCounters() Counters {
	return Counters{
		Administrations: make(map[string]int),
		Reasons:         make(map[string]int),
		Types:           make(map[NoticeType]int),
	}
}

// Add folds one row into c.
func (c *Counters) Add(r recordsource.Row) {
	c.Total++
	c.Administrations[normalise(r.Adm.String, r.Adm.Valid)]++
	c.Reasons[normalise(r.NtfRsn.String, r.NtfRsn.Valid)]++
	if r.NtcType.Valid {
		t := NoticeType(strings.ToUpper(strings.TrimSpace(r.NtcType.String)))
		if t.Known() {
			c.Types[t]++
		}
	}
}

// Merge adds every count in o to c.
func (c *Counters) Merge(o Counters) {
	c.Total += o.Total
	for k, v := range o.Administrations {
		c.Administrations[k] += v
	}
	for k, v := range o.Reasons {
		c.Reasons[k] += v
	}
	for k, v := range o.Types {
		c.Types[k] += v
	}
}

// TypeSum is the number of rows that carried a recognised notice type.
func (c Counters) TypeSum() int {
	n := 0
	for _, v := range c.Types {
		n += v
	}
	return n
}

func normalise(s string, valid bool) string {
	s = strings.TrimSpace(s)
	if !valid || s == "" {
		return Unknown
	}
	return s
}

// FileResult is the outcome of aggregating one payload file.
type FileResult struct {
	Path string
	Rows int
	Err  error
}

// ListPayloads returns the payload files in dir, sorted by name.
func ListPayloads(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && extractor.IsPayload(e.Name(), ext) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Aggregate reads every payload in dir once, in name order, and returns the
// combined counters. A file that cannot be opened or fails while streaming is
// logged and left out entirely; the rest still count.
func Aggregate(ctx context.Context, dir, ext string, open recordsource.Opener, logger *slog.Logger) (Counters, []FileResult) {
	total := NewCounters()

	files, err := ListPayloads(dir, ext)
	if err != nil {
		logger.Error("Cannot list payload files.", slog.String("dir", dir), "error", err)
		return total, []FileResult{{Path: dir, Err: err}}
	}
	if len(files) == 0 {
		logger.Warn("No payload files to aggregate.", slog.String("dir", dir), slog.String("extension", ext))
		return total, nil
	}

	start := time.Now()
	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		l := logger.With(slog.String("file", path))
		if err := ctx.Err(); err != nil {
			l.Warn("Aggregation cancelled.", "error", err)
			results = append(results, FileResult{Path: path, Err: err})
			continue
		}

		c, err := aggregateFile(ctx, path, open)
		if err != nil {
			l.Error("Failed to read payload, excluded from totals.", "error", err)
			results = append(results, FileResult{Path: path, Err: err})
			continue
		}
		total.Merge(c)
		l.Debug("Payload aggregated.", slog.Int("rows", c.Total))
		results = append(results, FileResult{Path: path, Rows: c.Total})
	}

	logger.Info("Aggregation finished.",
		slog.Int("files", len(files)),
		slog.Int("rows", total.Total),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return total, results
}

func aggregateFile(ctx context.Context, path string, open recordsource.Opener) (Counters, error) {
	src, err := open(path)
	if err != nil {
		return Counters{}, err
	}
	defer src.Close()

	c := NewCounters()
	err = src.Scan(ctx, func(r recordsource.Row) error {
		c.Add(r)
		return nil
	})
	return c, err
}

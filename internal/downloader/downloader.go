// Package downloader fetches catalog archives that are not yet present locally.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/ificstats/internal/catalog"
	"github.com/brensch/ificstats/internal/config"
	"github.com/brensch/ificstats/internal/util"
)

// Task is a record whose archive is missing from the download directory.
type Task struct {
	Record    catalog.Record
	LocalPath string
}

// Result is the outcome of one download task.
type Result struct {
	Task     Task
	Bytes    int64
	Duration time.Duration
	Skipped  bool // not started because the run was stopped
	Err      error
}

// OK reports whether the archive was fully written.
func (r Result) OK() bool { return r.Err == nil && !r.Skipped }

// ErrBadStatus marks a download answered with a non-200 status.
var ErrBadStatus = errors.New("unexpected http status")

// LocalPath returns where the archive for rec is stored under dir: the base
// name of the URL path, query and fragment excluded.
func LocalPath(rec catalog.Record, dir string) string {
	name := rec.URL
	if u, err := url.Parse(rec.URL); err == nil && u.Path != "" {
		name = u.Path
	}
	return filepath.Join(dir, path.Base(name))
}

// Plan returns a task for every record whose local archive does not exist yet.
// Existence is the only check: size and checksum are not compared. Records
// mapping to the same local path yield a single task.
func Plan(records []catalog.Record, dir string) []Task {
	var tasks []Task
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		p := LocalPath(rec, dir)
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Stat(p); err == nil {
			continue
		}
		tasks = append(tasks, Task{Record: rec, LocalPath: p})
	}
	return tasks
}

// Manager runs download tasks with bounded parallelism.
type Manager struct {
	client    *http.Client
	workers   int
	timeout   time.Duration
	chunkSize int
	progress  io.Writer // nil disables the progress bar
	logger    *slog.Logger
}

// NewManager builds a Manager from the download section of the config.
// progress receives a progress bar when non-nil.
func NewManager(cfg config.DownloadConfig, progress io.Writer, logger *slog.Logger) *Manager {
	return &Manager{
		client:    util.StreamingHTTPClient(cfg.Timeout),
		workers:   cfg.Workers,
		timeout:   cfg.Timeout,
		chunkSize: cfg.ChunkSize,
		progress:  progress,
		logger:    logger,
	}
}

// Execute downloads every task with at most m.workers in flight and returns
// one Result per task, in task order. A failing task never stops the others.
// ctx is checked before each task starts; a download already streaming runs
// to completion or to its own timeout.
func (m *Manager) Execute(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var bar *progressbar.ProgressBar
	if m.progress != nil {
		bar = progressbar.NewOptions(len(tasks),
			progressbar.OptionSetWriter(m.progress),
			progressbar.OptionSetDescription("Downloading archives"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	m.logger.Info("Starting downloads.", slog.Int("files", len(tasks)), slog.Int("workers", m.workers))

	g := new(errgroup.Group)
	g.SetLimit(m.workers)
	for i, task := range tasks {
		i, task := i, task // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			l := m.logger.With(slog.String("url", task.Record.URL), slog.String("output_path", task.LocalPath))
			if err := ctx.Err(); err != nil {
				l.Warn("Download not started, run stopped.", "error", err)
				results[i] = Result{Task: task, Skipped: true, Err: err}
				return nil
			}

			results[i] = m.fetch(context.WithoutCancel(ctx), task, l)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	if bar != nil {
		_ = bar.Finish()
	}
	return results
}

// fetch streams one archive to disk. A failed download leaves whatever was
// written in place.
func (m *Manager) fetch(ctx context.Context, task Task, l *slog.Logger) Result {
	start := time.Now()
	res := Result{Task: task}
	l.Info("Downloading.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.Record.URL, nil)
	if err != nil {
		res.Err = fmt.Errorf("create request: %w", err)
		l.Error("Download failed.", "error", res.Err)
		return res
	}
	req.Header.Set("User-Agent", util.RandomUserAgent())
	req.Header.Set("Accept", "application/zip,application/octet-stream,*/*")

	resp, err := m.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("GET %s: %w", task.Record.URL, err)
		res.Duration = time.Since(start)
		l.Error("Download failed.", "error", res.Err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
		res.Duration = time.Since(start)
		l.Error("Download failed.", slog.Int("status", resp.StatusCode), "error", res.Err)
		return res
	}

	f, err := os.Create(task.LocalPath)
	if err != nil {
		res.Err = fmt.Errorf("create %s: %w", task.LocalPath, err)
		l.Error("Download failed.", "error", res.Err)
		return res
	}

	body := newIdleTimeoutReader(resp.Body, m.timeout, cancel)
	defer body.Stop()

	// the struct hides os.File's ReadFrom so CopyBuffer writes in chunkSize pieces
	n, copyErr := io.CopyBuffer(struct{ io.Writer }{f}, body, make([]byte, m.chunkSize))
	closeErr := f.Close()
	res.Bytes = n
	res.Duration = time.Since(start)

	if err := errors.Join(copyErr, closeErr); err != nil {
		if body.TimedOut() {
			err = fmt.Errorf("no data for %s: %w", m.timeout, err)
		}
		res.Err = fmt.Errorf("write %s: %w", task.LocalPath, err)
		l.Error("Download failed, partial file left in place.", slog.Int64("bytes", n), "error", res.Err)
		return res
	}

	l.Info("Download complete.", slog.Int64("bytes", n), slog.Duration("duration", res.Duration.Round(time.Millisecond)))
	return res
}

// Failed returns the results that did not produce a complete archive.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Package extractor unpacks payload files from downloaded archives.
package extractor

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoPayload marks an archive holding no entry with the payload extension.
var ErrNoPayload = errors.New("archive holds no payload file")

// Options controls where and what ExtractAll writes.
type Options struct {
	Dir       string // destination directory
	Extension string // payload extension, matched case-insensitively
}

// Result is the outcome for one archive.
type Result struct {
	Archive   string
	Extracted []string // destination paths written by this run
	Skipped   []string // destination paths that already existed
	NoPayload bool
	Err       error
}

// OK reports whether the archive was read without error.
func (r Result) OK() bool { return r.Err == nil }

// ExtractAll copies the payload entries of every archive into opts.Dir, one
// archive at a time. Entries are flattened to their base name and an existing
// destination is never overwritten, so the first archive to provide a name wins.
// A failing archive is logged and abandoned; the others still run.
func ExtractAll(ctx context.Context, archives []string, opts Options, logger *slog.Logger) []Result {
	results := make([]Result, 0, len(archives))
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		err = fmt.Errorf("create extract dir %s: %w", opts.Dir, err)
		logger.Error("Cannot create extract directory.", "error", err)
		for _, a := range archives {
			results = append(results, Result{Archive: a, Err: err})
		}
		return results
	}

	start := time.Now()
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			logger.Warn("Extraction cancelled.", slog.String("next_archive", archive), "error", err)
			results = append(results, Result{Archive: archive, Err: err})
			continue
		}
		results = append(results, extractArchive(archive, opts, logger.With(slog.String("archive", archive))))
	}

	var written, failed int
	for _, r := range results {
		written += len(r.Extracted)
		if !r.OK() {
			failed++
		}
	}
	logger.Info("Extraction finished.",
		slog.Int("archives", len(archives)),
		slog.Int("files_written", written),
		slog.Int("archives_failed", failed),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return results
}

func extractArchive(archive string, opts Options, l *slog.Logger) Result {
	res := Result{Archive: archive}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		res.Err = fmt.Errorf("open archive %s: %w", archive, err)
		l.Error("Failed to open archive.", "error", res.Err)
		return res
	}
	defer zr.Close()

	var payloads []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && IsPayload(f.Name, opts.Extension) {
			payloads = append(payloads, f)
		}
	}
	if len(payloads) == 0 {
		res.NoPayload = true
		l.Warn("No payload file in archive.", slog.String("extension", opts.Extension))
		return res
	}

	for _, f := range payloads {
		dest := filepath.Join(opts.Dir, BaseName(f.Name))
		fl := l.With(slog.String("entry", f.Name), slog.String("output_path", dest))

		wrote, err := extractEntry(f, dest)
		switch {
		case err != nil:
			res.Err = fmt.Errorf("extract %s: %w", f.Name, err)
			fl.Error("Failed to extract payload, abandoning archive.", "error", err)
			return res
		case !wrote:
			fl.Debug("Payload already extracted, skipping.")
			res.Skipped = append(res.Skipped, dest)
		default:
			fl.Info("Payload extracted.")
			res.Extracted = append(res.Extracted, dest)
		}
	}
	return res
}

// extractEntry writes f to dest unless dest exists. It reports whether it wrote.
func extractEntry(f *zip.File, dest string) (bool, error) {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	rc, err := f.Open()
	if err != nil {
		out.Close()
		os.Remove(dest)
		return false, err
	}

	_, copyErr := io.Copy(out, rc)
	if err := errors.Join(copyErr, out.Close(), rc.Close()); err != nil {
		os.Remove(dest)
		return false, err
	}
	return true, nil
}

// IsPayload reports whether name ends with ext, ignoring case.
func IsPayload(name, ext string) bool {
	return ext != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

// BaseName drops any directory part of an archive entry name, whichever
// separator the archiver used.
func BaseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

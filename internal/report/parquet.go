package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Report file names written by ParquetSink.
const (
	AdminFile  = "admin_counts.parquet"
	ReasonFile = "ntf_rsn_percentages.parquet"
	TypeFile   = "ntc_type_distribution.parquet"
)

// ParquetSink writes one Parquet file per table into Dir.
type ParquetSink struct {
	Dir    string
	Logger *slog.Logger
}

func (s ParquetSink) Name() string { return "parquet" }

func (s ParquetSink) Write(ctx context.Context, t Tables) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir %s: %w", s.Dir, err)
	}

	return errors.Join(
		s.writeFile(ctx, AdminFile, new(AdminRow), anyRows(t.Administrations)),
		s.writeFile(ctx, ReasonFile, new(ShareRow), anyRows(t.Reasons)),
		s.writeFile(ctx, TypeFile, new(ShareRow), anyRows(t.Types)),
	)
}

func anyRows[T any](rows []T) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// writeFile writes rows with the schema of obj. A file that fails part way is removed.
func (s ParquetSink) writeFile(ctx context.Context, name string, obj any, rows []any) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.Dir, name)

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close %s: %w", path, cerr))
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, obj, 1)
	if err != nil {
		return fmt.Errorf("create parquet writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			pw.WriteStop()
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish %s: %w", path, err)
	}

	if s.Logger != nil {
		s.Logger.Info("Report written.", slog.String("path", path), slog.Int("rows", len(rows)))
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/brensch/ificstats/internal/app"
	"github.com/brensch/ificstats/internal/catalog"
	"github.com/brensch/ificstats/internal/config"
	"github.com/brensch/ificstats/internal/downloader"
	"github.com/brensch/ificstats/internal/orchestrator"
	"github.com/brensch/ificstats/internal/recordsource"
	"github.com/brensch/ificstats/internal/report"
	"github.com/brensch/ificstats/internal/util"
)

var (
	startDate      string
	endDate        string
	allowDownload  bool
	allowAggregate bool
	topAdmins      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select, download, extract and aggregate IFIC archives for a date range",
	Long: `Performs the complete pipeline:
1. Reads the catalog page of every year in the range and keeps the archives dated inside it.
2. Downloads the archives missing from the download directory, in parallel.
3. Extracts the payload database from every archive in range.
4. Aggregates notices from all extracted databases and writes the report.

Dates are DD.MM.YYYY and both ends are inclusive. Without --start/--end on a
terminal the dates and confirmations are asked interactively; otherwise
--download and --aggregate answer the confirmations.`,
	Example: `  ificstats run --start 01.01.2024 --end 31.03.2024 --download --aggregate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := getLogger()
		cfg := getConfig()

		interactive := startDate == "" && endDate == "" && isatty.IsTerminal(os.Stdin.Fd())
		reader := catalog.NewReader(cfg.Catalog, logger)

		var (
			opts    orchestrator.Options
			confirm orchestrator.Confirmer
			err     error
		)
		if interactive {
			prompter := app.Prompter{Years: func(ctx context.Context) ([]int, error) {
				return catalog.AvailableYears(ctx, reader, catalog.FirstYear, time.Now().Year()+1, logger)
			}}
			if opts.Start, opts.End, err = prompter.AskDates(ctx); err != nil {
				return err
			}
			confirm = prompter
		} else {
			if opts, err = parseRange(startDate, endDate); err != nil {
				return err
			}
			confirm = orchestrator.FixedAnswers{Download: allowDownload, Aggregate: allowAggregate}
		}
		if opts.Start.After(opts.End) {
			return fmt.Errorf("%w: %s > %s", orchestrator.ErrInvalidRange,
				util.FormatCatalogDate(opts.Start), util.FormatCatalogDate(opts.End))
		}

		deps, err := buildDeps(cfg, reader, confirm, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}

		sum, err := orchestrator.Run(ctx, cfg, deps, opts)
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		if sum.Aborted {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted by user.")
		}
		return nil
	},
}

// parseRange parses the --start/--end values. Missing values take the
// interactive defaults.
func parseRange(start, end string) (orchestrator.Options, error) {
	if start == "" {
		start = app.DefaultStart
	}
	if end == "" {
		end = app.DefaultEnd
	}
	s, err := util.ParseCatalogDate(start)
	if err != nil {
		return orchestrator.Options{}, fmt.Errorf("--start: %w", err)
	}
	e, err := util.ParseCatalogDate(end)
	if err != nil {
		return orchestrator.Options{}, fmt.Errorf("--end: %w", err)
	}
	return orchestrator.Options{Start: s, End: e}, nil
}

// buildDeps wires the pipeline components from the config.
func buildDeps(cfg config.Config, reader *catalog.Reader, confirm orchestrator.Confirmer, out io.Writer, logger *slog.Logger) (orchestrator.Deps, error) {
	open, err := recordsource.NewOpener(cfg.Payload.Driver)
	if err != nil {
		return orchestrator.Deps{}, err
	}

	var progress io.Writer
	if cfg.Download.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		progress = os.Stderr
	}

	sinks := []report.Sink{report.TerminalSink{Out: out, TopN: topAdmins}}
	if cfg.Report.Parquet {
		sinks = append(sinks, report.ParquetSink{Dir: cfg.Report.Dir, Logger: logger})
	}

	return orchestrator.Deps{
		Catalog:    reader,
		Downloader: downloader.NewManager(cfg.Download, progress, logger),
		Open:       open,
		Sinks:      sinks,
		Confirm:    confirm,
		Logger:     logger,
	}, nil
}

func init() {
	runCmd.Flags().StringVar(&startDate, "start", "", "Start date, DD.MM.YYYY (default "+app.DefaultStart+")")
	runCmd.Flags().StringVar(&endDate, "end", "", "End date, DD.MM.YYYY (default "+app.DefaultEnd+")")
	runCmd.Flags().BoolVar(&allowDownload, "download", false, "Download missing archives without asking")
	runCmd.Flags().BoolVar(&allowAggregate, "aggregate", false, "Aggregate extracted databases without asking")
	rootCmd.PersistentFlags().IntVar(&topAdmins, "top", 0, "Administrations shown in the terminal report, 0 for all")
}

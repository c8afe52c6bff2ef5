package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brensch/ificstats/internal/config"
)

var (
	// Config flags - bound in init()
	cfgFile      string
	downloadDir  string
	extractDir   string
	reportDir    string
	workers      int
	payloadExt   string
	recordDriver string
	logFormat    string
	logLevel     string
	logOutput    string

	// Populated in PersistentPreRunE
	rootLogger *slog.Logger
	logCloser  io.Closer
	appConfig  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ificstats",
	Short: "Download ITU BR IFIC archives and aggregate notice statistics.",
	Long: `ificstats reads the yearly IFIC catalog pages, downloads the weekly archives
dated inside a chosen range, extracts the notice database from each one and
reports notice counts per administration, notification reason and notice type.

The primary command is 'run'. 'aggregate' reports over databases extracted by
an earlier run and 'years' lists the catalog years that exist.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- 1. Initialize Logger ---
		logger, closer, err := newLogger(logLevel, logFormat, logOutput)
		if err != nil {
			return err
		}
		logCloser = closer
		rootLogger = logger.With(slog.String("run_id", uuid.NewString()))
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized", "level", logLevel, "format", logFormat, "output", logOutput)

		// --- 2. Load config file, then apply flags that were set ---
		cfg, err := loadConfig(cmd, cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appConfig = cfg
		rootLogger.Debug("Configuration loaded", slog.Any("config", appConfig))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. It exits
// non-zero on failure and stops the run cleanly on SIGINT/SIGTERM.
func Execute() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(yearsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file; flags override its values")
	rootCmd.PersistentFlags().StringVar(&downloadDir, "download-dir", "./downloads", "Directory for downloaded archives")
	rootCmd.PersistentFlags().StringVar(&extractDir, "extract-dir", "./databases", "Directory for extracted payload databases")
	rootCmd.PersistentFlags().StringVar(&reportDir, "report-dir", "./reports", "Directory for Parquet reports")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", config.DefaultDownloadWorkers, "Number of concurrent downloads")
	rootCmd.PersistentFlags().StringVar(&payloadExt, "payload-ext", config.DefaultPayloadExt, "Extension of the payload file inside each archive")
	rootCmd.PersistentFlags().StringVar(&recordDriver, "record-driver", config.DefaultRecordDriver, "Driver used to read payloads (sqlite or duckdb)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.1.0"
}

// newLogger builds the slog logger described by the log flags. The closer is
// non-nil when output goes to a file.
func newLogger(level, format, output string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", level)
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	switch strings.ToLower(output) {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), closer, nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), closer, nil
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, nil, fmt.Errorf("unknown log format %q", format)
	}
}

// loadConfig starts from the defaults, overlays the config file when given and
// then applies every persistent flag the user set explicitly.
func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	var errs []error
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	str("download-dir", &cfg.DownloadDir)
	str("extract-dir", &cfg.ExtractDir)
	str("report-dir", &cfg.Report.Dir)
	str("payload-ext", &cfg.Payload.Extension)
	str("record-driver", &cfg.Payload.Driver)
	if flags.Changed("workers") {
		v, err := flags.GetInt("workers")
		errs = append(errs, err)
		cfg.Download.Workers = v
	}
	return cfg, errors.Join(errs...)
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getConfig() config.Config {
	return appConfig
}

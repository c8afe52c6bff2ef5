package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/ificstats/internal/config"
	"github.com/brensch/ificstats/internal/orchestrator"
)

func TestNewLogger(t *testing.T) {
	logger, closer, err := newLogger("debug", "json", "stdout")
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.NotNil(t, logger)

	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer, err = newLogger("warn", "text", path)
	require.NoError(t, err)
	require.NotNil(t, closer)
	logger.Warn("hello")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, _, err = newLogger("loud", "text", "stderr")
	assert.Error(t, err)
	_, _, err = newLogger("info", "xml", "stderr")
	assert.Error(t, err)
}

// testCommand mirrors the persistent flags of the root command on a fresh command.
func testCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	f := c.Flags()
	f.String("download-dir", "./downloads", "")
	f.String("extract-dir", "./databases", "")
	f.String("report-dir", "./reports", "")
	f.Int("workers", config.DefaultDownloadWorkers, "")
	f.String("payload-ext", config.DefaultPayloadExt, "")
	f.String("record-driver", config.DefaultRecordDriver, "")
	return c
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ificstats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
download_dir: /data/zips
download:
  workers: 2
  timeout: 20s
payload:
  driver: duckdb
`), 0o644))

	c := testCommand()
	require.NoError(t, c.Flags().Parse([]string{"--workers", "8", "--extract-dir", "/data/db"}))

	cfg, err := loadConfig(c, path)
	require.NoError(t, err)
	assert.Equal(t, "/data/zips", cfg.DownloadDir, "file value kept when flag not set")
	assert.Equal(t, "/data/db", cfg.ExtractDir)
	assert.Equal(t, 8, cfg.Download.Workers, "flag wins over file")
	assert.Equal(t, 20*time.Second, cfg.Download.Timeout)
	assert.Equal(t, "duckdb", cfg.Payload.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	c := testCommand()
	require.NoError(t, c.Flags().Parse(nil))
	cfg, err := loadConfig(c, "")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = loadConfig(c, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseRange(t *testing.T) {
	opts, err := parseRange("15.03.2024", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), opts.Start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), opts.End)

	_, err = parseRange("2024-03-15", "")
	assert.ErrorContains(t, err, "--start")
	_, err = parseRange("", "32.01.2024")
	assert.ErrorContains(t, err, "--end")
}

func TestBuildDeps(t *testing.T) {
	cfg := config.Default()
	cfg.Report.Parquet = false
	deps, err := buildDeps(cfg, nil, orchestrator.FixedAnswers{}, os.Stdout, getLogger())
	require.NoError(t, err)
	assert.Len(t, deps.Sinks, 1)

	cfg.Payload.Driver = "access"
	_, err = buildDeps(cfg, nil, orchestrator.FixedAnswers{}, os.Stdout, getLogger())
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Download.Workers)
	assert.Equal(t, 10*time.Second, cfg.Download.Timeout)
	assert.Equal(t, 64*1024, cfg.Download.ChunkSize)
	assert.Equal(t, ".mdb", cfg.Payload.Extension)
	assert.Equal(t, DefaultVersionMarkers, cfg.Catalog.VersionMarkers)
}

func TestDefaultMarkersAreCopied(t *testing.T) {
	cfg := Default()
	cfg.Catalog.VersionMarkers[0] = "changed"
	assert.Equal(t, "converted-to-v9.1", DefaultVersionMarkers[0])
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ificstats.yaml")
	content := `
download_dir: /data/zips
catalog:
  timeout: 5s
download:
  workers: 3
payload:
  driver: duckdb
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/zips", cfg.DownloadDir)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 3, cfg.Download.Workers)
	assert.Equal(t, "duckdb", cfg.Payload.Driver)

	// untouched keys keep defaults
	assert.Equal(t, "./databases", cfg.ExtractDir)
	assert.Equal(t, DefaultCatalogURLTemplate, cfg.Catalog.URLTemplate)
	assert.Equal(t, DefaultChunkSize, cfg.Download.ChunkSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"no workers", func(c *Config) { c.Download.Workers = 0 }, "download.workers"},
		{"bad template", func(c *Config) { c.Catalog.URLTemplate = "https://example.com/page.html" }, "url_template"},
		{"no markers", func(c *Config) { c.Catalog.VersionMarkers = nil }, "version_markers"},
		{"extension without dot", func(c *Config) { c.Payload.Extension = "mdb" }, "payload.extension"},
		{"unknown driver", func(c *Config) { c.Payload.Driver = "odbc" }, "payload.driver"},
		{"empty download dir", func(c *Config) { c.DownloadDir = "" }, "download_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCatalogURLTemplate is the per-year IFIC catalog page. The %s verb
// receives the last two digits of the year.
const DefaultCatalogURLTemplate = "https://www.itu.int/sns/wic/demowic%s.html"

// DefaultVersionMarkers are the href substrings identifying a usable archive variant.
var DefaultVersionMarkers = []string{"converted-to-v9.1", "converted-to-v10", "ific10"}

const (
	DefaultDownloadWorkers = 5
	DefaultDownloadTimeout = 10 * time.Second
	DefaultCatalogTimeout  = 30 * time.Second
	DefaultChunkSize       = 64 << 10
	DefaultPayloadExt      = ".mdb"
	DefaultRecordDriver    = "sqlite"
)

// Config holds application settings
type Config struct {
	DownloadDir string         `yaml:"download_dir"`
	ExtractDir  string         `yaml:"extract_dir"`
	Catalog     CatalogConfig  `yaml:"catalog"`
	Download    DownloadConfig `yaml:"download"`
	Payload     PayloadConfig  `yaml:"payload"`
	Report      ReportConfig   `yaml:"report"`
}

type CatalogConfig struct {
	URLTemplate    string        `yaml:"url_template"`
	VersionMarkers []string      `yaml:"version_markers"`
	Timeout        time.Duration `yaml:"timeout"`
}

type DownloadConfig struct {
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"` // connect and per-read idle timeout
	ChunkSize int           `yaml:"chunk_size"`
	Progress  bool          `yaml:"progress"`
}

// PayloadConfig describes the file extracted from each archive and the
// database/sql driver used to read it.
type PayloadConfig struct {
	Extension string `yaml:"extension"`
	Driver    string `yaml:"driver"` // sqlite | duckdb
}

type ReportConfig struct {
	Dir     string `yaml:"dir"`
	Parquet bool   `yaml:"parquet"`
}

// Default returns the configuration used when no file or flag overrides a value.
func Default() Config {
	return Config{
		DownloadDir: "./downloads",
		ExtractDir:  "./databases",
		Catalog: CatalogConfig{
			URLTemplate:    DefaultCatalogURLTemplate,
			VersionMarkers: append([]string(nil), DefaultVersionMarkers...),
			Timeout:        DefaultCatalogTimeout,
		},
		Download: DownloadConfig{
			Workers:   DefaultDownloadWorkers,
			Timeout:   DefaultDownloadTimeout,
			ChunkSize: DefaultChunkSize,
			Progress:  true,
		},
		Payload: PayloadConfig{
			Extension: DefaultPayloadExt,
			Driver:    DefaultRecordDriver,
		},
		Report: ReportConfig{
			Dir:     "./reports",
			Parquet: true,
		},
	}
}

// Load reads a YAML file and overlays it on Default. Keys missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DownloadDir == "" {
		errs = append(errs, errors.New("download_dir is required"))
	}
	if c.ExtractDir == "" {
		errs = append(errs, errors.New("extract_dir is required"))
	}
	if strings.Count(c.Catalog.URLTemplate, "%s") != 1 {
		errs = append(errs, fmt.Errorf("catalog.url_template must contain exactly one %%s verb: %q", c.Catalog.URLTemplate))
	}
	if len(c.Catalog.VersionMarkers) == 0 {
		errs = append(errs, errors.New("catalog.version_markers must not be empty"))
	}
	if c.Download.Workers < 1 {
		errs = append(errs, fmt.Errorf("download.workers must be at least 1, got %d", c.Download.Workers))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("download.timeout must be positive, got %s", c.Download.Timeout))
	}
	if c.Download.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("download.chunk_size must be positive, got %d", c.Download.ChunkSize))
	}
	if !strings.HasPrefix(c.Payload.Extension, ".") {
		errs = append(errs, fmt.Errorf("payload.extension must start with a dot: %q", c.Payload.Extension))
	}
	switch c.Payload.Driver {
	case "sqlite", "duckdb":
	default:
		errs = append(errs, fmt.Errorf("payload.driver must be sqlite or duckdb: %q", c.Payload.Driver))
	}
	if c.Report.Parquet && c.Report.Dir == "" {
		errs = append(errs, errors.New("report.dir is required when report.parquet is enabled"))
	}
	return errors.Join(errs...)
}

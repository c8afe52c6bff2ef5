// Package catalog discovers dated IFIC archives on the yearly catalog pages.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/brensch/ificstats/internal/config"
	"github.com/brensch/ificstats/internal/util"
)

// ErrCatalogUnavailable is returned when a year's catalog page cannot be fetched.
var ErrCatalogUnavailable = errors.New("catalog page unavailable")

// Record is one dated archive link discovered on a catalog page.
type Record struct {
	Date time.Time
	URL  string
}

// Reader fetches and parses yearly catalog pages.
type Reader struct {
	client      *http.Client
	urlTemplate string
	markers     []string
	logger      *slog.Logger
}

// NewReader builds a Reader from the catalog section of the config.
func NewReader(cfg config.CatalogConfig, logger *slog.Logger) *Reader {
	return &Reader{
		client:      util.DefaultHTTPClient(cfg.Timeout),
		urlTemplate: cfg.URLTemplate,
		markers:     cfg.VersionMarkers,
		logger:      logger,
	}
}

// YearURL returns the catalog page URL for year.
func (r *Reader) YearURL(year int) string {
	return fmt.Sprintf(r.urlTemplate, util.YearSuffix(year))
}

// FetchYear downloads the catalog page for year and returns its dated archive
// links in document order. Any transport failure or non-200 status is reported
// as an error wrapping ErrCatalogUnavailable.
func (r *Reader) FetchYear(ctx context.Context, year int) ([]Record, error) {
	pageURL := r.YearURL(year)
	l := r.logger.With(slog.Int("year", year), slog.String("catalog_url", pageURL))

	body, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: year %d: %w", ErrCatalogUnavailable, year, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url %s: %w", pageURL, err)
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse catalog html %s: %w", pageURL, err)
	}

	records := r.parseRows(goquery.NewDocumentFromNode(root), base, l)
	l.Debug("Catalog page parsed.", slog.Int("records", len(records)))
	return records, nil
}

func (r *Reader) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", util.RandomUserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status '%s' fetching %s", resp.Status, pageURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", pageURL, err)
	}
	return body, nil
}

// parseRows scans every tr for a date token and keeps the first link carrying
// an accepted version marker. Rows without a valid date or without such a link
// are skipped.
func (r *Reader) parseRows(doc *goquery.Document, base *url.URL, l *slog.Logger) []Record {
	var records []Record
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		node := row.Get(0)
		date, found, err := util.FindCatalogDate(util.NodeText(node))
		if !found {
			return
		}
		if err != nil {
			l.Debug("Skipping row with invalid date.", slog.Int("row", i), "error", err)
			return
		}

		href, ok := r.firstAccepted(util.ParseLinks(node))
		if !ok {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			l.Warn("Failed to resolve archive link.", slog.String("href", href), "error", err)
			return
		}
		records = append(records, Record{Date: date, URL: abs.String()})
	})
	return records
}

func (r *Reader) firstAccepted(hrefs []string) (string, bool) {
	for _, href := range hrefs {
		for _, marker := range r.markers {
			if strings.Contains(href, marker) {
				return href, true
			}
		}
	}
	return "", false
}

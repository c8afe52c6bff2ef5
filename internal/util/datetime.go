package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CatalogDateLayout is the DD.MM.YYYY format used on catalog pages and on the command line.
const CatalogDateLayout = "02.01.2006"

var catalogDateRegex = regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`)

// FindCatalogDate returns the first DD.MM.YYYY token in s, parsed as a UTC date.
// found is false when s has no such token. A token that looks right but is not
// a calendar date (31.02.2024) is reported through err.
func FindCatalogDate(s string) (t time.Time, found bool, err error) {
	token := catalogDateRegex.FindString(s)
	if token == "" {
		return time.Time{}, false, nil
	}
	t, err = ParseCatalogDate(token)
	return t, true, err
}

// ParseCatalogDate parses a DD.MM.YYYY string, ignoring surrounding whitespace.
func ParseCatalogDate(s string) (time.Time, error) {
	t, err := time.Parse(CatalogDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want DD.MM.YYYY): %w", s, err)
	}
	return t, nil
}

// FormatCatalogDate renders t as DD.MM.YYYY.
func FormatCatalogDate(t time.Time) string {
	return t.Format(CatalogDateLayout)
}

// YearSuffix returns the last two digits of year, zero padded.
func YearSuffix(year int) string {
	return fmt.Sprintf("%02d", year%100)
}

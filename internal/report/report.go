// Package report turns aggregate counters into tables and writes them out.
package report

import (
	"context"
	"sort"

	"github.com/brensch/ificstats/internal/aggregate"
)

var reasonLabels = map[string]string{
	"N": "RR1488 / 11.2 / 11.12 / AP30/30A-Article 5 / AP30B-Article 8",
	"C": "RR1060 / 9.6 / 9.7A / 9.21",
	"D": "RR1107 / 9.17",
	"A": "9.1",
	"B": "AP30/30A-Articles 2A & 4",
	"P": "AP30B-Articles 6 & 7",
	"U": "Res49",
}

// ReasonLabel returns the regulatory provision behind a notification reason
// code, or the code itself when it has no known label.
func ReasonLabel(code string) string {
	if l, ok := reasonLabels[code]; ok {
		return l
	}
	return code
}

// AdminRow is one administration and how many notices it filed.
type AdminRow struct {
	Administration string `parquet:"name=administration, type=BYTE_ARRAY, convertedtype=UTF8"`
	Count          int64  `parquet:"name=count, type=INT64"`
}

// ShareRow is one category with its count and share in percent.
type ShareRow struct {
	Code       string  `parquet:"name=code, type=BYTE_ARRAY, convertedtype=UTF8"`
	Label      string  `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	Count      int64   `parquet:"name=count, type=INT64"`
	Percentage float64 `parquet:"name=percentage, type=DOUBLE"`
}

// Tables is the rendered view of a set of counters.
type Tables struct {
	Total           int
	Administrations []AdminRow // count descending, then name
	Reasons         []ShareRow // share of all reason rows, count descending
	Types           []ShareRow // every known type in code order, share of Total
}

// Build computes the report tables from c.
func Build(c aggregate.Counters) Tables {
	t := Tables{Total: c.Total}

	for adm, n := range c.Administrations {
		t.Administrations = append(t.Administrations, AdminRow{Administration: adm, Count: int64(n)})
	}
	sort.Slice(t.Administrations, func(i, j int) bool {
		a, b := t.Administrations[i], t.Administrations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Administration < b.Administration
	})

	var reasonSum int
	for _, n := range c.Reasons {
		reasonSum += n
	}
	for code, n := range c.Reasons {
		t.Reasons = append(t.Reasons, ShareRow{
			Code:       code,
			Label:      ReasonLabel(code),
			Count:      int64(n),
			Percentage: percent(n, reasonSum),
		})
	}
	sort.Slice(t.Reasons, func(i, j int) bool {
		a, b := t.Reasons[i], t.Reasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Code < b.Code
	})

	for _, nt := range aggregate.NoticeTypes {
		n := c.Types[nt]
		t.Types = append(t.Types, ShareRow{
			Code:       string(nt),
			Label:      nt.Label(),
			Count:      int64(n),
			Percentage: percent(n, c.Total),
		})
	}
	return t
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

// Sink receives the finished report.
type Sink interface {
	Name() string
	Write(ctx context.Context, t Tables) error
}

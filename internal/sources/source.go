package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eumembership/internal/dates"
	"eumembership/internal/model"
)

var (
	ErrNoRecords     = errors.New("sources: no records found")
	ErrMissingColumn = errors.New("sources: missing column")
)

type Source interface {
	Name() string
	LoadRecords(ctx context.Context) ([]model.MembershipRecord, error)
}

type Columns struct {
	Country   string
	Accession string
	Exit      string
}

func DefaultColumns() Columns {
	return Columns{
		Country:   "Country",
		Accession: "EU accession date",
		Exit:      "EU exit date",
	}
}

// TableOptions describes how to read a raw sheet: rows to drop above the
// header, header names and date layouts.
type TableOptions struct {
	SkipRows int
	Columns  Columns
	Layouts  []string
	// CellDate, when set, is tried on a date cell before the text layouts.
	CellDate func(value string) (time.Time, bool)
}

func (o TableOptions) parseDate(value string) (time.Time, bool) {
	if o.CellDate != nil {
		if parsed, ok := o.CellDate(value); ok {
			return dates.Day(parsed), true
		}
	}
	return dates.Parse(value, o.Layouts...)
}

func (o TableOptions) withDefaults() TableOptions {
	defaults := DefaultColumns()
	if strings.TrimSpace(o.Columns.Country) == "" {
		o.Columns.Country = defaults.Country
	}
	if strings.TrimSpace(o.Columns.Accession) == "" {
		o.Columns.Accession = defaults.Accession
	}
	if strings.TrimSpace(o.Columns.Exit) == "" {
		o.Columns.Exit = defaults.Exit
	}
	if len(o.Layouts) == 0 {
		o.Layouts = dates.DefaultLayouts
	}
	return o
}

// ParseTable turns raw rows into membership records. Dates that cannot be
// parsed are left zero. The exit column is optional.
func ParseTable(rows [][]string, opts TableOptions) ([]model.MembershipRecord, error) {
	opts = opts.withDefaults()
	if opts.SkipRows < 0 {
		opts.SkipRows = 0
	}
	if opts.SkipRows >= len(rows) {
		return nil, ErrNoRecords
	}
	rows = rows[opts.SkipRows:]

	header := normalizeHeader(rows[0])
	for _, column := range []string{opts.Columns.Country, opts.Columns.Accession} {
		if _, ok := header[normalizeKey(column)]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
		}
	}

	records := make([]model.MembershipRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		country := getCell(row, header, opts.Columns.Country)
		if country == "" {
			continue
		}
		record := model.MembershipRecord{Country: country}
		if accession, ok := opts.parseDate(getCell(row, header, opts.Columns.Accession)); ok {
			record.AccessionDate = accession
		}
		if exit, ok := opts.parseDate(getCell(row, header, opts.Columns.Exit)); ok {
			record.ExitDate = exit
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func normalizeHeader(header []string) map[string]int {
	result := make(map[string]int, len(header))
	for i, value := range header {
		key := normalizeKey(value)
		if key == "" {
			continue
		}
		if _, exists := result[key]; exists {
			continue
		}
		result[key] = i
	}
	return result
}

func getCell(record []string, header map[string]int, key string) string {
	index, ok := header[normalizeKey(key)]
	if !ok || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

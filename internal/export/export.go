package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"eumembership/internal/dates"
	"eumembership/internal/model"
	"eumembership/internal/series"
)

const (
	FormatParquet = "parquet"
	FormatJSON    = "json"
	FormatCSV     = "csv"

	defaultPrefix = "EU_countries_series"
)

type Config struct {
	Dir         string
	Prefix      string
	Formats     []string
	Compression string
}

type Writer struct {
	config Config
	now    func() time.Time
}

func New(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = "."
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = defaultPrefix
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []string{FormatParquet}
	}
	cfg.Formats = append([]string(nil), cfg.Formats...)
	for i, format := range cfg.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		switch format {
		case FormatParquet, FormatJSON, FormatCSV:
			cfg.Formats[i] = format
		default:
			return nil, fmt.Errorf("export: unknown format: %s", format)
		}
	}
	return &Writer{config: cfg, now: time.Now}, nil
}

// Write stores the daily, monthly and annual series in every configured format
// and returns the written paths.
func (w *Writer) Write(ctx context.Context, result series.Result) ([]string, error) {
	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create output dir: %w", err)
	}

	generatedAt := w.now().UTC().Format(time.RFC3339)
	paths := make([]string, 0, 3*len(w.config.Formats))
	for _, format := range w.config.Formats {
		outputs := []struct {
			name   string
			encode func() ([]byte, error)
		}{
			{"daily", func() ([]byte, error) { return w.encodeDaily(format, generatedAt, result.Daily) }},
			{"monthly", func() ([]byte, error) { return w.encodePeriods(format, generatedAt, "year_month", "days_in_month", result.Monthly) }},
			{"annual", func() ([]byte, error) { return w.encodePeriods(format, generatedAt, "year", "days_in_year", result.Annual) }},
		}
		for _, output := range outputs {
			if err := ctx.Err(); err != nil {
				return paths, err
			}
			data, err := output.encode()
			if err != nil {
				return paths, fmt.Errorf("export %s %s: %w", output.name, format, err)
			}
			path := filepath.Join(w.config.Dir, fmt.Sprintf("%s_%s.%s", w.config.Prefix, output.name, format))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (w *Writer) encodeDaily(format, generatedAt string, rows []model.DailyRow) ([]byte, error) {
	switch format {
	case FormatParquet:
		return dailyParquet(rows, w.config.Compression)
	case FormatJSON:
		entries := make([]dailyEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, dailyEntry{Country: row.Country, Date: dates.Format(row.Date), EUMember: row.IsMember})
		}
		return encodeJSON(seriesFile[dailyEntry]{GeneratedAt: generatedAt, Rows: entries})
	case FormatCSV:
		records := make([][]string, 0, len(rows)+1)
		records = append(records, []string{"country", "date", "eu_member"})
		for _, row := range rows {
			records = append(records, []string{row.Country, dates.Format(row.Date), strconv.FormatBool(row.IsMember)})
		}
		return encodeCSV(records)
	}
	return nil, errors.New("unsupported format")
}

func (w *Writer) encodePeriods(format, generatedAt, periodColumn, totalColumn string, rows []model.PeriodRow) ([]byte, error) {
	switch format {
	case FormatParquet:
		if periodColumn == "year" {
			return annualParquet(rows, w.config.Compression)
		}
		return monthlyParquet(rows, w.config.Compression)
	case FormatJSON:
		entries := make([]periodEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, periodEntry{
				Country:        row.Country,
				Period:         row.Period,
				TotalDays:      row.TotalDays,
				MembershipDays: row.MemberDays,
				MembershipPct:  row.MemberPct,
			})
		}
		return encodeJSON(seriesFile[periodEntry]{GeneratedAt: generatedAt, Rows: entries})
	case FormatCSV:
		records := make([][]string, 0, len(rows)+1)
		records = append(records, []string{"country", periodColumn, totalColumn, "membership_days", "membership_pct"})
		for _, row := range rows {
			records = append(records, []string{
				row.Country,
				row.Period,
				strconv.Itoa(row.TotalDays),
				strconv.Itoa(row.MemberDays),
				strconv.FormatFloat(row.MemberPct, 'g', -1, 64),
			})
		}
		return encodeCSV(records)
	}
	return nil, errors.New("unsupported format")
}

type seriesFile[T any] struct {
	GeneratedAt string `json:"generated_at"`
	Rows        []T    `json:"rows"`
}

type dailyEntry struct {
	Country  string `json:"country"`
	Date     string `json:"date"`
	EUMember bool   `json:"eu_member"`
}

type periodEntry struct {
	Country        string  `json:"country"`
	Period         string  `json:"period"`
	TotalDays      int     `json:"days_in_period"`
	MembershipDays int     `json:"membership_days"`
	MembershipPct  float64 `json:"membership_pct"`
}

func encodeJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package xlsx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"eumembership/internal/dates"
	"eumembership/internal/model"
	"eumembership/internal/sources"
)

type Config struct {
	Path string
	// Sheet defaults to the first sheet of the workbook.
	Sheet string
	Table sources.TableOptions
}

type Source struct {
	config Config
}

func NewWithConfig(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("xlsx: path is required")
	}
	return &Source{config: cfg}, nil
}

func (s *Source) Name() string {
	return "xlsx"
}

func (s *Source) LoadRecords(ctx context.Context) ([]model.MembershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	book, err := excelize.OpenFile(s.config.Path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %s: %w", s.config.Path, err)
	}
	defer book.Close()

	sheet := strings.TrimSpace(s.config.Sheet)
	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, sources.ErrNoRecords
		}
		sheet = sheets[0]
	}

	// Raw values keep date cells as serial numbers instead of the
	// two-digit-year text of the built-in date format.
	rows, err := book.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}

	date1904 := false
	if props, err := book.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	table := s.config.Table
	table.CellDate = serialDate(date1904)
	return sources.ParseTable(rows, table)
}

// serialDate converts a raw spreadsheet serial number to its calendar day.
func serialDate(date1904 bool) func(string) (time.Time, bool) {
	return func(value string) (time.Time, bool) {
		serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || serial <= 0 {
			return time.Time{}, false
		}
		parsed, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, false
		}
		return dates.Day(parsed), true
	}
}

var _ sources.Source = (*Source)(nil)

package series

import (
	"errors"
	"strings"
	"time"

	"eumembership/internal/dates"
	"eumembership/internal/model"
)

var ErrNoAccessionDates = errors.New("series: no accession dates in input")

type Result struct {
	Start     time.Time
	End       time.Time
	Countries []string
	Daily     []model.DailyRow
	Monthly   []model.MonthlyRow
	Annual    []model.AnnualRow
}

// Build expands the records into daily rows up to the end of asOf's year and
// aggregates them by month and year.
func Build(records []model.MembershipRecord, asOf time.Time) (Result, error) {
	end := dates.EndOfYear(asOf.Year())
	start, ok := EarliestAccession(records)
	if !ok {
		return Result{}, ErrNoAccessionDates
	}
	if start.After(end) {
		end = dates.EndOfYear(start.Year())
	}

	spans := resolveSpans(records, end)
	daily := ExpandDaily(spans, start, end)

	countries := make([]string, 0, len(spans))
	for _, span := range spans {
		countries = append(countries, span.Country)
	}

	return Result{
		Start:     start,
		End:       end,
		Countries: countries,
		Daily:     daily,
		Monthly:   AggregateMonthly(daily),
		Annual:    AggregateAnnual(daily),
	}, nil
}

func EarliestAccession(records []model.MembershipRecord) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, record := range records {
		if !record.HasAccession() {
			continue
		}
		accession := dates.Day(record.AccessionDate)
		if !found || accession.Before(earliest) {
			earliest = accession
			found = true
		}
	}
	return earliest, found
}

// Span is a country's membership interval with both bounds inclusive. A zero
// From means the country never joined.
type Span struct {
	Country string
	From    time.Time
	To      time.Time
}

func (s Span) Contains(day time.Time) bool {
	if s.From.IsZero() {
		return false
	}
	return !day.Before(s.From) && !day.After(s.To)
}

// MergeDuplicates collapses the records to one per country, in order of first
// appearance, with trimmed names. The first record supplies the dates; an exit
// missing on any record of the country leaves the merged exit empty.
func MergeDuplicates(records []model.MembershipRecord) []model.MembershipRecord {
	order := make([]string, 0, len(records))
	first := make(map[string]model.MembershipRecord, len(records))
	open := make(map[string]bool, len(records))

	for _, record := range records {
		country := strings.TrimSpace(record.Country)
		if country == "" {
			continue
		}
		if _, seen := first[country]; !seen {
			record.Country = country
			first[country] = record
			order = append(order, country)
		}
		if !record.HasExit() {
			open[country] = true
		}
	}

	merged := make([]model.MembershipRecord, 0, len(order))
	for _, country := range order {
		record := first[country]
		if open[country] {
			record.ExitDate = time.Time{}
		}
		merged = append(merged, record)
	}
	return merged
}

func resolveSpans(records []model.MembershipRecord, end time.Time) []Span {
	merged := MergeDuplicates(records)
	spans := make([]Span, 0, len(merged))
	for _, record := range merged {
		span := Span{Country: record.Country, To: end}
		if record.HasAccession() {
			span.From = dates.Day(record.AccessionDate)
		}
		if record.HasExit() {
			span.To = dates.Day(record.ExitDate)
		}
		spans = append(spans, span)
	}
	return spans
}

// ExpandDaily emits one row per span per day in [start, end].
func ExpandDaily(spans []Span, start, end time.Time) []model.DailyRow {
	start = dates.Day(start)
	end = dates.Day(end)
	if end.Before(start) {
		return nil
	}
	days := int(end.Sub(start).Hours()/24) + 1

	rows := make([]model.DailyRow, 0, days*len(spans))
	for _, span := range spans {
		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			rows = append(rows, model.DailyRow{
				Country:  span.Country,
				Date:     day,
				IsMember: span.Contains(day),
			})
		}
	}
	return rows
}

func AggregateMonthly(daily []model.DailyRow) []model.MonthlyRow {
	return aggregate(daily, model.PeriodMonth, func(day time.Time) string {
		return day.Format("2006-01")
	})
}

func AggregateAnnual(daily []model.DailyRow) []model.AnnualRow {
	return aggregate(daily, model.PeriodYear, func(day time.Time) string {
		return day.Format("2006")
	})
}

type periodKey struct {
	country string
	period  string
}

// aggregate groups daily rows by country and period. A period's total is the
// number of distinct days observed in it across all countries, so a partially
// covered first month or year only counts the days in range.
func aggregate(daily []model.DailyRow, periodType model.PeriodType, periodOf func(time.Time) string) []model.PeriodRow {
	totals := make(map[string]map[time.Time]struct{})
	members := make(map[periodKey]int)
	order := make([]periodKey, 0)

	for _, row := range daily {
		period := periodOf(row.Date)
		if _, ok := totals[period]; !ok {
			totals[period] = make(map[time.Time]struct{})
		}
		totals[period][row.Date] = struct{}{}

		key := periodKey{country: row.Country, period: period}
		if _, ok := members[key]; !ok {
			members[key] = 0
			order = append(order, key)
		}
		if row.IsMember {
			members[key]++
		}
	}

	rows := make([]model.PeriodRow, 0, len(order))
	for _, key := range order {
		total := len(totals[key.period])
		memberDays := members[key]
		pct := 0.0
		if total > 0 {
			pct = float64(memberDays) / float64(total)
		}
		rows = append(rows, model.PeriodRow{
			Country:    key.country,
			PeriodType: periodType,
			Period:     key.period,
			TotalDays:  total,
			MemberDays: memberDays,
			MemberPct:  pct,
		})
	}
	return rows
}

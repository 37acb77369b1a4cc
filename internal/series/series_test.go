package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eumembership/internal/model"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecords() []model.MembershipRecord {
	return []model.MembershipRecord{
		{Country: "Austria", AccessionDate: day(2020, 1, 15)},
		{Country: "Britain", AccessionDate: day(2020, 2, 1), ExitDate: day(2020, 3, 10)},
		{Country: "Candidate"},
	}
}

func findPeriod(rows []model.PeriodRow, country, period string) (model.PeriodRow, bool) {
	for _, row := range rows {
		if row.Country == country && row.Period == period {
			return row, true
		}
	}
	return model.PeriodRow{}, false
}

func TestBuildRange(t *testing.T) {
	result, err := Build(sampleRecords(), day(2020, 6, 1))
	require.NoError(t, err)

	assert.Equal(t, day(2020, 1, 15), result.Start)
	assert.Equal(t, day(2020, 12, 31), result.End)
	assert.Equal(t, []string{"Austria", "Britain", "Candidate"}, result.Countries)
	// 2020-01-15 through 2020-12-31 in a leap year.
	assert.Len(t, result.Daily, 352*3)

	assert.Equal(t, "Austria", result.Daily[0].Country)
	assert.Equal(t, day(2020, 1, 15), result.Daily[0].Date)
	assert.Equal(t, "Britain", result.Daily[352].Country)
}

func TestBuildMembershipFlags(t *testing.T) {
	result, err := Build(sampleRecords(), day(2020, 6, 1))
	require.NoError(t, err)

	flags := make(map[string]map[time.Time]bool)
	for _, row := range result.Daily {
		if flags[row.Country] == nil {
			flags[row.Country] = make(map[time.Time]bool)
		}
		flags[row.Country][row.Date] = row.IsMember
	}

	assert.True(t, flags["Austria"][day(2020, 1, 15)])
	assert.True(t, flags["Austria"][day(2020, 12, 31)])
	assert.False(t, flags["Britain"][day(2020, 1, 31)])
	assert.True(t, flags["Britain"][day(2020, 2, 1)])
	assert.True(t, flags["Britain"][day(2020, 3, 10)], "exit day is a member day")
	assert.False(t, flags["Britain"][day(2020, 3, 11)])
	for _, member := range flags["Candidate"] {
		assert.False(t, member)
	}
}

func TestBuildMonthly(t *testing.T) {
	result, err := Build(sampleRecords(), day(2020, 6, 1))
	require.NoError(t, err)
	assert.Len(t, result.Monthly, 12*3)

	jan, ok := findPeriod(result.Monthly, "Austria", "2020-01")
	require.True(t, ok)
	assert.Equal(t, 17, jan.TotalDays, "partial first month counts days in range")
	assert.Equal(t, 17, jan.MemberDays)
	assert.Equal(t, 1.0, jan.MemberPct)
	assert.Equal(t, model.PeriodMonth, jan.PeriodType)

	feb, ok := findPeriod(result.Monthly, "Britain", "2020-02")
	require.True(t, ok)
	assert.Equal(t, 29, feb.TotalDays)
	assert.Equal(t, 29, feb.MemberDays)

	mar, ok := findPeriod(result.Monthly, "Britain", "2020-03")
	require.True(t, ok)
	assert.Equal(t, 31, mar.TotalDays)
	assert.Equal(t, 10, mar.MemberDays)
	assert.InDelta(t, 10.0/31.0, mar.MemberPct, 1e-12)

	apr, ok := findPeriod(result.Monthly, "Britain", "2020-04")
	require.True(t, ok)
	assert.Equal(t, 0, apr.MemberDays)
	assert.Equal(t, 0.0, apr.MemberPct)

	assert.Equal(t, "Austria", result.Monthly[0].Country)
	assert.Equal(t, "2020-01", result.Monthly[0].Period)
	assert.Equal(t, "2020-12", result.Monthly[11].Period)
}

func TestBuildAnnual(t *testing.T) {
	result, err := Build(sampleRecords(), day(2020, 6, 1))
	require.NoError(t, err)
	require.Len(t, result.Annual, 3)

	for _, row := range result.Annual {
		assert.Equal(t, "2020", row.Period)
		assert.Equal(t, 352, row.TotalDays)
		assert.Equal(t, model.PeriodYear, row.PeriodType)
	}
	assert.Equal(t, 352, result.Annual[0].MemberDays)
	assert.Equal(t, 29+10, result.Annual[1].MemberDays)
	assert.Equal(t, 0, result.Annual[2].MemberDays)
}

func TestBuildSpansYears(t *testing.T) {
	records := []model.MembershipRecord{
		{Country: "Founder", AccessionDate: day(2019, 7, 1)},
		{Country: "Leaver", AccessionDate: day(2019, 7, 1), ExitDate: day(2020, 1, 31)},
	}
	result, err := Build(records, day(2021, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, day(2021, 12, 31), result.End)

	y2019, ok := findPeriod(result.Annual, "Founder", "2019")
	require.True(t, ok)
	assert.Equal(t, 184, y2019.TotalDays)
	assert.Equal(t, 184, y2019.MemberDays)

	y2021, ok := findPeriod(result.Annual, "Leaver", "2021")
	require.True(t, ok)
	assert.Equal(t, 365, y2021.TotalDays)
	assert.Equal(t, 0, y2021.MemberDays)

	y2020, ok := findPeriod(result.Annual, "Leaver", "2020")
	require.True(t, ok)
	assert.Equal(t, 366, y2020.TotalDays)
	assert.Equal(t, 31, y2020.MemberDays)
}

func TestBuildInvariants(t *testing.T) {
	result, err := Build(sampleRecords(), day(2021, 1, 1))
	require.NoError(t, err)

	for _, rows := range [][]model.PeriodRow{result.Monthly, result.Annual} {
		for _, row := range rows {
			assert.LessOrEqual(t, row.MemberDays, row.TotalDays)
			assert.InDelta(t, float64(row.MemberDays)/float64(row.TotalDays), row.MemberPct, 1e-12)
		}
	}
}

func TestBuildDuplicateCountries(t *testing.T) {
	records := []model.MembershipRecord{
		{Country: "Xland", AccessionDate: day(2020, 1, 1), ExitDate: day(2020, 6, 30)},
		{Country: " Xland ", AccessionDate: day(2020, 3, 1)},
		{Country: "   "},
	}
	result, err := Build(records, day(2020, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Xland"}, result.Countries)

	annual, ok := findPeriod(result.Annual, "Xland", "2020")
	require.True(t, ok)
	assert.Equal(t, 366, annual.MemberDays, "first accession is kept and a missing exit leaves it open")
}

func TestBuildWithoutAccessionDates(t *testing.T) {
	_, err := Build([]model.MembershipRecord{{Country: "Nowhere"}}, day(2020, 1, 1))
	assert.ErrorIs(t, err, ErrNoAccessionDates)

	_, err = Build(nil, day(2020, 1, 1))
	assert.ErrorIs(t, err, ErrNoAccessionDates)
}

func TestBuildFutureAccessionExtendsEnd(t *testing.T) {
	records := []model.MembershipRecord{{Country: "Later", AccessionDate: day(2030, 12, 30)}}
	result, err := Build(records, day(2026, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, day(2030, 12, 31), result.End)
	assert.Len(t, result.Daily, 2)
}

func TestExpandDailyEmptyRange(t *testing.T) {
	spans := []Span{{Country: "A", From: day(2020, 1, 1), To: day(2020, 1, 1)}}
	assert.Empty(t, ExpandDaily(spans, day(2020, 1, 2), day(2020, 1, 1)))
	assert.Len(t, ExpandDaily(spans, day(2020, 1, 1), day(2020, 1, 1)), 1)
}

func TestMergeDuplicates(t *testing.T) {
	merged := MergeDuplicates([]model.MembershipRecord{
		{Country: "UK", AccessionDate: day(2019, 1, 1), ExitDate: day(2019, 6, 30)},
		{Country: "Malta ", AccessionDate: day(2004, 5, 1)},
		{Country: " UK", AccessionDate: day(2018, 1, 1)},
		{Country: "Leaver", AccessionDate: day(1973, 1, 1), ExitDate: day(2020, 1, 31)},
		{Country: "Leaver", AccessionDate: day(1980, 1, 1), ExitDate: day(2021, 1, 31)},
		{Country: ""},
	})

	assert.Equal(t, []model.MembershipRecord{
		{Country: "UK", AccessionDate: day(2019, 1, 1)},
		{Country: "Malta", AccessionDate: day(2004, 5, 1)},
		{Country: "Leaver", AccessionDate: day(1973, 1, 1), ExitDate: day(2020, 1, 31)},
	}, merged)
}

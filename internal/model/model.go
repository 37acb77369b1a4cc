package model

import "time"

type PeriodType string

const (
	PeriodDay   PeriodType = "D"
	PeriodMonth PeriodType = "M"
	PeriodYear  PeriodType = "Y"
)

// MembershipRecord is one row of the accession table. A missing date is the
// zero time.
type MembershipRecord struct {
	Country       string
	AccessionDate time.Time
	ExitDate      time.Time
}

func (r MembershipRecord) HasAccession() bool {
	return !r.AccessionDate.IsZero()
}

func (r MembershipRecord) HasExit() bool {
	return !r.ExitDate.IsZero()
}

type DailyRow struct {
	Country  string
	Date     time.Time
	IsMember bool
}

// PeriodRow is a per-country aggregate over a month ("2006-01") or a year
// ("2006").
type PeriodRow struct {
	Country    string
	PeriodType PeriodType
	Period     string
	TotalDays  int
	MemberDays int
	MemberPct  float64
}

type MonthlyRow = PeriodRow

type AnnualRow = PeriodRow

type Run struct {
	ID          string
	AsOf        time.Time
	Start       time.Time
	End         time.Time
	Countries   int
	DailyRows   int
	MonthlyRows int
	AnnualRows  int
	CreatedAt   time.Time
}

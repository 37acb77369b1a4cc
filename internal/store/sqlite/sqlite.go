package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"eumembership/internal/dates"
	"eumembership/internal/model"
	"eumembership/internal/series"
	"eumembership/internal/store"
)

const dateLayout = "2006-01-02"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertMemberships stores one record per country. Duplicates within a batch
// are merged first: the first accession is kept and an exit missing on any of
// them stores a NULL exit. A country seen again in a later batch keeps its
// original position.
func (s *Store) UpsertMemberships(ctx context.Context, source string, records []model.MembershipRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var maxSeq sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM memberships`).Scan(&maxSeq); err != nil {
			return err
		}
		next := maxSeq.Int64 + 1

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO memberships (
				country, seq, accession_date, exit_date, source, ingested_at
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(country)
			DO UPDATE SET
				accession_date = excluded.accession_date,
				exit_date = excluded.exit_date,
				source = excluded.source,
				ingested_at = excluded.ingested_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := s.now().UTC().Format(time.RFC3339)
		for _, record := range series.MergeDuplicates(records) {
			if _, err := stmt.ExecContext(ctx,
				record.Country,
				next,
				nullableDate(record.AccessionDate),
				nullableDate(record.ExitDate),
				source,
				now,
			); err != nil {
				return fmt.Errorf("upsert membership %s: %w", record.Country, err)
			}
			next++
		}
		return nil
	})
}

func (s *Store) ListMemberships(ctx context.Context) ([]model.MembershipRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country, accession_date, exit_date
		FROM memberships
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.MembershipRecord, 0)
	for rows.Next() {
		var record model.MembershipRecord
		var accession, exit sql.NullString
		if err := rows.Scan(&record.Country, &accession, &exit); err != nil {
			return nil, err
		}
		if record.AccessionDate, err = scanDate(accession); err != nil {
			return nil, err
		}
		if record.ExitDate, err = scanDate(exit); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveSeries replaces the stored series with the given run's output.
func (s *Store) SaveSeries(ctx context.Context, run model.Run, data store.Series) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("sqlite: run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"daily_series", "monthly_series", "annual_series"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}

		daily, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_series (run_id, country, date, is_member) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer daily.Close()
		for _, row := range data.Daily {
			if _, err := daily.ExecContext(ctx, run.ID, row.Country, row.Date.Format(dateLayout), row.IsMember); err != nil {
				return err
			}
		}

		if err := insertPeriods(ctx, tx, "monthly_series", run.ID, data.Monthly); err != nil {
			return err
		}
		if err := insertPeriods(ctx, tx, "annual_series", run.ID, data.Annual); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (
				id, as_of, start_date, end_date, countries,
				daily_rows, monthly_rows, annual_rows, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.AsOf.Format(dateLayout),
			run.Start.Format(dateLayout),
			run.End.Format(dateLayout),
			run.Countries,
			len(data.Daily),
			len(data.Monthly),
			len(data.Annual),
			run.CreatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
}

func insertPeriods(ctx context.Context, tx *sql.Tx, table, runID string, rows []model.PeriodRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+table+` (
			run_id, country, period, days_in_period, member_days, member_pct
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Country, row.Period, row.TotalDays, row.MemberDays, row.MemberPct); err != nil {
			return fmt.Errorf("insert %s %s %s: %w", table, row.Country, row.Period, err)
		}
	}
	return nil
}

func (s *Store) LatestRun(ctx context.Context) (model.Run, bool, error) {
	var run model.Run
	var asOf, start, end, created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, as_of, start_date, end_date, countries,
			daily_rows, monthly_rows, annual_rows, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&run.ID, &asOf, &start, &end, &run.Countries,
		&run.DailyRows, &run.MonthlyRows, &run.AnnualRows, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, false, nil
	}
	if err != nil {
		return model.Run{}, false, err
	}

	for _, field := range []struct {
		dst    *time.Time
		value  string
		layout string
	}{
		{&run.AsOf, asOf, dateLayout},
		{&run.Start, start, dateLayout},
		{&run.End, end, dateLayout},
		{&run.CreatedAt, created, time.RFC3339},
	} {
		parsed, err := time.Parse(field.layout, field.value)
		if err != nil {
			return model.Run{}, false, fmt.Errorf("sqlite: bad run timestamp %q: %w", field.value, err)
		}
		*field.dst = parsed
	}
	return run, true, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return dates.Format(t)
}

func scanDate(value sql.NullString) (time.Time, error) {
	if !value.Valid || value.String == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, value.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: bad stored date %q: %w", value.String, err)
	}
	return parsed, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS memberships (
			country TEXT NOT NULL PRIMARY KEY,
			seq INTEGER NOT NULL,
			accession_date TEXT,
			exit_date TEXT,
			source TEXT NOT NULL,
			ingested_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT NOT NULL PRIMARY KEY,
			as_of TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			countries INTEGER NOT NULL,
			daily_rows INTEGER NOT NULL,
			monthly_rows INTEGER NOT NULL,
			annual_rows INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_series (
			run_id TEXT NOT NULL,
			country TEXT NOT NULL,
			date TEXT NOT NULL,
			is_member INTEGER NOT NULL,
			PRIMARY KEY (country, date)
		);`,
		`CREATE TABLE IF NOT EXISTS monthly_series (
			run_id TEXT NOT NULL,
			country TEXT NOT NULL,
			period TEXT NOT NULL,
			days_in_period INTEGER NOT NULL,
			member_days INTEGER NOT NULL,
			member_pct REAL NOT NULL,
			PRIMARY KEY (country, period)
		);`,
		`CREATE TABLE IF NOT EXISTS annual_series (
			run_id TEXT NOT NULL,
			country TEXT NOT NULL,
			period TEXT NOT NULL,
			days_in_period INTEGER NOT NULL,
			member_days INTEGER NOT NULL,
			member_pct REAL NOT NULL,
			PRIMARY KEY (country, period)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ store.Store = (*Store)(nil)

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"eumembership/internal/config"
	"eumembership/internal/dates"
	"eumembership/internal/logger"
	"eumembership/internal/model"
	"eumembership/internal/series"
	"eumembership/internal/sources"
	"eumembership/internal/sources/csvfile"
	"eumembership/internal/sources/xlsx"
	"eumembership/internal/store"
	"eumembership/internal/store/sqlite"
)

// OpenSource picks a reader by file extension.
func OpenSource(cfg config.InputConfig) (sources.Source, error) {
	table := sources.TableOptions{
		SkipRows: cfg.SkipRows,
		Columns: sources.Columns{
			Country:   cfg.Columns.Country,
			Accession: cfg.Columns.Accession,
			Exit:      cfg.Columns.Exit,
		},
		Layouts: dates.MergeLayouts(cfg.DateLayouts),
	}

	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".xlsx", ".xlsm":
		return xlsx.NewWithConfig(xlsx.Config{Path: cfg.Path, Sheet: cfg.Sheet, Table: table})
	case ".csv":
		return csvfile.NewWithConfig(csvfile.Config{Path: cfg.Path, Table: table})
	case ".tsv":
		return csvfile.NewWithConfig(csvfile.Config{Path: cfg.Path, Delimiter: '\t', Table: table})
	default:
		return nil, fmt.Errorf("unsupported input file: %s", cfg.Path)
	}
}

func OpenStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

// Import loads the source and upserts its records into st.
func Import(ctx context.Context, src sources.Source, st store.Store) ([]model.MembershipRecord, error) {
	log := logger.GetLogger().WithComponent("importer")
	started := time.Now()

	records, err := src.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}
	warnIncomplete(log, records)

	if err := st.UpsertMemberships(ctx, src.Name(), records); err != nil {
		return nil, err
	}
	logger.LogStage(log, "import", len(records), time.Since(started))
	return records, nil
}

func warnIncomplete(log *logger.Entry, records []model.MembershipRecord) {
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		country := strings.TrimSpace(record.Country)
		if _, dup := seen[country]; dup {
			log.WithFields(logger.Fields{"country": country}).Warn("duplicate country, merged into first record")
		}
		seen[country] = struct{}{}
		if !record.HasAccession() {
			log.WithFields(logger.Fields{"country": country}).Warn("no parseable accession date")
		}
	}
}

type Exporter interface {
	Write(ctx context.Context, result series.Result) ([]string, error)
}

type Uploader interface {
	Upload(ctx context.Context, paths []string) ([]string, error)
}

type Publisher struct {
	Store    store.Store
	Exporter Exporter
	// Uploader is optional.
	Uploader Uploader
	NewRunID func() string
}

type Summary struct {
	Run model.Run
	// Previous is the run this one replaced in the store, if any.
	Previous *model.Run
	Paths    []string
	Keys     []string
}

// Publish builds the series from records, persists them, writes the output
// files and uploads them when an uploader is set.
func (p *Publisher) Publish(ctx context.Context, records []model.MembershipRecord, asOf time.Time) (Summary, error) {
	if p.Exporter == nil {
		return Summary{}, errors.New("publisher: exporter is required")
	}
	st := p.Store
	if st == nil {
		st = &store.NopStore{}
	}
	newID := p.NewRunID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	runID := newID()
	log := logger.GetLogger().WithComponent("publisher").WithFields(logger.Fields{"run_id": runID})

	started := time.Now()
	result, err := series.Build(records, asOf)
	if err != nil {
		return Summary{}, err
	}
	logger.LogStage(log, "daily", len(result.Daily), time.Since(started))
	log.WithFields(logger.Fields{
		"start":   dates.Format(result.Start),
		"end":     dates.Format(result.End),
		"monthly": len(result.Monthly),
		"annual":  len(result.Annual),
	}).Info("series built")

	run := model.Run{
		ID:          runID,
		AsOf:        dates.Day(asOf),
		Start:       result.Start,
		End:         result.End,
		Countries:   len(result.Countries),
		DailyRows:   len(result.Daily),
		MonthlyRows: len(result.Monthly),
		AnnualRows:  len(result.Annual),
		CreatedAt:   time.Now().UTC(),
	}

	var previous *model.Run
	if latest, ok, err := st.LatestRun(ctx); err != nil {
		return Summary{}, fmt.Errorf("latest run: %w", err)
	} else if ok {
		previous = &latest
		log.WithFields(logger.Fields{
			"previous_run": latest.ID,
			"previous_end": dates.Format(latest.End),
		}).Info("replacing stored series")
	}

	started = time.Now()
	if err := st.SaveSeries(ctx, run, store.Series{Daily: result.Daily, Monthly: result.Monthly, Annual: result.Annual}); err != nil {
		return Summary{}, fmt.Errorf("save series: %w", err)
	}
	logger.LogStage(log, "store", len(result.Daily)+len(result.Monthly)+len(result.Annual), time.Since(started))

	started = time.Now()
	paths, err := p.Exporter.Write(ctx, result)
	if err != nil {
		return Summary{}, err
	}
	logger.LogStage(log, "export", len(paths), time.Since(started))

	summary := Summary{Run: run, Previous: previous, Paths: paths}
	if p.Uploader == nil {
		return summary, nil
	}
	keys, err := p.Uploader.Upload(ctx, paths)
	if err != nil {
		return summary, err
	}
	summary.Keys = keys
	return summary, nil
}

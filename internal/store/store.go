package store

import (
	"context"

	"eumembership/internal/model"
)

type Store interface {
	UpsertMemberships(ctx context.Context, source string, records []model.MembershipRecord) error
	ListMemberships(ctx context.Context) ([]model.MembershipRecord, error)
	SaveSeries(ctx context.Context, run model.Run, series Series) error
	LatestRun(ctx context.Context) (model.Run, bool, error)
	Close() error
}

type Series struct {
	Daily   []model.DailyRow
	Monthly []model.MonthlyRow
	Annual  []model.AnnualRow
}

type NopStore struct{}

func (s *NopStore) UpsertMemberships(ctx context.Context, source string, records []model.MembershipRecord) error {
	_ = ctx
	_ = source
	_ = records
	return nil
}

func (s *NopStore) ListMemberships(ctx context.Context) ([]model.MembershipRecord, error) {
	_ = ctx
	return nil, nil
}

func (s *NopStore) SaveSeries(ctx context.Context, run model.Run, series Series) error {
	_ = ctx
	_ = run
	_ = series
	return nil
}

func (s *NopStore) LatestRun(ctx context.Context) (model.Run, bool, error) {
	_ = ctx
	return model.Run{}, false, nil
}

func (s *NopStore) Close() error {
	return nil
}

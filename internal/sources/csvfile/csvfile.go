package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"eumembership/internal/model"
	"eumembership/internal/sources"
)

type Config struct {
	Path      string
	Delimiter rune
	Table     sources.TableOptions
}

type Source struct {
	config Config
}

func NewWithConfig(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("csvfile: path is required")
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &Source{config: cfg}, nil
}

func (s *Source) Name() string {
	return "csv"
}

func (s *Source) LoadRecords(ctx context.Context) ([]model.MembershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.config.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = s.config.Delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvfile: read %s: %w", s.config.Path, err)
	}
	return sources.ParseTable(rows, s.config.Table)
}

var _ sources.Source = (*Source)(nil)

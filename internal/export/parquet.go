package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"eumembership/internal/model"
)

type dailyParquetRecord struct {
	Country  string `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date     int32  `parquet:"name=date, type=INT32, convertedtype=DATE"`
	EUMember bool   `parquet:"name=eu_member, type=BOOLEAN"`
}

type monthlyParquetRecord struct {
	Country        string  `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	YearMonth      string  `parquet:"name=year_month, type=BYTE_ARRAY, convertedtype=UTF8"`
	DaysInMonth    int32   `parquet:"name=days_in_month, type=INT32"`
	MembershipDays int32   `parquet:"name=membership_days, type=INT32"`
	MembershipPct  float64 `parquet:"name=membership_pct, type=DOUBLE"`
}

type annualParquetRecord struct {
	Country        string  `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year           string  `parquet:"name=year, type=BYTE_ARRAY, convertedtype=UTF8"`
	DaysInYear     int32   `parquet:"name=days_in_year, type=INT32"`
	MembershipDays int32   `parquet:"name=membership_days, type=INT32"`
	MembershipPct  float64 `parquet:"name=membership_pct, type=DOUBLE"`
}

var errWriteOnly = errors.New("export: parquet buffer is write-only")

// parquetBuffer is the source.ParquetFile the writer encodes into. It only
// appends; the finished file is taken with Bytes.
type parquetBuffer struct {
	bytes.Buffer
}

func (b *parquetBuffer) Create(name string) (source.ParquetFile, error) {
	return b, nil
}

func (b *parquetBuffer) Open(name string) (source.ParquetFile, error) {
	return nil, errWriteOnly
}

// Seek only reports the current end of the buffer.
func (b *parquetBuffer) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence == io.SeekStart {
		return 0, errWriteOnly
	}
	return int64(b.Len()), nil
}

func (b *parquetBuffer) Read(p []byte) (int, error) {
	return 0, errWriteOnly
}

func (b *parquetBuffer) Close() error {
	return nil
}

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "snappy", "":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

func epochDays(t time.Time) int32 {
	return int32(t.Unix() / 86400)
}

func encodeParquet(schema interface{}, records []interface{}, compression string) ([]byte, error) {
	buf := &parquetBuffer{}
	pw, err := writer.NewParquetWriter(buf, schema, 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func dailyParquet(rows []model.DailyRow, compression string) ([]byte, error) {
	records := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		records = append(records, dailyParquetRecord{
			Country:  row.Country,
			Date:     epochDays(row.Date),
			EUMember: row.IsMember,
		})
	}
	return encodeParquet(new(dailyParquetRecord), records, compression)
}

func monthlyParquet(rows []model.MonthlyRow, compression string) ([]byte, error) {
	records := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		records = append(records, monthlyParquetRecord{
			Country:        row.Country,
			YearMonth:      row.Period,
			DaysInMonth:    int32(row.TotalDays),
			MembershipDays: int32(row.MemberDays),
			MembershipPct:  row.MemberPct,
		})
	}
	return encodeParquet(new(monthlyParquetRecord), records, compression)
}

func annualParquet(rows []model.AnnualRow, compression string) ([]byte, error) {
	records := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		records = append(records, annualParquetRecord{
			Country:        row.Country,
			Year:           row.Period,
			DaysInYear:     int32(row.TotalDays),
			MembershipDays: int32(row.MemberDays),
			MembershipPct:  row.MemberPct,
		})
	}
	return encodeParquet(new(annualParquetRecord), records, compression)
}

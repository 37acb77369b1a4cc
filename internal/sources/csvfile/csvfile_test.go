package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eumembership/internal/sources"
)

func TestLoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accession.csv")
	content := "Country;EU accession date;EU exit date\n" +
		"France;\"January 1, 1958\";\n" +
		"United Kingdom;\"January 1, 1973\";\"January 31, 2020\"\n" +
		"Iceland;;\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src, err := NewWithConfig(Config{Path: path, Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, "csv", src.Name())

	records, err := src.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].HasAccession())
	assert.True(t, records[1].HasExit())
	assert.False(t, records[2].HasAccession())
}

func TestLoadRecordsErrors(t *testing.T) {
	_, err := NewWithConfig(Config{})
	assert.Error(t, err)

	src, err := NewWithConfig(Config{Path: filepath.Join(t.TempDir(), "missing.csv")})
	require.NoError(t, err)
	_, err = src.LoadRecords(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "header-only.csv")
	require.NoError(t, os.WriteFile(path, []byte("Country,EU accession date\n"), 0o600))
	src, err = NewWithConfig(Config{Path: path})
	require.NoError(t, err)
	_, err = src.LoadRecords(context.Background())
	assert.ErrorIs(t, err, sources.ErrNoRecords)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.LoadRecords(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

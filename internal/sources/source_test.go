package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	rows := [][]string{
		{"EU member states"},
		{},
		{"source: countries-ofthe-world.com"},
		{"Country", " EU  Accession Date ", "EU exit date"},
		{"Belgium", "January 1, 1958"},
		{"United Kingdom", "January 1, 1973", "January 31, 2020"},
		{"", "January 1, 1958"},
		{"Atlantis", "not yet", ""},
	}

	records, err := ParseTable(rows, TableOptions{SkipRows: 3})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Belgium", records[0].Country)
	assert.Equal(t, time.Date(1958, 1, 1, 0, 0, 0, 0, time.UTC), records[0].AccessionDate)
	assert.False(t, records[0].HasExit(), "short row has no exit cell")

	assert.Equal(t, time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), records[1].ExitDate)

	assert.Equal(t, "Atlantis", records[2].Country)
	assert.False(t, records[2].HasAccession())
}

func TestParseTableCustomColumns(t *testing.T) {
	rows := [][]string{
		{"name", "joined"},
		{"Croatia", "2013-07-01"},
	}
	records, err := ParseTable(rows, TableOptions{
		Columns: Columns{Country: "Name", Accession: "Joined", Exit: "Left"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].HasAccession())
	assert.False(t, records[0].HasExit())
}

func TestParseTableErrors(t *testing.T) {
	_, err := ParseTable([][]string{{"Country", "EU accession date"}}, TableOptions{SkipRows: 3})
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = ParseTable([][]string{{"Country", "EU accession date"}}, TableOptions{})
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = ParseTable([][]string{{"Country", "Joined"}, {"Malta", "May 1, 2004"}}, TableOptions{})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseTableCellDate(t *testing.T) {
	rows := [][]string{
		{"Country", "EU accession date"},
		{"Germany", "serial"},
		{"Malta", "May 1, 2004"},
	}
	records, err := ParseTable(rows, TableOptions{
		CellDate: func(value string) (time.Time, bool) {
			if value != "serial" {
				return time.Time{}, false
			}
			return time.Date(1958, 1, 1, 12, 0, 0, 0, time.UTC), true
		},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(1958, 1, 1, 0, 0, 0, 0, time.UTC), records[0].AccessionDate)
	assert.Equal(t, time.Date(2004, 5, 1, 0, 0, 0, 0, time.UTC), records[1].AccessionDate, "text layouts still apply")
}

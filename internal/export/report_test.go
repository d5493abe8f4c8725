package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"umkm/internal/core"
	"umkm/internal/income"
)

func sample() (income.Overview, []core.Income) {
	records := []core.Income{
		{ID: "1", Amount: core.NewAmount(1000), Source: "Pasar", Date: "2024-01-15"},
		{ID: "2", Amount: core.NewAmount(1500), Source: "Online", Date: "2024-02-01"},
	}
	return income.Aggregate(records), records
}

func TestBuildIncomeXLSX(t *testing.T) {
	ov, records := sample()
	data, err := BuildIncomeXLSX(ov, records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"summary", "series", "records"}, f.GetSheetList())

	month, err := f.GetCellValue("series", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Feb 2024", month)

	total, err := f.GetCellValue("summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "2500", total)

	source, err := f.GetCellValue("records", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Pasar", source)
}

func TestBuildIncomePDF(t *testing.T) {
	ov, records := sample()
	data, err := BuildIncomePDF("Warung Sari", ov, records)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	empty, err := BuildIncomePDF("", income.Aggregate(nil), nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())
	assert.Equal(t, "laporan-pendapatan-2024-03-01.pdf", f.Filename(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

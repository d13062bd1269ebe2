package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Active": {
			{"License No", "Business Name"},
			{" ROC1 ", "Acme Stone"},
			{"", ""},
			{"ROC2", "Desert Tile"},
		},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{TrimSpace: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ROC1", "Acme Stone"}, rows[1].Fields)
	assert.Equal(t, 4, rows[2].Line)
}

func TestStreamXLSX_SkipRowsAndSheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Data": {
			{"Exported 2026-01-01"},
			{"License No"},
			{"ROC9"},
		},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Data", SkipRows: 1})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"License No"}, {"ROC9"}}, fields(rows))
}

func TestStreamXLSX_Errors(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Only": {{"a"}}})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Missing"})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	rowCh, errCh = StreamXLSX(context.Background(), path, XLSXOptions{SheetIndex: 3})
	_, err = collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	rowCh, errCh = StreamXLSX(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	_, err = collectRows(t, rowCh, errCh)
	require.Error(t, err)
}

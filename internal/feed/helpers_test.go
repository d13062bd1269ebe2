package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/fetcher"
	"github.com/sells-group/contractor-cli/internal/reconcile"
	"github.com/sells-group/contractor-cli/internal/resilience"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

const sampleCSV = `Contractor License Report "Active" as of 10/01/2026 - 3 records
#,License No,Business Name,Address,City,State,Zip,Class,Class Detail,Class Type,Qualifying Party,Issued Date,Expiration Date,Status,Doing Business As
1,ROC123,Acme Stone,"1 Stone Way, Tempe, AZ 85281",,,,CR-23,Masonry,Residential,Jane Doe,03/15/2015,03/31/2027,,
2,ROC456,Desert Tile LLC,22 Main St,Mesa,AZ,85201,CR-99,Tile and flooring,Commercial,Bob Smith,2020-06-01,,Active,Desert Tile Works
3,,No License Co,5 Elm St,Mesa,AZ,85201,CR-9,,,,,,,
,,,,,,,,,,,,,,
`

type mockUpserter struct {
	mock.Mock
}

func (m *mockUpserter) Upsert(ctx context.Context, c contractor.Candidate) (reconcile.Outcome, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(reconcile.Outcome), args.Error(1)
}

func newTestStore(t *testing.T) *contractor.SQLiteStore {
	t.Helper()
	s, err := contractor.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		MaxRedirects: 1,
		Backoff:      &resilience.Backoff{Initial: time.Millisecond, Max: time.Millisecond},
	})
}

// newTestImporter wires a real reconciler over an in-memory store.
func newTestImporter(t *testing.T, f fetcher.Fetcher, opts Options) (*Importer, *contractor.SQLiteStore) {
	t.Helper()
	store := newTestStore(t)
	rec := reconcile.New(store, reconcile.WithClock(func() time.Time { return testNow }))
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	im := New(store, rec, f, nil, opts)
	im.now = func() time.Time { return testNow }
	return im, store
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Contractors")
	require.NoError(t, err)
	for _, data := range rows {
		row := sheet.AddRow()
		for _, v := range data {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "snapshot.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/pkg/geocode"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Geocode(ctx context.Context, address string) (*geocode.Point, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Point), args.Error(1)
}

func newTestStore(t *testing.T) *contractor.SQLiteStore {
	t.Helper()
	s, err := contractor.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

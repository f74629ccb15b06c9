package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridpath/systems/sqlite/migrations"
)

// NewTestStore returns a migrated in-memory store isolated to the calling
// test. The database name includes the test name so parallel tests never
// share state.
func NewTestStore(t *testing.T) *SqlStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := newSqlStore(dsn, zap.NewNop())
	require.NoError(t, err, "unable to open in-memory database")
	t.Cleanup(func() { store.Close() })

	require.NoError(t, NewMigrator(store, zap.NewNop()).Up(context.Background(), migrations.All))

	return store
}

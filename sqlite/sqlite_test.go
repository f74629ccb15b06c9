package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridpath/systems/sqlite/migrations"
)

func TestNewTestStoreIsMigrated(t *testing.T) {
	store := NewTestStore(t)

	v, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	tables, err := store.tableNames()
	require.NoError(t, err)
	require.Subset(t, tables, []string{
		"systems", "job_runtimes", "logical_queues", "capabilities", "system_updates",
	})
}

func TestMigrationUpIsIdempotent(t *testing.T) {
	store := NewTestStore(t)

	// NewTestStore already migrated; a second pass must change nothing
	before, err := store.userVersion()
	require.NoError(t, err)

	err = NewMigrator(store, store.log).Up(context.Background(), migrations.All)
	require.NoError(t, err)

	after, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestFlushKeepsSchema(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	err := store.execTrans(ctx, `INSERT INTO systems
		(tenant, id, system_type, owner, host, effective_user_id, default_authn_method, uuid, created, updated)
		VALUES ('dev', 'sys1', 'LINUX', 'owner1', 'h', '${owner}', 'PKI_KEYS', 'u', 't', 't')`)
	require.NoError(t, err)

	ids, err := store.queryToStrings("SELECT id FROM systems")
	require.NoError(t, err)
	require.Equal(t, []string{"sys1"}, ids)

	store.Flush(ctx)

	ids, err = store.queryToStrings("SELECT id FROM systems")
	require.NoError(t, err)
	require.Empty(t, ids)

	v, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestScriptVersion(t *testing.T) {
	v, err := scriptVersion("0001_create_systems_tables.sql")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = scriptVersion("create_systems_tables.sql")
	require.Error(t, err)
}

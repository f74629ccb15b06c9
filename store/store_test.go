package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridpath/systems"
	ierrors "github.com/gridpath/systems/kit/errors"
	"github.com/gridpath/systems/sqlite"
	"github.com/gridpath/systems/store"
)

func newTestStore(t *testing.T) (*store.Store, *sqlite.SqlStore) {
	t.Helper()
	db := sqlite.NewTestStore(t)
	return store.NewStore(db, zap.NewNop()), db
}

func testSystem(tenant, id, owner string) *systems.System {
	now := time.Now().UTC()
	return &systems.System{
		Tenant:             tenant,
		ID:                 id,
		Description:        "a test system",
		Type:               systems.SystemTypeLinux,
		Owner:              owner,
		Host:               "compute.example.org",
		Enabled:            true,
		EffectiveUserID:    systems.OwnerTemplate,
		DefaultAuthnMethod: systems.AuthnMethodPKIKeys,
		RootDir:            "/home/" + owner,
		TransferMethods:    []systems.TransferMethod{systems.TransferMethodSFTP},
		Port:               22,
		CanExec:            true,
		JobWorkingDir:      "/scratch",
		JobEnvVariables:    []systems.KeyValuePair{{Key: "CLUSTER", Value: "test"}},
		JobMaxJobs:         systems.MaxJobsUnlimited,
		JobMaxJobsPerUser:  systems.MaxJobsUnlimited,
		JobRuntimes: []systems.JobRuntime{
			{Type: systems.RuntimeTypeDocker},
			{Type: systems.RuntimeTypeSingularity, Version: "3.8"},
		},
		IsBatch:        true,
		BatchScheduler: systems.SchedulerTypeSlurm,
		BatchQueues: []systems.LogicalQueue{
			{Name: "normal", HPCQueueName: "normal", MaxJobs: 50, MaxMinutes: 240},
			{Name: "debug", HPCQueueName: "debug", MaxJobs: 5, MaxMinutes: 15},
		},
		BatchDefaultQueue: "normal",
		Capabilities: []systems.Capability{
			{Category: "HARDWARE", Name: "gpu", Datatype: "BOOLEAN", Value: "true"},
		},
		Tags:    []string{"test"},
		Notes:   json.RawMessage(`{"contact":"ops@example.org"}`),
		UUID:    uuid.New(),
		Created: now,
		Updated: now,
	}
}

func testRecord(s *systems.System, op systems.Operation) *systems.UpdateRecord {
	return &systems.UpdateRecord{
		Tenant:     s.Tenant,
		SystemID:   s.ID,
		Operation:  op,
		SystemUUID: s.UUID,
		Created:    time.Now().UTC(),
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	want := testSystem("dev", "sys1", "owner1")
	seqID, err := st.CreateSystem(ctx, want, testRecord(want, systems.OpCreate))
	require.NoError(t, err)
	require.Greater(t, seqID, int64(0))
	require.Equal(t, seqID, want.SeqID)

	got, err := st.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("system round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_CreateDuplicateConflicts(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	dup := testSystem("dev", "sys1", "owner2")
	_, err = st.CreateSystem(ctx, dup, testRecord(dup, systems.OpCreate))
	require.Equal(t, ierrors.EConflict, ierrors.ErrorCode(err))

	// same id in another tenant is fine
	other := testSystem("prod", "sys1", "owner1")
	_, err = st.CreateSystem(ctx, other, testRecord(other, systems.OpCreate))
	require.NoError(t, err)
}

func TestStore_SystemExists(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	exists, err := st.SystemExists(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = st.SystemExists(ctx, "dev", "nope", true)
	require.NoError(t, err)
	require.False(t, exists)

	// a soft-deleted system still holds its id
	_, err = st.UpdateSystemDeleted(ctx, "dev", "sys1", true, testRecord(s, systems.OpSoftDelete))
	require.NoError(t, err)

	exists, err = st.SystemExists(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = st.SystemExists(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestStore_GetMissing(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.GetSystem(context.Background(), "dev", "ghost", false)
	require.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))
}

func TestStore_UpdateSystem(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	s.Host = "new-host.example.org"
	s.Description = "updated"
	s.Updated = time.Now().UTC()
	s.JobRuntimes = []systems.JobRuntime{{Type: systems.RuntimeTypeDocker, Version: "24"}}

	err = st.UpdateSystem(ctx, s, systems.ChildCollections{Runtimes: true}, testRecord(s, systems.OpModify))
	require.NoError(t, err)

	got, err := st.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.Equal(t, "new-host.example.org", got.Host)
	require.Equal(t, "updated", got.Description)
	require.Equal(t, []systems.JobRuntime{{Type: systems.RuntimeTypeDocker, Version: "24"}}, got.JobRuntimes)

	// untouched child collections survive
	require.Len(t, got.BatchQueues, 2)
	require.Len(t, got.Capabilities, 1)
}

func TestStore_UpdateMissingSystem(t *testing.T) {
	st, _ := newTestStore(t)

	s := testSystem("dev", "ghost", "owner1")
	s.SeqID = 9999
	err := st.UpdateSystem(context.Background(), s, systems.AllChildCollections(), testRecord(s, systems.OpModify))
	require.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))
}

func TestStore_UpdateSystemEnabled(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	n, err := st.UpdateSystemEnabled(ctx, "dev", "sys1", false, testRecord(s, systems.OpDisable))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// disabling an already disabled system changes nothing
	n, err = st.UpdateSystemEnabled(ctx, "dev", "sys1", false, testRecord(s, systems.OpDisable))
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	got, err := st.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.False(t, got.Enabled)

	// only the effective flip leaves an audit record
	var audits int64
	err = db.DB.GetContext(ctx, &audits,
		"SELECT COUNT(1) FROM system_updates WHERE tenant = ? AND system_id = ? AND operation = ?",
		"dev", "sys1", string(systems.OpDisable))
	require.NoError(t, err)
	require.Equal(t, int64(1), audits)
}

func TestStore_UpdateSystemOwner(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	err = st.UpdateSystemOwner(ctx, "dev", "sys1", "owner2", testRecord(s, systems.OpChangeOwner))
	require.NoError(t, err)

	got, err := st.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.Equal(t, "owner2", got.Owner)
}

func TestStore_SoftDeleteFiltering(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	n, err := st.UpdateSystemDeleted(ctx, "dev", "sys1", true, testRecord(s, systems.OpSoftDelete))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = st.GetSystem(ctx, "dev", "sys1", false)
	require.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))

	got, err := st.GetSystem(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	require.True(t, got.Deleted)

	// undelete restores visibility
	n, err = st.UpdateSystemDeleted(ctx, "dev", "sys1", false, testRecord(s, systems.OpUndelete))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = st.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
}

func TestStore_HardDeleteCascades(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	seqID, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	require.NoError(t, st.HardDeleteSystem(ctx, "dev", "sys1"))

	_, err = st.GetSystem(ctx, "dev", "sys1", true)
	require.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))

	for _, table := range []string{"job_runtimes", "logical_queues", "capabilities"} {
		var n int64
		err := db.DB.GetContext(ctx, &n, "SELECT COUNT(1) FROM "+table+" WHERE system_seq_id = ?", seqID)
		require.NoError(t, err)
		require.Zero(t, n, table)
	}
}

func TestStore_ListSystems(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	var seqIDs []int64
	for _, id := range []string{"alpha", "bravo", "charlie"} {
		s := testSystem("dev", id, "owner1")
		seqID, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
		require.NoError(t, err)
		seqIDs = append(seqIDs, seqID)
	}
	other := testSystem("prod", "alpha", "owner1")
	_, err := st.CreateSystem(ctx, other, testRecord(other, systems.OpCreate))
	require.NoError(t, err)

	t.Run("unrestricted lists the whole tenant", func(t *testing.T) {
		ss, err := st.ListSystems(ctx, "dev", systems.SystemFilter{}, systems.UnrestrictedIDSet(), systems.FindOptions{})
		require.NoError(t, err)
		require.Len(t, ss, 3)
		require.Equal(t, "alpha", ss[0].ID)
	})

	t.Run("restricted to allowed ids", func(t *testing.T) {
		allowed := systems.IDSet{IDs: []int64{seqIDs[0], seqIDs[2]}}
		ss, err := st.ListSystems(ctx, "dev", systems.SystemFilter{}, allowed, systems.FindOptions{})
		require.NoError(t, err)
		require.Len(t, ss, 2)
		require.Equal(t, "alpha", ss[0].ID)
		require.Equal(t, "charlie", ss[1].ID)
	})

	t.Run("empty allowed set short-circuits", func(t *testing.T) {
		ss, err := st.ListSystems(ctx, "dev", systems.SystemFilter{}, systems.IDSet{}, systems.FindOptions{})
		require.NoError(t, err)
		require.Empty(t, ss)
	})

	t.Run("predicate narrows results", func(t *testing.T) {
		filter := systems.SystemFilter{Predicate: sq.Like{"id": "%ar%"}}
		ss, err := st.ListSystems(ctx, "dev", filter, systems.UnrestrictedIDSet(), systems.FindOptions{})
		require.NoError(t, err)
		require.Len(t, ss, 2)
		require.Equal(t, "bravo", ss[0].ID)
		require.Equal(t, "charlie", ss[1].ID)
	})

	t.Run("pagination and ordering", func(t *testing.T) {
		ss, err := st.ListSystems(ctx, "dev", systems.SystemFilter{}, systems.UnrestrictedIDSet(),
			systems.FindOptions{SortBy: "id", Descending: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, ss, 2)
		require.Equal(t, "charlie", ss[0].ID)
		require.Equal(t, "bravo", ss[1].ID)

		ss, err = st.ListSystems(ctx, "dev", systems.SystemFilter{}, systems.UnrestrictedIDSet(),
			systems.FindOptions{SortBy: "id", Descending: true, Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, ss, 1)
		require.Equal(t, "alpha", ss[0].ID)
	})

	t.Run("soft-deleted systems hidden by default", func(t *testing.T) {
		s := testSystem("dev", "doomed", "owner1")
		_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
		require.NoError(t, err)
		_, err = st.UpdateSystemDeleted(ctx, "dev", "doomed", true, testRecord(s, systems.OpSoftDelete))
		require.NoError(t, err)

		ss, err := st.ListSystems(ctx, "dev", systems.SystemFilter{}, systems.UnrestrictedIDSet(), systems.FindOptions{})
		require.NoError(t, err)
		require.Len(t, ss, 3)

		ss, err = st.ListSystems(ctx, "dev", systems.SystemFilter{IncludeDeleted: true}, systems.UnrestrictedIDSet(), systems.FindOptions{})
		require.NoError(t, err)
		require.Len(t, ss, 4)
	})

	t.Run("count matches list", func(t *testing.T) {
		n, err := st.CountSystems(ctx, "dev", systems.SystemFilter{}, systems.UnrestrictedIDSet())
		require.NoError(t, err)
		require.Equal(t, int64(3), n)

		n, err = st.CountSystems(ctx, "dev", systems.SystemFilter{}, systems.IDSet{})
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestStore_AuditRecords(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()

	s := testSystem("dev", "sys1", "owner1")
	_, err := st.CreateSystem(ctx, s, testRecord(s, systems.OpCreate))
	require.NoError(t, err)

	rec := testRecord(s, systems.OpGrantPerms)
	rec.Description = json.RawMessage(`{"targetUser":"jdoe","permissions":["READ"]}`)
	rec.RawRequest = `{"permissions":["READ"]}`
	require.NoError(t, st.AppendUpdate(ctx, rec))

	type auditRow struct {
		Operation   string `db:"operation"`
		Description string `db:"description"`
		RawRequest  string `db:"raw_request"`
		SystemUUID  string `db:"system_uuid"`
	}
	var rows []auditRow
	err = db.DB.SelectContext(ctx, &rows,
		"SELECT operation, description, raw_request, system_uuid FROM system_updates WHERE tenant = ? AND system_id = ? ORDER BY seq_id", "dev", "sys1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "create", rows[0].Operation)
	require.Equal(t, "grantPerms", rows[1].Operation)
	require.JSONEq(t, `{"targetUser":"jdoe","permissions":["READ"]}`, rows[1].Description)
	require.Equal(t, s.UUID.String(), rows[1].SystemUUID)
}

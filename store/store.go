// Package store implements the registry's relational resource store over
// sqlite. All multi-statement writes run in a single transaction, and every
// mutating call persists its audit record in that same transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/gridpath/systems"
	ierrors "github.com/gridpath/systems/kit/errors"
	"github.com/gridpath/systems/sqlite"
)

var systemColumns = []string{
	"seq_id", "tenant", "id", "description", "system_type", "owner", "host",
	"enabled", "effective_user_id", "default_authn_method", "bucket_name",
	"root_dir", "transfer_methods", "port", "use_proxy", "proxy_host",
	"proxy_port", "is_dtn", "dtn_system_id", "dtn_mount_point",
	"dtn_mount_source_path", "can_exec", "job_working_dir",
	"job_env_variables", "job_max_jobs", "job_max_jobs_per_user", "is_batch",
	"batch_scheduler", "batch_default_queue", "tags", "notes", "deleted",
	"uuid", "created", "updated",
}

// sortableColumns whitelists the columns a listing may be ordered by.
var sortableColumns = map[string]string{
	"id":      "id",
	"host":    "host",
	"owner":   "owner",
	"created": "created",
	"updated": "updated",
}

var _ systems.SystemStore = (*Store)(nil)

type Store struct {
	db  *sqlite.SqlStore
	log *zap.Logger
}

func NewStore(db *sqlite.SqlStore, log *zap.Logger) *Store {
	return &Store{
		db:  db,
		log: log,
	}
}

// CreateSystem inserts the system row, its child collections and the audit
// record in one transaction and returns the assigned surrogate id. The
// (tenant, id) uniqueness constraint is the final arbiter of create races; a
// constraint violation surfaces as EConflict.
func (st *Store) CreateSystem(ctx context.Context, s *systems.System, rec *systems.UpdateRecord) (int64, error) {
	row, err := fromSystem(s)
	if err != nil {
		return 0, err
	}

	st.db.Mu.Lock()
	defer st.db.Mu.Unlock()

	tx, err := st.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Insert("systems").
		Columns(systemColumns[1:]...).
		Values(
			row.Tenant, row.ID, row.Description, row.SystemType, row.Owner,
			row.Host, row.Enabled, row.EffectiveUserID, row.DefaultAuthnMethod,
			row.BucketName, row.RootDir, row.TransferMethods, row.Port,
			row.UseProxy, row.ProxyHost, row.ProxyPort, row.IsDtn,
			row.DtnSystemID, row.DtnMountPoint, row.DtnMountSourcePath,
			row.CanExec, row.JobWorkingDir, row.JobEnvVariables,
			row.JobMaxJobs, row.JobMaxJobsPerUser, row.IsBatch,
			row.BatchScheduler, row.BatchDefaultQueue, row.Tags, row.Notes,
			row.Deleted, row.UUID, row.Created, row.Updated,
		).
		Suffix("RETURNING seq_id").
		ToSql()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	var seqID int64
	if err := tx.GetContext(ctx, &seqID, query, args...); err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return 0, &ierrors.Error{
				Code: ierrors.EConflict,
				Msg:  fmt.Sprintf("system %q already exists in tenant %q", s.ID, s.Tenant),
			}
		}
		return 0, err
	}

	if err := insertChildren(ctx, tx, seqID, s, systems.AllChildCollections()); err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := insertUpdate(ctx, tx, rec); err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.SeqID = seqID
	return seqID, nil
}

// SystemExists reports whether the (tenant, id) pair is taken, optionally
// counting soft-deleted rows.
func (st *Store) SystemExists(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error) {
	q := sq.Select("COUNT(1)").From("systems").Where(sq.Eq{"tenant": tenant, "id": id})
	if !includeDeleted {
		q = q.Where(sq.Eq{"deleted": false})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return false, err
	}

	var n int64
	if err := st.db.DB.GetContext(ctx, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetSystem fetches one system with all child collections.
func (st *Store) GetSystem(ctx context.Context, tenant, id string, includeDeleted bool) (*systems.System, error) {
	q := sq.Select(systemColumns...).From("systems").Where(sq.Eq{"tenant": tenant, "id": id})
	if !includeDeleted {
		q = q.Where(sq.Eq{"deleted": false})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var row systemRow
	if err := st.db.DB.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(tenant, id)
		}
		return nil, err
	}

	s, err := row.toSystem()
	if err != nil {
		return nil, err
	}
	if err := st.loadChildren(ctx, []*systems.System{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSystem writes the updatable columns of s and replaces the child
// collections named by children. Immutable columns (tenant, id, type, owner,
// bucket_name, root_dir, can_exec, is_dtn and the deletion flag) are never
// touched here.
func (st *Store) UpdateSystem(ctx context.Context, s *systems.System, children systems.ChildCollections, rec *systems.UpdateRecord) error {
	row, err := fromSystem(s)
	if err != nil {
		return err
	}

	st.db.Mu.Lock()
	defer st.db.Mu.Unlock()

	tx, err := st.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("systems").
		SetMap(map[string]interface{}{
			"description":           row.Description,
			"host":                  row.Host,
			"effective_user_id":     row.EffectiveUserID,
			"default_authn_method":  row.DefaultAuthnMethod,
			"transfer_methods":      row.TransferMethods,
			"port":                  row.Port,
			"use_proxy":             row.UseProxy,
			"proxy_host":            row.ProxyHost,
			"proxy_port":            row.ProxyPort,
			"dtn_system_id":         row.DtnSystemID,
			"dtn_mount_point":       row.DtnMountPoint,
			"dtn_mount_source_path": row.DtnMountSourcePath,
			"job_working_dir":       row.JobWorkingDir,
			"job_env_variables":     row.JobEnvVariables,
			"job_max_jobs":          row.JobMaxJobs,
			"job_max_jobs_per_user": row.JobMaxJobsPerUser,
			"is_batch":              row.IsBatch,
			"batch_scheduler":       row.BatchScheduler,
			"batch_default_queue":   row.BatchDefaultQueue,
			"tags":                  row.Tags,
			"notes":                 row.Notes,
			"updated":               row.Updated,
		}).
		Where(sq.Eq{"seq_id": s.SeqID}).
		ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return notFound(s.Tenant, s.ID)
	}

	if err := deleteChildren(ctx, tx, s.SeqID, children); err != nil {
		tx.Rollback()
		return err
	}
	if err := insertChildren(ctx, tx, s.SeqID, s, children); err != nil {
		tx.Rollback()
		return err
	}

	if err := insertUpdate(ctx, tx, rec); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// UpdateSystemOwner sets a new owner.
func (st *Store) UpdateSystemOwner(ctx context.Context, tenant, id, newOwner string, rec *systems.UpdateRecord) error {
	_, err := st.setColumn(ctx, tenant, id, "owner", newOwner, rec)
	return err
}

// UpdateSystemEnabled flips the enabled flag, returning the number of rows
// changed (0 when the flag already held the requested value).
func (st *Store) UpdateSystemEnabled(ctx context.Context, tenant, id string, enabled bool, rec *systems.UpdateRecord) (int64, error) {
	return st.setColumn(ctx, tenant, id, "enabled", enabled, rec)
}

// UpdateSystemDeleted flips the soft-deletion flag, returning the number of
// rows changed.
func (st *Store) UpdateSystemDeleted(ctx context.Context, tenant, id string, deleted bool, rec *systems.UpdateRecord) (int64, error) {
	return st.setColumn(ctx, tenant, id, "deleted", deleted, rec)
}

func (st *Store) setColumn(ctx context.Context, tenant, id, column string, value interface{}, rec *systems.UpdateRecord) (int64, error) {
	st.db.Mu.Lock()
	defer st.db.Mu.Unlock()

	tx, err := st.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Update("systems").
		Set(column, value).
		Set("updated", rec.Created.UTC().Format(time.RFC3339Nano)).
		Where(sq.Eq{"tenant": tenant, "id": id}).
		Where(sq.NotEq{column: value}).
		ToSql()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	// a no-op flip changed nothing; recording it would fabricate history
	if n > 0 {
		if err := insertUpdate(ctx, tx, rec); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	return n, tx.Commit()
}

// HardDeleteSystem physically removes the system row; child rows cascade.
// Audit rows are left in place.
func (st *Store) HardDeleteSystem(ctx context.Context, tenant, id string) error {
	st.db.Mu.Lock()
	defer st.db.Mu.Unlock()

	query, args, err := sq.Delete("systems").Where(sq.Eq{"tenant": tenant, "id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = st.db.DB.ExecContext(ctx, query, args...)
	return err
}

// ListSystems returns the tenant's systems matching the filter, restricted to
// the allowed surrogate-id set. The predicate is opaque; it is ANDed into the
// WHERE clause as produced by the search compiler.
func (st *Store) ListSystems(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet, opt systems.FindOptions) ([]*systems.System, error) {
	if !allowed.Unrestricted && len(allowed.IDs) == 0 {
		return []*systems.System{}, nil
	}

	q := sq.Select(systemColumns...).From("systems")
	q = applyFilter(q, tenant, filter, allowed)

	sortBy, ok := sortableColumns[opt.SortBy]
	if !ok {
		sortBy = "id"
	}
	if opt.Descending {
		q = q.OrderBy(sortBy + " DESC")
	} else {
		q = q.OrderBy(sortBy + " ASC")
	}
	if opt.Limit > 0 {
		q = q.Limit(uint64(opt.Limit))
	}
	if opt.Offset > 0 {
		q = q.Offset(uint64(opt.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []systemRow
	if err := st.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]*systems.System, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toSystem()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := st.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSystems counts what ListSystems would return, ignoring pagination.
func (st *Store) CountSystems(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet) (int64, error) {
	if !allowed.Unrestricted && len(allowed.IDs) == 0 {
		return 0, nil
	}

	q := sq.Select("COUNT(1)").From("systems")
	q = applyFilter(q, tenant, filter, allowed)

	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err := st.db.DB.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// AppendUpdate writes a standalone audit record, used by operations whose
// store change happens elsewhere (hard delete) or not at all (permission and
// credential changes).
func (st *Store) AppendUpdate(ctx context.Context, rec *systems.UpdateRecord) error {
	st.db.Mu.Lock()
	defer st.db.Mu.Unlock()
	return insertUpdate(ctx, st.db.DB, rec)
}

func applyFilter(q sq.SelectBuilder, tenant string, filter systems.SystemFilter, allowed systems.IDSet) sq.SelectBuilder {
	q = q.Where(sq.Eq{"tenant": tenant})
	if !filter.IncludeDeleted {
		q = q.Where(sq.Eq{"deleted": false})
	}
	if filter.Predicate != nil {
		q = q.Where(filter.Predicate)
	}
	if !allowed.Unrestricted {
		q = q.Where(sq.Eq{"seq_id": allowed.IDs})
	}
	return q
}

// loadChildren fills the child collections of each system with one query per
// child table.
func (st *Store) loadChildren(ctx context.Context, ss []*systems.System) error {
	if len(ss) == 0 {
		return nil
	}

	byID := make(map[int64]*systems.System, len(ss))
	ids := make([]int64, 0, len(ss))
	for _, s := range ss {
		byID[s.SeqID] = s
		ids = append(ids, s.SeqID)
	}

	{
		query, args, err := sq.Select("seq_id", "system_seq_id", "runtime_type", "version").
			From("job_runtimes").Where(sq.Eq{"system_seq_id": ids}).OrderBy("seq_id").ToSql()
		if err != nil {
			return err
		}
		var rows []runtimeRow
		if err := st.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
			return err
		}
		for _, r := range rows {
			s := byID[r.SystemSeqID]
			s.JobRuntimes = append(s.JobRuntimes, r.toRuntime())
		}
	}

	{
		query, args, err := sq.Select(
			"seq_id", "system_seq_id", "name", "hpc_queue_name", "max_jobs",
			"max_jobs_per_user", "min_node_count", "max_node_count",
			"min_cores_per_node", "max_cores_per_node", "min_memory_mb",
			"max_memory_mb", "min_minutes", "max_minutes").
			From("logical_queues").Where(sq.Eq{"system_seq_id": ids}).OrderBy("seq_id").ToSql()
		if err != nil {
			return err
		}
		var rows []queueRow
		if err := st.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
			return err
		}
		for _, r := range rows {
			s := byID[r.SystemSeqID]
			s.BatchQueues = append(s.BatchQueues, r.toQueue())
		}
	}

	{
		query, args, err := sq.Select("seq_id", "system_seq_id", "category", "name", "datatype", "precedence", "value").
			From("capabilities").Where(sq.Eq{"system_seq_id": ids}).OrderBy("seq_id").ToSql()
		if err != nil {
			return err
		}
		var rows []capabilityRow
		if err := st.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
			return err
		}
		for _, r := range rows {
			s := byID[r.SystemSeqID]
			s.Capabilities = append(s.Capabilities, r.toCapability())
		}
	}

	return nil
}

func insertChildren(ctx context.Context, tx sqlx.ExtContext, seqID int64, s *systems.System, children systems.ChildCollections) error {
	if children.Runtimes && len(s.JobRuntimes) > 0 {
		q := sq.Insert("job_runtimes").Columns("system_seq_id", "runtime_type", "version")
		for _, rt := range s.JobRuntimes {
			r := fromRuntime(seqID, rt)
			q = q.Values(r.SystemSeqID, r.RuntimeType, r.Version)
		}
		if err := execInsert(ctx, tx, q); err != nil {
			return err
		}
	}

	if children.Queues && len(s.BatchQueues) > 0 {
		q := sq.Insert("logical_queues").Columns(
			"system_seq_id", "name", "hpc_queue_name", "max_jobs",
			"max_jobs_per_user", "min_node_count", "max_node_count",
			"min_cores_per_node", "max_cores_per_node", "min_memory_mb",
			"max_memory_mb", "min_minutes", "max_minutes")
		for _, lq := range s.BatchQueues {
			r := fromQueue(seqID, lq)
			q = q.Values(r.SystemSeqID, r.Name, r.HPCQueueName, r.MaxJobs,
				r.MaxJobsPerUser, r.MinNodeCount, r.MaxNodeCount,
				r.MinCoresPerNode, r.MaxCoresPerNode, r.MinMemoryMB,
				r.MaxMemoryMB, r.MinMinutes, r.MaxMinutes)
		}
		if err := execInsert(ctx, tx, q); err != nil {
			return err
		}
	}

	if children.Capabilities && len(s.Capabilities) > 0 {
		q := sq.Insert("capabilities").Columns("system_seq_id", "category", "name", "datatype", "precedence", "value")
		for _, c := range s.Capabilities {
			r := fromCapability(seqID, c)
			q = q.Values(r.SystemSeqID, r.Category, r.Name, r.Datatype, r.Precedence, r.Value)
		}
		if err := execInsert(ctx, tx, q); err != nil {
			return err
		}
	}

	return nil
}

func deleteChildren(ctx context.Context, tx sqlx.ExtContext, seqID int64, children systems.ChildCollections) error {
	tables := map[string]bool{
		"job_runtimes":   children.Runtimes,
		"logical_queues": children.Queues,
		"capabilities":   children.Capabilities,
	}
	for table, replace := range tables {
		if !replace {
			continue
		}
		query, args, err := sq.Delete(table).Where(sq.Eq{"system_seq_id": seqID}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func insertUpdate(ctx context.Context, tx sqlx.ExtContext, rec *systems.UpdateRecord) error {
	if rec == nil {
		return nil
	}

	desc := "{}"
	if len(rec.Description) > 0 {
		desc = string(rec.Description)
	}

	q := sq.Insert("system_updates").
		Columns("tenant", "system_id", "operation", "description", "raw_request", "system_uuid", "created").
		Values(rec.Tenant, rec.SystemID, string(rec.Operation), desc, rec.RawRequest,
			rec.SystemUUID.String(), rec.Created.UTC().Format(time.RFC3339Nano))
	return execInsert(ctx, tx, q)
}

func execInsert(ctx context.Context, tx sqlx.ExtContext, q sq.InsertBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func notFound(tenant, id string) error {
	return &ierrors.Error{
		Code: ierrors.ENotFound,
		Msg:  fmt.Sprintf("system %q not found in tenant %q", id, tenant),
	}
}

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridpath/systems"
)

// Row types mirror the sqlite schema exactly. Mapping between rows and domain
// values is explicit so schema changes never leak into domain types.

type systemRow struct {
	SeqID              int64  `db:"seq_id"`
	Tenant             string `db:"tenant"`
	ID                 string `db:"id"`
	Description        string `db:"description"`
	SystemType         string `db:"system_type"`
	Owner              string `db:"owner"`
	Host               string `db:"host"`
	Enabled            bool   `db:"enabled"`
	EffectiveUserID    string `db:"effective_user_id"`
	DefaultAuthnMethod string `db:"default_authn_method"`
	BucketName         string `db:"bucket_name"`
	RootDir            string `db:"root_dir"`
	TransferMethods    string `db:"transfer_methods"`
	Port               int    `db:"port"`
	UseProxy           bool   `db:"use_proxy"`
	ProxyHost          string `db:"proxy_host"`
	ProxyPort          int    `db:"proxy_port"`
	IsDtn              bool   `db:"is_dtn"`
	DtnSystemID        string `db:"dtn_system_id"`
	DtnMountPoint      string `db:"dtn_mount_point"`
	DtnMountSourcePath string `db:"dtn_mount_source_path"`
	CanExec            bool   `db:"can_exec"`
	JobWorkingDir      string `db:"job_working_dir"`
	JobEnvVariables    string `db:"job_env_variables"`
	JobMaxJobs         int    `db:"job_max_jobs"`
	JobMaxJobsPerUser  int    `db:"job_max_jobs_per_user"`
	IsBatch            bool   `db:"is_batch"`
	BatchScheduler     string `db:"batch_scheduler"`
	BatchDefaultQueue  string `db:"batch_default_queue"`
	Tags               string `db:"tags"`
	Notes              string `db:"notes"`
	Deleted            bool   `db:"deleted"`
	UUID               string `db:"uuid"`
	Created            string `db:"created"`
	Updated            string `db:"updated"`
}

type runtimeRow struct {
	SeqID       int64  `db:"seq_id"`
	SystemSeqID int64  `db:"system_seq_id"`
	RuntimeType string `db:"runtime_type"`
	Version     string `db:"version"`
}

type queueRow struct {
	SeqID           int64  `db:"seq_id"`
	SystemSeqID     int64  `db:"system_seq_id"`
	Name            string `db:"name"`
	HPCQueueName    string `db:"hpc_queue_name"`
	MaxJobs         int    `db:"max_jobs"`
	MaxJobsPerUser  int    `db:"max_jobs_per_user"`
	MinNodeCount    int    `db:"min_node_count"`
	MaxNodeCount    int    `db:"max_node_count"`
	MinCoresPerNode int    `db:"min_cores_per_node"`
	MaxCoresPerNode int    `db:"max_cores_per_node"`
	MinMemoryMB     int    `db:"min_memory_mb"`
	MaxMemoryMB     int    `db:"max_memory_mb"`
	MinMinutes      int    `db:"min_minutes"`
	MaxMinutes      int    `db:"max_minutes"`
}

type capabilityRow struct {
	SeqID       int64  `db:"seq_id"`
	SystemSeqID int64  `db:"system_seq_id"`
	Category    string `db:"category"`
	Name        string `db:"name"`
	Datatype    string `db:"datatype"`
	Precedence  int    `db:"precedence"`
	Value       string `db:"value"`
}

func fromSystem(s *systems.System) (*systemRow, error) {
	transferMethods, err := json.Marshal(orEmptySlice(s.TransferMethods))
	if err != nil {
		return nil, err
	}
	envVariables, err := json.Marshal(orEmptySlice(s.JobEnvVariables))
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(orEmptySlice(s.Tags))
	if err != nil {
		return nil, err
	}

	notes := "{}"
	if len(s.Notes) > 0 {
		notes = string(s.Notes)
	}

	return &systemRow{
		SeqID:              s.SeqID,
		Tenant:             s.Tenant,
		ID:                 s.ID,
		Description:        s.Description,
		SystemType:         string(s.Type),
		Owner:              s.Owner,
		Host:               s.Host,
		Enabled:            s.Enabled,
		EffectiveUserID:    s.EffectiveUserID,
		DefaultAuthnMethod: string(s.DefaultAuthnMethod),
		BucketName:         s.BucketName,
		RootDir:            s.RootDir,
		TransferMethods:    string(transferMethods),
		Port:               s.Port,
		UseProxy:           s.UseProxy,
		ProxyHost:          s.ProxyHost,
		ProxyPort:          s.ProxyPort,
		IsDtn:              s.IsDtn,
		DtnSystemID:        s.DtnSystemID,
		DtnMountPoint:      s.DtnMountPoint,
		DtnMountSourcePath: s.DtnMountSourcePath,
		CanExec:            s.CanExec,
		JobWorkingDir:      s.JobWorkingDir,
		JobEnvVariables:    string(envVariables),
		JobMaxJobs:         s.JobMaxJobs,
		JobMaxJobsPerUser:  s.JobMaxJobsPerUser,
		IsBatch:            s.IsBatch,
		BatchScheduler:     string(s.BatchScheduler),
		BatchDefaultQueue:  s.BatchDefaultQueue,
		Tags:               string(tags),
		Notes:              notes,
		Deleted:            s.Deleted,
		UUID:               s.UUID.String(),
		Created:            s.Created.UTC().Format(time.RFC3339Nano),
		Updated:            s.Updated.UTC().Format(time.RFC3339Nano),
	}, nil
}

func (r *systemRow) toSystem() (*systems.System, error) {
	var transferMethods []systems.TransferMethod
	if err := json.Unmarshal([]byte(r.TransferMethods), &transferMethods); err != nil {
		return nil, fmt.Errorf("bad transfer_methods for system %s/%s: %w", r.Tenant, r.ID, err)
	}
	var envVariables []systems.KeyValuePair
	if err := json.Unmarshal([]byte(r.JobEnvVariables), &envVariables); err != nil {
		return nil, fmt.Errorf("bad job_env_variables for system %s/%s: %w", r.Tenant, r.ID, err)
	}
	var tags []string
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return nil, fmt.Errorf("bad tags for system %s/%s: %w", r.Tenant, r.ID, err)
	}

	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return nil, fmt.Errorf("bad uuid for system %s/%s: %w", r.Tenant, r.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, r.Created)
	if err != nil {
		return nil, fmt.Errorf("bad created timestamp for system %s/%s: %w", r.Tenant, r.ID, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, r.Updated)
	if err != nil {
		return nil, fmt.Errorf("bad updated timestamp for system %s/%s: %w", r.Tenant, r.ID, err)
	}

	return &systems.System{
		SeqID:              r.SeqID,
		Tenant:             r.Tenant,
		ID:                 r.ID,
		Description:        r.Description,
		Type:               systems.SystemType(r.SystemType),
		Owner:              r.Owner,
		Host:               r.Host,
		Enabled:            r.Enabled,
		EffectiveUserID:    r.EffectiveUserID,
		DefaultAuthnMethod: systems.AuthnMethod(r.DefaultAuthnMethod),
		BucketName:         r.BucketName,
		RootDir:            r.RootDir,
		TransferMethods:    transferMethods,
		Port:               r.Port,
		UseProxy:           r.UseProxy,
		ProxyHost:          r.ProxyHost,
		ProxyPort:          r.ProxyPort,
		IsDtn:              r.IsDtn,
		DtnSystemID:        r.DtnSystemID,
		DtnMountPoint:      r.DtnMountPoint,
		DtnMountSourcePath: r.DtnMountSourcePath,
		CanExec:            r.CanExec,
		JobWorkingDir:      r.JobWorkingDir,
		JobEnvVariables:    envVariables,
		JobMaxJobs:         r.JobMaxJobs,
		JobMaxJobsPerUser:  r.JobMaxJobsPerUser,
		IsBatch:            r.IsBatch,
		BatchScheduler:     systems.SchedulerType(r.BatchScheduler),
		BatchDefaultQueue:  r.BatchDefaultQueue,
		Tags:               tags,
		Notes:              json.RawMessage(r.Notes),
		Deleted:            r.Deleted,
		UUID:               id,
		Created:            created,
		Updated:            updated,
	}, nil
}

func fromRuntime(systemSeqID int64, rt systems.JobRuntime) runtimeRow {
	return runtimeRow{
		SystemSeqID: systemSeqID,
		RuntimeType: string(rt.Type),
		Version:     rt.Version,
	}
}

func (r runtimeRow) toRuntime() systems.JobRuntime {
	return systems.JobRuntime{
		Type:    systems.RuntimeType(r.RuntimeType),
		Version: r.Version,
	}
}

func fromQueue(systemSeqID int64, q systems.LogicalQueue) queueRow {
	return queueRow{
		SystemSeqID:     systemSeqID,
		Name:            q.Name,
		HPCQueueName:    q.HPCQueueName,
		MaxJobs:         q.MaxJobs,
		MaxJobsPerUser:  q.MaxJobsPerUser,
		MinNodeCount:    q.MinNodeCount,
		MaxNodeCount:    q.MaxNodeCount,
		MinCoresPerNode: q.MinCoresPerNode,
		MaxCoresPerNode: q.MaxCoresPerNode,
		MinMemoryMB:     q.MinMemoryMB,
		MaxMemoryMB:     q.MaxMemoryMB,
		MinMinutes:      q.MinMinutes,
		MaxMinutes:      q.MaxMinutes,
	}
}

func (r queueRow) toQueue() systems.LogicalQueue {
	return systems.LogicalQueue{
		Name:            r.Name,
		HPCQueueName:    r.HPCQueueName,
		MaxJobs:         r.MaxJobs,
		MaxJobsPerUser:  r.MaxJobsPerUser,
		MinNodeCount:    r.MinNodeCount,
		MaxNodeCount:    r.MaxNodeCount,
		MinCoresPerNode: r.MinCoresPerNode,
		MaxCoresPerNode: r.MaxCoresPerNode,
		MinMemoryMB:     r.MinMemoryMB,
		MaxMemoryMB:     r.MaxMemoryMB,
		MinMinutes:      r.MinMinutes,
		MaxMinutes:      r.MaxMinutes,
	}
}

func fromCapability(systemSeqID int64, c systems.Capability) capabilityRow {
	return capabilityRow{
		SystemSeqID: systemSeqID,
		Category:    c.Category,
		Name:        c.Name,
		Datatype:    c.Datatype,
		Precedence:  c.Precedence,
		Value:       c.Value,
	}
}

func (r capabilityRow) toCapability() systems.Capability {
	return systems.Capability{
		Category:   r.Category,
		Name:       r.Name,
		Datatype:   r.Datatype,
		Precedence: r.Precedence,
		Value:      r.Value,
	}
}

// orEmptySlice keeps JSON columns as "[]" instead of "null" for nil slices.
func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

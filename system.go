package systems

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// SystemType distinguishes execution hosts from pure storage endpoints.
type SystemType string

const (
	SystemTypeLinux       SystemType = "LINUX"
	SystemTypeObjectStore SystemType = "OBJECT_STORE"
)

// AuthnMethod names the kind of credential used to reach a system.
type AuthnMethod string

const (
	AuthnMethodPassword  AuthnMethod = "PASSWORD"
	AuthnMethodPKIKeys   AuthnMethod = "PKI_KEYS"
	AuthnMethodAccessKey AuthnMethod = "ACCESS_KEY"
	AuthnMethodCert      AuthnMethod = "CERT"
)

// TransferMethod is a supported file transfer mechanism.
type TransferMethod string

const (
	TransferMethodSFTP TransferMethod = "SFTP"
	TransferMethodS3   TransferMethod = "S3"
)

// SchedulerType is the batch scheduler running on an execution system.
type SchedulerType string

const (
	SchedulerTypeSlurm  SchedulerType = "SLURM"
	SchedulerTypePBS    SchedulerType = "PBS"
	SchedulerTypeCondor SchedulerType = "CONDOR"
)

// RuntimeType is a job runtime available on an execution system.
type RuntimeType string

const (
	RuntimeTypeDocker      RuntimeType = "DOCKER"
	RuntimeTypeSingularity RuntimeType = "SINGULARITY"
)

// MaxJobsUnlimited is the sentinel for no job-count cap.
const MaxJobsUnlimited = -1

// JobRuntime is one runtime supported by an execution system.
type JobRuntime struct {
	Type    RuntimeType `json:"runtimeType"`
	Version string      `json:"version,omitempty"`
}

// LogicalQueue maps a scheduler queue plus the registry-side limits applied to it.
type LogicalQueue struct {
	Name            string `json:"name"`
	HPCQueueName    string `json:"hpcQueueName"`
	MaxJobs         int    `json:"maxJobs"`
	MaxJobsPerUser  int    `json:"maxJobsPerUser"`
	MinNodeCount    int    `json:"minNodeCount"`
	MaxNodeCount    int    `json:"maxNodeCount"`
	MinCoresPerNode int    `json:"minCoresPerNode"`
	MaxCoresPerNode int    `json:"maxCoresPerNode"`
	MinMemoryMB     int    `json:"minMemoryMB"`
	MaxMemoryMB     int    `json:"maxMemoryMB"`
	MinMinutes      int    `json:"minMinutes"`
	MaxMinutes      int    `json:"maxMinutes"`
}

// Capability advertises a feature of a system for job matching.
type Capability struct {
	Category   string `json:"category"`
	Name       string `json:"name"`
	Datatype   string `json:"datatype,omitempty"`
	Precedence int    `json:"precedence,omitempty"`
	Value      string `json:"value,omitempty"`
}

// KeyValuePair is an environment variable passed to jobs on a system.
type KeyValuePair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// System is a registered remote compute or storage endpoint. The pair
// (Tenant, ID) is unique for the life of the tenant; soft deletion does not
// free the ID for reuse. SeqID is the store-assigned surrogate key used to
// derive delegate artifact names.
type System struct {
	SeqID              int64           `json:"-"`
	Tenant             string          `json:"tenant"`
	ID                 string          `json:"id"`
	Description        string          `json:"description,omitempty"`
	Type               SystemType      `json:"systemType"`
	Owner              string          `json:"owner"`
	Host               string          `json:"host"`
	Enabled            bool            `json:"enabled"`
	EffectiveUserID    string          `json:"effectiveUserId"`
	DefaultAuthnMethod AuthnMethod     `json:"defaultAuthnMethod"`
	BucketName         string          `json:"bucketName,omitempty"`
	RootDir            string          `json:"rootDir,omitempty"`
	TransferMethods    []TransferMethod `json:"transferMethods,omitempty"`
	Port               int             `json:"port,omitempty"`
	UseProxy           bool            `json:"useProxy,omitempty"`
	ProxyHost          string          `json:"proxyHost,omitempty"`
	ProxyPort          int             `json:"proxyPort,omitempty"`

	IsDtn              bool   `json:"isDtn,omitempty"`
	DtnSystemID        string `json:"dtnSystemId,omitempty"`
	DtnMountPoint      string `json:"dtnMountPoint,omitempty"`
	DtnMountSourcePath string `json:"dtnMountSourcePath,omitempty"`

	CanExec           bool           `json:"canExec"`
	JobRuntimes       []JobRuntime   `json:"jobRuntimes,omitempty"`
	JobWorkingDir     string         `json:"jobWorkingDir,omitempty"`
	JobEnvVariables   []KeyValuePair `json:"jobEnvVariables,omitempty"`
	JobMaxJobs        int            `json:"jobMaxJobs,omitempty"`
	JobMaxJobsPerUser int            `json:"jobMaxJobsPerUser,omitempty"`

	IsBatch           bool           `json:"jobIsBatch,omitempty"`
	BatchScheduler    SchedulerType  `json:"batchScheduler,omitempty"`
	BatchQueues       []LogicalQueue `json:"batchLogicalQueues,omitempty"`
	BatchDefaultQueue string         `json:"batchDefaultLogicalQueue,omitempty"`

	Capabilities []Capability    `json:"jobCapabilities,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Notes        json.RawMessage `json:"notes,omitempty"`

	Deleted bool      `json:"deleted"`
	UUID    uuid.UUID `json:"uuid"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// AuthnCredential is populated on reads that request credentials. It is
	// never persisted by the registry.
	AuthnCredential *Credential `json:"authnCredential,omitempty"`
}

// SupportsTransferMethod reports whether m is among the system's transfer methods.
func (s *System) SupportsTransferMethod(m TransferMethod) bool {
	for _, tm := range s.TransferMethods {
		if tm == m {
			return true
		}
	}
	return false
}

// HasQueue reports whether the named logical queue is defined on the system.
func (s *System) HasQueue(name string) bool {
	for _, q := range s.BatchQueues {
		if q.Name == name {
			return true
		}
	}
	return false
}

// Validate checks the cross-field invariants of a fully defaulted system and
// collects every violation rather than stopping at the first. hasCredential
// indicates a credential accompanied the definition at create time. A nil
// result means the definition is structurally sound.
func (s *System) Validate(hasCredential bool) error {
	var result *multierror.Error

	if s.ID == "" {
		result = multierror.Append(result, fmt.Errorf("attribute id must be set"))
	}
	if s.Type == "" {
		result = multierror.Append(result, fmt.Errorf("attribute systemType must be set"))
	}
	if s.Host == "" {
		result = multierror.Append(result, fmt.Errorf("attribute host must be set"))
	}
	if s.DefaultAuthnMethod == "" {
		result = multierror.Append(result, fmt.Errorf("attribute defaultAuthnMethod must be set"))
	}

	if s.DefaultAuthnMethod == AuthnMethodCert &&
		IsTemplate(s.EffectiveUserID) && s.EffectiveUserID != OwnerTemplate {
		result = multierror.Append(result, fmt.Errorf(
			"defaultAuthnMethod CERT requires effectiveUserId to be a literal user or %s", OwnerTemplate))
	}

	if s.Type == SystemTypeObjectStore {
		if s.BucketName == "" {
			result = multierror.Append(result, fmt.Errorf("systemType OBJECT_STORE requires bucketName"))
		}
		if s.CanExec {
			result = multierror.Append(result, fmt.Errorf("systemType OBJECT_STORE does not allow canExec"))
		}
		if s.IsDtn {
			result = multierror.Append(result, fmt.Errorf("systemType OBJECT_STORE does not allow isDtn"))
		}
	}

	if s.SupportsTransferMethod(TransferMethodS3) && s.BucketName == "" {
		result = multierror.Append(result, fmt.Errorf("transfer method S3 requires bucketName"))
	}

	if hasCredential && s.EffectiveUserID == CallerTemplate {
		result = multierror.Append(result, fmt.Errorf(
			"credential may not be provided when effectiveUserId is %s", CallerTemplate))
	}

	if s.CanExec {
		if s.JobWorkingDir == "" {
			result = multierror.Append(result, fmt.Errorf("canExec requires jobWorkingDir"))
		}
		if len(s.JobRuntimes) == 0 {
			result = multierror.Append(result, fmt.Errorf("canExec requires at least one job runtime"))
		}
	}

	if s.IsDtn {
		if s.CanExec {
			result = multierror.Append(result, fmt.Errorf("isDtn does not allow canExec"))
		}
		if s.DtnSystemID != "" || s.DtnMountPoint != "" || s.DtnMountSourcePath != "" {
			result = multierror.Append(result, fmt.Errorf("isDtn does not allow dtn usage attributes"))
		}
		if s.JobWorkingDir != "" || len(s.JobRuntimes) > 0 || s.IsBatch {
			result = multierror.Append(result, fmt.Errorf("isDtn does not allow job or batch attributes"))
		}
	}

	if s.IsBatch {
		if s.BatchScheduler == "" {
			result = multierror.Append(result, fmt.Errorf("jobIsBatch requires batchScheduler"))
		}
		if len(s.BatchQueues) == 0 {
			result = multierror.Append(result, fmt.Errorf("jobIsBatch requires at least one logical queue"))
		} else if s.BatchDefaultQueue == "" || !s.HasQueue(s.BatchDefaultQueue) {
			result = multierror.Append(result, fmt.Errorf(
				"batchDefaultLogicalQueue %q must be one of the defined logical queues", s.BatchDefaultQueue))
		}
	}

	return result.ErrorOrNil()
}

// SystemUpdate is a partial update to a system. Nil fields are left unchanged.
// Child collections are replaced only when non-nil.
type SystemUpdate struct {
	Description     *string          `json:"description,omitempty"`
	Host            *string          `json:"host,omitempty"`
	EffectiveUserID *string          `json:"effectiveUserId,omitempty"`
	DefaultAuthnMethod *AuthnMethod  `json:"defaultAuthnMethod,omitempty"`
	TransferMethods []TransferMethod `json:"transferMethods,omitempty"`
	Port            *int             `json:"port,omitempty"`
	UseProxy        *bool            `json:"useProxy,omitempty"`
	ProxyHost       *string          `json:"proxyHost,omitempty"`
	ProxyPort       *int             `json:"proxyPort,omitempty"`
	DtnSystemID     *string          `json:"dtnSystemId,omitempty"`
	DtnMountPoint   *string          `json:"dtnMountPoint,omitempty"`
	DtnMountSourcePath *string       `json:"dtnMountSourcePath,omitempty"`
	JobRuntimes     []JobRuntime     `json:"jobRuntimes,omitempty"`
	JobWorkingDir   *string          `json:"jobWorkingDir,omitempty"`
	JobEnvVariables []KeyValuePair   `json:"jobEnvVariables,omitempty"`
	JobMaxJobs      *int             `json:"jobMaxJobs,omitempty"`
	JobMaxJobsPerUser *int           `json:"jobMaxJobsPerUser,omitempty"`
	IsBatch         *bool            `json:"jobIsBatch,omitempty"`
	BatchScheduler  *SchedulerType   `json:"batchScheduler,omitempty"`
	BatchQueues     []LogicalQueue   `json:"batchLogicalQueues,omitempty"`
	BatchDefaultQueue *string        `json:"batchDefaultLogicalQueue,omitempty"`
	Capabilities    []Capability     `json:"jobCapabilities,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Notes           json.RawMessage  `json:"notes,omitempty"`
}

// Apply merges the update onto a copy of s and returns the copy. Immutable
// attributes (tenant, id, type, owner, bucketName, rootDir, canExec, isDtn)
// are never touched.
func (u SystemUpdate) Apply(s *System) *System {
	merged := *s

	if u.Description != nil {
		merged.Description = *u.Description
	}
	if u.Host != nil {
		merged.Host = *u.Host
	}
	if u.EffectiveUserID != nil {
		merged.EffectiveUserID = *u.EffectiveUserID
	}
	if u.DefaultAuthnMethod != nil {
		merged.DefaultAuthnMethod = *u.DefaultAuthnMethod
	}
	if u.TransferMethods != nil {
		merged.TransferMethods = u.TransferMethods
	}
	if u.Port != nil {
		merged.Port = *u.Port
	}
	if u.UseProxy != nil {
		merged.UseProxy = *u.UseProxy
	}
	if u.ProxyHost != nil {
		merged.ProxyHost = *u.ProxyHost
	}
	if u.ProxyPort != nil {
		merged.ProxyPort = *u.ProxyPort
	}
	if u.DtnSystemID != nil {
		merged.DtnSystemID = *u.DtnSystemID
	}
	if u.DtnMountPoint != nil {
		merged.DtnMountPoint = *u.DtnMountPoint
	}
	if u.DtnMountSourcePath != nil {
		merged.DtnMountSourcePath = *u.DtnMountSourcePath
	}
	if u.JobRuntimes != nil {
		merged.JobRuntimes = u.JobRuntimes
	}
	if u.JobWorkingDir != nil {
		merged.JobWorkingDir = *u.JobWorkingDir
	}
	if u.JobEnvVariables != nil {
		merged.JobEnvVariables = u.JobEnvVariables
	}
	if u.JobMaxJobs != nil {
		merged.JobMaxJobs = *u.JobMaxJobs
	}
	if u.JobMaxJobsPerUser != nil {
		merged.JobMaxJobsPerUser = *u.JobMaxJobsPerUser
	}
	if u.IsBatch != nil {
		merged.IsBatch = *u.IsBatch
	}
	if u.BatchScheduler != nil {
		merged.BatchScheduler = *u.BatchScheduler
	}
	if u.BatchQueues != nil {
		merged.BatchQueues = u.BatchQueues
	}
	if u.BatchDefaultQueue != nil {
		merged.BatchDefaultQueue = *u.BatchDefaultQueue
	}
	if u.Capabilities != nil {
		merged.Capabilities = u.Capabilities
	}
	if u.Tags != nil {
		merged.Tags = u.Tags
	}
	if u.Notes != nil {
		merged.Notes = u.Notes
	}

	return &merged
}

// ChildCollections flags which child tables an update replaces.
type ChildCollections struct {
	Runtimes     bool
	Queues       bool
	Capabilities bool
}

// AllChildCollections replaces every child table, as a full put does.
func AllChildCollections() ChildCollections {
	return ChildCollections{Runtimes: true, Queues: true, Capabilities: true}
}

// Children reports which child collections are present in the update.
func (u SystemUpdate) Children() ChildCollections {
	return ChildCollections{
		Runtimes:     u.JobRuntimes != nil,
		Queues:       u.BatchQueues != nil,
		Capabilities: u.Capabilities != nil,
	}
}

// SystemFilter narrows a listing. Predicate is produced by the search-string
// compiler and treated as opaque; it must render to a SQL condition over the
// systems table.
type SystemFilter struct {
	Predicate      Predicate
	IncludeDeleted bool
}

// Predicate is an opaque SQL condition, the contract squirrel expressions satisfy.
type Predicate interface {
	ToSql() (string, []interface{}, error)
}

// FindOptions control pagination and ordering of listings.
type FindOptions struct {
	Limit      int
	Offset     int
	SortBy     string
	Descending bool
}

// SystemStore is the relational store for system definitions. Mutating calls
// that accept an UpdateRecord persist it in the same transaction as the change.
type SystemStore interface {
	CreateSystem(ctx context.Context, s *System, rec *UpdateRecord) (int64, error)
	SystemExists(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error)
	GetSystem(ctx context.Context, tenant, id string, includeDeleted bool) (*System, error)
	UpdateSystem(ctx context.Context, s *System, children ChildCollections, rec *UpdateRecord) error
	UpdateSystemOwner(ctx context.Context, tenant, id, newOwner string, rec *UpdateRecord) error
	UpdateSystemEnabled(ctx context.Context, tenant, id string, enabled bool, rec *UpdateRecord) (int64, error)
	UpdateSystemDeleted(ctx context.Context, tenant, id string, deleted bool, rec *UpdateRecord) (int64, error)
	HardDeleteSystem(ctx context.Context, tenant, id string) error
	ListSystems(ctx context.Context, tenant string, filter SystemFilter, allowed IDSet, opt FindOptions) ([]*System, error)
	CountSystems(ctx context.Context, tenant string, filter SystemFilter, allowed IDSet) (int64, error)
	AppendUpdate(ctx context.Context, rec *UpdateRecord) error
}

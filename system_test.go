package systems

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func validLinuxSystem() *System {
	return &System{
		Tenant:             "dev",
		ID:                 "test-linux",
		Type:               SystemTypeLinux,
		Owner:              "owner1",
		Host:               "compute.example.org",
		EffectiveUserID:    OwnerTemplate,
		DefaultAuthnMethod: AuthnMethodPKIKeys,
		RootDir:            "/home/owner1",
	}
}

func TestSystemValidate(t *testing.T) {
	t.Run("valid minimal system", func(t *testing.T) {
		require.NoError(t, validLinuxSystem().Validate(false))
	})

	t.Run("collects every violation", func(t *testing.T) {
		s := &System{Tenant: "dev"}
		err := s.Validate(false)
		require.Error(t, err)

		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)
		// id, systemType, host and defaultAuthnMethod all missing
		require.Len(t, merr.Errors, 4)
	})

	t.Run("cert authn rejects dynamic templates", func(t *testing.T) {
		s := validLinuxSystem()
		s.DefaultAuthnMethod = AuthnMethodCert

		s.EffectiveUserID = OwnerTemplate
		require.NoError(t, s.Validate(false))

		s.EffectiveUserID = "svcacct"
		require.NoError(t, s.Validate(false))

		s.EffectiveUserID = CallerTemplate
		require.Error(t, s.Validate(false))

		s.EffectiveUserID = TenantTemplate
		require.Error(t, s.Validate(false))
	})

	t.Run("object store constraints", func(t *testing.T) {
		s := validLinuxSystem()
		s.Type = SystemTypeObjectStore
		require.ErrorContains(t, s.Validate(false), "bucketName")

		s.BucketName = "data-bucket"
		require.NoError(t, s.Validate(false))

		s.CanExec = true
		s.JobWorkingDir = "/tmp"
		s.JobRuntimes = []JobRuntime{{Type: RuntimeTypeDocker}}
		require.ErrorContains(t, s.Validate(false), "canExec")

		s.CanExec = false
		s.JobWorkingDir = ""
		s.JobRuntimes = nil
		s.IsDtn = true
		require.ErrorContains(t, s.Validate(false), "isDtn")
	})

	t.Run("s3 transfer requires bucket", func(t *testing.T) {
		s := validLinuxSystem()
		s.TransferMethods = []TransferMethod{TransferMethodSFTP, TransferMethodS3}
		require.ErrorContains(t, s.Validate(false), "bucketName")

		s.BucketName = "data-bucket"
		require.NoError(t, s.Validate(false))
	})

	t.Run("credential with dynamic effective user", func(t *testing.T) {
		s := validLinuxSystem()
		s.EffectiveUserID = CallerTemplate
		require.NoError(t, s.Validate(false))
		require.Error(t, s.Validate(true))
	})

	t.Run("exec requirements", func(t *testing.T) {
		s := validLinuxSystem()
		s.CanExec = true
		err := s.Validate(false)
		require.ErrorContains(t, err, "jobWorkingDir")
		require.ErrorContains(t, err, "job runtime")

		s.JobWorkingDir = "/scratch/${owner}"
		s.JobRuntimes = []JobRuntime{{Type: RuntimeTypeSingularity, Version: "3.8"}}
		require.NoError(t, s.Validate(false))
	})

	t.Run("dtn exclusions", func(t *testing.T) {
		s := validLinuxSystem()
		s.IsDtn = true
		require.NoError(t, s.Validate(false))

		s.DtnSystemID = "other"
		require.ErrorContains(t, s.Validate(false), "dtn usage")
		s.DtnSystemID = ""

		s.IsBatch = true
		s.BatchScheduler = SchedulerTypeSlurm
		s.BatchQueues = []LogicalQueue{{Name: "normal", HPCQueueName: "normal"}}
		s.BatchDefaultQueue = "normal"
		require.ErrorContains(t, s.Validate(false), "job or batch")
	})

	t.Run("batch requirements", func(t *testing.T) {
		s := validLinuxSystem()
		s.CanExec = true
		s.JobWorkingDir = "/scratch"
		s.JobRuntimes = []JobRuntime{{Type: RuntimeTypeDocker}}
		s.IsBatch = true

		err := s.Validate(false)
		require.ErrorContains(t, err, "batchScheduler")
		require.ErrorContains(t, err, "logical queue")

		s.BatchScheduler = SchedulerTypeSlurm
		s.BatchQueues = []LogicalQueue{{Name: "debug", HPCQueueName: "debug"}}
		s.BatchDefaultQueue = "normal"
		require.ErrorContains(t, s.Validate(false), "batchDefaultLogicalQueue")

		s.BatchDefaultQueue = "debug"
		require.NoError(t, s.Validate(false))
	})
}

func TestSystemUpdateApply(t *testing.T) {
	orig := validLinuxSystem()
	orig.SeqID = 42
	orig.Port = 22
	orig.Tags = []string{"prod"}

	host := "new-host.example.org"
	port := 2222
	desc := "updated"
	upd := SystemUpdate{
		Host:        &host,
		Port:        &port,
		Description: &desc,
		Tags:        []string{"staging"},
	}

	merged := upd.Apply(orig)

	require.Equal(t, "new-host.example.org", merged.Host)
	require.Equal(t, 2222, merged.Port)
	require.Equal(t, "updated", merged.Description)
	require.Equal(t, []string{"staging"}, merged.Tags)

	// immutables and unset fields untouched
	require.Equal(t, int64(42), merged.SeqID)
	require.Equal(t, "test-linux", merged.ID)
	require.Equal(t, "owner1", merged.Owner)
	require.Equal(t, OwnerTemplate, merged.EffectiveUserID)

	// the original is not mutated
	require.Equal(t, "compute.example.org", orig.Host)
	require.Equal(t, []string{"prod"}, orig.Tags)
}

func TestSystemUpdateChildren(t *testing.T) {
	require.Equal(t, ChildCollections{}, SystemUpdate{}.Children())

	upd := SystemUpdate{
		JobRuntimes: []JobRuntime{{Type: RuntimeTypeDocker}},
		BatchQueues: []LogicalQueue{},
	}
	require.Equal(t, ChildCollections{Runtimes: true, Queues: true}, upd.Children())

	require.Equal(t, ChildCollections{Runtimes: true, Queues: true, Capabilities: true}, AllChildCollections())
}

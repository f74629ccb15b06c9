package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/authorizer"
	ierrors "github.com/gridpath/systems/kit/errors"
)

// CreateSystem registers a new system. The store row and child collections
// commit in one local transaction; the delegate artifacts (read role, owner
// grants, optional credential) follow as saga steps and are fully compensated
// if any of them fails, so callers observe either a working system or none at
// all.
func (s *Service) CreateSystem(ctx context.Context, caller systems.CallerIdentity, req systems.CreateSystemRequest) (int64, error) {
	if req.System == nil {
		return 0, invalidf("system definition is required")
	}

	// work on a copy so a failed create never leaves defaults behind in the
	// caller's value
	sys := *req.System

	if missing := missingRequiredFields(&sys); len(missing) > 0 {
		return 0, invalidf("required attributes missing: %s", strings.Join(missing, ", "))
	}

	exists, err := s.store.SystemExists(ctx, sys.Tenant, sys.ID, true)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, &ierrors.Error{
			Code: ierrors.EConflict,
			Msg:  "system \"" + sys.ID + "\" already exists in tenant \"" + sys.Tenant + "\"",
		}
	}

	apiUser := caller.EffectiveUser()

	// defaults
	if sys.Owner == "" || systems.IsTemplate(sys.Owner) {
		sys.Owner = apiUser
	}
	if sys.EffectiveUserID == "" {
		sys.EffectiveUserID = systems.CallerTemplate
	}
	if sys.Tags == nil {
		sys.Tags = []string{}
	}
	if len(sys.Notes) == 0 {
		sys.Notes = []byte("{}")
	}
	if sys.JobMaxJobs == 0 {
		sys.JobMaxJobs = systems.MaxJobsUnlimited
	}
	if sys.JobMaxJobsPerUser == 0 {
		sys.JobMaxJobsPerUser = systems.MaxJobsUnlimited
	}
	sys.Enabled = true
	sys.Deleted = false
	sys.UUID = uuid.New()
	now := s.now()
	sys.Created = now
	sys.Updated = now

	// path-like attributes are stored fully resolved
	sys.BucketName = systems.ResolveVars(sys.BucketName, sys.Owner, apiUser, sys.Tenant)
	sys.RootDir = systems.ResolveVars(sys.RootDir, sys.Owner, apiUser, sys.Tenant)
	sys.JobWorkingDir = systems.ResolveVars(sys.JobWorkingDir, sys.Owner, apiUser, sys.Tenant)

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:       systems.OpCreate,
		Tenant:   sys.Tenant,
		SystemID: sys.ID,
		Owner:    sys.Owner,
	}); err != nil {
		return 0, err
	}

	hasCred := !req.Credential.IsEmpty()
	if err := sys.Validate(hasCred); err != nil {
		return 0, &ierrors.Error{
			Code: ierrors.EInvalidState,
			Msg:  "system definition is invalid",
			Err:  err,
		}
	}

	rec := s.updateRecord(&sys, systems.OpCreate, struct {
		System     *systems.System     `json:"system"`
		Credential *systems.Credential `json:"credential,omitempty"`
	}{&sys, req.Credential.Redacted()}, req.RawRequest)

	tenant := sys.Tenant
	sg := newSaga(s.log, "createSystem")

	sg.add("persist system",
		func(ctx context.Context) error {
			_, err := s.store.CreateSystem(ctx, &sys, rec)
			return err
		},
		func(ctx context.Context) error {
			return s.store.HardDeleteSystem(ctx, tenant, sys.ID)
		})

	// one delegate call per step: a failed call must never strand the calls
	// that preceded it in the same step
	sg.add("create read role",
		func(ctx context.Context) error {
			role := systems.ReadRoleName(sys.SeqID)
			return delegateErr("service.CreateSystem", s.security.CreateRole(ctx, tenant, role, "READ role for system "+sys.ID))
		},
		func(ctx context.Context) error {
			return s.security.DeleteRole(ctx, tenant, systems.ReadRoleName(sys.SeqID))
		})

	sg.add("grant read role permission",
		func(ctx context.Context) error {
			readSpec := systems.PermSpec(tenant, systems.PermissionRead, sys.ID)
			return delegateErr("service.CreateSystem",
				s.security.GrantRolePermission(ctx, tenant, systems.ReadRoleName(sys.SeqID), readSpec))
		},
		nil) // deleting the role drops its permissions

	fullSpec := systems.FullPermSpec(tenant, sys.ID)
	sg.add("grant owner permissions",
		func(ctx context.Context) error {
			return delegateErr("service.CreateSystem", s.security.GrantPermission(ctx, tenant, sys.Owner, fullSpec))
		},
		func(ctx context.Context) error {
			return s.security.RevokePermission(ctx, tenant, sys.Owner, fullSpec)
		})

	sg.add("grant owner read role",
		func(ctx context.Context) error {
			return delegateErr("service.CreateSystem", s.security.GrantRole(ctx, tenant, sys.Owner, systems.ReadRoleName(sys.SeqID)))
		},
		func(ctx context.Context) error {
			return s.security.RevokeRole(ctx, tenant, sys.Owner, systems.ReadRoleName(sys.SeqID))
		})

	if !systems.IsTemplate(sys.EffectiveUserID) && sys.EffectiveUserID != sys.Owner {
		staticUser := sys.EffectiveUserID
		sg.add("grant effective user permissions",
			func(ctx context.Context) error {
				return delegateErr("service.CreateSystem", s.security.GrantPermission(ctx, tenant, staticUser, fullSpec))
			},
			func(ctx context.Context) error {
				return s.security.RevokePermission(ctx, tenant, staticUser, fullSpec)
			})
		sg.add("grant effective user read role",
			func(ctx context.Context) error {
				return delegateErr("service.CreateSystem", s.security.GrantRole(ctx, tenant, staticUser, systems.ReadRoleName(sys.SeqID)))
			},
			func(ctx context.Context) error {
				return s.security.RevokeRole(ctx, tenant, staticUser, systems.ReadRoleName(sys.SeqID))
			})
	}

	if hasCred && sys.EffectiveUserID != systems.CallerTemplate {
		accessUser := systems.ResolveEffectiveUser(sys.EffectiveUserID, sys.Owner, apiUser)
		sg.add("store credential",
			func(ctx context.Context) error {
				return delegateErr("service.CreateSystem",
					s.security.WriteSecret(ctx, tenant, sys.ID, accessUser, sys.DefaultAuthnMethod, req.Credential))
			},
			func(ctx context.Context) error {
				return s.security.DeleteSecret(ctx, tenant, sys.ID, accessUser)
			})
	}

	if err := sg.run(ctx); err != nil {
		return 0, err
	}

	s.log.Info("system created", zapTenant(tenant), zapSystem(sys.ID), zapSeqID(sys.SeqID))

	return sys.SeqID, nil
}

func missingRequiredFields(sys *systems.System) []string {
	var missing []string
	if sys.Tenant == "" {
		missing = append(missing, "tenant")
	}
	if sys.ID == "" {
		missing = append(missing, "id")
	}
	if sys.Type == "" {
		missing = append(missing, "systemType")
	}
	if sys.Host == "" {
		missing = append(missing, "host")
	}
	if sys.DefaultAuthnMethod == "" {
		missing = append(missing, "defaultAuthnMethod")
	}
	return missing
}

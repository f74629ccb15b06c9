package service

import (
	"context"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/authorizer"
)

// GrantUserPerms grants the target user the given permissions and membership
// in the system's read role, so the system appears in their listings.
func (s *Service) GrantUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, perms []systems.Permission, rawRequest string) error {
	if targetUser == "" {
		return invalidf("target user is required")
	}
	if len(perms) == 0 {
		return invalidf("at least one permission is required")
	}

	tenant := caller.EffectiveTenant()

	sys, err := s.loadForAuth(ctx, tenant, systemID, false)
	if err != nil {
		return err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:       systems.OpGrantPerms,
		Tenant:   tenant,
		SystemID: systemID,
		Owner:    sys.Owner,
	}); err != nil {
		return err
	}

	for _, p := range perms {
		spec := systems.PermSpec(tenant, p, systemID)
		if err := s.security.GrantPermission(ctx, tenant, targetUser, spec); err != nil {
			return delegateErr("service.GrantUserPerms", err)
		}
	}
	if err := s.security.GrantRole(ctx, tenant, targetUser, systems.ReadRoleName(sys.SeqID)); err != nil {
		return delegateErr("service.GrantUserPerms", err)
	}

	rec := s.updateRecord(sys, systems.OpGrantPerms, struct {
		TargetUser  string               `json:"targetUser"`
		Permissions []systems.Permission `json:"permissions"`
	}{targetUser, perms}, rawRequest)
	return s.store.AppendUpdate(ctx, rec)
}

// RevokeUserPerms removes the given permissions from the target user and
// returns how many of them were actually held. When no permission remains the
// read-role membership is dropped too, removing the system from the user's
// listings.
func (s *Service) RevokeUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, perms []systems.Permission, rawRequest string) (int64, error) {
	if targetUser == "" {
		return 0, invalidf("target user is required")
	}
	if len(perms) == 0 {
		return 0, invalidf("at least one permission is required")
	}

	tenant := caller.EffectiveTenant()

	sys, err := s.loadForAuth(ctx, tenant, systemID, false)
	if err != nil {
		return 0, err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:         systems.OpRevokePerms,
		Tenant:     tenant,
		SystemID:   systemID,
		Owner:      sys.Owner,
		TargetUser: targetUser,
		Perms:      perms,
	}); err != nil {
		return 0, err
	}

	var revoked int64
	for _, p := range perms {
		spec := systems.PermSpec(tenant, p, systemID)
		held, err := s.security.IsPermitted(ctx, tenant, targetUser, spec)
		if err != nil {
			return revoked, delegateErr("service.RevokeUserPerms", err)
		}
		if !held {
			continue
		}
		if err := s.security.RevokePermission(ctx, tenant, targetUser, spec); err != nil {
			return revoked, delegateErr("service.RevokeUserPerms", err)
		}
		revoked++
	}

	remaining, err := s.security.IsPermittedAny(ctx, tenant, targetUser, []string{
		systems.PermSpec(tenant, systems.PermissionRead, systemID),
		systems.PermSpec(tenant, systems.PermissionModify, systemID),
		systems.PermSpec(tenant, systems.PermissionExecute, systemID),
	})
	if err != nil {
		return revoked, delegateErr("service.RevokeUserPerms", err)
	}
	if !remaining && targetUser != sys.Owner {
		if err := s.security.RevokeRole(ctx, tenant, targetUser, systems.ReadRoleName(sys.SeqID)); err != nil {
			return revoked, delegateErr("service.RevokeUserPerms", err)
		}
	}

	rec := s.updateRecord(sys, systems.OpRevokePerms, struct {
		TargetUser  string               `json:"targetUser"`
		Permissions []systems.Permission `json:"permissions"`
	}{targetUser, perms}, rawRequest)
	if err := s.store.AppendUpdate(ctx, rec); err != nil {
		return revoked, err
	}
	return revoked, nil
}

// GetUserPerms reports the permissions the target user holds on the system.
// The owner implicitly holds all of them.
func (s *Service) GetUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string) (systems.PermissionSet, error) {
	if targetUser == "" {
		return nil, invalidf("target user is required")
	}

	tenant := caller.EffectiveTenant()

	sys, err := s.loadForAuth(ctx, tenant, systemID, false)
	if err != nil {
		return nil, err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:       systems.OpGetPerms,
		Tenant:   tenant,
		SystemID: systemID,
		Owner:    sys.Owner,
	}); err != nil {
		return nil, err
	}

	set := systems.PermissionSet{}
	if targetUser == sys.Owner {
		set[systems.PermissionRead] = true
		set[systems.PermissionModify] = true
		set[systems.PermissionExecute] = true
		return set, nil
	}

	for _, p := range []systems.Permission{systems.PermissionRead, systems.PermissionModify, systems.PermissionExecute} {
		held, err := s.security.IsPermitted(ctx, tenant, targetUser, systems.PermSpec(tenant, p, systemID))
		if err != nil {
			return nil, delegateErr("service.GetUserPerms", err)
		}
		if held {
			set[p] = true
		}
	}
	return set, nil
}

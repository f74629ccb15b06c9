package service

import (
	"context"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/authorizer"
	ierrors "github.com/gridpath/systems/kit/errors"
)

// SetUserCredential stores a credential for the target user on the system.
// The secret is addressed by the resolved effective user, so a fixed
// effectiveUserId maps every target to the same stored credential.
func (s *Service) SetUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, cred *systems.Credential, rawRequest string) error {
	if targetUser == "" {
		return invalidf("target user is required")
	}
	if cred.IsEmpty() {
		return invalidf("credential is required")
	}

	tenant := caller.EffectiveTenant()

	sys, err := s.loadForAuth(ctx, tenant, systemID, false)
	if err != nil {
		return err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:              systems.OpSetCred,
		Tenant:          tenant,
		SystemID:        systemID,
		Owner:           sys.Owner,
		TargetUser:      targetUser,
		EffectiveUserID: sys.EffectiveUserID,
	}); err != nil {
		return err
	}

	accessUser := systems.ResolveEffectiveUser(sys.EffectiveUserID, sys.Owner, targetUser)
	if err := s.security.WriteSecret(ctx, tenant, systemID, accessUser, sys.DefaultAuthnMethod, cred); err != nil {
		return delegateErr("service.SetUserCredential", err)
	}

	rec := s.updateRecord(sys, systems.OpSetCred, struct {
		TargetUser string              `json:"targetUser"`
		Credential *systems.Credential `json:"credential"`
	}{targetUser, cred.Redacted()}, rawRequest)
	return s.store.AppendUpdate(ctx, rec)
}

// RemoveUserCredential deletes the target user's stored credential.
func (s *Service) RemoveUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string) error {
	if targetUser == "" {
		return invalidf("target user is required")
	}

	tenant := caller.EffectiveTenant()

	sys, err := s.loadForAuth(ctx, tenant, systemID, false)
	if err != nil {
		return err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:              systems.OpRemoveCred,
		Tenant:          tenant,
		SystemID:        systemID,
		Owner:           sys.Owner,
		TargetUser:      targetUser,
		EffectiveUserID: sys.EffectiveUserID,
	}); err != nil {
		return err
	}

	accessUser := systems.ResolveEffectiveUser(sys.EffectiveUserID, sys.Owner, targetUser)
	if err := s.security.DeleteSecret(ctx, tenant, systemID, accessUser); err != nil {
		return delegateErr("service.RemoveUserCredential", err)
	}

	rec := s.updateRecord(sys, systems.OpRemoveCred, struct {
		TargetUser string `json:"targetUser"`
	}{targetUser}, "")
	return s.store.AppendUpdate(ctx, rec)
}

// GetUserCredential fetches the target user's credential. Only allow-listed
// platform services may call this; a stored-but-absent credential is
// ENotFound, not a delegate failure.
func (s *Service) GetUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	if targetUser == "" {
		return nil, invalidf("target user is required")
	}

	tenant := caller.EffectiveTenant()

	sys, err := s.loadForAuth(ctx, tenant, systemID, false)
	if err != nil {
		return nil, err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:              systems.OpGetCred,
		Tenant:          tenant,
		SystemID:        systemID,
		Owner:           sys.Owner,
		TargetUser:      targetUser,
		EffectiveUserID: sys.EffectiveUserID,
	}); err != nil {
		return nil, err
	}

	if method == "" {
		method = sys.DefaultAuthnMethod
	}

	accessUser := systems.ResolveEffectiveUser(sys.EffectiveUserID, sys.Owner, targetUser)
	cred, err := s.security.ReadSecret(ctx, tenant, systemID, accessUser, method)
	if err != nil {
		return nil, delegateErr("service.GetUserCredential", err)
	}
	if cred == nil {
		return nil, &ierrors.Error{
			Code: ierrors.ENotFound,
			Msg:  "no credential found for user \"" + targetUser + "\" on system \"" + systemID + "\"",
		}
	}
	return cred, nil
}

package service

import (
	"context"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/authorizer"
)

// GetSystem fetches one system definition. When credentials are requested the
// effective user is resolved against the caller, and a missing credential
// simply leaves the field empty.
func (s *Service) GetSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, opts systems.GetSystemOptions) (*systems.System, error) {
	tenant := caller.EffectiveTenant()

	sys, err := s.store.GetSystem(ctx, tenant, systemID, opts.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	if err := s.auth.Authorize(ctx, caller, authorizer.Request{
		Op:       systems.OpRead,
		Tenant:   tenant,
		SystemID: systemID,
		Owner:    sys.Owner,
	}); err != nil {
		return nil, err
	}

	if opts.RequireExecPerm {
		if err := s.auth.Authorize(ctx, caller, authorizer.Request{
			Op:       systems.OpExecute,
			Tenant:   tenant,
			SystemID: systemID,
			Owner:    sys.Owner,
		}); err != nil {
			return nil, err
		}
	}

	if opts.ReturnCredentials {
		method := opts.Method
		if method == "" {
			method = sys.DefaultAuthnMethod
		}
		accessUser := systems.ResolveEffectiveUser(sys.EffectiveUserID, sys.Owner, caller.EffectiveUser())
		cred, err := s.security.ReadSecret(ctx, tenant, systemID, accessUser, method)
		if err != nil {
			return nil, delegateErr("service.GetSystem", err)
		}
		sys.AuthnCredential = cred
	}

	return sys, nil
}

// ListSystems returns the tenant's systems visible to the caller. The
// caller's allowed-id set is intersected with the search predicate inside the
// store query, so rows the caller may not see are never materialized.
func (s *Service) ListSystems(ctx context.Context, caller systems.CallerIdentity, filter systems.SystemFilter, opt systems.FindOptions) ([]*systems.System, error) {
	allowed, err := s.auth.AllowedSystemIDs(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.store.ListSystems(ctx, caller.EffectiveTenant(), filter, allowed, opt)
}

// Package authorizer implements the registry's per-operation access control
// decisions. Rules are evaluated first match wins; anything that matches no
// rule is denied. Denials name the operation and target only, never which
// check failed.
package authorizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gridpath/systems"
	ierrors "github.com/gridpath/systems/kit/errors"
)

// Default service allow-lists. Trusted platform services may read system
// definitions and fetch credentials on behalf of end users; nothing else.
var (
	DefaultReadServices = []string{"jobs", "files", "apps"}
	DefaultCredServices = []string{"jobs", "files"}
)

// Request is one authorization question: may the caller perform Op on the
// named system. Owner must be resolved by the caller; an empty owner means
// the system could not be loaded and always denies.
type Request struct {
	Op       systems.Operation
	Tenant   string
	SystemID string
	Owner    string

	// TargetUser is the user a permission or credential operation acts on.
	TargetUser string

	// Perms is the permission set being revoked, for the self-revoke rules.
	Perms []systems.Permission

	// EffectiveUserID is the system's stored effectiveUserId, needed by the
	// credential rules to distinguish impossible requests from denied ones.
	EffectiveUserID string
}

type Authorizer struct {
	security systems.SecurityService
	log      *zap.Logger

	readServices map[string]bool
	credServices map[string]bool
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithReadServices replaces the allow-list of services permitted to read
// system definitions.
func WithReadServices(names []string) Option {
	return func(a *Authorizer) { a.readServices = toSet(names) }
}

// WithCredServices replaces the allow-list of services permitted to fetch
// credentials.
func WithCredServices(names []string) Option {
	return func(a *Authorizer) { a.credServices = toSet(names) }
}

func New(security systems.SecurityService, log *zap.Logger, opts ...Option) *Authorizer {
	a := &Authorizer{
		security:     security,
		log:          log,
		readServices: toSet(DefaultReadServices),
		credServices: toSet(DefaultCredServices),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Authorize returns nil when the caller may perform the requested operation,
// EUnauthorized when not, and EInvalidState for credential requests that are
// structurally impossible rather than merely denied.
func (a *Authorizer) Authorize(ctx context.Context, caller systems.CallerIdentity, req Request) error {
	if caller.IsService {
		return a.authorizeService(caller, req)
	}

	tenant := caller.EffectiveTenant()
	user := caller.EffectiveUser()

	// interactive users never reach getCred; only allow-listed services may
	// fetch credentials on a user's behalf
	if req.Op == systems.OpGetCred {
		return a.deny(user, req)
	}

	if req.Owner == "" && req.Op != systems.OpCreate {
		a.log.Warn("authorization denied: system owner unresolvable",
			zap.String("tenant", tenant),
			zap.String("user", user),
			zap.String("operation", string(req.Op)),
			zap.String("system_id", req.SystemID))
		return a.deny(user, req)
	}

	isOwner := user == req.Owner

	switch req.Op {
	case systems.OpCreate, systems.OpEnable, systems.OpDisable,
		systems.OpSoftDelete, systems.OpUndelete,
		systems.OpChangeOwner, systems.OpGrantPerms:
		if isOwner {
			return nil
		}
		return a.adminOrDeny(ctx, tenant, user, req)

	case systems.OpHardDelete:
		// owner alone is insufficient for a destructive operation
		return a.adminOrDeny(ctx, tenant, user, req)

	case systems.OpRead, systems.OpGetPerms:
		if isOwner {
			return nil
		}
		return a.permOrAdminOrDeny(ctx, tenant, user, req,
			systems.PermissionRead, systems.PermissionModify)

	case systems.OpModify:
		if isOwner {
			return nil
		}
		return a.permOrAdminOrDeny(ctx, tenant, user, req, systems.PermissionModify)

	case systems.OpExecute:
		if isOwner {
			return nil
		}
		return a.permOrAdminOrDeny(ctx, tenant, user, req, systems.PermissionExecute)

	case systems.OpRevokePerms:
		if isOwner {
			return nil
		}
		if admin, err := a.hasAdminRole(ctx, tenant, user); err != nil {
			return err
		} else if admin {
			return nil
		}
		if user == req.TargetUser {
			return a.authorizeSelfRevoke(ctx, tenant, user, req)
		}
		return a.deny(user, req)

	case systems.OpSetCred, systems.OpRemoveCred:
		if isOwner {
			return nil
		}
		if admin, err := a.hasAdminRole(ctx, tenant, user); err != nil {
			return err
		} else if admin {
			return nil
		}
		if user == req.TargetUser {
			if req.EffectiveUserID == systems.CallerTemplate {
				return nil
			}
			// not a permission problem: a credential stored for this user
			// could never be selected while effectiveUserId is fixed
			return &ierrors.Error{
				Code: ierrors.EInvalidState,
				Msg: fmt.Sprintf("system %q uses a static effectiveUserId; a credential for user %q would never be used",
					req.SystemID, user),
			}
		}
		return a.deny(user, req)
	}

	return a.deny(user, req)
}

// authorizeService applies the service-caller rules: read and getCred against
// their respective allow-lists, everything else denied.
func (a *Authorizer) authorizeService(caller systems.CallerIdentity, req Request) error {
	switch req.Op {
	case systems.OpRead:
		if a.readServices[caller.ServiceName] {
			return nil
		}
	case systems.OpGetCred:
		if a.credServices[caller.ServiceName] {
			return nil
		}
	}
	return a.deny(caller.ServiceName, req)
}

// authorizeSelfRevoke checks a user shrinking their own grants: dropping
// MODIFY requires holding MODIFY, dropping READ requires READ or MODIFY, and
// dropping EXECUTE requires holding EXECUTE.
func (a *Authorizer) authorizeSelfRevoke(ctx context.Context, tenant, user string, req Request) error {
	for _, p := range req.Perms {
		var required []systems.Permission
		switch p {
		case systems.PermissionModify:
			required = []systems.Permission{systems.PermissionModify}
		case systems.PermissionRead:
			required = []systems.Permission{systems.PermissionRead, systems.PermissionModify}
		case systems.PermissionExecute:
			required = []systems.Permission{systems.PermissionExecute}
		default:
			return a.deny(user, req)
		}

		ok, err := a.isPermittedAny(ctx, tenant, user, req.SystemID, required)
		if err != nil {
			return err
		}
		if !ok {
			return a.deny(user, req)
		}
	}
	return nil
}

func (a *Authorizer) adminOrDeny(ctx context.Context, tenant, user string, req Request) error {
	admin, err := a.hasAdminRole(ctx, tenant, user)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return a.deny(user, req)
}

func (a *Authorizer) permOrAdminOrDeny(ctx context.Context, tenant, user string, req Request, perms ...systems.Permission) error {
	admin, err := a.hasAdminRole(ctx, tenant, user)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}

	ok, err := a.isPermittedAny(ctx, tenant, user, req.SystemID, perms)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return a.deny(user, req)
}

func (a *Authorizer) hasAdminRole(ctx context.Context, tenant, user string) (bool, error) {
	admin, err := a.security.HasAdminRole(ctx, tenant, user)
	if err != nil {
		return false, &ierrors.Error{
			Code: ierrors.EDelegate,
			Msg:  "unable to check tenant admin role",
			Op:   "authorizer.hasAdminRole",
			Err:  err,
		}
	}
	return admin, nil
}

func (a *Authorizer) isPermittedAny(ctx context.Context, tenant, user, systemID string, perms []systems.Permission) (bool, error) {
	specs := make([]string, len(perms))
	for i, p := range perms {
		specs[i] = systems.PermSpec(tenant, p, systemID)
	}
	ok, err := a.security.IsPermittedAny(ctx, tenant, user, specs)
	if err != nil {
		return false, &ierrors.Error{
			Code: ierrors.EDelegate,
			Msg:  "unable to check permissions",
			Op:   "authorizer.isPermittedAny",
			Err:  err,
		}
	}
	return ok, nil
}

func (a *Authorizer) deny(user string, req Request) error {
	return &ierrors.Error{
		Code: ierrors.EUnauthorized,
		Msg: fmt.Sprintf("user %q is not authorized to perform operation %s on system %q",
			user, req.Op, req.SystemID),
	}
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Package systems defines the domain types and service contracts of the
// systems registry: a multi-tenant catalog of remote compute and storage
// endpoints whose permissions and credentials are delegated to an external
// security service.
package systems

import "context"

// CreateSystemRequest carries a new system definition, an optional credential
// to store alongside it, and the raw client text kept for the audit trail.
type CreateSystemRequest struct {
	System     *System
	Credential *Credential
	RawRequest string
}

// GetSystemOptions modify a single-system fetch.
type GetSystemOptions struct {
	IncludeDeleted bool

	// ReturnCredentials fetches the credential of the resolved effective user
	// using Method, or the system's default authn method when Method is empty.
	ReturnCredentials bool
	Method            AuthnMethod

	// RequireExecPerm layers an execute check on top of the read check.
	RequireExecPerm bool
}

// SystemsService is the registry's surface as consumed by the API layer. Every
// call authorizes the caller before touching the store or the delegate and
// returns typed errors from kit/errors.
type SystemsService interface {
	CreateSystem(ctx context.Context, caller CallerIdentity, req CreateSystemRequest) (int64, error)
	GetSystem(ctx context.Context, caller CallerIdentity, systemID string, opts GetSystemOptions) (*System, error)
	ListSystems(ctx context.Context, caller CallerIdentity, filter SystemFilter, opt FindOptions) ([]*System, error)

	PatchSystem(ctx context.Context, caller CallerIdentity, systemID string, upd SystemUpdate, rawRequest string) (*System, error)
	PutSystem(ctx context.Context, caller CallerIdentity, systemID string, s *System, rawRequest string) (*System, error)

	EnableSystem(ctx context.Context, caller CallerIdentity, systemID string) (int64, error)
	DisableSystem(ctx context.Context, caller CallerIdentity, systemID string) (int64, error)
	SoftDeleteSystem(ctx context.Context, caller CallerIdentity, systemID string) (int64, error)
	UndeleteSystem(ctx context.Context, caller CallerIdentity, systemID string) (int64, error)
	HardDeleteSystem(ctx context.Context, caller CallerIdentity, systemID string) error
	ChangeSystemOwner(ctx context.Context, caller CallerIdentity, systemID, newOwner string) (int64, error)

	GrantUserPerms(ctx context.Context, caller CallerIdentity, systemID, targetUser string, perms []Permission, rawRequest string) error
	RevokeUserPerms(ctx context.Context, caller CallerIdentity, systemID, targetUser string, perms []Permission, rawRequest string) (int64, error)
	GetUserPerms(ctx context.Context, caller CallerIdentity, systemID, targetUser string) (PermissionSet, error)

	SetUserCredential(ctx context.Context, caller CallerIdentity, systemID, targetUser string, cred *Credential, rawRequest string) error
	RemoveUserCredential(ctx context.Context, caller CallerIdentity, systemID, targetUser string) error
	GetUserCredential(ctx context.Context, caller CallerIdentity, systemID, targetUser string, method AuthnMethod) (*Credential, error)
}

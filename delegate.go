package systems

import "context"

// SecurityService is the external permission, role and secret delegate. The
// registry holds no grants or secrets of its own; every call here is a
// synchronous RPC to the delegate.
//
// Read-path lookups for things that simply do not exist resolve to false or
// nil rather than an error, so callers can distinguish "absent" from a failed
// round trip.
type SecurityService interface {
	// Roles.
	CreateRole(ctx context.Context, tenant, role, description string) error
	DeleteRole(ctx context.Context, tenant, role string) error
	GrantRole(ctx context.Context, tenant, user, role string) error
	RevokeRole(ctx context.Context, tenant, user, role string) error
	GrantRolePermission(ctx context.Context, tenant, role, permSpec string) error
	RolesForUser(ctx context.Context, tenant, user string) ([]string, error)
	HasAdminRole(ctx context.Context, tenant, user string) (bool, error)

	// Permissions.
	GrantPermission(ctx context.Context, tenant, user, permSpec string) error
	RevokePermission(ctx context.Context, tenant, user, permSpec string) error
	IsPermitted(ctx context.Context, tenant, user, permSpec string) (bool, error)
	IsPermittedAny(ctx context.Context, tenant, user string, permSpecs []string) (bool, error)
	UsersWithPermission(ctx context.Context, tenant, permSpec string) ([]string, error)

	// Secrets. ReadSecret returns (nil, nil) when no credential is stored.
	WriteSecret(ctx context.Context, tenant, systemID, targetUser string, method AuthnMethod, cred *Credential) error
	ReadSecret(ctx context.Context, tenant, systemID, targetUser string, method AuthnMethod) (*Credential, error)
	DeleteSecret(ctx context.Context, tenant, systemID, targetUser string) error
}

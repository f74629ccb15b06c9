package mock

import (
	"context"
	"fmt"

	"github.com/gridpath/systems"
)

var _ systems.SecurityService = (*SecurityService)(nil)

// SecurityService is a mock implementation of systems.SecurityService.
// Tests assign the Fn fields they care about; everything else returns a
// "not implemented" error.
type SecurityService struct {
	CreateRoleFn          func(ctx context.Context, tenant, role, description string) error
	DeleteRoleFn          func(ctx context.Context, tenant, role string) error
	GrantRoleFn           func(ctx context.Context, tenant, user, role string) error
	RevokeRoleFn          func(ctx context.Context, tenant, user, role string) error
	GrantRolePermissionFn func(ctx context.Context, tenant, role, permSpec string) error
	RolesForUserFn        func(ctx context.Context, tenant, user string) ([]string, error)
	HasAdminRoleFn        func(ctx context.Context, tenant, user string) (bool, error)
	GrantPermissionFn     func(ctx context.Context, tenant, user, permSpec string) error
	RevokePermissionFn    func(ctx context.Context, tenant, user, permSpec string) error
	IsPermittedFn         func(ctx context.Context, tenant, user, permSpec string) (bool, error)
	IsPermittedAnyFn      func(ctx context.Context, tenant, user string, permSpecs []string) (bool, error)
	UsersWithPermissionFn func(ctx context.Context, tenant, permSpec string) ([]string, error)
	WriteSecretFn         func(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod, cred *systems.Credential) error
	ReadSecretFn          func(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error)
	DeleteSecretFn        func(ctx context.Context, tenant, systemID, targetUser string) error
}

// NewSecurityService returns a mock where every method fails until its Fn
// field is assigned.
func NewSecurityService() *SecurityService {
	return &SecurityService{
		CreateRoleFn: func(ctx context.Context, tenant, role, description string) error {
			return fmt.Errorf("not implemented")
		},
		DeleteRoleFn: func(ctx context.Context, tenant, role string) error {
			return fmt.Errorf("not implemented")
		},
		GrantRoleFn: func(ctx context.Context, tenant, user, role string) error {
			return fmt.Errorf("not implemented")
		},
		RevokeRoleFn: func(ctx context.Context, tenant, user, role string) error {
			return fmt.Errorf("not implemented")
		},
		GrantRolePermissionFn: func(ctx context.Context, tenant, role, permSpec string) error {
			return fmt.Errorf("not implemented")
		},
		RolesForUserFn: func(ctx context.Context, tenant, user string) ([]string, error) {
			return nil, fmt.Errorf("not implemented")
		},
		HasAdminRoleFn: func(ctx context.Context, tenant, user string) (bool, error) {
			return false, fmt.Errorf("not implemented")
		},
		GrantPermissionFn: func(ctx context.Context, tenant, user, permSpec string) error {
			return fmt.Errorf("not implemented")
		},
		RevokePermissionFn: func(ctx context.Context, tenant, user, permSpec string) error {
			return fmt.Errorf("not implemented")
		},
		IsPermittedFn: func(ctx context.Context, tenant, user, permSpec string) (bool, error) {
			return false, fmt.Errorf("not implemented")
		},
		IsPermittedAnyFn: func(ctx context.Context, tenant, user string, permSpecs []string) (bool, error) {
			return false, fmt.Errorf("not implemented")
		},
		UsersWithPermissionFn: func(ctx context.Context, tenant, permSpec string) ([]string, error) {
			return nil, fmt.Errorf("not implemented")
		},
		WriteSecretFn: func(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod, cred *systems.Credential) error {
			return fmt.Errorf("not implemented")
		},
		ReadSecretFn: func(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
			return nil, fmt.Errorf("not implemented")
		},
		DeleteSecretFn: func(ctx context.Context, tenant, systemID, targetUser string) error {
			return fmt.Errorf("not implemented")
		},
	}
}

func (s *SecurityService) CreateRole(ctx context.Context, tenant, role, description string) error {
	return s.CreateRoleFn(ctx, tenant, role, description)
}

func (s *SecurityService) DeleteRole(ctx context.Context, tenant, role string) error {
	return s.DeleteRoleFn(ctx, tenant, role)
}

func (s *SecurityService) GrantRole(ctx context.Context, tenant, user, role string) error {
	return s.GrantRoleFn(ctx, tenant, user, role)
}

func (s *SecurityService) RevokeRole(ctx context.Context, tenant, user, role string) error {
	return s.RevokeRoleFn(ctx, tenant, user, role)
}

func (s *SecurityService) GrantRolePermission(ctx context.Context, tenant, role, permSpec string) error {
	return s.GrantRolePermissionFn(ctx, tenant, role, permSpec)
}

func (s *SecurityService) RolesForUser(ctx context.Context, tenant, user string) ([]string, error) {
	return s.RolesForUserFn(ctx, tenant, user)
}

func (s *SecurityService) HasAdminRole(ctx context.Context, tenant, user string) (bool, error) {
	return s.HasAdminRoleFn(ctx, tenant, user)
}

func (s *SecurityService) GrantPermission(ctx context.Context, tenant, user, permSpec string) error {
	return s.GrantPermissionFn(ctx, tenant, user, permSpec)
}

func (s *SecurityService) RevokePermission(ctx context.Context, tenant, user, permSpec string) error {
	return s.RevokePermissionFn(ctx, tenant, user, permSpec)
}

func (s *SecurityService) IsPermitted(ctx context.Context, tenant, user, permSpec string) (bool, error) {
	return s.IsPermittedFn(ctx, tenant, user, permSpec)
}

func (s *SecurityService) IsPermittedAny(ctx context.Context, tenant, user string, permSpecs []string) (bool, error) {
	return s.IsPermittedAnyFn(ctx, tenant, user, permSpecs)
}

func (s *SecurityService) UsersWithPermission(ctx context.Context, tenant, permSpec string) ([]string, error) {
	return s.UsersWithPermissionFn(ctx, tenant, permSpec)
}

func (s *SecurityService) WriteSecret(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod, cred *systems.Credential) error {
	return s.WriteSecretFn(ctx, tenant, systemID, targetUser, method, cred)
}

func (s *SecurityService) ReadSecret(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	return s.ReadSecretFn(ctx, tenant, systemID, targetUser, method)
}

func (s *SecurityService) DeleteSecret(ctx context.Context, tenant, systemID, targetUser string) error {
	return s.DeleteSecretFn(ctx, tenant, systemID, targetUser)
}

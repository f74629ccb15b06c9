package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gridpath/systems"
)

// fakeSecurity is an in-memory stand-in for the external security delegate.
// It stores roles, grants and secrets with the delegate's observable
// semantics so tests can assert that saga compensation leaves no artifacts
// behind. Any method can be made to fail by name via failOn.
type fakeSecurity struct {
	mu sync.Mutex

	admins      map[string]bool            // user -> tenant admin
	roles       map[string]map[string]bool // tenant/role -> permSpec set
	memberships map[string]map[string]bool // tenant/user -> role set
	grants      map[string]map[string]bool // tenant/user -> permSpec set
	secrets     map[string]*storedSecret   // tenant/system/user -> secret
	failOn      map[string]*injectedFault  // method name -> pending fault
}

// injectedFault fires on the nth remaining call of a method, then clears.
type injectedFault struct {
	after int
	err   error
}

type storedSecret struct {
	method systems.AuthnMethod
	cred   *systems.Credential
}

func newFakeSecurity() *fakeSecurity {
	return &fakeSecurity{
		admins:      map[string]bool{},
		roles:       map[string]map[string]bool{},
		memberships: map[string]map[string]bool{},
		grants:      map[string]map[string]bool{},
		secrets:     map[string]*storedSecret{},
		failOn:      map[string]*injectedFault{},
	}
}

func (f *fakeSecurity) failNext(method string) {
	f.failNth(method, 1)
}

// failNth makes the nth upcoming call of the method fail once.
func (f *fakeSecurity) failNth(method string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[method] = &injectedFault{after: n, err: fmt.Errorf("injected %s failure", method)}
}

func (f *fakeSecurity) check(method string) error {
	fault := f.failOn[method]
	if fault == nil {
		return nil
	}
	fault.after--
	if fault.after > 0 {
		return nil
	}
	delete(f.failOn, method)
	return fault.err
}

func roleKey(tenant, role string) string  { return tenant + "/" + role }
func userKey(tenant, user string) string  { return tenant + "/" + user }
func secretKey(tenant, system, user string) string {
	return tenant + "/" + system + "/" + user
}

// specImplies reports whether a held spec satisfies a queried single-permission
// spec. Specs look like system:<tenant>:<perm>[,<perm>...]:<systemId>, with *
// matching any permission.
func specImplies(held, query string) bool {
	hp := strings.SplitN(held, ":", 4)
	qp := strings.SplitN(query, ":", 4)
	if len(hp) != 4 || len(qp) != 4 {
		return false
	}
	if hp[0] != qp[0] || hp[1] != qp[1] || hp[3] != qp[3] {
		return false
	}
	if hp[2] == "*" || qp[2] == "*" {
		return true
	}
	for _, heldPerm := range strings.Split(hp[2], ",") {
		for _, queryPerm := range strings.Split(qp[2], ",") {
			if heldPerm == queryPerm {
				return true
			}
		}
	}
	return false
}

func (f *fakeSecurity) CreateRole(_ context.Context, tenant, role, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateRole"); err != nil {
		return err
	}
	if f.roles[roleKey(tenant, role)] == nil {
		f.roles[roleKey(tenant, role)] = map[string]bool{}
	}
	return nil
}

func (f *fakeSecurity) DeleteRole(_ context.Context, tenant, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("DeleteRole"); err != nil {
		return err
	}
	delete(f.roles, roleKey(tenant, role))
	for _, roles := range f.memberships {
		delete(roles, role)
	}
	return nil
}

func (f *fakeSecurity) GrantRole(_ context.Context, tenant, user, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GrantRole"); err != nil {
		return err
	}
	if _, ok := f.roles[roleKey(tenant, role)]; !ok {
		return fmt.Errorf("role %q does not exist", role)
	}
	if f.memberships[userKey(tenant, user)] == nil {
		f.memberships[userKey(tenant, user)] = map[string]bool{}
	}
	f.memberships[userKey(tenant, user)][role] = true
	return nil
}

func (f *fakeSecurity) RevokeRole(_ context.Context, tenant, user, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("RevokeRole"); err != nil {
		return err
	}
	delete(f.memberships[userKey(tenant, user)], role)
	return nil
}

func (f *fakeSecurity) GrantRolePermission(_ context.Context, tenant, role, permSpec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GrantRolePermission"); err != nil {
		return err
	}
	perms, ok := f.roles[roleKey(tenant, role)]
	if !ok {
		return fmt.Errorf("role %q does not exist", role)
	}
	perms[permSpec] = true
	return nil
}

func (f *fakeSecurity) RolesForUser(_ context.Context, tenant, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("RolesForUser"); err != nil {
		return nil, err
	}
	var out []string
	for role := range f.memberships[userKey(tenant, user)] {
		out = append(out, role)
	}
	return out, nil
}

func (f *fakeSecurity) HasAdminRole(_ context.Context, _, user string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("HasAdminRole"); err != nil {
		return false, err
	}
	return f.admins[user], nil
}

func (f *fakeSecurity) GrantPermission(_ context.Context, tenant, user, permSpec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GrantPermission"); err != nil {
		return err
	}
	if f.grants[userKey(tenant, user)] == nil {
		f.grants[userKey(tenant, user)] = map[string]bool{}
	}
	f.grants[userKey(tenant, user)][permSpec] = true
	return nil
}

func (f *fakeSecurity) RevokePermission(_ context.Context, tenant, user, permSpec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("RevokePermission"); err != nil {
		return err
	}
	held := f.grants[userKey(tenant, user)]
	for spec := range held {
		if spec == permSpec || specImplies(permSpec, spec) {
			delete(held, spec)
		}
	}
	return nil
}

func (f *fakeSecurity) IsPermitted(ctx context.Context, tenant, user, permSpec string) (bool, error) {
	return f.IsPermittedAny(ctx, tenant, user, []string{permSpec})
}

func (f *fakeSecurity) IsPermittedAny(_ context.Context, tenant, user string, permSpecs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("IsPermittedAny"); err != nil {
		return false, err
	}
	for held := range f.grants[userKey(tenant, user)] {
		for _, query := range permSpecs {
			if specImplies(held, query) {
				return true, nil
			}
		}
	}
	for role := range f.memberships[userKey(tenant, user)] {
		for held := range f.roles[roleKey(tenant, role)] {
			for _, query := range permSpecs {
				if specImplies(held, query) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (f *fakeSecurity) UsersWithPermission(_ context.Context, tenant, permSpec string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UsersWithPermission"); err != nil {
		return nil, err
	}
	var out []string
	for key, specs := range f.grants {
		if !strings.HasPrefix(key, tenant+"/") {
			continue
		}
		for held := range specs {
			if specImplies(permSpec, held) || specImplies(held, permSpec) {
				out = append(out, strings.TrimPrefix(key, tenant+"/"))
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSecurity) WriteSecret(_ context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod, cred *systems.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("WriteSecret"); err != nil {
		return err
	}
	f.secrets[secretKey(tenant, systemID, targetUser)] = &storedSecret{method: method, cred: cred}
	return nil
}

func (f *fakeSecurity) ReadSecret(_ context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ReadSecret"); err != nil {
		return nil, err
	}
	sec, ok := f.secrets[secretKey(tenant, systemID, targetUser)]
	if !ok || sec.method != method {
		return nil, nil
	}
	return sec.cred, nil
}

func (f *fakeSecurity) DeleteSecret(_ context.Context, tenant, systemID, targetUser string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("DeleteSecret"); err != nil {
		return err
	}
	delete(f.secrets, secretKey(tenant, systemID, targetUser))
	return nil
}

// helpers for assertions

func (f *fakeSecurity) roleExists(tenant, role string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.roles[roleKey(tenant, role)]
	return ok
}

func (f *fakeSecurity) userGrants(tenant, user string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for spec := range f.grants[userKey(tenant, user)] {
		out = append(out, spec)
	}
	return out
}

func (f *fakeSecurity) userRoles(tenant, user string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for role := range f.memberships[userKey(tenant, user)] {
		out = append(out, role)
	}
	return out
}

func (f *fakeSecurity) secretFor(tenant, systemID, user string) *systems.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec, ok := f.secrets[secretKey(tenant, systemID, user)]
	if !ok {
		return nil
	}
	return sec.cred
}

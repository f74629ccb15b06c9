package systems

import (
	"fmt"
	"strconv"
	"strings"
)

// Permission is a grant a user can hold on a system.
type Permission string

const (
	PermissionRead    Permission = "READ"
	PermissionModify  Permission = "MODIFY"
	PermissionExecute Permission = "EXECUTE"
)

// ParsePermission validates a client-supplied permission name.
func ParsePermission(v string) (Permission, error) {
	switch p := Permission(strings.ToUpper(v)); p {
	case PermissionRead, PermissionModify, PermissionExecute:
		return p, nil
	default:
		return "", fmt.Errorf("unknown permission %q", v)
	}
}

// PermissionSet is the set of permissions a user holds on one system.
type PermissionSet map[Permission]bool

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool { return s[p] }

// Slice returns the set's members in READ, MODIFY, EXECUTE order.
func (s PermissionSet) Slice() []Permission {
	var out []Permission
	for _, p := range []Permission{PermissionRead, PermissionModify, PermissionExecute} {
		if s[p] {
			out = append(out, p)
		}
	}
	return out
}

// Operation is one of the registry's exposed actions, used for authorization
// decisions and audit records.
type Operation string

const (
	OpCreate      Operation = "create"
	OpRead        Operation = "read"
	OpModify      Operation = "modify"
	OpExecute     Operation = "execute"
	OpEnable      Operation = "enable"
	OpDisable     Operation = "disable"
	OpSoftDelete  Operation = "softDelete"
	OpUndelete    Operation = "undelete"
	OpHardDelete  Operation = "hardDelete"
	OpChangeOwner Operation = "changeOwner"
	OpGrantPerms  Operation = "grantPerms"
	OpRevokePerms Operation = "revokePerms"
	OpGetPerms    Operation = "getPerms"
	OpSetCred     Operation = "setCred"
	OpRemoveCred  Operation = "removeCred"
	OpGetCred     Operation = "getCred"
)

// Delegate artifact naming. All names derive from the surrogate id so they can
// be recomputed from the store row alone.
const (
	readRolePrefix = "Systems_R_"
	permSpecPrefix = "system"
)

// ReadRoleName is the delegate role granting READ on the system with the given
// surrogate id. The role exists so listing can answer "which systems may this
// user see" with a single role-membership lookup.
func ReadRoleName(seqID int64) string {
	return readRolePrefix + strconv.FormatInt(seqID, 10)
}

// ParseReadRole extracts the surrogate id from a read-role name. ok is false
// for roles that do not follow the read-role pattern.
func ParseReadRole(role string) (int64, bool) {
	if !strings.HasPrefix(role, readRolePrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(role, readRolePrefix), 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// PermSpec renders a single-permission spec for delegate grant/check calls.
func PermSpec(tenant string, perm Permission, systemID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", permSpecPrefix, tenant, perm, systemID)
}

// PermSpecAny renders a spec matching any of the given permissions.
func PermSpecAny(tenant string, perms []Permission, systemID string) string {
	ss := make([]string, len(perms))
	for i, p := range perms {
		ss[i] = string(p)
	}
	return fmt.Sprintf("%s:%s:%s:%s", permSpecPrefix, tenant, strings.Join(ss, ","), systemID)
}

// FullPermSpec renders the spec carrying every permission on the system, the
// grant given to owners.
func FullPermSpec(tenant, systemID string) string {
	return PermSpecAny(tenant, []Permission{PermissionRead, PermissionModify, PermissionExecute}, systemID)
}

// WildcardPermSpec matches every grant on the system regardless of permission,
// used by the delete-time sweep.
func WildcardPermSpec(tenant, systemID string) string {
	return fmt.Sprintf("%s:%s:*:%s", permSpecPrefix, tenant, systemID)
}

// IDSet is the outcome of allowed-id resolution. The unrestricted sentinel
// means no filtering applies (admins and trusted services).
type IDSet struct {
	Unrestricted bool
	IDs          []int64
}

// UnrestrictedIDSet returns the no-filtering sentinel.
func UnrestrictedIDSet() IDSet { return IDSet{Unrestricted: true} }

package systems

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("read")
	require.NoError(t, err)
	require.Equal(t, PermissionRead, p)

	p, err = ParsePermission("MODIFY")
	require.NoError(t, err)
	require.Equal(t, PermissionModify, p)

	_, err = ParsePermission("admin")
	require.Error(t, err)
}

func TestPermissionSetSlice(t *testing.T) {
	set := PermissionSet{PermissionExecute: true, PermissionRead: true}
	require.Equal(t, []Permission{PermissionRead, PermissionExecute}, set.Slice())
	require.True(t, set.Has(PermissionRead))
	require.False(t, set.Has(PermissionModify))
}

func TestReadRoleRoundTrip(t *testing.T) {
	role := ReadRoleName(12345)
	require.Equal(t, "Systems_R_12345", role)

	id, ok := ParseReadRole(role)
	require.True(t, ok)
	require.Equal(t, int64(12345), id)
}

func TestParseReadRoleRejects(t *testing.T) {
	for _, role := range []string{
		"tenant_admin",
		"Systems_R_",
		"Systems_R_abc",
		"Systems_R_-4",
		"systems_r_7",
	} {
		_, ok := ParseReadRole(role)
		require.False(t, ok, role)
	}
}

func TestPermSpecs(t *testing.T) {
	require.Equal(t, "system:dev:READ:sys1", PermSpec("dev", PermissionRead, "sys1"))
	require.Equal(t, "system:dev:READ,MODIFY,EXECUTE:sys1", FullPermSpec("dev", "sys1"))
	require.Equal(t, "system:dev:*:sys1", WildcardPermSpec("dev", "sys1"))
	require.Equal(t, "system:dev:MODIFY,EXECUTE:sys1",
		PermSpecAny("dev", []Permission{PermissionModify, PermissionExecute}, "sys1"))
}

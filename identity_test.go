package systems

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTemplate(t *testing.T) {
	require.True(t, IsTemplate(OwnerTemplate))
	require.True(t, IsTemplate(CallerTemplate))
	require.True(t, IsTemplate(TenantTemplate))
	require.False(t, IsTemplate("jdoe"))
	require.False(t, IsTemplate("${unknown}"))
	require.False(t, IsTemplate(""))
}

func TestCallerIdentityEffective(t *testing.T) {
	interactive := CallerIdentity{Tenant: "dev", User: "jdoe"}
	require.Equal(t, "dev", interactive.EffectiveTenant())
	require.Equal(t, "jdoe", interactive.EffectiveUser())

	svc := CallerIdentity{
		Tenant:      "admin",
		User:        "jobs@admin",
		IsService:   true,
		ServiceName: "jobs",
		OboTenant:   "dev",
		OboUser:     "jdoe",
	}
	require.Equal(t, "dev", svc.EffectiveTenant())
	require.Equal(t, "jdoe", svc.EffectiveUser())

	// service with no obo falls back to its own identity
	bare := CallerIdentity{Tenant: "admin", User: "jobs@admin", IsService: true, ServiceName: "jobs"}
	require.Equal(t, "admin", bare.EffectiveTenant())
	require.Equal(t, "jobs@admin", bare.EffectiveUser())
}

func TestResolveEffectiveUser(t *testing.T) {
	tests := []struct {
		name            string
		effectiveUserID string
		want            string
	}{
		{"owner template", OwnerTemplate, "owner1"},
		{"caller template", CallerTemplate, "jdoe"},
		{"literal", "svcacct", "svcacct"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveEffectiveUser(tt.effectiveUserID, "owner1", "jdoe")
			require.Equal(t, tt.want, got)

			// resolution of a literal is idempotent
			require.Equal(t, got, ResolveEffectiveUser(got, "owner1", "jdoe"))
		})
	}
}

func TestResolveVars(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/data/literal", "/data/literal"},
		{"/home/${owner}", "/home/owner1"},
		{"/scratch/${apiUserId}/work", "/scratch/jdoe/work"},
		{"${tenant}-bucket", "dev-bucket"},
		{"/${tenant}/${owner}/${apiUserId}", "/dev/owner1/jdoe"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ResolveVars(tt.in, "owner1", "jdoe", "dev"))
	}
}

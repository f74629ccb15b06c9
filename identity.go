package systems

import "strings"

// Template tokens permitted in system attributes. The vocabulary is closed;
// anything else is treated as a literal value.
const (
	OwnerTemplate  = "${owner}"
	CallerTemplate = "${apiUserId}"
	TenantTemplate = "${tenant}"
)

// IsTemplate reports whether v is one of the recognized template tokens.
func IsTemplate(v string) bool {
	switch v {
	case OwnerTemplate, CallerTemplate, TenantTemplate:
		return true
	}
	return false
}

// CallerIdentity describes who is making a request. Service callers are
// trusted platform backends acting on behalf of an end user; interactive
// callers act as themselves.
type CallerIdentity struct {
	Tenant string
	User   string

	// IsService marks a trusted backend service caller. ServiceName is the
	// registered name checked against operation allow-lists, and OboTenant /
	// OboUser identify the end user the service is acting for.
	IsService   bool
	ServiceName string
	OboTenant   string
	OboUser     string
}

// EffectiveTenant returns the tenant authorization decisions apply to: the
// on-behalf-of tenant for service callers, the caller's own tenant otherwise.
func (c CallerIdentity) EffectiveTenant() string {
	if c.IsService && c.OboTenant != "" {
		return c.OboTenant
	}
	return c.Tenant
}

// EffectiveUser returns the user authorization decisions apply to.
func (c CallerIdentity) EffectiveUser() string {
	if c.IsService && c.OboUser != "" {
		return c.OboUser
	}
	return c.User
}

// ResolveEffectiveUser maps a stored effectiveUserId to the literal identity
// used for delegate addressing. Literals resolve to themselves, so resolution
// is idempotent.
func ResolveEffectiveUser(effectiveUserID, owner, apiUser string) string {
	switch effectiveUserID {
	case OwnerTemplate:
		return owner
	case CallerTemplate:
		return apiUser
	default:
		return effectiveUserID
	}
}

// ResolveVars substitutes every template token found in v. Used on path-like
// attributes (bucketName, rootDir, jobWorkingDir) at create time so stored
// values are always literal.
func ResolveVars(v, owner, apiUser, tenant string) string {
	if v == "" || !strings.Contains(v, "${") {
		return v
	}
	r := strings.NewReplacer(
		OwnerTemplate, owner,
		CallerTemplate, apiUser,
		TenantTemplate, tenant,
	)
	return r.Replace(v)
}

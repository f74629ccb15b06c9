package authorizer

import (
	"context"
	"fmt"

	ierrors "github.com/gridpath/systems/kit/errors"

	"github.com/gridpath/systems"
)

// AllowedSystemIDs computes the set of surrogate ids the caller may see in
// listings. Allow-listed services and tenant admins are unrestricted; everyone
// else gets the ids embedded in their read-role memberships. The result is
// intersected with the search predicate before any row is materialized.
func (a *Authorizer) AllowedSystemIDs(ctx context.Context, caller systems.CallerIdentity) (systems.IDSet, error) {
	if caller.IsService {
		if a.readServices[caller.ServiceName] {
			return systems.UnrestrictedIDSet(), nil
		}
		return systems.IDSet{}, &ierrors.Error{
			Code: ierrors.EUnauthorized,
			Msg:  fmt.Sprintf("service %q is not authorized to list systems", caller.ServiceName),
		}
	}

	tenant := caller.EffectiveTenant()
	user := caller.EffectiveUser()

	admin, err := a.hasAdminRole(ctx, tenant, user)
	if err != nil {
		return systems.IDSet{}, err
	}
	if admin {
		return systems.UnrestrictedIDSet(), nil
	}

	roles, err := a.security.RolesForUser(ctx, tenant, user)
	if err != nil {
		return systems.IDSet{}, &ierrors.Error{
			Code: ierrors.EDelegate,
			Msg:  "unable to list role memberships",
			Op:   "authorizer.AllowedSystemIDs",
			Err:  err,
		}
	}

	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		if id, ok := systems.ParseReadRole(role); ok {
			ids = append(ids, id)
		}
	}
	return systems.IDSet{IDs: ids}, nil
}

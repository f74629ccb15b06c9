package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/kit/metric"
)

// NewMetricsService wraps a SystemsService with RED instrumentation.
func NewMetricsService(reg prometheus.Registerer, underlying systems.SystemsService) *metricsService {
	return &metricsService{
		rec:        metric.New(reg, "systems"),
		underlying: underlying,
	}
}

type metricsService struct {
	rec        *metric.REDClient
	underlying systems.SystemsService
}

var _ systems.SystemsService = (*metricsService)(nil)

func (m metricsService) CreateSystem(ctx context.Context, caller systems.CallerIdentity, req systems.CreateSystemRequest) (int64, error) {
	rec := m.rec.Record("create_system")
	seqID, err := m.underlying.CreateSystem(ctx, caller, req)
	return seqID, rec(err)
}

func (m metricsService) GetSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, opts systems.GetSystemOptions) (*systems.System, error) {
	rec := m.rec.Record("get_system")
	sys, err := m.underlying.GetSystem(ctx, caller, systemID, opts)
	return sys, rec(err)
}

func (m metricsService) ListSystems(ctx context.Context, caller systems.CallerIdentity, filter systems.SystemFilter, opt systems.FindOptions) ([]*systems.System, error) {
	rec := m.rec.Record("list_systems")
	ss, err := m.underlying.ListSystems(ctx, caller, filter, opt)
	return ss, rec(err)
}

func (m metricsService) PatchSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, upd systems.SystemUpdate, rawRequest string) (*systems.System, error) {
	rec := m.rec.Record("patch_system")
	sys, err := m.underlying.PatchSystem(ctx, caller, systemID, upd, rawRequest)
	return sys, rec(err)
}

func (m metricsService) PutSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, sys *systems.System, rawRequest string) (*systems.System, error) {
	rec := m.rec.Record("put_system")
	out, err := m.underlying.PutSystem(ctx, caller, systemID, sys, rawRequest)
	return out, rec(err)
}

func (m metricsService) EnableSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (int64, error) {
	rec := m.rec.Record("enable_system")
	n, err := m.underlying.EnableSystem(ctx, caller, systemID)
	return n, rec(err)
}

func (m metricsService) DisableSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (int64, error) {
	rec := m.rec.Record("disable_system")
	n, err := m.underlying.DisableSystem(ctx, caller, systemID)
	return n, rec(err)
}

func (m metricsService) SoftDeleteSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (int64, error) {
	rec := m.rec.Record("soft_delete_system")
	n, err := m.underlying.SoftDeleteSystem(ctx, caller, systemID)
	return n, rec(err)
}

func (m metricsService) UndeleteSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (int64, error) {
	rec := m.rec.Record("undelete_system")
	n, err := m.underlying.UndeleteSystem(ctx, caller, systemID)
	return n, rec(err)
}

func (m metricsService) HardDeleteSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) error {
	rec := m.rec.Record("hard_delete_system")
	err := m.underlying.HardDeleteSystem(ctx, caller, systemID)
	return rec(err)
}

func (m metricsService) ChangeSystemOwner(ctx context.Context, caller systems.CallerIdentity, systemID, newOwner string) (int64, error) {
	rec := m.rec.Record("change_system_owner")
	n, err := m.underlying.ChangeSystemOwner(ctx, caller, systemID, newOwner)
	return n, rec(err)
}

func (m metricsService) GrantUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, perms []systems.Permission, rawRequest string) error {
	rec := m.rec.Record("grant_user_perms")
	err := m.underlying.GrantUserPerms(ctx, caller, systemID, targetUser, perms, rawRequest)
	return rec(err)
}

func (m metricsService) RevokeUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, perms []systems.Permission, rawRequest string) (int64, error) {
	rec := m.rec.Record("revoke_user_perms")
	n, err := m.underlying.RevokeUserPerms(ctx, caller, systemID, targetUser, perms, rawRequest)
	return n, rec(err)
}

func (m metricsService) GetUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string) (systems.PermissionSet, error) {
	rec := m.rec.Record("get_user_perms")
	set, err := m.underlying.GetUserPerms(ctx, caller, systemID, targetUser)
	return set, rec(err)
}

func (m metricsService) SetUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, cred *systems.Credential, rawRequest string) error {
	rec := m.rec.Record("set_user_credential")
	err := m.underlying.SetUserCredential(ctx, caller, systemID, targetUser, cred, rawRequest)
	return rec(err)
}

func (m metricsService) RemoveUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string) error {
	rec := m.rec.Record("remove_user_credential")
	err := m.underlying.RemoveUserCredential(ctx, caller, systemID, targetUser)
	return rec(err)
}

func (m metricsService) GetUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	rec := m.rec.Record("get_user_credential")
	cred, err := m.underlying.GetUserCredential(ctx, caller, systemID, targetUser, method)
	return cred, rec(err)
}

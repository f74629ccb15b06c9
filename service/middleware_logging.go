package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gridpath/systems"
)

// NewLoggingService wraps a SystemsService with debug logging of every call
// and its duration.
func NewLoggingService(logger *zap.Logger, underlying systems.SystemsService) *loggingService {
	return &loggingService{
		logger:     logger,
		underlying: underlying,
	}
}

type loggingService struct {
	logger     *zap.Logger
	underlying systems.SystemsService
}

var _ systems.SystemsService = (*loggingService)(nil)

func (l loggingService) CreateSystem(ctx context.Context, caller systems.CallerIdentity, req systems.CreateSystemRequest) (seqID int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to create system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system create", dur)
	}(time.Now())
	return l.underlying.CreateSystem(ctx, caller, req)
}

func (l loggingService) GetSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, opts systems.GetSystemOptions) (sys *systems.System, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to get system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system get", dur)
	}(time.Now())
	return l.underlying.GetSystem(ctx, caller, systemID, opts)
}

func (l loggingService) ListSystems(ctx context.Context, caller systems.CallerIdentity, filter systems.SystemFilter, opt systems.FindOptions) (ss []*systems.System, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to list systems", zap.Error(err), dur)
			return
		}
		l.logger.Debug("systems list", dur)
	}(time.Now())
	return l.underlying.ListSystems(ctx, caller, filter, opt)
}

func (l loggingService) PatchSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, upd systems.SystemUpdate, rawRequest string) (sys *systems.System, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to patch system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system patch", dur)
	}(time.Now())
	return l.underlying.PatchSystem(ctx, caller, systemID, upd, rawRequest)
}

func (l loggingService) PutSystem(ctx context.Context, caller systems.CallerIdentity, systemID string, sys *systems.System, rawRequest string) (out *systems.System, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to put system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system put", dur)
	}(time.Now())
	return l.underlying.PutSystem(ctx, caller, systemID, sys, rawRequest)
}

func (l loggingService) EnableSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (n int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to enable system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system enable", dur)
	}(time.Now())
	return l.underlying.EnableSystem(ctx, caller, systemID)
}

func (l loggingService) DisableSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (n int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to disable system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system disable", dur)
	}(time.Now())
	return l.underlying.DisableSystem(ctx, caller, systemID)
}

func (l loggingService) SoftDeleteSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (n int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to soft delete system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system soft delete", dur)
	}(time.Now())
	return l.underlying.SoftDeleteSystem(ctx, caller, systemID)
}

func (l loggingService) UndeleteSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (n int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to undelete system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system undelete", dur)
	}(time.Now())
	return l.underlying.UndeleteSystem(ctx, caller, systemID)
}

func (l loggingService) HardDeleteSystem(ctx context.Context, caller systems.CallerIdentity, systemID string) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to hard delete system", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system hard delete", dur)
	}(time.Now())
	return l.underlying.HardDeleteSystem(ctx, caller, systemID)
}

func (l loggingService) ChangeSystemOwner(ctx context.Context, caller systems.CallerIdentity, systemID, newOwner string) (n int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to change system owner", zap.Error(err), dur)
			return
		}
		l.logger.Debug("system owner change", dur)
	}(time.Now())
	return l.underlying.ChangeSystemOwner(ctx, caller, systemID, newOwner)
}

func (l loggingService) GrantUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, perms []systems.Permission, rawRequest string) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to grant permissions", zap.Error(err), dur)
			return
		}
		l.logger.Debug("permissions grant", dur)
	}(time.Now())
	return l.underlying.GrantUserPerms(ctx, caller, systemID, targetUser, perms, rawRequest)
}

func (l loggingService) RevokeUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, perms []systems.Permission, rawRequest string) (n int64, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to revoke permissions", zap.Error(err), dur)
			return
		}
		l.logger.Debug("permissions revoke", dur)
	}(time.Now())
	return l.underlying.RevokeUserPerms(ctx, caller, systemID, targetUser, perms, rawRequest)
}

func (l loggingService) GetUserPerms(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string) (set systems.PermissionSet, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to get permissions", zap.Error(err), dur)
			return
		}
		l.logger.Debug("permissions get", dur)
	}(time.Now())
	return l.underlying.GetUserPerms(ctx, caller, systemID, targetUser)
}

func (l loggingService) SetUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, cred *systems.Credential, rawRequest string) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to set credential", zap.Error(err), dur)
			return
		}
		l.logger.Debug("credential set", dur)
	}(time.Now())
	return l.underlying.SetUserCredential(ctx, caller, systemID, targetUser, cred, rawRequest)
}

func (l loggingService) RemoveUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to remove credential", zap.Error(err), dur)
			return
		}
		l.logger.Debug("credential remove", dur)
	}(time.Now())
	return l.underlying.RemoveUserCredential(ctx, caller, systemID, targetUser)
}

func (l loggingService) GetUserCredential(ctx context.Context, caller systems.CallerIdentity, systemID, targetUser string, method systems.AuthnMethod) (cred *systems.Credential, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to get credential", zap.Error(err), dur)
			return
		}
		l.logger.Debug("credential get", dur)
	}(time.Now())
	return l.underlying.GetUserCredential(ctx, caller, systemID, targetUser, method)
}

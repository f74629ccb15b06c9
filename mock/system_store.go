package mock

import (
	"context"
	"fmt"

	"github.com/gridpath/systems"
)

var _ systems.SystemStore = (*SystemStore)(nil)

// SystemStore is a mock implementation of systems.SystemStore in the same
// style as SecurityService.
type SystemStore struct {
	CreateSystemFn        func(ctx context.Context, s *systems.System, rec *systems.UpdateRecord) (int64, error)
	SystemExistsFn        func(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error)
	GetSystemFn           func(ctx context.Context, tenant, id string, includeDeleted bool) (*systems.System, error)
	UpdateSystemFn        func(ctx context.Context, s *systems.System, children systems.ChildCollections, rec *systems.UpdateRecord) error
	UpdateSystemOwnerFn   func(ctx context.Context, tenant, id, newOwner string, rec *systems.UpdateRecord) error
	UpdateSystemEnabledFn func(ctx context.Context, tenant, id string, enabled bool, rec *systems.UpdateRecord) (int64, error)
	UpdateSystemDeletedFn func(ctx context.Context, tenant, id string, deleted bool, rec *systems.UpdateRecord) (int64, error)
	HardDeleteSystemFn    func(ctx context.Context, tenant, id string) error
	ListSystemsFn         func(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet, opt systems.FindOptions) ([]*systems.System, error)
	CountSystemsFn        func(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet) (int64, error)
	AppendUpdateFn        func(ctx context.Context, rec *systems.UpdateRecord) error
}

// NewSystemStore returns a mock where every method fails until its Fn field
// is assigned.
func NewSystemStore() *SystemStore {
	return &SystemStore{
		CreateSystemFn: func(ctx context.Context, s *systems.System, rec *systems.UpdateRecord) (int64, error) {
			return 0, fmt.Errorf("not implemented")
		},
		SystemExistsFn: func(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error) {
			return false, fmt.Errorf("not implemented")
		},
		GetSystemFn: func(ctx context.Context, tenant, id string, includeDeleted bool) (*systems.System, error) {
			return nil, fmt.Errorf("not implemented")
		},
		UpdateSystemFn: func(ctx context.Context, s *systems.System, children systems.ChildCollections, rec *systems.UpdateRecord) error {
			return fmt.Errorf("not implemented")
		},
		UpdateSystemOwnerFn: func(ctx context.Context, tenant, id, newOwner string, rec *systems.UpdateRecord) error {
			return fmt.Errorf("not implemented")
		},
		UpdateSystemEnabledFn: func(ctx context.Context, tenant, id string, enabled bool, rec *systems.UpdateRecord) (int64, error) {
			return 0, fmt.Errorf("not implemented")
		},
		UpdateSystemDeletedFn: func(ctx context.Context, tenant, id string, deleted bool, rec *systems.UpdateRecord) (int64, error) {
			return 0, fmt.Errorf("not implemented")
		},
		HardDeleteSystemFn: func(ctx context.Context, tenant, id string) error {
			return fmt.Errorf("not implemented")
		},
		ListSystemsFn: func(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet, opt systems.FindOptions) ([]*systems.System, error) {
			return nil, fmt.Errorf("not implemented")
		},
		CountSystemsFn: func(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet) (int64, error) {
			return 0, fmt.Errorf("not implemented")
		},
		AppendUpdateFn: func(ctx context.Context, rec *systems.UpdateRecord) error {
			return fmt.Errorf("not implemented")
		},
	}
}

func (s *SystemStore) CreateSystem(ctx context.Context, sys *systems.System, rec *systems.UpdateRecord) (int64, error) {
	return s.CreateSystemFn(ctx, sys, rec)
}

func (s *SystemStore) SystemExists(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error) {
	return s.SystemExistsFn(ctx, tenant, id, includeDeleted)
}

func (s *SystemStore) GetSystem(ctx context.Context, tenant, id string, includeDeleted bool) (*systems.System, error) {
	return s.GetSystemFn(ctx, tenant, id, includeDeleted)
}

func (s *SystemStore) UpdateSystem(ctx context.Context, sys *systems.System, children systems.ChildCollections, rec *systems.UpdateRecord) error {
	return s.UpdateSystemFn(ctx, sys, children, rec)
}

func (s *SystemStore) UpdateSystemOwner(ctx context.Context, tenant, id, newOwner string, rec *systems.UpdateRecord) error {
	return s.UpdateSystemOwnerFn(ctx, tenant, id, newOwner, rec)
}

func (s *SystemStore) UpdateSystemEnabled(ctx context.Context, tenant, id string, enabled bool, rec *systems.UpdateRecord) (int64, error) {
	return s.UpdateSystemEnabledFn(ctx, tenant, id, enabled, rec)
}

func (s *SystemStore) UpdateSystemDeleted(ctx context.Context, tenant, id string, deleted bool, rec *systems.UpdateRecord) (int64, error) {
	return s.UpdateSystemDeletedFn(ctx, tenant, id, deleted, rec)
}

func (s *SystemStore) HardDeleteSystem(ctx context.Context, tenant, id string) error {
	return s.HardDeleteSystemFn(ctx, tenant, id)
}

func (s *SystemStore) ListSystems(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet, opt systems.FindOptions) ([]*systems.System, error) {
	return s.ListSystemsFn(ctx, tenant, filter, allowed, opt)
}

func (s *SystemStore) CountSystems(ctx context.Context, tenant string, filter systems.SystemFilter, allowed systems.IDSet) (int64, error) {
	return s.CountSystemsFn(ctx, tenant, filter, allowed)
}

func (s *SystemStore) AppendUpdate(ctx context.Context, rec *systems.UpdateRecord) error {
	return s.AppendUpdateFn(ctx, rec)
}

// Package service implements the registry orchestrator: every exposed
// operation authorizes the caller, validates state, and keeps the local store
// and the external security delegate consistent through explicit compensation
// when a multi-step change fails partway.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/authorizer"
	ierrors "github.com/gridpath/systems/kit/errors"
)

var _ systems.SystemsService = (*Service)(nil)

// Service holds no mutable state of its own; all shared state lives in the
// store and the delegate, so a single instance serves unbounded concurrent
// requests.
type Service struct {
	log      *zap.Logger
	store    systems.SystemStore
	security systems.SecurityService
	auth     *authorizer.Authorizer
	clock    clock.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithClock substitutes the time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithAuthorizer substitutes a fully configured decision engine, e.g. with
// non-default service allow-lists.
func WithAuthorizer(a *authorizer.Authorizer) Option {
	return func(s *Service) { s.auth = a }
}

func NewService(log *zap.Logger, store systems.SystemStore, security systems.SecurityService, opts ...Option) *Service {
	s := &Service{
		log:      log,
		store:    store,
		security: security,
		auth:     authorizer.New(security, log),
		clock:    clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// loadForAuth fetches the system named by an operation so its owner and
// surrogate id are available to the decision engine. A missing system
// surfaces as ENotFound before any authorization question is asked.
func (s *Service) loadForAuth(ctx context.Context, tenant, systemID string, includeDeleted bool) (*systems.System, error) {
	return s.store.GetSystem(ctx, tenant, systemID, includeDeleted)
}

// updateRecord assembles the audit row for a mutation. desc is serialized as
// the redacted change description; callers must redact secrets first.
func (s *Service) updateRecord(sys *systems.System, op systems.Operation, desc interface{}, rawRequest string) *systems.UpdateRecord {
	d, err := json.Marshal(desc)
	if err != nil {
		// description is advisory; an unmarshalable one must not fail the operation
		s.log.Warn("unable to serialize audit description",
			zap.String("operation", string(op)), zap.Error(err))
		d = []byte("{}")
	}
	return &systems.UpdateRecord{
		Tenant:      sys.Tenant,
		SystemID:    sys.ID,
		Operation:   op,
		Description: d,
		RawRequest:  rawRequest,
		SystemUUID:  sys.UUID,
		Created:     s.now(),
	}
}

// delegateErr classifies a failed delegate round trip, leaving already
// classified errors untouched.
func delegateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if ierrors.ErrorCode(err) == ierrors.EDelegate {
		return err
	}
	return &ierrors.Error{
		Code: ierrors.EDelegate,
		Msg:  "security delegate call failed",
		Op:   op,
		Err:  err,
	}
}

func zapTenant(tenant string) zap.Field { return zap.String("tenant", tenant) }
func zapSystem(id string) zap.Field     { return zap.String("system_id", id) }
func zapSeqID(seqID int64) zap.Field    { return zap.Int64("seq_id", seqID) }

func invalidf(format string, args ...interface{}) error {
	return &ierrors.Error{
		Code: ierrors.EInvalid,
		Msg:  fmt.Sprintf(format, args...),
	}
}

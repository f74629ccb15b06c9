package service

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// sagaStep pairs a forward action with the compensation that undoes it. A nil
// undo marks a step with no external effect to reverse.
type sagaStep struct {
	name string
	run  func(context.Context) error
	undo func(context.Context) error
}

// saga runs an ordered step list with reverse-order compensation. There is no
// cross-service transaction between the store and the delegate, so this is
// the only consistency mechanism multi-step operations have: each completed
// step is undone independently on failure, compensation errors are logged and
// collected but never mask the error that triggered them.
type saga struct {
	log   *zap.Logger
	name  string
	steps []sagaStep
	done  []sagaStep
}

func newSaga(log *zap.Logger, name string) *saga {
	return &saga{log: log, name: name}
}

func (s *saga) add(name string, run, undo func(context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, run: run, undo: undo})
}

// run executes the steps in order. On the first failure every completed step
// is compensated in reverse order and the triggering error is returned.
func (s *saga) run(ctx context.Context) error {
	for _, st := range s.steps {
		if err := st.run(ctx); err != nil {
			s.log.Warn("saga step failed, compensating",
				zap.String("saga", s.name),
				zap.String("step", st.name),
				zap.Error(err))
			s.compensate(ctx)
			return err
		}
		s.done = append(s.done, st)
	}
	return nil
}

// compensate is best effort: every compensation is attempted regardless of
// individual failures. A crash partway through can leave orphaned delegate
// artifacts; that residual risk is accepted and logged, never hidden.
func (s *saga) compensate(ctx context.Context) {
	var failed *multierror.Error
	for i := len(s.done) - 1; i >= 0; i-- {
		st := s.done[i]
		if st.undo == nil {
			continue
		}
		if err := st.undo(ctx); err != nil {
			failed = multierror.Append(failed, fmt.Errorf("%s: %w", st.name, err))
		}
	}
	if err := failed.ErrorOrNil(); err != nil {
		s.log.Warn("saga compensation incomplete, delegate artifacts may be orphaned",
			zap.String("saga", s.name),
			zap.Error(err))
	}
}

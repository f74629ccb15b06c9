package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	ierrors "github.com/gridpath/systems/kit/errors"
)

func TestErrorMessage(t *testing.T) {
	e := &ierrors.Error{
		Code: ierrors.EDelegate,
		Msg:  "security delegate call failed",
		Op:   "service.CreateSystem",
		Err:  errors.New("connection refused"),
	}
	require.Equal(t, "security delegate call failed: connection refused", e.Error())
	require.Equal(t, "security delegate call failed", ierrors.ErrorMessage(e))
	require.Equal(t, "service.CreateSystem", ierrors.ErrorOp(e))
}

func TestErrorCode(t *testing.T) {
	require.Empty(t, ierrors.ErrorCode(nil))

	// plain errors classify as internal
	require.Equal(t, ierrors.EInternal, ierrors.ErrorCode(errors.New("boom")))

	// the outermost code wins
	e := &ierrors.Error{
		Code: ierrors.EDelegate,
		Err:  &ierrors.Error{Code: ierrors.ENotFound},
	}
	require.Equal(t, ierrors.EDelegate, ierrors.ErrorCode(e))

	// an uncoded wrapper defers to the wrapped error
	e = &ierrors.Error{Op: "service.GetSystem", Err: &ierrors.Error{Code: ierrors.ENotFound}}
	require.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(e))

	// errors.As digs through fmt wrapping
	wrapped := fmt.Errorf("context: %w", &ierrors.Error{Code: ierrors.EConflict})
	require.Equal(t, ierrors.EConflict, ierrors.ErrorCode(wrapped))
}

func TestErrorJSONRoundTrip(t *testing.T) {
	e := &ierrors.Error{
		Code: ierrors.EDelegate,
		Msg:  "unable to check permissions",
		Op:   "authorizer.isPermittedAny",
		Err: &ierrors.Error{
			Code: ierrors.EUnavailable,
			Msg:  "delegate request POST /perms/isPermittedAny failed",
			Err:  errors.New("dial tcp: connection refused"),
		},
	}

	b, err := json.Marshal(e)
	require.NoError(t, err)

	got := new(ierrors.Error)
	require.NoError(t, json.Unmarshal(b, got))
	require.Equal(t, e.Code, got.Code)
	require.Equal(t, e.Msg, got.Msg)
	require.Equal(t, e.Op, got.Op)
	require.Equal(t, e.Error(), got.Error())
}

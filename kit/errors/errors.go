// Package errors carries the registry's error taxonomy. Codes target
// automated handlers so recovery and HTTP mapping can occur without parsing
// messages; Msg and Op form a logical stack trace for operators.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error code constants. All service-layer failures are classified by one of
// these so the API layer and tests never inspect message text.
const (
	EInternal     = "internal error"
	ENotFound     = "not found"
	EConflict     = "conflict"      // resource already exists
	EInvalid      = "invalid"       // malformed or missing input
	EInvalidState = "invalid state" // structurally impossible request
	EUnauthorized = "unauthorized"
	EUnavailable  = "unavailable"
	EDelegate     = "delegate failure" // security delegate round trip failed
)

// Error is the registry's error value.
//
// To create a simple error,
//	&Error{
//	    Code: ENotFound,
//	}
// To show where the error happens, add Op.
//	&Error{
//	    Code: ENotFound,
//	    Op: "store.GetSystem",
//	}
// To show an error with an unpredictable value, add the value in Msg.
//	&Error{
//	    Code: EConflict,
//	    Msg: fmt.Sprintf("system %q already exists", id),
//	}
// To wrap another error,
//	&Error{
//	    Code: EDelegate,
//	    Err: err,
//	}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap exposes the wrapped error to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the code of the root error, if available; otherwise
// returns EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return EInternal
	}

	if e.Code != "" {
		return e.Code
	}

	if e.Err != nil {
		return ErrorCode(e.Err)
	}

	return EInternal
}

// ErrorOp returns the op of the error, if available; otherwise the empty string.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return ""
	}

	if e.Op != "" {
		return e.Op
	}

	if e.Err != nil {
		return ErrorOp(e.Err)
	}

	return ""
}

// ErrorMessage returns the human-readable message of the error, if available.
// Otherwise returns a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return "An internal error has occurred."
	}

	if e.Msg != "" {
		return e.Msg
	}

	if e.Err != nil {
		return ErrorMessage(e.Err)
	}

	return "An internal error has occurred."
}

// errEncode is a JSON encoding helper handling the recursive stack of errors.
type errEncode struct {
	Code string      `json:"code"`
	Msg  string      `json:"message,omitempty"`
	Op   string      `json:"op,omitempty"`
	Err  interface{} `json:"error,omitempty"`
}

// MarshalJSON recursively marshals the stack of Err.
func (e *Error) MarshalJSON() ([]byte, error) {
	ee := errEncode{
		Code: e.Code,
		Msg:  e.Msg,
		Op:   e.Op,
	}
	if e.Err != nil {
		if inner, ok := e.Err.(*Error); ok {
			ee.Err = inner
		} else {
			ee.Err = e.Err.Error()
		}
	}
	return json.Marshal(ee)
}

// UnmarshalJSON recursively unmarshals the error stack.
func (e *Error) UnmarshalJSON(b []byte) error {
	ee := new(errEncode)
	err := json.Unmarshal(b, ee)
	e.Code = ee.Code
	e.Msg = ee.Msg
	e.Op = ee.Op
	e.Err = decodeInternalError(ee.Err)
	return err
}

func decodeInternalError(target interface{}) error {
	if errStr, ok := target.(string); ok {
		return errors.New(errStr)
	}
	if m, ok := target.(map[string]interface{}); ok {
		inner := new(Error)
		if code, ok := m["code"].(string); ok {
			inner.Code = code
		}
		if msg, ok := m["message"].(string); ok {
			inner.Msg = msg
		}
		if op, ok := m["op"].(string); ok {
			inner.Op = op
		}
		inner.Err = decodeInternalError(m["error"])
		return inner
	}
	return nil
}

package sqlite

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrorCode categorizes errors returned by this package.
type ErrorCode string

const (
	// ErrCodeOpen indicates the database file could not be opened or created.
	ErrCodeOpen ErrorCode = "OPEN_ERROR"

	// ErrCodePrepare indicates malformed SQL or a schema mismatch.
	ErrCodePrepare ErrorCode = "PREPARE_ERROR"

	// ErrCodeBind indicates an unknown placeholder name or a rejected value.
	ErrCodeBind ErrorCode = "BIND_ERROR"

	// ErrCodeTypeMismatch indicates a Value was read through the wrong accessor.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeStep indicates an engine fault while stepping (not exhaustion).
	ErrCodeStep ErrorCode = "STEP_ERROR"

	// ErrCodeSavepoint indicates a misordered or engine-rejected savepoint operation.
	ErrCodeSavepoint ErrorCode = "SAVEPOINT_ERROR"

	// ErrCodeEngineBusy indicates the database file is held by another connection.
	ErrCodeEngineBusy ErrorCode = "ENGINE_BUSY"

	// ErrCodeEngineLocked indicates a conflicting lock within the same connection.
	ErrCodeEngineLocked ErrorCode = "ENGINE_LOCKED"

	// ErrCodeNoPriorInsert indicates LastInsertID was called before any insert.
	ErrCodeNoPriorInsert ErrorCode = "NO_PRIOR_INSERT"

	// ErrCodeClosed indicates use of a Conn after Close.
	ErrCodeClosed ErrorCode = "CONN_CLOSED"
)

// Error is the structured error returned by every operation in this package.
//
// Message carries the engine's diagnostic text verbatim when the failure came
// from the engine, so callers can branch on Code and still log the cause.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed ("open", "prepare", "step", ...).
	Op string

	// Message is the engine diagnostic or a description of the misuse.
	Message string

	// EngineCode is the primary SQLite result code, or 0 when not engine-reported.
	EngineCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying engine error.
func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is (or wraps) an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsBusy reports whether err is a transient contention error
// (ENGINE_BUSY or ENGINE_LOCKED) that a caller may retry.
func IsBusy(err error) bool {
	return HasCode(err, ErrCodeEngineBusy) || HasCode(err, ErrCodeEngineLocked)
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// engineError translates an error reported by the engine. Busy and locked
// results keep their own codes regardless of the phase that produced them.
func engineError(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	e := &Error{Code: code, Op: op, Message: err.Error(), Err: err}

	var se sqlite3.Error
	if errors.As(err, &se) {
		e.EngineCode = int(se.Code)
		switch se.Code {
		case sqlite3.ErrBusy:
			e.Code = ErrCodeEngineBusy
		case sqlite3.ErrLocked:
			e.Code = ErrCodeEngineLocked
		}
	}
	return e
}

// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-arith.

package api

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Concrete errors wrap one of these so
// callers can classify with errors.Is.
var (
	// ErrTransport marks bind/listen/accept/read/write failures.
	ErrTransport = errors.New("transport error")
	// ErrProtocol marks a request that could not be answered with a value.
	ErrProtocol = errors.New("protocol error")
	// ErrCapacityExceeded is returned when the connection set is full.
	ErrCapacityExceeded = errors.New("connection capacity exceeded")
	// ErrWaitFailed marks a failure of the readiness-wait primitive itself.
	ErrWaitFailed = errors.New("readiness wait failed")
	// ErrServerClosed is returned by Run after the server was shut down.
	ErrServerClosed = errors.New("server closed")
	// ErrNotSupported is returned by platform stubs.
	ErrNotSupported = errors.New("operation not supported")
	// ErrInvalidArgument reports bad configuration or call arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeTransport
	ErrCodeProtocol
	ErrCodeCapacityExceeded
	ErrCodeNotSupported
	ErrCodeInternal
)

// String returns the short name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeCapacityExceeded:
		return "capacity_exceeded"
	case ErrCodeNotSupported:
		return "not_supported"
	default:
		return "internal"
	}
}

// sentinel maps a code to the taxonomy error it unwraps to.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeTransport:
		return ErrTransport
	case ErrCodeProtocol:
		return ErrProtocol
	case ErrCodeCapacityExceeded:
		return ErrCapacityExceeded
	case ErrCodeNotSupported:
		return ErrNotSupported
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes both the cause and the taxonomy sentinel of the code.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if s := e.Code.sentinel(); s != nil {
		errs = append(errs, s)
	}
	return errs
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or a code
// derived from the taxonomy sentinels.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrProtocol):
		return ErrCodeProtocol
	case errors.Is(err, ErrCapacityExceeded):
		return ErrCodeCapacityExceeded
	case errors.Is(err, ErrTransport):
		return ErrCodeTransport
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	}
	return ErrCodeInternal
}

// File: internal/calc/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package calc

import (
	"fmt"

	"github.com/momentics/hioload-arith/api"
)

// Kind classifies a protocol failure.
type Kind int

const (
	MalformedInput Kind = iota + 1
	UnsupportedOperator
	DivisionByZero
	RequestTooLarge
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed_input"
	case UnsupportedOperator:
		return "unsupported_operator"
	case DivisionByZero:
		return "division_by_zero"
	case RequestTooLarge:
		return "request_too_large"
	default:
		return "unknown"
	}
}

// ProtocolError is a request that cannot be answered with a number.
type ProtocolError struct {
	Kind Kind
	Op   rune // offending operator, UnsupportedOperator only
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case UnsupportedOperator:
		return fmt.Sprintf("unsupported operator '%c'", e.Op)
	case DivisionByZero:
		return "division by zero"
	case RequestTooLarge:
		return "request too large"
	default:
		return "malformed input"
	}
}

// Unwrap lets errors.Is(err, api.ErrProtocol) match.
func (e *ProtocolError) Unwrap() error { return api.ErrProtocol }

var (
	errMalformed = &ProtocolError{Kind: MalformedInput}
	errDivByZero = &ProtocolError{Kind: DivisionByZero}
)

// ErrRequestTooLarge is reported for requests that exceed the read buffer.
var ErrRequestTooLarge error = &ProtocolError{Kind: RequestTooLarge}

// KindOf returns the protocol failure kind carried by err, or 0.
func KindOf(err error) Kind {
	if pe, ok := asProtocolError(err); ok {
		return pe.Kind
	}
	return 0
}

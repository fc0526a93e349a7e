// File: internal/calc/eval.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package calc

import "errors"

// Result is a successfully computed value.
type Result struct {
	Value float64
}

// Evaluate applies the operator with IEEE-754 double semantics. Division by
// zero, positive or negative, is reported instead of yielding Inf or NaN.
func Evaluate(e Expression) (Result, error) {
	switch e.Op {
	case '+':
		return Result{Value: e.Left + e.Right}, nil
	case '-':
		return Result{Value: e.Left - e.Right}, nil
	case '*':
		return Result{Value: e.Left * e.Right}, nil
	case '/':
		if e.Right == 0 {
			return Result{}, errDivByZero
		}
		return Result{Value: e.Left / e.Right}, nil
	default:
		return Result{}, &ProtocolError{Kind: UnsupportedOperator, Op: e.Op}
	}
}

// Compute parses and evaluates one request buffer.
func Compute(buf []byte) (Result, error) {
	e, err := Parse(buf)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(e)
}

func asProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

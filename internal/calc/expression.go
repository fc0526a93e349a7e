// File: internal/calc/expression.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package calc

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expression is one parsed request: two operands and an operator.
type Expression struct {
	Left  float64
	Op    rune
	Right float64
}

// Parse extracts "<operand> <operator> <operand>" from buf. Tokens past the
// third are ignored, as is everything from the first NUL byte on, so
// C clients that send the string terminator are understood. buf is not
// modified.
func Parse(buf []byte) (Expression, error) {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	fields := strings.Fields(string(buf))
	if len(fields) < 3 {
		return Expression{}, errMalformed
	}

	left, ok := parseOperand(fields[0])
	if !ok {
		return Expression{}, errMalformed
	}
	op, _ := utf8.DecodeRuneInString(fields[1])
	if op == utf8.RuneError {
		op = rune(fields[1][0])
	}
	if !isOperator(op) {
		return Expression{}, &ProtocolError{Kind: UnsupportedOperator, Op: op}
	}
	right, ok := parseOperand(fields[2])
	if !ok {
		return Expression{}, errMalformed
	}
	return Expression{Left: left, Op: op, Right: right}, nil
}

func isOperator(r rune) bool {
	switch r {
	case '+', '-', '*', '/':
		return true
	}
	return false
}

// parseOperand accepts plain decimal notation only: sign, digits, point and
// exponent. Hex floats, underscores, inf and nan are rejected.
func parseOperand(tok string) (float64, bool) {
	for i := 0; i < len(tok); i++ {
		switch c := tok[i]; {
		case c >= '0' && c <= '9':
		case c == '+', c == '-', c == '.', c == 'e', c == 'E':
		default:
			return 0, false
		}
	}
	// Out-of-range values come back as ±Inf with ErrRange; reject them too.
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

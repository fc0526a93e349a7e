// File: internal/calc/format.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package calc

import "strconv"

const (
	resultPrefix = "Result: "
	errorPrefix  = "Error: "
)

// FormatResponse renders the wire reply for one request: "Result: 7.00" on
// success, "Error: <reason>" otherwise. No terminator is appended.
func FormatResponse(r Result, err error) []byte {
	if err == nil {
		out := make([]byte, 0, len(resultPrefix)+24)
		out = append(out, resultPrefix...)
		return strconv.AppendFloat(out, r.Value, 'f', 2, 64)
	}
	reason := "malformed input"
	if pe, ok := asProtocolError(err); ok {
		reason = pe.Error()
	}
	return append([]byte(errorPrefix), reason...)
}

// File: internal/calc/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package calc

import (
	"context"

	"github.com/momentics/hioload-arith/api"
)

// Handler answers arithmetic requests. It is the innermost link of the
// server's handler chain.
type Handler struct{}

var _ api.Handler = Handler{}

// Handle evaluates req and returns the formatted reply together with the
// classification error, if any.
func (Handler) Handle(_ context.Context, req []byte) ([]byte, error) {
	r, err := Compute(req)
	return FormatResponse(r, err), err
}

package api_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/momentics/hioload-arith/api"
)

func TestErrorUnwrapsToTaxonomy(t *testing.T) {
	cause := errors.New("boom")
	err := api.WrapError(api.ErrCodeTransport, "accept", cause).WithContext("fd", 7)

	if !errors.Is(err, api.ErrTransport) {
		t.Fatal("expected errors.Is(err, ErrTransport)")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if errors.Is(err, api.ErrProtocol) {
		t.Fatal("transport error must not classify as protocol")
	}
	if !strings.Contains(err.Error(), "accept: boom") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want api.ErrorCode
	}{
		{nil, api.ErrCodeOK},
		{api.NewError(api.ErrCodeCapacityExceeded, "full"), api.ErrCodeCapacityExceeded},
		{fmt.Errorf("read: %w", api.ErrTransport), api.ErrCodeTransport},
		{fmt.Errorf("x: %w", api.ErrProtocol), api.ErrCodeProtocol},
		{api.ErrCapacityExceeded, api.ErrCodeCapacityExceeded},
		{errors.New("other"), api.ErrCodeInternal},
	}
	for _, tt := range tests {
		if got := api.CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	if got := (api.EventRead | api.EventError).String(); got != "r-e" {
		t.Errorf("got %q", got)
	}
	if !(api.EventRead | api.EventWrite).Has(api.EventWrite) {
		t.Error("Has(EventWrite) = false")
	}
}

func TestConnStateString(t *testing.T) {
	if api.ConnOpen.String() != "open" || api.ConnClosing.String() != "closing" {
		t.Fatal("unexpected ConnState names")
	}
}

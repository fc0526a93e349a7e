// File: server/middleware.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Built-in middleware: request logging, Prometheus metrics, OpenTelemetry
// spans and panic recovery.

package server

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/control"
	"github.com/momentics/hioload-arith/internal/calc"
)

const tracerName = "github.com/momentics/hioload-arith/server"

// Middleware wraps a handler with one cross-cutting concern.
type Middleware func(api.Handler) api.Handler

// NewHandlerChain wraps base so that mw[0] sees the request first.
func NewHandlerChain(base api.Handler, mw ...Middleware) api.Handler {
	for _, wrap := range slices.Backward(mw) {
		if wrap != nil {
			base = wrap(base)
		}
	}
	return base
}

// outcome labels a handler result for logs and metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := calc.KindOf(err); k != 0 {
		return k.String()
	}
	return "internal"
}

// Logging logs every request and its reply at debug level.
func Logging(log zerolog.Logger) Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
			resp, err := next.Handle(ctx, req)
			ev := log.Debug()
			if p, ok := api.PeerFromContext(ctx); ok {
				ev = ev.Int("fd", p.Fd)
			}
			ev.Bytes("request", req).
				Bytes("response", resp).
				Str("result", outcome(err)).
				Msg("request served")
			return resp, err
		})
	}
}

// Metrics counts requests by outcome and observes handler latency.
func Metrics(m *control.Metrics) Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next.Handle(ctx, req)
			m.ObserveRequest(outcome(err), time.Since(start))
			return resp, err
		})
	}
}

// Tracing wraps each request in a server span.
func Tracing(tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(tracerName)
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
			attrs := []attribute.KeyValue{attribute.Int("arith.request_bytes", len(req))}
			if p, ok := api.PeerFromContext(ctx); ok {
				attrs = append(attrs,
					attribute.Int("arith.fd", p.Fd),
					attribute.String("net.peer.addr", p.Remote),
				)
			}
			ctx, span := tracer.Start(ctx, "arith.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			resp, err := next.Handle(ctx, req)
			span.SetAttributes(attribute.String("arith.result", outcome(err)))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return resp, err
		})
	}
}

// Recover turns a handler panic into a malformed-input reply so the loop
// keeps running and the peer still gets exactly one response.
func Recover(log zerolog.Logger) Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("panic", fmt.Sprint(r)).Msg("handler panic recovered")
					err = fmt.Errorf("handler panic: %v: %w", r, api.ErrProtocol)
					resp = calc.FormatResponse(calc.Result{}, err)
				}
			}()
			return next.Handle(ctx, req)
		})
	}
}

// Package httpmiddleware provides the net/http middleware chain used by the
// cart API: panic recovery, request IDs, CORS, rate limiting, compression,
// request-scoped logging and OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost one,
// so it sees the request first.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// writeError writes the API error body {"code":N,"message":"..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

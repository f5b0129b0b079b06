package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/session"
)

// badRequestError marks malformed client input.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *badRequestError) Unwrap() error { return e.err }

// mapError converts domain errors to an HTTP status and client message.
func mapError(err error) (int, string) {
	var badReq *badRequestError
	if errors.As(err, &badReq) {
		return http.StatusBadRequest, badReq.Error()
	}

	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound, session.ErrNotFound.Error()
	}

	var rangeErr *cart.IndexOutOfRangeError
	if errors.As(err, &rangeErr) {
		return http.StatusUnprocessableEntity, rangeErr.Error()
	}

	if errors.Is(err, cart.ErrInvalidDraft) {
		return http.StatusBadRequest, cart.ErrInvalidDraft.Error()
	}

	if errors.Is(err, session.ErrLimitReached) {
		return http.StatusServiceUnavailable, session.ErrLimitReached.Error()
	}

	return http.StatusInternalServerError, "internal server error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

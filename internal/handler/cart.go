package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ListCatalog returns the product list offered for picking.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.List(r.Context())
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, "list catalog"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCatalog(e, entries)
	})
}

// CreateSession starts a new session with the seeded cart.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.carts.NewSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+st.SessionID)
	writeState(w, http.StatusCreated, st)
}

// GetSession returns the current session state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.carts.View(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeState(w, http.StatusOK, st)
}

// EndSession discards the session.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.EndSession(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem deletes the cart line at the {index} position.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, &badRequestError{msg: "index must be an integer"})
		return
	}
	st, err := h.carts.Remove(r.Context(), sessionID(r), index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeState(w, http.StatusOK, st)
}

// AddItem appends the draft from the request body to the cart. With an
// empty body the session's own draft is committed instead.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	id := sessionID(r)
	if len(body) == 0 {
		st, err := h.carts.CommitDraft(ctx, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeState(w, http.StatusOK, st)
		return
	}

	dec, err := bodyDecoder(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := decodeDraft(dec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.carts.AddItem(ctx, id, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeState(w, http.StatusOK, st)
}

// SetDraft replaces the session draft with the request body.
func (h *Handler) SetDraft(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dec, err := bodyDecoder(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := decodeDraft(dec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.carts.SetDraft(r.Context(), sessionID(r), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeState(w, http.StatusOK, st)
}

// SelectCatalog fills the session draft from a catalog position and quantity.
func (h *Handler) SelectCatalog(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dec, err := bodyDecoder(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := decodeSelection(dec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.carts.SelectCatalog(r.Context(), sessionID(r), sel.Index, sel.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeState(w, http.StatusOK, st)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(body) > maxBodyBytes {
		return nil, &badRequestError{msg: "request body too large"}
	}
	return body, nil
}

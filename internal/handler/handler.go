package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shopping-cart/internal/domain/cartsvc"
	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

// maxBodyBytes bounds request bodies; drafts are tiny.
const maxBodyBytes = 64 << 10

// Handler serves the cart render-surface API. Every intent endpoint replies
// with the full session state so the client re-renders from it.
type Handler struct {
	carts   *cartsvc.Service
	catalog catalog.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(carts *cartsvc.Service, entries catalog.Repository) *Handler {
	return &Handler{
		carts:   carts,
		catalog: entries,
	}
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/catalog", h.ListCatalog)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.EndSession)
			r.Post("/items", h.AddItem)
			r.Delete("/items/{index}", h.RemoveItem)
			r.Put("/draft", h.SetDraft)
			r.Post("/draft/select", h.SelectCatalog)
		})
	})
	return r
}

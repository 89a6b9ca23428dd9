package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poscart/fulfillment/internal/auth"
	"github.com/poscart/fulfillment/internal/cart"
)

type CartOpRequest struct {
	Barcode  string `json:"barcode"`
	Action   string `json:"action"`
	Quantity int    `json:"quantity"`
}

type CartHandler struct {
	Engine *cart.Engine
}

func (h *CartHandler) Register(r *chi.Mux, authmw func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authmw)
		r.Post("/op", h.cartOp)
		r.Get("/op", h.getCart)
	})
}

func (h *CartHandler) cartOp(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "could not validate credentials"})
		return
	}
	var req CartOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.ApplyOp(ctx, caller.Identity, req.Barcode, req.Action, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "could not validate credentials"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Engine.GetCart(ctx, caller.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

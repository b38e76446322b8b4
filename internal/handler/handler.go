// Package handler exposes the checkout flow over HTTP: cart intake, the
// token-gated checkout page, form submission, and the gateway webhook.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/checkout-bridge/internal/checkout"
	"github.com/xenking/checkout-bridge/internal/render"
)

// Handler routes HTTP requests to the checkout service.
type Handler struct {
	checkout *checkout.Service
	renderer render.Renderer
}

// New constructs a Handler.
func New(svc *checkout.Service, renderer render.Renderer) *Handler {
	return &Handler{
		checkout: svc,
		renderer: renderer,
	}
}

// Register mounts all checkout routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/cart", h.CartIntake)
	r.Get("/checkout", h.CheckoutPage)
	r.Post("/api/checkout", h.Submit)
	r.Post("/api/webhook", h.Webhook)
}

// writeJSON writes v with the given status. Encoding failures are logged;
// the status line is already on the wire at that point.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

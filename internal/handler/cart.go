package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/checkout-bridge/internal/checkout"
	"github.com/xenking/checkout-bridge/internal/session"
)

type intakeResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl"`
}

// CartIntake accepts the raw storefront cart and responds with the checkout
// redirect URL carrying the session token.
func (h *Handler) CartIntake(w http.ResponseWriter, r *http.Request) {
	var req checkout.IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid cart payload")
		return
	}

	redirectURL, err := h.checkout.Intake(r.Context(), req)
	if err != nil {
		zctx.From(r.Context()).Error("Cart intake failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	writeJSON(w, r, http.StatusOK, intakeResponse{
		Success:     true,
		RedirectURL: redirectURL,
	})
}

// CheckoutPage consumes the session token and renders the checkout form.
// Both failure states are terminal for the token: not found and expired get
// distinct statuses so the storefront can word the message accordingly.
func (h *Handler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing checkout token", http.StatusBadRequest)
		return
	}

	c, err := h.checkout.ConsumeSession(r.Context(), token)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "checkout session not found", http.StatusNotFound)
		return
	case errors.Is(err, session.ErrExpired):
		http.Error(w, "checkout session expired", http.StatusGone)
		return
	default:
		zctx.From(r.Context()).Error("Session consume failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page, err := h.renderer.RenderCheckout(r.Context(), c)
	if err != nil {
		zctx.From(r.Context()).Error("Checkout render failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

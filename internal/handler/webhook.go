package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/checkout-bridge/internal/payment"
)

// webhookBodyLimit bounds inbound webhook payloads.
const webhookBodyLimit = 1 << 20

type webhookAck struct {
	Received bool `json:"received"`
}

// Webhook verifies the gateway notification signature from the hmac query
// parameter and reconciles the payment result. Once the signature checks
// out the endpoint always acknowledges with 200, since the gateway retries
// non-2xx responses indefinitely.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	signature := r.URL.Query().Get("hmac")
	if signature == "" {
		writeError(w, r, http.StatusBadRequest, "missing hmac parameter")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.checkout.HandleWebhook(r.Context(), body, signature); err != nil {
		if errors.Is(err, payment.ErrBadSignature) {
			zctx.From(r.Context()).Warn("Webhook signature rejected")
			writeError(w, r, http.StatusBadRequest, "signature verification failed")
			return
		}
		zctx.From(r.Context()).Error("Webhook rejected", zap.Error(err))
		writeError(w, r, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	writeJSON(w, r, http.StatusOK, webhookAck{Received: true})
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/checkout-bridge/internal/checkout"
	"github.com/xenking/checkout-bridge/internal/commerce"
	"github.com/xenking/checkout-bridge/internal/domain/cart"
	"github.com/xenking/checkout-bridge/internal/payment"
	"github.com/xenking/checkout-bridge/internal/upstream"
)

type submitItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type submitRequest struct {
	CartItems     []submitItem        `json:"cartItems"`
	Customer      commerce.Customer   `json:"customer"`
	Shipping      commerce.Address    `json:"shippingAddress"`
	BillingData   payment.BillingData `json:"billingData"`
	PaymentMethod string              `json:"paymentMethod"`
}

type submitResponse struct {
	Success     bool     `json:"success"`
	PaymentURL  string   `json:"paymentUrl,omitempty"`
	RedirectURL string   `json:"redirectUrl,omitempty"`
	OrderIDs    orderIDs `json:"orderIds"`
}

type orderIDs struct {
	Commerce int64 `json:"commerce"`
	Gateway  int64 `json:"gateway,omitempty"`
}

// Submit runs the checkout submission sequence and returns either a hosted
// payment page URL or a confirmation redirect.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid submission payload")
		return
	}

	items := make([]cart.Item, len(req.CartItems))
	for i, it := range req.CartItems {
		items[i] = cart.Item{
			ID:        it.ID,
			Name:      it.Name,
			Category:  it.Category,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
		}
	}

	result, err := h.checkout.Submit(r.Context(), checkout.SubmitRequest{
		Items:    items,
		Customer: req.Customer,
		Shipping: req.Shipping,
		Billing:  req.BillingData,
		Method:   payment.Method(req.PaymentMethod),
	})
	if err != nil {
		h.submitError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, submitResponse{
		Success:     true,
		PaymentURL:  result.PaymentURL,
		RedirectURL: result.RedirectURL,
		OrderIDs: orderIDs{
			Commerce: result.CommerceOrderID,
			Gateway:  result.GatewayOrderID,
		},
	})
}

// submitError maps orchestration failures onto the response taxonomy:
// configuration errors are fatal 500s with the missing keys spelled out,
// upstream rejections keep their original status and payload, validation
// errors are 4xx, everything else is a generic 500.
func (h *Handler) submitError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var cfgErr *checkout.ConfigError
	if errors.As(err, &cfgErr) {
		lg.Error("Submission rejected: incomplete configuration", zap.Strings("missing", cfgErr.Missing))
		writeError(w, r, http.StatusInternalServerError, cfgErr.Error())
		return
	}

	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		lg.Error("Submission rejected upstream",
			zap.String("service", upErr.Service),
			zap.Int("status", upErr.Status),
			zap.ByteString("payload", upErr.Body),
		)
		writeError(w, r, upErr.Status, upErr.Error())
		return
	}

	switch {
	case errors.Is(err, checkout.ErrEmptyItems):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrCODDisabled),
		errors.Is(err, payment.ErrUnknownMethod):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		lg.Error("Submission failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "checkout failed")
	}
}

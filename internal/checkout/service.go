// Package checkout orchestrates the checkout flow: cart intake into a
// one-time session, submission against the commerce backend and payment
// gateway, and webhook reconciliation. It performs no retries: a failure at
// any step aborts the sequence, and partial side effects are tagged for
// manual reconciliation instead of rolled back.
package checkout

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/checkout-bridge/internal/commerce"
	"github.com/xenking/checkout-bridge/internal/currency"
	"github.com/xenking/checkout-bridge/internal/domain/cart"
	"github.com/xenking/checkout-bridge/internal/payment"
	"github.com/xenking/checkout-bridge/internal/session"
)

// shipping line title on gateway order registrations.
const shippingLineName = "Shipping"

// reconciliation tag applied when the gateway fails after the commerce order
// record was already created.
const tagPaymentPending = "payment pending"

// Config holds the orchestration knobs. Deployment differences in the flow
// are expressed as configuration (ConvertCurrency, CODEnabled) rather than
// separate code paths.
type Config struct {
	// FrontendBaseURL is the storefront origin redirect URLs are built on.
	FrontendBaseURL string
	// Currency is the checkout currency code sent to both collaborators.
	Currency string
	// ShippingFee is the fixed fee added to every submission total.
	ShippingFee decimal.Decimal
	// ConvertCurrency applies the rate collaborator to intake prices.
	ConvertCurrency bool
	// CODEnabled allows the pay-on-delivery path.
	CODEnabled bool
	// HMACSecret verifies gateway webhook signatures.
	HMACSecret []byte
	// MissingKeys lists required configuration that was absent at startup.
	// Submission fails fast with these before any external call.
	MissingKeys []string
}

// Service wires the session store and the external collaborators together.
type Service struct {
	cfg      Config
	sessions session.Store
	rates    currency.Converter
	commerce commerce.Client
	gateway  payment.Gateway
}

// NewService creates a checkout Service.
func NewService(
	cfg Config,
	sessions session.Store,
	rates currency.Converter,
	com commerce.Client,
	gateway payment.Gateway,
) *Service {
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		rates:    rates,
		commerce: com,
		gateway:  gateway,
	}
}

// IntakeItem is a raw storefront cart line. Price and Quantity stay raw JSON
// because storefront payloads are parsed permissively, not rejected.
type IntakeItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    json.RawMessage `json:"price"`
	Quantity json.RawMessage `json:"quantity"`
}

// IntakeRequest is the raw cart payload from the storefront.
type IntakeRequest struct {
	Total json.RawMessage `json:"total"`
	Items []IntakeItem    `json:"items"`
}

// Intake normalizes the raw cart, optionally converts prices to the checkout
// currency, stores a one-time session, and returns the redirect URL carrying
// the token.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (string, error) {
	c := cart.Cart{
		Total: cart.ParseAmount(req.Total),
		Items: make([]cart.Item, len(req.Items)),
	}
	for i, it := range req.Items {
		c.Items[i] = cart.Item{
			ID:        it.ID,
			Name:      it.Name,
			Category:  it.Category,
			UnitPrice: cart.ParseAmount(it.Price),
			Quantity:  cart.ParseQuantity(it.Quantity),
		}
	}

	if s.cfg.ConvertCurrency {
		rate, err := s.rates.Rate(ctx)
		if err != nil {
			return "", errors.Wrap(err, "currency rate")
		}
		c.Total = c.Total.Mul(rate).Round(2)
		for i := range c.Items {
			c.Items[i].UnitPrice = c.Items[i].UnitPrice.Mul(rate).Round(2)
		}
	}

	token, err := s.sessions.Create(ctx, c)
	if err != nil {
		return "", errors.Wrap(err, "create session")
	}

	return s.cfg.FrontendBaseURL + "/checkout?token=" + url.QueryEscape(token), nil
}

// ConsumeSession retrieves and invalidates the session for the checkout page.
func (s *Service) ConsumeSession(ctx context.Context, token string) (cart.Cart, error) {
	return s.sessions.Consume(ctx, token)
}

// SubmitRequest is the checkout form submission.
type SubmitRequest struct {
	Items    []cart.Item
	Customer commerce.Customer
	Shipping commerce.Address
	Billing  payment.BillingData
	Method   payment.Method
}

// SubmitResult is the successful outcome of a submission: exactly one of
// PaymentURL (hosted payment page) or RedirectURL (confirmation page for pay
// on delivery) is set.
type SubmitResult struct {
	PaymentURL      string
	RedirectURL     string
	CommerceOrderID int64
	GatewayOrderID  int64
}

// Submit runs the fixed submission sequence: config check, total
// computation, commerce order creation, then either immediate finalization
// (pay on delivery) or the gateway authenticate/register/payment-key flow.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(s.cfg.MissingKeys) > 0 {
		return nil, &ConfigError{Missing: s.cfg.MissingKeys}
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Method == payment.MethodCOD && !s.cfg.CODEnabled {
		return nil, ErrCODDisabled
	}

	// The grand total and the gateway amount are both derived from the same
	// per-line minor-unit values, so the register-order and payment-key
	// amounts cannot drift apart by rounding.
	amountCents := int64(0)
	lines := make([]commerce.LineItem, len(req.Items))
	for i, it := range req.Items {
		amountCents += toCents(it.UnitPrice) * int64(it.Quantity)
		lines[i] = commerce.LineItem{
			Title:    it.Name,
			Price:    it.UnitPrice.Round(2),
			Quantity: it.Quantity,
		}
	}
	amountCents += toCents(s.cfg.ShippingFee)
	total := decimal.New(amountCents, -2)

	order, err := s.commerce.CreateOrder(ctx, commerce.OrderDraft{
		LineItems: lines,
		Customer:  req.Customer,
		Shipping:  req.Shipping,
		Total:     total,
		Currency:  s.cfg.Currency,
		Tags:      []string{"checkout-bridge", string(req.Method)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	lg := zctx.From(ctx).With(
		zap.Int64("order_id", order.ID),
		zap.String("method", string(req.Method)),
	)

	if req.Method == payment.MethodCOD {
		if err := s.commerce.MarkPaid(ctx, order.ID, total); err != nil {
			return nil, errors.Wrap(err, "finalize cod order")
		}
		lg.Info("Order finalized as pay on delivery", zap.String("total", total.StringFixed(2)))
		return &SubmitResult{
			RedirectURL:     s.cfg.FrontendBaseURL + "/confirmation?order=" + strconv.FormatInt(order.ID, 10),
			CommerceOrderID: order.ID,
		}, nil
	}

	result, err := s.gatewayFlow(ctx, req, order.ID, amountCents)
	if err != nil {
		// The commerce order already exists. It is not rolled back, only
		// tagged so the failure is visible to manual reconciliation.
		if tagErr := s.commerce.TagOrder(ctx, order.ID, tagPaymentPending); tagErr != nil {
			lg.Error("Failed to tag order after gateway failure", zap.Error(tagErr))
		}
		return nil, err
	}

	lg.Info("Payment page issued",
		zap.Int64("gateway_order_id", result.GatewayOrderID),
		zap.Int64("amount_cents", amountCents),
	)
	return result, nil
}

// gatewayFlow runs the authenticate → register → payment-key sequence and
// builds the hosted page URL. The same amountCents value feeds both the
// registration and the key request.
func (s *Service) gatewayFlow(ctx context.Context, req SubmitRequest, orderID, amountCents int64) (*SubmitResult, error) {
	authToken, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "authenticate")
	}

	regItems := make([]payment.RegistrationItem, 0, len(req.Items)+1)
	for _, it := range req.Items {
		regItems = append(regItems, payment.RegistrationItem{
			Name:        it.Name,
			AmountCents: toCents(it.UnitPrice),
			Quantity:    it.Quantity,
		})
	}
	regItems = append(regItems, payment.RegistrationItem{
		Name:        shippingLineName,
		AmountCents: toCents(s.cfg.ShippingFee),
		Quantity:    1,
	})

	gatewayOrderID, err := s.gateway.RegisterOrder(ctx, authToken, payment.OrderRegistration{
		AmountCents:     amountCents,
		Currency:        s.cfg.Currency,
		MerchantOrderID: strconv.FormatInt(orderID, 10),
		Items:           regItems,
	})
	if err != nil {
		return nil, errors.Wrap(err, "register order")
	}

	key, err := s.gateway.PaymentKey(ctx, authToken, payment.KeyRequest{
		AmountCents: amountCents,
		Currency:    s.cfg.Currency,
		OrderID:     gatewayOrderID,
		Method:      req.Method,
		Billing:     req.Billing,
	})
	if err != nil {
		return nil, errors.Wrap(err, "payment key")
	}

	pageURL, err := s.gateway.PaymentPageURL(req.Method, key)
	if err != nil {
		return nil, errors.Wrap(err, "payment page url")
	}

	return &SubmitResult{
		PaymentURL:      pageURL,
		CommerceOrderID: orderID,
		GatewayOrderID:  gatewayOrderID,
	}, nil
}

// HandleWebhook verifies the gateway notification and, for a successful
// transaction, finalizes the referenced commerce order. A verified
// notification is always acknowledged: finalize failures are logged, not
// surfaced, because the gateway would otherwise retry indefinitely.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	tx, err := payment.VerifyWebhook(s.cfg.HMACSecret, body, signature)
	if err != nil {
		return err
	}

	lg := zctx.From(ctx).With(
		zap.Int64("transaction_id", tx.ID),
		zap.String("merchant_order_id", tx.Order.MerchantOrderID),
		zap.Bool("success", tx.Success),
	)

	if !tx.Success {
		lg.Info("Webhook acknowledged without finalization")
		return nil
	}

	orderID, err := strconv.ParseInt(tx.Order.MerchantOrderID, 10, 64)
	if err != nil {
		lg.Error("Webhook references unparseable merchant order id", zap.Error(err))
		return nil
	}

	amount := decimal.New(tx.AmountCents, -2)
	if err := s.commerce.MarkPaid(ctx, orderID, amount); err != nil {
		lg.Error("Order finalization failed, gateway still acknowledged", zap.Error(err))
		return nil
	}

	lg.Info("Order finalized from webhook", zap.String("amount", amount.StringFixed(2)))
	return nil
}

// toCents converts a decimal amount to minor units after rounding to two
// decimal places.
func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

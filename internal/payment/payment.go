// Package payment is the client for the hosted-payment gateway: a
// three-step authenticate / register-order / payment-key flow that ends in a
// hosted page URL, plus HMAC verification for the gateway's webhook.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// Method is a supported payment method. COD never reaches the gateway; it is
// listed here because the submission endpoint accepts it in the same field.
type Method string

const (
	MethodCard   Method = "card"
	MethodWallet Method = "wallet"
	MethodCOD    Method = "cod"
)

// ErrUnknownMethod is returned for a method with no gateway configuration.
var ErrUnknownMethod = errors.New("unknown payment method")

// MethodConfig holds the gateway identifiers for one payment method: the
// integration the amount is charged against and the hosted page template.
type MethodConfig struct {
	IntegrationID int64
	TemplateID    string
}

// RegistrationItem is an order line in gateway terms, amounts in minor units.
type RegistrationItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Quantity    int    `json:"quantity"`
}

// OrderRegistration registers a merchant order with the gateway.
type OrderRegistration struct {
	AmountCents     int64
	Currency        string
	MerchantOrderID string
	Items           []RegistrationItem
}

// KeyRequest obtains a payment key authorizing exactly AmountCents against
// the registered gateway order.
type KeyRequest struct {
	AmountCents int64
	Currency    string
	OrderID     int64
	Method      Method
	Billing     BillingData
}

// Gateway defines the calls the submission orchestrator makes.
type Gateway interface {
	Authenticate(ctx context.Context) (authToken string, err error)
	RegisterOrder(ctx context.Context, authToken string, reg OrderRegistration) (orderID int64, err error)
	PaymentKey(ctx context.Context, authToken string, req KeyRequest) (key string, err error)
	// PaymentPageURL builds the hosted page URL for the method's template.
	PaymentPageURL(method Method, key string) (string, error)
}

// Package commerce is the client for the external commerce backend, where
// order records live. The bridge only ever creates an order, tags it, and
// marks it paid; everything else about the backend is out of scope.
package commerce

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is an order line as the backend expects it.
type LineItem struct {
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Customer identifies the shopper on the order record.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Address is the shipping address attached to the order.
type Address struct {
	Address1 string `json:"address1"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Zip      string `json:"zip,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// OrderDraft is the input for creating an order record. Total and Currency
// are embedded in the order's note attributes because the backend's own
// currency handling cannot be trusted to preserve the checkout currency.
type OrderDraft struct {
	LineItems []LineItem
	Customer  Customer
	Shipping  Address
	Total     decimal.Decimal
	Currency  string
	Tags      []string
}

// Order is the created order record.
type Order struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client defines the order operations the checkout flow needs.
type Client interface {
	// CreateOrder creates a payment-pending order record.
	CreateOrder(ctx context.Context, draft OrderDraft) (*Order, error)
	// MarkPaid finalizes the order by recording a successful sale
	// transaction for the given amount.
	MarkPaid(ctx context.Context, orderID int64, amount decimal.Decimal) error
	// TagOrder appends reconciliation tags to the order.
	TagOrder(ctx context.Context, orderID int64, tags ...string) error
}

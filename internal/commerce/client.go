package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/checkout-bridge/internal/upstream"
)

const apiVersion = "2024-01"

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the commerce backend's admin REST API. No timeout is
// configured beyond the transport defaults; submission is a foreground flow
// and a failure at any step aborts the whole sequence.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for the given store domain
// (e.g. "my-store.example.com") authenticated with the access token.
func NewHTTPClient(domain, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: "https://" + strings.TrimSuffix(domain, "/"),
		token:   token,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// CreateOrder creates a payment-pending order record. The computed checkout
// total and currency travel in note attributes.
func (c *HTTPClient) CreateOrder(ctx context.Context, draft OrderDraft) (*Order, error) {
	type noteAttribute struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	type orderBody struct {
		LineItems       []LineItem      `json:"line_items"`
		Customer        Customer        `json:"customer"`
		ShippingAddress Address         `json:"shipping_address"`
		FinancialStatus string          `json:"financial_status"`
		Tags            string          `json:"tags,omitempty"`
		NoteAttributes  []noteAttribute `json:"note_attributes"`
	}

	payload := struct {
		Order orderBody `json:"order"`
	}{
		Order: orderBody{
			LineItems:       draft.LineItems,
			Customer:        draft.Customer,
			ShippingAddress: draft.Shipping,
			FinancialStatus: "pending",
			Tags:            strings.Join(draft.Tags, ", "),
			NoteAttributes: []noteAttribute{
				{Name: "checkout_total", Value: draft.Total.StringFixed(2)},
				{Name: "checkout_currency", Value: draft.Currency},
			},
		},
	}

	var out struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders.json", payload, &out); err != nil {
		return nil, err
	}
	return &out.Order, nil
}

// MarkPaid records a successful sale transaction against the order, which
// moves it to the paid financial status.
func (c *HTTPClient) MarkPaid(ctx context.Context, orderID int64, amount decimal.Decimal) error {
	payload := struct {
		Transaction struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
			Amount string `json:"amount"`
		} `json:"transaction"`
	}{}
	payload.Transaction.Kind = "sale"
	payload.Transaction.Status = "success"
	payload.Transaction.Amount = amount.StringFixed(2)

	path := fmt.Sprintf("/orders/%d/transactions.json", orderID)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// TagOrder replaces the order's tags with the given set. Tags are the
// reconciliation channel for partial failures ("payment pending").
func (c *HTTPClient) TagOrder(ctx context.Context, orderID int64, tags ...string) error {
	payload := struct {
		Order struct {
			ID   int64  `json:"id"`
			Tags string `json:"tags"`
		} `json:"order"`
	}{}
	payload.Order.ID = orderID
	payload.Order.Tags = strings.Join(tags, ", ")

	path := fmt.Sprintf("/orders/%d.json", orderID)
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	url := c.baseURL + "/admin/api/" + apiVersion + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstream.FromResponse("commerce", resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

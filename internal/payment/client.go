package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/checkout-bridge/internal/upstream"
)

var _ Gateway = (*HTTPClient)(nil)

// HTTPClient implements Gateway against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	methods map[Method]MethodConfig
	http    *http.Client
}

// NewHTTPClient creates a gateway client. methods maps each supported
// non-COD method to its integration and template identifiers.
func NewHTTPClient(baseURL, apiKey string, methods map[Method]MethodConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		methods: methods,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Authenticate exchanges the API key for a short-lived auth token.
func (c *HTTPClient) Authenticate(ctx context.Context) (string, error) {
	payload := struct {
		APIKey string `json:"api_key"`
	}{APIKey: c.apiKey}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/auth/tokens", payload, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("gateway returned empty auth token")
	}
	return out.Token, nil
}

// RegisterOrder registers a merchant order and returns the gateway order id.
func (c *HTTPClient) RegisterOrder(ctx context.Context, authToken string, reg OrderRegistration) (int64, error) {
	payload := struct {
		AuthToken       string             `json:"auth_token"`
		DeliveryNeeded  bool               `json:"delivery_needed"`
		AmountCents     int64              `json:"amount_cents"`
		Currency        string             `json:"currency"`
		MerchantOrderID string             `json:"merchant_order_id"`
		Items           []RegistrationItem `json:"items"`
	}{
		AuthToken:       authToken,
		AmountCents:     reg.AmountCents,
		Currency:        reg.Currency,
		MerchantOrderID: reg.MerchantOrderID,
		Items:           reg.Items,
	}

	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.post(ctx, "/ecommerce/orders", payload, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// PaymentKey obtains a key authorizing req.AmountCents against the
// registered order, bound to the method's integration.
func (c *HTTPClient) PaymentKey(ctx context.Context, authToken string, req KeyRequest) (string, error) {
	mc, ok := c.methods[req.Method]
	if !ok {
		return "", errors.Wrapf(ErrUnknownMethod, "%q", req.Method)
	}

	payload := struct {
		AuthToken     string      `json:"auth_token"`
		AmountCents   int64       `json:"amount_cents"`
		Currency      string      `json:"currency"`
		OrderID       int64       `json:"order_id"`
		IntegrationID int64       `json:"integration_id"`
		Expiration    int         `json:"expiration"`
		BillingData   BillingData `json:"billing_data"`
	}{
		AuthToken:     authToken,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		OrderID:       req.OrderID,
		IntegrationID: mc.IntegrationID,
		Expiration:    3600,
		BillingData:   req.Billing.withDefaults(),
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/acceptance/payment_keys", payload, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("gateway returned empty payment key")
	}
	return out.Token, nil
}

// PaymentPageURL builds the hosted page URL from the method's template.
func (c *HTTPClient) PaymentPageURL(method Method, key string) (string, error) {
	mc, ok := c.methods[method]
	if !ok {
		return "", errors.Wrapf(ErrUnknownMethod, "%q", method)
	}
	return c.baseURL + "/acceptance/iframes/" + mc.TemplateID +
		"?payment_token=" + url.QueryEscape(key), nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstream.FromResponse("payment", resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

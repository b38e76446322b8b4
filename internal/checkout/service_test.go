package checkout

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/checkout-bridge/internal/commerce"
	"github.com/xenking/checkout-bridge/internal/currency"
	"github.com/xenking/checkout-bridge/internal/domain/cart"
	"github.com/xenking/checkout-bridge/internal/payment"
	"github.com/xenking/checkout-bridge/internal/session"
	"github.com/xenking/checkout-bridge/internal/upstream"
)

// --- Mock implementations ---

type mockCommerce struct {
	created   []commerce.OrderDraft
	nextID    int64
	createErr error

	paidOrders  map[int64]decimal.Decimal
	markPaidErr error

	tagged map[int64][]string
	tagErr error
}

func newMockCommerce() *mockCommerce {
	return &mockCommerce{
		nextID:     450789469,
		paidOrders: make(map[int64]decimal.Decimal),
		tagged:     make(map[int64][]string),
	}
}

func (m *mockCommerce) CreateOrder(_ context.Context, draft commerce.OrderDraft) (*commerce.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, draft)
	return &commerce.Order{ID: m.nextID, Name: "#1001"}, nil
}

func (m *mockCommerce) MarkPaid(_ context.Context, orderID int64, amount decimal.Decimal) error {
	if m.markPaidErr != nil {
		return m.markPaidErr
	}
	m.paidOrders[orderID] = amount
	return nil
}

func (m *mockCommerce) TagOrder(_ context.Context, orderID int64, tags ...string) error {
	if m.tagErr != nil {
		return m.tagErr
	}
	m.tagged[orderID] = append(m.tagged[orderID], tags...)
	return nil
}

type mockGateway struct {
	authCalls    int
	authErr      error
	registered   []payment.OrderRegistration
	registerErr  error
	keyRequests  []payment.KeyRequest
	keyErr       error
	gatewayOrder int64
}

func (m *mockGateway) Authenticate(context.Context) (string, error) {
	m.authCalls++
	if m.authErr != nil {
		return "", m.authErr
	}
	return "auth-token", nil
}

func (m *mockGateway) RegisterOrder(_ context.Context, _ string, reg payment.OrderRegistration) (int64, error) {
	if m.registerErr != nil {
		return 0, m.registerErr
	}
	m.registered = append(m.registered, reg)
	if m.gatewayOrder == 0 {
		m.gatewayOrder = 7001
	}
	return m.gatewayOrder, nil
}

func (m *mockGateway) PaymentKey(_ context.Context, _ string, req payment.KeyRequest) (string, error) {
	if m.keyErr != nil {
		return "", m.keyErr
	}
	m.keyRequests = append(m.keyRequests, req)
	return "pay-key", nil
}

func (m *mockGateway) PaymentPageURL(_ payment.Method, key string) (string, error) {
	return "https://gateway.example.com/pay?payment_token=" + key, nil
}

// --- Helpers ---

func testConfig() Config {
	return Config{
		FrontendBaseURL: "https://shop.example.com",
		Currency:        "EGP",
		ShippingFee:     decimal.RequireFromString("100"),
		CODEnabled:      true,
		HMACSecret:      []byte("test-secret"),
	}
}

const defaultTestTTL = 15 * time.Minute

func newTestService(cfg Config, com commerce.Client, gw payment.Gateway) *Service {
	return NewService(cfg, session.NewMemoryStore(defaultTestTTL), currency.NewFixed(decimal.NewFromInt(1)), com, gw)
}

func submitItems() []cart.Item {
	return []cart.Item{
		{ID: "p1", Name: "Widget", UnitPrice: decimal.RequireFromString("100"), Quantity: 2},
	}
}

// --- Submission tests ---

func TestSubmit_CardTotalsExact(t *testing.T) {
	com := newMockCommerce()
	gw := &mockGateway{}
	svc := newTestService(testConfig(), com, gw)

	result, err := svc.Submit(context.Background(), SubmitRequest{
		Items:  submitItems(),
		Method: payment.MethodCard,
	})
	require.NoError(t, err)

	// 100*2 + 100 shipping = 300.00 → 30000 minor units.
	require.Len(t, com.created, 1)
	assert.True(t, decimal.RequireFromString("300").Equal(com.created[0].Total))

	require.Len(t, gw.registered, 1)
	reg := gw.registered[0]
	assert.Equal(t, int64(30000), reg.AmountCents)
	assert.Equal(t, "450789469", reg.MerchantOrderID)

	// Registration amount equals the sum of its own line amounts.
	var lineSum int64
	for _, it := range reg.Items {
		lineSum += it.AmountCents * int64(it.Quantity)
	}
	assert.Equal(t, reg.AmountCents, lineSum)

	require.Len(t, gw.keyRequests, 1)
	assert.Equal(t, reg.AmountCents, gw.keyRequests[0].AmountCents)

	assert.Equal(t, "https://gateway.example.com/pay?payment_token=pay-key", result.PaymentURL)
	assert.Empty(t, result.RedirectURL)
	assert.Equal(t, int64(450789469), result.CommerceOrderID)
	assert.Equal(t, int64(7001), result.GatewayOrderID)
}

func TestSubmit_FractionalPricesNoDrift(t *testing.T) {
	com := newMockCommerce()
	gw := &mockGateway{}
	cfg := testConfig()
	cfg.ShippingFee = decimal.RequireFromString("15.50")
	svc := newTestService(cfg, com, gw)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Items: []cart.Item{
			{ID: "p1", Name: "A", UnitPrice: decimal.RequireFromString("33.33"), Quantity: 3},
			{ID: "p2", Name: "B", UnitPrice: decimal.RequireFromString("0.01"), Quantity: 7},
		},
		Method: payment.MethodCard,
	})
	require.NoError(t, err)

	// 3333*3 + 1*7 + 1550 = 11556 cents on both calls and on the order total.
	require.Len(t, gw.registered, 1)
	assert.Equal(t, int64(11556), gw.registered[0].AmountCents)
	assert.Equal(t, int64(11556), gw.keyRequests[0].AmountCents)
	assert.True(t, decimal.RequireFromString("115.56").Equal(com.created[0].Total))
}

func TestSubmit_CODSkipsGateway(t *testing.T) {
	com := newMockCommerce()
	gw := &mockGateway{}
	svc := newTestService(testConfig(), com, gw)

	result, err := svc.Submit(context.Background(), SubmitRequest{
		Items:  submitItems(),
		Method: payment.MethodCOD,
	})
	require.NoError(t, err)

	assert.Zero(t, gw.authCalls)
	assert.Empty(t, gw.registered)

	// COD finalizes immediately.
	paid, ok := com.paidOrders[450789469]
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("300").Equal(paid))

	assert.Equal(t, "https://shop.example.com/confirmation?order=450789469", result.RedirectURL)
	assert.Empty(t, result.PaymentURL)
}

func TestSubmit_CODDisabled(t *testing.T) {
	com := newMockCommerce()
	cfg := testConfig()
	cfg.CODEnabled = false
	svc := newTestService(cfg, com, &mockGateway{})

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Items:  submitItems(),
		Method: payment.MethodCOD,
	})
	assert.ErrorIs(t, err, ErrCODDisabled)
	assert.Empty(t, com.created)
}

func TestSubmit_MissingConfigFailsFast(t *testing.T) {
	com := newMockCommerce()
	gw := &mockGateway{}
	cfg := testConfig()
	cfg.MissingKeys = []string{"BRIDGE_STORE_DOMAIN", "BRIDGE_PAYMENT_API_KEY"}
	svc := newTestService(cfg, com, gw)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Items:  submitItems(),
		Method: payment.MethodCard,
	})

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "BRIDGE_STORE_DOMAIN")
	assert.Contains(t, cfgErr.Error(), "BRIDGE_PAYMENT_API_KEY")

	// Fail fast: no external call of any kind.
	assert.Empty(t, com.created)
	assert.Zero(t, gw.authCalls)
}

func TestSubmit_EmptyItems(t *testing.T) {
	svc := newTestService(testConfig(), newMockCommerce(), &mockGateway{})

	_, err := svc.Submit(context.Background(), SubmitRequest{Method: payment.MethodCard})
	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestSubmit_GatewayFailureTagsOrder(t *testing.T) {
	com := newMockCommerce()
	gw := &mockGateway{keyErr: &upstream.Error{Service: "payment", Status: 400, Body: []byte("bad key")}}
	svc := newTestService(testConfig(), com, gw)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Items:  submitItems(),
		Method: payment.MethodCard,
	})
	require.Error(t, err)

	var upErr *upstream.Error
	assert.True(t, errors.As(err, &upErr))

	// Order not rolled back, only tagged for reconciliation.
	assert.Equal(t, []string{"payment pending"}, com.tagged[450789469])
	assert.Empty(t, com.paidOrders)
}

func TestSubmit_CommerceFailureAborts(t *testing.T) {
	com := newMockCommerce()
	com.createErr = &upstream.Error{Service: "commerce", Status: 422, Body: []byte("nope")}
	gw := &mockGateway{}
	svc := newTestService(testConfig(), com, gw)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Items:  submitItems(),
		Method: payment.MethodCard,
	})
	require.Error(t, err)
	assert.Zero(t, gw.authCalls)
}

// --- Intake tests ---

func TestIntake_StoresNormalizedCart(t *testing.T) {
	store := session.NewMemoryStore(defaultTestTTL)
	svc := NewService(testConfig(), store, currency.NewFixed(decimal.NewFromInt(1)), newMockCommerce(), &mockGateway{})

	redirect, err := svc.Intake(context.Background(), IntakeRequest{
		Total: []byte(`"300"`),
		Items: []IntakeItem{
			{ID: "p1", Name: "Widget", Price: []byte(`100`), Quantity: []byte(`2`)},
			{ID: "p2", Name: "Broken", Price: []byte(`"oops"`), Quantity: []byte(`-1`)},
		},
	})
	require.NoError(t, err)

	token := redirect[len("https://shop.example.com/checkout?token="):]
	c, err := svc.ConsumeSession(context.Background(), token)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("300").Equal(c.Total))
	require.Len(t, c.Items, 2)
	assert.True(t, decimal.Zero.Equal(c.Items[1].UnitPrice))
	assert.Equal(t, 1, c.Items[1].Quantity)
}

func TestIntake_ConvertsCurrency(t *testing.T) {
	store := session.NewMemoryStore(defaultTestTTL)
	cfg := testConfig()
	cfg.ConvertCurrency = true
	svc := NewService(cfg, store, currency.NewFixed(decimal.RequireFromString("48.5")), newMockCommerce(), &mockGateway{})

	redirect, err := svc.Intake(context.Background(), IntakeRequest{
		Total: []byte(`10`),
		Items: []IntakeItem{
			{ID: "p1", Name: "Widget", Price: []byte(`10`), Quantity: []byte(`1`)},
		},
	})
	require.NoError(t, err)

	token := redirect[len("https://shop.example.com/checkout?token="):]
	c, err := svc.ConsumeSession(context.Background(), token)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("485").Equal(c.Total))
	assert.True(t, decimal.RequireFromString("485").Equal(c.Items[0].UnitPrice))
}

// --- Webhook tests ---

func webhookBody(success bool, merchantOrderID string, amountCents int64) []byte {
	return fmt.Appendf(nil, `{"type":"TRANSACTION","obj":{`+
		`"id":9001,"amount_cents":%d,"created_at":"2024-03-01T10:00:00",`+
		`"currency":"EGP","error_occured":false,"has_parent_transaction":false,`+
		`"integration_id":11223,"is_3d_secure":true,"is_auth":false,"is_capture":false,`+
		`"is_refunded":false,"is_standalone_payment":true,"is_voided":false,`+
		`"order":{"id":7001,"merchant_order_id":"%s"},"owner":42,"pending":false,`+
		`"source_data":{"pan":"2346","sub_type":"MasterCard","type":"card"},"success":%t}}`,
		amountCents, merchantOrderID, success)
}

func signBody(t *testing.T, secret, body []byte) string {
	t.Helper()
	sig, err := payment.ComputeSignature(secret, extractObj(t, body))
	require.NoError(t, err)
	return sig
}

func extractObj(t *testing.T, body []byte) []byte {
	t.Helper()
	// The envelope wraps the object as {"type":...,"obj":{...}}; strip it by
	// locating the obj member. Test-only shortcut.
	i := 0
	for ; i < len(body); i++ {
		if body[i] == '{' && i > 0 {
			break
		}
	}
	// body[i:] starts at the obj value, which runs to the envelope's final brace.
	return body[i : len(body)-1]
}

func TestHandleWebhook_SuccessFinalizes(t *testing.T) {
	com := newMockCommerce()
	svc := newTestService(testConfig(), com, &mockGateway{})

	body := webhookBody(true, "450789469", 30000)
	err := svc.HandleWebhook(context.Background(), body, signBody(t, []byte("test-secret"), body))
	require.NoError(t, err)

	paid, ok := com.paidOrders[450789469]
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("300").Equal(paid))
}

func TestHandleWebhook_TamperedSignature(t *testing.T) {
	com := newMockCommerce()
	svc := newTestService(testConfig(), com, &mockGateway{})

	body := webhookBody(true, "450789469", 30000)
	tampered := webhookBody(true, "450789469", 1)

	err := svc.HandleWebhook(context.Background(), tampered, signBody(t, []byte("test-secret"), body))
	assert.ErrorIs(t, err, payment.ErrBadSignature)
	assert.Empty(t, com.paidOrders)
}

func TestHandleWebhook_FailedTransactionAcknowledged(t *testing.T) {
	com := newMockCommerce()
	svc := newTestService(testConfig(), com, &mockGateway{})

	body := webhookBody(false, "450789469", 30000)
	err := svc.HandleWebhook(context.Background(), body, signBody(t, []byte("test-secret"), body))
	require.NoError(t, err)
	assert.Empty(t, com.paidOrders)
}

func TestHandleWebhook_FinalizeFailureStillAcknowledged(t *testing.T) {
	com := newMockCommerce()
	com.markPaidErr = errors.New("commerce down")
	svc := newTestService(testConfig(), com, &mockGateway{})

	body := webhookBody(true, "450789469", 30000)
	err := svc.HandleWebhook(context.Background(), body, signBody(t, []byte("test-secret"), body))
	assert.NoError(t, err)
}

func TestWebhookSignatureIsHex(t *testing.T) {
	sig := signBody(t, []byte("test-secret"), webhookBody(true, "1", 100))
	_, err := hex.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, sig, 128)
}

package currency

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPSource fetches the rate from an external feed. Unlike the commerce and
// gateway clients this one carries an explicit short timeout: a slow rate
// feed must not stall cart intake, and the cached layer has a fallback.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates an HTTPSource for the given feed URL.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Rate fetches and decodes the feed response, expected as {"rate": <number>}.
func (s *HTTPSource) Rate(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "build rate request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch rate")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("rate feed status %d", resp.StatusCode)
	}

	var body struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode rate")
	}
	if !body.Rate.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive rate %s", body.Rate)
	}
	return body.Rate, nil
}

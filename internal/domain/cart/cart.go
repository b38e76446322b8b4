// Package cart holds the cart snapshot that travels from storefront intake
// through the checkout session to the rendered checkout page.
package cart

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a single cart line.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns UnitPrice multiplied by Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an immutable snapshot of the storefront cart. Total is the subtotal
// reported by the storefront; Subtotal recomputes it from the lines.
type Cart struct {
	Total decimal.Decimal `json:"total"`
	Items []Item          `json:"items"`
}

// Subtotal sums the line subtotals using decimal arithmetic.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// ParseAmount parses a raw JSON value (number, quoted string, or garbage)
// into a non-negative price. Storefront payloads are not trusted: anything
// that does not parse, and any negative value, becomes zero.
func ParseAmount(raw []byte) decimal.Decimal {
	s := unquote(raw)
	if s == "" || s == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseQuantity parses a raw JSON value into a positive quantity. Malformed
// and non-positive values default to one.
func ParseQuantity(raw []byte) int {
	s := unquote(raw)
	if s == "" || s == "null" {
		return 1
	}
	// Storefronts occasionally send quantities as floats ("2.0").
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func unquote(raw []byte) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

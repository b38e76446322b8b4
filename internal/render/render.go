// Package render produces the checkout page markup. Rendering is treated as
// a collaborator behind an interface; the built-in template is a bare-bones
// default.
package render

import (
	"bytes"
	"context"
	"html/template"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-bridge/internal/domain/cart"
)

// Renderer renders a checkout page for the given cart.
type Renderer interface {
	RenderCheckout(ctx context.Context, c cart.Cart) ([]byte, error)
}

var _ Renderer = (*TemplateRenderer)(nil)

// TemplateRenderer is the default html/template implementation.
type TemplateRenderer struct {
	tmpl *template.Template
}

// NewTemplateRenderer creates the default renderer.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		tmpl: template.Must(template.New("checkout").Parse(checkoutTemplate)),
	}
}

type checkoutView struct {
	Items    []checkoutLine
	Subtotal string
}

type checkoutLine struct {
	Name     string
	Quantity int
	Subtotal string
}

// RenderCheckout renders the cart into the checkout form page.
func (r *TemplateRenderer) RenderCheckout(_ context.Context, c cart.Cart) ([]byte, error) {
	view := checkoutView{
		Items:    make([]checkoutLine, len(c.Items)),
		Subtotal: c.Subtotal().Round(2).StringFixed(2),
	}
	for i, it := range c.Items {
		view.Items[i] = checkoutLine{
			Name:     it.Name,
			Quantity: it.Quantity,
			Subtotal: it.Subtotal().Round(2).StringFixed(2),
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, errors.Wrap(err, "execute checkout template")
	}
	return buf.Bytes(), nil
}

const checkoutTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Checkout</title></head>
<body>
<form method="post" action="/api/checkout" id="checkout-form">
<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Subtotal}}</td></tr>
{{end}}<tr><td colspan="2">Subtotal</td><td>{{.Subtotal}}</td></tr>
</table>
</form>
</body>
</html>
`

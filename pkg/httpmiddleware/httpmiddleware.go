// Package httpmiddleware provides the HTTP server middleware stack:
// panic recovery, request IDs, request-scoped logging, CORS, and
// per-client rate limiting.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler. The signature matches what chi's
// Router.Use expects, so every middleware here mounts directly.
type Middleware = func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware in the list is the
// outermost one.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

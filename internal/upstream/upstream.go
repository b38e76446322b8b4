// Package upstream carries rejection details from external API calls so
// handlers can propagate the original status and payload instead of
// swallowing them behind a generic failure.
package upstream

import (
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds how much of a rejection payload is retained.
const maxBodyBytes = 8 << 10

// Error is a non-2xx response from an external collaborator.
type Error struct {
	// Service names the collaborator, e.g. "commerce" or "payment".
	Service string
	// Status is the upstream HTTP status code.
	Status int
	// Body is the raw response payload, truncated to a sane size.
	Body []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s API rejected request: status %d: %s", e.Service, e.Status, e.Body)
}

// FromResponse builds an Error from a non-2xx response, draining up to
// maxBodyBytes of the body.
func FromResponse(service string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return &Error{
		Service: service,
		Status:  resp.StatusCode,
		Body:    body,
	}
}

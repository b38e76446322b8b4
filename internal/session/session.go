// Package session implements the one-time checkout session store: an opaque
// token maps to a cart snapshot for a bounded window and can be consumed at
// most once.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-bridge/internal/domain/cart"
)

// Sentinel errors for session retrieval. Both are terminal: a token is never
// retried.
var (
	// ErrNotFound means the token was never issued, already consumed, or
	// evicted by the backend.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the token existed but its TTL elapsed. The entry is
	// removed as a side effect of the lookup.
	ErrExpired = errors.New("session expired")
)

// Store maps opaque tokens to cart snapshots with a TTL. Consume is
// destructive: under concurrent access exactly one caller observes the cart.
type Store interface {
	Create(ctx context.Context, c cart.Cart) (token string, err error)
	Consume(ctx context.Context, token string) (cart.Cart, error)
}

// tokenBytes is the entropy of a session token. At 32 random bytes the
// collision probability is negligible, so Create performs no existence check.
const tokenBytes = 32

// NewToken returns a hex-encoded cryptographically random token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return hex.EncodeToString(buf), nil
}

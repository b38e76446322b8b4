package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for submission validation.
var (
	ErrEmptyItems  = errors.New("cart items required")
	ErrCODDisabled = errors.New("pay on delivery is not enabled")
)

// ConfigError reports required configuration keys that are absent. It is
// raised before any external call is made.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing configuration: %s", strings.Join(e.Missing, ", "))
}

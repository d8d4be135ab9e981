package scanner

import (
	"context"
	"time"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
)

// tokenTimeoutContext derives a context bounded by both the token's
// cancellation tree and a fixed timeout, for single-shot I/O calls that
// take a context.Context.
func tokenTimeoutContext(token *cancel.Token, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(token.Context(), timeout)
}

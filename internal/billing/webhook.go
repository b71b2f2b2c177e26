package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"
)

// Gateway authenticates inbound Stripe notifications.
type Gateway struct {
	secret string
}

func NewGateway(secret string) *Gateway {
	return &Gateway{secret: secret}
}

// Parse verifies the Stripe-Signature header against the shared secret and
// decodes the payload. A verification failure wraps ErrInvalidSignature.
func (g *Gateway) Parse(payload []byte, sigHeader string) (Event, error) {
	if strings.TrimSpace(g.secret) == "" {
		return Event{}, ErrSecretNotConfigured
	}
	if strings.TrimSpace(sigHeader) == "" {
		return Event{}, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Decode(ev)
}

package billing

import (
	"errors"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Authenticator verifies webhook deliveries against the shared signing
// secret before any processing happens.
type Authenticator struct {
	secret string
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// Authenticate checks the Stripe-Signature header against the raw payload and
// returns the parsed event. Signature failures yield an AuthenticationError,
// unparseable bodies a PayloadError; both are terminal for the delivery.
func (a *Authenticator) Authenticate(payload []byte, sigHeader string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, a.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, &AuthenticationError{cause: err}
		}
		return nil, &PayloadError{cause: err}
	}
	return &event, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld) ||
		errors.Is(err, webhook.ErrInvalidHeader)
}

package billing

import "strings"

// Config carries the billing options the engine and its collaborators need.
// It is built once at startup and injected; nothing in this package reads the
// process environment.
type Config struct {
	// WebhookSecret is the shared secret used to verify webhook signatures.
	WebhookSecret string
	// DefaultPriceID is used when a checkout request does not name a price.
	DefaultPriceID string
	// PublicBaseURL is the externally reachable base URL used to build
	// success/cancel/return URLs for provider-hosted pages.
	PublicBaseURL string
}

// SuccessURL returns the checkout success redirect target.
func (c Config) SuccessURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/subscription?success=true"
}

// CancelURL returns the checkout cancel redirect target.
func (c Config) CancelURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/subscription?canceled=true"
}

// ReturnURL returns the billing portal return target.
func (c Config) ReturnURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/subscription"
}

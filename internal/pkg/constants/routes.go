package constants

// Static route constants
const (
	HealthRoute = "/healthz"

	APIRoute     = "/api"
	APIV1Route   = "/v1"
	BillingRoute = "/billing"

	WebhookRoute         = "/webhook"
	WebhookStatsRoute    = "/webhook-stats"
	CheckoutSessionRoute = "/checkout-session"
	PortalSessionRoute   = "/portal-session"
	SubscriptionRoute    = "/subscription/:accountID"
)

// Package stripeapi wraps the outbound Stripe calls the billing engine and
// the user-facing billing endpoints need: checkout sessions, billing portal
// sessions and subscription detail fetches. Calls have bounded timeouts and
// no retry logic; callers treat failures as user-facing errors or degrade as
// described by the engine.
package stripeapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/subgate-io/subgate/app/models"
	"github.com/subgate-io/subgate/internal/pkg/billing"
)

const requestTimeout = 15 * time.Second

type Client struct {
	api    *client.API
	cfg    billing.Config
	logger zerolog.Logger
}

// NewClient builds a Stripe client from an explicit secret key; no global
// key state is touched.
func NewClient(secretKey string, cfg billing.Config, logger zerolog.Logger) *Client {
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: requestTimeout}))
	return &Client{
		api:    api,
		cfg:    cfg,
		logger: logger.With().Str("component", "stripe-client").Logger(),
	}
}

// CreateCheckoutSession starts a subscription checkout for an account and
// returns the hosted session URL. The account id rides along as
// client_reference_id and metadata so the completed-checkout webhook can
// resolve the account directly.
func (c *Client) CreateCheckoutSession(ctx context.Context, accountID uint, priceID, customerID, email string) (string, error) {
	if priceID == "" {
		priceID = c.cfg.DefaultPriceID
	}
	ref := strconv.FormatUint(uint64(accountID), 10)

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(c.cfg.SuccessURL()),
		CancelURL:         stripe.String(c.cfg.CancelURL()),
		ClientReferenceID: stripe.String(ref),
		Metadata:          map[string]string{"account_id": ref},
	}
	params.Context = ctx
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		c.logger.Error().Err(err).Uint("account_id", accountID).Msg("checkout session creation failed")
		return "", billing.NewUpstreamProviderError("create checkout session", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the billing portal for an already-linked
// customer and returns the hosted session URL.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.cfg.ReturnURL()),
	}
	params.Context = ctx

	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		c.logger.Error().Err(err).Str("customer_id", customerID).Msg("portal session creation failed")
		return "", billing.NewUpstreamProviderError("create portal session", err)
	}
	return sess.URL, nil
}

// FetchSubscription retrieves a subscription's current status, plan and
// period end. Implements the engine's SubscriptionFetcher port.
func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, billing.NewUpstreamProviderError("fetch subscription", err)
	}

	snap := &models.SubscriptionSnapshot{
		Status: models.NormalizeSubscriptionStatus(string(sub.Status)),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			snap.PlanID = item.Price.ID
		}
		if item.CurrentPeriodEnd != 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			snap.PeriodEnd = &t
		}
	}
	return snap, nil
}

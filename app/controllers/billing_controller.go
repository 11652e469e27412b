package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/subgate-io/subgate/internal/pkg/billing"
	"github.com/subgate-io/subgate/internal/pkg/stripeapi"
)

const processingTimeout = 30 * time.Second

// BillingController exposes the webhook endpoint and the user-facing billing
// API. It only translates between HTTP and the engine; all reconciliation
// logic lives in the billing package.
type BillingController struct {
	engine   *billing.Engine
	stripe   *stripeapi.Client
	store    billing.Store
	cfg      billing.Config
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewBillingController(engine *billing.Engine, stripe *stripeapi.Client, store billing.Store, cfg billing.Config, logger zerolog.Logger) *BillingController {
	return &BillingController{
		engine:   engine,
		stripe:   stripe,
		store:    store,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger.With().Str("component", "billing-controller").Logger(),
	}
}

type CheckoutSessionRequest struct {
	AccountID uint   `json:"account_id" validate:"required"`
	PriceID   string `json:"price_id"`
}

type PortalSessionRequest struct {
	AccountID uint `json:"account_id" validate:"required"`
}

// HandleWebhook accepts a provider webhook delivery. 2xx acknowledges, 4xx
// rejects a malformed/unsigned delivery, 5xx withholds acknowledgment so the
// provider redelivers.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	err := bc.engine.ProcessEvent(ctx, rawBody, signature)
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}

	var authErr *billing.AuthenticationError
	if errors.As(err, &authErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}
	var payloadErr *billing.PayloadError
	if errors.As(err, &payloadErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	bc.logger.Error().Err(err).Msg("webhook processing failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
}

// HandleCreateCheckoutSession starts a subscription checkout and returns the
// hosted session URL.
func (bc *BillingController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req CheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := bc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}
	if req.PriceID == "" && bc.cfg.DefaultPriceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price_id_required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	acc, err := bc.store.Account(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_lookup_failed"})
	}

	// Reuse the linked customer when one exists so Stripe does not create a
	// duplicate customer record.
	customerID, err := bc.store.CustomerIDByAccount(ctx, acc.ID)
	if err != nil && !errors.Is(err, billing.ErrNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "link_lookup_failed"})
	}

	url, err := bc.stripe.CreateCheckoutSession(ctx, acc.ID, req.PriceID, customerID, acc.Email)
	if err != nil {
		bc.logger.Error().Err(err).Uint("account_id", acc.ID).Msg("checkout session creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_session_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

// HandleCreatePortalSession opens the billing portal for an account with a
// linked customer.
func (bc *BillingController) HandleCreatePortalSession(c *fiber.Ctx) error {
	var req PortalSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := bc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	customerID, err := bc.store.CustomerIDByAccount(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_linked_customer"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "link_lookup_failed"})
	}

	url, err := bc.stripe.CreatePortalSession(ctx, customerID)
	if err != nil {
		bc.logger.Error().Err(err).Uint("account_id", req.AccountID).Msg("portal session creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "portal_session_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

// HandleGetSubscription returns the account's current subscription snapshot.
func (bc *BillingController) HandleGetSubscription(c *fiber.Ctx) error {
	accountID, err := strconv.ParseUint(c.Params("accountID"), 10, 64)
	if err != nil || accountID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_account_id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	acc, err := bc.store.Account(ctx, uint(accountID))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":             acc.Subscription.Status,
		"plan":               acc.Subscription.PlanID,
		"current_period_end": formatTimePtr(acc.Subscription.PeriodEnd),
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

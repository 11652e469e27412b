package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/subgate-io/subgate/app/controllers"
	"github.com/subgate-io/subgate/internal/pkg/billing"
	"github.com/subgate-io/subgate/internal/pkg/cache"
	"github.com/subgate-io/subgate/internal/pkg/constants"
	"github.com/subgate-io/subgate/internal/pkg/database"
	"github.com/subgate-io/subgate/internal/pkg/env"
	"github.com/subgate-io/subgate/internal/pkg/metrics/counter"
	"github.com/subgate-io/subgate/internal/pkg/middleware"
	"github.com/subgate-io/subgate/internal/pkg/stripeapi"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	ctrl := newBillingController(log.Logger)

	api := app.Group(constants.APIRoute)
	v1 := api.Group(constants.APIV1Route)
	billingGroup := v1.Group(constants.BillingRoute)

	// The webhook stays outside the rate limiter: throttling provider
	// redeliveries only delays convergence.
	billingGroup.Post(constants.WebhookRoute, webhookCounters(), ctrl.HandleWebhook)

	apiKey := env.GetEnv("BILLING_API_KEY", "")
	sessions := billingGroup.Group("", limiter.New(), middleware.RequireAPIKey(apiKey))
	sessions.Post(constants.CheckoutSessionRoute, ctrl.HandleCreateCheckoutSession)
	sessions.Post(constants.PortalSessionRoute, ctrl.HandleCreatePortalSession)
	sessions.Get(constants.SubscriptionRoute, ctrl.HandleGetSubscription)
	sessions.Get(constants.WebhookStatsRoute, handleWebhookStats)
}

// webhookCounters records delivery outcomes after the handler ran. Counter
// failures are logged and otherwise ignored.
func webhookCounters() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		outcome := counter.OutcomeAcknowledged
		switch status := c.Response().StatusCode(); {
		case status >= 500 || err != nil:
			outcome = counter.OutcomeFailed
		case status >= 400:
			outcome = counter.OutcomeRejected
		}
		if cerr := counter.AddWebhookOutcome(outcome); cerr != nil {
			log.Debug().Err(cerr).Msg("webhook outcome counter unavailable")
		}
		return err
	}
}

func handleWebhookStats(c *fiber.Ctx) error {
	outcomes, err := counter.WebhookOutcomes(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"webhook_outcomes": outcomes})
}

// newBillingController assembles the engine and its collaborators. All
// configuration is read here, at the composition root, and passed down as an
// explicit struct.
func newBillingController(logger zerolog.Logger) *controllers.BillingController {
	cfg := billing.Config{
		WebhookSecret:  env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		DefaultPriceID: env.GetEnv("STRIPE_PRICE_ID", ""),
		PublicBaseURL:  env.GetEnv("PUBLIC_BASE_URL", "http://localhost:4000"),
	}

	store := billing.NewStore(database.GetDB())
	stripeClient := stripeapi.NewClient(env.GetEnv("STRIPE_SECRET_KEY", ""), cfg, logger)
	engine := billing.NewEngine(cfg, store, stripeClient, cache.NewLinkCache(), logger)

	return controllers.NewBillingController(engine, stripeClient, store, cfg, logger)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subgate-io/subgate/app/models"
)

// Engine drives one webhook delivery through authenticate → resolve identity
// → project → persist → reconcile. It is stateless between invocations; all
// durable state lives in the Store. The engine performs no internal retries:
// a non-nil return tells the caller not to acknowledge, deferring recovery to
// the provider's redelivery.
type Engine struct {
	auth       *Authenticator
	projector  *Projector
	resolver   *Resolver
	reconciler *Reconciler
	store      Store
	logger     zerolog.Logger
}

func NewEngine(cfg Config, store Store, fetcher SubscriptionFetcher, cache LinkCache, logger zerolog.Logger) *Engine {
	lg := logger.With().Str("component", "billing-engine").Logger()
	return &Engine{
		auth:       NewAuthenticator(cfg.WebhookSecret),
		projector:  NewProjector(fetcher, lg),
		resolver:   NewResolver(store, cache, lg),
		reconciler: NewReconciler(lg),
		store:      store,
		logger:     lg,
	}
}

// Resolver exposes identity linking for callers outside webhook processing
// (checkout session creation records links the same way).
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// ProcessEvent handles a single webhook delivery. A nil return means the
// delivery may be acknowledged; AuthenticationError and PayloadError mean
// the request must be rejected; any other error means the caller must not
// acknowledge so the provider redelivers.
func (e *Engine) ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := e.auth.Authenticate(payload, sigHeader)
	if err != nil {
		return err
	}

	deliveryID := event.ID
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	logger := e.logger.With().Str("event_id", deliveryID).Str("type", string(event.Type)).Logger()

	proj, err := e.projector.Project(ctx, event)
	if err != nil {
		return err
	}
	if proj.Kind == ProjectionNone {
		return nil
	}

	acc, err := e.identify(ctx, proj, logger)
	if err != nil || acc == nil {
		return err
	}

	if proj.Snapshot == nil {
		// Degraded checkout path: the link persisted but the snapshot fetch
		// failed or no subscription was embedded. The next lifecycle event
		// corrects the snapshot.
		logger.Info().Uint("account_id", acc.ID).Msg("event processed without snapshot update")
		return nil
	}

	err = e.store.WithAccountLock(ctx, acc.ID, func(view StoreView, locked *models.Account) error {
		locked.Subscription = *proj.Snapshot
		if err := view.SaveSnapshot(locked); err != nil {
			return &PersistenceError{Op: "save snapshot", cause: err}
		}
		return e.reconciler.Reconcile(view, locked)
	})
	if err != nil {
		return asProcessingError(err)
	}

	logger.Info().
		Uint("account_id", acc.ID).
		Str("status", proj.Snapshot.Status).
		Msg("subscription state reconciled")
	return nil
}

func (e *Engine) identify(ctx context.Context, proj Projection, logger zerolog.Logger) (*models.Account, error) {
	switch proj.Kind {
	case ProjectionCheckout:
		acc, err := e.store.Account(ctx, proj.AccountID)
		if errors.Is(err, ErrNotFound) {
			// Metadata referenced an account that no longer exists. Waiting
			// will not resolve it, so the event is dropped and acknowledged.
			logger.Warn().Uint("account_id", proj.AccountID).Msg("checkout references unknown account, dropping event")
			return nil, nil
		}
		if err != nil {
			return nil, &PersistenceError{Op: "load account", cause: err}
		}
		if err := e.resolver.LinkCustomer(ctx, acc.ID, proj.CustomerID); err != nil {
			return nil, err
		}
		return acc, nil

	case ProjectionSnapshot:
		acc, err := e.resolver.FindByCustomerID(ctx, proj.CustomerID)
		var unresolved *UnresolvedIdentityError
		if errors.As(err, &unresolved) {
			logger.Warn().Str("customer_id", unresolved.CustomerID).Msg("event for unlinked customer, dropping event")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return acc, nil
	}
	return nil, nil
}

// asProcessingError keeps already-classified errors and wraps everything else
// as a persistence failure, which the transport maps to "do not acknowledge".
func asProcessingError(err error) error {
	var pe *PersistenceError
	var ue *UpstreamProviderError
	if errors.As(err, &pe) || errors.As(err, &ue) {
		return err
	}
	return &PersistenceError{Op: "apply projection", cause: err}
}

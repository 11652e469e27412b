package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"

	"github.com/subgate-io/subgate/app/models"
)

// SubscriptionFetcher retrieves a subscription's current state from the
// billing provider. Checkout events do not carry full subscription state, so
// the projector fetches it synchronously.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionSnapshot, error)
}

// ProjectionKind classifies what a projected event asks the engine to do.
type ProjectionKind int

const (
	// ProjectionNone means the event is acknowledged without state change.
	ProjectionNone ProjectionKind = iota
	// ProjectionCheckout links a customer id to an account, optionally with
	// an initial snapshot.
	ProjectionCheckout
	// ProjectionSnapshot updates the snapshot of an already-linked account.
	ProjectionSnapshot
)

// Projection is the canonical internal state change derived from one raw
// billing event.
type Projection struct {
	Kind       ProjectionKind
	AccountID  uint   // checkout events carry the account id in metadata
	CustomerID string // lifecycle events carry only the customer id
	Snapshot   *models.SubscriptionSnapshot
}

// Projector derives projections from raw billing events.
type Projector struct {
	fetcher SubscriptionFetcher
	logger  zerolog.Logger
}

func NewProjector(fetcher SubscriptionFetcher, logger zerolog.Logger) *Projector {
	return &Projector{fetcher: fetcher, logger: logger}
}

// checkoutSessionPayload is the minimal slice of a checkout.session.completed
// event the projector needs.
type checkoutSessionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// subscriptionPayload is the minimal slice of a customer.subscription.*
// event. Older API versions carry period end at the top level, newer ones on
// the subscription item.
type subscriptionPayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Plan     struct {
		ID string `json:"id"`
	} `json:"plan"`
	CurrentPeriodEnd int64 `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// Project maps an authenticated event to the state change it implies.
// Unrecognized event types and customer.subscription.deleted project to
// no-ops; the latter relies on the provider's paired updated(canceled) event
// to drive revocation.
func (p *Projector) Project(ctx context.Context, event *stripe.Event) (Projection, error) {
	switch event.Type {
	case "checkout.session.completed":
		return p.projectCheckout(ctx, event.Data.Raw)
	case "customer.subscription.updated":
		return p.projectSubscriptionUpdate(event.Data.Raw)
	case "customer.subscription.deleted":
		p.logger.Debug().Str("event_id", event.ID).Msg("subscription deleted event ignored, revocation rides on updated(canceled)")
		return Projection{Kind: ProjectionNone}, nil
	default:
		p.logger.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("event type ignored")
		return Projection{Kind: ProjectionNone}, nil
	}
}

func (p *Projector) projectCheckout(ctx context.Context, raw json.RawMessage) (Projection, error) {
	var session checkoutSessionPayload
	if err := json.Unmarshal(raw, &session); err != nil {
		return Projection{}, &PayloadError{cause: err}
	}

	accountID := parseAccountID(session.ClientReferenceID, session.Metadata)
	customerID := strings.TrimSpace(session.Customer)
	if accountID == 0 || customerID == "" {
		p.logger.Warn().Str("session_id", session.ID).Msg("checkout session without account reference or customer, ignoring")
		return Projection{Kind: ProjectionNone}, nil
	}

	proj := Projection{
		Kind:       ProjectionCheckout,
		AccountID:  accountID,
		CustomerID: customerID,
	}

	subscriptionID := strings.TrimSpace(session.Subscription)
	if subscriptionID == "" {
		return proj, nil
	}
	snap, err := p.fetcher.FetchSubscription(ctx, subscriptionID)
	if err != nil {
		// Partial success: the link still proceeds, the next lifecycle
		// event corrects the snapshot.
		p.logger.Warn().Err(err).
			Str("subscription_id", subscriptionID).
			Msg("subscription detail fetch failed, linking without snapshot")
		return proj, nil
	}
	proj.Snapshot = snap
	return proj, nil
}

func (p *Projector) projectSubscriptionUpdate(raw json.RawMessage) (Projection, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Projection{}, &PayloadError{cause: err}
	}
	customerID := strings.TrimSpace(sub.Customer)
	if customerID == "" {
		return Projection{}, &PayloadError{cause: errors.New("subscription event missing customer id")}
	}

	return Projection{
		Kind:       ProjectionSnapshot,
		CustomerID: customerID,
		Snapshot: &models.SubscriptionSnapshot{
			Status:    models.NormalizeSubscriptionStatus(strings.ToLower(strings.TrimSpace(sub.Status))),
			PlanID:    sub.planID(),
			PeriodEnd: sub.periodEnd(),
		},
	}, nil
}

func (s *subscriptionPayload) planID() string {
	if id := strings.TrimSpace(s.Plan.ID); id != "" {
		return id
	}
	for _, item := range s.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return ""
}

func (s *subscriptionPayload) periodEnd() *time.Time {
	end := s.CurrentPeriodEnd
	if end == 0 {
		for _, item := range s.Items.Data {
			if item.CurrentPeriodEnd != 0 {
				end = item.CurrentPeriodEnd
				break
			}
		}
	}
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}

func parseAccountID(clientReferenceID string, metadata map[string]string) uint {
	ref := strings.TrimSpace(clientReferenceID)
	if ref == "" {
		ref = strings.TrimSpace(metadata["account_id"])
	}
	if ref == "" {
		return 0
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

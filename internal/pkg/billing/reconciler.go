package billing

import (
	"github.com/rs/zerolog"

	"github.com/subgate-io/subgate/app/models"
	"github.com/subgate-io/subgate/internal/pkg/entitlements"
)

// Reconciler converges premium group membership with an account's current
// subscription snapshot.
type Reconciler struct {
	group  string
	logger zerolog.Logger
}

func NewReconciler(logger zerolog.Logger) *Reconciler {
	return &Reconciler{group: entitlements.GroupPremium, logger: logger}
}

// Reconcile applies the minimal membership delta for the account's snapshot.
// The decision is a function of current membership vs target, not of the
// triggering event, so applying the same snapshot twice is a no-op the second
// time.
func (r *Reconciler) Reconcile(groups GroupStore, acc *models.Account) error {
	target := entitlements.Entitled(acc.Subscription.Status)
	member, err := groups.IsMember(r.group, acc.ID)
	if err != nil {
		return &PersistenceError{Op: "membership lookup", cause: err}
	}
	if target == member {
		return nil
	}
	if target {
		if err := groups.Grant(r.group, acc.ID); err != nil {
			return &PersistenceError{Op: "grant membership", cause: err}
		}
		r.logger.Info().Uint("account_id", acc.ID).Str("status", acc.Subscription.Status).Msg("premium membership granted")
		return nil
	}
	if err := groups.Revoke(r.group, acc.ID); err != nil {
		return &PersistenceError{Op: "revoke membership", cause: err}
	}
	r.logger.Info().Uint("account_id", acc.ID).Str("status", acc.Subscription.Status).Msg("premium membership revoked")
	return nil
}

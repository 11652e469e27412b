package billing

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/subgate-io/subgate/app/models"
)

// LinkCache is an optional read-through cache for the customer-id →
// account-id lookup, which runs for every subscription lifecycle event. The
// customer_links table stays authoritative.
type LinkCache interface {
	GetAccountID(ctx context.Context, customerID string) (uint, bool)
	SetAccountID(ctx context.Context, customerID string, accountID uint)
	Forget(ctx context.Context, customerID string)
}

// Resolver maintains the bidirectional link between provider customer ids and
// local accounts.
type Resolver struct {
	store  Store
	cache  LinkCache
	logger zerolog.Logger
}

func NewResolver(store Store, cache LinkCache, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, logger: logger}
}

// LinkCustomer idempotently associates an account with a provider customer
// id. An existing link for the account is overwritten (last write wins).
func (r *Resolver) LinkCustomer(ctx context.Context, accountID uint, customerID string) error {
	if accountID == 0 || customerID == "" {
		return &PersistenceError{Op: "link customer", cause: errors.New("account id and customer id are required")}
	}
	if err := r.store.LinkCustomer(ctx, accountID, customerID); err != nil {
		return &PersistenceError{Op: "link customer", cause: err}
	}
	if r.cache != nil {
		r.cache.SetAccountID(ctx, customerID, accountID)
	}
	r.logger.Info().Uint("account_id", accountID).Str("customer_id", customerID).Msg("customer linked")
	return nil
}

// FindByCustomerID resolves a provider customer id to the linked account.
// Returns UnresolvedIdentityError when no link exists.
func (r *Resolver) FindByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	if r.cache != nil {
		if accountID, ok := r.cache.GetAccountID(ctx, customerID); ok {
			acc, err := r.store.Account(ctx, accountID)
			if err == nil {
				return acc, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, &PersistenceError{Op: "load account", cause: err}
			}
			// Cache pointed at a missing account; fall back to the table.
			r.cache.Forget(ctx, customerID)
		}
	}

	acc, err := r.store.AccountByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &UnresolvedIdentityError{CustomerID: customerID}
		}
		return nil, &PersistenceError{Op: "lookup customer link", cause: err}
	}
	if r.cache != nil {
		r.cache.SetAccountID(ctx, customerID, acc.ID)
	}
	return acc, nil
}

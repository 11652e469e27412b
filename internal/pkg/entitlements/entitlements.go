package entitlements

import (
	"strings"

	"github.com/subgate-io/subgate/app/models"
)

// GroupPremium is the entitlement group gating premium features. Membership
// is owned by the reconciliation engine.
const GroupPremium = "group_premium"

// Entitled reports whether a subscription status grants premium membership.
func Entitled(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

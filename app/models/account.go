package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Subscription status values as reported by the billing provider. Accounts
// without billing history carry SubscriptionStatusInactive.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusPaused            = "paused"
	SubscriptionStatusInactive          = "inactive"
)

// SubscriptionSnapshot is the most recently projected provider subscription
// state for an account. It has no lifecycle of its own and is only mutated by
// the reconciliation engine.
type SubscriptionSnapshot struct {
	Status    string     `gorm:"type:varchar(32);not null;default:'inactive'" json:"status"`
	PlanID    string     `gorm:"type:varchar(191);not null;default:''" json:"plan_id"`
	PeriodEnd *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
}

// Account is an internal user identity. The engine only touches the embedded
// subscription snapshot and the version counter; everything else is owned by
// the application.
type Account struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	Name         string               `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email        string               `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Subscription SubscriptionSnapshot `gorm:"embedded;embeddedPrefix:subscription_" json:"subscription"`
	Version      uint                 `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Validate() error {
	v := validator.New()
	return v.Struct(a)
}

// NormalizeSubscriptionStatus maps arbitrary provider input to the known
// status set, falling back to inactive.
func NormalizeSubscriptionStatus(status string) string {
	switch status {
	case SubscriptionStatusActive,
		SubscriptionStatusTrialing,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusUnpaid,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
		SubscriptionStatusPaused:
		return status
	default:
		return SubscriptionStatusInactive
	}
}

package models

import "time"

// CustomerLink maps the billing provider's customer id to a local account.
// At most one account per customer id and at most one customer id per account;
// relinking overwrites (last write wins). Links are never deleted.
type CustomerLink struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AccountID        uint      `gorm:"not null;uniqueIndex:ux_customer_links_account" json:"account_id"`
	StripeCustomerID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_customer_links_customer" json:"stripe_customer_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

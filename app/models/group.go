package models

import "time"

// Group is a named entitlement group. Groups are created lazily on first
// grant and never destroyed.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// GroupMember is a single account's membership in a group.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:ux_group_members_group_account,priority:1" json:"group_id"`
	AccountID uint      `gorm:"not null;uniqueIndex:ux_group_members_group_account,priority:2;index" json:"account_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

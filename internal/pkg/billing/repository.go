package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subgate-io/subgate/app/models"
)

// ErrNotFound is returned by store lookups when no record matches.
var ErrNotFound = errors.New("billing: record not found")

// GroupStore provides entitlement group membership operations.
type GroupStore interface {
	IsMember(group string, accountID uint) (bool, error)
	Grant(group string, accountID uint) error
	Revoke(group string, accountID uint) error
}

// StoreView is the transactional view handed to the engine while it holds an
// account lock. Snapshot and membership writes through the view share one
// transaction.
type StoreView interface {
	GroupStore
	SaveSnapshot(acc *models.Account) error
}

// Store is the durable account, link and group state mutated by the engine.
type Store interface {
	Account(ctx context.Context, id uint) (*models.Account, error)
	AccountByCustomerID(ctx context.Context, customerID string) (*models.Account, error)
	CustomerIDByAccount(ctx context.Context, accountID uint) (string, error)
	LinkCustomer(ctx context.Context, accountID uint, customerID string) error
	// WithAccountLock locks the account row for update and runs fn with a
	// transactional view, so concurrent events for the same account apply
	// their projections in a serialized order.
	WithAccountLock(ctx context.Context, accountID uint, fn func(view StoreView, acc *models.Account) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a billing store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Account(ctx context.Context, id uint) (*models.Account, error) {
	var acc models.Account
	if err := s.db.WithContext(ctx).First(&acc, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &acc, nil
}

func (s *gormStore) AccountByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	var link models.CustomerLink
	err := s.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&link).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return s.Account(ctx, link.AccountID)
}

func (s *gormStore) CustomerIDByAccount(ctx context.Context, accountID uint) (string, error) {
	var link models.CustomerLink
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&link).Error
	if err != nil {
		return "", translateNotFound(err)
	}
	return link.StripeCustomerID, nil
}

func (s *gormStore) LinkCustomer(ctx context.Context, accountID uint, customerID string) error {
	link := &models.CustomerLink{
		AccountID:        accountID,
		StripeCustomerID: customerID,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_customer_id",
			"updated_at",
		}),
	}).Create(link).Error
}

func (s *gormStore) WithAccountLock(ctx context.Context, accountID uint, fn func(view StoreView, acc *models.Account) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&acc, accountID).Error; err != nil {
			return translateNotFound(err)
		}
		return fn(&gormStoreView{tx: tx}, &acc)
	})
}

type gormStoreView struct {
	tx *gorm.DB
}

func (v *gormStoreView) SaveSnapshot(acc *models.Account) error {
	acc.Version++
	return v.tx.Model(&models.Account{}).Where("id = ?", acc.ID).Updates(map[string]interface{}{
		"subscription_status":     acc.Subscription.Status,
		"subscription_plan_id":    acc.Subscription.PlanID,
		"subscription_period_end": acc.Subscription.PeriodEnd,
		"version":                 acc.Version,
	}).Error
}

func (v *gormStoreView) IsMember(group string, accountID uint) (bool, error) {
	var count int64
	err := v.tx.Model(&models.GroupMember{}).
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("groups.name = ? AND group_members.account_id = ?", group, accountID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *gormStoreView) Grant(group string, accountID uint) error {
	g := models.Group{Name: group}
	if err := v.tx.Where(models.Group{Name: group}).FirstOrCreate(&g).Error; err != nil {
		return err
	}
	member := &models.GroupMember{GroupID: g.ID, AccountID: accountID}
	return v.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

func (v *gormStoreView) Revoke(group string, accountID uint) error {
	var g models.Group
	if err := v.tx.Where("name = ?", group).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return v.tx.Where("group_id = ? AND account_id = ?", g.ID, accountID).
		Delete(&models.GroupMember{}).Error
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

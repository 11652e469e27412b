package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/subgate-io/subgate/app/models"
)

// memStore is an in-memory Store used by engine tests. A single mutex stands
// in for the per-account row lock; Grant is strict and fails on duplicate
// adds so double-grants surface as test failures.
type memStore struct {
	mu             sync.Mutex
	accounts       map[uint]*models.Account
	links          map[string]uint
	linksByAccount map[uint]string
	groups         map[string]map[uint]bool

	failLock     bool
	failSnapshot bool
	linkWrites   int
	snapWrites   int
}

func newMemStore() *memStore {
	return &memStore{
		accounts:       make(map[uint]*models.Account),
		links:          make(map[string]uint),
		linksByAccount: make(map[uint]string),
		groups:         make(map[string]map[uint]bool),
	}
}

func (s *memStore) addAccount(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.Subscription.Status == "" {
		acc.Subscription.Status = models.SubscriptionStatusInactive
	}
	s.accounts[acc.ID] = &acc
}

func (s *memStore) Account(ctx context.Context, id uint) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

func (s *memStore) AccountByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	s.mu.Lock()
	id, ok := s.links[customerID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Account(ctx, id)
}

func (s *memStore) CustomerIDByAccount(ctx context.Context, accountID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customerID, ok := s.linksByAccount[accountID]
	if !ok {
		return "", ErrNotFound
	}
	return customerID, nil
}

func (s *memStore) LinkCustomer(ctx context.Context, accountID uint, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkWrites++
	if old, ok := s.linksByAccount[accountID]; ok && old != customerID {
		delete(s.links, old)
	}
	s.links[customerID] = accountID
	s.linksByAccount[accountID] = customerID
	return nil
}

func (s *memStore) WithAccountLock(ctx context.Context, accountID uint, fn func(view StoreView, acc *models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLock {
		return fmt.Errorf("store unavailable")
	}
	acc, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	working := *acc
	return fn(&memStoreView{s: s}, &working)
}

func (s *memStore) isMember(group string, accountID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[group][accountID]
}

func (s *memStore) snapshot(accountID uint) models.SubscriptionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Subscription
}

// memStoreView runs with the store mutex already held.
type memStoreView struct {
	s *memStore
}

func (v *memStoreView) SaveSnapshot(acc *models.Account) error {
	if v.s.failSnapshot {
		return fmt.Errorf("write failed")
	}
	acc.Version++
	stored := *acc
	v.s.accounts[acc.ID] = &stored
	v.s.snapWrites++
	return nil
}

func (v *memStoreView) IsMember(group string, accountID uint) (bool, error) {
	return v.s.groups[group][accountID], nil
}

func (v *memStoreView) Grant(group string, accountID uint) error {
	members, ok := v.s.groups[group]
	if !ok {
		members = make(map[uint]bool)
		v.s.groups[group] = members
	}
	if members[accountID] {
		return fmt.Errorf("account %d is already a member of %s", accountID, group)
	}
	members[accountID] = true
	return nil
}

func (v *memStoreView) Revoke(group string, accountID uint) error {
	if members, ok := v.s.groups[group]; ok {
		delete(members, accountID)
	}
	return nil
}

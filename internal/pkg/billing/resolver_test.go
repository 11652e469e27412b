package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgate-io/subgate/app/models"
)

// memLinkCache is an in-process stand-in for the Redis link cache.
type memLinkCache struct {
	mu      sync.Mutex
	entries map[string]uint
	hits    int
	misses  int
}

func newMemLinkCache() *memLinkCache {
	return &memLinkCache{entries: make(map[string]uint)}
}

func (c *memLinkCache) GetAccountID(ctx context.Context, customerID string) (uint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[customerID]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return id, ok
}

func (c *memLinkCache) SetAccountID(ctx context.Context, customerID string, accountID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[customerID] = accountID
}

func (c *memLinkCache) Forget(ctx context.Context, customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, customerID)
}

func TestResolver_LinkAndFind(t *testing.T) {
	store := newMemStore()
	store.addAccount(models.Account{ID: 1, Name: "u1", Email: "u1@example.com"})
	resolver := NewResolver(store, nil, zerolog.Nop())

	require.NoError(t, resolver.LinkCustomer(context.Background(), 1, "cus_1"))

	acc, err := resolver.FindByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), acc.ID)
}

func TestResolver_RelinkOverwrites(t *testing.T) {
	store := newMemStore()
	store.addAccount(models.Account{ID: 1, Name: "u1", Email: "u1@example.com"})
	resolver := NewResolver(store, nil, zerolog.Nop())

	require.NoError(t, resolver.LinkCustomer(context.Background(), 1, "cus_old"))
	require.NoError(t, resolver.LinkCustomer(context.Background(), 1, "cus_new"))

	acc, err := resolver.FindByCustomerID(context.Background(), "cus_new")
	require.NoError(t, err)
	assert.Equal(t, uint(1), acc.ID)

	_, err = resolver.FindByCustomerID(context.Background(), "cus_old")
	var unresolved *UnresolvedIdentityError
	require.ErrorAs(t, err, &unresolved)
}

func TestResolver_UnknownCustomer(t *testing.T) {
	store := newMemStore()
	resolver := NewResolver(store, nil, zerolog.Nop())

	_, err := resolver.FindByCustomerID(context.Background(), "cus_99")
	var unresolved *UnresolvedIdentityError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "cus_99", unresolved.CustomerID)
}

func TestResolver_CachePopulatedOnLookup(t *testing.T) {
	store := newMemStore()
	store.addAccount(models.Account{ID: 1, Name: "u1", Email: "u1@example.com"})
	cache := newMemLinkCache()
	resolver := NewResolver(store, cache, zerolog.Nop())

	require.NoError(t, store.LinkCustomer(context.Background(), 1, "cus_1"))

	_, err := resolver.FindByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.misses)

	_, err = resolver.FindByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestResolver_StaleCacheEntryFallsBack(t *testing.T) {
	store := newMemStore()
	store.addAccount(models.Account{ID: 1, Name: "u1", Email: "u1@example.com"})
	require.NoError(t, store.LinkCustomer(context.Background(), 1, "cus_1"))

	cache := newMemLinkCache()
	cache.SetAccountID(context.Background(), "cus_1", 999)
	resolver := NewResolver(store, cache, zerolog.Nop())

	acc, err := resolver.FindByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), acc.ID)

	id, ok := cache.GetAccountID(context.Background(), "cus_1")
	require.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestResolver_LinkRequiresIdentifiers(t *testing.T) {
	resolver := NewResolver(newMemStore(), nil, zerolog.Nop())

	var persistErr *PersistenceError
	require.ErrorAs(t, resolver.LinkCustomer(context.Background(), 0, "cus_1"), &persistErr)
	require.ErrorAs(t, resolver.LinkCustomer(context.Background(), 1, ""), &persistErr)
}

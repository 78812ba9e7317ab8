/*
viewcache.go - Cached listing payloads with mutation invalidation

PURPOSE:
  Listing endpoints (accounts per user, transactions per user) are
  read far more often than the ledger mutates. ViewCache keeps the
  serialized JSON payload per user and drops it when the mutation
  orchestrators signal a change through the ledger.Notifier interface.

CONSISTENCY:
  Invalidation fires after commit and is fire-and-forget. A reader
  racing a mutation may get the pre-mutation payload for one request;
  it never sees a partially-applied mutation because the payload is
  only built from committed state.

SEE ALSO:
  - ledger/store.go: Notifier contract
  - handlers.go: Cache consumers
*/
package api

import (
	"sync"

	"github.com/hearthkeep/ledger-engine/ledger"
)

// ViewCache implements ledger.Notifier. The zero value is not usable;
// use NewViewCache.
type ViewCache struct {
	mu           sync.Mutex
	accounts     map[ledger.UserID][]byte
	transactions map[ledger.UserID][]byte
}

func NewViewCache() *ViewCache {
	return &ViewCache{
		accounts:     make(map[ledger.UserID][]byte),
		transactions: make(map[ledger.UserID][]byte),
	}
}

// AccountsChanged drops the cached account listing for the user.
// Balance changes also invalidate here because listings embed
// balances.
func (c *ViewCache) AccountsChanged(userID ledger.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, userID)
}

// TransactionsChanged drops the cached transaction listing for the
// user.
func (c *ViewCache) TransactionsChanged(userID ledger.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.transactions, userID)
}

// Invalidate drops everything cached for the user. Used by cascading
// removal and import, which touch every entity set.
func (c *ViewCache) Invalidate(userID ledger.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, userID)
	delete(c.transactions, userID)
}

// Reset drops the whole cache.
func (c *ViewCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = make(map[ledger.UserID][]byte)
	c.transactions = make(map[ledger.UserID][]byte)
}

func (c *ViewCache) getAccounts(userID ledger.UserID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.accounts[userID]
	return payload, ok
}

func (c *ViewCache) putAccounts(userID ledger.UserID, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[userID] = payload
}

func (c *ViewCache) getTransactions(userID ledger.UserID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.transactions[userID]
	return payload, ok
}

func (c *ViewCache) putTransactions(userID ledger.UserID, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[userID] = payload
}

// Package store provides an in-memory UnitOfWork implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hearthkeep/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements ledger.UnitOfWork with plain maps. WithTx is
// simulated with a snapshot + rollback on error; the store mutex is
// held for the duration of an atomic unit, so mutations are fully
// serialized just like the durable store's row locks would serialize
// them.
type Memory struct {
	mu sync.Mutex

	users        map[ledger.UserID]ledger.User
	categories   map[ledger.CategoryID]ledger.Category
	accounts     map[ledger.AccountID]ledger.Account
	transactions map[ledger.TransactionID]ledger.Transaction
	assets       map[ledger.AssetID]ledger.Asset
	assetTypes   map[string]ledger.AssetType
	budgets      map[ledger.BudgetID]ledger.Budget
	items        map[ledger.ItemID]ledger.Item

	// FailAdjust, when set, is consulted before every balance
	// adjustment; a non-nil return aborts it. Hook for atomicity tests.
	FailAdjust func(ledger.AccountID) error
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[ledger.UserID]ledger.User),
		categories:   make(map[ledger.CategoryID]ledger.Category),
		accounts:     make(map[ledger.AccountID]ledger.Account),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		assets:       make(map[ledger.AssetID]ledger.Asset),
		assetTypes:   make(map[string]ledger.AssetType),
		budgets:      make(map[ledger.BudgetID]ledger.Budget),
		items:        make(map[ledger.ItemID]ledger.Item),
	}
}

// view is a Stores bundle bound either to autocommit mode (each call
// takes the lock) or to an in-flight WithTx (lock already held).
type view struct {
	m    *Memory
	inTx bool
}

func (v view) lock() {
	if !v.inTx {
		v.m.mu.Lock()
	}
}

func (v view) unlock() {
	if !v.inTx {
		v.m.mu.Unlock()
	}
}

func (m *Memory) Users() ledger.UserStore               { return users{view{m, false}} }
func (m *Memory) Categories() ledger.CategoryStore      { return categories{view{m, false}} }
func (m *Memory) Accounts() ledger.AccountStore         { return accounts{view{m, false}} }
func (m *Memory) Transactions() ledger.TransactionStore { return transactions{view{m, false}} }
func (m *Memory) Assets() ledger.AssetStore             { return assets{view{m, false}} }
func (m *Memory) Budgets() ledger.BudgetStore           { return budgets{view{m, false}} }
func (m *Memory) Items() ledger.ItemStore               { return items{view{m, false}} }

type txStores struct{ v view }

func (t txStores) Users() ledger.UserStore               { return users{t.v} }
func (t txStores) Categories() ledger.CategoryStore      { return categories{t.v} }
func (t txStores) Accounts() ledger.AccountStore         { return accounts{t.v} }
func (t txStores) Transactions() ledger.TransactionStore { return transactions{t.v} }
func (t txStores) Assets() ledger.AssetStore             { return assets{t.v} }
func (t txStores) Budgets() ledger.BudgetStore           { return budgets{t.v} }
func (t txStores) Items() ledger.ItemStore               { return items{t.v} }

// WithTx executes fn against a snapshot-protected view. On error the
// snapshot is restored and nothing fn did is visible.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(txStores{view{m, true}}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	users        map[ledger.UserID]ledger.User
	categories   map[ledger.CategoryID]ledger.Category
	accounts     map[ledger.AccountID]ledger.Account
	transactions map[ledger.TransactionID]ledger.Transaction
	assets       map[ledger.AssetID]ledger.Asset
	assetTypes   map[string]ledger.AssetType
	budgets      map[ledger.BudgetID]ledger.Budget
	items        map[ledger.ItemID]ledger.Item
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		users:        copyMap(m.users),
		categories:   copyMap(m.categories),
		accounts:     copyMap(m.accounts),
		transactions: copyMap(m.transactions),
		assets:       copyMap(m.assets),
		assetTypes:   copyMap(m.assetTypes),
		budgets:      copyMap(m.budgets),
		items:        copyMap(m.items),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.users = s.users
	m.categories = s.categories
	m.accounts = s.accounts
	m.transactions = s.transactions
	m.assets = s.assets
	m.assetTypes = s.assetTypes
	m.budgets = s.budgets
	m.items = s.items
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type accounts struct{ v view }

func cloneAccount(a ledger.Account) ledger.Account {
	if a.ParentID != nil {
		p := *a.ParentID
		a.ParentID = &p
	}
	return a
}

func (s accounts) Get(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.v.lock()
	defer s.v.unlock()
	a, ok := s.v.m.accounts[id]
	if !ok {
		return nil, nil
	}
	a = cloneAccount(a)
	return &a, nil
}

func (s accounts) Create(_ context.Context, a *ledger.Account) error {
	s.v.lock()
	defer s.v.unlock()
	s.v.m.accounts[a.ID] = cloneAccount(*a)
	return nil
}

func (s accounts) Update(_ context.Context, a *ledger.Account) error {
	s.v.lock()
	defer s.v.unlock()
	if _, ok := s.v.m.accounts[a.ID]; !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(a.ID)}
	}
	s.v.m.accounts[a.ID] = cloneAccount(*a)
	return nil
}

func (s accounts) AdjustBalance(_ context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	s.v.lock()
	defer s.v.unlock()
	if s.v.m.FailAdjust != nil {
		if err := s.v.m.FailAdjust(id); err != nil {
			return err
		}
	}
	a, ok := s.v.m.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	a.Balance = a.Balance.Add(delta)
	s.v.m.accounts[id] = a
	return nil
}

func (s accounts) SetParent(_ context.Context, id ledger.AccountID, parentID *ledger.AccountID) error {
	s.v.lock()
	defer s.v.unlock()
	a, ok := s.v.m.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	if parentID != nil {
		p := *parentID
		a.ParentID = &p
	} else {
		a.ParentID = nil
	}
	s.v.m.accounts[id] = a
	return nil
}

func (s accounts) ClearParents(_ context.Context, userID ledger.UserID) error {
	s.v.lock()
	defer s.v.unlock()
	for id, a := range s.v.m.accounts {
		if a.UserID == userID && a.ParentID != nil {
			a.ParentID = nil
			s.v.m.accounts[id] = a
		}
	}
	return nil
}

func (s accounts) Delete(_ context.Context, id ledger.AccountID) error {
	s.v.lock()
	defer s.v.unlock()
	delete(s.v.m.accounts, id)
	return nil
}

func (s accounts) DeleteByUser(_ context.Context, userID ledger.UserID) error {
	s.v.lock()
	defer s.v.unlock()
	for id, a := range s.v.m.accounts {
		if a.UserID == userID {
			delete(s.v.m.accounts, id)
		}
	}
	return nil
}

func (s accounts) ListByUser(_ context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Account
	for _, a := range s.v.m.accounts {
		if a.UserID == userID {
			out = append(out, cloneAccount(a))
		}
	}
	sortByID(out, func(a ledger.Account) string { return string(a.ID) })
	return out, nil
}

func (s accounts) ListChildren(_ context.Context, parentID ledger.AccountID) ([]ledger.Account, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Account
	for _, a := range s.v.m.accounts {
		if a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, cloneAccount(a))
		}
	}
	sortByID(out, func(a ledger.Account) string { return string(a.ID) })
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type transactions struct{ v view }

func cloneTransaction(tx ledger.Transaction) ledger.Transaction {
	if tx.TargetAccountID != nil {
		t := *tx.TargetAccountID
		tx.TargetAccountID = &t
	}
	if tx.CategoryID != nil {
		c := *tx.CategoryID
		tx.CategoryID = &c
	}
	return tx
}

func (s transactions) Get(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	s.v.lock()
	defer s.v.unlock()
	tx, ok := s.v.m.transactions[id]
	if !ok {
		return nil, nil
	}
	tx = cloneTransaction(tx)
	return &tx, nil
}

func (s transactions) Create(_ context.Context, tx *ledger.Transaction) error {
	s.v.lock()
	defer s.v.unlock()
	s.v.m.transactions[tx.ID] = cloneTransaction(*tx)
	return nil
}

func (s transactions) Update(_ context.Context, tx *ledger.Transaction) error {
	s.v.lock()
	defer s.v.unlock()
	if _, ok := s.v.m.transactions[tx.ID]; !ok {
		return &ledger.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	s.v.m.transactions[tx.ID] = cloneTransaction(*tx)
	return nil
}

func (s transactions) Delete(_ context.Context, id ledger.TransactionID) error {
	s.v.lock()
	defer s.v.unlock()
	delete(s.v.m.transactions, id)
	return nil
}

func (s transactions) DeleteByUser(_ context.Context, userID ledger.UserID) error {
	s.v.lock()
	defer s.v.unlock()
	for id, tx := range s.v.m.transactions {
		if tx.UserID == userID {
			delete(s.v.m.transactions, id)
		}
	}
	return nil
}

func (s transactions) references(tx ledger.Transaction, accountID ledger.AccountID) bool {
	return tx.AccountID == accountID ||
		(tx.TargetAccountID != nil && *tx.TargetAccountID == accountID)
}

func (s transactions) ListByAccount(_ context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Transaction
	for _, tx := range s.v.m.transactions {
		if s.references(tx, accountID) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sortByID(out, func(tx ledger.Transaction) string { return string(tx.ID) })
	return out, nil
}

func (s transactions) ListByUser(_ context.Context, userID ledger.UserID) ([]ledger.Transaction, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Transaction
	for _, tx := range s.v.m.transactions {
		if tx.UserID == userID {
			out = append(out, cloneTransaction(tx))
		}
	}
	sortByID(out, func(tx ledger.Transaction) string { return string(tx.ID) })
	return out, nil
}

func (s transactions) CountByAccount(_ context.Context, accountID ledger.AccountID) (int, error) {
	s.v.lock()
	defer s.v.unlock()
	count := 0
	for _, tx := range s.v.m.transactions {
		if s.references(tx, accountID) {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// USERS
// =============================================================================

type users struct{ v view }

func (s users) Get(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	s.v.lock()
	defer s.v.unlock()
	u, ok := s.v.m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s users) GetByEmail(_ context.Context, email string) (*ledger.User, error) {
	s.v.lock()
	defer s.v.unlock()
	for _, u := range s.v.m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s users) Create(_ context.Context, u *ledger.User) error {
	s.v.lock()
	defer s.v.unlock()
	for _, existing := range s.v.m.users {
		if existing.Email == u.Email {
			return &ledger.DuplicateError{Kind: "user", Field: "email"}
		}
	}
	s.v.m.users[u.ID] = *u
	return nil
}

func (s users) Delete(_ context.Context, id ledger.UserID) error {
	s.v.lock()
	defer s.v.unlock()
	delete(s.v.m.users, id)
	return nil
}

func (s users) List(_ context.Context) ([]ledger.User, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.User
	for _, u := range s.v.m.users {
		out = append(out, u)
	}
	sortByID(out, func(u ledger.User) string { return string(u.ID) })
	return out, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

type categories struct{ v view }

func (s categories) Get(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	s.v.lock()
	defer s.v.unlock()
	c, ok := s.v.m.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s categories) GetByCode(_ context.Context, code string) (*ledger.Category, error) {
	s.v.lock()
	defer s.v.unlock()
	for _, c := range s.v.m.categories {
		if c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s categories) Create(_ context.Context, c *ledger.Category) error {
	s.v.lock()
	defer s.v.unlock()
	for _, existing := range s.v.m.categories {
		if existing.Code == c.Code {
			return &ledger.DuplicateError{Kind: "category", Field: "code"}
		}
	}
	s.v.m.categories[c.ID] = *c
	return nil
}

func (s categories) List(_ context.Context) ([]ledger.Category, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Category
	for _, c := range s.v.m.categories {
		out = append(out, c)
	}
	sortByID(out, func(c ledger.Category) string { return string(c.ID) })
	return out, nil
}

// =============================================================================
// ASSETS
// =============================================================================

type assets struct{ v view }

func (s assets) Create(_ context.Context, a *ledger.Asset) error {
	s.v.lock()
	defer s.v.unlock()
	s.v.m.assets[a.ID] = *a
	return nil
}

func (s assets) ListByUser(_ context.Context, userID ledger.UserID) ([]ledger.Asset, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Asset
	for _, a := range s.v.m.assets {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sortByID(out, func(a ledger.Asset) string { return string(a.ID) })
	return out, nil
}

func (s assets) DeleteByUser(_ context.Context, userID ledger.UserID) error {
	s.v.lock()
	defer s.v.unlock()
	for id, a := range s.v.m.assets {
		if a.UserID == userID {
			delete(s.v.m.assets, id)
		}
	}
	return nil
}

func (s assets) GetType(_ context.Context, code string) (*ledger.AssetType, error) {
	s.v.lock()
	defer s.v.unlock()
	t, ok := s.v.m.assetTypes[code]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s assets) CreateType(_ context.Context, t *ledger.AssetType) error {
	s.v.lock()
	defer s.v.unlock()
	if _, ok := s.v.m.assetTypes[t.Code]; ok {
		return &ledger.DuplicateError{Kind: "asset type", Field: "code"}
	}
	s.v.m.assetTypes[t.Code] = *t
	return nil
}

func (s assets) ListTypes(_ context.Context) ([]ledger.AssetType, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.AssetType
	for _, t := range s.v.m.assetTypes {
		out = append(out, t)
	}
	sortByID(out, func(t ledger.AssetType) string { return t.Code })
	return out, nil
}

// =============================================================================
// BUDGETS
// =============================================================================

type budgets struct{ v view }

func (s budgets) Create(_ context.Context, b *ledger.Budget) error {
	s.v.lock()
	defer s.v.unlock()
	nb := *b
	if nb.CategoryID != nil {
		c := *nb.CategoryID
		nb.CategoryID = &c
	}
	s.v.m.budgets[b.ID] = nb
	return nil
}

func (s budgets) ListByUser(_ context.Context, userID ledger.UserID) ([]ledger.Budget, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Budget
	for _, b := range s.v.m.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortByID(out, func(b ledger.Budget) string { return string(b.ID) })
	return out, nil
}

func (s budgets) DeleteByUser(_ context.Context, userID ledger.UserID) error {
	s.v.lock()
	defer s.v.unlock()
	for id, b := range s.v.m.budgets {
		if b.UserID == userID {
			delete(s.v.m.budgets, id)
		}
	}
	return nil
}

// =============================================================================
// ITEMS
// =============================================================================

type items struct{ v view }

func (s items) Create(_ context.Context, it *ledger.Item) error {
	s.v.lock()
	defer s.v.unlock()
	s.v.m.items[it.ID] = *it
	return nil
}

func (s items) List(_ context.Context) ([]ledger.Item, error) {
	s.v.lock()
	defer s.v.unlock()
	var out []ledger.Item
	for _, it := range s.v.m.items {
		out = append(out, it)
	}
	sortByID(out, func(it ledger.Item) string { return string(it.ID) })
	return out, nil
}

// sortByID keeps listings deterministic across map iteration order.
func sortByID[T any](list []T, id func(T) string) {
	sort.Slice(list, func(i, j int) bool { return id(list[i]) < id(list[j]) })
}

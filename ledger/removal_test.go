package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthkeep/ledger-engine/ledger"
	"github.com/hearthkeep/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedHousehold builds two users: Anna with nested accounts,
// transactions, a budget, and an asset; Ben with one account nested
// under Anna's parent account.
func seedHousehold(t *testing.T, m *store.Memory) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, u := range []ledger.User{
		{ID: "user-anna", Email: "anna@example.com", Name: "Anna", CreatedAt: now},
		{ID: "user-ben", Email: "ben@example.com", Name: "Ben", CreatedAt: now},
	} {
		u := u
		require.NoError(t, m.Users().Create(ctx, &u))
	}

	parent := ledger.AccountID("acct-anna-parent")
	for _, a := range []ledger.Account{
		{ID: parent, UserID: "user-anna", Name: "family cash", Type: ledger.AccountCash, Currency: "CNY", Balance: decimal.RequireFromString("1000.00")},
		{ID: "acct-anna-child", UserID: "user-anna", Name: "allowance", Type: ledger.AccountCash, Currency: "CNY", ParentID: &parent},
		{ID: "acct-ben-child", UserID: "user-ben", Name: "ben pocket", Type: ledger.AccountCash, Currency: "CNY", ParentID: &parent},
	} {
		a := a
		a.CreatedAt, a.UpdatedAt = now, now
		require.NoError(t, m.Accounts().Create(ctx, &a))
	}

	for i, tx := range []ledger.Transaction{
		{ID: "tx-1", UserID: "user-anna", Type: ledger.TxExpense, Amount: decimal.RequireFromString("50.00"), AccountID: parent},
		{ID: "tx-2", UserID: "user-anna", Type: ledger.TxIncome, Amount: decimal.RequireFromString("80.00"), AccountID: "acct-anna-child"},
	} {
		tx := tx
		tx.Date = now.AddDate(0, 0, -i)
		tx.CreatedAt, tx.UpdatedAt = now, now
		require.NoError(t, m.Transactions().Create(ctx, &tx))
	}

	require.NoError(t, m.Budgets().Create(ctx, &ledger.Budget{
		ID: "budget-1", UserID: "user-anna", Amount: decimal.RequireFromString("500.00"), Period: "monthly",
	}))
	require.NoError(t, m.Assets().CreateType(ctx, &ledger.AssetType{Code: "FUND", Name: "Fund shares"}))
	require.NoError(t, m.Assets().Create(ctx, &ledger.Asset{
		ID: "asset-1", UserID: "user-anna", TypeCode: "FUND", Name: "index fund",
		Quantity: decimal.RequireFromString("12.5"), UnitCost: decimal.RequireFromString("3.20"), Currency: "CNY",
	}))
	require.NoError(t, m.Items().Create(ctx, &ledger.Item{
		ID: "item-1", Name: "washing machine", Value: decimal.RequireFromString("2400.00"),
		Currency: "CNY", AcquiredAt: now,
	}))
}

// =============================================================================
// CASCADING REMOVAL
// =============================================================================

func TestRemover_RemoveUser_Completeness(t *testing.T) {
	// GIVEN: A household with two users sharing an account hierarchy
	m := store.NewMemory()
	seedHousehold(t, m)
	ctx := context.Background()

	// WHEN: Removing Anna
	rem := ledger.NewRemover(m, nil)
	require.NoError(t, rem.RemoveUser(ctx, "user-anna"))

	// THEN: Every record Anna owned is gone
	u, _ := m.Users().Get(ctx, "user-anna")
	assert.Nil(t, u)

	accounts, err := m.Accounts().ListByUser(ctx, "user-anna")
	require.NoError(t, err)
	assert.Empty(t, accounts)

	txs, err := m.Transactions().ListByUser(ctx, "user-anna")
	require.NoError(t, err)
	assert.Empty(t, txs)

	budgets, err := m.Budgets().ListByUser(ctx, "user-anna")
	require.NoError(t, err)
	assert.Empty(t, budgets)

	assets, err := m.Assets().ListByUser(ctx, "user-anna")
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestRemover_RemoveUser_ForeignChildUntouched(t *testing.T) {
	// GIVEN: Ben's account nested under Anna's parent account
	m := store.NewMemory()
	seedHousehold(t, m)
	ctx := context.Background()

	// WHEN: Removing Anna
	rem := ledger.NewRemover(m, nil)
	require.NoError(t, rem.RemoveUser(ctx, "user-anna"))

	// THEN: Ben's account survives with its parent reference intact,
	// now pointing at an account that no longer exists
	ben, err := m.Accounts().Get(ctx, "acct-ben-child")
	require.NoError(t, err)
	require.NotNil(t, ben)
	require.NotNil(t, ben.ParentID)
	assert.Equal(t, ledger.AccountID("acct-anna-parent"), *ben.ParentID)

	gone, err := m.Accounts().Get(ctx, *ben.ParentID)
	require.NoError(t, err)
	assert.Nil(t, gone, "Anna's parent account must be gone")
}

func TestRemover_RemoveUser_ItemsSurvive(t *testing.T) {
	// Household items have no owner; removal never touches them.
	m := store.NewMemory()
	seedHousehold(t, m)
	ctx := context.Background()

	rem := ledger.NewRemover(m, nil)
	require.NoError(t, rem.RemoveUser(ctx, "user-anna"))

	items, err := m.Items().List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRemover_RemoveUser_Missing(t *testing.T) {
	m := store.NewMemory()
	rem := ledger.NewRemover(m, nil)

	err := rem.RemoveUser(context.Background(), "user-ghost")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// ATOMICITY
// =============================================================================

// failingUsers wraps the user store so the final deletion step fails,
// exercising whole-unit rollback.
type failingUsers struct {
	ledger.UserStore
	err error
}

func (f failingUsers) Delete(context.Context, ledger.UserID) error { return f.err }

type failingStores struct {
	ledger.Stores
	users failingUsers
}

func (f failingStores) Users() ledger.UserStore { return f.users }

type failingUnit struct {
	*store.Memory
	err error
}

func (f failingUnit) WithTx(ctx context.Context, fn func(ledger.Stores) error) error {
	return f.Memory.WithTx(ctx, func(s ledger.Stores) error {
		return fn(failingStores{Stores: s, users: failingUsers{s.Users(), f.err}})
	})
}

func TestRemover_RemoveUser_RollsBackOnFailure(t *testing.T) {
	// GIVEN: A store whose user deletion (step 6) always fails
	m := store.NewMemory()
	seedHousehold(t, m)
	ctx := context.Background()

	boom := errors.New("disk full")
	rem := ledger.NewRemover(failingUnit{m, boom}, nil)

	// WHEN: Removal fails at the last step
	err := rem.RemoveUser(ctx, "user-anna")
	require.ErrorIs(t, err, boom)

	// THEN: Nothing was removed, including the records deleted in
	// earlier steps of the same unit
	u, _ := m.Users().Get(ctx, "user-anna")
	assert.NotNil(t, u)

	accounts, _ := m.Accounts().ListByUser(ctx, "user-anna")
	assert.Len(t, accounts, 2)

	txs, _ := m.Transactions().ListByUser(ctx, "user-anna")
	assert.Len(t, txs, 2)

	budgets, _ := m.Budgets().ListByUser(ctx, "user-anna")
	assert.Len(t, budgets, 1)
}

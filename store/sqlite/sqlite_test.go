package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthkeep/ledger-engine/ledger"
	"github.com/hearthkeep/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, s *sqlite.Store, id ledger.UserID) {
	t.Helper()
	err := s.Users().Create(context.Background(), &ledger.User{
		ID:        id,
		Email:     string(id) + "@example.com",
		Name:      string(id),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func seedAccount(t *testing.T, s *sqlite.Store, id ledger.AccountID, user ledger.UserID, currency, balance string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.Accounts().Create(context.Background(), &ledger.Account{
		ID:        id,
		UserID:    user,
		Name:      string(id),
		Type:      ledger.AccountCash,
		Balance:   decimal.RequireFromString(balance),
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestStore_AccountRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")

	parent := ledger.AccountID("acct-parent")
	seedAccount(t, s, parent, "user-1", "CNY", "1234.56")

	child := ledger.AccountID("acct-child")
	now := time.Now().UTC()
	require.NoError(t, s.Accounts().Create(ctx, &ledger.Account{
		ID: child, UserID: "user-1", Name: "child", Type: ledger.AccountSavings,
		Balance: decimal.Zero, Currency: "CNY", ParentID: &parent,
		CreatedAt: now, UpdatedAt: now,
	}))

	got, err := s.Accounts().Get(ctx, parent)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("1234.56")), "balance = %s", got.Balance)
	assert.Equal(t, "CNY", got.Currency)
	assert.Nil(t, got.ParentID)

	gotChild, err := s.Accounts().Get(ctx, child)
	require.NoError(t, err)
	require.NotNil(t, gotChild.ParentID)
	assert.Equal(t, parent, *gotChild.ParentID)

	children, err := s.Accounts().ListChildren(ctx, parent)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	missing, err := s.Accounts().Get(ctx, "acct-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing, "missing account is (nil, nil)")
}

func TestStore_AdjustBalance_ExactIncrements(t *testing.T) {
	// Balances live as integer minor units; a long run of cent-sized
	// adjustments never drifts.
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	seedAccount(t, s, "acct-1", "user-1", "CNY", "0.00")

	cent := decimal.RequireFromString("0.01")
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Accounts().AdjustBalance(ctx, "acct-1", cent))
	}
	require.NoError(t, s.Accounts().AdjustBalance(ctx, "acct-1", decimal.RequireFromString("-0.30")))

	got, err := s.Accounts().Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("0.70")), "balance = %s", got.Balance)
}

func TestStore_AdjustBalance_ZeroExponentCurrency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	seedAccount(t, s, "acct-yen", "user-1", "JPY", "1000")

	require.NoError(t, s.Accounts().AdjustBalance(ctx, "acct-yen", decimal.RequireFromString("-250")))

	got, err := s.Accounts().Get(ctx, "acct-yen")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("750")))

	// Sub-yen deltas cannot be represented and are rejected.
	err = s.Accounts().AdjustBalance(ctx, "acct-yen", decimal.RequireFromString("0.5"))
	assert.True(t, ledger.IsValidation(err))
}

func TestStore_AdjustBalance_MissingAccount(t *testing.T) {
	s := newTestStore(t)

	err := s.Accounts().AdjustBalance(context.Background(), "acct-ghost", decimal.RequireFromString("1"))
	assert.True(t, ledger.IsNotFound(err))
}

func TestStore_ClearParents_OwnAccountsOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	seedUser(t, s, "user-2")

	parent := ledger.AccountID("acct-parent")
	seedAccount(t, s, parent, "user-1", "CNY", "0.00")
	now := time.Now().UTC()
	require.NoError(t, s.Accounts().Create(ctx, &ledger.Account{
		ID: "acct-own-child", UserID: "user-1", Name: "own", Type: ledger.AccountCash,
		Balance: decimal.Zero, Currency: "CNY", ParentID: &parent, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.Accounts().Create(ctx, &ledger.Account{
		ID: "acct-foreign-child", UserID: "user-2", Name: "foreign", Type: ledger.AccountCash,
		Balance: decimal.Zero, Currency: "CNY", ParentID: &parent, CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, s.Accounts().ClearParents(ctx, "user-1"))

	own, err := s.Accounts().Get(ctx, "acct-own-child")
	require.NoError(t, err)
	assert.Nil(t, own.ParentID)

	foreign, err := s.Accounts().Get(ctx, "acct-foreign-child")
	require.NoError(t, err)
	require.NotNil(t, foreign.ParentID)
	assert.Equal(t, parent, *foreign.ParentID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_TransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	seedAccount(t, s, "acct-src", "user-1", "CNY", "100.00")
	seedAccount(t, s, "acct-dst", "user-1", "CNY", "0.00")

	target := ledger.AccountID("acct-dst")
	now := time.Now().UTC().Truncate(time.Second)
	tx := &ledger.Transaction{
		ID:              "tx-1",
		UserID:          "user-1",
		Type:            ledger.TxTransfer,
		Amount:          decimal.RequireFromString("42.50"),
		Date:            now,
		Description:     "moving savings",
		AccountID:       "acct-src",
		TargetAccountID: &target,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.Transactions().Create(ctx, tx))

	got, err := s.Transactions().Get(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, "moving savings", got.Description)
	require.NotNil(t, got.TargetAccountID)
	assert.Equal(t, target, *got.TargetAccountID)

	// Counted for both the source and the target account.
	for _, acct := range []ledger.AccountID{"acct-src", "acct-dst"} {
		count, err := s.Transactions().CountByAccount(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "count for %s", acct)

		list, err := s.Transactions().ListByAccount(ctx, acct)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}

	got.Description = "edited"
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.Transactions().Update(ctx, got))
	again, err := s.Transactions().Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "edited", again.Description)
}

func TestStore_Update_MissingTransaction(t *testing.T) {
	s := newTestStore(t)

	err := s.Transactions().Update(context.Background(), &ledger.Transaction{
		ID:     "tx-ghost",
		Amount: decimal.RequireFromString("1"),
		Date:   time.Now(),
	})
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

func TestStore_WithTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")

	boom := errors.New("abort")
	err := s.WithTx(ctx, func(tx ledger.Stores) error {
		now := time.Now().UTC()
		if err := tx.Accounts().Create(ctx, &ledger.Account{
			ID: "acct-1", UserID: "user-1", Name: "doomed", Type: ledger.AccountCash,
			Balance: decimal.Zero, Currency: "CNY", CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Accounts().Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled-back account must not exist")
}

func TestStore_WithTx_Commits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")

	err := s.WithTx(ctx, func(tx ledger.Stores) error {
		now := time.Now().UTC()
		return tx.Accounts().Create(ctx, &ledger.Account{
			ID: "acct-1", UserID: "user-1", Name: "kept", Type: ledger.AccountCash,
			Balance: decimal.RequireFromString("5.00"), Currency: "CNY",
			CreatedAt: now, UpdatedAt: now,
		})
	})
	require.NoError(t, err)

	got, err := s.Accounts().Get(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("5.00")))
}

// =============================================================================
// USERS AND REFERENCE DATA
// =============================================================================

func TestStore_Users_GetByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")

	got, err := s.Users().GetByEmail(ctx, "user-1@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.UserID("user-1"), got.ID)

	missing, err := s.Users().GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Categories_ByCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Categories().Create(ctx, &ledger.Category{
		ID: "cat-1", Code: "GROCERIES", Name: "Groceries",
	}))

	got, err := s.Categories().GetByCode(ctx, "GROCERIES")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.CategoryID("cat-1"), got.ID)

	// Duplicate codes surface as a caller-actionable duplicate, not
	// a generic storage failure.
	err = s.Categories().Create(ctx, &ledger.Category{
		ID: "cat-2", Code: "GROCERIES", Name: "Also groceries",
	})
	require.Error(t, err)
	var dup *ledger.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "category", dup.Kind)
	assert.Equal(t, "code", dup.Field)
}

func TestStore_Users_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().Create(ctx, &ledger.User{
		ID: "user-1", Email: "anna@example.com", Name: "Anna",
	}))

	err := s.Users().Create(ctx, &ledger.User{
		ID: "user-2", Email: "anna@example.com", Name: "Other Anna",
	})
	require.Error(t, err)
	assert.True(t, ledger.IsDuplicate(err))
	var dup *ledger.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "user", dup.Kind)
	assert.Equal(t, "email", dup.Field)
}

func TestStore_Assets_TypesAndHoldings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")

	require.NoError(t, s.Assets().CreateType(ctx, &ledger.AssetType{Code: "GOLD", Name: "Gold grams"}))
	typ, err := s.Assets().GetType(ctx, "GOLD")
	require.NoError(t, err)
	require.NotNil(t, typ)

	require.NoError(t, s.Assets().Create(ctx, &ledger.Asset{
		ID: "asset-1", UserID: "user-1", TypeCode: "GOLD", Name: "wedding gold",
		Quantity: decimal.RequireFromString("15.5"), UnitCost: decimal.RequireFromString("480.00"),
		Currency: "CNY",
	}))

	assets, err := s.Assets().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.True(t, assets[0].Quantity.Equal(decimal.RequireFromString("15.5")))

	require.NoError(t, s.Assets().DeleteByUser(ctx, "user-1"))
	assets, err = s.Assets().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, assets)
}

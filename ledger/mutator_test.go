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

const actor = ledger.UserID("user-anna")

func newTestMutator(t *testing.T) (*ledger.Mutator, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return ledger.NewMutator(m, nil), m
}

func seedAccount(t *testing.T, m *store.Memory, id ledger.AccountID, currency, balance string) {
	t.Helper()
	now := time.Now().UTC()
	err := m.Accounts().Create(context.Background(), &ledger.Account{
		ID:        id,
		UserID:    actor,
		Name:      string(id),
		Type:      ledger.AccountCash,
		Balance:   decimal.RequireFromString(balance),
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

func getBalance(t *testing.T, m *store.Memory, id ledger.AccountID) decimal.Decimal {
	t.Helper()
	a, err := m.Accounts().Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance
}

func expenseInput(account ledger.AccountID, amount string) ledger.TransactionInput {
	return ledger.TransactionInput{
		Type:      ledger.TxExpense,
		Amount:    decimal.RequireFromString(amount),
		Date:      time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		AccountID: account,
	}
}

func transferInput(from, to ledger.AccountID, amount string) ledger.TransactionInput {
	return ledger.TransactionInput{
		Type:            ledger.TxTransfer,
		Amount:          decimal.RequireFromString(amount),
		Date:            time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		AccountID:       from,
		TargetAccountID: &to,
	}
}

// =============================================================================
// LIFECYCLE SCENARIO
// =============================================================================

func TestMutator_ExpenseLifecycle(t *testing.T) {
	// GIVEN: An account holding 1000.00 CNY
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-groceries", "CNY", "1000.00")
	ctx := context.Background()

	// WHEN: Recording a 150.00 expense
	tx, err := mut.Create(ctx, actor, expenseInput("acct-groceries", "150.00"))
	require.NoError(t, err)

	// THEN: Balance drops to 850.00
	assert.True(t, getBalance(t, m, "acct-groceries").Equal(decimal.RequireFromString("850.00")),
		"balance after create = %s", getBalance(t, m, "acct-groceries"))

	// WHEN: Editing the amount to 200.00
	in := expenseInput("acct-groceries", "200.00")
	_, err = mut.Update(ctx, actor, tx.ID, in)
	require.NoError(t, err)

	// THEN: Balance is 800.00, adjusted by the net -50.00
	assert.True(t, getBalance(t, m, "acct-groceries").Equal(decimal.RequireFromString("800.00")))

	// WHEN: Deleting the transaction
	require.NoError(t, mut.Delete(ctx, actor, tx.ID))

	// THEN: Balance returns to exactly 1000.00
	assert.True(t, getBalance(t, m, "acct-groceries").Equal(decimal.RequireFromString("1000.00")))

	gone, err := m.Transactions().Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "deleted transaction should be gone")
}

// =============================================================================
// TRANSFER SYMMETRY
// =============================================================================

func TestMutator_TransferSymmetry(t *testing.T) {
	// GIVEN: Two accounts
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-checking", "CNY", "500.00")
	seedAccount(t, m, "acct-savings", "CNY", "100.00")
	ctx := context.Background()

	// WHEN: Transferring 200.00
	tx, err := mut.Create(ctx, actor, transferInput("acct-checking", "acct-savings", "200.00"))
	require.NoError(t, err)

	// THEN: Source decreased and target increased by the same amount
	assert.True(t, getBalance(t, m, "acct-checking").Equal(decimal.RequireFromString("300.00")))
	assert.True(t, getBalance(t, m, "acct-savings").Equal(decimal.RequireFromString("300.00")))

	// WHEN: Deleting the transfer
	require.NoError(t, mut.Delete(ctx, actor, tx.ID))

	// THEN: Both balances are restored
	assert.True(t, getBalance(t, m, "acct-checking").Equal(decimal.RequireFromString("500.00")))
	assert.True(t, getBalance(t, m, "acct-savings").Equal(decimal.RequireFromString("100.00")))
}

// =============================================================================
// EDITS
// =============================================================================

func TestMutator_Update_MoveAcrossAccounts(t *testing.T) {
	// GIVEN: An expense recorded against account A
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "1000.00")
	seedAccount(t, m, "acct-b", "CNY", "1000.00")
	ctx := context.Background()

	tx, err := mut.Create(ctx, actor, expenseInput("acct-a", "150.00"))
	require.NoError(t, err)

	// WHEN: Moving it to account B
	_, err = mut.Update(ctx, actor, tx.ID, expenseInput("acct-b", "150.00"))
	require.NoError(t, err)

	// THEN: A is restored, B carries the expense; one adjustment each
	assert.True(t, getBalance(t, m, "acct-a").Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, getBalance(t, m, "acct-b").Equal(decimal.RequireFromString("850.00")))
}

func TestMutator_Update_TypeChange(t *testing.T) {
	// GIVEN: A 150.00 expense (balance 850.00)
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "1000.00")
	ctx := context.Background()

	tx, err := mut.Create(ctx, actor, expenseInput("acct-a", "150.00"))
	require.NoError(t, err)

	// WHEN: Changing the type to INCOME
	in := expenseInput("acct-a", "150.00")
	in.Type = ledger.TxIncome
	_, err = mut.Update(ctx, actor, tx.ID, in)
	require.NoError(t, err)

	// THEN: The -150 is reverted and +150 applied, net +300
	assert.True(t, getBalance(t, m, "acct-a").Equal(decimal.RequireFromString("1150.00")))
}

func TestMutator_Update_MetadataOnly_NoBalanceChange(t *testing.T) {
	// GIVEN: A recorded expense
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "1000.00")
	ctx := context.Background()

	tx, err := mut.Create(ctx, actor, expenseInput("acct-a", "150.00"))
	require.NoError(t, err)

	// WHEN: Editing only the description
	in := expenseInput("acct-a", "150.00")
	in.Description = "weekly groceries"
	updated, err := mut.Update(ctx, actor, tx.ID, in)
	require.NoError(t, err)

	// THEN: The balance is untouched and the description persisted
	assert.True(t, getBalance(t, m, "acct-a").Equal(decimal.RequireFromString("850.00")))
	assert.Equal(t, "weekly groceries", updated.Description)
}

func TestMutator_Update_Missing(t *testing.T) {
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "100.00")

	_, err := mut.Update(context.Background(), actor, "no-such-tx", expenseInput("acct-a", "10.00"))
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// BULK DELETE
// =============================================================================

func TestMutator_BulkDelete_SkipsMissing(t *testing.T) {
	// GIVEN: Two recorded expenses
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "1000.00")
	ctx := context.Background()

	tx1, err := mut.Create(ctx, actor, expenseInput("acct-a", "100.00"))
	require.NoError(t, err)
	tx2, err := mut.Create(ctx, actor, expenseInput("acct-a", "50.00"))
	require.NoError(t, err)

	// WHEN: Bulk deleting both plus an id that never existed
	removed, err := mut.BulkDelete(ctx, actor, []ledger.TransactionID{tx1.ID, "ghost", tx2.ID})
	require.NoError(t, err)

	// THEN: The missing id is skipped and the balance fully restored
	assert.Equal(t, 2, removed)
	assert.True(t, getBalance(t, m, "acct-a").Equal(decimal.RequireFromString("1000.00")))
}

func TestMutator_BulkDelete_Atomic(t *testing.T) {
	// GIVEN: Expenses on two accounts, and a store that fails the
	// balance adjustment on the second account
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "1000.00")
	seedAccount(t, m, "acct-b", "CNY", "1000.00")
	ctx := context.Background()

	tx1, err := mut.Create(ctx, actor, expenseInput("acct-a", "100.00"))
	require.NoError(t, err)
	tx2, err := mut.Create(ctx, actor, expenseInput("acct-b", "200.00"))
	require.NoError(t, err)

	boom := errors.New("disk full")
	m.FailAdjust = func(id ledger.AccountID) error {
		if id == "acct-b" {
			return boom
		}
		return nil
	}

	// WHEN: Bulk deleting both
	_, err = mut.BulkDelete(ctx, actor, []ledger.TransactionID{tx1.ID, tx2.ID})

	// THEN: The whole batch rolls back; both records and both
	// balances are exactly as before
	require.ErrorIs(t, err, boom)

	still1, _ := m.Transactions().Get(ctx, tx1.ID)
	still2, _ := m.Transactions().Get(ctx, tx2.ID)
	assert.NotNil(t, still1, "tx1 must survive the failed batch")
	assert.NotNil(t, still2, "tx2 must survive the failed batch")
	assert.True(t, getBalance(t, m, "acct-a").Equal(decimal.RequireFromString("900.00")))
	assert.True(t, getBalance(t, m, "acct-b").Equal(decimal.RequireFromString("800.00")))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestMutator_Create_Validation(t *testing.T) {
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "100.00")
	seedAccount(t, m, "acct-b", "CNY", "100.00")
	ctx := context.Background()

	cases := []struct {
		name string
		in   ledger.TransactionInput
	}{
		{"zero amount", func() ledger.TransactionInput {
			in := expenseInput("acct-a", "100.00")
			in.Amount = decimal.Zero
			return in
		}()},
		{"negative amount", func() ledger.TransactionInput {
			in := expenseInput("acct-a", "100.00")
			in.Amount = decimal.RequireFromString("-5")
			return in
		}()},
		{"missing date", func() ledger.TransactionInput {
			in := expenseInput("acct-a", "100.00")
			in.Date = time.Time{}
			return in
		}()},
		{"bad type", func() ledger.TransactionInput {
			in := expenseInput("acct-a", "100.00")
			in.Type = "REFUND"
			return in
		}()},
		{"transfer without target", func() ledger.TransactionInput {
			in := transferInput("acct-a", "acct-b", "10.00")
			in.TargetAccountID = nil
			return in
		}()},
		{"transfer to itself", transferInput("acct-a", "acct-a", "10.00")},
		{"expense with target", func() ledger.TransactionInput {
			in := expenseInput("acct-a", "100.00")
			target := ledger.AccountID("acct-b")
			in.TargetAccountID = &target
			return in
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mut.Create(ctx, actor, tc.in)
			assert.True(t, ledger.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestMutator_Create_RequiresActor(t *testing.T) {
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-a", "CNY", "100.00")

	_, err := mut.Create(context.Background(), "", expenseInput("acct-a", "10.00"))
	assert.ErrorIs(t, err, ledger.ErrNoActor)
}

func TestMutator_Create_MissingAccount(t *testing.T) {
	mut, _ := newTestMutator(t)

	_, err := mut.Create(context.Background(), actor, expenseInput("acct-ghost", "10.00"))
	assert.True(t, ledger.IsNotFound(err))
}

func TestMutator_Create_PrecisionBeyondCurrency(t *testing.T) {
	// GIVEN: A JPY account (zero decimal places)
	mut, m := newTestMutator(t)
	seedAccount(t, m, "acct-yen", "JPY", "10000")

	// WHEN: Recording a half-yen expense
	_, err := mut.Create(context.Background(), actor, expenseInput("acct-yen", "100.5"))

	// THEN: Rejected as validation, balance untouched
	assert.True(t, ledger.IsValidation(err))
	assert.True(t, getBalance(t, m, "acct-yen").Equal(decimal.RequireFromString("10000")))
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// signalLog records invalidation signals so tests can assert who was
// told their cached listings went stale.
type signalLog struct {
	accounts     []ledger.UserID
	transactions []ledger.UserID
}

func (n *signalLog) AccountsChanged(id ledger.UserID) { n.accounts = append(n.accounts, id) }

func (n *signalLog) TransactionsChanged(id ledger.UserID) {
	n.transactions = append(n.transactions, id)
}

func seedAccountFor(t *testing.T, m *store.Memory, owner ledger.UserID, id ledger.AccountID, currency, balance string) {
	t.Helper()
	now := time.Now().UTC()
	err := m.Accounts().Create(context.Background(), &ledger.Account{
		ID:        id,
		UserID:    owner,
		Name:      string(id),
		Type:      ledger.AccountCash,
		Balance:   decimal.RequireFromString(balance),
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestMutator_Transfer_SignalsBothAccountOwners(t *testing.T) {
	// GIVEN: A transfer source owned by the actor and a target owned
	// by someone else
	m := store.NewMemory()
	signals := &signalLog{}
	mut := ledger.NewMutator(m, signals)
	seedAccount(t, m, "acct-anna", "CNY", "500.00")
	seedAccountFor(t, m, "user-ben", "acct-ben", "CNY", "100.00")
	ctx := context.Background()

	// WHEN: The actor transfers into the other owner's account
	tx, err := mut.Create(ctx, actor, transferInput("acct-anna", "acct-ben", "200.00"))
	require.NoError(t, err)

	// THEN: Both owners get an account signal; only the actor owns
	// the transaction record
	assert.ElementsMatch(t, []ledger.UserID{actor, "user-ben"}, signals.accounts)
	assert.Equal(t, []ledger.UserID{actor}, signals.transactions)

	// WHEN: The transfer is deleted
	signals.accounts = nil
	require.NoError(t, mut.Delete(ctx, actor, tx.ID))

	// THEN: The revert reaches both owners too
	assert.ElementsMatch(t, []ledger.UserID{actor, "user-ben"}, signals.accounts)
}

func TestMutator_Update_SignalsOwnerOfVacatedAccount(t *testing.T) {
	// GIVEN: An expense on the actor's account
	m := store.NewMemory()
	signals := &signalLog{}
	mut := ledger.NewMutator(m, signals)
	seedAccount(t, m, "acct-anna", "CNY", "500.00")
	seedAccountFor(t, m, "user-ben", "acct-ben", "CNY", "100.00")
	ctx := context.Background()

	tx, err := mut.Create(ctx, actor, expenseInput("acct-anna", "50.00"))
	require.NoError(t, err)
	signals.accounts = nil

	// WHEN: The expense is moved onto the other owner's account
	in := expenseInput("acct-ben", "50.00")
	_, err = mut.Update(ctx, actor, tx.ID, in)
	require.NoError(t, err)

	// THEN: The revert touches the actor's account and the reapply
	// touches the other owner's, so both are signalled
	assert.ElementsMatch(t, []ledger.UserID{actor, "user-ben"}, signals.accounts)
}

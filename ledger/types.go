/*
Package ledger provides the household bookkeeping consistency engine.

PURPOSE:
  This package contains the types and algorithms that keep every
  account's stored balance consistent with the full history of income,
  expense, and transfer transactions recorded against it. Creation,
  in-place editing, single deletion, bulk deletion, and cascading user
  removal all go through the orchestrators defined here, and each one
  appears atomic to readers even though it is implemented as multiple
  dependent read-modify-write steps.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Holds the authoritative current balance per account
  - Transaction: A single signed effect against one or two accounts
  - Effect: The (accountID, signed delta) pairs a transaction produces
  - Typed IDs: UserID, AccountID, TransactionID, etc.

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing account/user IDs
  3. Single-effect model: No double-entry general ledger; each
     transaction applies a signed delta directly to denormalized
     account balance fields (paired deltas for transfers)
  4. Explicit actors: Every orchestrator entry point takes the acting
     user ID as a parameter; there is no ambient session state

USAGE:
  mut := ledger.NewMutator(store, notifier)
  tx, err := mut.Create(ctx, actorID, ledger.TransactionInput{
      Type:      ledger.TxExpense,
      Amount:    decimal.RequireFromString("150.00"),
      AccountID: acctID,
      Date:      time.Now(),
  })

SEE ALSO:
  - effects.go: Mapping transactions to balance deltas
  - mutator.go: Atomic create/update/delete/bulk-delete
  - removal.go: Cascading user removal
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	money "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type AccountID string
type TransactionID string
type CategoryID string
type AssetID string
type BudgetID string
type ItemID string

// =============================================================================
// ACCOUNT
// =============================================================================

type AccountType string

const (
	AccountCash       AccountType = "CASH"
	AccountSavings    AccountType = "SAVINGS"
	AccountInvestment AccountType = "INVESTMENT"
	AccountDebt       AccountType = "DEBT"
)

// ValidAccountType reports whether t is one of the known account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountCash, AccountSavings, AccountInvestment, AccountDebt:
		return true
	}
	return false
}

// Account holds the authoritative current balance for one account.
//
// Invariant: Balance equals the sum of all signed effects from existing
// transactions that reference this account, at all times the account is
// not mid-mutation. Parent/child balances are never aggregated into the
// stored balance; see Accounts.RollupBalance for the read-time sum.
type Account struct {
	ID       AccountID
	UserID   UserID
	Name     string
	Type     AccountType
	Balance  decimal.Decimal
	Currency string
	ParentID *AccountID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrencyExponent returns the ISO minor-unit exponent for the
// account's currency. See CurrencyExponentFor.
func (a *Account) CurrencyExponent() int {
	return CurrencyExponentFor(a.Currency)
}

// CurrencyExponentFor returns the ISO minor-unit exponent for code
// (2 for CNY/USD/EUR, 0 for JPY, ...). Unknown codes fall back to 2;
// they are rejected earlier by validation.
func CurrencyExponentFor(code string) int {
	if c := money.GetCurrency(code); c != nil {
		return c.Fraction
	}
	return 2
}

// KnownCurrency reports whether code is a recognized ISO currency code.
func KnownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionType string

const (
	TxIncome   TransactionType = "INCOME"
	TxExpense  TransactionType = "EXPENSE"
	TxTransfer TransactionType = "TRANSFER"
)

// ValidTransactionType reports whether t is one of the known types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TxIncome, TxExpense, TxTransfer:
		return true
	}
	return false
}

// Transaction is a ledger record. Amount is always a positive
// magnitude; the sign of its balance impact is derived entirely from
// Type by the effect calculator.
type Transaction struct {
	ID          TransactionID
	UserID      UserID
	Type        TransactionType
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	CategoryID  *CategoryID

	// AccountID is the source account. TargetAccountID is set iff
	// Type == TxTransfer and must differ from AccountID.
	AccountID       AccountID
	TargetAccountID *AccountID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionInput carries the caller-supplied fields for Create and
// Update. IDs and timestamps are assigned by the orchestrator.
type TransactionInput struct {
	Type            TransactionType
	Amount          decimal.Decimal
	Date            time.Time
	Description     string
	CategoryID      *CategoryID
	AccountID       AccountID
	TargetAccountID *AccountID
}

// =============================================================================
// EFFECT - Derived, never persisted
// =============================================================================

// Effect is the signed balance delta a transaction contributes to one
// account. A transaction yields one effect (income, expense) or two
// (transfer).
type Effect struct {
	AccountID AccountID
	Delta     decimal.Decimal
}

// =============================================================================
// SUPPORTING RECORDS
// =============================================================================

// User owns accounts, transactions, budgets, and investment assets.
type User struct {
	ID        UserID
	Email     string
	Name      string
	CreatedAt time.Time
}

// Category classifies transactions. Code is the stable external
// identifier used for import matching.
type Category struct {
	ID   CategoryID
	Code string
	Name string
}

// AssetType classifies investment assets, matched by Code on import.
type AssetType struct {
	Code string
	Name string
}

// Asset is an investment holding (fund shares, gold grams, stock lots).
type Asset struct {
	ID       AssetID
	UserID   UserID
	TypeCode string
	Name     string
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	Currency string
}

// Budget is a per-category spending limit.
type Budget struct {
	ID         BudgetID
	UserID     UserID
	CategoryID *CategoryID
	Amount     decimal.Decimal
	Period     string // e.g. "monthly", "yearly"
}

// Item is a physical household item. Items are scoped to the
// household rather than a single user, so cascading user removal
// leaves them in place.
type Item struct {
	ID         ItemID
	Name       string
	Value      decimal.Decimal
	Currency   string
	AcquiredAt time.Time
}

/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Defines the interface between the orchestrators and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Stores:     Bundle of per-entity stores sharing one visibility scope
  UnitOfWork: Stores plus WithTx for atomic multi-table mutations
  Notifier:   Outbound view-invalidation signal (fire and forget)

ATOMIC UNITS:
  Every mutation in mutator.go and removal.go runs inside WithTx.
  If fn returns an error the whole unit is rolled back; nothing
  partial is ever visible to readers.

BALANCE ADJUSTMENTS:
  AccountStore.AdjustBalance must be issued to the store as a single
  atomic increment (UPDATE accounts SET balance = balance + ?), never
  as application-level read-then-write. Combined with WithTx and
  ascending-account-id ordering of deltas, this closes the lost-update
  race between concurrent mutations sharing an account.

IMPLEMENTATIONS:
  - store/sqlite:     Production SQLite
  - ledger/store:     In-memory for testing

SEE ALSO:
  - mutator.go, removal.go: The only writers
  - store/sqlite/sqlite.go: Concrete implementation
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PER-ENTITY STORES
// =============================================================================

// AccountStore persists accounts. Get returns (nil, nil) when the
// account does not exist; orchestrators translate that into a
// NotFoundError.
type AccountStore interface {
	Get(ctx context.Context, id AccountID) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error

	// AdjustBalance applies delta to the stored balance as a single
	// atomic increment. Returns NotFoundError if the account is absent.
	AdjustBalance(ctx context.Context, id AccountID, delta decimal.Decimal) error

	// SetParent updates the parent reference. nil clears it.
	SetParent(ctx context.Context, id AccountID, parentID *AccountID) error

	// ClearParents nulls the parent reference on every account owned
	// by userID. Used by cascading removal before account deletion.
	ClearParents(ctx context.Context, userID UserID) error

	Delete(ctx context.Context, id AccountID) error
	DeleteByUser(ctx context.Context, userID UserID) error
	ListByUser(ctx context.Context, userID UserID) ([]Account, error)
	ListChildren(ctx context.Context, parentID AccountID) ([]Account, error)
}

// TransactionStore persists ledger records.
type TransactionStore interface {
	Get(ctx context.Context, id TransactionID) (*Transaction, error)
	Create(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, id TransactionID) error
	DeleteByUser(ctx context.Context, userID UserID) error

	// ListByAccount returns transactions referencing the account as
	// source or transfer target.
	ListByAccount(ctx context.Context, accountID AccountID) ([]Transaction, error)
	ListByUser(ctx context.Context, userID UserID) ([]Transaction, error)

	// CountByAccount counts transactions referencing the account as
	// source or transfer target. Used for deletion constraints.
	CountByAccount(ctx context.Context, accountID AccountID) (int, error)
}

// UserStore persists users. GetByEmail returns (nil, nil) when no
// user carries that email; the importer uses it for idempotent
// matching.
type UserStore interface {
	Get(ctx context.Context, id UserID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Delete(ctx context.Context, id UserID) error
	List(ctx context.Context) ([]User, error)
}

// CategoryStore persists transaction categories, matched by code on
// import.
type CategoryStore interface {
	Get(ctx context.Context, id CategoryID) (*Category, error)
	GetByCode(ctx context.Context, code string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	List(ctx context.Context) ([]Category, error)
}

// AssetStore persists investment assets and their types.
type AssetStore interface {
	Create(ctx context.Context, a *Asset) error
	ListByUser(ctx context.Context, userID UserID) ([]Asset, error)
	DeleteByUser(ctx context.Context, userID UserID) error

	GetType(ctx context.Context, code string) (*AssetType, error)
	CreateType(ctx context.Context, t *AssetType) error
	ListTypes(ctx context.Context) ([]AssetType, error)
}

// BudgetStore persists budgets. Only cascading removal and the
// importer write here.
type BudgetStore interface {
	Create(ctx context.Context, b *Budget) error
	ListByUser(ctx context.Context, userID UserID) ([]Budget, error)
	DeleteByUser(ctx context.Context, userID UserID) error
}

// ItemStore persists physical household items. Items are scoped to
// the household, not a user, so removal never touches them.
type ItemStore interface {
	Create(ctx context.Context, it *Item) error
	List(ctx context.Context) ([]Item, error)
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// Stores bundles the per-entity stores behind one visibility scope:
// either autocommit reads or a single in-flight transaction.
type Stores interface {
	Users() UserStore
	Categories() CategoryStore
	Accounts() AccountStore
	Transactions() TransactionStore
	Assets() AssetStore
	Budgets() BudgetStore
	Items() ItemStore
}

// UnitOfWork is the root store handle. WithTx executes fn within one
// atomic unit: if fn returns an error the unit is rolled back, if fn
// returns nil it is committed. Mutations never span WithTx calls.
type UnitOfWork interface {
	Stores
	WithTx(ctx context.Context, fn func(Stores) error) error
}

// =============================================================================
// VIEW INVALIDATION
// =============================================================================

// Notifier receives fire-and-forget invalidation signals for listing
// views after a successful mutation. It is invoked after commit and
// is not part of the atomicity guarantee; implementations must not
// fail the mutation.
type Notifier interface {
	AccountsChanged(userID UserID)
	TransactionsChanged(userID UserID)
}

// NopNotifier discards all signals.
type NopNotifier struct{}

func (NopNotifier) AccountsChanged(UserID)     {}
func (NopNotifier) TransactionsChanged(UserID) {}

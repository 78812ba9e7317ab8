/*
hierarchy.go - Account lifecycle and parent/child management

PURPOSE:
  Account creation, parent assignment, guarded deletion, and the
  read-time balance rollup. The "top-level parents only" business rule
  is enforced here as an explicit invariant check rather than left to
  UI convention: an account may have at most one parent, and children
  are never nested beyond one level.

ROLLUP:
  Parent and child balances are never aggregated into the parent's
  stored balance. RollupBalance computes the sum at read time.

SEE ALSO:
  - removal.go: Forced account deletion during cascading user removal
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountInput carries the caller-supplied fields for account creation.
type AccountInput struct {
	Name     string
	Type     AccountType
	Currency string
	Balance  decimal.Decimal // opening balance
	ParentID *AccountID
}

// Accounts orchestrates account lifecycle operations.
type Accounts struct {
	store  UnitOfWork
	notify Notifier
}

func NewAccounts(store UnitOfWork, notify Notifier) *Accounts {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Accounts{store: store, notify: notify}
}

// Get returns the account or a NotFoundError.
func (a *Accounts) Get(ctx context.Context, id AccountID) (*Account, error) {
	acct, err := a.store.Accounts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, &NotFoundError{Kind: "account", ID: string(id)}
	}
	return acct, nil
}

// Create validates and inserts a new account owned by actor.
func (a *Accounts) Create(ctx context.Context, actor UserID, in AccountInput) (*Account, error) {
	if actor == "" {
		return nil, ErrNoActor
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must be set"}
	}
	if !ValidAccountType(in.Type) {
		return nil, &ValidationError{Field: "type", Reason: "must be CASH, SAVINGS, INVESTMENT, or DEBT"}
	}
	if !KnownCurrency(in.Currency) {
		return nil, &ValidationError{Field: "currency", Reason: "unknown ISO currency code " + in.Currency}
	}

	now := time.Now().UTC()
	acct := &Account{
		ID:        AccountID(uuid.NewString()),
		UserID:    actor,
		Name:      in.Name,
		Type:      in.Type,
		Balance:   in.Balance,
		Currency:  in.Currency,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := checkPrecision(in.Balance, acct); err != nil {
		return nil, err
	}

	err := a.store.WithTx(ctx, func(s Stores) error {
		if in.ParentID != nil {
			if err := checkParent(ctx, s, acct.ID, *in.ParentID); err != nil {
				return err
			}
		}
		return s.Accounts().Create(ctx, acct)
	})
	if err != nil {
		return nil, err
	}

	a.notify.AccountsChanged(actor)
	return acct, nil
}

// Rename updates the account's display name. Balance, currency, and
// nesting are managed by their own operations.
func (a *Accounts) Rename(ctx context.Context, actor UserID, id AccountID, name string) (*Account, error) {
	if actor == "" {
		return nil, ErrNoActor
	}
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must be set"}
	}

	var renamed *Account
	err := a.store.WithTx(ctx, func(s Stores) error {
		acct, err := s.Accounts().Get(ctx, id)
		if err != nil {
			return err
		}
		if acct == nil {
			return &NotFoundError{Kind: "account", ID: string(id)}
		}
		acct.Name = name
		acct.UpdatedAt = time.Now().UTC()
		if err := s.Accounts().Update(ctx, acct); err != nil {
			return err
		}
		renamed = acct
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.notify.AccountsChanged(renamed.UserID)
	return renamed, nil
}

// SetParent attaches the account to a parent, or detaches it when
// parentID is nil. The one-level invariant is enforced in both
// directions: the new parent must be top-level, and the account must
// not itself have children.
func (a *Accounts) SetParent(ctx context.Context, actor UserID, id AccountID, parentID *AccountID) error {
	if actor == "" {
		return ErrNoActor
	}

	var owner UserID
	err := a.store.WithTx(ctx, func(s Stores) error {
		acct, err := s.Accounts().Get(ctx, id)
		if err != nil {
			return err
		}
		if acct == nil {
			return &NotFoundError{Kind: "account", ID: string(id)}
		}
		owner = acct.UserID
		if parentID != nil {
			if err := checkParent(ctx, s, id, *parentID); err != nil {
				return err
			}
			children, err := s.Accounts().ListChildren(ctx, id)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return &ValidationError{Field: "parent_id", Reason: "account with children cannot be nested"}
			}
		}
		return s.Accounts().SetParent(ctx, id, parentID)
	})
	if err != nil {
		return err
	}

	a.notify.AccountsChanged(owner)
	return nil
}

// Delete removes an account that has zero transactions and zero child
// accounts. Anything else is a ConstraintViolationError naming the
// blockers. Forced removal happens only through cascading user removal.
func (a *Accounts) Delete(ctx context.Context, actor UserID, id AccountID) error {
	if actor == "" {
		return ErrNoActor
	}

	var owner UserID
	err := a.store.WithTx(ctx, func(s Stores) error {
		acct, err := s.Accounts().Get(ctx, id)
		if err != nil {
			return err
		}
		if acct == nil {
			return &NotFoundError{Kind: "account", ID: string(id)}
		}
		owner = acct.UserID

		count, err := s.Transactions().CountByAccount(ctx, id)
		if err != nil {
			return err
		}
		children, err := s.Accounts().ListChildren(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 || len(children) > 0 {
			cv := &ConstraintViolationError{AccountID: id, BlockingTransactions: count}
			for _, c := range children {
				cv.BlockingChildren = append(cv.BlockingChildren, c.ID)
			}
			return cv
		}
		return s.Accounts().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	a.notify.AccountsChanged(owner)
	return nil
}

// RollupBalance returns the account's own balance plus the balances
// of its direct children. Computed at read time, never stored.
func (a *Accounts) RollupBalance(ctx context.Context, id AccountID) (decimal.Decimal, error) {
	acct, err := a.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	children, err := a.store.Accounts().ListChildren(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	total := acct.Balance
	for _, c := range children {
		total = total.Add(c.Balance)
	}
	return total, nil
}

// checkParent enforces the parent half of the one-level invariant.
func checkParent(ctx context.Context, s Stores, id, parentID AccountID) error {
	if parentID == id {
		return &ValidationError{Field: "parent_id", Reason: "account cannot be its own parent"}
	}
	parent, err := s.Accounts().Get(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return &NotFoundError{Kind: "account", ID: string(parentID)}
	}
	if parent.ParentID != nil {
		return &ValidationError{Field: "parent_id", Reason: "parent account is itself nested; only top-level accounts can be parents"}
	}
	return nil
}

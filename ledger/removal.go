/*
removal.go - Cascading user removal

PURPOSE:
  Deletes a user together with every record that would otherwise
  violate referential integrity, in FK-safe order, as one atomic unit.
  Partial user deletion is never observable: failure at any step
  aborts the entire removal.

ORDER:
  1. transactions owned by the user (no balance revert: the accounts
     are being removed in the same unit, so balance consistency on a
     deleted account is moot)
  2. budgets owned by the user
  3. investment assets owned by the user
  4. clear parent references on the user's own accounts, so account
     deletion order cannot trip over an in-family parent link
  5. accounts owned by the user
  6. the user record itself

  Child accounts owned by OTHER users are left entirely untouched,
  parent reference included. The hierarchy link is a plain column,
  not a stored constraint, so a removed parent leaves the foreign
  child as a top-level account on the next parent lookup.

SEE ALSO:
  - mutator.go: Per-transaction deletion with balance revert
  - store.go: UnitOfWork contract
*/
package ledger

import "context"

// Remover is the cascading removal orchestrator.
type Remover struct {
	store  UnitOfWork
	notify Notifier
}

func NewRemover(store UnitOfWork, notify Notifier) *Remover {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Remover{store: store, notify: notify}
}

// RemoveUser deletes userID and all dependent records. Returns
// NotFoundError if the user does not exist; on any failure nothing
// is removed.
func (r *Remover) RemoveUser(ctx context.Context, userID UserID) error {
	err := r.store.WithTx(ctx, func(s Stores) error {
		u, err := s.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return &NotFoundError{Kind: "user", ID: string(userID)}
		}

		if err := s.Transactions().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.Budgets().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.Assets().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.Accounts().ClearParents(ctx, userID); err != nil {
			return err
		}
		if err := s.Accounts().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.Users().Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	r.notify.AccountsChanged(userID)
	r.notify.TransactionsChanged(userID)
	return nil
}

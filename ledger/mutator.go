/*
mutator.go - Atomic transaction mutations

PURPOSE:
  Composes the effect calculator with the transaction and account
  stores into create/update/delete/bulk-delete operations that are
  all-or-nothing. "Ledger record" and "account balance" never observe
  an inconsistent intermediate state from the outside.

ORDERING:
  Edits are revert-then-reapply: the old effects are fully undone
  before the new ones land. Because every balance change is issued to
  the store as an atomic increment, the revert and reapply deltas for
  one account collapse into a single net adjustment; an account that
  appears in both old and new effects receives exactly one increment,
  and an account that appears in only one of them receives exactly one
  as well. Net adjustments are applied in ascending account-id order
  so concurrent mutations lock account rows consistently.

EDGE CASES:
  - Changing a transaction's type (EXPENSE -> INCOME) is a first-class
    edit: old effects use the old type, new effects the new type.
  - A metadata-only edit (description, date, category) nets to zero
    and touches no balances.
  - Missing ids in a bulk delete are skipped, not errors: records that
    disappear between selection and deletion are already handled.

NOTIFICATIONS:
  Account-listing invalidation is keyed on account owners, not on the
  acting user. A transfer can land in an account the actor does not
  own; that owner's cached listing is signalled too.

SEE ALSO:
  - effects.go: Delta calculation and netting
  - store.go: UnitOfWork contract
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mutator is the atomic mutation orchestrator for transactions.
type Mutator struct {
	store  UnitOfWork
	notify Notifier
}

// NewMutator creates a Mutator. Pass NopNotifier{} when no view cache
// needs invalidation.
func NewMutator(store UnitOfWork, notify Notifier) *Mutator {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Mutator{store: store, notify: notify}
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates input, inserts the ledger record, and applies its
// effects to the referenced account balances, all in one atomic unit.
func (m *Mutator) Create(ctx context.Context, actor UserID, in TransactionInput) (*Transaction, error) {
	if actor == "" {
		return nil, ErrNoActor
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx := &Transaction{
		ID:              TransactionID(uuid.NewString()),
		UserID:          actor,
		Type:            in.Type,
		Amount:          in.Amount,
		Date:            in.Date,
		Description:     in.Description,
		CategoryID:      in.CategoryID,
		AccountID:       in.AccountID,
		TargetAccountID: in.TargetAccountID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var owners []UserID
	err := m.store.WithTx(ctx, func(s Stores) error {
		if err := m.checkAccounts(ctx, s, tx); err != nil {
			return err
		}
		if err := s.Transactions().Create(ctx, tx); err != nil {
			return err
		}
		effects, err := EffectsOf(tx)
		if err != nil {
			return err
		}
		net := netEffects(effects)
		if err := applyEffects(ctx, s, net); err != nil {
			return err
		}
		owners, err = effectOwners(ctx, s, net)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.notify.TransactionsChanged(actor)
	for _, owner := range owners {
		m.notify.AccountsChanged(owner)
	}
	return tx, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Update loads the existing transaction, reverts its old effects,
// persists the new field values, and applies the new effects. A crash
// or error at any point leaves either the fully-old or fully-new
// state, never a partial one.
func (m *Mutator) Update(ctx context.Context, actor UserID, id TransactionID, in TransactionInput) (*Transaction, error) {
	if actor == "" {
		return nil, ErrNoActor
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *Transaction
	var owners []UserID
	err := m.store.WithTx(ctx, func(s Stores) error {
		old, err := s.Transactions().Get(ctx, id)
		if err != nil {
			return err
		}
		if old == nil {
			return &NotFoundError{Kind: "transaction", ID: string(id)}
		}

		// Old effects against the old type and accounts, before any
		// field is overwritten.
		oldEffects, err := EffectsOf(old)
		if err != nil {
			return err
		}

		next := *old
		next.Type = in.Type
		next.Amount = in.Amount
		next.Date = in.Date
		next.Description = in.Description
		next.CategoryID = in.CategoryID
		next.AccountID = in.AccountID
		next.TargetAccountID = in.TargetAccountID
		next.UpdatedAt = time.Now().UTC()

		if err := m.checkAccounts(ctx, s, &next); err != nil {
			return err
		}
		if err := s.Transactions().Update(ctx, &next); err != nil {
			return err
		}

		newEffects, err := EffectsOf(&next)
		if err != nil {
			return err
		}
		net := netEffects(Reverse(oldEffects), newEffects)
		if err := applyEffects(ctx, s, net); err != nil {
			return err
		}
		if owners, err = effectOwners(ctx, s, net); err != nil {
			return err
		}

		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.notify.TransactionsChanged(actor)
	for _, owner := range owners {
		m.notify.AccountsChanged(owner)
	}
	return updated, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete reverts the transaction's effects on the referenced
// account(s) and removes the record, in one atomic unit.
func (m *Mutator) Delete(ctx context.Context, actor UserID, id TransactionID) error {
	if actor == "" {
		return ErrNoActor
	}

	var owners []UserID
	err := m.store.WithTx(ctx, func(s Stores) error {
		tx, err := s.Transactions().Get(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return &NotFoundError{Kind: "transaction", ID: string(id)}
		}
		effects, err := EffectsOf(tx)
		if err != nil {
			return err
		}
		net := netEffects(Reverse(effects))
		if err := applyEffects(ctx, s, net); err != nil {
			return err
		}
		if owners, err = effectOwners(ctx, s, net); err != nil {
			return err
		}
		return s.Transactions().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	m.notify.TransactionsChanged(actor)
	for _, owner := range owners {
		m.notify.AccountsChanged(owner)
	}
	return nil
}

// BulkDelete removes every listed transaction and corrects every
// affected account inside a single atomic unit: either all of them
// go, or none do. Ids that no longer exist are skipped. Returns the
// number of records removed.
func (m *Mutator) BulkDelete(ctx context.Context, actor UserID, ids []TransactionID) (int, error) {
	if actor == "" {
		return 0, ErrNoActor
	}

	removed := 0
	var owners []UserID
	err := m.store.WithTx(ctx, func(s Stores) error {
		removed = 0
		var reverted [][]Effect
		for _, id := range ids {
			tx, err := s.Transactions().Get(ctx, id)
			if err != nil {
				return err
			}
			if tx == nil {
				continue // already gone; treated as handled
			}
			effects, err := EffectsOf(tx)
			if err != nil {
				return err
			}
			reverted = append(reverted, Reverse(effects))
			if err := s.Transactions().Delete(ctx, id); err != nil {
				return err
			}
			removed++
		}
		net := netEffects(reverted...)
		if err := applyEffects(ctx, s, net); err != nil {
			return err
		}
		var err error
		owners, err = effectOwners(ctx, s, net)
		return err
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		m.notify.TransactionsChanged(actor)
		for _, owner := range owners {
			m.notify.AccountsChanged(owner)
		}
	}
	return removed, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateInput(in TransactionInput) error {
	if !ValidTransactionType(in.Type) {
		return &ValidationError{Field: "type", Reason: "must be INCOME, EXPENSE, or TRANSFER"}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be set"}
	}
	if in.AccountID == "" {
		return &ValidationError{Field: "account_id", Reason: "must be set"}
	}
	switch in.Type {
	case TxTransfer:
		if in.TargetAccountID == nil {
			return &InvalidTransferError{Reason: "transfer has no target account"}
		}
		if *in.TargetAccountID == in.AccountID {
			return &InvalidTransferError{Reason: "transfer target equals source account"}
		}
	default:
		if in.TargetAccountID != nil {
			return &ValidationError{Field: "target_account_id", Reason: "only transfers have a target account"}
		}
	}
	return nil
}

// checkAccounts verifies the referenced accounts exist and that the
// amount fits their currency's minor-unit precision.
func (m *Mutator) checkAccounts(ctx context.Context, s Stores, tx *Transaction) error {
	src, err := s.Accounts().Get(ctx, tx.AccountID)
	if err != nil {
		return err
	}
	if src == nil {
		return &NotFoundError{Kind: "account", ID: string(tx.AccountID)}
	}
	if err := checkPrecision(tx.Amount, src); err != nil {
		return err
	}
	if tx.TargetAccountID != nil {
		tgt, err := s.Accounts().Get(ctx, *tx.TargetAccountID)
		if err != nil {
			return err
		}
		if tgt == nil {
			return &NotFoundError{Kind: "account", ID: string(*tx.TargetAccountID)}
		}
		if err := checkPrecision(tx.Amount, tgt); err != nil {
			return err
		}
	}
	return nil
}

func checkPrecision(amount decimal.Decimal, a *Account) error {
	exp := a.CurrencyExponent()
	if !amount.Shift(int32(exp)).IsInteger() {
		return &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("%s has more precision than %s allows (%d decimal places)", amount, a.Currency, exp),
		}
	}
	return nil
}

// applyEffects issues one atomic increment per affected account.
func applyEffects(ctx context.Context, s Stores, effects []Effect) error {
	for _, e := range effects {
		if err := s.Accounts().AdjustBalance(ctx, e.AccountID, e.Delta); err != nil {
			return err
		}
	}
	return nil
}

// effectOwners resolves the distinct owners of every account a set of
// effects touches. The owners, not the acting user, hold the cached
// listings that went stale.
func effectOwners(ctx context.Context, s Stores, effects []Effect) ([]UserID, error) {
	seen := make(map[UserID]struct{}, len(effects))
	var owners []UserID
	for _, e := range effects {
		a, err := s.Accounts().Get(ctx, e.AccountID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		owners = append(owners, a.UserID)
	}
	return owners, nil
}

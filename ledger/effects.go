/*
effects.go - Balance effect calculation

PURPOSE:
  Pure mapping from a transaction's (type, amount, source account,
  target account) to the signed balance delta(s) it produces:

    INCOME   -> [(source, +amount)]
    EXPENSE  -> [(source, -amount)]
    TRANSFER -> [(source, -amount), (target, +amount)]

  The same function serves forward application (create) and, via
  Reverse, undo during edit and delete. No I/O happens here.

FAILURE MODE:
  A TRANSFER with a missing or self-referential target should be
  rejected by validation before it reaches this point, but the
  calculator never silently produces wrong deltas for one: it returns
  an InvalidTransferError instead.

SEE ALSO:
  - mutator.go: Applies and reverts effects inside atomic units
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// EffectsOf returns the balance deltas tx produces, in account order.
func EffectsOf(tx *Transaction) ([]Effect, error) {
	switch tx.Type {
	case TxIncome:
		return []Effect{{AccountID: tx.AccountID, Delta: tx.Amount}}, nil
	case TxExpense:
		return []Effect{{AccountID: tx.AccountID, Delta: tx.Amount.Neg()}}, nil
	case TxTransfer:
		if tx.TargetAccountID == nil {
			return nil, &InvalidTransferError{TransactionID: tx.ID, Reason: "transfer has no target account"}
		}
		if *tx.TargetAccountID == tx.AccountID {
			return nil, &InvalidTransferError{TransactionID: tx.ID, Reason: "transfer target equals source account"}
		}
		return []Effect{
			{AccountID: tx.AccountID, Delta: tx.Amount.Neg()},
			{AccountID: *tx.TargetAccountID, Delta: tx.Amount},
		}, nil
	default:
		return nil, &ValidationError{Field: "type", Reason: "unknown transaction type " + string(tx.Type)}
	}
}

// Reverse negates every delta in effects. Applying Reverse(EffectsOf(tx))
// after EffectsOf(tx) leaves every balance unchanged.
func Reverse(effects []Effect) []Effect {
	reversed := make([]Effect, len(effects))
	for i, e := range effects {
		reversed[i] = Effect{AccountID: e.AccountID, Delta: e.Delta.Neg()}
	}
	return reversed
}

// netEffects merges effect lists into one adjustment per account,
// dropping accounts whose deltas cancel out. The result is ordered by
// ascending account ID so concurrent mutations always lock account
// rows in the same order.
func netEffects(lists ...[]Effect) []Effect {
	byAccount := make(map[AccountID]decimal.Decimal)
	var order []AccountID
	for _, list := range lists {
		for _, e := range list {
			if _, seen := byAccount[e.AccountID]; !seen {
				order = append(order, e.AccountID)
				byAccount[e.AccountID] = e.Delta
				continue
			}
			byAccount[e.AccountID] = byAccount[e.AccountID].Add(e.Delta)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var net []Effect
	for _, id := range order {
		d := byAccount[id]
		if d.IsZero() {
			continue
		}
		net = append(net, Effect{AccountID: id, Delta: d})
	}
	return net
}

package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceResult is the outcome of a recalculation pass.
type BalanceResult struct {
	// Affected counts every transaction of the recalculated range.
	Affected int
	// Changed holds copies of the transactions whose running balance moved.
	Changed []*Transaction
}

// ParentBalance resolves the running balance of a breakout parent that lies
// before the recalculated range.
type ParentBalance func(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error)

// Recalculate recomputes running balances for txs, which must be sorted by
// order key, as a running sum seeded with seed.
//
// Top-level transactions contribute their amount once; breakout children carry
// their parent's balance and contribute nothing, so a split is never counted
// twice. The input is not modified: updated copies are returned and the caller
// applies them atomically. ctx is checked between transactions, and a cancelled
// pass returns no changes at all.
func Recalculate(ctx context.Context, seed decimal.Decimal, txs []*Transaction, parent ParentBalance) (BalanceResult, error) {
	var (
		res     = BalanceResult{Affected: len(txs)}
		running = seed
		inRange = make(map[uuid.UUID]decimal.Decimal)
	)

	for i, t := range txs {
		if err := ctx.Err(); err != nil {
			return BalanceResult{}, fmt.Errorf("recalculate: %w", err)
		}

		if i > 0 {
			prev := txs[i-1]
			if !prev.Key().Less(t.Key()) {
				return BalanceResult{}, &InvariantError{
					LedgerID: t.LedgerID,
					Key:      t.Key(),
					Detail:   fmt.Sprintf("order key not after transaction %s (seq %d)", prev.ID, prev.Sequence),
				}
			}
		}

		var balance decimal.Decimal

		if t.IsChild() {
			b, ok := inRange[*t.ParentID]
			if !ok {
				if parent == nil {
					return BalanceResult{}, &InvariantError{
						LedgerID: t.LedgerID,
						Key:      t.Key(),
						Detail:   "breakout child precedes its parent",
					}
				}

				var err error

				b, err = parent(ctx, *t.ParentID)
				if err != nil {
					return BalanceResult{}, fmt.Errorf("resolving parent balance: %w", err)
				}
			}

			balance = b
		} else {
			running = running.Add(t.Amount)
			balance = running
			inRange[t.ID] = balance
		}

		if t.RunningBalance.Equal(balance) {
			continue
		}

		c := t.Clone()
		c.RunningBalance = balance
		res.Changed = append(res.Changed, c)
	}

	return res, nil
}

// PrefixBalances is the reference definition of running balances over a full,
// sorted ledger. It is used to verify stored balances.
func PrefixBalances(txs []*Transaction) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(txs))
	running := decimal.Zero

	for _, t := range txs {
		if t.IsChild() {
			continue
		}

		running = running.Add(t.Amount)
		out[t.ID] = running
	}

	for _, t := range txs {
		if t.IsChild() {
			out[t.ID] = out[*t.ParentID]
		}
	}

	return out
}

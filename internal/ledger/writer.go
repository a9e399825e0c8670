package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Writer is the mutation surface handed to Service.Write callbacks. It issues
// sequence numbers, keeps breakout links consistent and remembers the earliest
// order key whose balance was invalidated.
type Writer struct {
	uow    UnitOfWork
	ledger *Ledger
	now    time.Time

	dirty        *OrderKey
	recalculated int
	deleted      bool
}

// Ledger returns the ledger metadata being written. Its sequence counter is
// persisted when the write commits.
func (w *Writer) Ledger() *Ledger {
	return w.ledger
}

// Invalidate marks balances from k onward as stale.
func (w *Writer) Invalidate(k OrderKey) {
	if w.dirty == nil {
		w.dirty = &k
		return
	}

	m := w.dirty.Min(k)
	w.dirty = &m
}

// Recalculated is the size of the range recalculated at commit time.
func (w *Writer) Recalculated() int {
	return w.recalculated
}

// Get loads a transaction of the ledger being written.
func (w *Writer) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := w.uow.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.LedgerID != w.ledger.ID {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}

	return t, nil
}

func (w *Writer) Children(ctx context.Context, parentID uuid.UUID) ([]*Transaction, error) {
	return w.uow.Children(ctx, parentID)
}

// Transactions reads the ledger as it stands inside the unit of work.
func (w *Writer) Transactions(ctx context.Context, r OrderRange) ([]*Transaction, error) {
	return w.uow.LoadTransactions(ctx, w.ledger.ID, r)
}

// Insert stores t as a new transaction with a freshly issued sequence number.
func (w *Writer) Insert(ctx context.Context, t *Transaction) error {
	if err := validateEntry(t); err != nil {
		return err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	t.LedgerID = w.ledger.ID
	t.Sequence = w.ledger.NextSequence()

	return w.store(ctx, t)
}

// Restore stores t keeping the sequence number it already carries. It is used
// to reproduce transactions in a copied ledger whose counter is already set.
func (w *Writer) Restore(ctx context.Context, t *Transaction) error {
	if err := validateEntry(t); err != nil {
		return err
	}

	if t.Sequence <= 0 || t.Sequence > w.ledger.Sequence {
		return &InvariantError{
			LedgerID: w.ledger.ID,
			Key:      t.Key(),
			Detail:   fmt.Sprintf("restored sequence outside issued range 1..%d", w.ledger.Sequence),
		}
	}

	t.LedgerID = w.ledger.ID

	return w.store(ctx, t)
}

func (w *Writer) store(ctx context.Context, t *Transaction) error {
	t.Date = Day(t.Date)
	t.CreatedAt = w.now
	t.UpdatedAt = w.now

	if err := w.uow.SaveTransaction(ctx, t); err != nil {
		if errors.Is(err, ErrSequenceCollision) {
			return &InvariantError{LedgerID: w.ledger.ID, Key: t.Key(), Detail: "sequence already used", Err: err}
		}

		return fmt.Errorf("saving transaction: %w", err)
	}

	w.Invalidate(t.Key())

	return nil
}

// Update persists changes to an existing transaction. Amount or date changes
// invalidate balances from the earlier of the old and new keys.
func (w *Writer) Update(ctx context.Context, t *Transaction) error {
	if err := validateEntry(t); err != nil {
		return err
	}

	stored, err := w.Get(ctx, t.ID)
	if err != nil {
		return err
	}

	if stored.Sequence != t.Sequence {
		return &InvariantError{
			LedgerID: w.ledger.ID,
			Key:      stored.Key(),
			Detail:   fmt.Sprintf("sequence of %s changed to %d", t.ID, t.Sequence),
		}
	}

	t.Date = Day(t.Date)
	t.UpdatedAt = w.now

	if err := w.uow.SaveTransaction(ctx, t); err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	if !stored.Amount.Equal(t.Amount) || !stored.Date.Equal(t.Date) || stored.IsChild() != t.IsChild() {
		w.Invalidate(stored.Key().Min(t.Key()))
	}

	return nil
}

// Delete removes a transaction together with its breakout children and relations.
func (w *Writer) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := w.Get(ctx, id)
	if err != nil {
		return err
	}

	children, err := w.uow.Children(ctx, id)
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := w.uow.DeleteTransaction(ctx, c.ID); err != nil {
			return fmt.Errorf("deleting breakout child: %w", err)
		}
	}

	if err := w.uow.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	w.Invalidate(t.Key())

	return nil
}

// Link stores an unordered relation between two transactions of the ledger.
func (w *Writer) Link(ctx context.Context, r *Relation) error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidRelation, r.Type)
	}

	if r.A == r.B {
		return ErrSelfRelation
	}

	for _, id := range []uuid.UUID{r.A, r.B} {
		if _, err := w.Get(ctx, id); err != nil {
			return err
		}
	}

	r.Canonical()
	r.LedgerID = w.ledger.ID

	existing, err := w.uow.RelationsOf(ctx, r.A)
	if err != nil {
		return err
	}

	for _, e := range existing {
		if e.A == r.A && e.B == r.B && e.Type == r.Type {
			return fmt.Errorf("%w: %s %s %s", ErrDuplicateRelation, r.A, r.Type, r.B)
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	return w.uow.SaveRelation(ctx, r)
}

// SaveRelation stores r as is. Used when reproducing relations in a copy.
func (w *Writer) SaveRelation(ctx context.Context, r *Relation) error {
	r.LedgerID = w.ledger.ID
	return w.uow.SaveRelation(ctx, r)
}

func (w *Writer) applyUpdate(ctx context.Context, id uuid.UUID, p UpdateParams, opts UpdateOptions) error {
	t, err := w.Get(ctx, id)
	if err != nil {
		return err
	}

	orig := t.Clone()

	if p.Date != nil {
		t.Date = Day(*p.Date)
	}

	if p.Amount != nil {
		t.Amount = *p.Amount
	}

	setString(&t.Description, p.Description)
	setString(&t.Category, p.Category)
	setString(&t.Member, p.Member)
	setString(&t.Source, p.Source)
	setString(&t.Vendor, p.Vendor)
	setString(&t.ReferenceNumber, p.ReferenceNumber)

	amountChanged := !orig.Amount.Equal(t.Amount)

	switch {
	case t.IsChild():
		if !orig.Date.Equal(t.Date) {
			return ErrChildDateLocked
		}

		if amountChanged {
			if err := w.settleParent(ctx, *t.ParentID, t, opts.RecomputeParent); err != nil {
				return err
			}
		}

	case t.IsBreakoutParent:
		children, err := w.Children(ctx, t.ID)
		if err != nil {
			return err
		}

		if amountChanged {
			if err := CheckSum(t, SumAmounts(children)); err != nil {
				return err
			}
		}

		if !orig.Date.Equal(t.Date) {
			for _, c := range children {
				c.Date = t.Date
				if err := w.Update(ctx, c); err != nil {
					return err
				}
			}
		}
	}

	return w.Update(ctx, t)
}

// settleParent re-validates a breakout after one child changed amount. With
// recompute the parent takes the new children sum.
func (w *Writer) settleParent(ctx context.Context, parentID uuid.UUID, changed *Transaction, recompute bool) error {
	parent, err := w.Get(ctx, parentID)
	if err != nil {
		return err
	}

	siblings, err := w.Children(ctx, parentID)
	if err != nil {
		return err
	}

	sum := decimal.Zero
	for _, s := range siblings {
		if s.ID == changed.ID {
			continue
		}

		sum = sum.Add(s.Amount)
	}

	sum = sum.Add(changed.Amount)

	if !recompute {
		return CheckSum(parent, sum)
	}

	parent.Amount = sum

	return w.Update(ctx, parent)
}

// releaseChild prepares the parent for the deletion of child.
func (w *Writer) releaseChild(ctx context.Context, child *Transaction, recompute bool) error {
	parent, err := w.Get(ctx, *child.ParentID)
	if err != nil {
		return err
	}

	siblings, err := w.Children(ctx, parent.ID)
	if err != nil {
		return err
	}

	remaining := make([]*Transaction, 0, len(siblings))
	for _, s := range siblings {
		if s.ID != child.ID {
			remaining = append(remaining, s)
		}
	}

	if len(remaining) == 0 {
		parent.IsBreakoutParent = false
		return w.Update(ctx, parent)
	}

	sum := SumAmounts(remaining)
	if !recompute {
		return CheckSum(parent, sum)
	}

	parent.Amount = sum

	return w.Update(ctx, parent)
}

// flush recalculates balances from the earliest invalidated key.
func (w *Writer) flush(ctx context.Context) error {
	if w.dirty == nil {
		return nil
	}

	from := *w.dirty

	seed := decimal.Zero

	prev, err := w.uow.LastBefore(ctx, w.ledger.ID, from)
	if err != nil {
		return fmt.Errorf("loading preceding balance: %w", err)
	}

	if prev != nil {
		seed = prev.RunningBalance
	}

	txs, err := w.uow.LoadTransactions(ctx, w.ledger.ID, Since(from))
	if err != nil {
		return fmt.Errorf("loading transactions to recalculate: %w", err)
	}

	res, err := Recalculate(ctx, seed, txs, w.parentBalance)
	if err != nil {
		var inv *InvariantError
		if errors.As(err, &inv) && inv.LedgerID == uuid.Nil {
			inv.LedgerID = w.ledger.ID
		}

		return err
	}

	for _, t := range res.Changed {
		if err := w.uow.SaveTransaction(ctx, t); err != nil {
			return fmt.Errorf("saving running balance: %w", err)
		}
	}

	w.recalculated = res.Affected
	w.dirty = nil

	return nil
}

func (w *Writer) parentBalance(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error) {
	p, err := w.uow.GetTransaction(ctx, parentID)
	if err != nil {
		return decimal.Zero, err
	}

	return p.RunningBalance, nil
}

// validateEntry is shared by Record.Normalize and Writer inserts.
func validateEntry(t *Transaction) error {
	if strings.TrimSpace(t.Category) == "" {
		return fmt.Errorf("%w: transaction %q", ErrMissingCategory, t.Description)
	}

	if t.Date.IsZero() {
		return fmt.Errorf("%w: transaction %q has no date", ErrMalformedRecord, t.Description)
	}

	if !t.Amount.Equal(t.Amount.Round(AmountScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimals", ErrMalformedRecord, t.Amount, AmountScale)
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

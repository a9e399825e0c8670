package ledger_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/ledger/memstore"
)

func newLedger(t *testing.T, opts ...ledger.Option) (*ledger.Service, *ledger.Ledger) {
	t.Helper()

	svc := ledger.NewService(memstore.New(), opts...)

	l, err := svc.CreateLedger(context.Background(), ledger.CreateLedgerParams{Name: "Household"})
	require.NoError(t, err)

	return svc, l
}

func create(t *testing.T, svc *ledger.Service, ledgerID uuid.UUID, day, amount string) *ledger.Transaction {
	t.Helper()

	got, err := svc.Create(context.Background(), ledgerID, ledger.CreateParams{
		Date:        date(day),
		Amount:      dec(amount),
		Description: "entry " + amount,
		Category:    "misc",
	})
	require.NoError(t, err)

	return got
}

func list(t *testing.T, svc *ledger.Service, ledgerID uuid.UUID) []*ledger.Transaction {
	t.Helper()

	txs, err := svc.List(context.Background(), ledgerID, ledger.All)
	require.NoError(t, err)

	return txs
}

func assertConsistent(t *testing.T, txs []*ledger.Transaction) {
	t.Helper()

	want := ledger.PrefixBalances(txs)
	seen := make(map[int64]bool, len(txs))

	for i, tx := range txs {
		assert.True(t, tx.RunningBalance.Equal(want[tx.ID]),
			"balance of seq %d is %s, want %s", tx.Sequence, tx.RunningBalance, want[tx.ID])
		assert.False(t, seen[tx.Sequence], "sequence %d reused", tx.Sequence)
		seen[tx.Sequence] = true

		if i > 0 {
			assert.True(t, txs[i-1].Key().Less(tx.Key()))
		}
	}
}

func TestService_CreateRecalculatesFromInsertionPoint(t *testing.T) {
	svc, l := newLedger(t)

	create(t, svc, l.ID, "2024-01-01", "1000")
	create(t, svc, l.ID, "2024-01-02", "-200")
	assert.Equal(t, []string{"1000.00", "800.00"}, fixed(list(t, svc, l.ID)))

	inserted := create(t, svc, l.ID, "2024-01-01", "-50")
	assert.Equal(t, int64(3), inserted.Sequence)

	txs := list(t, svc, l.ID)
	assert.Equal(t, []string{"1000.00", "950.00", "750.00"}, fixed(txs))
	assert.Equal(t, inserted.ID, txs[1].ID)
	assertConsistent(t, txs)
}

func TestService_CreateValidation(t *testing.T) {
	type testCase struct {
		name    string
		params  ledger.CreateParams
		wantErr error
	}

	tests := []testCase{
		{
			name:    "MissingCategory",
			params:  ledger.CreateParams{Date: date("2024-01-01"), Amount: dec("1")},
			wantErr: ledger.ErrMissingCategory,
		},
		{
			name:    "MissingDate",
			params:  ledger.CreateParams{Amount: dec("1"), Category: "misc"},
			wantErr: ledger.ErrMalformedRecord,
		},
		{
			name:    "TooManyDecimals",
			params:  ledger.CreateParams{Date: date("2024-01-01"), Amount: dec("1.005"), Category: "misc"},
			wantErr: ledger.ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, l := newLedger(t)

			_, err := svc.Create(context.Background(), l.ID, tt.params)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, ledger.IsValidation(err))
			assert.Empty(t, list(t, svc, l.ID))

			got, err := svc.GetLedger(context.Background(), l.ID)
			require.NoError(t, err)
			assert.Zero(t, got.Sequence)
		})
	}
}

func TestService_AttachChildren(t *testing.T) {
	type testCase struct {
		name     string
		children []ledger.ChildParams
		wantErr  error
	}

	tests := []testCase{
		{
			name: "SumMismatch",
			children: []ledger.ChildParams{
				{Amount: dec("-100")},
				{Amount: dec("-150")},
			},
			wantErr: ledger.ErrBreakoutSumMismatch,
		},
		{
			name:    "Empty",
			wantErr: ledger.ErrEmptyBreakout,
		},
		{
			name: "ExactSum",
			children: []ledger.ChildParams{
				{Amount: dec("-100"), Description: "milk"},
				{Amount: dec("-200"), Category: "household"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, l := newLedger(t)
			ctx := context.Background()

			create(t, svc, l.ID, "2024-01-01", "1000")
			parent := create(t, svc, l.ID, "2024-01-03", "-300")
			before := list(t, svc, l.ID)

			res, err := svc.AttachChildren(ctx, parent.ID, tt.children)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				assert.Equal(t, before, list(t, svc, l.ID))

				return
			}

			require.NoError(t, err)
			require.Len(t, res.Children, 2)
			assert.True(t, res.Parent.IsBreakoutParent)

			for i, c := range res.Children {
				assert.Equal(t, parent.ID, *c.ParentID)
				assert.Equal(t, parent.Date, c.Date)
				assert.Equal(t, int64(3+i), c.Sequence)
			}

			assert.Equal(t, "milk", res.Children[0].Description)
			assert.Equal(t, "misc", res.Children[0].Category)
			assert.Equal(t, "household", res.Children[1].Category)

			txs := list(t, svc, l.ID)
			assert.Equal(t, []string{"1000.00", "700.00", "700.00", "700.00"}, fixed(txs))
			assertConsistent(t, txs)
		})
	}
}

func TestService_AttachChildren_ReplacesPrevious(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	parent := create(t, svc, l.ID, "2024-01-03", "-300")

	_, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-300")}})
	require.NoError(t, err)

	res, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-150")}, {Amount: dec("-150")}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Len(t, list(t, svc, l.ID), 3)
}

func TestService_AttachChildren_RejectsNesting(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	parent := create(t, svc, l.ID, "2024-01-03", "-300")

	res, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-100")}, {Amount: dec("-200")}})
	require.NoError(t, err)

	_, err = svc.AttachChildren(ctx, res.Children[0].ID, []ledger.ChildParams{{Amount: dec("-100")}})
	require.ErrorIs(t, err, ledger.ErrInvalidNesting)
}

func TestService_UpdateChildAmount(t *testing.T) {
	type testCase struct {
		name       string
		recompute  bool
		wantErr    error
		wantParent string
		wantLast   string
	}

	tests := []testCase{
		{name: "Rejected", wantErr: ledger.ErrBreakoutSumMismatch, wantParent: "-300", wantLast: "750.00"},
		{name: "RecomputeParent", recompute: true, wantParent: "-320", wantLast: "730.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, l := newLedger(t)
			ctx := context.Background()

			create(t, svc, l.ID, "2024-01-01", "1000")
			parent := create(t, svc, l.ID, "2024-01-03", "-300")
			create(t, svc, l.ID, "2024-01-05", "50")

			res, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-100")}, {Amount: dec("-200")}})
			require.NoError(t, err)

			_, err = svc.Update(ctx, res.Children[0].ID,
				ledger.UpdateParams{Amount: new(dec("-120"))},
				ledger.UpdateOptions{RecomputeParent: tt.recompute},
			)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			got, err := svc.Get(ctx, parent.ID)
			require.NoError(t, err)
			assert.True(t, got.Amount.Equal(dec(tt.wantParent)))

			txs := list(t, svc, l.ID)
			assert.Equal(t, tt.wantLast, txs[len(txs)-1].RunningBalance.StringFixed(2))
			assertConsistent(t, txs)
		})
	}
}

func TestService_ChildDateFollowsParent(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	create(t, svc, l.ID, "2024-01-01", "1000")
	parent := create(t, svc, l.ID, "2024-01-03", "-300")
	create(t, svc, l.ID, "2024-01-05", "50")

	res, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-100")}, {Amount: dec("-200")}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, res.Children[0].ID, ledger.UpdateParams{Date: new(date("2024-01-04"))}, ledger.UpdateOptions{})
	require.ErrorIs(t, err, ledger.ErrChildDateLocked)

	_, err = svc.Update(ctx, parent.ID, ledger.UpdateParams{Date: new(date("2024-01-10"))}, ledger.UpdateOptions{})
	require.NoError(t, err)

	txs := list(t, svc, l.ID)
	require.Len(t, txs, 5)
	assert.Equal(t, parent.ID, txs[2].ID)

	for _, c := range txs[3:] {
		assert.Equal(t, date("2024-01-10"), c.Date)
	}

	assert.Equal(t, []string{"1000.00", "1050.00", "750.00", "750.00", "750.00"}, fixed(txs))
	assertConsistent(t, txs)
}

func TestService_DeleteChild(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	parent := create(t, svc, l.ID, "2024-01-03", "-300")

	res, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-100")}, {Amount: dec("-200")}})
	require.NoError(t, err)

	err = svc.Delete(ctx, res.Children[0].ID, ledger.DeleteOptions{})
	require.ErrorIs(t, err, ledger.ErrBreakoutSumMismatch)
	assert.Len(t, list(t, svc, l.ID), 3)

	require.NoError(t, svc.Delete(ctx, res.Children[0].ID, ledger.DeleteOptions{RecomputeParent: true}))

	got, err := svc.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("-200")))
	assert.True(t, got.IsBreakoutParent)

	require.NoError(t, svc.Delete(ctx, res.Children[1].ID, ledger.DeleteOptions{}))

	got, err = svc.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("-200")))
	assert.False(t, got.IsBreakoutParent)
	assertConsistent(t, list(t, svc, l.ID))
}

func TestService_DeleteParentCascades(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	create(t, svc, l.ID, "2024-01-01", "1000")
	parent := create(t, svc, l.ID, "2024-01-03", "-300")
	create(t, svc, l.ID, "2024-01-05", "50")

	_, err := svc.AttachChildren(ctx, parent.ID, []ledger.ChildParams{{Amount: dec("-100")}, {Amount: dec("-200")}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, parent.ID, ledger.DeleteOptions{}))

	txs := list(t, svc, l.ID)
	assert.Equal(t, []string{"1000.00", "1050.00"}, fixed(txs))
}

func TestService_SequenceNeverReused(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for range 5 {
		ids = append(ids, create(t, svc, l.ID, "2024-02-01", "1").ID)
	}

	for _, id := range ids {
		require.NoError(t, svc.Delete(ctx, id, ledger.DeleteOptions{}))
	}

	var seqs []int64
	for range 5 {
		seqs = append(seqs, create(t, svc, l.ID, "2024-02-01", "1").Sequence)
	}

	assert.Equal(t, []int64{6, 7, 8, 9, 10}, seqs)

	next, err := svc.NextSequence(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), next)

	got, err := svc.GetLedger(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Sequence)
}

func TestService_WriteIsAllOrNothing(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	create(t, svc, l.ID, "2024-01-01", "100")

	boom := errors.New("boom")

	err := svc.Write(ctx, l.ID, func(ctx context.Context, w *ledger.Writer) error {
		if err := w.Insert(ctx, &ledger.Transaction{Date: date("2023-12-31"), Amount: dec("5"), Category: "misc"}); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	txs := list(t, svc, l.ID)
	assert.Equal(t, []string{"100.00"}, fixed(txs))

	got, err := svc.GetLedger(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Sequence)
}

func TestService_Recalculate(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	create(t, svc, l.ID, "2024-01-01", "100")
	create(t, svc, l.ID, "2024-01-02", "-10")
	create(t, svc, l.ID, "2024-01-03", "-10")

	n, err := svc.Recalculate(ctx, l.ID, ledger.FromStart)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = svc.Recalculate(ctx, l.ID, ledger.DayStart(date("2024-01-03")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"100.00", "90.00", "80.00"}, fixed(list(t, svc, l.ID)))
}

func TestService_Relations(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	a := create(t, svc, l.ID, "2024-01-01", "-300")
	b := create(t, svc, l.ID, "2024-01-01", "300")

	type testCase struct {
		name    string
		params  ledger.LinkParams
		wantErr error
	}

	tests := []testCase{
		{name: "Link", params: ledger.LinkParams{A: a.ID, B: b.ID, Type: ledger.RelationTransfer}},
		{name: "ReversedDuplicate", params: ledger.LinkParams{A: b.ID, B: a.ID, Type: ledger.RelationTransfer}, wantErr: ledger.ErrDuplicateRelation},
		{name: "OtherType", params: ledger.LinkParams{A: b.ID, B: a.ID, Type: ledger.RelationCorrection}},
		{name: "Self", params: ledger.LinkParams{A: a.ID, B: a.ID, Type: ledger.RelationLinked}, wantErr: ledger.ErrSelfRelation},
		{name: "UnknownType", params: ledger.LinkParams{A: a.ID, B: b.ID, Type: "sibling"}, wantErr: ledger.ErrInvalidRelation},
		{name: "MissingEndpoint", params: ledger.LinkParams{A: a.ID, B: uuid.New(), Type: ledger.RelationLinked}, wantErr: ledger.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := svc.Link(ctx, tt.params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, r.A.String() < r.B.String())
		})
	}

	rels, err := svc.Relations(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 2)

	require.NoError(t, svc.Unlink(ctx, l.ID, rels[0].ID))
	require.NoError(t, svc.Delete(ctx, a.ID, ledger.DeleteOptions{}))

	rels, err = svc.Relations(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestService_RelationsOrderedByType(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	a := create(t, svc, l.ID, "2024-01-01", "-300")
	b := create(t, svc, l.ID, "2024-01-01", "300")

	for _, typ := range []ledger.RelationType{
		ledger.RelationTransfer,
		ledger.RelationCorrection,
		ledger.RelationSplitFrom,
		ledger.RelationLinked,
	} {
		_, err := svc.Link(ctx, ledger.LinkParams{A: a.ID, B: b.ID, Type: typ})
		require.NoError(t, err)
	}

	want := []ledger.RelationType{
		ledger.RelationCorrection,
		ledger.RelationLinked,
		ledger.RelationSplitFrom,
		ledger.RelationTransfer,
	}

	for range 10 {
		rels, err := svc.Relations(ctx, l.ID)
		require.NoError(t, err)

		got := make([]ledger.RelationType, 0, len(rels))
		for _, r := range rels {
			got = append(got, r.Type)
		}

		assert.Equal(t, want, got)
	}
}

func TestService_Contention(t *testing.T) {
	locks := ledger.NewLocks()
	svc, l := newLedger(t, ledger.WithLocks(locks), ledger.WithLockTimeout(20*time.Millisecond))
	ctx := context.Background()

	release, err := locks.Acquire(ctx, l.ID)
	require.NoError(t, err)

	_, err = svc.Snapshot(ctx, l.ID)
	require.ErrorIs(t, err, ledger.ErrSourceLocked)

	_, err = svc.Create(ctx, l.ID, ledger.CreateParams{Date: date("2024-01-01"), Amount: dec("1"), Category: "misc"})
	require.ErrorIs(t, err, ledger.ErrLockTimeout)
	assert.True(t, ledger.IsRetryable(err))

	txs, err := svc.List(ctx, l.ID, ledger.All)
	require.NoError(t, err)
	assert.Empty(t, txs)

	release()

	snap, err := svc.Snapshot(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, snap.Ledger.ID)
}

func TestService_DeleteLedger(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	create(t, svc, l.ID, "2024-01-01", "1")

	require.NoError(t, svc.DeleteLedger(ctx, l.ID))

	_, err := svc.GetLedger(ctx, l.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	err = svc.DeleteLedger(ctx, l.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestService_UpdateLedger(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()
	groupID := uuid.New()

	got, err := svc.UpdateLedger(ctx, l.ID, ledger.UpdateLedgerParams{Name: new(" Holidays "), GroupID: &groupID})
	require.NoError(t, err)
	assert.Equal(t, "Holidays", got.Name)
	assert.Equal(t, &groupID, got.GroupID)
	assert.Equal(t, ledger.KindNormal, got.Kind)

	got, err = svc.UpdateLedger(ctx, l.ID, ledger.UpdateLedgerParams{ClearGroup: true})
	require.NoError(t, err)
	assert.Nil(t, got.GroupID)
	assert.Equal(t, "Holidays", got.Name)

	_, err = svc.UpdateLedger(ctx, l.ID, ledger.UpdateLedgerParams{Name: new("")})
	require.ErrorIs(t, err, ledger.ErrInvalidLedger)

	stored, err := svc.GetLedger(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Holidays", stored.Name)
}

func TestService_RandomOperationsKeepBalancesConsistent(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()
	r := rand.New(rand.NewPCG(7, 42))

	randomDay := func() time.Time {
		return date("2024-01-01").AddDate(0, 0, r.IntN(28))
	}

	randomAmount := func() decimal.Decimal {
		return decimal.New(int64(r.IntN(200001)-100000), -2)
	}

	var issued int64

	for i := range 300 {
		txs := list(t, svc, l.ID)

		var top []*ledger.Transaction
		for _, tx := range txs {
			if !tx.IsChild() {
				top = append(top, tx)
			}
		}

		op := r.IntN(10)
		if len(top) == 0 {
			op = 0
		}

		switch {
		case op < 4:
			_, err := svc.Create(ctx, l.ID, ledger.CreateParams{Date: randomDay(), Amount: randomAmount(), Category: "misc"})
			require.NoError(t, err, "op %d", i)

			issued++

		case op < 6:
			target := top[r.IntN(len(top))]
			require.NoError(t, svc.Delete(ctx, target.ID, ledger.DeleteOptions{}), "op %d", i)

		case op < 8:
			target := top[r.IntN(len(top))]
			params := ledger.UpdateParams{Date: new(randomDay())}

			if !target.IsBreakoutParent {
				params.Amount = new(randomAmount())
			}

			_, err := svc.Update(ctx, target.ID, params, ledger.UpdateOptions{})
			require.NoError(t, err, "op %d", i)

		default:
			target := top[r.IntN(len(top))]
			half := target.Amount.Div(decimal.NewFromInt(2)).Round(2)

			res, err := svc.AttachChildren(ctx, target.ID, []ledger.ChildParams{
				{Amount: half},
				{Amount: target.Amount.Sub(half)},
			})
			require.NoError(t, err, "op %d", i)

			issued += int64(len(res.Children))
		}

		assertConsistent(t, list(t, svc, l.ID))
	}

	got, err := svc.GetLedger(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, issued, got.Sequence)
}

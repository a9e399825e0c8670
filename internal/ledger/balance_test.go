package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}

	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(day string, seq int64, amount string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:       uuid.New(),
		Date:     date(day),
		Sequence: seq,
		Amount:   dec(amount),
		Category: "misc",
	}
}

func apply(txs []*ledger.Transaction, changed []*ledger.Transaction) {
	byID := make(map[uuid.UUID]*ledger.Transaction, len(changed))
	for _, c := range changed {
		byID[c.ID] = c
	}

	for i, t := range txs {
		if c, ok := byID[t.ID]; ok {
			txs[i] = c
		}
	}
}

func fixed(txs []*ledger.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.RunningBalance.StringFixed(2))
	}

	return out
}

func TestRecalculate(t *testing.T) {
	type args struct {
		seed string
		txs  func() []*ledger.Transaction
	}

	type testCase struct {
		name        string
		args        args
		want        []string
		wantChanged int
		wantErr     error
	}

	tests := []testCase{
		{
			name: "InsertEarlierSameDay",
			args: args{
				seed: "0",
				txs: func() []*ledger.Transaction {
					a := tx("2024-01-01", 1, "1000")
					a.RunningBalance = dec("1000")
					b := tx("2024-01-02", 2, "-200")
					b.RunningBalance = dec("800")

					return []*ledger.Transaction{a, tx("2024-01-01", 3, "-50"), b}
				},
			},
			want:        []string{"1000.00", "950.00", "750.00"},
			wantChanged: 2,
		},
		{
			name: "Seeded",
			args: args{
				seed: "250.50",
				txs: func() []*ledger.Transaction {
					return []*ledger.Transaction{tx("2024-03-01", 7, "-0.50"), tx("2024-03-02", 8, "10")}
				},
			},
			want:        []string{"250.00", "260.00"},
			wantChanged: 2,
		},
		{
			name: "ChildrenMirrorParent",
			args: args{
				seed: "0",
				txs: func() []*ledger.Transaction {
					p := tx("2024-01-05", 1, "-300")
					p.IsBreakoutParent = true
					c1 := tx("2024-01-05", 2, "-100")
					c1.ParentID = new(p.ID)
					c2 := tx("2024-01-05", 3, "-200")
					c2.ParentID = new(p.ID)

					return []*ledger.Transaction{p, c1, c2, tx("2024-01-06", 4, "50")}
				},
			},
			want:        []string{"-300.00", "-300.00", "-300.00", "-250.00"},
			wantChanged: 4,
		},
		{
			name: "OutOfOrder",
			args: args{
				seed: "0",
				txs: func() []*ledger.Transaction {
					return []*ledger.Transaction{tx("2024-01-02", 1, "1"), tx("2024-01-01", 2, "1")}
				},
			},
			wantErr: ledger.ErrInvariantViolation,
		},
		{
			name: "DuplicateKey",
			args: args{
				seed: "0",
				txs: func() []*ledger.Transaction {
					return []*ledger.Transaction{tx("2024-01-01", 1, "1"), tx("2024-01-01", 1, "1")}
				},
			},
			wantErr: ledger.ErrInvariantViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := tt.args.txs()

			res, err := ledger.Recalculate(context.Background(), dec(tt.args.seed), txs, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, res.Changed)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, len(txs), res.Affected)
			assert.Len(t, res.Changed, tt.wantChanged)

			apply(txs, res.Changed)
			assert.Equal(t, tt.want, fixed(txs))
		})
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	txs := []*ledger.Transaction{tx("2024-01-01", 1, "10"), tx("2024-01-02", 2, "-3.25"), tx("2024-01-02", 3, "7")}

	first, err := ledger.Recalculate(context.Background(), decimal.Zero, txs, nil)
	require.NoError(t, err)
	apply(txs, first.Changed)

	second, err := ledger.Recalculate(context.Background(), decimal.Zero, txs, nil)
	require.NoError(t, err)
	assert.Empty(t, second.Changed)
	assert.Equal(t, []string{"10.00", "6.75", "13.75"}, fixed(txs))
}

func TestRecalculate_DoesNotModifyInput(t *testing.T) {
	txs := []*ledger.Transaction{tx("2024-01-01", 1, "10"), tx("2024-01-02", 2, "5")}

	res, err := ledger.Recalculate(context.Background(), decimal.Zero, txs, nil)
	require.NoError(t, err)
	require.Len(t, res.Changed, 2)

	assert.True(t, txs[0].RunningBalance.IsZero())
	assert.True(t, txs[1].RunningBalance.IsZero())
}

func TestRecalculate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ledger.Recalculate(ctx, decimal.Zero, []*ledger.Transaction{tx("2024-01-01", 1, "10")}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Changed)
}

func TestRecalculate_ParentOutsideRange(t *testing.T) {
	parentID := uuid.New()
	child := tx("2024-01-05", 9, "-20")
	child.ParentID = new(parentID)

	t.Run("Resolved", func(t *testing.T) {
		lookup := func(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
			assert.Equal(t, parentID, id)
			return dec("480"), nil
		}

		res, err := ledger.Recalculate(context.Background(), dec("480"), []*ledger.Transaction{child}, lookup)
		require.NoError(t, err)
		require.Len(t, res.Changed, 1)
		assert.Equal(t, "480.00", res.Changed[0].RunningBalance.StringFixed(2))
	})

	t.Run("NoLookup", func(t *testing.T) {
		_, err := ledger.Recalculate(context.Background(), decimal.Zero, []*ledger.Transaction{child}, nil)
		require.ErrorIs(t, err, ledger.ErrInvariantViolation)
	})
}

func TestPrefixBalances(t *testing.T) {
	p := tx("2024-01-01", 1, "-30")
	p.IsBreakoutParent = true
	c := tx("2024-01-01", 2, "-30")
	c.ParentID = new(p.ID)
	n := tx("2024-01-02", 3, "100")

	got := ledger.PrefixBalances([]*ledger.Transaction{p, c, n})

	assert.Equal(t, "-30.00", got[p.ID].StringFixed(2))
	assert.Equal(t, "-30.00", got[c.ID].StringFixed(2))
	assert.Equal(t, "70.00", got[n.ID].StringFixed(2))
}

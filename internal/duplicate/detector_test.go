package duplicate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}

	return d
}

func existing(seq int64, date, amount, desc string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:          uuid.New(),
		Sequence:    seq,
		Date:        day(date),
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Category:    "misc",
	}
}

func entry(date, amount, desc string) ledger.Entry {
	return ledger.Entry{
		Date:        day(date),
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Category:    "misc",
	}
}

func newDetector(t *testing.T) *duplicate.Detector {
	t.Helper()

	d, err := duplicate.NewDetector(duplicate.DefaultConfig())
	require.NoError(t, err)

	return d
}

func TestDetector_FindCandidates(t *testing.T) {
	coffee := existing(1, "2024-01-15", "-45.00", "Coffee Shop")
	coffeeTypo := existing(2, "2024-01-15", "-45.00", "Coffee Shpo")
	rent := existing(3, "2024-01-01", "-1200.00", "Rent")
	lateCoffee := existing(4, "2024-01-17", "-45.50", "Coffee Shop")
	child := existing(5, "2024-01-15", "-45.00", "coffee shop")
	child.ParentID = new(rent.ID)

	pool := []*ledger.Transaction{coffee, coffeeTypo, rent, lateCoffee, child}

	type testCase struct {
		name      string
		entry     ledger.Entry
		wantIDs   []uuid.UUID
		wantTiers []duplicate.Tier
	}

	tests := []testCase{
		{
			name:      "ExactIgnoresCaseAndSpacing",
			entry:     entry("2024-01-15", "-45", "  coffee   SHOP "),
			wantIDs:   []uuid.UUID{coffee.ID, coffeeTypo.ID, lateCoffee.ID},
			wantTiers: []duplicate.Tier{duplicate.TierExact, duplicate.TierFuzzy, duplicate.TierNear},
		},
		{
			name:      "NearOnlyOutsideDay",
			entry:     entry("2024-01-18", "-45.00", "Coffee Shop"),
			wantIDs:   []uuid.UUID{lateCoffee.ID, coffee.ID, coffeeTypo.ID},
			wantTiers: []duplicate.Tier{duplicate.TierNear, duplicate.TierNear, duplicate.TierNear},
		},
		{
			name:      "DissimilarDescriptionIsNear",
			entry:     entry("2024-01-01", "-1200.00", "Landlord transfer"),
			wantIDs:   []uuid.UUID{rent.ID},
			wantTiers: []duplicate.Tier{duplicate.TierNear},
		},
		{
			name:  "NoCandidates",
			entry: entry("2024-03-01", "-45.00", "Coffee Shop"),
		},
	}

	d := newDetector(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := d.FindCandidates(context.Background(), pool, []ledger.Entry{tt.entry})
			require.NoError(t, err)
			require.Len(t, matches, 1)

			var (
				ids   []uuid.UUID
				tiers []duplicate.Tier
			)

			for _, c := range matches[0].Candidates {
				ids = append(ids, c.Transaction.ID)
				tiers = append(tiers, c.Tier)
			}

			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTiers, tiers)
		})
	}
}

func TestDetector_Scores(t *testing.T) {
	d := newDetector(t)

	pool := []*ledger.Transaction{
		existing(1, "2024-01-15", "-45.00", "Coffee Shop"),
		existing(2, "2024-01-15", "-45.00", "Coffee Shpo"),
		existing(3, "2024-01-16", "-45.00", "Coffee Shop"),
	}

	matches, err := d.FindCandidates(context.Background(), pool, []ledger.Entry{entry("2024-01-15", "-45.00", "Coffee Shop")})
	require.NoError(t, err)

	got := matches[0].Candidates
	require.Len(t, got, 3)

	assert.Equal(t, 1.0, got[0].Score)
	assert.Greater(t, got[1].Score, 0.80)
	assert.Less(t, got[1].Score, 1.0)
	assert.Less(t, got[2].Score, 0.40)
	assert.Equal(t, 1, got[2].Days)

	dup, ok := matches[0].Duplicate()
	require.True(t, ok)
	assert.Equal(t, pool[0].ID, dup.Transaction.ID)
	assert.Len(t, matches[0].Near(), 1)
}

func TestDetector_TieBreaksBySequence(t *testing.T) {
	d := newDetector(t)

	late := existing(9, "2024-01-15", "-10.00", "Bakery")
	early := existing(4, "2024-01-15", "-10.00", "Bakery")

	matches, err := d.FindCandidates(context.Background(), []*ledger.Transaction{late, early}, []ledger.Entry{entry("2024-01-15", "-10.00", "bakery")})
	require.NoError(t, err)

	require.Len(t, matches[0].Candidates, 2)
	assert.Equal(t, early.ID, matches[0].Candidates[0].Transaction.ID)
	assert.Equal(t, late.ID, matches[0].Candidates[1].Transaction.ID)
}

func TestDetector_Deterministic(t *testing.T) {
	cfg := duplicate.DefaultConfig()
	cfg.Workers = 8

	d, err := duplicate.NewDetector(cfg)
	require.NoError(t, err)

	var pool []*ledger.Transaction
	for i := range 60 {
		date := day("2024-01-01").AddDate(0, 0, i%10)
		pool = append(pool, existing(int64(i+1), date.Format("2006-01-02"), decimal.NewFromInt(int64(i%7)).String(), "Vendor"))
	}

	var entries []ledger.Entry
	for i := range 40 {
		date := day("2024-01-01").AddDate(0, 0, i%12)
		entries = append(entries, entry(date.Format("2006-01-02"), decimal.NewFromInt(int64(i%5)).String(), "vendor"))
	}

	first, err := d.FindCandidates(context.Background(), pool, entries)
	require.NoError(t, err)

	for range 5 {
		again, err := d.FindCandidates(context.Background(), pool, entries)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	for i, m := range first {
		assert.Equal(t, i, m.Index)
	}
}

func TestDetector_Cancelled(t *testing.T) {
	d := newDetector(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.FindCandidates(ctx, nil, []ledger.Entry{entry("2024-01-01", "1", "x")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	type testCase struct {
		name    string
		mutate  func(c *duplicate.Config)
		wantErr bool
	}

	tests := []testCase{
		{name: "Default", mutate: func(*duplicate.Config) {}},
		{name: "ThresholdZero", mutate: func(c *duplicate.Config) { c.Threshold = 0 }, wantErr: true},
		{name: "ThresholdOne", mutate: func(c *duplicate.Config) { c.Threshold = 1 }, wantErr: true},
		{name: "NegativeWindow", mutate: func(c *duplicate.Config) { c.DateWindow = -1 }, wantErr: true},
		{name: "NegativeTolerance", mutate: func(c *duplicate.Config) { c.AmountTolerance = decimal.NewFromInt(-1) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := duplicate.DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, duplicate.ErrInvalidConfig)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, duplicate.Similarity("abc", "abc"))
	assert.Equal(t, 0.0, duplicate.Similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, duplicate.Similarity("abcd", "abce"), 1e-9)
	assert.Equal(t, "café au lait", duplicate.Normalize(" CAFÉ  au\tLait "))
}

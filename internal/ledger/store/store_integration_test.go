//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/ledger/store"
)

func setupService(t *testing.T) *ledger.Service {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tally"),
		tcpostgres.WithUsername("tally"),
		tcpostgres.WithPassword("tally"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(connStr, database.Options{MaxOpenConns: 5, MaxIdleConns: 5, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))

	return ledger.NewService(store.New(db))
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}

	return d
}

func balances(t *testing.T, svc *ledger.Service, id uuid.UUID) []string {
	t.Helper()

	txs, err := svc.List(context.Background(), id, ledger.All)
	require.NoError(t, err)

	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.RunningBalance.StringFixed(2))
	}

	return out
}

func TestIntegration_Store_BalancesAndBreakouts(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	l, err := svc.CreateLedger(ctx, ledger.CreateLedgerParams{Name: "Household"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, l.ID, ledger.CreateParams{Date: day("2024-01-01"), Amount: decimal.RequireFromString("1000"), Category: "income"})
	require.NoError(t, err)

	groceries, err := svc.Create(ctx, l.ID, ledger.CreateParams{Date: day("2024-01-02"), Amount: decimal.RequireFromString("-200"), Category: "food"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, l.ID, ledger.CreateParams{Date: day("2024-01-01"), Amount: decimal.RequireFromString("-50"), Category: "coffee"})
	require.NoError(t, err)

	assert.Equal(t, []string{"1000.00", "950.00", "750.00"}, balances(t, svc, l.ID))

	_, err = svc.AttachChildren(ctx, groceries.ID, []ledger.ChildParams{
		{Amount: decimal.RequireFromString("-100")},
		{Amount: decimal.RequireFromString("-150")},
	})
	require.ErrorIs(t, err, ledger.ErrBreakoutSumMismatch)

	res, err := svc.AttachChildren(ctx, groceries.ID, []ledger.ChildParams{
		{Amount: decimal.RequireFromString("-100")},
		{Amount: decimal.RequireFromString("-100"), Category: "household"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Children, 2)

	assert.Equal(t, []string{"1000.00", "950.00", "750.00", "750.00", "750.00"}, balances(t, svc, l.ID))

	require.NoError(t, svc.DeleteLedger(ctx, l.ID))

	_, err = svc.GetLedger(ctx, l.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestIntegration_Store_Relations(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	l, err := svc.CreateLedger(ctx, ledger.CreateLedgerParams{Name: "Transfers"})
	require.NoError(t, err)

	out, err := svc.Create(ctx, l.ID, ledger.CreateParams{Date: day("2024-02-01"), Amount: decimal.RequireFromString("-300"), Category: "transfer"})
	require.NoError(t, err)

	in, err := svc.Create(ctx, l.ID, ledger.CreateParams{Date: day("2024-02-01"), Amount: decimal.RequireFromString("300"), Category: "transfer"})
	require.NoError(t, err)

	_, err = svc.Link(ctx, ledger.LinkParams{A: out.ID, B: in.ID, Type: ledger.RelationTransfer})
	require.NoError(t, err)

	_, err = svc.Link(ctx, ledger.LinkParams{A: in.ID, B: out.ID, Type: ledger.RelationTransfer})
	require.ErrorIs(t, err, ledger.ErrDuplicateRelation)

	require.NoError(t, svc.Delete(ctx, in.ID, ledger.DeleteOptions{}))

	rels, err := svc.Relations(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

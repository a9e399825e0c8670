package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/ledger/memstore"
)

var errCommit = errors.New("connection reset")

// flakyRepo fails every commit from the failFrom-th one on, once armed.
type flakyRepo struct {
	*memstore.Store
	commits  int
	failFrom int
}

func (r *flakyRepo) Begin(ctx context.Context, ledgerID uuid.UUID) (ledger.UnitOfWork, error) {
	uow, err := r.Store.Begin(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	return &flakyUnit{UnitOfWork: uow, repo: r}, nil
}

func (r *flakyRepo) failAfter(n int) {
	r.failFrom = r.commits + n + 1
}

type flakyUnit struct {
	ledger.UnitOfWork
	repo *flakyRepo
}

func (u *flakyUnit) Commit() error {
	u.repo.commits++
	if u.repo.failFrom > 0 && u.repo.commits >= u.repo.failFrom {
		return errCommit
	}

	return u.UnitOfWork.Commit()
}

type fixture struct {
	repo   *flakyRepo
	svc    *ledger.Service
	coord  *importer.Coordinator
	ledger uuid.UUID
	coffee *ledger.Transaction
}

// newFixture seeds a ledger with an opening balance and one coffee purchase:
// 2024-01-01 +1000.00 and 2024-01-15 -45.00 "Coffee Shop".
func newFixture(t *testing.T, opts ...importer.Option) *fixture {
	t.Helper()

	ctx := context.Background()
	repo := &flakyRepo{Store: memstore.New()}
	svc := ledger.NewService(repo)

	l, err := svc.CreateLedger(ctx, ledger.CreateLedgerParams{Name: "Household"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, l.ID, ledger.CreateParams{
		Date:        date("2024-01-01"),
		Amount:      decimal.RequireFromString("1000"),
		Description: "Opening balance",
		Category:    "income",
	})
	require.NoError(t, err)

	coffee, err := svc.Create(ctx, l.ID, ledger.CreateParams{
		Date:        date("2024-01-15"),
		Amount:      decimal.RequireFromString("-45.00"),
		Description: "Coffee Shop",
		Category:    "food",
	})
	require.NoError(t, err)

	det, err := duplicate.NewDetector(duplicate.DefaultConfig())
	require.NoError(t, err)

	return &fixture{
		repo:   repo,
		svc:    svc,
		coord:  importer.NewCoordinator(svc, det, opts...),
		ledger: l.ID,
		coffee: coffee,
	}
}

func (f *fixture) balances(t *testing.T) []string {
	t.Helper()

	txs, err := f.svc.List(context.Background(), f.ledger, ledger.All)
	require.NoError(t, err)

	want := ledger.PrefixBalances(txs)
	out := make([]string, 0, len(txs))

	for _, tx := range txs {
		assert.True(t, tx.RunningBalance.Equal(want[tx.ID]), "seq %d", tx.Sequence)
		out = append(out, tx.RunningBalance.StringFixed(2))
	}

	return out
}

func date(s string) time.Time {
	d, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		panic(err)
	}

	return d
}

func coffeeRecord(row int) ledger.Record {
	return ledger.Record{Row: row, Date: "2024-01-15", Amount: "-45.00", Description: "Coffee Shop", Category: "food"}
}

func TestCoordinator_ImportBatch(t *testing.T) {
	type testCase struct {
		name         string
		policy       importer.Policy
		wantImported int
		wantSkipped  int
		wantReplaced int
		wantBalances []string
		wantCoffee   bool
	}

	tests := []testCase{
		{
			name:         "SkipDuplicates",
			policy:       importer.PolicySkipDuplicates,
			wantImported: 1,
			wantSkipped:  1,
			wantBalances: []string{"1000.00", "955.00", "945.00"},
			wantCoffee:   true,
		},
		{
			name:         "ImportAnyway",
			policy:       importer.PolicyImportAnyway,
			wantImported: 2,
			wantBalances: []string{"1000.00", "955.00", "910.00", "900.00"},
			wantCoffee:   true,
		},
		{
			name:         "ReplaceExisting",
			policy:       importer.PolicyReplaceExisting,
			wantImported: 1,
			wantReplaced: 1,
			wantBalances: []string{"1000.00", "955.00", "945.00"},
			wantCoffee:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			records := []ledger.Record{
				coffeeRecord(2),
				{Row: 3, Date: "2024-01-20", Amount: "-10.00", Description: "Bakery", Category: "food"},
			}

			report, err := f.coord.ImportBatch(ctx, f.ledger, records, tc.policy, importer.Options{FileName: "jan.csv", ImportTag: "jan"})
			require.NoError(t, err)

			assert.Equal(t, tc.wantImported, report.Imported)
			assert.Equal(t, tc.wantSkipped, report.SkippedDuplicate)
			assert.Equal(t, tc.wantReplaced, report.Replaced)
			assert.Zero(t, report.FailedValidation)
			assert.Equal(t, tc.wantBalances, f.balances(t))
			assert.Len(t, report.Transactions, tc.wantImported+tc.wantReplaced)

			for _, tx := range report.Transactions {
				assert.Equal(t, "jan", tx.ImportTag)
			}

			_, err = f.svc.Get(ctx, f.coffee.ID)
			if tc.wantCoffee {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ledger.ErrNotFound)
			}

			imports, err := f.svc.Imports(ctx, f.ledger)
			require.NoError(t, err)
			require.Len(t, imports, 1)
			assert.Equal(t, report.ImportID, imports[0].ID)
			assert.Equal(t, "jan.csv", imports[0].FileName)
			assert.Equal(t, tc.policy.String(), imports[0].Policy)
			assert.Equal(t, tc.wantSkipped, imports[0].SkippedDuplicate)
		})
	}
}

func TestCoordinator_SkipLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	before := f.balances(t)

	report, err := f.coord.ImportBatch(context.Background(), f.ledger, []ledger.Record{coffeeRecord(2)}, importer.PolicySkipDuplicates, importer.Options{})
	require.NoError(t, err)

	assert.Zero(t, report.Imported)
	assert.Equal(t, 1, report.SkippedDuplicate)
	assert.Empty(t, report.Transactions)
	assert.True(t, strings.HasPrefix(report.ImportTag, "import-"))
	assert.Equal(t, before, f.balances(t))
}

func TestCoordinator_MalformedRecordsAreReported(t *testing.T) {
	f := newFixture(t)

	records := []ledger.Record{
		{Row: 2, Date: "15/01/2024", Amount: "-1.00", Description: "x", Category: "misc"},
		{Row: 3, Date: "2024-01-16", Amount: "-1.00", Description: "no category"},
		{Row: 4, Date: "2024-01-16", Amount: "-1.005", Description: "too precise", Category: "misc"},
		{Row: 5, Date: "2024-01-16", Amount: "-5.00", Description: "Parking", Category: "car"},
	}

	report, err := f.coord.ImportBatch(context.Background(), f.ledger, records, importer.PolicySkipDuplicates, importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 3, report.FailedValidation)
	require.Len(t, report.Failures, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{report.Failures[0].Row, report.Failures[1].Row, report.Failures[2].Row})
	assert.Contains(t, report.Failures[1].Reason, "category")
	assert.Equal(t, []string{"1000.00", "955.00", "950.00"}, f.balances(t))
}

func TestCoordinator_ZeroDateRowDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)

	records := []ledger.Record{
		{Row: 2, Date: "2024-02-01", Amount: "10.00", Description: "a", Category: "misc"},
		{Row: 3, Date: "0001-01-01", Amount: "5.00", Description: "b", Category: "misc"},
		{Row: 4, Date: "2024-02-02", Amount: "7.00", Description: "c", Category: "misc"},
	}

	report, err := f.coord.ImportBatch(context.Background(), f.ledger, records, importer.PolicySkipDuplicates, importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.FailedValidation)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 3, report.Failures[0].Row)
	assert.Equal(t, []string{"1000.00", "955.00", "965.00", "972.00"}, f.balances(t))
}

func TestCoordinator_NearMatchesBecomeSuggestions(t *testing.T) {
	f := newFixture(t)

	records := []ledger.Record{
		{Row: 2, Date: "2024-01-16", Amount: "-45.50", Description: "Coffee Shop", Category: "food"},
	}

	report, err := f.coord.ImportBatch(context.Background(), f.ledger, records, importer.PolicySkipDuplicates, importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Suggestions, 1)
	assert.Equal(t, 2, report.Suggestions[0].Row)
	require.Len(t, report.Suggestions[0].Candidates, 1)
	assert.Equal(t, f.coffee.ID, report.Suggestions[0].Candidates[0].Transaction.ID)
	assert.Equal(t, duplicate.TierNear, report.Suggestions[0].Candidates[0].Tier)
}

func TestCoordinator_ReplaceClaimsEachTargetOnce(t *testing.T) {
	f := newFixture(t)

	records := []ledger.Record{coffeeRecord(2), coffeeRecord(3)}

	report, err := f.coord.ImportBatch(context.Background(), f.ledger, records, importer.PolicyReplaceExisting, importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Replaced)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, []string{"1000.00", "955.00", "910.00"}, f.balances(t))
}

func TestCoordinator_FailedChunkKeepsEarlierChunks(t *testing.T) {
	f := newFixture(t, importer.WithChunkSize(2))
	ctx := context.Background()

	var records []ledger.Record
	for i, day := range []string{"2024-02-01", "2024-02-02", "2024-02-03", "2024-02-04", "2024-02-05"} {
		records = append(records, ledger.Record{Row: i + 2, Date: day, Amount: "-1.00", Description: "Bus " + day, Category: "transport"})
	}

	f.repo.failAfter(1)

	report, err := f.coord.ImportBatch(ctx, f.ledger, records, importer.PolicySkipDuplicates, importer.Options{})
	require.ErrorIs(t, err, errCommit)
	require.NotNil(t, report)

	assert.Equal(t, 2, report.Imported)
	require.Len(t, report.Failures, 3)
	assert.Equal(t, 4, report.Failures[0].Row)
	assert.Equal(t, 6, report.Failures[2].Row)
	assert.Zero(t, report.FailedValidation)

	f.repo.failFrom = 0

	assert.Equal(t, []string{"1000.00", "955.00", "954.00", "953.00"}, f.balances(t))

	imports, err := f.svc.Imports(ctx, f.ledger)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, 2, imports[0].Imported)
}

func TestCoordinator_ImportBatchErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.ImportBatch(ctx, f.ledger, nil, importer.Policy(9), importer.Options{})
	assert.ErrorIs(t, err, importer.ErrInvalidPolicy)

	_, err = f.coord.ImportBatch(ctx, uuid.New(), []ledger.Record{coffeeRecord(2)}, importer.PolicySkipDuplicates, importer.Options{})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCoordinator_Preview(t *testing.T) {
	f := newFixture(t)
	before := f.balances(t)

	records := []ledger.Record{
		{Row: 5, Date: "2024-01-20", Amount: "-10.00", Description: "Bakery", Category: "food"},
		coffeeRecord(2),
		{Row: 3, Date: "2024-01-16", Amount: "-45.50", Description: "Coffee Shop", Category: "food"},
		{Row: 4, Date: "nope", Amount: "-1", Description: "x", Category: "misc"},
	}

	preview, err := f.coord.Preview(context.Background(), f.ledger, records)
	require.NoError(t, err)

	require.Len(t, preview.Rows, 4)

	got := make([]importer.Verdict, 0, len(preview.Rows))
	for _, row := range preview.Rows {
		got = append(got, row.Verdict)
	}

	assert.Equal(t, []importer.Verdict{
		importer.VerdictDuplicate,
		importer.VerdictNear,
		importer.VerdictMalformed,
		importer.VerdictUnique,
	}, got)
	assert.Equal(t, 1, preview.Unique)
	assert.Equal(t, 1, preview.Duplicates)
	assert.Equal(t, 1, preview.Near)
	assert.Equal(t, 1, preview.Malformed)
	assert.Equal(t, before, f.balances(t))
}

func TestCoordinator_ImportFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	csv := "date,description,amount,category\n2024-01-15,Coffee Shop,-45.00,food\n2024-01-21,Cinema,-12.00,fun\n"

	report, err := f.coord.ImportFile(ctx, f.ledger, importer.FormatCSV, strings.NewReader(csv), importer.PolicySkipDuplicates, importer.Options{FileName: "jan.csv"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.SkippedDuplicate)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, "943.00", report.Transactions[0].RunningBalance.StringFixed(2))

	_, err = f.coord.ImportFile(ctx, f.ledger, importer.Format("ofx"), strings.NewReader(csv), importer.PolicySkipDuplicates, importer.Options{})
	assert.ErrorIs(t, err, importer.ErrUnknownFormat)
}

func TestParsePolicy(t *testing.T) {
	type testCase struct {
		name    string
		input   string
		want    importer.Policy
		wantErr error
	}

	tests := []testCase{
		{name: "Empty", input: "", want: importer.PolicySkipDuplicates},
		{name: "Skip", input: "skip", want: importer.PolicySkipDuplicates},
		{name: "Anyway", input: " Import_Anyway ", want: importer.PolicyImportAnyway},
		{name: "Replace", input: "replace-existing", want: importer.PolicyReplaceExisting},
		{name: "Unknown", input: "merge", wantErr: importer.ErrInvalidPolicy},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := importer.ParsePolicy(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) importer.Policy {
	t.Helper()

	p, err := importer.ParsePolicy(s)
	require.NoError(t, err)

	return p
}

type categorizer map[string]string

func (c categorizer) Classify(_ context.Context, rec *ledger.Record) error {
	if rec.Category == "" {
		rec.Category = c[rec.Description]
	}

	return nil
}

func TestCoordinator_ClassifierFillsCategory(t *testing.T) {
	f := newFixture(t, importer.WithClassifier(categorizer{"Cinema": "fun"}))

	records := []ledger.Record{
		{Row: 2, Date: "2024-01-21", Amount: "-12.00", Description: "Cinema"},
		{Row: 3, Date: "2024-01-22", Amount: "-3.00", Description: "Unknown"},
	}

	report, err := f.coord.ImportBatch(context.Background(), f.ledger, records, importer.PolicySkipDuplicates, importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, "fun", report.Transactions[0].Category)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 3, report.Failures[0].Row)
}

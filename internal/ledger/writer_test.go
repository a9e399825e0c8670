package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func TestService_WriteFailures(t *testing.T) {
	ledgerID := uuid.New()

	type testCase struct {
		name      string
		setupMock func(repo *ledger.MockRepository, uow *ledger.MockUnitOfWork)
		wantErr   error
	}

	stored := func() *ledger.Ledger {
		return &ledger.Ledger{ID: ledgerID, Name: "Household", Kind: ledger.KindNormal, Sequence: 2}
	}

	tests := []testCase{
		{
			name: "BeginFails",
			setupMock: func(repo *ledger.MockRepository, _ *ledger.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any(), ledgerID).Return(nil, errors.New("connection refused"))
			},
		},
		{
			name: "SequenceCollision",
			setupMock: func(repo *ledger.MockRepository, uow *ledger.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any(), ledgerID).Return(uow, nil)
				uow.EXPECT().GetLedger(gomock.Any(), ledgerID).Return(stored(), nil)
				uow.EXPECT().
					SaveTransaction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, tx *ledger.Transaction) error {
						assert.Equal(t, int64(3), tx.Sequence)
						return fmt.Errorf("sequence 3: %w", ledger.ErrSequenceCollision)
					})
				uow.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrInvariantViolation,
		},
		{
			name: "RecalculationLoadFails",
			setupMock: func(repo *ledger.MockRepository, uow *ledger.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any(), ledgerID).Return(uow, nil)
				uow.EXPECT().GetLedger(gomock.Any(), ledgerID).Return(stored(), nil)
				uow.EXPECT().SaveTransaction(gomock.Any(), gomock.Any()).Return(nil)
				uow.EXPECT().LastBefore(gomock.Any(), ledgerID, gomock.Any()).Return(nil, nil)
				uow.EXPECT().LoadTransactions(gomock.Any(), ledgerID, gomock.Any()).Return(nil, errors.New("read timeout"))
				uow.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name: "CommitFails",
			setupMock: func(repo *ledger.MockRepository, uow *ledger.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any(), ledgerID).Return(uow, nil)
				uow.EXPECT().GetLedger(gomock.Any(), ledgerID).Return(stored(), nil)
				uow.EXPECT().SaveTransaction(gomock.Any(), gomock.Any()).Return(nil).Times(2)
				uow.EXPECT().LastBefore(gomock.Any(), ledgerID, gomock.Any()).Return(nil, nil)
				uow.EXPECT().
					LoadTransactions(gomock.Any(), ledgerID, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, _ ledger.OrderRange) ([]*ledger.Transaction, error) {
						return []*ledger.Transaction{{ID: uuid.New(), LedgerID: ledgerID, Date: date("2024-01-01"), Sequence: 3, Amount: dec("10"), Category: "misc"}}, nil
					})
				uow.EXPECT().
					SaveLedgerMetadata(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, l *ledger.Ledger) error {
						assert.Equal(t, int64(3), l.Sequence)
						return nil
					})
				uow.EXPECT().Commit().Return(errors.New("serialization failure"))
				uow.EXPECT().Rollback().Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			uow := ledger.NewMockUnitOfWork(ctrl)
			tt.setupMock(repo, uow)

			svc := ledger.NewService(repo)

			err := svc.Write(context.Background(), ledgerID, func(ctx context.Context, w *ledger.Writer) error {
				return w.Insert(ctx, &ledger.Transaction{Date: date("2024-01-01"), Amount: dec("10"), Category: "misc"})
			})
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ledger.ErrSequenceCollision)
			}
		})
	}
}

func TestWriter_Restore(t *testing.T) {
	svc, l := newLedger(t)
	ctx := context.Background()

	type testCase struct {
		name     string
		sequence int64
		wantErr  error
	}

	tests := []testCase{
		{name: "WithinIssuedRange", sequence: 2},
		{name: "Zero", sequence: 0, wantErr: ledger.ErrInvariantViolation},
		{name: "BeyondCounter", sequence: 9, wantErr: ledger.ErrInvariantViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Write(ctx, l.ID, func(ctx context.Context, w *ledger.Writer) error {
				w.Ledger().Sequence = max(w.Ledger().Sequence, 5)

				return w.Restore(ctx, &ledger.Transaction{
					ID:       uuid.New(),
					Date:     date("2024-01-01"),
					Sequence: tt.sequence,
					Amount:   dec("1"),
					Category: "misc",
				})
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)

			txs := list(t, svc, l.ID)
			require.Len(t, txs, 1)
			assert.Equal(t, tt.sequence, txs[0].Sequence)
			assert.Equal(t, "1.00", txs[0].RunningBalance.StringFixed(2))
		})
	}
}

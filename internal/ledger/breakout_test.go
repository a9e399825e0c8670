package ledger_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func TestValidateChildren(t *testing.T) {
	parent := &ledger.Transaction{ID: uuid.New(), Amount: dec("-300")}
	other := uuid.New()

	type testCase struct {
		name    string
		child   *ledger.Transaction
		wantErr error
	}

	tests := []testCase{
		{name: "Fresh", child: &ledger.Transaction{Amount: dec("-300")}},
		{name: "OwnParent", child: &ledger.Transaction{ParentID: new(parent.ID), Amount: dec("-300")}},
		{name: "HasChildren", child: &ledger.Transaction{ID: uuid.New(), IsBreakoutParent: true}, wantErr: ledger.ErrInvalidNesting},
		{name: "BelongsElsewhere", child: &ledger.Transaction{ID: uuid.New(), ParentID: &other}, wantErr: ledger.ErrInvalidNesting},
		{name: "ParentItself", child: &ledger.Transaction{ID: parent.ID}, wantErr: ledger.ErrInvalidNesting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.ValidateChildren(parent, []*ledger.Transaction{tt.child})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}

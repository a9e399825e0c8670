package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// Validation errors. They are reported to the caller and never partially applied.
var (
	ErrBreakoutSumMismatch = errors.New("breakout children do not sum to parent amount")
	ErrInvalidNesting      = errors.New("invalid breakout nesting")
	ErrEmptyBreakout       = errors.New("breakout without children")
	ErrChildDateLocked     = errors.New("breakout child date follows its parent")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrMissingCategory     = errors.New("missing category")
	ErrInvalidLedger       = errors.New("invalid ledger")
	ErrInvalidMode         = errors.New("invalid copy mode")
	ErrSelfRelation        = errors.New("transaction cannot relate to itself")
	ErrDuplicateRelation   = errors.New("relation already exists")
	ErrInvalidRelation     = errors.New("invalid relation")
)

// Consistency errors. They signal a broken precondition and need operator attention.
var (
	ErrInvariantViolation = errors.New("ledger invariant violated")
	ErrSequenceCollision  = errors.New("sequence number collision")
)

// Contention errors. The caller may retry.
var (
	ErrLockTimeout  = errors.New("ledger is busy")
	ErrSourceLocked = errors.New("source ledger is locked for copy")
)

// SumMismatchError describes a rejected breakout.
type SumMismatchError struct {
	ParentID uuid.UUID
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *SumMismatchError) Error() string {
	return fmt.Sprintf("%s: parent %s is %s, children sum to %s",
		ErrBreakoutSumMismatch, e.ParentID, e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

func (e *SumMismatchError) Is(target error) bool {
	return target == ErrBreakoutSumMismatch
}

// InvariantError is an unrecoverable-state error found while maintaining a ledger.
type InvariantError struct {
	LedgerID uuid.UUID
	Key      OrderKey
	Detail   string
	Err      error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: ledger %s at (%s, %d): %s",
		ErrInvariantViolation, e.LedgerID, e.Key.Date.Format("2006-01-02"), e.Key.Sequence, e.Detail)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a contention error the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrSourceLocked)
}

// IsValidation reports whether err was caused by bad input rather than ledger state.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrBreakoutSumMismatch, ErrInvalidNesting, ErrEmptyBreakout, ErrChildDateLocked,
		ErrMalformedRecord, ErrMissingCategory, ErrInvalidLedger, ErrInvalidMode,
		ErrSelfRelation, ErrDuplicateRelation, ErrInvalidRelation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

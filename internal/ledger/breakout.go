package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ChildParams describes one child of a breakout. Date and sequence are taken
// from the parent and the ledger; an empty Category inherits the parent's.
type ChildParams struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Member      string
	Source      string
	Vendor      string
}

// BreakoutResult is returned by a successful attach.
type BreakoutResult struct {
	Parent   *Transaction
	Children []*Transaction
	// Removed counts previous children replaced by this breakout.
	Removed int
}

// ValidateBreakout checks that children can be attached to parent: at least one
// child, a single level of nesting, and an exact decimal sum equal to the parent amount.
func ValidateBreakout(parent *Transaction, children []ChildParams) error {
	if len(children) == 0 {
		return ErrEmptyBreakout
	}

	if parent.IsChild() {
		return fmt.Errorf("%w: %s is itself a breakout child", ErrInvalidNesting, parent.ID)
	}

	return CheckSum(parent, SumChildren(children))
}

// ValidateChildren rejects child transactions that would nest a second level.
func ValidateChildren(parent *Transaction, children []*Transaction) error {
	for _, c := range children {
		if c.IsBreakoutParent {
			return fmt.Errorf("%w: child %s has children of its own", ErrInvalidNesting, c.ID)
		}

		if c.ParentID != nil && *c.ParentID != parent.ID {
			return fmt.Errorf("%w: child %s belongs to %s", ErrInvalidNesting, c.ID, *c.ParentID)
		}

		if c.ID == parent.ID {
			return fmt.Errorf("%w: %s cannot be its own child", ErrInvalidNesting, c.ID)
		}
	}

	return nil
}

// CheckSum compares a children total with the parent amount without any rounding tolerance.
func CheckSum(parent *Transaction, sum decimal.Decimal) error {
	if !sum.Equal(parent.Amount) {
		return &SumMismatchError{ParentID: parent.ID, Expected: parent.Amount, Actual: sum}
	}

	return nil
}

// SumChildren totals child amounts.
func SumChildren(children []ChildParams) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range children {
		sum = sum.Add(c.Amount)
	}

	return sum
}

// SumAmounts totals transaction amounts.
func SumAmounts(txs []*Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Amount)
	}

	return sum
}

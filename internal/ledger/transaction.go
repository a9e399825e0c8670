package ledger

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places of every stored amount.
const AmountScale = 2

// Transaction is a single signed monetary entry of a ledger.
type Transaction struct {
	ID       uuid.UUID
	LedgerID uuid.UUID
	// Sequence is assigned once on insert and never changes afterwards.
	Sequence    int64
	Date        time.Time
	Amount      decimal.Decimal
	Description string

	Category string // mandatory classification
	Member   string
	Source   string
	Vendor   string

	// RunningBalance is derived by the balance calculator and never set by callers.
	RunningBalance decimal.Decimal

	ParentID         *uuid.UUID
	IsBreakoutParent bool

	ImportTag       string
	ReferenceNumber string
	PostedDate      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the order key of the transaction.
func (t *Transaction) Key() OrderKey {
	return OrderKey{Date: t.Date, Sequence: t.Sequence}
}

// IsChild reports whether t is a breakout child.
func (t *Transaction) IsChild() bool {
	return t.ParentID != nil
}

// Clone returns a deep copy of t.
func (t *Transaction) Clone() *Transaction {
	c := *t

	if t.ParentID != nil {
		c.ParentID = new(*t.ParentID)
	}

	if t.PostedDate != nil {
		c.PostedDate = new(*t.PostedDate)
	}

	return &c
}

// OrderKey is the (date, sequence) pair that totally orders a ledger.
type OrderKey struct {
	Date     time.Time
	Sequence int64
}

// FromStart is the smallest possible order key.
var FromStart = OrderKey{}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to or after o.
func (k OrderKey) Compare(o OrderKey) int {
	if c := k.Date.Compare(o.Date); c != 0 {
		return c
	}

	return cmp.Compare(k.Sequence, o.Sequence)
}

func (k OrderKey) Less(o OrderKey) bool {
	return k.Compare(o) < 0
}

// Min returns the smaller of two keys.
func (k OrderKey) Min(o OrderKey) OrderKey {
	if o.Less(k) {
		return o
	}

	return k
}

// DayStart is the first possible key of the day d.
func DayStart(d time.Time) OrderKey {
	return OrderKey{Date: Day(d)}
}

// DayEnd is the last possible key of the day d.
func DayEnd(d time.Time) OrderKey {
	return OrderKey{Date: Day(d), Sequence: math.MaxInt64}
}

// Day truncates t to a civil date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OrderRange selects transactions by order key. Nil bounds are open; set bounds are inclusive.
type OrderRange struct {
	From *OrderKey
	To   *OrderKey
}

// All selects every transaction of a ledger.
var All = OrderRange{}

// Contains reports whether k falls inside the range.
func (r OrderRange) Contains(k OrderKey) bool {
	if r.From != nil && k.Less(*r.From) {
		return false
	}

	if r.To != nil && r.To.Less(k) {
		return false
	}

	return true
}

// Since selects every transaction at or after k.
func Since(k OrderKey) OrderRange {
	return OrderRange{From: &k}
}

// Between selects the transactions dated within [from, to], both days included.
func Between(from, to time.Time) OrderRange {
	f, t := DayStart(from), DayEnd(to)
	return OrderRange{From: &f, To: &t}
}

// SortTransactions orders txs ascending by order key.
func SortTransactions(txs []*Transaction) {
	slices.SortFunc(txs, func(a, b *Transaction) int {
		return a.Key().Compare(b.Key())
	})
}

// RelationType tags a non-breakout link between two transactions.
type RelationType string

const (
	RelationLinked     RelationType = "linked"
	RelationTransfer   RelationType = "transfer"
	RelationSplitFrom  RelationType = "split_from"
	RelationCorrection RelationType = "correction"
)

func (t RelationType) Valid() bool {
	switch t {
	case RelationLinked, RelationTransfer, RelationSplitFrom, RelationCorrection:
		return true
	}

	return false
}

// Relation is an unordered pairing of two transactions of the same ledger.
// A always holds the smaller identifier so that (A, B, Type) is canonical.
type Relation struct {
	ID       uuid.UUID
	LedgerID uuid.UUID
	A        uuid.UUID
	B        uuid.UUID
	Type     RelationType
	Notes    string
}

// Involves reports whether the relation references the transaction id.
func (r *Relation) Involves(id uuid.UUID) bool {
	return r.A == id || r.B == id
}

// Canonical orders the pair so that A < B.
func (r *Relation) Canonical() {
	if r.B.String() < r.A.String() {
		r.A, r.B = r.B, r.A
	}
}

// ImportSummary is the persisted trace of one import batch.
type ImportSummary struct {
	ID               uuid.UUID
	LedgerID         uuid.UUID
	Tag              string
	FileName         string
	Policy           string
	Imported         int
	SkippedDuplicate int
	Replaced         int
	FailedValidation int
	CreatedAt        time.Time
}

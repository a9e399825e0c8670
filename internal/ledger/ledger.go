package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes a regular ledger from the two kinds of derived ledgers.
// A ledger is exactly one kind, so a ledger can never be both a copy and a what-if.
type Kind string

const (
	KindNormal Kind = "normal"
	KindCopy   Kind = "copy"
	KindWhatIf Kind = "what_if"
)

func (k Kind) Valid() bool {
	switch k {
	case KindNormal, KindCopy, KindWhatIf:
		return true
	}

	return false
}

// Derived reports whether ledgers of this kind are produced from a source ledger.
func (k Kind) Derived() bool {
	return k == KindCopy || k == KindWhatIf
}

// Ledger is an ordered container of transactions representing one budget.
type Ledger struct {
	ID      uuid.UUID
	Name    string
	Notes   string
	GroupID *uuid.UUID
	Kind    Kind
	// SourceID records provenance for copies and what-ifs. The source may be
	// deleted independently, so this is never an ownership link.
	SourceID *uuid.UUID
	// Sequence is the highest sequence number ever issued for this ledger.
	Sequence  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the flag and provenance invariants of the ledger metadata.
func (l *Ledger) Validate() error {
	if !l.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLedger, l.Kind)
	}

	if l.Kind.Derived() && l.SourceID == nil {
		return fmt.Errorf("%w: %s ledger without source", ErrInvalidLedger, l.Kind)
	}

	if l.Sequence < 0 {
		return fmt.Errorf("%w: negative sequence counter", ErrInvalidLedger)
	}

	return nil
}

// Clone returns a copy of the ledger metadata that shares no pointers with l.
func (l *Ledger) Clone() *Ledger {
	c := *l

	if l.GroupID != nil {
		c.GroupID = new(*l.GroupID)
	}

	if l.SourceID != nil {
		c.SourceID = new(*l.SourceID)
	}

	return &c
}

// CreateLedgerParams holds the caller-supplied fields of a new normal ledger.
type CreateLedgerParams struct {
	Name    string
	Notes   string
	GroupID *uuid.UUID
}

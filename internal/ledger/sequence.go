package ledger

import "math"

// NextSequence issues the next sequence number of the ledger. The counter only
// ever grows, so numbers freed by deletions are never handed out again.
//
// Callers must hold the ledger lock and persist the ledger metadata in the same
// unit of work as the transactions that use the number.
func (l *Ledger) NextSequence() int64 {
	if l.Sequence == math.MaxInt64 {
		panic("ledger " + l.ID.String() + ": sequence counter exhausted")
	}

	l.Sequence++

	return l.Sequence
}

// Package scenario produces independent copies and what-if ledgers from an
// existing ledger.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Manager struct {
	ledgers *ledger.Service
	log     *slog.Logger
}

func NewManager(ledgers *ledger.Service, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{ledgers: ledgers, log: log}
}

// DefaultName is the name given to a copy when the caller supplies none.
func DefaultName(source string, mode ledger.Kind) string {
	if mode == ledger.KindWhatIf {
		return source + " - What-If"
	}

	return source + " - Copy"
}

// CopyLedger snapshots the source ledger and writes it out as a new ledger of
// the given kind. Sequence numbers, dates and amounts are kept; every
// transaction and relation gets a new identifier. The source lock is only
// tried, so a source under write fails fast with ledger.ErrSourceLocked.
func (m *Manager) CopyLedger(ctx context.Context, sourceID uuid.UUID, mode ledger.Kind, name string) (*ledger.Ledger, error) {
	if !mode.Derived() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidMode, mode)
	}

	snap, err := m.ledgers.Snapshot(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	src := snap.Ledger

	if strings.TrimSpace(name) == "" {
		name = DefaultName(src.Name, mode)
	}

	l := &ledger.Ledger{
		ID:       uuid.New(),
		Name:     name,
		Notes:    src.Notes,
		Kind:     mode,
		SourceID: new(src.ID),
		Sequence: src.Sequence,
	}

	if src.GroupID != nil {
		l.GroupID = new(*src.GroupID)
	}

	ids := make(map[uuid.UUID]uuid.UUID, len(snap.Transactions))
	for _, t := range snap.Transactions {
		ids[t.ID] = uuid.New()
	}

	err = m.ledgers.WriteNew(ctx, l, func(ctx context.Context, w *ledger.Writer) error {
		// parents first, children reference them
		for _, children := range []bool{false, true} {
			for _, t := range snap.Transactions {
				if t.IsChild() != children {
					continue
				}

				c := t.Clone()
				c.ID = ids[t.ID]
				c.RunningBalance = decimal.Zero

				if t.ParentID != nil {
					c.ParentID = new(ids[*t.ParentID])
				}

				if err := w.Restore(ctx, c); err != nil {
					return fmt.Errorf("copying transaction %d: %w", t.Sequence, err)
				}
			}
		}

		for _, r := range snap.Relations {
			rel := &ledger.Relation{
				ID:    uuid.New(),
				A:     ids[r.A],
				B:     ids[r.B],
				Type:  r.Type,
				Notes: r.Notes,
			}
			rel.Canonical()

			if err := w.SaveRelation(ctx, rel); err != nil {
				return fmt.Errorf("copying relation %s: %w", r.ID, err)
			}
		}

		w.Invalidate(ledger.FromStart)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing %s of ledger %s: %w", mode, sourceID, err)
	}

	if err := m.verify(ctx, l, snap); err != nil {
		m.log.Error("copied ledger diverges from its source",
			"source", sourceID,
			"ledger", l.ID,
			"error", err,
		)

		return l, err
	}

	m.log.Info("ledger copied",
		"source", sourceID,
		"ledger", l.ID,
		"kind", mode,
		"transactions", len(snap.Transactions),
		"relations", len(snap.Relations),
	)

	return l, nil
}

// verify checks that recalculating the copy reproduced the source balances.
func (m *Manager) verify(ctx context.Context, l *ledger.Ledger, snap *ledger.Snapshot) error {
	copied, err := m.ledgers.List(ctx, l.ID, ledger.All)
	if err != nil {
		return fmt.Errorf("reading copied ledger: %w", err)
	}

	if len(copied) != len(snap.Transactions) {
		return &ledger.InvariantError{
			LedgerID: l.ID,
			Detail:   fmt.Sprintf("copied %d transactions, source has %d", len(copied), len(snap.Transactions)),
		}
	}

	for i, t := range copied {
		want := snap.Transactions[i]
		if t.Sequence != want.Sequence || !t.RunningBalance.Equal(want.RunningBalance) {
			return &ledger.InvariantError{
				LedgerID: l.ID,
				Key:      t.Key(),
				Detail:   fmt.Sprintf("balance %s, source has %s at sequence %d", t.RunningBalance, want.RunningBalance, want.Sequence),
			}
		}
	}

	return nil
}

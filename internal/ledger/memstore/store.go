// Package memstore keeps ledgers in memory. Each unit of work edits a private
// copy of one ledger which replaces the committed state atomically, so readers
// only ever see committed snapshots.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Store struct {
	mu      sync.RWMutex
	ledgers map[uuid.UUID]*book
	imports []*ledger.ImportSummary
}

type book struct {
	ledger    *ledger.Ledger
	txs       map[uuid.UUID]*ledger.Transaction
	relations map[uuid.UUID]*ledger.Relation
}

func New() *Store {
	return &Store{ledgers: make(map[uuid.UUID]*book)}
}

func (b *book) clone() *book {
	c := &book{
		ledger:    b.ledger.Clone(),
		txs:       make(map[uuid.UUID]*ledger.Transaction, len(b.txs)),
		relations: make(map[uuid.UUID]*ledger.Relation, len(b.relations)),
	}

	for id, t := range b.txs {
		c.txs[id] = t.Clone()
	}

	for id, r := range b.relations {
		rc := *r
		c.relations[id] = &rc
	}

	return c
}

func (b *book) sorted(r ledger.OrderRange) []*ledger.Transaction {
	out := make([]*ledger.Transaction, 0, len(b.txs))

	for _, t := range b.txs {
		if r.Contains(t.Key()) {
			out = append(out, t.Clone())
		}
	}

	ledger.SortTransactions(out)

	return out
}

func (b *book) relationList() []*ledger.Relation {
	out := make([]*ledger.Relation, 0, len(b.relations))
	for _, r := range b.relations {
		rc := *r
		out = append(out, &rc)
	}

	slices.SortFunc(out, func(x, y *ledger.Relation) int {
		if c := compareIDs(x.A, y.A); c != 0 {
			return c
		}

		if c := compareIDs(x.B, y.B); c != 0 {
			return c
		}

		return strings.Compare(string(x.Type), string(y.Type))
	})

	return out
}

func compareIDs(a, b uuid.UUID) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	}

	return 0
}

func (s *Store) GetLedger(_ context.Context, id uuid.UUID) (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.ledgers[id]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", id, ledger.ErrNotFound)
	}

	return b.ledger.Clone(), nil
}

func (s *Store) ListLedgers(_ context.Context) ([]*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ledger.Ledger, 0, len(s.ledgers))
	for _, b := range s.ledgers {
		out = append(out, b.ledger.Clone())
	}

	slices.SortFunc(out, func(a, b *ledger.Ledger) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}

			return 1
		}

		return compareIDs(a.ID, b.ID)
	})

	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.ledgers {
		if t, ok := b.txs[id]; ok {
			return t.Clone(), nil
		}
	}

	return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) LoadTransactions(_ context.Context, ledgerID uuid.UUID, r ledger.OrderRange) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.ledgers[ledgerID]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", ledgerID, ledger.ErrNotFound)
	}

	return b.sorted(r), nil
}

func (s *Store) LoadRelations(_ context.Context, ledgerID uuid.UUID) ([]*ledger.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.ledgers[ledgerID]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", ledgerID, ledger.ErrNotFound)
	}

	return b.relationList(), nil
}

func (s *Store) SaveImportSummary(_ context.Context, summary *ledger.ImportSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *summary
	s.imports = append(s.imports, &c)

	return nil
}

func (s *Store) ListImportSummaries(_ context.Context, ledgerID uuid.UUID) ([]*ledger.ImportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.ImportSummary

	for i := len(s.imports) - 1; i >= 0; i-- {
		if s.imports[i].LedgerID == ledgerID {
			c := *s.imports[i]
			out = append(out, &c)
		}
	}

	return out, nil
}

func (s *Store) Begin(_ context.Context, ledgerID uuid.UUID) (ledger.UnitOfWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uow := &unitOfWork{store: s, ledgerID: ledgerID}
	if b, ok := s.ledgers[ledgerID]; ok {
		uow.book = b.clone()
	}

	return uow, nil
}

type unitOfWork struct {
	store    *Store
	ledgerID uuid.UUID
	book     *book
	deleted  bool
	done     bool
}

func (u *unitOfWork) scope() (*book, error) {
	if u.done {
		return nil, fmt.Errorf("unit of work already finished")
	}

	if u.book == nil || u.deleted {
		return nil, fmt.Errorf("ledger %s: %w", u.ledgerID, ledger.ErrNotFound)
	}

	return u.book, nil
}

func (u *unitOfWork) GetLedger(_ context.Context, id uuid.UUID) (*ledger.Ledger, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	if id != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work: %w", id, ledger.ErrNotFound)
	}

	return b.ledger.Clone(), nil
}

func (u *unitOfWork) SaveLedgerMetadata(_ context.Context, l *ledger.Ledger) error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}

	if l.ID != u.ledgerID {
		return fmt.Errorf("ledger %s outside unit of work", l.ID)
	}

	if u.book == nil {
		u.book = &book{
			txs:       make(map[uuid.UUID]*ledger.Transaction),
			relations: make(map[uuid.UUID]*ledger.Relation),
		}
	}

	u.book.ledger = l.Clone()

	return nil
}

func (u *unitOfWork) DeleteLedger(_ context.Context, id uuid.UUID) error {
	if _, err := u.scope(); err != nil {
		return err
	}

	if id != u.ledgerID {
		return fmt.Errorf("ledger %s outside unit of work", id)
	}

	u.deleted = true

	return nil
}

func (u *unitOfWork) LoadTransactions(_ context.Context, ledgerID uuid.UUID, r ledger.OrderRange) ([]*ledger.Transaction, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	if ledgerID != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work", ledgerID)
	}

	return b.sorted(r), nil
}

func (u *unitOfWork) LastBefore(_ context.Context, ledgerID uuid.UUID, k ledger.OrderKey) (*ledger.Transaction, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	if ledgerID != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work", ledgerID)
	}

	var last *ledger.Transaction

	for _, t := range b.txs {
		if t.IsChild() || !t.Key().Less(k) {
			continue
		}

		if last == nil || last.Key().Less(t.Key()) {
			last = t
		}
	}

	if last == nil {
		return nil, nil
	}

	return last.Clone(), nil
}

func (u *unitOfWork) GetTransaction(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	t, ok := b.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}

	return t.Clone(), nil
}

func (u *unitOfWork) Children(_ context.Context, parentID uuid.UUID) ([]*ledger.Transaction, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	var out []*ledger.Transaction

	for _, t := range b.txs {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t.Clone())
		}
	}

	ledger.SortTransactions(out)

	return out, nil
}

func (u *unitOfWork) SaveTransaction(_ context.Context, t *ledger.Transaction) error {
	b, err := u.scope()
	if err != nil {
		return err
	}

	if t.LedgerID != u.ledgerID {
		return fmt.Errorf("transaction %s belongs to ledger %s", t.ID, t.LedgerID)
	}

	for id, other := range b.txs {
		if id != t.ID && other.Sequence == t.Sequence {
			return fmt.Errorf("sequence %d of %s already used by %s: %w", t.Sequence, t.ID, id, ledger.ErrSequenceCollision)
		}
	}

	b.txs[t.ID] = t.Clone()

	return nil
}

func (u *unitOfWork) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	b, err := u.scope()
	if err != nil {
		return err
	}

	if _, ok := b.txs[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}

	delete(b.txs, id)

	for rid, r := range b.relations {
		if r.Involves(id) {
			delete(b.relations, rid)
		}
	}

	return nil
}

func (u *unitOfWork) LoadRelations(_ context.Context, ledgerID uuid.UUID) ([]*ledger.Relation, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	if ledgerID != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work", ledgerID)
	}

	return b.relationList(), nil
}

func (u *unitOfWork) RelationsOf(_ context.Context, txID uuid.UUID) ([]*ledger.Relation, error) {
	b, err := u.scope()
	if err != nil {
		return nil, err
	}

	var out []*ledger.Relation

	for _, r := range b.relationList() {
		if r.Involves(txID) {
			out = append(out, r)
		}
	}

	return out, nil
}

func (u *unitOfWork) SaveRelation(_ context.Context, r *ledger.Relation) error {
	b, err := u.scope()
	if err != nil {
		return err
	}

	for _, id := range []uuid.UUID{r.A, r.B} {
		if _, ok := b.txs[id]; !ok {
			return fmt.Errorf("relation endpoint %s: %w", id, ledger.ErrNotFound)
		}
	}

	rc := *r
	b.relations[r.ID] = &rc

	return nil
}

func (u *unitOfWork) DeleteRelation(_ context.Context, id uuid.UUID) error {
	b, err := u.scope()
	if err != nil {
		return err
	}

	if _, ok := b.relations[id]; !ok {
		return fmt.Errorf("relation %s: %w", id, ledger.ErrNotFound)
	}

	delete(b.relations, id)

	return nil
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}

	u.done = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	switch {
	case u.deleted:
		delete(u.store.ledgers, u.ledgerID)
	case u.book != nil:
		u.store.ledgers[u.ledgerID] = u.book
	}

	return nil
}

func (u *unitOfWork) Rollback() error {
	u.done = true
	u.book = nil

	return nil
}

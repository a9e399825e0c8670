package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	GetLedger(ctx context.Context, id uuid.UUID) (*Ledger, error)
	ListLedgers(ctx context.Context) ([]*Ledger, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	LoadTransactions(ctx context.Context, ledgerID uuid.UUID, r OrderRange) ([]*Transaction, error)
	LoadRelations(ctx context.Context, ledgerID uuid.UUID) ([]*Relation, error)

	SaveImportSummary(ctx context.Context, s *ImportSummary) error
	ListImportSummaries(ctx context.Context, ledgerID uuid.UUID) ([]*ImportSummary, error)

	// Begin opens an all-or-nothing unit of work scoped to one ledger.
	Begin(ctx context.Context, ledgerID uuid.UUID) (UnitOfWork, error)
}

// UnitOfWork is a store transaction. Nothing it writes is visible to readers
// before Commit, and Rollback after Commit is a no-op.
type UnitOfWork interface {
	GetLedger(ctx context.Context, id uuid.UUID) (*Ledger, error)
	SaveLedgerMetadata(ctx context.Context, l *Ledger) error
	DeleteLedger(ctx context.Context, id uuid.UUID) error

	LoadTransactions(ctx context.Context, ledgerID uuid.UUID, r OrderRange) ([]*Transaction, error)
	// LastBefore returns the last top-level transaction strictly before k, or nil.
	LastBefore(ctx context.Context, ledgerID uuid.UUID, k OrderKey) (*Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Children(ctx context.Context, parentID uuid.UUID) ([]*Transaction, error)
	SaveTransaction(ctx context.Context, t *Transaction) error
	// DeleteTransaction removes the transaction and every relation referencing it.
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	LoadRelations(ctx context.Context, ledgerID uuid.UUID) ([]*Relation, error)
	RelationsOf(ctx context.Context, txID uuid.UUID) ([]*Relation, error)
	SaveRelation(ctx context.Context, r *Relation) error
	DeleteRelation(ctx context.Context, id uuid.UUID) error

	Commit() error
	Rollback() error
}

type Service struct {
	repo        Repository
	locks       *Locks
	lockTimeout time.Duration
	log         *slog.Logger
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithLocks shares a lock registry between services that mutate the same ledgers.
func WithLocks(locks *Locks) Option {
	return func(s *Service) { s.locks = locks }
}

// WithLockTimeout bounds how long a writer waits for a busy ledger.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		locks: NewLocks(),
		log:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateParams struct {
	Date            time.Time
	Amount          decimal.Decimal
	Description     string
	Category        string
	Member          string
	Source          string
	Vendor          string
	ReferenceNumber string
	PostedDate      *time.Time
	ImportTag       string
}

type UpdateParams struct {
	Date            *time.Time
	Amount          *decimal.Decimal
	Description     *string
	Category        *string
	Member          *string
	Source          *string
	Vendor          *string
	ReferenceNumber *string
}

type UpdateOptions struct {
	// RecomputeParent rewrites a breakout parent's amount to its children's new
	// sum instead of rejecting an edit that breaks the breakout.
	RecomputeParent bool
}

type DeleteOptions struct {
	RecomputeParent bool
}

type LinkParams struct {
	A     uuid.UUID
	B     uuid.UUID
	Type  RelationType
	Notes string
}

// Snapshot is a consistent read of a whole ledger.
type Snapshot struct {
	Ledger       *Ledger
	Transactions []*Transaction
	Relations    []*Relation
}

func (s *Service) CreateLedger(ctx context.Context, params CreateLedgerParams) (*Ledger, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLedger)
	}

	l := &Ledger{
		ID:      uuid.New(),
		Name:    params.Name,
		Notes:   params.Notes,
		GroupID: params.GroupID,
		Kind:    KindNormal,
	}

	if err := s.WriteNew(ctx, l, nil); err != nil {
		return nil, err
	}

	return l, nil
}

func (s *Service) GetLedger(ctx context.Context, id uuid.UUID) (*Ledger, error) {
	return s.repo.GetLedger(ctx, id)
}

func (s *Service) ListLedgers(ctx context.Context) ([]*Ledger, error) {
	return s.repo.ListLedgers(ctx)
}

// UpdateLedgerParams changes ledger metadata. Kind, provenance and the
// sequence counter are never editable.
type UpdateLedgerParams struct {
	Name    *string
	Notes   *string
	GroupID *uuid.UUID
	// ClearGroup removes the ledger from its group.
	ClearGroup bool
}

func (s *Service) UpdateLedger(ctx context.Context, id uuid.UUID, params UpdateLedgerParams) (*Ledger, error) {
	var out *Ledger

	err := s.Write(ctx, id, func(_ context.Context, w *Writer) error {
		l := w.ledger

		if params.Name != nil {
			name := strings.TrimSpace(*params.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidLedger)
			}

			l.Name = name
		}

		if params.Notes != nil {
			l.Notes = *params.Notes
		}

		switch {
		case params.ClearGroup:
			l.GroupID = nil
		case params.GroupID != nil:
			l.GroupID = new(*params.GroupID)
		}

		out = l

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out.Clone(), nil
}

// DeleteLedger removes the ledger with all its transactions and relations.
// Copies made from it keep their provenance reference.
func (s *Service) DeleteLedger(ctx context.Context, id uuid.UUID) error {
	return s.Write(ctx, id, func(ctx context.Context, w *Writer) error {
		w.deleted = true
		return w.uow.DeleteLedger(ctx, id)
	})
}

// NextSequence issues and persists the next sequence number of a ledger.
func (s *Service) NextSequence(ctx context.Context, ledgerID uuid.UUID) (int64, error) {
	var seq int64

	err := s.Write(ctx, ledgerID, func(_ context.Context, w *Writer) error {
		seq = w.ledger.NextSequence()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return seq, nil
}

// Recalculate recomputes running balances from the given key onward and
// returns the number of transactions in the recalculated range.
func (s *Service) Recalculate(ctx context.Context, ledgerID uuid.UUID, from OrderKey) (int, error) {
	var w *Writer

	err := s.Write(ctx, ledgerID, func(_ context.Context, wr *Writer) error {
		w = wr
		wr.Invalidate(from)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return w.Recalculated(), nil
}

func (s *Service) Create(ctx context.Context, ledgerID uuid.UUID, params CreateParams) (*Transaction, error) {
	t := &Transaction{
		Date:            params.Date,
		Amount:          params.Amount,
		Description:     params.Description,
		Category:        params.Category,
		Member:          params.Member,
		Source:          params.Source,
		Vendor:          params.Vendor,
		ReferenceNumber: params.ReferenceNumber,
		PostedDate:      params.PostedDate,
		ImportTag:       params.ImportTag,
	}

	err := s.Write(ctx, ledgerID, func(ctx context.Context, w *Writer) error {
		return w.Insert(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetTransaction(ctx, t.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// List reads committed transactions without taking the ledger lock.
func (s *Service) List(ctx context.Context, ledgerID uuid.UUID, r OrderRange) ([]*Transaction, error) {
	return s.repo.LoadTransactions(ctx, ledgerID, r)
}

func (s *Service) Relations(ctx context.Context, ledgerID uuid.UUID) ([]*Relation, error) {
	return s.repo.LoadRelations(ctx, ledgerID)
}

func (s *Service) Imports(ctx context.Context, ledgerID uuid.UUID) ([]*ImportSummary, error) {
	return s.repo.ListImportSummaries(ctx, ledgerID)
}

func (s *Service) RecordImport(ctx context.Context, summary *ImportSummary) error {
	return s.repo.SaveImportSummary(ctx, summary)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams, opts UpdateOptions) (*Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.Write(ctx, current.LedgerID, func(ctx context.Context, w *Writer) error {
		return w.applyUpdate(ctx, id, params, opts)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, opts DeleteOptions) error {
	current, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	return s.Write(ctx, current.LedgerID, func(ctx context.Context, w *Writer) error {
		t, err := w.Get(ctx, id)
		if err != nil {
			return err
		}

		if t.IsChild() {
			if err := w.releaseChild(ctx, t, opts.RecomputeParent); err != nil {
				return err
			}
		}

		return w.Delete(ctx, id)
	})
}

// AttachChildren splits parent into children whose amounts must sum exactly to
// the parent's amount. Previous children of the parent are replaced.
func (s *Service) AttachChildren(ctx context.Context, parentID uuid.UUID, children []ChildParams) (*BreakoutResult, error) {
	current, err := s.repo.GetTransaction(ctx, parentID)
	if err != nil {
		return nil, err
	}

	res := &BreakoutResult{}

	err = s.Write(ctx, current.LedgerID, func(ctx context.Context, w *Writer) error {
		parent, err := w.Get(ctx, parentID)
		if err != nil {
			return err
		}

		if err := ValidateBreakout(parent, children); err != nil {
			return err
		}

		previous, err := w.Children(ctx, parent.ID)
		if err != nil {
			return err
		}

		for _, c := range previous {
			if err := w.Delete(ctx, c.ID); err != nil {
				return err
			}
		}

		res.Removed = len(previous)

		built := make([]*Transaction, 0, len(children))
		for _, p := range children {
			child := &Transaction{
				ParentID:    new(parent.ID),
				Date:        parent.Date,
				Amount:      p.Amount,
				Description: p.Description,
				Category:    p.Category,
				Member:      p.Member,
				Source:      p.Source,
				Vendor:      p.Vendor,
				ImportTag:   parent.ImportTag,
			}
			if child.Category == "" {
				child.Category = parent.Category
			}

			if child.Description == "" {
				child.Description = parent.Description
			}

			built = append(built, child)
		}

		if err := ValidateChildren(parent, built); err != nil {
			return err
		}

		for _, child := range built {
			if err := w.Insert(ctx, child); err != nil {
				return err
			}

			res.Children = append(res.Children, child)
		}

		parent.IsBreakoutParent = true

		if err := w.Update(ctx, parent); err != nil {
			return err
		}

		res.Parent = parent

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// DetachChildren removes every child of parent and clears its breakout marker.
// The parent's amount stays as the settled value.
func (s *Service) DetachChildren(ctx context.Context, parentID uuid.UUID) (int, error) {
	current, err := s.repo.GetTransaction(ctx, parentID)
	if err != nil {
		return 0, err
	}

	var removed int

	err = s.Write(ctx, current.LedgerID, func(ctx context.Context, w *Writer) error {
		parent, err := w.Get(ctx, parentID)
		if err != nil {
			return err
		}

		children, err := w.Children(ctx, parent.ID)
		if err != nil {
			return err
		}

		for _, c := range children {
			if err := w.Delete(ctx, c.ID); err != nil {
				return err
			}
		}

		removed = len(children)
		parent.IsBreakoutParent = false

		return w.Update(ctx, parent)
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

func (s *Service) Link(ctx context.Context, params LinkParams) (*Relation, error) {
	a, err := s.repo.GetTransaction(ctx, params.A)
	if err != nil {
		return nil, err
	}

	r := &Relation{
		LedgerID: a.LedgerID,
		A:        params.A,
		B:        params.B,
		Type:     params.Type,
		Notes:    params.Notes,
	}

	err = s.Write(ctx, a.LedgerID, func(ctx context.Context, w *Writer) error {
		return w.Link(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Service) Unlink(ctx context.Context, ledgerID, relationID uuid.UUID) error {
	return s.Write(ctx, ledgerID, func(ctx context.Context, w *Writer) error {
		return w.uow.DeleteRelation(ctx, relationID)
	})
}

// Snapshot reads a ledger with all transactions and relations while holding
// its lock. It fails fast with ErrSourceLocked when a writer is active.
func (s *Service) Snapshot(ctx context.Context, ledgerID uuid.UUID) (*Snapshot, error) {
	release, ok := s.locks.TryAcquire(ledgerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceLocked, ledgerID)
	}
	defer release()

	l, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	txs, err := s.repo.LoadTransactions(ctx, ledgerID, All)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}

	rels, err := s.repo.LoadRelations(ctx, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("reading relations: %w", err)
	}

	return &Snapshot{Ledger: l, Transactions: txs, Relations: rels}, nil
}

// Write runs fn as one serialized, all-or-nothing mutation of a ledger.
// Balances invalidated by fn are recalculated before the commit.
func (s *Service) Write(ctx context.Context, ledgerID uuid.UUID, fn func(ctx context.Context, w *Writer) error) error {
	return s.write(ctx, ledgerID, nil, fn)
}

// WriteNew creates the ledger l and populates it through fn in the same unit of work.
func (s *Service) WriteNew(ctx context.Context, l *Ledger, fn func(ctx context.Context, w *Writer) error) error {
	if err := l.Validate(); err != nil {
		return err
	}

	return s.write(ctx, l.ID, l, fn)
}

func (s *Service) write(ctx context.Context, ledgerID uuid.UUID, create *Ledger, fn func(ctx context.Context, w *Writer) error) error {
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	release, err := s.locks.Acquire(lockCtx, ledgerID)
	if err != nil {
		return err
	}
	defer release()

	uow, err := s.repo.Begin(ctx, ledgerID)
	if err != nil {
		return fmt.Errorf("begin ledger write: %w", err)
	}
	defer uow.Rollback()

	l := create
	if l == nil {
		l, err = uow.GetLedger(ctx, ledgerID)
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if create != nil {
		l.CreatedAt = now
		l.UpdatedAt = now

		if err := uow.SaveLedgerMetadata(ctx, l); err != nil {
			return fmt.Errorf("creating ledger: %w", err)
		}
	}

	w := &Writer{uow: uow, ledger: l, now: now}

	if fn != nil {
		if err := fn(ctx, w); err != nil {
			return s.fail(ledgerID, err)
		}
	}

	if w.deleted {
		return s.commit(ledgerID, uow)
	}

	if err := w.flush(ctx); err != nil {
		return s.fail(ledgerID, err)
	}

	l.UpdatedAt = now
	if err := uow.SaveLedgerMetadata(ctx, l); err != nil {
		return s.fail(ledgerID, fmt.Errorf("saving ledger metadata: %w", err))
	}

	return s.commit(ledgerID, uow)
}

func (s *Service) commit(ledgerID uuid.UUID, uow UnitOfWork) error {
	if err := uow.Commit(); err != nil {
		return s.fail(ledgerID, fmt.Errorf("commit ledger write: %w", err))
	}

	return nil
}

func (s *Service) fail(ledgerID uuid.UUID, err error) error {
	if errors.Is(err, ErrInvariantViolation) || errors.Is(err, ErrSequenceCollision) {
		s.log.Error("ledger invariant violated, operator intervention required",
			"ledger", ledgerID,
			"error", err,
		)
	}

	return err
}

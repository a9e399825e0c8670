package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectLedgerColumns = `
	id, name, notes, group_id, kind, source_id, sequence, created_at, updated_at
`

func scanLedger(s scanner) (*ledger.Ledger, error) {
	var l ledger.Ledger

	var kind string

	if err := s.Scan(
		&l.ID, &l.Name, &l.Notes, &l.GroupID, &kind, &l.SourceID, &l.Sequence,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}

	l.Kind = ledger.Kind(kind)

	return &l, nil
}

// Expected column order: id, ledger_id, sequence, date, amount, description, category, member,
// source, vendor, running_balance, parent_id, is_breakout_parent, import_tag, reference_number,
// posted_date, created_at, updated_at
const selectTransactionColumns = `
	t.id, t.ledger_id, t.sequence, t.date, t.amount, t.description, t.category, t.member,
	t.source, t.vendor, t.running_balance, t.parent_id, t.is_breakout_parent, t.import_tag,
	t.reference_number, t.posted_date, t.created_at, t.updated_at
`

func scanTransaction(s scanner) (*ledger.Transaction, error) {
	var t ledger.Transaction

	if err := s.Scan(
		&t.ID, &t.LedgerID, &t.Sequence, &t.Date, &t.Amount, &t.Description, &t.Category, &t.Member,
		&t.Source, &t.Vendor, &t.RunningBalance, &t.ParentID, &t.IsBreakoutParent, &t.ImportTag,
		&t.ReferenceNumber, &t.PostedDate, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Date = ledger.Day(t.Date)

	if t.PostedDate != nil {
		t.PostedDate = new(ledger.Day(*t.PostedDate))
	}

	return &t, nil
}

const selectRelationColumns = `id, ledger_id, a, b, type, notes`

func scanRelation(s scanner) (*ledger.Relation, error) {
	var r ledger.Relation

	var typ string

	if err := s.Scan(&r.ID, &r.LedgerID, &r.A, &r.B, &typ, &r.Notes); err != nil {
		return nil, err
	}

	r.Type = ledger.RelationType(typ)

	return &r, nil
}

func getLedger(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*ledger.Ledger, error) {
	query := `SELECT ` + selectLedgerColumns + ` FROM ledgers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	l, err := scanLedger(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ledger %s: %w", id, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting ledger: %w", err)
	}

	return l, nil
}

func getTransaction(ctx context.Context, q querier, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions t WHERE t.id = $1`

	t, err := scanTransaction(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return t, nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]*ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}

	return txs, nil
}

func loadTransactions(ctx context.Context, q querier, ledgerID uuid.UUID, r ledger.OrderRange) ([]*ledger.Transaction, error) {
	var sb strings.Builder

	sb.WriteString(`SELECT ` + selectTransactionColumns + ` FROM transactions t WHERE t.ledger_id = $1`)

	args := []any{ledgerID}
	argIdx := 2

	if r.From != nil {
		fmt.Fprintf(&sb, " AND (t.date, t.sequence) >= ($%d, $%d)", argIdx, argIdx+1)

		args = append(args, r.From.Date, r.From.Sequence)
		argIdx += 2
	}

	if r.To != nil {
		fmt.Fprintf(&sb, " AND (t.date, t.sequence) <= ($%d, $%d)", argIdx, argIdx+1)

		args = append(args, r.To.Date, r.To.Sequence)
	}

	sb.WriteString(" ORDER BY t.date ASC, t.sequence ASC")

	return queryTransactions(ctx, q, sb.String(), args...)
}

func loadRelations(ctx context.Context, q querier, query string, arg uuid.UUID) ([]*ledger.Relation, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	defer rows.Close()

	var rels []*ledger.Relation

	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}

		rels = append(rels, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relation rows: %w", err)
	}

	return rels, nil
}

func (s *Store) GetLedger(ctx context.Context, id uuid.UUID) (*ledger.Ledger, error) {
	return getLedger(ctx, s.db, id, false)
}

func (s *Store) ListLedgers(ctx context.Context) ([]*ledger.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectLedgerColumns+` FROM ledgers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing ledgers: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Ledger

	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger: %w", err)
		}

		out = append(out, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}

	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

func (s *Store) LoadTransactions(ctx context.Context, ledgerID uuid.UUID, r ledger.OrderRange) ([]*ledger.Transaction, error) {
	if _, err := getLedger(ctx, s.db, ledgerID, false); err != nil {
		return nil, err
	}

	return loadTransactions(ctx, s.db, ledgerID, r)
}

func (s *Store) LoadRelations(ctx context.Context, ledgerID uuid.UUID) ([]*ledger.Relation, error) {
	query := `SELECT ` + selectRelationColumns + ` FROM transaction_relations WHERE ledger_id = $1 ORDER BY a, b, type`
	return loadRelations(ctx, s.db, query, ledgerID)
}

func (s *Store) SaveImportSummary(ctx context.Context, sum *ledger.ImportSummary) error {
	query := `
		INSERT INTO import_summaries (id, ledger_id, tag, file_name, policy, imported, skipped_duplicate,
			replaced, failed_validation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		sum.ID, sum.LedgerID, sum.Tag, sum.FileName, sum.Policy, sum.Imported, sum.SkippedDuplicate,
		sum.Replaced, sum.FailedValidation, sum.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving import summary: %w", err)
	}

	return nil
}

func (s *Store) ListImportSummaries(ctx context.Context, ledgerID uuid.UUID) ([]*ledger.ImportSummary, error) {
	query := `
		SELECT id, ledger_id, tag, file_name, policy, imported, skipped_duplicate, replaced,
			failed_validation, created_at
		FROM import_summaries
		WHERE ledger_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("listing import summaries: %w", err)
	}
	defer rows.Close()

	var out []*ledger.ImportSummary

	for rows.Next() {
		var sum ledger.ImportSummary
		if err := rows.Scan(
			&sum.ID, &sum.LedgerID, &sum.Tag, &sum.FileName, &sum.Policy, &sum.Imported,
			&sum.SkippedDuplicate, &sum.Replaced, &sum.FailedValidation, &sum.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning import summary: %w", err)
		}

		out = append(out, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating import summary rows: %w", err)
	}

	return out, nil
}

func ledgerLockKey(id uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("ledger:"))
	h.Write(id[:])

	return int64(h.Sum64())
}

// Begin opens a database transaction holding the ledger's advisory lock, so
// writers in other processes are serialized the same way as in-process ones.
func (s *Store) Begin(ctx context.Context, ledgerID uuid.UUID) (ledger.UnitOfWork, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey(ledgerID)); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring ledger lock: %w", err)
	}

	return &unitOfWork{tx: dbTx, ledgerID: ledgerID}, nil
}

type unitOfWork struct {
	tx       *sql.Tx
	ledgerID uuid.UUID
}

func (u *unitOfWork) Commit() error   { return u.tx.Commit() }
func (u *unitOfWork) Rollback() error { return u.tx.Rollback() }

func (u *unitOfWork) GetLedger(ctx context.Context, id uuid.UUID) (*ledger.Ledger, error) {
	if id != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work: %w", id, ledger.ErrNotFound)
	}

	return getLedger(ctx, u.tx, id, true)
}

func (u *unitOfWork) SaveLedgerMetadata(ctx context.Context, l *ledger.Ledger) error {
	if l.ID != u.ledgerID {
		return fmt.Errorf("ledger %s outside unit of work", l.ID)
	}

	query := `
		INSERT INTO ledgers (id, name, notes, group_id, kind, source_id, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			notes = EXCLUDED.notes,
			group_id = EXCLUDED.group_id,
			sequence = EXCLUDED.sequence,
			updated_at = EXCLUDED.updated_at
	`

	_, err := u.tx.ExecContext(ctx, query,
		l.ID, l.Name, l.Notes, l.GroupID, string(l.Kind), l.SourceID, l.Sequence, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}

	return nil
}

func (u *unitOfWork) DeleteLedger(ctx context.Context, id uuid.UUID) error {
	if id != u.ledgerID {
		return fmt.Errorf("ledger %s outside unit of work", id)
	}

	res, err := u.tx.ExecContext(ctx, `DELETE FROM ledgers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting ledger: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger %s: %w", id, ledger.ErrNotFound)
	}

	return nil
}

func (u *unitOfWork) LoadTransactions(ctx context.Context, ledgerID uuid.UUID, r ledger.OrderRange) ([]*ledger.Transaction, error) {
	if ledgerID != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work", ledgerID)
	}

	return loadTransactions(ctx, u.tx, ledgerID, r)
}

func (u *unitOfWork) LastBefore(ctx context.Context, ledgerID uuid.UUID, k ledger.OrderKey) (*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE t.ledger_id = $1 AND t.parent_id IS NULL AND (t.date, t.sequence) < ($2, $3)
		ORDER BY t.date DESC, t.sequence DESC
		LIMIT 1`

	t, err := scanTransaction(u.tx.QueryRowContext(ctx, query, ledgerID, k.Date, k.Sequence))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting preceding transaction: %w", err)
	}

	return t, nil
}

func (u *unitOfWork) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return getTransaction(ctx, u.tx, id)
}

func (u *unitOfWork) Children(ctx context.Context, parentID uuid.UUID) ([]*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE t.parent_id = $1
		ORDER BY t.date ASC, t.sequence ASC`

	return queryTransactions(ctx, u.tx, query, parentID)
}

func (u *unitOfWork) SaveTransaction(ctx context.Context, t *ledger.Transaction) error {
	if t.LedgerID != u.ledgerID {
		return fmt.Errorf("transaction %s belongs to ledger %s", t.ID, t.LedgerID)
	}

	query := `
		INSERT INTO transactions (id, ledger_id, sequence, date, amount, description, category, member,
			source, vendor, running_balance, parent_id, is_breakout_parent, import_tag, reference_number,
			posted_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			amount = EXCLUDED.amount,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			member = EXCLUDED.member,
			source = EXCLUDED.source,
			vendor = EXCLUDED.vendor,
			running_balance = EXCLUDED.running_balance,
			is_breakout_parent = EXCLUDED.is_breakout_parent,
			reference_number = EXCLUDED.reference_number,
			posted_date = EXCLUDED.posted_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := u.tx.ExecContext(ctx, query,
		t.ID, t.LedgerID, t.Sequence, t.Date, t.Amount, t.Description, t.Category, t.Member,
		t.Source, t.Vendor, t.RunningBalance, t.ParentID, t.IsBreakoutParent, t.ImportTag, t.ReferenceNumber,
		t.PostedDate, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("sequence %d of %s: %w", t.Sequence, t.ID, ledger.ErrSequenceCollision)
		}

		return fmt.Errorf("saving transaction: %w", err)
	}

	return nil
}

// DeleteTransaction relies on ON DELETE CASCADE to drop relations and children.
func (u *unitOfWork) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND ledger_id = $2`, id, u.ledgerID)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}

	return nil
}

func (u *unitOfWork) LoadRelations(ctx context.Context, ledgerID uuid.UUID) ([]*ledger.Relation, error) {
	if ledgerID != u.ledgerID {
		return nil, fmt.Errorf("ledger %s outside unit of work", ledgerID)
	}

	query := `SELECT ` + selectRelationColumns + ` FROM transaction_relations WHERE ledger_id = $1 ORDER BY a, b, type`

	return loadRelations(ctx, u.tx, query, ledgerID)
}

func (u *unitOfWork) RelationsOf(ctx context.Context, txID uuid.UUID) ([]*ledger.Relation, error) {
	query := `SELECT ` + selectRelationColumns + ` FROM transaction_relations WHERE a = $1 OR b = $1 ORDER BY a, b, type`
	return loadRelations(ctx, u.tx, query, txID)
}

func (u *unitOfWork) SaveRelation(ctx context.Context, r *ledger.Relation) error {
	query := `
		INSERT INTO transaction_relations (id, ledger_id, a, b, type, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := u.tx.ExecContext(ctx, query, r.ID, r.LedgerID, r.A, r.B, string(r.Type), r.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s %s %s", ledger.ErrDuplicateRelation, r.A, r.Type, r.B)
		}

		return fmt.Errorf("saving relation: %w", err)
	}

	return nil
}

func (u *unitOfWork) DeleteRelation(ctx context.Context, id uuid.UUID) error {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM transaction_relations WHERE id = $1 AND ledger_id = $2`, id, u.ledgerID)
	if err != nil {
		return fmt.Errorf("deleting relation: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("relation %s: %w", id, ledger.ErrNotFound)
	}

	return nil
}

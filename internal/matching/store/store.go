package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

const selectRuleColumns = `id, raw_pattern, category, vendor, description, created_at`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (*matching.Rule, error) {
	var r matching.Rule

	if err := s.Scan(&r.ID, &r.RawPattern, &r.Category, &r.Vendor, &r.Description, &r.CreatedAt); err != nil {
		return nil, err
	}

	return &r, nil
}

func (s *Store) FindMatch(ctx context.Context, rawDescription string) (*matching.Rule, error) {
	query := `
		SELECT ` + selectRuleColumns + `
		FROM classification_rules
		WHERE $1 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	r, err := scanRule(s.db.QueryRowContext(ctx, query, rawDescription))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding match: %w", err)
	}

	return r, nil
}

func (s *Store) CreateRule(ctx context.Context, r *matching.Rule) error {
	query := `
		INSERT INTO classification_rules (id, raw_pattern, category, vendor, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query, r.ID, r.RawPattern, r.Category, r.Vendor, r.Description, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating rule: %w", err)
	}

	return nil
}

func (s *Store) ListRules(ctx context.Context) ([]*matching.Rule, error) {
	query := `SELECT ` + selectRuleColumns + ` FROM classification_rules ORDER BY raw_pattern, created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []*matching.Rule

	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}

		rules = append(rules, r)
	}

	return rules, rows.Err()
}

func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM classification_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("rule %s: %w", id, ledger.ErrNotFound)
	}

	return nil
}

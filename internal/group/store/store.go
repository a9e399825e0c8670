package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/group"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const selectGroupColumns = `id, parent_id, name, notes, created_at`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(s scanner) (*group.Group, error) {
	var (
		g        group.Group
		parentID uuid.NullUUID
	)

	if err := s.Scan(&g.ID, &parentID, &g.Name, &g.Notes, &g.CreatedAt); err != nil {
		return nil, err
	}

	if parentID.Valid {
		g.ParentID = &parentID.UUID
	}

	return &g, nil
}

func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	query := `SELECT ` + selectGroupColumns + ` FROM budget_groups WHERE id = $1`

	g, err := scanGroup(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", id, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting group: %w", err)
	}

	return g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*group.Group, error) {
	query := `SELECT ` + selectGroupColumns + ` FROM budget_groups ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var groups []*group.Group

	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}

		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (s *Store) CreateGroup(ctx context.Context, g *group.Group) error {
	query := `
		INSERT INTO budget_groups (id, parent_id, name, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query, g.ID, nullUUID(g.ParentID), g.Name, g.Notes, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating group: %w", err)
	}

	return nil
}

func (s *Store) UpdateGroup(ctx context.Context, g *group.Group) error {
	query := `UPDATE budget_groups SET parent_id = $2, name = $3, notes = $4 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, g.ID, nullUUID(g.ParentID), g.Name, g.Notes)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}

	return requireRow(res, g.ID)
}

func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budget_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}

	return requireRow(res, id)
}

func requireRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("group %s: %w", id, ledger.ErrNotFound)
	}

	return nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}

	return uuid.NullUUID{UUID: *id, Valid: true}
}

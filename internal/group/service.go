package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidGroup = errors.New("invalid budget group")
	ErrCycle        = errors.New("budget group cannot be moved below itself")
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=group
type Repository interface {
	GetGroup(ctx context.Context, id uuid.UUID) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	CreateGroup(ctx context.Context, g *Group) error
	UpdateGroup(ctx context.Context, g *Group) error
	// DeleteGroup removes the group and its subgroups. Ledgers in them are kept
	// and lose their group.
	DeleteGroup(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Name     string
	Notes    string
	ParentID *uuid.UUID
}

type UpdateParams struct {
	Name  *string
	Notes *string
	// Move re-parents the group to ParentID; a nil ParentID makes it a root.
	Move     bool
	ParentID *uuid.UUID
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Group, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}

	if params.ParentID != nil {
		if _, err := s.repo.GetGroup(ctx, *params.ParentID); err != nil {
			return nil, fmt.Errorf("loading parent group: %w", err)
		}
	}

	g := &Group{
		ID:        uuid.New(),
		ParentID:  params.ParentID,
		Name:      name,
		Notes:     params.Notes,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return nil, err
	}

	return g, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Group, error) {
	return s.repo.GetGroup(ctx, id)
}

func (s *Service) Tree(ctx context.Context) (*Tree, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	return NewTree(groups), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Group, error) {
	g, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
		}

		g.Name = name
	}

	if params.Notes != nil {
		g.Notes = *params.Notes
	}

	if params.Move {
		if params.ParentID != nil {
			tree, err := s.Tree(ctx)
			if err != nil {
				return nil, err
			}

			if _, ok := tree.Get(*params.ParentID); !ok {
				return nil, fmt.Errorf("%w: parent %s does not exist", ErrInvalidGroup, *params.ParentID)
			}

			if *params.ParentID == id || tree.IsDescendant(*params.ParentID, id) {
				return nil, ErrCycle
			}
		}

		g.ParentID = params.ParentID
	}

	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	return g, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteGroup(ctx, id)
}

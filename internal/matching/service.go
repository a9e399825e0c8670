package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

var ErrInvalidRule = errors.New("invalid classification rule")

// Rule maps raw descriptions containing RawPattern to a classification.
// Empty fields leave the corresponding record field untouched.
type Rule struct {
	ID          uuid.UUID
	RawPattern  string
	Category    string
	Vendor      string
	Description string
	CreatedAt   time.Time
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	// FindMatch returns the most specific rule whose pattern occurs in
	// rawDescription, or nil when none does.
	FindMatch(ctx context.Context, rawDescription string) (*Rule, error)
	CreateRule(ctx context.Context, r *Rule) error
	ListRules(ctx context.Context) ([]*Rule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest finds the rule for the given raw description.
// Returns nil if no rule matches.
func (s *Service) Suggest(ctx context.Context, rawDescription string) (*Rule, error) {
	if strings.TrimSpace(rawDescription) == "" {
		return nil, nil
	}

	return s.repo.FindMatch(ctx, rawDescription)
}

// Learn remembers a new rule.
func (s *Service) Learn(ctx context.Context, r Rule) (*Rule, error) {
	r.RawPattern = strings.TrimSpace(r.RawPattern)
	r.Category = strings.TrimSpace(r.Category)
	r.Vendor = strings.TrimSpace(r.Vendor)
	r.Description = strings.TrimSpace(r.Description)

	if r.RawPattern == "" {
		return nil, fmt.Errorf("%w: pattern is required", ErrInvalidRule)
	}

	if r.Category == "" && r.Vendor == "" && r.Description == "" {
		return nil, fmt.Errorf("%w: pattern %q sets nothing", ErrInvalidRule, r.RawPattern)
	}

	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()

	if err := s.repo.CreateRule(ctx, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

func (s *Service) Rules(ctx context.Context) ([]*Rule, error) {
	return s.repo.ListRules(ctx)
}

func (s *Service) Forget(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRule(ctx, id)
}

// Classify fills the empty category and vendor of rec from the matching rule
// and replaces its description with the rule's preferred one.
func (s *Service) Classify(ctx context.Context, rec *ledger.Record) error {
	rule, err := s.Suggest(ctx, rec.Description)
	if err != nil {
		return fmt.Errorf("classifying row %d: %w", rec.Row, err)
	}

	if rule == nil {
		return nil
	}

	if strings.TrimSpace(rec.Category) == "" {
		rec.Category = rule.Category
	}

	if strings.TrimSpace(rec.Vendor) == "" {
		rec.Vendor = rule.Vendor
	}

	if rule.Description != "" {
		rec.Description = rule.Description
	}

	return nil
}

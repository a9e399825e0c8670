// Package duplicate finds existing transactions that an incoming record may
// repeat. It only reads; deciding what to do with a match is up to the caller.
package duplicate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

var ErrInvalidConfig = errors.New("invalid duplicate detection config")

// Tier ranks how strongly a candidate matches. Lower tiers are stronger.
type Tier int

const (
	TierExact Tier = iota
	TierFuzzy
	TierNear
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	case TierNear:
		return "near"
	}

	return fmt.Sprintf("tier(%d)", int(t))
}

type Config struct {
	// Threshold is the description similarity a fuzzy match must exceed.
	Threshold float64
	// DateWindow is the number of days either side searched by the near tier.
	DateWindow int
	// AmountTolerance is the largest absolute amount difference of a near match.
	AmountTolerance decimal.Decimal
	// Workers bounds how many records are matched concurrently. Zero means GOMAXPROCS.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Threshold:       0.80,
		DateWindow:      3,
		AmountTolerance: decimal.NewFromInt(1),
	}
}

func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("%w: threshold %v outside (0, 1)", ErrInvalidConfig, c.Threshold)
	}

	if c.DateWindow < 0 {
		return fmt.Errorf("%w: negative date window", ErrInvalidConfig)
	}

	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: negative amount tolerance", ErrInvalidConfig)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: negative worker count", ErrInvalidConfig)
	}

	return nil
}

type Candidate struct {
	Transaction *ledger.Transaction
	Tier        Tier
	Score       float64
	// Days is the absolute distance in days between the record and the candidate.
	Days int
}

// Match lists the candidates of the record at Index, strongest first.
type Match struct {
	Index      int
	Candidates []Candidate
}

// Duplicate returns the strongest exact or fuzzy candidate.
func (m Match) Duplicate() (Candidate, bool) {
	if len(m.Candidates) == 0 || m.Candidates[0].Tier == TierNear {
		return Candidate{}, false
	}

	return m.Candidates[0], true
}

// Near returns the near-tier candidates only.
func (m Match) Near() []Candidate {
	var out []Candidate

	for _, c := range m.Candidates {
		if c.Tier == TierNear {
			out = append(out, c)
		}
	}

	return out
}

type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return &Detector{cfg: cfg}, nil
}

func (d *Detector) Config() Config {
	return d.cfg
}

// FindCandidates matches every entry against the existing transactions and
// returns one Match per entry, in input order. The result depends only on its
// inputs, never on scheduling.
func (d *Detector) FindCandidates(ctx context.Context, existing []*ledger.Transaction, entries []ledger.Entry) ([]Match, error) {
	idx := d.index(existing)
	matches := make([]Match, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for i := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			matches[i] = Match{Index: i, Candidates: d.match(idx, entries[i])}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("finding duplicate candidates: %w", err)
	}

	return matches, nil
}

type indexed struct {
	tx   *ledger.Transaction
	norm string
}

func (d *Detector) index(existing []*ledger.Transaction) map[time.Time][]indexed {
	idx := make(map[time.Time][]indexed)

	for _, t := range existing {
		if t.IsChild() {
			continue
		}

		day := ledger.Day(t.Date)
		idx[day] = append(idx[day], indexed{tx: t, norm: Normalize(t.Description)})
	}

	return idx
}

func (d *Detector) match(idx map[time.Time][]indexed, e ledger.Entry) []Candidate {
	var (
		out  []Candidate
		day  = ledger.Day(e.Date)
		norm = Normalize(e.Description)
	)

	for offset := -d.cfg.DateWindow; offset <= d.cfg.DateWindow; offset++ {
		days := abs(offset)

		for _, ix := range idx[day.AddDate(0, 0, offset)] {
			diff := ix.tx.Amount.Sub(e.Amount).Abs()

			if days == 0 && diff.IsZero() {
				if ix.norm == norm {
					out = append(out, Candidate{Transaction: ix.tx, Tier: TierExact, Score: 1, Days: 0})
					continue
				}

				if sim := Similarity(ix.norm, norm); sim > d.cfg.Threshold {
					out = append(out, Candidate{Transaction: ix.tx, Tier: TierFuzzy, Score: sim, Days: 0})
					continue
				}
			}

			if diff.GreaterThan(d.cfg.AmountTolerance) {
				continue
			}

			out = append(out, Candidate{Transaction: ix.tx, Tier: TierNear, Score: d.nearScore(days, diff), Days: days})
		}
	}

	slices.SortFunc(out, compareCandidates)

	return out
}

// nearScore decays with date and amount distance and stays below Threshold/2,
// so it never outranks a fuzzy match.
func (d *Detector) nearScore(days int, diff decimal.Decimal) float64 {
	dateFactor := 1 - float64(days)/float64(d.cfg.DateWindow+1)
	amountFactor := 1 - diff.InexactFloat64()/(d.cfg.AmountTolerance.InexactFloat64()+0.01)

	return d.cfg.Threshold / 2 * dateFactor * amountFactor
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(a.Tier, b.Tier); c != 0 {
		return c
	}

	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}

	if c := cmp.Compare(a.Days, b.Days); c != 0 {
		return c
	}

	return cmp.Compare(a.Transaction.Sequence, b.Transaction.Sequence)
}

// Normalize case-folds s and collapses its whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Similarity is the Levenshtein ratio of two strings: 1 for equal strings,
// 0 for strings sharing nothing.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))

	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}

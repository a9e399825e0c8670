package importer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/importer/csvfile"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const DefaultChunkSize = 200

// Coordinator brings batches of external records into a ledger. Detection runs
// against a committed snapshot; commits go through ledger.Service.Write in
// chunks, so a failure never leaves a chunk half-applied.
type Coordinator struct {
	ledgers    *ledger.Service
	detector   *duplicate.Detector
	parsers    map[Format]Parser
	classifier Classifier
	chunkSize  int
	log        *slog.Logger
}

type Option func(*Coordinator)

func WithChunkSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func WithParser(format Format, p Parser) Option {
	return func(c *Coordinator) { c.parsers[format] = p }
}

// WithClassifier fills missing categories and vendors from learned rules.
func WithClassifier(cl Classifier) Option {
	return func(c *Coordinator) { c.classifier = cl }
}

func NewCoordinator(ledgers *ledger.Service, detector *duplicate.Detector, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledgers:   ledgers,
		detector:  detector,
		parsers:   map[Format]Parser{FormatCSV: csvfile.New()},
		chunkSize: DefaultChunkSize,
		log:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Coordinator) Parse(format Format, r io.Reader) ([]ledger.Record, error) {
	p, ok := c.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	return p.Parse(r)
}

func (c *Coordinator) ImportFile(ctx context.Context, ledgerID uuid.UUID, format Format, r io.Reader, policy Policy, opts Options) (*Report, error) {
	records, err := c.Parse(format, r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s file: %w", format, err)
	}

	return c.ImportBatch(ctx, ledgerID, records, policy, opts)
}

func (c *Coordinator) PreviewFile(ctx context.Context, ledgerID uuid.UUID, format Format, r io.Reader) (*Preview, error) {
	records, err := c.Parse(format, r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s file: %w", format, err)
	}

	return c.Preview(ctx, ledgerID, records)
}

type analysis struct {
	entries  []ledger.Entry
	failures []Failure
	matches  []duplicate.Match
}

// analyze normalizes records and matches the valid ones against the ledger.
func (c *Coordinator) analyze(ctx context.Context, ledgerID uuid.UUID, records []ledger.Record) (*analysis, error) {
	if _, err := c.ledgers.GetLedger(ctx, ledgerID); err != nil {
		return nil, err
	}

	a := &analysis{}

	for _, r := range records {
		if c.classifier != nil {
			if err := c.classifier.Classify(ctx, &r); err != nil {
				c.log.Warn("classifying record", "row", r.Row, "error", err)
			}
		}

		e, err := r.Normalize()
		if err != nil {
			a.failures = append(a.failures, Failure{Row: r.Row, Reason: err.Error()})
			continue
		}

		a.entries = append(a.entries, e)
	}

	if len(a.entries) == 0 {
		return a, nil
	}

	from, to := dateRange(a.entries)
	window := c.detector.Config().DateWindow

	existing, err := c.ledgers.List(ctx, ledgerID, ledger.Between(from.AddDate(0, 0, -window), to.AddDate(0, 0, window)))
	if err != nil {
		return nil, fmt.Errorf("loading existing transactions: %w", err)
	}

	a.matches, err = c.detector.FindCandidates(ctx, existing, a.entries)
	if err != nil {
		return nil, err
	}

	return a, nil
}

type plan struct {
	entry   ledger.Entry
	replace *uuid.UUID
}

// ImportBatch imports records into the ledger, resolving duplicates with policy.
// Invalid records are reported in the result and never abort the batch. When a
// chunk fails to commit, the chunks before it stay committed, the rest are
// reported as failures, and the error is returned together with the report.
func (c *Coordinator) ImportBatch(ctx context.Context, ledgerID uuid.UUID, records []ledger.Record, policy Policy, opts Options) (*Report, error) {
	if policy < PolicySkipDuplicates || policy > PolicyReplaceExisting {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolicy, int(policy))
	}

	a, err := c.analyze(ctx, ledgerID, records)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ImportID:         uuid.New(),
		ImportTag:        opts.ImportTag,
		Policy:           policy,
		Failures:         a.failures,
		FailedValidation: len(a.failures),
	}

	if report.ImportTag == "" {
		report.ImportTag = "import-" + report.ImportID.String()[:8]
	}

	plans := c.plan(a, policy, report)

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = c.chunkSize
	}

	var (
		inserted  []uuid.UUID
		importErr error
	)

	for start := 0; start < len(plans); start += chunkSize {
		chunk := plans[start:min(start+chunkSize, len(plans))]

		res, err := c.commit(ctx, ledgerID, report.ImportTag, chunk)
		if err != nil {
			for _, p := range plans[start:] {
				report.Failures = append(report.Failures, Failure{Row: p.entry.Row, Reason: "not committed: " + err.Error()})
			}

			importErr = fmt.Errorf("committing import chunk at record %d: %w", start, err)

			break
		}

		report.Imported += res.imported
		report.Replaced += res.replaced
		inserted = append(inserted, res.ids...)
	}

	slices.SortFunc(report.Failures, func(x, y Failure) int { return cmp.Compare(x.Row, y.Row) })

	if len(inserted) > 0 {
		report.Transactions, err = c.loadInserted(ctx, ledgerID, a.entries, inserted)
		if err != nil {
			c.log.Error("reading imported transactions", "import", report.ImportID, "error", err)
		}
	}

	c.record(ctx, ledgerID, opts.FileName, report)

	c.log.Info("import finished",
		"ledger", ledgerID,
		"import", report.ImportID,
		"policy", policy.String(),
		"imported", report.Imported,
		"skipped_duplicate", report.SkippedDuplicate,
		"replaced", report.Replaced,
		"failed_validation", report.FailedValidation,
		"suggestions", len(report.Suggestions),
	)

	return report, importErr
}

// plan applies the policy to every valid entry and returns what must be written.
func (c *Coordinator) plan(a *analysis, policy Policy, report *Report) []plan {
	var (
		plans   []plan
		claimed = make(map[uuid.UUID]bool)
	)

	for i, e := range a.entries {
		m := a.matches[i]

		if _, dup := m.Duplicate(); dup {
			switch policy {
			case PolicySkipDuplicates:
				report.SkippedDuplicate++
				continue

			case PolicyReplaceExisting:
				if id, ok := unclaimed(m, claimed); ok {
					claimed[id] = true
					plans = append(plans, plan{entry: e, replace: &id})

					continue
				}
			}

			plans = append(plans, plan{entry: e})

			continue
		}

		if near := m.Near(); len(near) > 0 {
			report.Suggestions = append(report.Suggestions, Suggestion{Row: e.Row, Entry: e, Candidates: near})
		}

		plans = append(plans, plan{entry: e})
	}

	return plans
}

// unclaimed returns the strongest exact or fuzzy candidate not already being
// replaced by an earlier record of the batch.
func unclaimed(m duplicate.Match, claimed map[uuid.UUID]bool) (uuid.UUID, bool) {
	for _, cand := range m.Candidates {
		if cand.Tier == duplicate.TierNear {
			break
		}

		if !claimed[cand.Transaction.ID] {
			return cand.Transaction.ID, true
		}
	}

	return uuid.Nil, false
}

type chunkResult struct {
	imported int
	replaced int
	ids      []uuid.UUID
}

func (c *Coordinator) commit(ctx context.Context, ledgerID uuid.UUID, tag string, chunk []plan) (chunkResult, error) {
	var res chunkResult

	err := c.ledgers.Write(ctx, ledgerID, func(ctx context.Context, w *ledger.Writer) error {
		res = chunkResult{}

		for _, p := range chunk {
			replaced := false

			if p.replace != nil {
				switch err := w.Delete(ctx, *p.replace); {
				case err == nil:
					replaced = true
				case errors.Is(err, ledger.ErrNotFound):
					// removed since detection ran; import as a new record
				default:
					return fmt.Errorf("replacing for row %d: %w", p.entry.Row, err)
				}
			}

			t := p.entry.Transaction(tag)
			if err := w.Insert(ctx, t); err != nil {
				return fmt.Errorf("inserting row %d: %w", p.entry.Row, err)
			}

			res.ids = append(res.ids, t.ID)

			if replaced {
				res.replaced++
			} else {
				res.imported++
			}
		}

		return nil
	})
	if err != nil {
		return chunkResult{}, err
	}

	return res, nil
}

// loadInserted reads back the committed transactions so the report carries
// their final sequence numbers and balances.
func (c *Coordinator) loadInserted(ctx context.Context, ledgerID uuid.UUID, entries []ledger.Entry, ids []uuid.UUID) ([]*ledger.Transaction, error) {
	from, to := dateRange(entries)

	txs, err := c.ledgers.List(ctx, ledgerID, ledger.Between(from, to))
	if err != nil {
		return nil, err
	}

	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []*ledger.Transaction

	for _, t := range txs {
		if want[t.ID] {
			out = append(out, t)
		}
	}

	return out, nil
}

func (c *Coordinator) record(ctx context.Context, ledgerID uuid.UUID, fileName string, report *Report) {
	summary := report.summary(ledgerID, fileName)
	summary.CreatedAt = time.Now().UTC()

	if err := c.ledgers.RecordImport(ctx, summary); err != nil {
		c.log.Error("saving import summary", "import", report.ImportID, "error", err)
	}
}

// Preview reports what ImportBatch would do with records, without writing.
func (c *Coordinator) Preview(ctx context.Context, ledgerID uuid.UUID, records []ledger.Record) (*Preview, error) {
	a, err := c.analyze(ctx, ledgerID, records)
	if err != nil {
		return nil, err
	}

	p := &Preview{}

	for _, f := range a.failures {
		p.Rows = append(p.Rows, PreviewRow{Row: f.Row, Verdict: VerdictMalformed, Reason: f.Reason})
		p.Malformed++
	}

	for i, e := range a.entries {
		m := a.matches[i]
		row := PreviewRow{Row: e.Row, Entry: e, Candidates: m.Candidates}

		switch _, dup := m.Duplicate(); {
		case dup:
			row.Verdict = VerdictDuplicate
			p.Duplicates++
		case len(m.Candidates) > 0:
			row.Verdict = VerdictNear
			p.Near++
		default:
			row.Verdict = VerdictUnique
			p.Unique++
		}

		p.Rows = append(p.Rows, row)
	}

	slices.SortStableFunc(p.Rows, func(x, y PreviewRow) int { return cmp.Compare(x.Row, y.Row) })

	return p, nil
}

func dateRange(entries []ledger.Entry) (time.Time, time.Time) {
	from, to := entries[0].Date, entries[0].Date

	for _, e := range entries[1:] {
		if e.Date.Before(from) {
			from = e.Date
		}

		if e.Date.After(to) {
			to = e.Date
		}
	}

	return from, to
}

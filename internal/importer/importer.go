package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

var (
	ErrUnknownFormat = errors.New("unknown import format")
	ErrInvalidPolicy = errors.New("invalid duplicate policy")
)

type Format string

const (
	FormatCSV Format = "csv"
)

// Parser turns a statement file into raw records.
type Parser interface {
	Parse(r io.Reader) ([]ledger.Record, error)
}

// Classifier completes a record's classification before it is validated.
type Classifier interface {
	Classify(ctx context.Context, rec *ledger.Record) error
}

// Policy decides what happens to a record that duplicates an existing transaction.
type Policy int

const (
	PolicySkipDuplicates Policy = iota
	PolicyImportAnyway
	PolicyReplaceExisting
)

func (p Policy) String() string {
	switch p {
	case PolicySkipDuplicates:
		return "skip"
	case PolicyImportAnyway:
		return "import_anyway"
	case PolicyReplaceExisting:
		return "replace"
	}

	return fmt.Sprintf("policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip", "skip_duplicates":
		return PolicySkipDuplicates, nil
	case "import_anyway", "import-anyway", "anyway":
		return PolicyImportAnyway, nil
	case "replace", "replace_existing", "replace-existing":
		return PolicyReplaceExisting, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

type Options struct {
	FileName string
	// ImportTag marks every inserted transaction. Generated when empty.
	ImportTag string
	// ChunkSize is the number of records committed per unit of work.
	ChunkSize int
}

// Failure is a record that was not imported.
type Failure struct {
	Row    int
	Reason string
}

// Suggestion is an imported record that resembles existing transactions
// without matching them closely enough to be treated as a duplicate.
type Suggestion struct {
	Row        int
	Entry      ledger.Entry
	Candidates []duplicate.Candidate
}

type Report struct {
	ImportID  uuid.UUID
	ImportTag string
	Policy    Policy

	Imported         int
	SkippedDuplicate int
	Replaced         int
	FailedValidation int

	Failures     []Failure
	Suggestions  []Suggestion
	Transactions []*ledger.Transaction
}

func (r *Report) summary(ledgerID uuid.UUID, fileName string) *ledger.ImportSummary {
	return &ledger.ImportSummary{
		ID:               r.ImportID,
		LedgerID:         ledgerID,
		Tag:              r.ImportTag,
		FileName:         fileName,
		Policy:           r.Policy.String(),
		Imported:         r.Imported,
		SkippedDuplicate: r.SkippedDuplicate,
		Replaced:         r.Replaced,
		FailedValidation: r.FailedValidation,
	}
}

type Verdict string

const (
	VerdictUnique    Verdict = "unique"
	VerdictDuplicate Verdict = "duplicate"
	VerdictNear      Verdict = "near"
	VerdictMalformed Verdict = "malformed"
)

type PreviewRow struct {
	Row        int
	Verdict    Verdict
	Entry      ledger.Entry
	Reason     string
	Candidates []duplicate.Candidate
}

// Preview is the outcome an import would have, computed without writing.
type Preview struct {
	Rows       []PreviewRow
	Unique     int
	Duplicates int
	Near       int
	Malformed  int
}

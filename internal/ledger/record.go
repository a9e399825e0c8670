package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format of normalized records.
const DateLayout = "2006-01-02"

// Record is one raw incoming line, as read from a statement file or request body.
type Record struct {
	Row             int
	Date            string
	Amount          string
	Description     string
	Category        string
	Member          string
	Source          string
	Vendor          string
	ReferenceNumber string
}

// Entry is a validated record ready to become a transaction.
type Entry struct {
	Row             int
	Date            time.Time
	Amount          decimal.Decimal
	Description     string
	Category        string
	Member          string
	Source          string
	Vendor          string
	ReferenceNumber string
}

// Normalize parses the record's date and amount. Amounts are exact decimals
// with at most AmountScale fractional digits; nothing is rounded. The result
// passes the same checks a Writer applies on insert.
func (r Record) Normalize() (Entry, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: row %d: date %q", ErrMalformedRecord, r.Row, r.Date)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: row %d: amount %q", ErrMalformedRecord, r.Row, r.Amount)
	}

	if amount.Exponent() < -AmountScale && !amount.Equal(amount.Round(AmountScale)) {
		return Entry{}, fmt.Errorf("%w: row %d: amount %q has more than %d decimals", ErrMalformedRecord, r.Row, r.Amount, AmountScale)
	}

	category := strings.TrimSpace(r.Category)
	if category == "" {
		return Entry{}, fmt.Errorf("%w: row %d", ErrMissingCategory, r.Row)
	}

	e := Entry{
		Row:             r.Row,
		Date:            Day(d),
		Amount:          amount.Round(AmountScale),
		Description:     strings.TrimSpace(r.Description),
		Category:        category,
		Member:          strings.TrimSpace(r.Member),
		Source:          strings.TrimSpace(r.Source),
		Vendor:          strings.TrimSpace(r.Vendor),
		ReferenceNumber: strings.TrimSpace(r.ReferenceNumber),
	}

	if err := validateEntry(e.Transaction("")); err != nil {
		return Entry{}, fmt.Errorf("row %d: %w", r.Row, err)
	}

	return e, nil
}

// Transaction builds an unsaved transaction from the entry.
func (e Entry) Transaction(importTag string) *Transaction {
	return &Transaction{
		Date:            e.Date,
		Amount:          e.Amount,
		Description:     e.Description,
		Category:        e.Category,
		Member:          e.Member,
		Source:          e.Source,
		Vendor:          e.Vendor,
		ReferenceNumber: e.ReferenceNumber,
		ImportTag:       importTag,
	}
}

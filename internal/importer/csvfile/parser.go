// Package csvfile reads budget CSV exports into raw ledger records.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	enc "github.com/MrJamesThe3rd/tally/internal/encoding"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

var ErrNoHeader = errors.New("no header with date, description, amount and category columns")

const (
	colDate            = "date"
	colDescription     = "description"
	colAmount          = "amount"
	colCategory        = "category"
	colMember          = "member"
	colSource          = "source"
	colVendor          = "vendor"
	colReferenceNumber = "reference_number"
)

var requiredCols = []string{colDate, colDescription, colAmount, colCategory}

// dateLayouts are tried in order. Month-first wins for ambiguous slash dates.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"01-02-2006",
	"02-01-2006",
}

// Parser reads CSV files whose header names the ledger fields. Rows are not
// validated here: a cell that cannot be understood is passed through as is and
// reported when the record is normalized.
type Parser struct {
	// Comma is the field delimiter. Zero sniffs it from the header line.
	Comma rune
}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]ledger.Record, error) {
	utf8r, _, err := enc.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	br := bufio.NewReader(utf8r)

	comma := p.Comma
	if comma == 0 {
		comma = sniffComma(br)
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		rows  [][]string
		lines []int
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}

	cols, headerIdx, ok := findHeader(rows)
	if !ok {
		return nil, ErrNoHeader
	}

	var records []ledger.Record

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}

		records = append(records, ledger.Record{
			Row:             lines[i],
			Date:            normalizeDate(cols.value(row, colDate)),
			Amount:          normalizeAmount(cols.value(row, colAmount)),
			Description:     cols.value(row, colDescription),
			Category:        cols.value(row, colCategory),
			Member:          cols.value(row, colMember),
			Source:          cols.value(row, colSource),
			Vendor:          cols.value(row, colVendor),
			ReferenceNumber: cols.value(row, colReferenceNumber),
		})
	}

	return records, nil
}

// colIndex maps lower-cased column names to their index in the row.
type colIndex map[string]int

func (c colIndex) value(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

// findHeader scans for the first row naming every required column, so
// preamble lines above the table are ignored.
func findHeader(rows [][]string) (colIndex, int, bool) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			name = strings.ReplaceAll(name, " ", "_")

			if _, seen := cols[name]; name != "" && !seen {
				cols[name] = i
			}
		}

		matched := true

		for _, name := range requiredCols {
			if _, ok := cols[name]; !ok {
				matched = false
				break
			}
		}

		if matched {
			return cols, rowIdx, true
		}
	}

	return nil, 0, false
}

// sniffComma picks the most frequent candidate delimiter in the buffered head of the file.
func sniffComma(br *bufio.Reader) rune {
	head, _ := br.Peek(br.Size())
	text := string(head)

	best, bestCount := ',', 0

	for _, c := range []rune{',', ';', '\t'} {
		if n := strings.Count(text, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}

	return best
}

func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ledger.DateLayout)
		}
	}

	return s
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

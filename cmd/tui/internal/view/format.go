package view

import (
	"context"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const dbTimeout = 5 * time.Second

// FormatAmount renders an amount in the given ISO currency. Unknown currencies
// fall back to a plain two-decimal number.
func FormatAmount(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.StringFixed(ledger.AmountScale)
	}

	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()

	return money.New(minor, cur.Code).Display()
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(ledger.DateLayout)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

package csvfile

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = []string{"US$", "R$", "$", "€", "£"}

// normalizeAmount strips currency symbols and thousands separators and returns
// a plain decimal string. "1,234.56" and "1.234,56" both become "1234.56";
// "(12.50)" becomes "-12.5". Unparseable input is returned trimmed.
func normalizeAmount(s string) string {
	clean := strings.TrimSpace(s)
	for _, sym := range currencySymbols {
		clean = strings.ReplaceAll(clean, sym, "")
	}

	clean = strings.ReplaceAll(clean, " ", "")

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	}

	if europeanDecimal(clean) {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	} else {
		clean = strings.ReplaceAll(clean, ",", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return strings.TrimSpace(s)
	}

	if negative {
		d = d.Neg()
	}

	return d.String()
}

// europeanDecimal reports whether the last separator is a comma followed by
// exactly two digits, as in "1.234,56" or "-10,00".
func europeanDecimal(s string) bool {
	comma := strings.LastIndexByte(s, ',')
	if comma < 0 || strings.LastIndexByte(s, '.') > comma {
		return false
	}

	frac := s[comma+1:]
	if len(frac) != 2 {
		return false
	}

	for _, r := range frac {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

package wire

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseTDDFDate decodes the MMDDCCYY wire encoding (month, day, century,
// two-digit year). It returns nil on anything that is not an 8-character
// string naming a real calendar date. Malformed wire data degrades to a nil
// field, never an error.
func ParseTDDFDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	t, err := time.Parse("01022006", s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseAuthAmount decodes a digits-only cents field. Non-digit characters are
// stripped, the remainder is interpreted as cents and scaled to two decimals.
// An empty field returns nil rather than zero so that "no amount" stays
// distinguishable from "$0.00".
func ParseAuthAmount(s string) *decimal.Decimal {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	cents, err := decimal.NewFromString(digits.String())
	if err != nil {
		return nil
	}
	amt := cents.Div(decimal.NewFromInt(100)).Round(2)
	return &amt
}

// ParseAmount is the general signed amount parser. It tolerates currency
// symbols, thousands separators, a leading/trailing sign, and accounting-style
// parentheses for negatives. Returns nil when no parsable amount remains.
func ParseAmount(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			cleaned.WriteRune(r)
		case r == '-' && cleaned.Len() == 0:
			negative = true
		case r == ',', r == '$', r == ' ':
			// separators and currency symbols are noise on this feed
		default:
			// any other character invalidates the field
			return nil
		}
	}
	if cleaned.Len() == 0 {
		return nil
	}
	amt, err := decimal.NewFromString(cleaned.String())
	if err != nil {
		return nil
	}
	if negative {
		amt = amt.Neg()
	}
	amt = amt.Round(2)
	return &amt
}

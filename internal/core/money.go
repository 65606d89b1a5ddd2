// Package core holds the ledger, metrics and quiz engine of the app.
//
// This file contains the amount parsing used by form input and by the
// document extraction reply.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is wrapped by ParseAmount for anything that is not a plain
// non-negative decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts user input to a non-negative amount rounded to two
// decimal places (half-up).
//
// The dot is the only decimal separator. Commas group digits, either in the
// Indian style (1,50,000) or in threes (150,000); spaces and underscores are
// ignored, as is a leading rupee sign. An empty string parses as zero so
// blank draft rows stay editable.
//
// Examples:
//
//	ParseAmount("1500")     -> 1500
//	ParseAmount("1,50,000") -> 150000
//	ParseAmount("₹12.345")  -> 12.35
//	ParseAmount("")         -> 0
//	ParseAmount("-3")       -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.NewReplacer(" ", "", "_", "").Replace(s)
	s = strings.TrimPrefix(s, "₹")
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrNegativeAmount
	}
	s = strings.TrimPrefix(s, "+")
	if strings.Count(s, ".") > 1 || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		whole, frac, _ := strings.Cut(s, ".")
		if strings.Contains(frac, ",") || !validGrouping(whole) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// validGrouping reports whether the comma groups of an integer part follow
// lakh/crore (x,xx,xxx) or thousands (x,xxx,xxx) grouping.
func validGrouping(whole string) bool {
	groups := strings.Split(whole, ",")
	first, last := groups[0], groups[len(groups)-1]
	if len(first) < 1 || len(first) > 3 || len(last) != 3 {
		return false
	}
	middle := groups[1 : len(groups)-1]
	indian, thousands := true, true
	for _, g := range middle {
		indian = indian && len(g) == 2
		thousands = thousands && len(g) == 3
	}
	if len(middle) > 0 && len(first) > 2 && indian {
		indian = false
	}
	return indian || thousands
}

// MustAmount parses a literal amount and panics on error. Used for fixtures.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

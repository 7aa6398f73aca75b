// Package core holds the domain types shared across the bot: events, ledger
// entries and money handling.
//
// Money is stored as integer satang (1/100 baht) to keep ledger sums exact;
// floats only appear at the display and spreadsheet boundary.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

type Money struct {
	Satang int64
}

// FromBahtUnits returns a Money worth n whole baht. Text commands accept
// integer amounts only, so this is their entire conversion.
func FromBahtUnits(n int64) Money {
	return Money{Satang: n * 100}
}

// Baht returns the baht value as float64 for display and spreadsheet cells.
// Use Satang for arithmetic.
func (m Money) Baht() float64 {
	return float64(m.Satang) / 100.0
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Satang: m.Satang + o.Satang}
}

// String formats the amount the way receipts print it: comma-grouped whole
// baht, with a two-digit fraction only when there is one.
//
//	Money{Satang: 32000}.String()  -> "320"
//	Money{Satang: 125000}.String() -> "1,250"
//	Money{Satang: 125050}.String() -> "1,250.50"
func (m Money) String() string {
	whole := m.Satang / 100
	frac := m.Satang % 100
	neg := false
	if whole < 0 || frac < 0 {
		neg = true
		if whole < 0 {
			whole = -whole
		}
		if frac < 0 {
			frac = -frac
		}
	}
	s := groupThousands(strconv.FormatInt(whole, 10))
	if frac != 0 {
		s += "." + twoDigits(frac)
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ParseDecimalToSatang converts a currency-formatted token to satang.
//
// Thousands separators (commas) are stripped, an optional fractional part of
// up to two digits is honored, and anything else is rejected. Unlike receipt
// totals the result may be zero; callers decide whether zero is meaningful.
func ParseDecimalToSatang(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", "")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		return 0, ErrInvalidAmount
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracSatang int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracSatang = d1 * 10
		if len(fracPart) > 1 {
			fracSatang += int64(fracPart[1] - '0')
		}
	}
	return iv*100 + fracSatang, nil
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

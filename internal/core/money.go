// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering cents as Brazilian real values.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. When both
// appear, the comma must be the decimal separator and the dots must group the
// integer part in threes (1.234,56). Zero is accepted; negative values and
// malformed input return ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")    -> 1234, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("1.234,56") -> 123456, nil
//	ParseDecimalToCents("12.345")   -> 1235, nil (rounds half up)
//	ParseDecimalToCents("12.344")   -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		var ok bool
		if s, ok = normalizeCommaDecimal(s); !ok {
			return 0, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// normalizeCommaDecimal rewrites "1.234,56" as "1234.56". It fails on a
// second comma, a dot after the comma, or a thousands group that is not
// exactly three digits long.
func normalizeCommaDecimal(s string) (string, bool) {
	intPart, frac, _ := strings.Cut(s, ",")
	if strings.ContainsAny(frac, ",.") {
		return "", false
	}
	if strings.Contains(intPart, ".") {
		groups := strings.Split(intPart, ".")
		if n := len(groups[0]); n < 1 || n > 3 {
			return "", false
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
		intPart = strings.Join(groups, "")
	}
	return intPart + "." + frac, true
}

// ParseMoney is ParseDecimalToCents wrapped into a Money value.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

// Percent returns p percent of m, rounded half away from zero to whole cents.
func (m Money) Percent(p int64) Money {
	v := decimal.NewFromInt(m.Cents).Mul(decimal.NewFromInt(p)).Shift(-2).Round(0)
	return Money{Cents: v.IntPart()}
}

// Reais returns the value as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount the way reports show it, e.g. "R$ 1.234,56".
func (m Money) String() string {
	return FormatBRL(m)
}

// FormatBRL renders cents as pt-BR currency with thousands grouping.
// Negative amounts keep the sign after the symbol: "R$ -1.234,56".
func FormatBRL(m Money) string {
	// Magnitude as uint64 so math.MinInt64 does not overflow on negation.
	cents := uint64(m.Cents)
	sign := ""
	if m.Cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("R$ %s%s,%02d", sign, brPrinter.Sprintf("%d", cents/100), cents%100)
}

// FormatPercent renders a percentage with two decimals and a comma separator.
func FormatPercent(p float64) string {
	return strings.Replace(fmt.Sprintf("%.2f%%", p), ".", ",", 1)
}

// FormatDuration renders a store visit length as "1h 25min" or "40min".
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	if h > 0 {
		return fmt.Sprintf("%dh %dmin", h, m)
	}
	return fmt.Sprintf("%dmin", m)
}

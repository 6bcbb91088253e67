// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings,
// including short arithmetic expressions typed into the quick-add field.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every displayed amount.
const CurrencySymbol = "RM"

// MaxAmountDigits bounds the integer part of an amount. Stored amounts are
// NUMERIC(14, 2) in Postgres, which leaves twelve digits before the point.
const MaxAmountDigits = 12

var maxAmount = decimal.New(1, MaxAmountDigits)

// ErrAmountOutOfRange wraps ErrInvalidAmount for values past MaxAmountDigits.
var ErrAmountOutOfRange = fmt.Errorf("%w: more than %d integer digits", ErrInvalidAmount, MaxAmountDigits)

// ParseAmount converts user or model text into an amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and, when
// the text is not a plain number, evaluates it as an arithmetic expression.
// Exponent notation is rejected and the result must fit MaxAmountDigits.
// The sign is preserved; callers decide whether negatives are acceptable.
//
// Examples:
//
//	ParseAmount("12.34")      -> 12.34
//	ParseAmount("12,345")     -> 12.35 (half away from zero)
//	ParseAmount("12.5*2+3")   -> 28.00
//	ParseAmount("(10-4)/4")   -> 1.50
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(s) > maxExpressionLen || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		if d, err = EvalExpression(s); err != nil {
			return decimal.Zero, err
		}
	}
	d = d.Round(2)
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, ErrAmountOutOfRange
	}
	return d, nil
}

// FormatAmount renders d with two decimals and the currency symbol.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + " " + d.Abs().StringFixed(2)
	}
	return CurrencySymbol + " " + d.StringFixed(2)
}

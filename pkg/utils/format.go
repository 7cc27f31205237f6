// Package utils provides ticker handling and Indian number formatting.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatIndian formats a number with Indian digit grouping (12,34,567.89):
// the last 3 integer digits, then groups of 2. Two decimals are kept.
func FormatIndian(amount float64) string {
	s := fmt.Sprintf("%.2f", math.Abs(amount))
	intPart, decPart, _ := strings.Cut(s, ".")

	formatted := groupIndian(intPart) + "." + decPart
	if amount < 0 && s != "0.00" {
		return "-" + formatted
	}
	return formatted
}

// FormatINR formats a rupee amount, e.g. 1234.5 → "₹1,234.50".
func FormatINR(amount float64) string {
	if amount < 0 {
		return "-₹" + FormatIndian(-amount)
	}
	return "₹" + FormatIndian(amount)
}

// FormatCrores formats a figure already expressed in crores, the unit of
// Screener.in statements, e.g. 123456.7 → "₹1,23,456.70 Cr".
func FormatCrores(crores float64) string {
	return FormatINR(crores) + " Cr"
}

// FormatPct formats a fraction as a percentage, e.g. 0.1234 → "12.34%".
func FormatPct(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

// groupIndian inserts commas into a string of digits (last 3, then 2s).
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	result := digits[len(digits)-3:]
	remaining := digits[:len(digits)-3]

	for len(remaining) > 2 {
		result = remaining[len(remaining)-2:] + "," + result
		remaining = remaining[:len(remaining)-2]
	}
	return remaining + "," + result
}

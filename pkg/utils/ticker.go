package utils

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidTicker is returned for symbols that cannot name a listed company.
var ErrInvalidTicker = errors.New("invalid ticker")

// Common NSE ticker aliases.
var tickerAliases = map[string]string{
	"RIL":           "RELIANCE",
	"INFOSYS":       "INFY",
	"HDFC BANK":     "HDFCBANK",
	"ICICI BANK":    "ICICIBANK",
	"SBI":           "SBIN",
	"AIRTEL":        "BHARTIARTL",
	"BAJAJ FIN":     "BAJFINANCE",
	"L&T":           "LT",
	"TATA MOTORS":   "TATAMOTORS",
	"TATA STEEL":    "TATASTEEL",
	"HCL TECH":      "HCLTECH",
	"KOTAK":         "KOTAKBANK",
	"AXIS BANK":     "AXISBANK",
	"SUN PHARMA":    "SUNPHARMA",
	"ASIAN PAINTS":  "ASIANPAINT",
	"NESTLE":        "NESTLEIND",
	"ULTRATECH":     "ULTRACEMCO",
	"TECH MAHINDRA": "TECHM",
	"MAHINDRA":      "M&M",
	"HUL":           "HINDUNILVR",
	"COAL INDIA":    "COALINDIA",
}

// Screener.in accepts NSE symbols and numeric BSE codes.
var validTicker = regexp.MustCompile(`^[A-Z0-9][A-Z0-9&._-]{0,19}$`)

// NormalizeTicker normalizes a user-input ticker to the canonical NSE form:
// trimmed, uppercased, without a leading $ or a Yahoo-style .NS/.BO suffix,
// with well-known aliases resolved.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")
	ticker = strings.TrimSuffix(ticker, ".NS")
	ticker = strings.TrimSuffix(ticker, ".BO")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ValidateTicker normalizes ticker and rejects anything that could not be a
// listed symbol.
func ValidateTicker(ticker string) (string, error) {
	t := NormalizeTicker(ticker)
	if !validTicker.MatchString(t) {
		return "", ErrInvalidTicker
	}
	return t, nil
}

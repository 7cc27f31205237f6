// Package statement turns the financial tables on a Screener.in company page
// into per-line-item time series.
package statement

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Section identifiers of the statement tables on a company page.
const (
	ProfitLoss   = "profit-loss"
	BalanceSheet = "balance-sheet"
	CashFlow     = "cash-flow"
	Quarters     = "quarters"
)

// TTM is the trailing-twelve-months period label.
const TTM = "TTM"

// Series maps period labels to values, keeping the source column order.
// Periods and Values always have the same length.
type Series struct {
	Periods []string
	Values  []float64
}

// NewSeries zips periods with values, truncating the longer of the two.
// A repeated period keeps its first position and takes its last value.
func NewSeries(periods []string, values []float64) Series {
	n := min(len(periods), len(values))
	s := Series{
		Periods: make([]string, 0, n),
		Values:  make([]float64, 0, n),
	}
	index := make(map[string]int, n)
	for i := range n {
		if j, ok := index[periods[i]]; ok {
			s.Values[j] = values[i]
			continue
		}
		index[periods[i]] = len(s.Periods)
		s.Periods = append(s.Periods, periods[i])
		s.Values = append(s.Values, values[i])
	}
	return s
}

// Len returns the number of periods in the series.
func (s Series) Len() int { return len(s.Periods) }

// Get returns the value for a period label.
func (s Series) Get(period string) (float64, bool) {
	for i, p := range s.Periods {
		if p == period {
			return s.Values[i], true
		}
	}
	return 0, false
}

// At returns the value at position i counted from the end: At(0) is the
// last column, At(1) the one before it.
func (s Series) At(fromEnd int) float64 {
	return s.Values[len(s.Values)-1-fromEnd]
}

// MarshalJSON encodes the series as a JSON object with keys in column order.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s.Periods {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.Values[i])
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", p, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (s *Series) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("series: expected object, got %v", tok)
	}

	s.Periods = s.Periods[:0]
	s.Values = s.Values[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("series: expected string key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("series: period %q: %w", key, err)
		}
		s.Periods = append(s.Periods, key)
		s.Values = append(s.Values, v)
	}
	_, err = dec.Token()
	return err
}

// Table maps a line-item label, exactly as shown on the page (including
// markers such as the trailing " +"), to its series.
type Table map[string]Series

// Get returns the series for label, or an empty series when absent.
func (t Table) Get(label string) Series {
	return t[label]
}

// Package valuation derives DCF assumptions from extracted statements and
// runs a free-cash-flow-to-firm projection to a fair value per share.
package valuation

import (
	"math"

	"github.com/seenimoa/fairvalue/internal/statement"
)

// Line-item labels as they appear on a Screener.in company page.
const (
	LabelSales            = "Sales +"
	LabelOperatingProfit  = "Operating Profit"
	LabelDepreciation     = "Depreciation"
	LabelProfitBeforeTax  = "Profit before tax"
	LabelNetProfit        = "Net Profit +"
	LabelFixedAssets      = "Fixed Assets +"
	LabelOtherAssets      = "Other Assets +"
	LabelOtherLiabilities = "Other Liabilities +"
	LabelBorrowings       = "Borrowings +"
	LabelInvestments      = "Investments"
)

// FallbackTaxRate applies when profit before tax is zero or negative.
const FallbackTaxRate = 0.25

// Inputs are the scalar assumptions of the FCFF model. Ratios are fractions
// rounded to 4 decimals; Revenue and NetDebt are in the statement's units.
type Inputs struct {
	Revenue    float64 `json:"revenue"`
	EBITMargin float64 `json:"ebit_margin"`
	TaxRate    float64 `json:"tax_rate"`
	CapexPct   float64 `json:"capex_pct"`
	NWCPct     float64 `json:"nwc_pct"`
	NetDebt    float64 `json:"net_debt"`
}

// LatestValue returns the most recent figure of a series: the TTM value when
// the series has one, otherwise the last column. An empty series yields 0.
func LatestValue(s statement.Series) float64 {
	if s.Len() == 0 {
		return 0
	}
	if v, ok := s.Get(statement.TTM); ok {
		return v
	}
	return s.At(0)
}

// DeriveInputs computes model inputs from the profit & loss, balance sheet and
// cash flow tables. Missing line items read as zero. The cash flow table is
// accepted for completeness; none of the current ratios draw on it.
func DeriveInputs(pl, bs, _ statement.Table) Inputs {
	revenue := LatestValue(pl.Get(LabelSales))
	ebit := LatestValue(pl.Get(LabelOperatingProfit))
	depreciation := LatestValue(pl.Get(LabelDepreciation))

	pbt := LatestValue(pl.Get(LabelProfitBeforeTax))
	pat := LatestValue(pl.Get(LabelNetProfit))
	taxRate := FallbackTaxRate
	if pbt > 0 {
		taxRate = (pbt - pat) / pbt
	}

	// Net capex: change in net fixed assets plus depreciation added back.
	capex := depreciation
	if fa := bs.Get(LabelFixedAssets); fa.Len() >= 2 {
		capex = fa.At(0) - fa.At(1) + depreciation
	}

	var deltaNWC float64
	oa, ol := bs.Get(LabelOtherAssets), bs.Get(LabelOtherLiabilities)
	haveNWC := oa.Len() >= 2 && ol.Len() >= 2
	if haveNWC {
		deltaNWC = (oa.At(0) - oa.At(1)) - (ol.At(0) - ol.At(1))
	}

	netDebt := LatestValue(bs.Get(LabelBorrowings)) - LatestValue(bs.Get(LabelInvestments))

	in := Inputs{
		Revenue: revenue,
		TaxRate: Round(taxRate, 4),
		NetDebt: netDebt,
	}
	if revenue != 0 {
		in.EBITMargin = Round(ebit/revenue, 4)
		in.CapexPct = Round(capex/revenue, 4)
		if haveNWC {
			in.NWCPct = Round(deltaNWC/revenue, 4)
		}
	}
	return in
}

// Round rounds x to the given number of decimal places. Halves of the scaled
// value round away from zero, so Round(2.5, 0) is 3 and Round(0.125, 2) is
// 0.13; there is no round-half-to-even.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

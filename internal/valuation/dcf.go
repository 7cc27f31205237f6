package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidAssumptions is wrapped by every ValidationError.
var ErrInvalidAssumptions = errors.New("invalid valuation assumptions")

// ValidationError lists the preconditions an Assumptions value failed.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidAssumptions, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidAssumptions }

// Assumptions are everything a projection needs.
type Assumptions struct {
	Inputs
	GrowthPath     []float64 `json:"growth"`          // revenue growth per forecast year
	WACC           float64   `json:"wacc"`            // discount rate
	TerminalGrowth float64   `json:"terminal_growth"` // perpetual growth after the last forecast year
	Shares         float64   `json:"shares"`          // shares outstanding
}

// Validate checks the preconditions under which the model is well defined.
func (a Assumptions) Validate() error {
	var problems []string
	if len(a.GrowthPath) == 0 {
		problems = append(problems, "growth path must have at least one year")
	}
	if a.WACC <= a.TerminalGrowth {
		problems = append(problems, fmt.Sprintf("wacc (%g) must exceed terminal growth (%g)", a.WACC, a.TerminalGrowth))
	}
	if a.WACC <= -1 {
		problems = append(problems, "wacc must be greater than -1")
	}
	if a.Shares <= 0 {
		problems = append(problems, fmt.Sprintf("shares must be positive, got %g", a.Shares))
	}
	for _, v := range []float64{a.Revenue, a.EBITMargin, a.TaxRate, a.CapexPct, a.NWCPct, a.NetDebt, a.WACC, a.TerminalGrowth, a.Shares} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, "inputs must be finite numbers")
			break
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Result is the headline output of a projection, rounded to 2 decimals.
type Result struct {
	EnterpriseValue   float64 `json:"enterprise_value"`
	EquityValue       float64 `json:"equity_value"`
	FairValuePerShare float64 `json:"fair_value_per_share"`
}

// Year is one explicit forecast period of a projection.
type Year struct {
	Year           int     `json:"year"`
	Growth         float64 `json:"growth"`
	Revenue        float64 `json:"revenue"`
	EBIT           float64 `json:"ebit"`
	NOPAT          float64 `json:"nopat"`
	Capex          float64 `json:"capex"`
	NWC            float64 `json:"nwc"`
	FCFF           float64 `json:"fcff"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   float64 `json:"present_value"`
}

// Projection is a full, unrounded projection schedule plus the rounded Result.
type Projection struct {
	Result
	Years                []Year  `json:"years"`
	TerminalValue        float64 `json:"terminal_value"`
	TerminalPresentValue float64 `json:"terminal_present_value"`
}

// Project runs the FCFF projection and returns the rounded headline values.
func Project(a Assumptions) (Result, error) {
	p, err := ProjectDetailed(a)
	if err != nil {
		return Result{}, err
	}
	return p.Result, nil
}

// ProjectDetailed grows revenue along the growth path, converts each year's
// revenue to free cash flow to firm, adds a Gordon-growth terminal value on the
// final year's cash flow and discounts everything at the WACC.
func ProjectDetailed(a Assumptions) (Projection, error) {
	if err := a.Validate(); err != nil {
		return Projection{}, err
	}

	p := Projection{Years: make([]Year, 0, len(a.GrowthPath))}
	revenue := a.Revenue
	var ev float64
	for i, g := range a.GrowthPath {
		revenue *= 1 + g
		ebit := revenue * a.EBITMargin
		nopat := ebit * (1 - a.TaxRate)
		capex := revenue * a.CapexPct
		nwc := revenue * a.NWCPct
		fcff := nopat - capex - nwc

		df := math.Pow(1+a.WACC, float64(i+1))
		pv := fcff / df
		ev += pv

		p.Years = append(p.Years, Year{
			Year:           i + 1,
			Growth:         g,
			Revenue:        revenue,
			EBIT:           ebit,
			NOPAT:          nopat,
			Capex:          capex,
			NWC:            nwc,
			FCFF:           fcff,
			DiscountFactor: df,
			PresentValue:   pv,
		})
	}

	last := p.Years[len(p.Years)-1]
	p.TerminalValue = last.FCFF * (1 + a.TerminalGrowth) / (a.WACC - a.TerminalGrowth)
	p.TerminalPresentValue = p.TerminalValue / last.DiscountFactor
	ev += p.TerminalPresentValue

	equity := ev - a.NetDebt
	p.Result = Result{
		EnterpriseValue:   Round(ev, 2),
		EquityValue:       Round(equity, 2),
		FairValuePerShare: Round(equity/a.Shares, 2),
	}
	return p, nil
}

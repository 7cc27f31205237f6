package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/seenimoa/fairvalue/internal/screener"
	"github.com/seenimoa/fairvalue/internal/statement"
	"github.com/seenimoa/fairvalue/internal/valuation"
	"github.com/seenimoa/fairvalue/pkg/utils"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var sectionTitles = map[string]string{
	statement.ProfitLoss:   "Profit & Loss",
	statement.BalanceSheet: "Balance Sheet",
	statement.CashFlow:     "Cash Flows",
}

// printFinancials prints each statement as a table, rows in page order.
func printFinancials(w io.Writer, fin screener.Financials, src screener.Source) {
	fmt.Fprintf(w, "%s (%s), figures in ₹ Cr\n", fin.Ticker, src)

	for _, rep := range fin.Reports {
		fmt.Fprintf(w, "\n%s\n", sectionTitles[rep.Section])
		if !rep.Found {
			fmt.Fprintln(w, "  (not found)")
			continue
		}

		fmt.Fprintf(w, "  %-28s", "")
		for _, p := range rep.Periods {
			fmt.Fprintf(w, " %12s", p)
		}
		fmt.Fprintln(w)

		table := tableOf(fin, rep.Section)
		seen := make(map[string]bool, len(rep.Rows))
		for _, row := range rep.Rows {
			if seen[row.Label] {
				continue
			}
			seen[row.Label] = true

			fmt.Fprintf(w, "  %-28s", truncate(row.Label, 28))
			for _, v := range table.Get(row.Label).Values {
				fmt.Fprintf(w, " %12s", utils.FormatIndian(v))
			}
			fmt.Fprintln(w)
		}
	}
}

func tableOf(fin screener.Financials, section string) statement.Table {
	switch section {
	case statement.ProfitLoss:
		return fin.ProfitLoss
	case statement.BalanceSheet:
		return fin.BalanceSheet
	default:
		return fin.CashFlow
	}
}

func printInputs(w io.Writer, in valuation.Inputs) {
	fmt.Fprintln(w, "  DCF inputs:")
	fmt.Fprintf(w, "    %-14s %s\n", "Revenue:", utils.FormatCrores(in.Revenue))
	fmt.Fprintf(w, "    %-14s %s\n", "EBIT margin:", utils.FormatPct(in.EBITMargin))
	fmt.Fprintf(w, "    %-14s %s\n", "Tax rate:", utils.FormatPct(in.TaxRate))
	fmt.Fprintf(w, "    %-14s %s\n", "Capex:", utils.FormatPct(in.CapexPct))
	fmt.Fprintf(w, "    %-14s %s\n", "Working cap.:", utils.FormatPct(in.NWCPct))
	fmt.Fprintf(w, "    %-14s %s\n", "Net debt:", utils.FormatCrores(in.NetDebt))
}

// printDiagnostics lists everything that did not extract cleanly.
func printDiagnostics(w io.Writer, reports []statement.Report) {
	fmt.Fprintln(w, "  Extraction:")
	for _, rep := range reports {
		name := sectionTitles[rep.Section]
		switch {
		case !rep.Found:
			fmt.Fprintf(w, "    ❌ %s: not found, treated as empty\n", name)
			continue
		case rep.Clean():
			fmt.Fprintf(w, "    ✅ %s: %d rows, clean\n", name, len(rep.Rows))
			continue
		}

		fmt.Fprintf(w, "    ⚠️  %s: %d rows\n", name, len(rep.Rows))
		for _, row := range rep.Rows {
			var notes []string
			if row.Status != statement.RowClean {
				notes = append(notes, fmt.Sprintf("%s (%d values, %d periods)", row.Status, row.Cells, len(rep.Periods)))
			}
			if row.ZeroFilled > 0 {
				notes = append(notes, fmt.Sprintf("%d non-numeric cell(s) read as 0", row.ZeroFilled))
			}
			if len(notes) > 0 {
				fmt.Fprintf(w, "       %s: %s\n", row.Label, strings.Join(notes, ", "))
			}
		}
		if rep.Skipped > 0 {
			fmt.Fprintf(w, "       %d row(s) without values skipped\n", rep.Skipped)
		}
		for _, label := range rep.Overwritten {
			fmt.Fprintf(w, "       %s: repeated, last row kept\n", label)
		}
	}
}

func printSchedule(w io.Writer, p valuation.Projection) {
	fmt.Fprintf(w, "  %4s %8s %14s %14s %14s %14s\n", "Year", "Growth", "Revenue", "EBIT", "FCFF", "PV")
	for _, y := range p.Years {
		fmt.Fprintf(w, "  %4d %8s %14s %14s %14s %14s\n",
			y.Year, utils.FormatPct(y.Growth),
			utils.FormatIndian(y.Revenue), utils.FormatIndian(y.EBIT),
			utils.FormatIndian(y.FCFF), utils.FormatIndian(y.PresentValue))
	}
	fmt.Fprintf(w, "  Terminal value: %s (PV %s)\n",
		utils.FormatIndian(p.TerminalValue), utils.FormatIndian(p.TerminalPresentValue))
}

func printResult(w io.Writer, r valuation.Result) {
	fmt.Fprintf(w, "  %-22s %s\n", "Enterprise value:", utils.FormatIndian(r.EnterpriseValue))
	fmt.Fprintf(w, "  %-22s %s\n", "Equity value:", utils.FormatIndian(r.EquityValue))
	fmt.Fprintf(w, "  %-22s %s\n", "Fair value per share:", utils.FormatINR(r.FairValuePerShare))
}

func printValues(w io.Writer, rows []valueRow) {
	fmt.Fprintf(w, "%-12s %-6s %18s %18s %14s\n", "Ticker", "Source", "EV (₹ Cr)", "Equity (₹ Cr)", "Per share")
	for _, r := range rows {
		if r.Err != "" {
			fmt.Fprintf(w, "%-12s %-6s ❌ %s\n", r.Ticker, r.Source, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-12s %-6s %18s %18s %14s\n", r.Ticker, r.Source,
			utils.FormatIndian(r.Result.EnterpriseValue),
			utils.FormatIndian(r.Result.EquityValue),
			utils.FormatINR(r.Result.FairValuePerShare))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

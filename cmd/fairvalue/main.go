// Command fairvalue values listed Indian companies from their Screener.in statements.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/fairvalue/api"
	"github.com/seenimoa/fairvalue/internal/cache"
	"github.com/seenimoa/fairvalue/internal/config"
	"github.com/seenimoa/fairvalue/internal/screener"
	"github.com/seenimoa/fairvalue/internal/valuation"
	"github.com/seenimoa/fairvalue/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fairvalue",
	Short: "DCF fair value from Screener.in financials",
	Long: `fairvalue reads the annual statements of a listed Indian company from its
Screener.in page, derives free-cash-flow assumptions from them and runs an
FCFF discounted cash flow model to a fair value per share.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		slog.SetDefault(cfg.Logging.NewLogger(os.Stderr))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(financialsCmd)
	rootCmd.AddCommand(inputsCmd)
	rootCmd.AddCommand(dcfCmd)
	rootCmd.AddCommand(valueCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fairvalue %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Financials Command ---

var financialsCmd = &cobra.Command{
	Use:   "financials [ticker]",
	Short: "Print the profit & loss, balance sheet and cash flow tables",
	Long: `Print the three annual statements of a company.

Examples:
  fairvalue financials TCS
  fairvalue financials INFY --json
  fairvalue financials ITC --file itc.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fin, src, err := loadFinancials(cmd, args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, api.FinancialsResponse{
				Ticker:       fin.Ticker,
				Source:       src,
				ProfitLoss:   fin.ProfitLoss,
				BalanceSheet: fin.BalanceSheet,
				CashFlow:     fin.CashFlow,
				Reports:      fin.Reports,
				FetchedAt:    fin.FetchedAt,
			})
		}
		printFinancials(os.Stdout, fin, src)
		return nil
	},
}

// --- Inputs Command ---

var inputsCmd = &cobra.Command{
	Use:   "inputs [ticker]",
	Short: "Derive DCF inputs from a company's statements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fin, src, err := loadFinancials(cmd, args[0])
		if err != nil {
			return err
		}
		in := valuation.DeriveInputs(fin.ProfitLoss, fin.BalanceSheet, fin.CashFlow)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, api.InputsResponse{
				Ticker: fin.Ticker, Source: src, Inputs: in, Reports: fin.Reports,
			})
		}
		fmt.Printf("%s (%s)\n\n", fin.Ticker, src)
		printInputs(os.Stdout, in)
		fmt.Println()
		printDiagnostics(os.Stdout, fin.Reports)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{financialsCmd, inputsCmd} {
		c.Flags().String("file", "", "read a saved company page instead of fetching it")
		c.Flags().Bool("json", false, "print JSON")
	}
}

// --- DCF Command ---

var dcfCmd = &cobra.Command{
	Use:   "dcf",
	Short: "Run the FCFF projection from explicit inputs",
	Long: `Run the FCFF projection from explicit inputs.

Assumptions that are not given use the configured valuation defaults.

Examples:
  fairvalue dcf --revenue 1000 --ebit-margin 0.2 --capex-pct 0.05 --shares 10
  fairvalue dcf --revenue 1000 --ebit-margin 0.2 --shares 10 --growth 0.15,0.1 --detail`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		a := defaultAssumptions(cmd)
		a.Revenue, _ = f.GetFloat64("revenue")
		a.EBITMargin, _ = f.GetFloat64("ebit-margin")
		a.TaxRate, _ = f.GetFloat64("tax-rate")
		a.CapexPct, _ = f.GetFloat64("capex-pct")
		a.NWCPct, _ = f.GetFloat64("nwc-pct")
		a.NetDebt, _ = f.GetFloat64("net-debt")
		a.Shares, _ = f.GetFloat64("shares")

		proj, err := valuation.ProjectDetailed(a)
		if err != nil {
			return err
		}

		detail, _ := f.GetBool("detail")
		if asJSON, _ := f.GetBool("json"); asJSON {
			if detail {
				return printJSON(os.Stdout, proj)
			}
			return printJSON(os.Stdout, proj.Result)
		}
		if detail {
			printSchedule(os.Stdout, proj)
			fmt.Println()
		}
		printResult(os.Stdout, proj.Result)
		return nil
	},
}

func init() {
	f := dcfCmd.Flags()
	f.Float64("revenue", 0, "latest revenue")
	f.Float64("ebit-margin", 0, "EBIT as a fraction of revenue")
	f.Float64("tax-rate", valuation.FallbackTaxRate, "effective tax rate")
	f.Float64("capex-pct", 0, "net capex as a fraction of revenue")
	f.Float64("nwc-pct", 0, "change in working capital as a fraction of revenue")
	f.Float64("net-debt", 0, "borrowings less investments")
	f.Bool("detail", false, "print the year-by-year schedule")
	f.Float64("shares", 0, "shares outstanding")
	f.Bool("json", false, "print JSON")
	addAssumptionFlags(dcfCmd)
	dcfCmd.MarkFlagRequired("revenue") //nolint:errcheck
	dcfCmd.MarkFlagRequired("shares")  //nolint:errcheck
}

// --- Value Command ---

var valueCmd = &cobra.Command{
	Use:   "value [ticker...]",
	Short: "Fetch, derive and value one or more companies",
	Long: `Fetch each company's statements, derive its inputs and run the projection.
Tickers are fetched concurrently.

--shares takes one count per ticker, in the order the tickers are given.

Examples:
  fairvalue value TCS --shares 361.8
  fairvalue value TCS INFY --shares 361.8,414.9 --wacc 0.11`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shares, _ := cmd.Flags().GetFloat64Slice("shares")
		if len(shares) != len(args) {
			return fmt.Errorf("--shares needs %d value(s), got %d", len(args), len(shares))
		}

		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close()

		results, err := b.svc.FinancialsMany(cmd.Context(), args)
		if err != nil {
			return err
		}

		base := defaultAssumptions(cmd)
		rows := make([]valueRow, len(results))
		for i, r := range results {
			rows[i] = valueRow{Ticker: r.Ticker, Source: r.Source}
			if r.Err != nil {
				rows[i].Err = r.Err.Error()
				continue
			}
			a := base
			a.Inputs = valuation.DeriveInputs(r.Financials.ProfitLoss, r.Financials.BalanceSheet, r.Financials.CashFlow)
			a.Shares = shares[i]
			res, err := valuation.Project(a)
			if err != nil {
				rows[i].Err = err.Error()
				continue
			}
			rows[i].Ticker = r.Financials.Ticker
			rows[i].Inputs = &a.Inputs
			rows[i].Result = &res
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, rows)
		}
		printValues(os.Stdout, rows)
		return nil
	},
}

func init() {
	valueCmd.Flags().Float64Slice("shares", nil, "shares outstanding, one per ticker")
	valueCmd.Flags().Bool("json", false, "print JSON")
	addAssumptionFlags(valueCmd)
	valueCmd.MarkFlagRequired("shares") //nolint:errcheck
}

// valueRow is one line of `fairvalue value` output.
type valueRow struct {
	Ticker string            `json:"ticker"`
	Source screener.Source   `json:"source,omitempty"`
	Inputs *valuation.Inputs `json:"inputs,omitempty"`
	Result *valuation.Result `json:"result,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// --- Cache Command ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached financials",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [ticker...]",
	Short: "Drop cached financials so the next request fetches fresh pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close()

		for _, t := range args {
			if err := b.svc.Invalidate(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Printf("invalidated %s\n", utils.NormalizeTicker(t))
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove cache entries older than the configured TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close()

		n, err := b.sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d stale entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			cfg.API.ServeUI = false
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.close()
		go b.runSweeper(ctx, cfg.Cache.TTL())

		slog.Info("starting fairvalue API server",
			"version", version,
			"addr", cfg.API.Addr(),
			"cache", cfg.Cache.Backend,
			"ttl", cfg.Cache.TTL())
		return api.NewServer(cfg, b.svc, version).ListenAndServe(cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
	serveCmd.Flags().Bool("no-ui", false, "do not serve the web UI")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  fairvalue: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Screener:      %s (consolidated: %t, %d req/s)\n",
			cfg.Screener.BaseURL, cfg.Screener.Consolidated, cfg.Screener.RatePerSec)
		fmt.Printf("    Cache:         %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL())
		fmt.Printf("    Valuation:     wacc %s, terminal growth %s, %d-year path\n",
			utils.FormatPct(cfg.Valuation.WACC), utils.FormatPct(cfg.Valuation.TerminalGrowth), len(cfg.Valuation.GrowthPath))
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Printf("    Logging:       %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if cfg.Cache.Backend == "postgres" {
			fmt.Println()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			status := "✅ reachable"
			if pool, err := cache.Connect(ctx, cfg.Cache.DatabaseURL); err != nil {
				status = "❌ " + err.Error()
			} else {
				pool.Close()
			}
			fmt.Printf("  Database:        %s\n", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- helpers ---

// addAssumptionFlags registers the projection assumptions shared by dcf and value.
func addAssumptionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Slice("growth", nil, "revenue growth per forecast year, e.g. 0.12,0.1,0.08 (default: valuation.growth_path)")
	f.Float64("wacc", 0, "discount rate (default: valuation.wacc)")
	f.Float64("terminal-growth", 0, "perpetual growth after the forecast (default: valuation.terminal_growth)")
}

// defaultAssumptions reads the assumption flags, falling back to config for
// flags that were not given.
func defaultAssumptions(cmd *cobra.Command) valuation.Assumptions {
	f := cmd.Flags()
	a := valuation.Assumptions{
		GrowthPath:     cfg.Valuation.GrowthPath,
		WACC:           cfg.Valuation.WACC,
		TerminalGrowth: cfg.Valuation.TerminalGrowth,
	}
	if f.Changed("growth") {
		a.GrowthPath, _ = f.GetFloat64Slice("growth")
	}
	if f.Changed("wacc") {
		a.WACC, _ = f.GetFloat64("wacc")
	}
	if f.Changed("terminal-growth") {
		a.TerminalGrowth, _ = f.GetFloat64("terminal-growth")
	}
	return a
}

// sourceFile marks financials read from a saved page.
const sourceFile screener.Source = "file"

// loadFinancials reads financials from --file when given, otherwise through
// the configured cache and Screener.in client.
func loadFinancials(cmd *cobra.Command, ticker string) (screener.Financials, screener.Source, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return screener.Financials{}, "", err
		}
		defer f.Close()

		doc, err := screener.ParseDocument(f)
		if err != nil {
			return screener.Financials{}, "", fmt.Errorf("parse %s: %w", path, err)
		}
		fin := screener.ExtractFinancials(doc)
		fin.Ticker = strings.ToUpper(strings.TrimSpace(ticker))
		return fin, sourceFile, nil
	}

	b, err := openBackend(cmd.Context())
	if err != nil {
		return screener.Financials{}, "", err
	}
	defer b.close()
	return b.svc.Financials(cmd.Context(), ticker)
}

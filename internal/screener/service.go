package screener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fairvalue/internal/cache"
	"github.com/seenimoa/fairvalue/internal/statement"
	"github.com/seenimoa/fairvalue/pkg/utils"
)

// Source tells whether financials came from the cache or a fresh fetch.
type Source string

const (
	SourceCache Source = "cache"
	SourceLive  Source = "live"
)

// Financials are the three annual statements of one company.
type Financials struct {
	Ticker       string             `json:"ticker"`
	ProfitLoss   statement.Table    `json:"profit_loss"`
	BalanceSheet statement.Table    `json:"balance_sheet"`
	CashFlow     statement.Table    `json:"cash_flow"`
	Reports      []statement.Report `json:"reports,omitempty"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// ExtractFinancials reads the three statement sections of a company page.
func ExtractFinancials(doc *goquery.Document) Financials {
	pl := statement.ExtractReport(doc, statement.ProfitLoss)
	bs := statement.ExtractReport(doc, statement.BalanceSheet)
	cf := statement.ExtractReport(doc, statement.CashFlow)
	return Financials{
		ProfitLoss:   pl.Table,
		BalanceSheet: bs.Table,
		CashFlow:     cf.Table,
		Reports:      []statement.Report{pl, bs, cf},
	}
}

// Fetcher retrieves a parsed company page.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) (*goquery.Document, error)
}

// Service fetches financials through a cache.
type Service struct {
	fetcher     Fetcher
	loader      *cache.Loader[Financials]
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

// NewService creates a service. concurrency bounds FinancialsMany; values
// below 1 mean one fetch at a time.
func NewService(f Fetcher, loader *cache.Loader[Financials], concurrency int) *Service {
	return &Service{
		fetcher:     f,
		loader:      loader,
		concurrency: max(concurrency, 1),
		now:         time.Now,
		log:         slog.Default().With("component", "financials"),
	}
}

// Financials returns the statements for ticker, from the cache while they are
// fresh. A cache write failure is logged and does not fail the call.
func (s *Service) Financials(ctx context.Context, ticker string) (Financials, Source, error) {
	symbol, err := utils.ValidateTicker(ticker)
	if err != nil {
		return Financials{}, "", fmt.Errorf("%q: %w", ticker, err)
	}

	fin, hit, err := s.loader.Get(ctx, symbol, func(ctx context.Context) (Financials, error) {
		doc, err := s.fetcher.Fetch(ctx, symbol)
		if err != nil {
			return Financials{}, fmt.Errorf("screener.in %s: %w", symbol, err)
		}
		fin := ExtractFinancials(doc)
		fin.Ticker = symbol
		fin.FetchedAt = s.now()
		s.log.Info("fetched financials", "ticker", symbol,
			"profit_loss_rows", len(fin.ProfitLoss),
			"balance_sheet_rows", len(fin.BalanceSheet),
			"cash_flow_rows", len(fin.CashFlow))
		return fin, nil
	})
	switch {
	case errors.Is(err, cache.ErrStoreWrite):
		s.log.Warn("cache write failed", "ticker", symbol, "error", err)
	case err != nil:
		return Financials{}, "", err
	}

	if hit {
		return fin, SourceCache, nil
	}
	return fin, SourceLive, nil
}

// BatchResult is one ticker's outcome in FinancialsMany.
type BatchResult struct {
	Ticker     string
	Financials Financials
	Source     Source
	Err        error
}

// FinancialsMany fetches several tickers concurrently. Per-ticker failures are
// reported in the results; the returned error is only ctx's.
func (s *Service) FinancialsMany(ctx context.Context, tickers []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			fin, src, err := s.Financials(gctx, t)
			results[i] = BatchResult{Ticker: t, Financials: fin, Source: src, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Invalidate drops the cached financials of ticker so the next call fetches.
func (s *Service) Invalidate(ctx context.Context, ticker string) error {
	symbol, err := utils.ValidateTicker(ticker)
	if err != nil {
		return fmt.Errorf("%q: %w", ticker, err)
	}
	return s.loader.Invalidate(ctx, symbol)
}

package screener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/fairvalue/internal/cache"
	"github.com/seenimoa/fairvalue/internal/statement"
	"github.com/seenimoa/fairvalue/pkg/utils"
)

const companyPage = `<html><body>
<section id="profit-loss"><table>
  <thead><tr><th></th><th>Mar 2023</th><th>Mar 2024</th><th>TTM</th></tr></thead>
  <tbody>
    <tr><td>Sales +</td><td>1,000</td><td>1,200</td><td>1,300</td></tr>
    <tr><td>Operating Profit</td><td>200</td><td>240</td><td>260</td></tr>
  </tbody>
</table></section>
<section id="balance-sheet"><table>
  <thead><tr><th></th><th>Mar 2023</th><th>Mar 2024</th></tr></thead>
  <tbody><tr><td>Borrowings +</td><td>50</td><td>40</td></tr></tbody>
</table></section>
</body></html>`

// fakeSite serves companyPage for every path under /company/ except the
// tickers listed in missing.
type fakeSite struct {
	mu      sync.Mutex
	paths   []string
	hits    atomic.Int32
	missing map[string]bool
	noCons  bool
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "company" || f.missing[parts[1]] {
		http.NotFound(w, r)
		return
	}
	if f.noCons && len(parts) == 3 && parts[2] == "consolidated" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, companyPage)
}

func newTestService(t *testing.T, site *fakeSite, cfg ClientConfig) (*Service, *cache.Memory[Financials]) {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	mem := cache.NewMemory[Financials]()
	svc := NewService(NewClient(cfg), cache.NewLoader[Financials](mem, time.Hour), 4)
	return svc, mem
}

func TestClientFetchStandalone(t *testing.T) {
	site := &fakeSite{}
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/"})
	doc, err := c.Fetch(context.Background(), "TCS")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.Find("section#profit-loss").Length() != 1 {
		t.Error("expected profit-loss section in document")
	}
	if site.paths[0] != "/company/TCS/" {
		t.Errorf("path: got %q, want /company/TCS/", site.paths[0])
	}
}

func TestClientFetchConsolidatedFallback(t *testing.T) {
	site := &fakeSite{noCons: true}
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Consolidated: true})
	if _, err := c.Fetch(context.Background(), "ITC"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []string{"/company/ITC/consolidated/", "/company/ITC/"}
	if strings.Join(site.paths, ",") != strings.Join(want, ",") {
		t.Errorf("paths: got %v, want %v", site.paths, want)
	}
}

func TestClientFetchNotFound(t *testing.T) {
	site := &fakeSite{missing: map[string]bool{"NOPE": true}}
	srv := httptest.NewServer(site)
	defer srv.Close()

	_, err := NewClient(ClientConfig{BaseURL: srv.URL}).Fetch(context.Background(), "NOPE")
	if !errors.Is(err, ErrTickerNotFound) {
		t.Fatalf("got %v, want ErrTickerNotFound", err)
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		t.Errorf("expected HTTPError 404, got %v", err)
	}
}

func TestServiceFinancialsLiveThenCache(t *testing.T) {
	site := &fakeSite{}
	svc, _ := newTestService(t, site, ClientConfig{})
	ctx := context.Background()

	fin, src, err := svc.Financials(ctx, " tcs ")
	if err != nil {
		t.Fatalf("Financials: %v", err)
	}
	if src != SourceLive {
		t.Errorf("source: got %q, want live", src)
	}
	if fin.Ticker != "TCS" {
		t.Errorf("ticker: got %q", fin.Ticker)
	}
	if v, _ := fin.ProfitLoss.Get("Sales +").Get(statement.TTM); v != 1300 {
		t.Errorf("Sales + TTM: got %v, want 1300", v)
	}
	if len(fin.CashFlow) != 0 {
		t.Errorf("cash flow should be empty, got %v", fin.CashFlow)
	}
	if len(fin.Reports) != 3 || fin.Reports[2].Found {
		t.Errorf("expected three reports with cash flow not found, got %+v", fin.Reports)
	}

	_, src, err = svc.Financials(ctx, "TCS")
	if err != nil || src != SourceCache {
		t.Errorf("second call: source=%q err=%v, want cache", src, err)
	}
	if n := site.hits.Load(); n != 1 {
		t.Errorf("site hit %d times, want 1", n)
	}
}

func TestServiceFinancialsInvalidTicker(t *testing.T) {
	site := &fakeSite{}
	svc, _ := newTestService(t, site, ClientConfig{})

	_, _, err := svc.Financials(context.Background(), "../admin")
	if !errors.Is(err, utils.ErrInvalidTicker) {
		t.Fatalf("got %v, want ErrInvalidTicker", err)
	}
	if site.hits.Load() != 0 {
		t.Error("invalid ticker should not reach the site")
	}
}

func TestServiceFinancialsErrorNotCached(t *testing.T) {
	site := &fakeSite{missing: map[string]bool{"GONE": true}}
	svc, mem := newTestService(t, site, ClientConfig{})

	if _, _, err := svc.Financials(context.Background(), "GONE"); !errors.Is(err, ErrTickerNotFound) {
		t.Fatalf("got %v, want ErrTickerNotFound", err)
	}
	if mem.Len() != 0 {
		t.Error("failed fetch should not be cached")
	}
}

func TestServiceFinancialsMany(t *testing.T) {
	site := &fakeSite{missing: map[string]bool{"BAD": true}}
	svc, _ := newTestService(t, site, ClientConfig{})

	results, err := svc.FinancialsMany(context.Background(), []string{"TCS", "BAD", "INFY"})
	if err != nil {
		t.Fatalf("FinancialsMany: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for _, r := range results {
		switch r.Ticker {
		case "BAD":
			if r.Err == nil {
				t.Error("BAD: expected error")
			}
		default:
			if r.Err != nil || r.Financials.Ticker != r.Ticker {
				t.Errorf("%s: err=%v ticker=%q", r.Ticker, r.Err, r.Financials.Ticker)
			}
		}
	}
}

func TestExtractFinancials(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(companyPage))
	if err != nil {
		t.Fatal(err)
	}
	fin := ExtractFinancials(doc)
	if got := fin.BalanceSheet.Get("Borrowings +").Values; len(got) != 2 || got[1] != 40 {
		t.Errorf("Borrowings +: got %v", got)
	}
}

func TestRateLimiterWaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(2, 10*time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("four tokens from a bucket of two took only %v", elapsed)
	}
}

func TestServiceInvalidate(t *testing.T) {
	site := &fakeSite{}
	svc, mem := newTestService(t, site, ClientConfig{})
	ctx := context.Background()

	if _, _, err := svc.Financials(ctx, "TCS"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Invalidate(ctx, "tcs"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mem.Len() != 0 {
		t.Error("entry still cached after Invalidate")
	}
	if _, src, _ := svc.Financials(ctx, "TCS"); src != SourceLive {
		t.Errorf("source after invalidate: got %q, want live", src)
	}
	if err := svc.Invalidate(ctx, "../x"); !errors.Is(err, utils.ErrInvalidTicker) {
		t.Errorf("got %v, want ErrInvalidTicker", err)
	}
}

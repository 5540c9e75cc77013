package quote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeProvider counts upstream calls and can fail per symbol or block until
// released, for stampede tests.
type fakeProvider struct {
	mu          sync.Mutex
	quoteCalls  map[string]int
	searchCalls int
	failing     map[string]bool
	price       int64
	gate        chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		quoteCalls: make(map[string]int),
		failing:    make(map[string]bool),
		price:      100,
	}
}

func (p *fakeProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.quoteCalls[symbol]++
	failing := p.failing[symbol]
	price := p.price
	p.mu.Unlock()
	if failing {
		return Quote{}, errors.New("upstream unavailable")
	}
	return Quote{Symbol: symbol, Price: decimal.NewFromInt(price), FetchedAt: time.Now()}, nil
}

func (p *fakeProvider) Search(ctx context.Context, query string) ([]Security, error) {
	p.mu.Lock()
	p.searchCalls++
	p.mu.Unlock()
	return []Security{{Symbol: "AAPL.US", Name: "Apple Inc", Exchange: "US", Currency: "USD"}}, nil
}

func (p *fakeProvider) calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quoteCalls[symbol]
}

func TestCacheServesFreshQuote(t *testing.T) {
	p := newFakeProvider()
	c := NewCache(p, slog.Default())

	first, err := c.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if first.FromCache {
		t.Error("first fetch should not be from cache")
	}

	second, err := c.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !second.FromCache {
		t.Error("second fetch should be from cache")
	}
	if p.calls("AAPL") != 1 {
		t.Errorf("upstream calls = %d, want 1", p.calls("AAPL"))
	}
}

func TestCacheRefetchesExpired(t *testing.T) {
	p := newFakeProvider()
	c := NewCache(p, slog.Default())

	if _, err := c.GetPrice(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Age the entry past the freshness window.
	c.mu.Lock()
	e := c.quotes["AAPL"]
	e.fetchedAt = time.Now().Add(-quoteTTL - time.Minute)
	c.quotes["AAPL"] = e
	c.mu.Unlock()

	q, err := c.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if q.FromCache {
		t.Error("expired entry must refetch, not serve stale")
	}
	if p.calls("AAPL") != 2 {
		t.Errorf("upstream calls = %d, want 2", p.calls("AAPL"))
	}
}

func TestCacheErrorNotCached(t *testing.T) {
	p := newFakeProvider()
	p.failing["AAPL"] = true
	c := NewCache(p, slog.Default())

	if _, err := c.GetPrice(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected upstream error")
	}

	p.mu.Lock()
	p.failing["AAPL"] = false
	p.mu.Unlock()

	q, err := c.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if q.FromCache {
		t.Error("recovered fetch should not be from cache")
	}
}

func TestGetPricesDeduplicates(t *testing.T) {
	p := newFakeProvider()
	c := NewCache(p, slog.Default())

	results := c.GetPrices(context.Background(), []string{"AAPL", "MSFT", "AAPL", "AAPL"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if p.calls("AAPL") != 1 {
		t.Errorf("AAPL upstream calls = %d, want 1", p.calls("AAPL"))
	}
	if results["MSFT"].Err != nil {
		t.Errorf("MSFT err = %v, want nil", results["MSFT"].Err)
	}
}

func TestGetPricesPartialFailure(t *testing.T) {
	p := newFakeProvider()
	p.failing["BAD"] = true
	c := NewCache(p, slog.Default())

	results := c.GetPrices(context.Background(), []string{"GOOD", "BAD"})
	if results["GOOD"].Err != nil {
		t.Errorf("GOOD err = %v, want nil", results["GOOD"].Err)
	}
	if results["BAD"].Err == nil {
		t.Error("BAD should carry its error")
	}
	if !results["GOOD"].Quote.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("GOOD price = %s, want 100", results["GOOD"].Quote.Price)
	}
}

func TestCacheCollapsesStampede(t *testing.T) {
	p := newFakeProvider()
	p.gate = make(chan struct{})
	c := NewCache(p, slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetPrice(context.Background(), "AAPL")
		}()
	}

	// Give the goroutines time to pile onto the same key, then release.
	time.Sleep(50 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	if got := p.calls("AAPL"); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (stampede must collapse)", got)
	}
}

func TestRefreshReplacesFreshEntries(t *testing.T) {
	p := newFakeProvider()
	c := NewCache(p, slog.Default())

	if _, err := c.GetPrice(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first get: %v", err)
	}

	p.mu.Lock()
	p.price = 150
	p.mu.Unlock()

	results := c.Refresh(context.Background(), []string{"AAPL"})
	if results["AAPL"].Err != nil {
		t.Fatalf("refresh: %v", results["AAPL"].Err)
	}

	q, err := c.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("get after refresh: %v", err)
	}
	if !q.FromCache {
		t.Error("refreshed entry should serve from cache")
	}
	if !q.Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("price = %s, want 150 (refresh must replace the entry)", q.Price)
	}
	if p.calls("AAPL") != 2 {
		t.Errorf("upstream calls = %d, want 2", p.calls("AAPL"))
	}
}

func TestRefreshFailureKeepsCachedEntry(t *testing.T) {
	p := newFakeProvider()
	c := NewCache(p, slog.Default())

	if _, err := c.GetPrice(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first get: %v", err)
	}

	p.mu.Lock()
	p.failing["AAPL"] = true
	p.mu.Unlock()

	results := c.Refresh(context.Background(), []string{"AAPL"})
	if results["AAPL"].Err == nil {
		t.Fatal("expected refresh error")
	}

	q, err := c.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("get after failed refresh: %v", err)
	}
	if !q.FromCache || !q.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("cached entry lost after failed refresh: fromCache=%v price=%s", q.FromCache, q.Price)
	}
}

func TestSearchCached(t *testing.T) {
	p := newFakeProvider()
	c := NewCache(p, slog.Default())

	if _, err := c.Search(context.Background(), "apple"); err != nil {
		t.Fatalf("first search: %v", err)
	}
	hits, err := c.Search(context.Background(), "Apple ")
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if p.searchCalls != 1 {
		t.Errorf("upstream searches = %d, want 1 (query should normalize and cache)", p.searchCalls)
	}
}

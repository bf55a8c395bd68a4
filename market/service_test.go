package market

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionflow/config"
	"optionflow/models"
)

// fakeGateway serves canned chain and depth data, recording calls.
type fakeGateway struct {
	mu            sync.Mutex
	chainByExpiry map[string][]models.OptionTicker
	depthBySymbol map[string]string
	bulkTickers   []models.OptionTicker
	probed        []string
	depthCalls    int
}

func (f *fakeGateway) ReferencePrice(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(60000), nil
}

func (f *fakeGateway) OptionsChain(ctx context.Context, expiry time.Time) ([]models.OptionTicker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := expiry.Format(models.SymbolExpiryLayout)
	f.probed = append(f.probed, key)
	return f.chainByExpiry[key], nil
}

func (f *fakeGateway) AllSymbols(ctx context.Context) ([]models.OptionTicker, error) {
	var all []models.OptionTicker
	for _, records := range f.chainByExpiry {
		all = append(all, records...)
	}
	return all, nil
}

func (f *fakeGateway) BulkTickers(ctx context.Context) ([]models.OptionTicker, error) {
	return f.bulkTickers, nil
}

func (f *fakeGateway) OrderBook(ctx context.Context, symbol string, depth int) ([]byte, error) {
	f.mu.Lock()
	f.depthCalls++
	payload, ok := f.depthBySymbol[symbol]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no depth for %s", symbol)
	}
	return []byte(payload), nil
}

func serviceConfig(workers int) *config.Config {
	return &config.Config{
		Exchange: config.ExchangeConfig{BaseAsset: "BTC", QuoteAsset: "USDT"},
		Client:   config.ClientConfig{RefreshWorkers: workers},
		Strategy: config.StrategyConfig{StrikeDistance: 2, OrderBookDepth: 10},
	}
}

func TestChainBuildsContracts(t *testing.T) {
	gw := &fakeGateway{chainByExpiry: map[string][]models.OptionTicker{
		"250905": {
			{Symbol: "BTC-250905-60000-C", BidPrice: "100", AskPrice: "110"},
			{Symbol: "BTC-250905-60000-P"},
			{Symbol: "not-a-symbol"},
		},
	}}
	svc := NewService(gw, serviceConfig(1))

	chain, err := svc.Chain(context.Background(), time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("got %d contracts, want 2 (malformed dropped)", len(chain))
	}
	if chain[0].BidPrice == nil || !chain[0].BidPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("ticker pricing not applied: %v", chain[0].BidPrice)
	}
}

func TestCurrentOrNextExpiryProbesForward(t *testing.T) {
	gw := &fakeGateway{chainByExpiry: map[string][]models.OptionTicker{
		"250903": {{Symbol: "BTC-250903-60000-C"}},
	}}
	svc := NewService(gw, serviceConfig(1))
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 15, 30, 0, 0, time.UTC) }

	expiry, err := svc.CurrentOrNextExpiry(context.Background())
	if err != nil {
		t.Fatalf("CurrentOrNextExpiry failed: %v", err)
	}
	want := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	if !expiry.Equal(want) {
		t.Errorf("expiry = %s, want %s", expiry, want)
	}
	// Probing stops at the first non-empty chain: today, +1, +2.
	if len(gw.probed) != 3 {
		t.Errorf("probed %d dates, want 3: %v", len(gw.probed), gw.probed)
	}
}

func TestCurrentOrNextExpiryFallsBackToFridays(t *testing.T) {
	// 2025-09-01 is a Monday; the week probe covers through 09-08, so the
	// first Friday candidate is 09-12.
	gw := &fakeGateway{chainByExpiry: map[string][]models.OptionTicker{
		"250919": {{Symbol: "BTC-250919-60000-C"}},
	}}
	svc := NewService(gw, serviceConfig(1))
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) }

	expiry, err := svc.CurrentOrNextExpiry(context.Background())
	if err != nil {
		t.Fatalf("CurrentOrNextExpiry failed: %v", err)
	}
	want := time.Date(2025, 9, 19, 0, 0, 0, 0, time.UTC)
	if !expiry.Equal(want) {
		t.Errorf("expiry = %s, want second Friday %s", expiry, want)
	}
	if got := gw.probed[8]; got != "250912" {
		t.Errorf("first Friday candidate = %s, want 250912", got)
	}
}

func TestCurrentOrNextExpiryExhausted(t *testing.T) {
	gw := &fakeGateway{chainByExpiry: map[string][]models.OptionTicker{}}
	svc := NewService(gw, serviceConfig(1))
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) }

	if _, err := svc.CurrentOrNextExpiry(context.Background()); err == nil {
		t.Fatal("expected error when no candidate has listings")
	}
	if len(gw.probed) != 12 {
		t.Errorf("probed %d dates, want 12 (8 days + 4 Fridays)", len(gw.probed))
	}
}

func TestRefreshPricingIsolatesFailures(t *testing.T) {
	symbols := []string{
		"BTC-250905-58000-C",
		"BTC-250905-60000-C",
		"BTC-250905-62000-C",
		"BTC-250905-64000-C",
		"BTC-250905-66000-C",
	}
	depth := make(map[string]string)
	for i, sym := range symbols {
		if sym == "BTC-250905-62000-C" {
			continue // no depth entry, refresh for this one fails
		}
		depth[sym] = fmt.Sprintf(`{"bids":[["%d","1"]],"asks":[["%d","2"]]}`, 100+i, 110+i)
	}
	gw := &fakeGateway{depthBySymbol: depth}

	var contracts []*models.OptionContract
	for _, sym := range symbols {
		contracts = append(contracts, &models.OptionContract{Symbol: sym, Type: models.OptionTypeCall})
	}

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			for _, c := range contracts {
				c.BidPrice, c.AskPrice = nil, nil
			}
			svc := NewService(gw, serviceConfig(workers))

			refreshed := svc.RefreshPricing(context.Background(), contracts)
			if refreshed != 4 {
				t.Errorf("refreshed = %d, want 4 (one contract fails)", refreshed)
			}
			for _, c := range contracts {
				if c.Symbol == "BTC-250905-62000-C" {
					if c.BidPrice != nil {
						t.Errorf("failed contract must stay unpriced")
					}
					continue
				}
				if c.BidPrice == nil || c.AskPrice == nil {
					t.Errorf("%s not refreshed", c.Symbol)
				}
			}
		})
	}
}

func TestRefreshPricingEmptySidesLeaveFieldsUnset(t *testing.T) {
	gw := &fakeGateway{depthBySymbol: map[string]string{
		"BTC-250905-60000-C": `{"bids":[["95","1"]],"asks":[]}`,
	}}
	svc := NewService(gw, serviceConfig(1))

	contract := &models.OptionContract{Symbol: "BTC-250905-60000-C", Type: models.OptionTypeCall}
	if got := svc.RefreshPricing(context.Background(), []*models.OptionContract{contract}); got != 1 {
		t.Fatalf("refreshed = %d, want 1", got)
	}
	if contract.BidPrice == nil || !contract.BidPrice.Equal(decimal.NewFromInt(95)) {
		t.Errorf("bid = %v, want 95", contract.BidPrice)
	}
	if contract.AskPrice != nil {
		t.Errorf("empty ask side must leave the field unset, got %s", contract.AskPrice)
	}
}

func TestRefreshFromBulk(t *testing.T) {
	gw := &fakeGateway{bulkTickers: []models.OptionTicker{
		{Symbol: "BTC-250905-60000-C", BidPrice: "120", AskPrice: "130"},
	}}
	svc := NewService(gw, serviceConfig(1))

	contracts := []*models.OptionContract{
		{Symbol: "BTC-250905-60000-C", Type: models.OptionTypeCall},
		{Symbol: "BTC-250905-62000-C", Type: models.OptionTypeCall},
	}
	updated, err := svc.RefreshFromBulk(context.Background(), contracts)
	if err != nil {
		t.Fatalf("RefreshFromBulk failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	if contracts[1].Priced() {
		t.Error("unmatched contract must stay unpriced")
	}
}

func TestAvailableExpiries(t *testing.T) {
	gw := &fakeGateway{chainByExpiry: map[string][]models.OptionTicker{
		"250905": {{Symbol: "BTC-250905-60000-C"}, {Symbol: "BTC-250905-60000-P"}},
		"251226": {{Symbol: "BTC-251226-80000-C"}},
	}}
	svc := NewService(gw, serviceConfig(1))

	expiries, err := svc.AvailableExpiries(context.Background())
	if err != nil {
		t.Fatalf("AvailableExpiries failed: %v", err)
	}
	if len(expiries) != 2 {
		t.Fatalf("got %d expiries, want 2", len(expiries))
	}
	if !expiries[0].Before(expiries[1]) {
		t.Error("expiries must be ascending")
	}
}

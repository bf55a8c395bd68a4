package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func level(price, qty string) PriceLevel {
	return PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestOrderBookBestLevels(t *testing.T) {
	ob := &OrderBook{
		Symbol: "BTC-250905-60000-C",
		Bids:   []PriceLevel{level("105.5", "2"), level("104", "1")},
		Asks:   []PriceLevel{level("106", "3"), level("107.5", "4")},
	}

	if got := ob.BestBid(); !got.Equal(decimal.RequireFromString("105.5")) {
		t.Errorf("best bid = %s, want 105.5", got)
	}
	if got := ob.BestAsk(); !got.Equal(decimal.RequireFromString("106")) {
		t.Errorf("best ask = %s, want 106", got)
	}
	if got := ob.BestBidQuantity(); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("best bid qty = %s, want 2", got)
	}
	if got := ob.BestAskQuantity(); !got.Equal(decimal.NewFromInt(3)) {
		t.Errorf("best ask qty = %s, want 3", got)
	}
}

func TestOrderBookEmptySidesYieldZero(t *testing.T) {
	ob := &OrderBook{Symbol: "BTC-250905-60000-P"}

	if !ob.BestBid().IsZero() || !ob.BestBidQuantity().IsZero() {
		t.Errorf("empty bids: got bid=%s qty=%s, want zero", ob.BestBid(), ob.BestBidQuantity())
	}
	if !ob.BestAsk().IsZero() || !ob.BestAskQuantity().IsZero() {
		t.Errorf("empty asks: got ask=%s qty=%s, want zero", ob.BestAsk(), ob.BestAskQuantity())
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"configuration", &ConfigurationError{Field: "secret_key"}, true},
		{"upstream 400", &UpstreamError{Operation: "op", StatusCode: 400, Body: "bad"}, true},
		{"upstream 404", &UpstreamError{Operation: "op", StatusCode: 404}, true},
		{"upstream 429", &UpstreamError{Operation: "op", StatusCode: 429}, false},
		{"upstream 418", &UpstreamError{Operation: "op", StatusCode: 418}, false},
		{"upstream 500", &UpstreamError{Operation: "op", StatusCode: 500}, false},
		{"upstream io", &UpstreamError{Operation: "op", Err: errors.New("connection reset")}, false},
		{"order 400", &OrderError{Operation: "placeOrder", StatusCode: 400, Body: "insufficient"}, true},
		{"order 503", &OrderError{Operation: "placeOrder", StatusCode: 503}, false},
		{"wrapped upstream 400", fmt.Errorf("attempt 1: %w", &UpstreamError{Operation: "op", StatusCode: 400}), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.terminal {
				t.Errorf("IsTerminal(%v) = %v, want %v", tt.err, got, tt.terminal)
			}
		})
	}
}

func TestOptionContractPriced(t *testing.T) {
	c := &OptionContract{Symbol: "BTC-250905-60000-C"}
	if c.Priced() {
		t.Error("contract with no quotes should not report priced")
	}
	p := decimal.RequireFromString("42.5")
	c.BidPrice = &p
	if !c.Priced() {
		t.Error("contract with a bid should report priced")
	}
}

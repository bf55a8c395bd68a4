package models

import (
	"github.com/shopspring/decimal"
)

// PriceLevel is a single (price, quantity) level of one order book side.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBook is a point in time depth snapshot for one symbol. Bids are
// ordered best (highest) first, asks best (lowest) first, preserving the
// exchange's own ordering. It is constructed fresh per depth query and not
// mutated afterwards.
type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// BestBid returns the price of the first bid level, or zero when the side
// is empty. An empty side is a defined outcome, not an error.
func (ob *OrderBook) BestBid() decimal.Decimal {
	if len(ob.Bids) == 0 {
		return decimal.Zero
	}
	return ob.Bids[0].Price
}

// BestAsk returns the price of the first ask level, or zero when the side
// is empty.
func (ob *OrderBook) BestAsk() decimal.Decimal {
	if len(ob.Asks) == 0 {
		return decimal.Zero
	}
	return ob.Asks[0].Price
}

// BestBidQuantity returns the quantity at the first bid level, or zero.
func (ob *OrderBook) BestBidQuantity() decimal.Decimal {
	if len(ob.Bids) == 0 {
		return decimal.Zero
	}
	return ob.Bids[0].Quantity
}

// BestAskQuantity returns the quantity at the first ask level, or zero.
func (ob *OrderBook) BestAskQuantity() decimal.Decimal {
	if len(ob.Asks) == 0 {
		return decimal.Zero
	}
	return ob.Asks[0].Quantity
}

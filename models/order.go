package models

import (
	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the execution type of an order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForceGTC is the only time in force the order manager submits.
const TimeInForceGTC = "GTC"

// OrderStatus mirrors the exchange's order states verbatim.
type OrderStatus string

const (
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// OrderRequest describes one order to submit. It is caller owned and not
// mutated by the gateway. Price is required for LIMIT orders.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Quantity decimal.Decimal
	Price    *decimal.Decimal
}

// OrderResponse is the canonical mapping of the exchange's order payload.
// Pointer fields stay nil when the exchange omits them, "not filled" and
// "field omitted" are different things.
type OrderResponse struct {
	OrderID          string
	Symbol           string
	Status           OrderStatus
	FilledQuantity   *decimal.Decimal
	OriginalQuantity *decimal.Decimal
	Price            *decimal.Decimal
	AvgPrice         *decimal.Decimal
	Side             OrderSide
}

package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// Symbol date layouts. Exchange option symbols carry a two digit year
// (BASE-YYMMDD-STRIKE-C|P); expiries are UTC calendar dates.
const (
	SymbolExpiryLayout = "060102"
	ExpiryDateLayout   = "20060102"
)

// OptionContract is the canonical representation of one listed option.
// Symbol is the unique key within a chain snapshot; strike, expiry and type
// are parsed once from the symbol and never change afterwards. Pricing
// fields stay nil until a usable quote is found, an unpriced contract is
// still valid for strike selection.
type OptionContract struct {
	Symbol string          `json:"symbol"`
	Strike decimal.Decimal `json:"strike"`
	Expiry time.Time       `json:"expiry"`
	Type   OptionType      `json:"type"`

	BidPrice    *decimal.Decimal `json:"bid_price,omitempty"`
	AskPrice    *decimal.Decimal `json:"ask_price,omitempty"`
	BidQuantity *decimal.Decimal `json:"bid_quantity,omitempty"`
	AskQuantity *decimal.Decimal `json:"ask_quantity,omitempty"`
}

func (c *OptionContract) String() string {
	return fmt.Sprintf("OptionContract{symbol=%s strike=%s expiry=%s type=%s}",
		c.Symbol, c.Strike, c.Expiry.Format(time.DateOnly), c.Type)
}

// Priced reports whether at least one side has a usable quote.
func (c *OptionContract) Priced() bool {
	return c.BidPrice != nil || c.AskPrice != nil
}

package models

// Raw wire payloads as the exchange returns them. The gateway hands these
// to the normalizer untouched; all decimal fields arrive as strings and the
// sentinel "0" means "not quoted".

// OptionTicker is one entry of the bulk options ticker endpoint. The
// lightweight ticker only fills Symbol and the price fields it knows about;
// the 24h ticker fills everything. Absent fields decode to "".
type OptionTicker struct {
	Symbol    string `json:"symbol"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	BidQty    string `json:"bidQty"`
	AskQty    string `json:"askQty"`
	MarkPrice string `json:"markPrice"`
	LastPrice string `json:"lastPrice"`
	Volume    string `json:"volume"`
}

// InstrumentInfo is one listed instrument from the exchange-info endpoint.
// The listing carries no pricing fields.
type InstrumentInfo struct {
	Symbol     string `json:"symbol"`
	Underlying string `json:"underlying"`
	Unit       string `json:"unit"`
}

// InstrumentListing is the exchange-info response envelope.
type InstrumentListing struct {
	Timezone      string           `json:"timezone"`
	OptionSymbols []InstrumentInfo `json:"optionSymbols"`
	Symbols       []InstrumentInfo `json:"symbols"`
}

// Instruments returns whichever symbol list the exchange populated.
func (l *InstrumentListing) Instruments() []InstrumentInfo {
	if len(l.OptionSymbols) > 0 {
		return l.OptionSymbols
	}
	return l.Symbols
}

// TickerPrice is the single symbol price ticker response.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Package normalize converts raw exchange payloads into canonical
// contracts and order books, applying a fixed parsing and fallback policy.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionflow/logger"
	"optionflow/models"
)

// notQuoted is the exchange sentinel for "no live quote on this side".
const notQuoted = "0"

// Normalizer parses raw records into canonical entities. Per-record parse
// failures are absorbed here: one malformed symbol never aborts a
// whole-chain fetch.
type Normalizer struct {
	log *logger.Log
}

func NewNormalizer() *Normalizer {
	return &Normalizer{log: logger.GetLogger()}
}

// ParseContract builds an OptionContract from one raw record. The symbol
// BASE-YYMMDD-STRIKE-C|P is the source of truth for strike, expiry and
// type; the strike comes from the symbol segment, never from a price
// field, to avoid upstream rounding.
func (n *Normalizer) ParseContract(rec models.OptionTicker) (*models.OptionContract, error) {
	parts := strings.Split(rec.Symbol, "-")
	if len(parts) < 4 {
		return nil, &models.ParseError{Symbol: rec.Symbol, Err: fmt.Errorf("expected at least 4 symbol segments, got %d", len(parts))}
	}

	expiry, err := time.ParseInLocation(models.ExpiryDateLayout, "20"+parts[1], time.UTC)
	if err != nil {
		return nil, &models.ParseError{Symbol: rec.Symbol, Err: fmt.Errorf("bad expiry segment %q: %w", parts[1], err)}
	}

	strike, err := decimal.NewFromString(parts[2])
	if err != nil {
		return nil, &models.ParseError{Symbol: rec.Symbol, Err: fmt.Errorf("bad strike segment %q: %w", parts[2], err)}
	}

	optType := models.OptionTypePut
	if parts[3] == "C" {
		optType = models.OptionTypeCall
	}

	contract := &models.OptionContract{
		Symbol: rec.Symbol,
		Strike: strike,
		Expiry: expiry,
		Type:   optType,
	}
	n.ApplyTicker(contract, rec)
	return contract, nil
}

// BuildChain parses every raw record, dropping malformed ones with a
// warning. An empty result is valid.
func (n *Normalizer) BuildChain(records []models.OptionTicker) []*models.OptionContract {
	contracts := make([]*models.OptionContract, 0, len(records))
	for _, rec := range records {
		contract, err := n.ParseContract(rec)
		if err != nil {
			n.log.WithComponent("normalizer").WithError(err).WithFields(logger.Fields{
				"symbol": rec.Symbol,
			}).Warn("dropping malformed chain record")
			logger.IncrementDroppedRecord()
			continue
		}
		contracts = append(contracts, contract)
	}
	return contracts
}

// ApplyTicker updates a contract's pricing from one ticker record,
// applying the fallback policy in fixed order: direct bid/ask when quoted,
// then mark price for any side still unset, else the side stays nil.
// Bid and ask may coincide after a mark fallback.
func (n *Normalizer) ApplyTicker(c *models.OptionContract, rec models.OptionTicker) {
	if p := parsePrice(rec.BidPrice); p != nil {
		c.BidPrice = p
	}
	if p := parsePrice(rec.AskPrice); p != nil {
		c.AskPrice = p
	}
	if q := parseQuantity(rec.BidQty); q != nil {
		c.BidQuantity = q
	}
	if q := parseQuantity(rec.AskQty); q != nil {
		c.AskQuantity = q
	}

	if mark := parsePrice(rec.MarkPrice); mark != nil {
		if c.BidPrice == nil {
			c.BidPrice = mark
		}
		if c.AskPrice == nil {
			c.AskPrice = mark
		}
	}
}

// UpdateAll refreshes many contracts from one bulk ticker payload.
// Contracts with no matching entry are left unchanged. The returned count
// is observability only.
func (n *Normalizer) UpdateAll(contracts []*models.OptionContract, tickers []models.OptionTicker) int {
	bySymbol := make(map[string]models.OptionTicker, len(tickers))
	for _, tick := range tickers {
		if tick.Symbol != "" {
			bySymbol[tick.Symbol] = tick
		}
	}

	updated := 0
	for _, contract := range contracts {
		if tick, ok := bySymbol[contract.Symbol]; ok {
			n.ApplyTicker(contract, tick)
			updated++
		}
	}

	n.log.WithComponent("normalizer").WithFields(logger.Fields{
		"updated": updated,
		"total":   len(contracts),
	}).Info("updated pricing from bulk ticker")
	return updated
}

// rawDepth mirrors the wire shape of the depth endpoint, sides kept raw so
// a missing or malformed side degrades to empty instead of failing the
// whole payload.
type rawDepth struct {
	Bids json.RawMessage `json:"bids"`
	Asks json.RawMessage `json:"asks"`
}

// ParseOrderBook builds an OrderBook from a raw depth payload, preserving
// the exchange's own level ordering. Malformed levels are skipped; an
// absent or non-array side yields an empty side.
func (n *Normalizer) ParseOrderBook(symbol string, payload []byte) (*models.OrderBook, error) {
	var raw rawDepth
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &models.UpstreamError{Operation: "parseOrderBook", Err: fmt.Errorf("malformed depth payload for %s: %w", symbol, err)}
	}

	return &models.OrderBook{
		Symbol: symbol,
		Bids:   n.parseSide(symbol, "bids", raw.Bids),
		Asks:   n.parseSide(symbol, "asks", raw.Asks),
	}, nil
}

func (n *Normalizer) parseSide(symbol, side string, raw json.RawMessage) []models.PriceLevel {
	if len(raw) == 0 {
		return nil
	}

	var pairs [][]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		n.log.WithComponent("normalizer").WithError(err).WithFields(logger.Fields{
			"symbol": symbol,
			"side":   side,
		}).Warn("depth side is not a price level array")
		return nil
	}

	levels := make([]models.PriceLevel, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}

// ExtractExpiries derives the deduplicated ascending list of expiry dates
// from all symbols of the given base asset. Invalid expiry segments are
// skipped.
func (n *Normalizer) ExtractExpiries(records []models.OptionTicker, baseAsset string) []time.Time {
	prefix := baseAsset + "-"
	seen := make(map[time.Time]struct{})
	var expiries []time.Time

	for _, rec := range records {
		if !strings.HasPrefix(rec.Symbol, prefix) {
			continue
		}
		parts := strings.Split(rec.Symbol, "-")
		if len(parts) < 2 {
			continue
		}
		expiry, err := time.ParseInLocation(models.ExpiryDateLayout, "20"+parts[1], time.UTC)
		if err != nil {
			continue
		}
		if _, ok := seen[expiry]; ok {
			continue
		}
		seen[expiry] = struct{}{}
		expiries = append(expiries, expiry)
	}

	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })
	return expiries
}

// parsePrice returns nil for absent, unquoted ("0") or unparseable price
// fields.
func parsePrice(s string) *decimal.Decimal {
	if s == "" || s == notQuoted {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// parseQuantity returns nil for absent or unparseable quantity fields;
// zero quantities are kept.
func parseQuantity(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

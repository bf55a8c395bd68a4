package binance

import (
	"context"
	"encoding/json"
	"fmt"

	"optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

// ChainSource fetches the raw instrument records the normalizer builds a
// chain from. The exchange exposes the same logical listing through two
// endpoint shapes: the bulk pricing ticker and the exchange-info listing
// (which carries no pricing). Which one feeds the chain is configuration,
// not a second client.
type ChainSource interface {
	// Fetch returns one raw record per listed instrument.
	Fetch(ctx context.Context) ([]models.OptionTicker, error)
	// Name identifies the source in logs.
	Name() string
}

func newChainSource(g *Gateway, kind string) ChainSource {
	if kind == config.ChainSourceExchangeInfo {
		return &exchangeInfoSource{gateway: g}
	}
	return &tickerSource{gateway: g}
}

// tickerSource reads the bulk options ticker: every listed symbol with its
// current pricing.
type tickerSource struct {
	gateway *Gateway
}

func (s *tickerSource) Name() string { return "ticker" }

func (s *tickerSource) Fetch(ctx context.Context) ([]models.OptionTicker, error) {
	body, err := s.gateway.get(ctx, pathTicker, nil, "getOptionsChain")
	if err != nil {
		return nil, err
	}

	var tickers []models.OptionTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, &models.UpstreamError{
			Operation: "getOptionsChain",
			Err:       fmt.Errorf("expected array response from ticker endpoint: %w", err),
		}
	}
	logger.IncrementChainFetch(len(body))
	return tickers, nil
}

// exchangeInfoSource reads the instrument listing. Records carry symbols
// only; pricing has to come from a later refresh.
type exchangeInfoSource struct {
	gateway *Gateway
}

func (s *exchangeInfoSource) Name() string { return "exchange_info" }

func (s *exchangeInfoSource) Fetch(ctx context.Context) ([]models.OptionTicker, error) {
	body, err := s.gateway.get(ctx, pathExchangeInfo, nil, "getOptionsChain")
	if err != nil {
		return nil, err
	}

	var listing models.InstrumentListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &models.UpstreamError{
			Operation: "getOptionsChain",
			Err:       fmt.Errorf("malformed exchange info response: %w", err),
		}
	}

	instruments := listing.Instruments()
	records := make([]models.OptionTicker, 0, len(instruments))
	for _, inst := range instruments {
		records = append(records, models.OptionTicker{Symbol: inst.Symbol})
	}
	logger.IncrementChainFetch(len(body))
	return records, nil
}

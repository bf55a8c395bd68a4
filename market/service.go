package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"optionflow/config"
	"optionflow/logger"
	"optionflow/models"
	"optionflow/normalize"
)

// Gateway is the slice of the exchange gateway the service consumes.
type Gateway interface {
	ReferencePrice(ctx context.Context) (decimal.Decimal, error)
	OptionsChain(ctx context.Context, expiry time.Time) ([]models.OptionTicker, error)
	AllSymbols(ctx context.Context) ([]models.OptionTicker, error)
	BulkTickers(ctx context.Context) ([]models.OptionTicker, error)
	OrderBook(ctx context.Context, symbol string, depth int) ([]byte, error)
}

// Service orchestrates chain acquisition and pricing refresh. All methods
// are synchronous; the bounded refresh pool is the only internal
// concurrency and it drains before RefreshPricing returns.
type Service struct {
	gateway    Gateway
	normalizer *normalize.Normalizer
	cfg        *config.Config
	log        *logger.Log
	now        func() time.Time
}

func NewService(gateway Gateway, cfg *config.Config) *Service {
	return &Service{
		gateway:    gateway,
		normalizer: normalize.NewNormalizer(),
		cfg:        cfg,
		log:        logger.GetLogger(),
		now:        time.Now,
	}
}

// ReferencePrice returns the current futures price of the underlying.
func (s *Service) ReferencePrice(ctx context.Context) (decimal.Decimal, error) {
	return s.gateway.ReferencePrice(ctx)
}

// Chain fetches and normalizes the options chain for one expiry. An empty
// chain is a valid result.
func (s *Service) Chain(ctx context.Context, expiry time.Time) ([]*models.OptionContract, error) {
	records, err := s.gateway.OptionsChain(ctx, expiry)
	if err != nil {
		return nil, err
	}
	return s.normalizer.BuildChain(records), nil
}

// CurrentOrNextExpiry finds the nearest expiry date that actually has
// listed contracts. It probes today, then each of the next seven calendar
// days, then the next four Fridays. Probing stops at the first non-empty
// chain.
func (s *Service) CurrentOrNextExpiry(ctx context.Context) (time.Time, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)

	var candidates []time.Time
	for day := 0; day <= 7; day++ {
		candidates = append(candidates, today.AddDate(0, 0, day))
	}
	friday := nextFriday(today.AddDate(0, 0, 8))
	for i := 0; i < 4; i++ {
		candidates = append(candidates, friday.AddDate(0, 0, 7*i))
	}

	for _, candidate := range candidates {
		records, err := s.gateway.OptionsChain(ctx, candidate)
		if err != nil {
			return time.Time{}, err
		}
		if len(records) > 0 {
			s.log.WithComponent("market_service").WithFields(logger.Fields{
				"expiry":    candidate.Format(time.DateOnly),
				"contracts": len(records),
			}).Info("resolved nearest expiry")
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no expiry with listed contracts within probe window starting %s", today.Format(time.DateOnly))
}

func nextFriday(from time.Time) time.Time {
	offset := (int(time.Friday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, offset)
}

// AvailableExpiries returns the deduplicated ascending expiry dates
// currently listed for the configured base asset. Recomputed on every
// call, never cached.
func (s *Service) AvailableExpiries(ctx context.Context) ([]time.Time, error) {
	records, err := s.gateway.AllSymbols(ctx)
	if err != nil {
		return nil, err
	}
	return s.normalizer.ExtractExpiries(records, s.cfg.Exchange.BaseAsset), nil
}

// RefreshPricing updates each contract's pricing from its own order book,
// best effort. A failure on one contract is logged and skipped; it never
// aborts the refresh of the others. Returns the number of contracts
// refreshed.
func (s *Service) RefreshPricing(ctx context.Context, contracts []*models.OptionContract) int {
	workers := s.cfg.Client.RefreshWorkers
	if workers <= 1 || len(contracts) <= 1 {
		refreshed := 0
		for _, contract := range contracts {
			if s.refreshContract(ctx, contract) {
				refreshed++
			}
		}
		return refreshed
	}

	var refreshed int64
	jobs := make(chan *models.OptionContract)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for contract := range jobs {
				if s.refreshContract(ctx, contract) {
					atomic.AddInt64(&refreshed, 1)
				}
			}
		}()
	}
	for _, contract := range contracts {
		jobs <- contract
	}
	close(jobs)
	wg.Wait()

	return int(atomic.LoadInt64(&refreshed))
}

// refreshContract fetches one contract's depth and applies the best bid
// and ask. Empty book sides leave the corresponding fields untouched.
func (s *Service) refreshContract(ctx context.Context, contract *models.OptionContract) bool {
	payload, err := s.gateway.OrderBook(ctx, contract.Symbol, s.cfg.Strategy.OrderBookDepth)
	if err != nil {
		s.log.WithComponent("market_service").WithError(err).WithFields(logger.Fields{
			"symbol": contract.Symbol,
		}).Warn("pricing refresh failed for contract")
		return false
	}

	book, err := s.normalizer.ParseOrderBook(contract.Symbol, payload)
	if err != nil {
		s.log.WithComponent("market_service").WithError(err).WithFields(logger.Fields{
			"symbol": contract.Symbol,
		}).Warn("pricing refresh failed for contract")
		return false
	}

	if len(book.Bids) > 0 {
		bid := book.BestBid()
		qty := book.BestBidQuantity()
		contract.BidPrice = &bid
		contract.BidQuantity = &qty
	}
	if len(book.Asks) > 0 {
		ask := book.BestAsk()
		qty := book.BestAskQuantity()
		contract.AskPrice = &ask
		contract.AskQuantity = &qty
	}
	return true
}

// RefreshFromBulk updates all contracts from one bulk ticker fetch.
func (s *Service) RefreshFromBulk(ctx context.Context, contracts []*models.OptionContract) (int, error) {
	tickers, err := s.gateway.BulkTickers(ctx)
	if err != nil {
		return 0, err
	}
	return s.normalizer.UpdateAll(contracts, tickers), nil
}

// SelectButterfly assembles the iron butterfly legs from a chain using
// the configured strike distance. A nil result means no complete
// structure exists and no trade should happen.
func (s *Service) SelectButterfly(chain []*models.OptionContract, reference decimal.Decimal) *Butterfly {
	butterfly := AssembleButterfly(chain, reference, s.cfg.Strategy.StrikeDistance)
	if butterfly == nil {
		s.log.WithComponent("market_service").WithFields(logger.Fields{
			"reference":       reference.String(),
			"strike_distance": s.cfg.Strategy.StrikeDistance,
			"chain_size":      len(chain),
		}).Warn("incomplete butterfly structure, no trade")
		return nil
	}

	s.log.WithComponent("market_service").WithFields(logger.Fields{
		"atm_call":  butterfly.ATMCall.Symbol,
		"atm_put":   butterfly.ATMPut.Symbol,
		"wing_call": butterfly.WingCall.Symbol,
		"wing_put":  butterfly.WingPut.Symbol,
	}).Info("assembled butterfly structure")
	return butterfly
}

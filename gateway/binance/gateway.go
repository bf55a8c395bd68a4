// Package binance is the exchange gateway. It translates domain operations
// into exchange HTTP calls and returns raw validated payloads; turning
// those payloads into canonical entities is the normalizer's concern.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"optionflow/config"
	ratemetrics "optionflow/internal/metrics/rate"
	"optionflow/internal/retry"
	"optionflow/logger"
	"optionflow/models"
)

const (
	pathTicker       = "/eapi/v1/ticker"
	pathTicker24h    = "/eapi/v1/ticker/24hr"
	pathExchangeInfo = "/eapi/v1/exchangeInfo"
	pathDepth        = "/eapi/v1/depth"
	pathOrder        = "/eapi/v1/order"
)

// Gateway issues HTTP calls against the options and futures APIs. Every
// operation routes through the retry executor; the gateway itself carries
// no retry loops.
type Gateway struct {
	cfg         *config.Config
	httpClient  *http.Client
	futures     *futures.Client
	retrier     *retry.Executor
	limiter     *rate.Limiter
	chain       ChainSource
	log         *logger.Log
	weightLimit int64
}

// NewGateway builds a Gateway with an explicitly constructed transport
// using the configured connection pool settings.
func NewGateway(cfg *config.Config) *Gateway {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Exchange.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Exchange.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Exchange.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Exchange.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Client.Timeout,
	}

	futuresClient := futures.NewClient("", "")
	futuresClient.HTTPClient = httpClient
	if parsed, err := url.Parse(cfg.Exchange.FuturesAPIURL); err == nil && parsed.Host != "" {
		futuresClient.SetApiEndpoint(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
	}

	limit := rate.Inf
	burst := 1
	if cfg.Exchange.RateLimit.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Exchange.RateLimit.RequestsPerSecond)
		burst = cfg.Exchange.RateLimit.BurstSize
		if burst <= 0 {
			burst = cfg.Exchange.RateLimit.RequestsPerSecond
		}
	}

	g := &Gateway{
		cfg:        cfg,
		httpClient: httpClient,
		futures:    futuresClient,
		retrier:    retry.NewExecutor(cfg.Client.Retry),
		limiter:    rate.NewLimiter(limit, burst),
		log:        log,
	}
	g.chain = newChainSource(g, cfg.Exchange.ChainSource)

	log.WithComponent("options_gateway").WithFields(logger.Fields{
		"options_api":        cfg.Exchange.OptionsAPIURL,
		"futures_api":        cfg.Exchange.FuturesAPIURL,
		"chain_source":       g.chain.Name(),
		"max_idle_conns":     cfg.Exchange.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.Exchange.ConnectionPool.MaxConnsPerHost,
		"timeout":            cfg.Client.Timeout,
	}).Info("options gateway initialized")

	return g
}

// Init fetches the request weight limit used for usage reporting. Failure
// is not fatal; reporting simply runs without a known limit.
func (g *Gateway) Init(ctx context.Context) {
	if !g.cfg.Metrics.UsedWeight {
		return
	}
	if limit, err := ratemetrics.FetchRequestWeightLimit(ctx, g.futures); err == nil {
		g.weightLimit = limit
	} else {
		g.log.WithComponent("options_gateway").WithError(err).Warn("failed to fetch request weight limit")
	}
}

// ReferencePrice fetches the current futures price of the underlying.
func (g *Gateway) ReferencePrice(ctx context.Context) (decimal.Decimal, error) {
	symbol := g.cfg.Exchange.ReferenceSymbol()
	return retry.Do(ctx, g.retrier, "getReferencePrice", func() (decimal.Decimal, error) {
		prices, err := g.futures.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return decimal.Zero, &models.UpstreamError{Operation: "getReferencePrice", Err: err}
		}
		if len(prices) == 0 || prices[0].Price == "" {
			return decimal.Zero, &models.UpstreamError{
				Operation: "getReferencePrice",
				Err:       fmt.Errorf("no price in ticker response for %s", symbol),
			}
		}
		price, err := decimal.NewFromString(prices[0].Price)
		if err != nil {
			return decimal.Zero, &models.UpstreamError{Operation: "getReferencePrice", Err: err}
		}
		g.log.WithComponent("options_gateway").WithFields(logger.Fields{
			"symbol": symbol,
			"price":  price.String(),
		}).Info("retrieved reference price")
		return price, nil
	})
}

// OptionsChain fetches the raw chain records for the configured base asset
// and the given expiry. Zero matches is a valid outcome, not an error: the
// expiry may simply have no listings.
func (g *Gateway) OptionsChain(ctx context.Context, expiry time.Time) ([]models.OptionTicker, error) {
	expiryStr := expiry.Format(models.SymbolExpiryLayout)
	prefix := g.cfg.Exchange.BaseAsset + "-"

	return retry.Do(ctx, g.retrier, "getOptionsChain", func() ([]models.OptionTicker, error) {
		records, err := g.chain.Fetch(ctx)
		if err != nil {
			return nil, err
		}

		matched := make([]models.OptionTicker, 0, len(records))
		for _, rec := range records {
			if strings.HasPrefix(rec.Symbol, prefix) && strings.Contains(rec.Symbol, expiryStr) {
				matched = append(matched, rec)
			}
		}

		g.log.WithComponent("options_gateway").WithFields(logger.Fields{
			"expiry":  expiry.Format(time.DateOnly),
			"matched": len(matched),
			"total":   len(records),
			"source":  g.chain.Name(),
		}).Info("retrieved options chain")

		if len(matched) == 0 {
			g.sampleSymbols(records, prefix)
		}
		return matched, nil
	})
}

// sampleSymbols logs a few listed symbols for the base asset, to help
// diagnose an empty chain.
func (g *Gateway) sampleSymbols(records []models.OptionTicker, prefix string) {
	count := 0
	for _, rec := range records {
		if strings.HasPrefix(rec.Symbol, prefix) && count < 5 {
			g.log.WithComponent("options_gateway").WithFields(logger.Fields{
				"symbol": rec.Symbol,
			}).Warn("sample listed symbol")
			count++
		}
	}
}

// AllSymbols fetches the full raw listing for expiry extraction.
func (g *Gateway) AllSymbols(ctx context.Context) ([]models.OptionTicker, error) {
	return retry.Do(ctx, g.retrier, "getAvailableExpiries", func() ([]models.OptionTicker, error) {
		return g.chain.Fetch(ctx)
	})
}

// BulkTickers fetches the richer 24h ticker for every listed option, used
// for batch pricing refresh.
func (g *Gateway) BulkTickers(ctx context.Context) ([]models.OptionTicker, error) {
	return retry.Do(ctx, g.retrier, "getBulkTickers", func() ([]models.OptionTicker, error) {
		body, err := g.get(ctx, pathTicker24h, nil, "getBulkTickers")
		if err != nil {
			return nil, err
		}
		var tickers []models.OptionTicker
		if err := json.Unmarshal(body, &tickers); err != nil {
			return nil, &models.UpstreamError{Operation: "getBulkTickers", Err: fmt.Errorf("expected array response: %w", err)}
		}
		logger.IncrementTickerRefresh(len(body))
		return tickers, nil
	})
}

// SingleTicker fetches the current pricing ticker for one symbol.
func (g *Gateway) SingleTicker(ctx context.Context, symbol string) (models.OptionTicker, error) {
	return retry.Do(ctx, g.retrier, "getTicker", func() (models.OptionTicker, error) {
		query := url.Values{}
		query.Set("symbol", symbol)
		body, err := g.get(ctx, pathTicker, query, "getTicker")
		if err != nil {
			return models.OptionTicker{}, err
		}

		// The exchange answers with an object for a single symbol but an
		// array when the filter is dropped; accept both.
		var ticker models.OptionTicker
		if err := json.Unmarshal(body, &ticker); err == nil && ticker.Symbol != "" {
			return ticker, nil
		}
		var tickers []models.OptionTicker
		if err := json.Unmarshal(body, &tickers); err == nil && len(tickers) > 0 {
			return tickers[0], nil
		}
		return models.OptionTicker{}, &models.UpstreamError{
			Operation: "getTicker",
			Err:       fmt.Errorf("no ticker entry for %s", symbol),
		}
	})
}

// OrderBook fetches the raw depth payload for a symbol, top `depth` levels
// per side.
func (g *Gateway) OrderBook(ctx context.Context, symbol string, depth int) ([]byte, error) {
	return retry.Do(ctx, g.retrier, "getOrderBook", func() ([]byte, error) {
		query := url.Values{}
		query.Set("symbol", symbol)
		query.Set("limit", strconv.Itoa(depth))

		start := time.Now()
		body, err := g.get(ctx, pathDepth, query, "getOrderBook")
		if err != nil {
			return nil, err
		}
		logger.LogPerformanceEntry(g.log.WithComponent("options_gateway"), "options_gateway", "depth_request", time.Since(start), logger.Fields{
			"symbol": symbol,
		})
		logger.IncrementDepthFetch(len(body))
		return body, nil
	})
}

// SubmitOrder posts a signed order body. The body must already be the
// exact canonicalized query string the signature was computed over.
func (g *Gateway) SubmitOrder(ctx context.Context, encodedBody, signature string) ([]byte, error) {
	return retry.Do(ctx, g.retrier, "placeOrder", func() ([]byte, error) {
		return g.signedCall(ctx, http.MethodPost, encodedBody, signature, "placeOrder")
	})
}

// CancelOrder sends a signed cancellation body.
func (g *Gateway) CancelOrder(ctx context.Context, encodedBody, signature string) ([]byte, error) {
	return retry.Do(ctx, g.retrier, "cancelOrder", func() ([]byte, error) {
		return g.signedCall(ctx, http.MethodDelete, encodedBody, signature, "cancelOrder")
	})
}

func (g *Gateway) signedCall(ctx context.Context, method, encodedBody, signature, op string) ([]byte, error) {
	if g.cfg.Exchange.APIKey == "" {
		return nil, &models.ConfigurationError{Field: "api_key"}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reqURL := g.cfg.Exchange.OptionsAPIURL + pathOrder
	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(encodedBody))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-MBX-APIKEY", g.cfg.Exchange.APIKey)
	req.Header.Set("signature", signature)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.UpstreamError{Operation: op, Err: err}
	}

	ratemetrics.ReportUsedWeight(g.log, resp.Header, g.weightLimit)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Exchange error body is preserved verbatim for the caller.
		return nil, &models.OrderError{Operation: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// get performs one rate limited GET against the options API and returns
// the body on 2xx, or an UpstreamError carrying the response body.
func (g *Gateway) get(ctx context.Context, path string, query url.Values, op string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reqURL := g.cfg.Exchange.OptionsAPIURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.UpstreamError{Operation: op, Err: err}
	}

	ratemetrics.ReportUsedWeight(g.log, resp.Header, g.weightLimit)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.UpstreamError{Operation: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

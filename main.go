package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"optionflow/config"
	"optionflow/gateway/binance"
	"optionflow/logger"
	"optionflow/market"
	"optionflow/models"
	"optionflow/orders"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Optionflow.Name,
		"version": cfg.Optionflow.Version,
	}).Info("starting optionflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutdown signal received")
		cancel()
	}()

	if region := os.Getenv("AWS_REGION"); region != "" && cfg.Metrics.SystemUsage {
		logger.InitCloudWatch(region, "OptionFlow", cfg.Logging.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	gw := binance.NewGateway(cfg)
	gw.Init(ctx)
	svc := market.NewService(gw, cfg)
	mgr := orders.NewManager(gw, cfg)

	if err := runScan(ctx, cfg, svc, mgr, log); err != nil {
		log.WithError(err).Error("scan cycle failed")
		os.Exit(1)
	}
}

// runScan executes one full cycle: reference price, nearest expiry, chain
// fetch, pricing refresh, butterfly selection, then order placement when
// enabled.
func runScan(ctx context.Context, cfg *config.Config, svc *market.Service, mgr *orders.Manager, log *logger.Log) error {
	reference, err := svc.ReferencePrice(ctx)
	if err != nil {
		return err
	}

	expiry, err := svc.CurrentOrNextExpiry(ctx)
	if err != nil {
		return err
	}

	chain, err := svc.Chain(ctx, expiry)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		log.WithFields(logger.Fields{
			"expiry": expiry.Format(time.DateOnly),
		}).Warn("empty chain for resolved expiry, nothing to do")
		return nil
	}

	refreshed := svc.RefreshPricing(ctx, chain)
	log.WithFields(logger.Fields{
		"expiry":    expiry.Format(time.DateOnly),
		"contracts": len(chain),
		"refreshed": refreshed,
	}).Info("chain ready")

	butterfly := svc.SelectButterfly(chain, reference)
	if butterfly == nil {
		return nil
	}

	if !cfg.Strategy.PlaceOrders {
		log.Info("order placement disabled, scan complete")
		return nil
	}
	return placeLegs(ctx, cfg, mgr, butterfly, log)
}

// placeLegs submits the four butterfly legs: short straddle at the money,
// long protective wings. Short legs quote at the bid, long legs at the
// ask; a leg with no usable price is skipped, not defaulted.
func placeLegs(ctx context.Context, cfg *config.Config, mgr *orders.Manager, b *market.Butterfly, log *logger.Log) error {
	quantity, err := decimal.NewFromString(cfg.Strategy.Quantity)
	if err != nil {
		return &models.ConfigurationError{Field: "strategy.quantity"}
	}

	legs := []struct {
		contract *models.OptionContract
		side     models.OrderSide
		price    *decimal.Decimal
	}{
		{b.ATMCall, models.OrderSideSell, b.ATMCall.BidPrice},
		{b.ATMPut, models.OrderSideSell, b.ATMPut.BidPrice},
		{b.WingCall, models.OrderSideBuy, b.WingCall.AskPrice},
		{b.WingPut, models.OrderSideBuy, b.WingPut.AskPrice},
	}

	for _, leg := range legs {
		if leg.price == nil {
			log.WithFields(logger.Fields{
				"symbol": leg.contract.Symbol,
				"side":   leg.side,
			}).Warn("leg has no usable price, skipping")
			continue
		}

		resp, err := mgr.Place(ctx, models.OrderRequest{
			Symbol:   leg.contract.Symbol,
			Side:     leg.side,
			Type:     models.OrderTypeLimit,
			Quantity: quantity,
			Price:    leg.price,
		})
		if err != nil {
			return err
		}
		log.WithFields(logger.Fields{
			"symbol":   resp.Symbol,
			"side":     leg.side,
			"order_id": resp.OrderID,
			"status":   resp.Status,
		}).Info("butterfly leg submitted")
	}
	return nil
}

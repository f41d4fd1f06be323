package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/config"
	"github.com/stockwallet/backend/internal/domain"
	"github.com/stockwallet/backend/internal/infrastructure/logger"
	"github.com/stockwallet/backend/internal/infrastructure/pricefeed"
	"github.com/stockwallet/backend/internal/infrastructure/storage"
	"github.com/stockwallet/backend/internal/usecase"
	"github.com/stockwallet/backend/internal/web"
)

// dataStore is what every storage driver provides.
type dataStore interface {
	domain.EventStore
	domain.ReferenceDirectory
	domain.PortfolioRepository
	domain.BrokerRepository
	domain.PriceHistoryStore
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Init Storage
	var store dataStore
	switch cfg.Storage.Driver {
	case "postgres":
		store, err = storage.NewPostgresStore(ctx, cfg.Storage.DSN)
	case "memory":
		store = storage.NewMemoryStore()
	default:
		store, err = storage.NewSQLiteStore(cfg.Storage.Path)
	}
	if err != nil {
		log.Fatal("Failed to init storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	// 4. Init Price Feed
	priceCache := pricefeed.NewCache()
	var latest pricefeed.LatestProvider
	var history domain.HistoryProvider
	if cfg.Prices.Provider == "alpaca" || cfg.Prices.Provider == "both" {
		alpaca := pricefeed.NewAlpacaProvider()
		latest = alpaca
		history = alpaca
	}
	prices := pricefeed.NewSource(priceCache, latest, store, log)

	// 5. Init Services
	ledger := usecase.NewLedgerService(store, store, store, prices, log)
	perf := usecase.NewPerformanceService(store, store, prices, log)

	// 6. Background refresh of daily bars and cached positions
	refresher := usecase.NewRefresher(store, store, history, ledger,
		time.Duration(cfg.Refresh.IntervalHours)*time.Hour, log)
	go refresher.Run(ctx)

	// 7. Live quote stream
	if cfg.Prices.Provider == "stream" || cfg.Prices.Provider == "both" {
		symbols, err := store.DistinctSymbols(ctx, "")
		if err != nil {
			log.Error("Failed to list symbols for streaming", zap.Error(err))
		}
		streamer := pricefeed.NewStreamer(cfg.Prices.StreamURL, cfg.Prices.SymbolSuffix, symbols, priceCache, log)
		go streamer.Run(ctx)
	}

	// 8. Web Server
	server := web.NewServer(cfg.Server.Port, ledger, perf, store, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
}

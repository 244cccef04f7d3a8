package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintracker/internal/config"
	"fintracker/internal/database"
	"fintracker/internal/feeds"
	"fintracker/internal/handlers"
	"fintracker/internal/service"
	"fintracker/internal/valuation"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := initDB(cfg.Database)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	registry, err := feeds.LoadRegistry(cfg.Feeds.CoinsFile)
	if err != nil {
		logger.Fatalf("coin registry: %v", err)
	}

	r := database.New(db, logger)
	fb := valuation.Fallbacks{TWDPerUSD: cfg.Rates.FallbackTWDPerUSD, TWDPerAUD: cfg.Rates.FallbackTWDPerAUD}

	refresher := service.NewRefresher(r,
		feeds.NewCoinGecko(cfg.Feeds.CoinGeckoBaseURL, registry, cfg.Feeds.HTTPTimeout),
		[]service.RateSource{
			feeds.NewBitopro(cfg.Feeds.BitoproBaseURL, cfg.Feeds.HTTPTimeout),
			feeds.NewMAX(cfg.Feeds.MAXBaseURL, cfg.Feeds.HTTPTimeout),
			feeds.NewBankOfTaiwan(cfg.Feeds.BankOfTaiwanURL, cfg.Feeds.HTTPTimeout),
		},
		registry.Symbols(),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refresher.Start(ctx, cfg.Feeds.RefreshInterval, cfg.Feeds.RefreshOnStartup)

	h := handlers.NewHandler(handlers.Services{
		PnL:       service.NewPnLService(r, r, r, fb, logger),
		Breakdown: service.NewBreakdownService(r, r, r, r, fb, logger),
		Positions: service.NewPositionService(r, r, r, fb, logger),
		Accounts:  service.NewAccountService(r, logger),
		Inventory: service.NewInventoryService(r, logger),
		Refresher: refresher,
	}, logger)

	rg := gin.Default()
	h.Register(rg)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: rg}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("server shutdown: %v", err)
		}
	}()

	logger.Infof("server starting on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server: %v", err)
	}
}

func initDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	return db, nil
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/config"
	"github.com/meridianpay/payments/internal/infrastructure/crypto"
	"github.com/meridianpay/payments/internal/infrastructure/database"
	httpServer "github.com/meridianpay/payments/internal/infrastructure/http"
	"github.com/meridianpay/payments/internal/infrastructure/provider/chain"
	"github.com/meridianpay/payments/internal/infrastructure/provider/paypal"
	"github.com/meridianpay/payments/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, logger)

	// Field-level encryption for CVVs, wallet addresses and provider IDs
	encryption, err := crypto.NewAESEncryptionService(cfg.Service.EncryptionKey)
	if err != nil {
		logger.Fatal("Failed to initialize encryption", zap.Error(err))
	}

	// Provider clients
	rates := chain.NewRateSource(cfg.Crypto.RateSourceURL, cfg.Crypto.RequestTimeout, logger)
	explorer := chain.NewExplorer(cfg.Crypto.ExplorerURL, cfg.Crypto.ExplorerAPIKey, cfg.Crypto.RequestTimeout, logger)
	paypalClient := paypal.NewClient(cfg.Paypal.BaseURL, cfg.Paypal.ClientID, cfg.Paypal.ClientSecret, cfg.Paypal.RequestTimeout, logger)

	cryptoConfig, err := cryptoServiceConfig(&cfg.Crypto)
	if err != nil {
		logger.Fatal("Invalid crypto configuration", zap.Error(err))
	}

	// Use cases
	ledger := usecase.NewLedgerService(repos.Account, repos.Audit, logger)
	transactions := usecase.NewTransactionService(repos.Transaction, repos.Audit, logger)
	tokens := usecase.NewTokenService(repos.CardToken, repos.Card, encryption, logger)
	cryptoPayments := usecase.NewCryptoService(repos.Crypto, repos.MerchantWallet, repos.Audit,
		rates, explorer, encryption, cryptoConfig, logger)
	paypalOrders := usecase.NewPaypalService(repos.Paypal, repos.Audit, paypalClient, encryption, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background sweeper
	sweeper := usecase.NewSweeper(ledger, transactions, tokens, cryptoPayments,
		repos.Transaction,
		usecase.SweeperConfig{
			Interval:       cfg.Sweeper.Interval,
			CaptureAge:     cfg.Sweeper.CaptureAge,
			BatchSize:      cfg.Sweeper.BatchSize,
			CryptoPolling:  cfg.Sweeper.CryptoPolling,
			TokenSweeping:  cfg.Sweeper.TokenSweeping,
			ExpireSweeping: cfg.Sweeper.ExpireSweeping,
		}, logger)
	go sweeper.Run(ctx)

	// HTTP server
	httpSrv := httpServer.NewServer(cfg, logger, &httpServer.Services{
		Ledger:       ledger,
		Transactions: transactions,
		Tokens:       tokens,
		Crypto:       cryptoPayments,
		Paypal:       paypalOrders,
	})

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	// Stop the sweeper first, then drain the HTTP server
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

func cryptoServiceConfig(cfg *config.CryptoConfig) (usecase.CryptoConfig, error) {
	fallbackRate, err := decimal.NewFromString(cfg.FallbackRate)
	if err != nil {
		return usecase.CryptoConfig{}, err
	}
	tolerance, err := decimal.NewFromString(cfg.AmountTolerancePct)
	if err != nil {
		return usecase.CryptoConfig{}, err
	}
	return usecase.CryptoConfig{
		Asset:                 cfg.Asset,
		FallbackRate:          fallbackRate,
		AmountTolerancePct:    tolerance,
		ConfirmationThreshold: cfg.ConfirmationThreshold,
		PaymentExpiry:         cfg.PaymentExpiry,
	}, nil
}

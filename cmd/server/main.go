package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmertens/fund-accounting-engine/internal/api"
	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/brokerage"
	"github.com/jmertens/fund-accounting-engine/internal/config"
	"github.com/jmertens/fund-accounting-engine/internal/database"
	"github.com/jmertens/fund-accounting-engine/internal/logger"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
	"github.com/jmertens/fund-accounting-engine/internal/scheduler"
	"github.com/jmertens/fund-accounting-engine/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Brokerage.FernetKey == "" {
		log.Fatal("BROKERAGE_FERNET_KEY is required")
	}

	zlog := logger.New(cfg.Log)

	// Open database connection and apply migrations
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		zlog.Fatal().Err(err).Msg("failed to apply migrations")
	}
	zlog.Info().Str("path", cfg.Database.Path).Msg("database ready")

	// Create repositories
	investorRepo := repository.NewInvestorRepository(db)
	navRepo := repository.NewNavRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	taxRepo := repository.NewTaxEventRepository(db)
	flowRepo := repository.NewFundFlowRepository(db)
	rawRepo := repository.NewRawTransactionRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	providerRepo, err := repository.NewProviderConfigRepository(db, cfg.Brokerage.FernetKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid fernet key")
	}

	// Build the valuation source registry from stored provider credentials
	registry := buildRegistry(providerRepo, zlog)

	// Create services
	systemService := service.NewSystemService(db, providerRepo)
	taxService := service.NewTaxService(taxRepo, cfg.Tax)
	investorService := service.NewInvestorService(investorRepo, navRepo, taxService)
	navService := service.NewNavService(navRepo, investorRepo, registry, cfg.Brokerage.DefaultSource, zlog)
	ledgerService := service.NewLedgerService(db, ledgerRepo, investorRepo, taxRepo, taxService, zlog)
	fundFlowService := service.NewFundFlowService(db, flowRepo, investorRepo, rawRepo, navRepo, ledgerService, taxService, zlog)
	etlService := service.NewEtlService(registry, rawRepo, tradeRepo, zlog)

	// Create router
	router := api.NewRouter(api.Services{
		System:   systemService,
		Investor: investorService,
		Nav:      navService,
		Ledger:   ledgerService,
		Tax:      taxService,
		FundFlow: fundFlowService,
		Etl:      etlService,
	}, cfg, zlog)

	// Start the cron scheduler
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, navService, etlService, zlog)
		if err != nil {
			zlog.Fatal().Err(err).Msg("invalid scheduler configuration")
		}
		sched.Start()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zlog.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("shutting down server")

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zlog.Info().Msg("server exited")
}

// buildRegistry instantiates a source for every stored, enabled provider
// configuration. Missing or disabled providers are skipped; the engine still
// serves everything that does not need a live brokerage connection.
func buildRegistry(providerRepo *repository.ProviderConfigRepository, zlog zerolog.Logger) *brokerage.Registry {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var sources []brokerage.Source
	for _, name := range []string{"ibkr", "alpaca"} {
		pc, err := providerRepo.Get(ctx, name)
		if errors.Is(err, apperrors.ErrProviderConfigNotFound) {
			zlog.Debug().Str("source", name).Msg("no provider configuration stored")
			continue
		}
		if err != nil {
			zlog.Error().Err(err).Str("source", name).Msg("failed to load provider configuration")
			continue
		}
		if !pc.Enabled {
			zlog.Info().Str("source", name).Msg("provider disabled")
			continue
		}

		switch name {
		case "ibkr":
			sources = append(sources, brokerage.NewIbkrSource(pc.Token, pc.QueryID))
		case "alpaca":
			// QueryID doubles as the Alpaca account ID.
			sources = append(sources, brokerage.NewAlpacaSource(pc.QueryID, pc.Token))
		}
		zlog.Info().Str("source", name).Msg("valuation source registered")
	}

	return brokerage.NewRegistry(sources...)
}

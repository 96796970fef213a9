package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jmertens/fund-accounting-engine/internal/api/handlers"
	custommiddleware "github.com/jmertens/fund-accounting-engine/internal/api/middleware"
	"github.com/jmertens/fund-accounting-engine/internal/config"
	"github.com/jmertens/fund-accounting-engine/internal/service"
)

// Services bundles the engine services the router exposes.
type Services struct {
	System   *service.SystemService
	Investor *service.InvestorService
	Nav      *service.NavService
	Ledger   *service.LedgerService
	Tax      *service.TaxService
	FundFlow *service.FundFlowService
	Etl      *service.EtlService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Route("/provider/{source}", func(r chi.Router) {
				r.Put("/", systemHandler.UpsertProviderConfig)
				r.Get("/", systemHandler.GetProviderConfig)
			})
		})

		r.Route("/investor", func(r chi.Router) {
			investorHandler := handlers.NewInvestorHandler(svc.Investor, svc.Ledger, svc.Tax)
			r.Get("/", investorHandler.Investors)
			r.Post("/", investorHandler.CreateInvestor)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", investorHandler.Investor)
				r.Get("/eligible-withdrawal", investorHandler.EligibleWithdrawal)
				r.Get("/ledger", investorHandler.InvestorLedger)
				r.Get("/tax-events", investorHandler.InvestorTaxEvents)
			})
		})

		r.Route("/nav", func(r chi.Router) {
			navHandler := handlers.NewNavHandler(svc.Nav, svc.Tax)
			r.Get("/", navHandler.AsOf)
			r.Post("/compute", navHandler.Compute)
			r.Get("/history", navHandler.History)
			r.Put("/{date}", navHandler.AdminUpdate)
		})

		r.Route("/tax", func(r chi.Router) {
			navHandler := handlers.NewNavHandler(svc.Nav, svc.Tax)
			r.Get("/quarterly", navHandler.QuarterlyTaxSummary)
		})

		r.Route("/ledger", func(r chi.Router) {
			ledgerHandler := handlers.NewLedgerHandler(svc.Ledger, svc.Nav)
			r.Post("/", ledgerHandler.Post)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", ledgerHandler.Get)
				r.Post("/reverse", ledgerHandler.Reverse)
			})
		})

		r.Route("/fund-flow", func(r chi.Router) {
			fundFlowHandler := handlers.NewFundFlowHandler(svc.FundFlow)
			r.Get("/", fundFlowHandler.ListByStatus)
			r.Post("/", fundFlowHandler.Submit)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", fundFlowHandler.Get)
				r.Post("/approve", fundFlowHandler.Approve)
				r.Post("/reject", fundFlowHandler.Reject)
				r.Post("/await-funds", fundFlowHandler.AwaitFunds)
				r.Post("/match", fundFlowHandler.Match)
				r.Post("/process", fundFlowHandler.Process)
				r.Post("/cancel", fundFlowHandler.Cancel)
			})
		})

		r.Route("/etl", func(r chi.Router) {
			etlHandler := handlers.NewEtlHandler(svc.Etl)
			r.Post("/run", etlHandler.Run)
		})
	})

	return r
}

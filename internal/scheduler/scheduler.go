// Package scheduler runs the engine's recurring jobs in-process: the daily NAV
// valuation and the periodic brokerage reconciliation refresh.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/config"
	"github.com/jmertens/fund-accounting-engine/internal/service"
)

// Scheduler owns the cron runner. Job failures are logged and swallowed; a bad
// valuation day must not take the server down.
type Scheduler struct {
	cron *cron.Cron
	cfg  config.SchedulerConfig
	nav  *service.NavService
	etl  *service.EtlService
	log  zerolog.Logger
}

// New creates a Scheduler with the provided dependencies. Jobs are registered
// but not started.
func New(cfg config.SchedulerConfig, nav *service.NavService, etl *service.EtlService, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		cfg:  cfg,
		nav:  nav,
		etl:  etl,
		log:  log,
	}

	if _, err := s.cron.AddFunc(cfg.NavSpec, s.runNav); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.EtlSpec, s.runEtl); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins executing jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Str("nav_spec", s.cfg.NavSpec).
		Str("etl_spec", s.cfg.EtlSpec).
		Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runNav() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	record, err := s.nav.ComputeAndStore(ctx, today)
	if errors.Is(err, apperrors.ErrDuplicateNavDate) {
		s.log.Debug().Str("date", today.Format("2006-01-02")).Msg("nav already published for today")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled nav run failed")
		return
	}
	s.log.Info().
		Str("date", today.Format("2006-01-02")).
		Str("nav_per_share", record.NavPerShare.String()).
		Msg("scheduled nav run complete")
}

func (s *Scheduler) runEtl() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -s.cfg.EtlWindowDays)

	result, err := s.etl.RunAll(ctx, start, end)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled etl run failed")
		return
	}
	s.log.Info().
		Int("inserted", result.Inserted).
		Int("transformed", result.Transformed).
		Int("loaded", result.Loaded).
		Int("errors", len(result.Errors)).
		Msg("scheduled etl run complete")
}

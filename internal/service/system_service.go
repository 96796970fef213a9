package service

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/jmertens/fund-accounting-engine/internal/database"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// SystemService exposes operational endpoints: liveness, build info and
// brokerage provider configuration.
type SystemService struct {
	db           *sql.DB
	providerRepo *repository.ProviderConfigRepository
}

// NewSystemService creates a new SystemService with the provided dependencies.
func NewSystemService(db *sql.DB, providerRepo *repository.ProviderConfigRepository) *SystemService {
	return &SystemService{db: db, providerRepo: providerRepo}
}

// Health verifies database connectivity.
func (s *SystemService) Health() error {
	return database.HealthCheck(s.db)
}

// Version returns the running build's identity.
func (s *SystemService) Version() model.VersionInfo {
	return model.VersionInfo{Version: Version, GoVersion: runtime.Version()}
}

// UpsertProviderConfig stores brokerage credentials; the token is encrypted at
// rest by the repository.
func (s *SystemService) UpsertProviderConfig(ctx context.Context, cfg *model.ProviderConfig) error {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	return s.providerRepo.Upsert(ctx, cfg)
}

// GetProviderConfig returns the stored configuration for one source with the
// token decrypted.
func (s *SystemService) GetProviderConfig(ctx context.Context, source string) (*model.ProviderConfig, error) {
	return s.providerRepo.Get(ctx, source)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// ProviderConfigRepository stores brokerage provider credentials. API tokens are
// fernet-encrypted before they touch the database and decrypted on read.
type ProviderConfigRepository struct {
	db  *sql.DB
	key *fernet.Key
}

// NewProviderConfigRepository creates a repository using the given fernet key
// (base64, 32 bytes) for token encryption.
func NewProviderConfigRepository(db *sql.DB, fernetKey string) (*ProviderConfigRepository, error) {
	key, err := fernet.DecodeKey(fernetKey)
	if err != nil {
		return nil, fmt.Errorf("invalid fernet key: %w", err)
	}
	return &ProviderConfigRepository{db: db, key: key}, nil
}

// Upsert stores or replaces a provider's configuration.
func (r *ProviderConfigRepository) Upsert(ctx context.Context, cfg *model.ProviderConfig) error {
	encrypted, err := fernet.EncryptAndSign([]byte(cfg.Token), r.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt provider token: %w", err)
	}

	var expiresAt any
	if cfg.TokenExpiresAt != nil {
		expiresAt = cfg.TokenExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}

	query := `
		INSERT INTO provider_config (source, token_encrypted, query_id, token_expires_at, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			token_encrypted = excluded.token_encrypted,
			query_id = excluded.query_id,
			token_expires_at = excluded.token_expires_at,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	_, err = r.db.ExecContext(ctx, query,
		cfg.Source, string(encrypted), nullable(cfg.QueryID), expiresAt, cfg.Enabled, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert provider config: %w", err)
	}
	return nil
}

// Get retrieves a provider's configuration with the token decrypted.
func (r *ProviderConfigRepository) Get(ctx context.Context, source string) (*model.ProviderConfig, error) {
	query := `
		SELECT source, token_encrypted, query_id, token_expires_at, enabled, created_at, updated_at
		FROM provider_config
		WHERE source = ?
	`
	var cfg model.ProviderConfig
	var encrypted string
	var queryID, expiresAtStr sql.NullString
	var createdAtStr, updatedAtStr string

	err := r.db.QueryRowContext(ctx, query, source).Scan(
		&cfg.Source, &encrypted, &queryID, &expiresAtStr, &cfg.Enabled, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrProviderConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider_config table results: %w", err)
	}

	token := fernet.VerifyAndDecrypt([]byte(encrypted), 0, []*fernet.Key{r.key})
	if token == nil {
		return nil, fmt.Errorf("failed to decrypt provider token for %s", source)
	}
	cfg.Token = string(token)

	if queryID.Valid {
		cfg.QueryID = queryID.String
	}
	if expiresAtStr.Valid {
		expiresAt, err := ParseTime(expiresAtStr.String)
		if err != nil {
			return nil, err
		}
		cfg.TokenExpiresAt = &expiresAt
	}
	if cfg.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	if cfg.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &cfg, nil
}

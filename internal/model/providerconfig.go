package model

import "time"

// ProviderConfig holds stored credentials and settings for one brokerage
// integration. The API token is encrypted at rest and never serialized.
type ProviderConfig struct {
	Source         string     `json:"source"`
	Token          string     `json:"-"` // decrypted in memory only
	QueryID        string     `json:"queryId,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	TokenWarning   string     `json:"tokenWarning,omitempty"`
	Enabled        bool       `json:"enabled"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

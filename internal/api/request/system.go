package request

// UpsertProviderConfigRequest stores brokerage credentials for one source.
type UpsertProviderConfigRequest struct {
	Token          string `json:"token"`
	QueryID        string `json:"queryId,omitempty"`
	TokenExpiresAt string `json:"tokenExpiresAt,omitempty"` // YYYY-MM-DD
	Enabled        bool   `json:"enabled"`
}

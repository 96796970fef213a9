package request

// RunEtlRequest triggers a reconciliation run over a date window. Source is
// optional; when empty the run covers every registered source.
type RunEtlRequest struct {
	Source    string `json:"source,omitempty"`
	StartDate string `json:"startDate"` // YYYY-MM-DD
	EndDate   string `json:"endDate"`   // YYYY-MM-DD
}

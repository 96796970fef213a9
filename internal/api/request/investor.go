package request

// CreateInvestorRequest registers a new investor.
type CreateInvestorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

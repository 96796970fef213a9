package request

// ComputeNavRequest triggers valuation for one trading date.
type ComputeNavRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, default today
}

// AdminNavUpdateRequest corrects the portfolio value of an existing record.
type AdminNavUpdateRequest struct {
	PortfolioValue string `json:"portfolioValue"`
}

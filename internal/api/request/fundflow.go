package request

// SubmitFundFlowRequest is the payload for submitting a new contribution or
// withdrawal request. Amount is a decimal string to avoid float rounding on
// the wire.
type SubmitFundFlowRequest struct {
	InvestorID    string `json:"investorId"`
	FlowType      string `json:"flowType"` // "contribution" or "withdrawal"
	Amount        string `json:"amount"`
	EffectiveDate string `json:"effectiveDate,omitempty"` // YYYY-MM-DD, default today
}

// MatchFundFlowRequest binds a request to the raw brokerage transaction that
// evidences its cash movement.
type MatchFundFlowRequest struct {
	RawTransactionID string `json:"rawTransactionId"`
}

package request

// PostLedgerEntryRequest is the payload for a direct administrative posting,
// bypassing the fund-flow pipeline. Amount is a positive decimal string; the
// entry's signs follow from kind.
type PostLedgerEntryRequest struct {
	InvestorID  string `json:"investorId"`
	Kind        string `json:"kind"` // initial | contribution | withdrawal
	Amount      string `json:"amount"`
	NavPerShare string `json:"navPerShare,omitempty"` // default: NAV as of date
	Date        string `json:"date,omitempty"`        // YYYY-MM-DD, default today
}

// ReverseLedgerEntryRequest reverses a posted entry.
type ReverseLedgerEntryRequest struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD, default today
}

package model

import "time"

// EtlRowError describes one raw row that failed transformation. The batch
// continues past failed rows; errors are collected for operator review.
type EtlRowError struct {
	RawID                  string `json:"rawId"`
	Source                 string `json:"source"`
	BrokerageTransactionID string `json:"brokerageTransactionId"`
	Error                  string `json:"error"`
}

// EtlResult summarizes one pipeline run. Each stage is independently retryable,
// so counts refer to work done in this run only.
type EtlResult struct {
	Source      string        `json:"source,omitempty"` // empty for multi-source runs
	WindowStart time.Time     `json:"windowStart"`
	WindowEnd   time.Time     `json:"windowEnd"`
	Extracted   int           `json:"extracted"` // raw rows fetched from the source
	Inserted    int           `json:"inserted"`  // raw rows newly ingested (dedupe applied)
	Transformed int           `json:"transformed"`
	Skipped     int           `json:"skipped"`
	Loaded      int           `json:"loaded"`
	Errors      []EtlRowError `json:"errors,omitempty"`
}

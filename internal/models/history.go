package models

import "time"

// HistoryEntry records one successful scan
type HistoryEntry struct {
	Target    string    `json:"target"`
	Kind      Kind      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats holds the persisted scan counters
type Stats struct {
	Total          int `json:"total"`
	Success        int `json:"success"`
	Failed         int `json:"failed"`
	DomainsScanned int `json:"domains"`
}

// Outcome is the final state of a scan as counted by Stats
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

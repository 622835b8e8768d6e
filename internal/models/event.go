package models

import "time"

// ExportDocument is the portable record of one scan
type ExportDocument struct {
	ScanID    string      `json:"scan_id"`
	Target    string      `json:"target"`
	Kind      Kind        `json:"type"`
	Demo      bool        `json:"demo"`
	Data      *ScanResult `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ScanEvent is published after every scan attempt. It never carries payloads.
type ScanEvent struct {
	ScanID    string    `json:"scan_id"`
	Target    string    `json:"target"`
	Kind      Kind      `json:"type"`
	Status    Outcome   `json:"status"`
	Demo      bool      `json:"demo"`
	Warnings  int       `json:"warnings,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

package models

import (
	"encoding/json"

	"github.com/allsafeASM/intel/internal/common"
)

// Result keys as they appear in exported documents
const (
	KeyDomainInfo   = "domainInfo"
	KeyDNSInfo      = "dnsInfo"
	KeySubdomains   = "subdomains"
	KeyWhois        = "whois"
	KeyIPInfo       = "ipInfo"
	KeyIPAssociated = "ipAssociated"
)

// ScanResult holds the raw upstream payload for every sub-query that produced data.
// A nil field means the sub-query failed, returned no data, or was not issued.
type ScanResult struct {
	DomainInfo   json.RawMessage `json:"domainInfo,omitempty"`
	DNSInfo      json.RawMessage `json:"dnsInfo,omitempty"`
	Subdomains   json.RawMessage `json:"subdomains,omitempty"`
	Whois        json.RawMessage `json:"whois,omitempty"`
	IPInfo       json.RawMessage `json:"ipInfo,omitempty"`
	IPAssociated json.RawMessage `json:"ipAssociated,omitempty"`

	Demo     bool                        `json:"demo,omitempty"`
	Warnings []common.PartialDataWarning `json:"warnings,omitempty"`
}

// Get returns the payload stored under a result key
func (r *ScanResult) Get(key string) json.RawMessage {
	if r == nil {
		return nil
	}
	switch key {
	case KeyDomainInfo:
		return r.DomainInfo
	case KeyDNSInfo:
		return r.DNSInfo
	case KeySubdomains:
		return r.Subdomains
	case KeyWhois:
		return r.Whois
	case KeyIPInfo:
		return r.IPInfo
	case KeyIPAssociated:
		return r.IPAssociated
	}
	return nil
}

// Has reports whether the sub-query stored under key produced data
func (r *ScanResult) Has(key string) bool {
	return len(r.Get(key)) > 0
}

// Warn records a non-authoritative sub-query failure
func (r *ScanResult) Warn(key, reason string) {
	r.Warnings = append(r.Warnings, common.PartialDataWarning{Key: key, Reason: reason})
}

package models

import "strings"

// Kind is the type of target a scan runs against
type Kind string

const (
	KindDomain Kind = "domain"
	KindIP     Kind = "ip"
)

// ParseKind maps user input to a Kind. Unknown values are returned as-is
// so the validator can reject them.
func ParseKind(s string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether k is a supported kind
func (k Kind) Valid() bool {
	return k == KindDomain || k == KindIP
}

// ScanTarget is a validated, lowercased domain or IP.
// Only the validation package constructs it from user input.
type ScanTarget struct {
	Value string `json:"target"`
	Kind  Kind   `json:"kind"`
}

func (t ScanTarget) String() string {
	return t.Value
}

// ScanRequest represents one user-initiated scan
type ScanRequest struct {
	Input string `json:"input"`
	Kind  Kind   `json:"kind"`
}

package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/allsafeASM/intel/internal/common"
	"github.com/allsafeASM/intel/internal/models"
)

const maxDomainLength = 253

var (
	domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	ipv4Pattern   = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	ipv6Pattern   = regexp.MustCompile(`^([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}$|^::1$|^(([0-9a-fA-F]{1,4}:)*[0-9a-fA-F]{1,4})?::(([0-9a-fA-F]{1,4}:)*[0-9a-fA-F]{1,4})?$`)
)

// Validator provides all validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// Validate trims raw input, checks it against the grammar for kind and
// returns the lowercased target.
func (v *Validator) Validate(raw string, kind models.Kind) (models.ScanTarget, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return models.ScanTarget{}, common.NewValidationError("target", "missing target")
	}

	switch kind {
	case models.KindDomain:
		if err := v.ValidateDomain(value); err != nil {
			return models.ScanTarget{}, err
		}
	case models.KindIP:
		if err := v.ValidateIP(value); err != nil {
			return models.ScanTarget{}, err
		}
	default:
		return models.ScanTarget{}, common.NewValidationError("type", fmt.Sprintf("unknown scan type %q", kind))
	}

	return models.ScanTarget{Value: strings.ToLower(value), Kind: kind}, nil
}

// ValidateDomain checks a hostname: dot-separated labels of 1-63 characters,
// hyphens only inside a label, alphabetic TLD of at least two characters.
func (v *Validator) ValidateDomain(domain string) error {
	if len(domain) > maxDomainLength {
		return common.NewValidationError("target", "invalid domain: longer than 253 characters")
	}
	if !domainPattern.MatchString(domain) {
		return common.NewValidationError("target", fmt.Sprintf("invalid domain: %q", domain))
	}
	return nil
}

// ValidateIP accepts a dotted-quad IPv4 address with every octet in 0-255,
// or a colon-hex IPv6 address. Group counts in compressed IPv6 forms are not checked.
func (v *Validator) ValidateIP(ip string) error {
	if ipv4Pattern.MatchString(ip) {
		for _, octet := range strings.Split(ip, ".") {
			n, err := strconv.Atoi(octet)
			if err != nil || n > 255 {
				return common.NewValidationError("target", fmt.Sprintf("invalid IP address: octet %q out of range", octet))
			}
		}
		return nil
	}

	if ipv6Pattern.MatchString(ip) {
		return nil
	}

	return common.NewValidationError("target", fmt.Sprintf("invalid IP address: %q", ip))
}

// Validate is a shorthand for NewValidator().Validate
func Validate(raw string, kind models.Kind) (models.ScanTarget, error) {
	return NewValidator().Validate(raw, kind)
}

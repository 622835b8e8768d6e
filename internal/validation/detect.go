package validation

import (
	"strings"

	"github.com/allsafeASM/intel/internal/models"
)

// DetectKind guesses whether pasted input is an IP or a domain.
// Anything that looks like a dotted quad or contains a colon is treated as an IP.
func DetectKind(raw string) models.Kind {
	value := strings.TrimSpace(raw)
	if ipv4Pattern.MatchString(value) || strings.Contains(value, ":") {
		return models.KindIP
	}
	return models.KindDomain
}

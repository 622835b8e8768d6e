package gateway

import (
	"path"
	"regexp"
	"strings"
)

// Rule is a named, anchored pattern for one forwardable upstream path
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// AllowList is the fixed, ordered set of upstream paths the gateway forwards
type AllowList struct {
	rules []Rule
}

// DefaultAllowList returns the SecurityTrails endpoints the scan client uses
func DefaultAllowList() *AllowList {
	return NewAllowList(
		Rule{Name: "ping", Pattern: regexp.MustCompile(`^/ping$`)},
		Rule{Name: "domain", Pattern: regexp.MustCompile(`^/domain/[a-zA-Z0-9.\-]{1,253}$`)},
		Rule{Name: "domain-dns", Pattern: regexp.MustCompile(`^/domain/[a-zA-Z0-9.\-]{1,253}/dns/[a-zA-Z]{1,10}$`)},
		Rule{Name: "domain-subdomains", Pattern: regexp.MustCompile(`^/domain/[a-zA-Z0-9.\-]{1,253}/subdomains$`)},
		Rule{Name: "domain-whois", Pattern: regexp.MustCompile(`^/domain/[a-zA-Z0-9.\-]{1,253}/whois$`)},
		Rule{Name: "ip-nearby", Pattern: regexp.MustCompile(`^/ips/nearby/[\d.:a-fA-F]{3,45}$`)},
		Rule{Name: "ip-domains", Pattern: regexp.MustCompile(`^/ips/[\d.:a-fA-F]{3,45}/domains$`)},
	)
}

// NewAllowList creates an allow-list from rules, matched in order
func NewAllowList(rules ...Rule) *AllowList {
	return &AllowList{rules: rules}
}

// Match returns the first rule that permits p. The query string must already
// be removed. Paths that are not in clean form, such as those with "." or ".."
// segments, never match.
func (a *AllowList) Match(p string) (Rule, bool) {
	if p == "" || hasDotSegment(p) {
		return Rule{}, false
	}

	for _, rule := range a.rules {
		if rule.Pattern.MatchString(p) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the configured rules
func (a *AllowList) Rules() []Rule {
	out := make([]Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

func hasDotSegment(p string) bool {
	if path.Clean(p) != p {
		return true
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

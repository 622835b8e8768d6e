package scan

import (
	"encoding/json"

	"github.com/allsafeASM/intel/internal/models"
)

// DemoResult returns the canned dataset used when no gateway is configured.
// The output depends only on the target, and building it makes no network call.
func DemoResult(target models.ScanTarget) *models.ScanResult {
	result := &models.ScanResult{Demo: true}

	if target.Kind == models.KindDomain {
		t := target.Value
		result.DomainInfo = mustJSON(map[string]interface{}{
			"alexa_rank":  1,
			"apex_domain": t,
			"hostname":    t,
			"current_dns": map[string]interface{}{
				"a": map[string]interface{}{
					"values":     []interface{}{map[string]interface{}{"ip": "93.184.216.34", "ttl": 3600}},
					"first_seen": "2013-01-01",
					"last_seen":  "2024-01-15",
				},
				"aaaa": map[string]interface{}{"values": []interface{}{}},
				"mx": map[string]interface{}{
					"values":     []interface{}{map[string]interface{}{"priority": 10, "value": "mail." + t}},
					"first_seen": "2013-01-01",
					"last_seen":  "2024-01-15",
				},
				"ns": map[string]interface{}{
					"values": []interface{}{
						map[string]interface{}{"nameserver": "ns1." + t},
						map[string]interface{}{"nameserver": "ns2." + t},
					},
					"first_seen": "2013-01-01",
					"last_seen":  "2024-01-15",
				},
				"soa": map[string]interface{}{
					"values":     []interface{}{map[string]interface{}{"email": "hostmaster@" + t, "ttl": 3600}},
					"first_seen": "2013-01-01",
					"last_seen":  "2024-01-15",
				},
				"txt": map[string]interface{}{
					"values": []interface{}{map[string]interface{}{"value": "v=spf1 include:_spf.example.com ~all"}},
				},
			},
		})
		result.DNSInfo = mustJSON(map[string]interface{}{
			"type":  "a",
			"pages": 1,
			"records": []interface{}{
				map[string]interface{}{
					"values":        []interface{}{map[string]interface{}{"ip": "93.184.216.34"}},
					"first_seen":    "2013-01-01",
					"last_seen":     "2024-01-15",
					"organizations": []string{"EDGECAST INC"},
				},
			},
		})
		result.Subdomains = mustJSON(map[string]interface{}{
			"subdomain_count": 42,
			"subdomains":      []string{"www", "mail", "ftp", "api", "blog", "dev", "staging", "cdn"},
		})
		return result
	}

	t := target.Value
	result.IPInfo = mustJSON(map[string]interface{}{
		"blocks": []interface{}{
			map[string]interface{}{
				"network":      t + "/24",
				"cidr":         t + "/24",
				"name":         "EXAMPLE-NET",
				"organization": "Example Org",
				"allocation":   "allocated",
				"created":      "2000-01-01T00:00:00.000Z",
			},
		},
	})
	result.IPAssociated = mustJSON(map[string]interface{}{
		"record_count": 15,
		"pages":        1,
		"records": []interface{}{
			map[string]interface{}{"hostname": "example.com", "whois": map[string]string{"registrar": "MarkMonitor Inc."}},
			map[string]interface{}{"hostname": "example.net", "whois": map[string]string{"registrar": "MarkMonitor Inc."}},
			map[string]interface{}{"hostname": "example.org", "whois": map[string]string{"registrar": "MarkMonitor Inc."}},
		},
	})
	return result
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

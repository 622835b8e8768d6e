package present

import (
	"fmt"
	"strings"
	"time"

	"github.com/allsafeASM/intel/internal/models"
	"github.com/tidwall/gjson"
)

// Category drives the color of a section
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryNotice  Category = "notice"
	CategoryEmpty   Category = "empty"
)

const (
	maxTags     = 20
	placeholder = "-"
)

// Row is one key/value line of a section
type Row struct {
	Key       string
	Value     string
	Highlight bool
}

// Section is one titled block of the rendered report
type Section struct {
	ID       string
	Title    string
	Category Category
	Rows     []Row
	Tags     []string
	Note     string
}

// Present turns a scan result into display sections. It accepts any subset
// of result keys and never fails on sparse or malformed payloads.
func Present(result *models.ScanResult, target models.ScanTarget) []Section {
	var sections []Section
	if result == nil {
		return sections
	}

	if result.Demo {
		sections = append(sections, Section{
			ID:       "demo",
			Title:    "DEMO MODE",
			Category: CategoryNotice,
			Note:     "Showing sample data. Configure a gateway to retrieve live intelligence.",
		})
	}

	switch target.Kind {
	case models.KindDomain:
		sections = append(sections, domainSections(result, target)...)
	case models.KindIP:
		sections = append(sections, ipSections(result, target)...)
	}

	return sections
}

func domainSections(result *models.ScanResult, target models.ScanTarget) []Section {
	info := parse(result.DomainInfo)
	dns := info.Get("current_dns")

	hostname := firstString(target.Value, info.Get("hostname"), info.Get("apex_domain"))
	alexa := "N/A"
	if rank := info.Get("alexa_rank"); rank.Exists() && rank.Int() > 0 {
		alexa = fmt.Sprintf("#%d", rank.Int())
	}

	sections := []Section{{
		ID:       "status",
		Title:    "DOMAIN STATUS",
		Category: CategoryInfo,
		Rows: []Row{
			{Key: "hostname", Value: hostname, Highlight: true},
			{Key: "alexa rank", Value: alexa},
			{Key: "apex domain", Value: firstString(target.Value, info.Get("apex_domain"))},
		},
	}}

	if values := dns.Get("a.values").Array(); len(values) > 0 {
		var rows []Row
		for _, v := range values {
			rows = append(rows, Row{Key: "ip address", Value: orPlaceholder(v.Get("ip").String()), Highlight: true})
		}
		rows = append(rows,
			Row{Key: "first seen", Value: orPlaceholder(dns.Get("a.first_seen").String())},
			Row{Key: "last seen", Value: orPlaceholder(dns.Get("a.last_seen").String())},
			Row{Key: "ttl", Value: seconds(values[0].Get("ttl"))},
		)
		sections = append(sections, Section{ID: "a", Title: "DNS: A RECORDS (IPv4)", Category: CategorySuccess, Rows: rows})
	}

	if values := dns.Get("mx.values").Array(); len(values) > 0 {
		var rows []Row
		for _, v := range values {
			priority := v.Get("priority").Int()
			if priority == 0 {
				priority = 10
			}
			rows = append(rows, Row{Key: fmt.Sprintf("mx %d", priority), Value: firstString(placeholder, v.Get("value"), v.Get("hostname"))})
		}
		rows = append(rows,
			Row{Key: "first seen", Value: orPlaceholder(dns.Get("mx.first_seen").String())},
			Row{Key: "last seen", Value: orPlaceholder(dns.Get("mx.last_seen").String())},
		)
		sections = append(sections, Section{ID: "mx", Title: "DNS: MX RECORDS (MAIL)", Category: CategoryInfo, Rows: rows})
	}

	if values := dns.Get("ns.values").Array(); len(values) > 0 {
		var rows []Row
		for i, v := range values {
			rows = append(rows, Row{Key: fmt.Sprintf("ns%d", i+1), Value: firstString(placeholder, v.Get("nameserver"), v.Get("value"))})
		}
		sections = append(sections, Section{ID: "ns", Title: "DNS: NAMESERVERS", Category: CategoryInfo, Rows: rows})
	}

	if values := dns.Get("txt.values").Array(); len(values) > 0 {
		var rows []Row
		for i, v := range values {
			rows = append(rows, Row{Key: fmt.Sprintf("txt %d", i+1), Value: orPlaceholder(v.Get("value").String())})
		}
		sections = append(sections, Section{ID: "txt", Title: "DNS: TXT RECORDS", Category: CategoryInfo, Rows: rows})
	}

	if values := dns.Get("soa.values").Array(); len(values) > 0 {
		soa := values[0]
		sections = append(sections, Section{
			ID:       "soa",
			Title:    "SOA RECORD",
			Category: CategoryInfo,
			Rows: []Row{
				{Key: "admin email", Value: orPlaceholder(soa.Get("email").String())},
				{Key: "ttl", Value: seconds(soa.Get("ttl"))},
				{Key: "refresh", Value: orPlaceholder(soa.Get("refresh").String())},
				{Key: "retry", Value: orPlaceholder(soa.Get("retry").String())},
			},
		})
	}

	if result.Has(models.KeyDNSInfo) {
		sections = append(sections, dnsHistorySection(parse(result.DNSInfo)))
	} else if reason, warned := warningFor(result, models.KeyDNSInfo); warned {
		sections = append(sections, emptySection("dns-history", "DNS: A RECORD HISTORY", reason))
	}

	if result.Has(models.KeySubdomains) {
		sections = append(sections, subdomainSection(parse(result.Subdomains), target.Value))
	} else {
		reason, _ := warningFor(result, models.KeySubdomains)
		sections = append(sections, emptySection("subdomains", "SUBDOMAINS", reason))
	}

	if result.Has(models.KeyWhois) {
		sections = append(sections, whoisSection(parse(result.Whois)))
	} else if reason, warned := warningFor(result, models.KeyWhois); warned {
		sections = append(sections, emptySection("whois", "WHOIS", reason))
	}

	return sections
}

func dnsHistorySection(history gjson.Result) Section {
	records := history.Get("records").Array()
	rows := []Row{{Key: "records", Value: fmt.Sprintf("%d", len(records))}}

	for i, record := range records {
		if i >= 5 {
			rows = append(rows, Row{Key: "…", Value: fmt.Sprintf("+%d older records", len(records)-i)})
			break
		}
		var ips []string
		for _, v := range record.Get("values").Array() {
			if ip := v.Get("ip").String(); ip != "" {
				ips = append(ips, ip)
			}
		}
		var orgs []string
		for _, o := range record.Get("organizations").Array() {
			orgs = append(orgs, o.String())
		}
		seen := fmt.Sprintf("%s → %s", orPlaceholder(record.Get("first_seen").String()), orPlaceholder(record.Get("last_seen").String()))
		value := orPlaceholder(strings.Join(ips, ", "))
		if len(orgs) > 0 {
			value += " (" + strings.Join(orgs, ", ") + ")"
		}
		rows = append(rows, Row{Key: seen, Value: value})
	}

	return Section{ID: "dns-history", Title: "DNS: A RECORD HISTORY", Category: CategoryInfo, Rows: rows}
}

func subdomainSection(subs gjson.Result, domain string) Section {
	names := subs.Get("subdomains").Array()
	total := int(subs.Get("subdomain_count").Int())
	if total == 0 {
		total = len(names)
	}

	var tags []string
	for i, name := range names {
		if i >= maxTags {
			break
		}
		tags = append(tags, name.String()+"."+domain)
	}

	section := Section{
		ID:       "subdomains",
		Title:    fmt.Sprintf("SUBDOMAINS (%d TOTAL)", total),
		Category: CategorySuccess,
		Tags:     tags,
	}
	if extra := total - len(tags); extra > 0 {
		section.Note = fmt.Sprintf("+%d more", extra)
	}
	if total == 0 {
		section.Category = CategoryEmpty
		section.Note = "no subdomains found"
	}
	return section
}

func whoisSection(whois gjson.Result) Section {
	return Section{
		ID:       "whois",
		Title:    "WHOIS",
		Category: CategoryInfo,
		Rows: []Row{
			{Key: "registrar", Value: firstString(placeholder, whois.Get("registrarName"), whois.Get("registrar"))},
			{Key: "created", Value: date(whois.Get("createdDate"))},
			{Key: "expires", Value: date(whois.Get("expiresDate"))},
			{Key: "status", Value: orPlaceholder(whois.Get("status").String())},
		},
	}
}

func ipSections(result *models.ScanResult, target models.ScanTarget) []Section {
	var sections []Section

	blocks := parse(result.IPInfo).Get("blocks").Array()
	if len(blocks) > 0 {
		b := blocks[0]
		sections = append(sections,
			Section{
				ID:       "ip",
				Title:    "IP INFORMATION",
				Category: CategoryInfo,
				Rows: []Row{
					{Key: "ip address", Value: target.Value, Highlight: true},
					{Key: "cidr block", Value: firstString(placeholder, b.Get("cidr"), b.Get("network"))},
					{Key: "network", Value: orPlaceholder(b.Get("network").String())},
					{Key: "organization", Value: firstString(placeholder, b.Get("organization"), b.Get("name")), Highlight: true},
					{Key: "allocation", Value: orPlaceholder(b.Get("allocation").String())},
					{Key: "created", Value: date(b.Get("created"))},
				},
			},
			Section{
				ID:       "org",
				Title:    "ORGANIZATION DATA",
				Category: CategorySuccess,
				Rows: []Row{
					{Key: "name", Value: firstString(placeholder, b.Get("name"), b.Get("organization"))},
					{Key: "network", Value: orPlaceholder(b.Get("network").String())},
					{Key: "allocation", Value: orPlaceholder(b.Get("allocation").String())},
				},
			},
		)
	} else {
		reason, _ := warningFor(result, models.KeyIPInfo)
		section := Section{
			ID:       "ip",
			Title:    "IP INFORMATION",
			Category: CategoryInfo,
			Rows:     []Row{{Key: "ip address", Value: target.Value, Highlight: true}},
			Note:     "no network data" + suffix(reason),
		}
		sections = append(sections, section)
	}

	associated := parse(result.IPAssociated)
	records := associated.Get("records").Array()
	if len(records) > 0 {
		total := int(associated.Get("record_count").Int())
		if total == 0 {
			total = len(records)
		}

		var tags []string
		for i, r := range records {
			if i >= maxTags {
				break
			}
			if host := r.Get("hostname").String(); host != "" {
				tags = append(tags, host)
			}
		}

		section := Section{
			ID:       "domains",
			Title:    fmt.Sprintf("ASSOCIATED DOMAINS (%d)", total),
			Category: CategoryInfo,
			Tags:     tags,
		}
		if total > maxTags {
			section.Note = fmt.Sprintf("+%d more domains hosted on this IP", total-maxTags)
		}
		sections = append(sections, section)
	} else {
		reason, _ := warningFor(result, models.KeyIPAssociated)
		sections = append(sections, emptySection("domains", "ASSOCIATED DOMAINS", reason))
	}

	return sections
}

func emptySection(id, title, reason string) Section {
	return Section{
		ID:       id,
		Title:    title,
		Category: CategoryEmpty,
		Note:     "no data" + suffix(reason),
	}
}

func suffix(reason string) string {
	if reason == "" || reason == "no data" {
		return ""
	}
	return " (" + reason + ")"
}

func warningFor(result *models.ScanResult, key string) (string, bool) {
	for _, w := range result.Warnings {
		if w.Key == key {
			return w.Reason, true
		}
	}
	return "", false
}

// parse returns an empty result for absent or invalid payloads
func parse(raw []byte) gjson.Result {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

func firstString(fallback string, values ...gjson.Result) string {
	for _, v := range values {
		if s := v.String(); s != "" {
			return s
		}
	}
	return fallback
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func seconds(v gjson.Result) string {
	if v.Int() > 0 {
		return fmt.Sprintf("%ds", v.Int())
	}
	return placeholder
}

// date accepts RFC 3339 strings, plain dates or epoch milliseconds
func date(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		if v.Int() <= 0 {
			return placeholder
		}
		return time.UnixMilli(v.Int()).UTC().Format("2006-01-02")
	case gjson.String:
		s := v.String()
		if len(s) >= 10 {
			return s[:10]
		}
		return orPlaceholder(s)
	default:
		return placeholder
	}
}

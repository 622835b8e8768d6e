package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/allsafeASM/intel/internal/common"
	"github.com/allsafeASM/intel/internal/models"
	"github.com/allsafeASM/intel/internal/upstream"
	"github.com/allsafeASM/intel/internal/validation"
	"github.com/google/uuid"
	"github.com/projectdiscovery/gologger"
	"golang.org/x/sync/errgroup"
)

// ErrScanInProgress is returned when a scan is requested while another is running
var ErrScanInProgress = errors.New("a scan is already in progress")

// Options tunes the query plan
type Options struct {
	// SubqueryDelay is the pause between the primary domain query and each
	// secondary query. Zero disables pacing.
	SubqueryDelay time.Duration
	// DemoDelay simulates latency in demo mode
	DemoDelay         time.Duration
	IncludeDNSHistory bool
	IncludeWhois      bool
	// ParallelDomain issues all domain queries at once instead of sequentially
	ParallelDomain bool
}

// DefaultOptions returns the default query plan
func DefaultOptions() Options {
	return Options{
		SubqueryDelay:     time.Second,
		DemoDelay:         800 * time.Millisecond,
		IncludeDNSHistory: true,
	}
}

// Report describes one finished scan attempt
type Report struct {
	ScanID    string
	Request   models.ScanRequest
	Target    models.ScanTarget
	Result    *models.ScanResult
	StartedAt time.Time
	Duration  time.Duration
}

// Orchestrator runs one scan at a time against a Fetcher. Without a fetcher
// it serves the demo dataset.
type Orchestrator struct {
	fetcher   upstream.Fetcher
	validator *validation.Validator
	opts      Options

	isScanning atomic.Bool
	state      atomic.Int32
}

// NewOrchestrator creates a new orchestrator. A nil fetcher selects demo mode.
func NewOrchestrator(fetcher upstream.Fetcher, opts Options) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		validator: validation.NewValidator(),
		opts:      opts,
	}
}

// DemoMode reports whether scans are answered from the canned dataset
func (o *Orchestrator) DemoMode() bool {
	return o.fetcher == nil
}

// State returns the state of the current or last scan
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Busy reports whether a scan is running
func (o *Orchestrator) Busy() bool {
	return o.isScanning.Load()
}

func (o *Orchestrator) setState(scanID string, s State) {
	prev := State(o.state.Swap(int32(s)))
	gologger.Debug().Msgf("[%s] scan state %s -> %s", scanID, prev, s)
}

// Scan validates the request and gathers intelligence for it. A call made
// while another scan is running returns ErrScanInProgress and changes nothing.
// The returned report is non-nil for every attempt that got past the guard.
func (o *Orchestrator) Scan(ctx context.Context, req models.ScanRequest) (*Report, error) {
	if !o.isScanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer o.isScanning.Store(false)

	report := &Report{
		ScanID:    uuid.New().String(),
		Request:   req,
		StartedAt: time.Now(),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	o.setState(report.ScanID, StateValidating)
	target, err := o.validator.Validate(req.Input, req.Kind)
	if err != nil {
		o.setState(report.ScanID, StateFailed)
		return report, err
	}
	report.Target = target

	var result *models.ScanResult
	if o.DemoMode() {
		o.setState(report.ScanID, StateDemo)
		result, err = o.demo(ctx, target)
	} else {
		o.setState(report.ScanID, StateQuerying)
		switch target.Kind {
		case models.KindDomain:
			result, err = o.scanDomain(ctx, target)
		case models.KindIP:
			result, err = o.scanIP(ctx, target)
		}
	}
	if err != nil {
		o.setState(report.ScanID, StateFailed)
		return report, err
	}

	o.setState(report.ScanID, StateAssembling)
	for _, w := range result.Warnings {
		gologger.Warning().Msgf("[%s] partial data for %s: %s", report.ScanID, target.Value, w)
	}
	report.Result = result

	o.setState(report.ScanID, StateDone)
	return report, nil
}

func (o *Orchestrator) demo(ctx context.Context, target models.ScanTarget) (*models.ScanResult, error) {
	if o.opts.DemoDelay > 0 {
		select {
		case <-time.After(o.opts.DemoDelay):
		case <-ctx.Done():
			return nil, common.NewNetworkError("scan cancelled", ctx.Err())
		}
	}
	return DemoResult(target), nil
}

// subquery is one non-authoritative request of the domain plan
type subquery struct {
	key  string
	path string
}

func (o *Orchestrator) domainSubqueries(domain string) []subquery {
	escaped := url.PathEscape(domain)
	queries := []subquery{
		{key: models.KeySubdomains, path: fmt.Sprintf("/domain/%s/subdomains?children_only=false&include_inactive=false", escaped)},
	}
	if o.opts.IncludeDNSHistory {
		queries = append(queries, subquery{key: models.KeyDNSInfo, path: fmt.Sprintf("/domain/%s/dns/a", escaped)})
	}
	if o.opts.IncludeWhois {
		queries = append(queries, subquery{key: models.KeyWhois, path: fmt.Sprintf("/domain/%s/whois", escaped)})
	}
	return queries
}

// scanDomain runs the authoritative domain query, then the secondary ones.
// Only the primary query can fail the scan.
func (o *Orchestrator) scanDomain(ctx context.Context, target models.ScanTarget) (*models.ScanResult, error) {
	primaryPath := "/domain/" + url.PathEscape(target.Value)
	secondary := o.domainSubqueries(target.Value)
	result := &models.ScanResult{}

	if o.opts.ParallelDomain {
		return o.scanDomainParallel(ctx, primaryPath, secondary, result)
	}

	info, err := o.fetcher.Fetch(ctx, primaryPath)
	if err != nil {
		return nil, err
	}
	result.DomainInfo = info

	pacer := newPacer(ctx, o.opts.SubqueryDelay)
	defer pacer.Stop()

	for _, q := range secondary {
		if err := pacer.Wait(ctx); err != nil {
			result.Warn(q.key, "skipped: scan cancelled")
			continue
		}
		body, reason := o.fetchOptional(ctx, q)
		o.store(result, q.key, body, reason)
	}

	return result, nil
}

func (o *Orchestrator) scanDomainParallel(ctx context.Context, primaryPath string, secondary []subquery, result *models.ScanResult) (*models.ScanResult, error) {
	var (
		g          errgroup.Group
		info       json.RawMessage
		primaryErr error
		bodies     = make([]json.RawMessage, len(secondary))
		reasons    = make([]string, len(secondary))
	)

	g.Go(func() error {
		info, primaryErr = o.fetcher.Fetch(ctx, primaryPath)
		return nil
	})
	for i, q := range secondary {
		i, q := i, q
		g.Go(func() error {
			bodies[i], reasons[i] = o.fetchOptional(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	if primaryErr != nil {
		return nil, primaryErr
	}
	result.DomainInfo = info
	for i, q := range secondary {
		o.store(result, q.key, bodies[i], reasons[i])
	}
	return result, nil
}

// scanIP issues both IP queries concurrently. A 404 from either means no data;
// the scan fails only when neither query is usable.
func (o *Orchestrator) scanIP(ctx context.Context, target models.ScanTarget) (*models.ScanResult, error) {
	ip := url.PathEscape(target.Value)

	var (
		g                 errgroup.Group
		info, associated  json.RawMessage
		infoErr, assocErr error
	)

	g.Go(func() error {
		info, infoErr = o.fetcher.Fetch(ctx, "/ips/nearby/"+ip)
		return nil
	})
	g.Go(func() error {
		associated, assocErr = o.fetcher.Fetch(ctx, "/ips/"+ip+"/domains?page=1")
		return nil
	})
	_ = g.Wait()

	if !usable(infoErr) && !usable(assocErr) {
		return nil, preferStatusError(infoErr, assocErr)
	}

	result := &models.ScanResult{}
	o.store(result, models.KeyIPInfo, info, reasonFor(infoErr))
	o.store(result, models.KeyIPAssociated, associated, reasonFor(assocErr))
	return result, nil
}

// fetchOptional runs a non-authoritative query. Failures come back as a
// warning reason instead of an error.
func (o *Orchestrator) fetchOptional(ctx context.Context, q subquery) (json.RawMessage, string) {
	body, err := o.fetcher.Fetch(ctx, q.path)
	if err != nil {
		return nil, reasonFor(err)
	}
	return body, ""
}

func (o *Orchestrator) store(result *models.ScanResult, key string, body json.RawMessage, reason string) {
	if reason != "" || len(body) == 0 {
		if reason == "" {
			reason = "no data"
		}
		result.Warn(key, reason)
		return
	}

	switch key {
	case models.KeySubdomains:
		result.Subdomains = body
	case models.KeyDNSInfo:
		result.DNSInfo = body
	case models.KeyWhois:
		result.Whois = body
	case models.KeyIPInfo:
		result.IPInfo = body
	case models.KeyIPAssociated:
		result.IPAssociated = body
	}
}

// usable reports whether a sub-query outcome counts as an answer: data or an explicit 404
func usable(err error) bool {
	return err == nil || isNotFound(err)
}

func isNotFound(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.Type == common.ErrorTypeUpstream && appErr.Status == 404
}

// preferStatusError picks the error to surface when both IP queries fail:
// an upstream status beats a transport failure.
func preferStatusError(errs ...error) error {
	for _, err := range errs {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Type == common.ErrorTypeUpstream {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return common.NewInternalError("no usable data", nil)
}

// reasonFor renders a sub-query failure as a short warning. Raw errors are not exposed.
func reasonFor(err error) string {
	if err == nil {
		return ""
	}

	appErr := common.NewErrorClassifier().ClassifyError(err)
	switch appErr.Type {
	case common.ErrorTypeUpstream:
		if appErr.Status == 404 {
			return "no data (404)"
		}
		return fmt.Sprintf("upstream returned %d", appErr.Status)
	case common.ErrorTypeTimeout:
		return "timed out"
	case common.ErrorTypeNetwork:
		return "network error"
	default:
		return "unavailable"
	}
}

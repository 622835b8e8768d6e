package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/allsafeASM/intel/internal/models"
	"github.com/projectdiscovery/gologger"
	"golang.org/x/exp/slices"
)

// Persisted keys
const (
	KeyGatewayURL = "recon_gateway_url"
	KeyHistory    = "recon_history"
	KeyStats      = "recon_stats"
	KeyAPIKey     = "recon_apikey"
)

// MaxHistory is the number of history entries kept
const MaxHistory = 20

// Store holds scan history, counters and client settings. Every mutation is
// written through to the backend before the method returns.
type Store struct {
	mu      sync.Mutex
	kv      KV
	history []models.HistoryEntry
	stats   models.Stats
	now     func() time.Time
}

// New loads history and stats from kv. Unreadable values start empty.
func New(ctx context.Context, kv KV) (*Store, error) {
	s := &Store{kv: kv, now: time.Now}

	if err := s.load(ctx, KeyHistory, &s.history); err != nil {
		return nil, err
	}
	if err := s.load(ctx, KeyStats, &s.stats); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) load(ctx context.Context, key string, v interface{}) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		gologger.Warning().Msgf("Discarding unreadable %s: %v", key, err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// AppendHistory records a successful scan at the front of the history.
// An older entry for the same target is removed and the list is capped.
func (s *Store) AppendHistory(ctx context.Context, target models.ScanTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.HistoryEntry{Target: target.Value, Kind: target.Kind, Timestamp: s.now().UTC()}

	history := slices.Clone(s.history)
	if i := slices.IndexFunc(history, func(h models.HistoryEntry) bool { return h.Target == entry.Target }); i >= 0 {
		history = slices.Delete(history, i, i+1)
	}
	history = slices.Insert(history, 0, entry)
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}

	s.history = history
	return s.persist(ctx, KeyHistory, s.history)
}

// History returns the history, newest first
func (s *Store) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// ClearHistory removes every history entry
func (s *Store) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	return s.persist(ctx, KeyHistory, []models.HistoryEntry{})
}

// RecordOutcome counts one finished scan attempt
func (s *Store) RecordOutcome(ctx context.Context, kind models.Kind, outcome models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Total++
	switch outcome {
	case models.OutcomeSuccess:
		s.stats.Success++
		if kind == models.KindDomain {
			s.stats.DomainsScanned++
		}
	case models.OutcomeFailed:
		s.stats.Failed++
	}

	return s.persist(ctx, KeyStats, s.stats)
}

// Stats returns a copy of the counters
func (s *Store) Stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// GatewayURL returns the saved gateway URL
func (s *Store) GatewayURL(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyGatewayURL)
	return v, err
}

// SetGatewayURL saves the gateway URL. An empty URL clears it.
func (s *Store) SetGatewayURL(ctx context.Context, gatewayURL string) error {
	if gatewayURL == "" {
		return s.kv.Delete(ctx, KeyGatewayURL)
	}
	return s.kv.Set(ctx, KeyGatewayURL, gatewayURL)
}

// APIKey returns the key saved for direct upstream access
func (s *Store) APIKey(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyAPIKey)
	return v, err
}

// SetAPIKey saves a key for direct upstream access. An empty key clears it.
func (s *Store) SetAPIKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return s.kv.Delete(ctx, KeyAPIKey)
	}
	gologger.Warning().Msg("Storing the API key on this machine; prefer a gateway so the key stays server-side")
	return s.kv.Set(ctx, KeyAPIKey, apiKey)
}

// Close closes the backend
func (s *Store) Close() error {
	return s.kv.Close()
}

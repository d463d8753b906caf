package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

// Durable keys of the preference stores.
const (
	KeyFilters        = "filters"
	KeyRecentSearches = "recent_searches"
	KeySoundEnabled   = "sound_enabled"
)

// MaxRecentSearches caps the search history.
const MaxRecentSearches = 10

// FilterStore holds the session's FilterState.
type FilterStore struct {
	persister *Persister
	mu        sync.RWMutex
	state     entity.FilterState
}

// NewFilterStore loads the persisted filters.
func NewFilterStore(ctx context.Context, kv port.KeyValueStore, persister *Persister, logger port.Logger) *FilterStore {
	s := &FilterStore{persister: persister}
	var state entity.FilterState
	if loadJSON(ctx, kv, KeyFilters, &state, logger) {
		if err := validateFilters(state); err != nil {
			logger.Warn("Persisted filters are invalid, using defaults", "error", err)
		} else {
			s.state = state
		}
	}
	return s
}

// Get returns the current filters.
func (s *FilterStore) Get() entity.FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the filters.
func (s *FilterStore) Set(state entity.FilterState) (entity.FilterState, error) {
	if err := validateFilters(state); err != nil {
		return entity.FilterState{}, err
	}
	s.mu.Lock()
	s.state = state
	s.persister.Enqueue(KeyFilters, state)
	s.mu.Unlock()
	return state, nil
}

// SetMinLiquidity updates one threshold; nil clears it.
func (s *FilterStore) SetMinLiquidity(v *float64) (entity.FilterState, error) {
	return s.update(func(f *entity.FilterState) { f.MinLiquidity = v })
}

// SetMinVolume updates one threshold; nil clears it.
func (s *FilterStore) SetMinVolume(v *float64) (entity.FilterState, error) {
	return s.update(func(f *entity.FilterState) { f.MinVolume = v })
}

// SetMaxAge updates one threshold; nil clears it.
func (s *FilterStore) SetMaxAge(v *time.Duration) (entity.FilterState, error) {
	return s.update(func(f *entity.FilterState) { f.MaxAge = v })
}

// SetChain updates the chain constraint; nil clears it.
func (s *FilterStore) SetChain(v *string) (entity.FilterState, error) {
	return s.update(func(f *entity.FilterState) { f.Chain = v })
}

// Reset clears every constraint.
func (s *FilterStore) Reset() entity.FilterState {
	s.mu.Lock()
	s.state = entity.FilterState{}
	s.persister.Enqueue(KeyFilters, entity.FilterState{})
	s.mu.Unlock()
	return entity.FilterState{}
}

func (s *FilterStore) update(apply func(*entity.FilterState)) (entity.FilterState, error) {
	s.mu.Lock()
	next := s.state
	apply(&next)
	if err := validateFilters(next); err != nil {
		s.mu.Unlock()
		return entity.FilterState{}, err
	}
	s.state = next
	s.persister.Enqueue(KeyFilters, next)
	s.mu.Unlock()
	return next, nil
}

func validateFilters(f entity.FilterState) error {
	for name, v := range map[string]*float64{"minLiquidity": f.MinLiquidity, "minVolume": f.MinVolume} {
		if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%w: %s must be a non-negative number", entity.ErrInvalidInput, name)
		}
	}
	if f.MaxAge != nil && *f.MaxAge <= 0 {
		return fmt.Errorf("%w: maxAge must be positive", entity.ErrInvalidInput)
	}
	return nil
}

// SearchHistory keeps the most recent distinct search queries, newest first.
type SearchHistory struct {
	persister *Persister
	now       func() time.Time
	mu        sync.RWMutex
	entries   []entity.SearchEntry
}

// NewSearchHistory loads the persisted history.
func NewSearchHistory(ctx context.Context, kv port.KeyValueStore, persister *Persister, logger port.Logger, now func() time.Time) *SearchHistory {
	if now == nil {
		now = time.Now
	}
	h := &SearchHistory{persister: persister, now: now}
	var entries []entity.SearchEntry
	if loadJSON(ctx, kv, KeyRecentSearches, &entries, logger) {
		for _, e := range entries {
			if strings.TrimSpace(e.Query) != "" && len(h.entries) < MaxRecentSearches {
				h.entries = append(h.entries, e)
			}
		}
	}
	return h
}

// Record moves query to the front of the history. Case-insensitive duplicates collapse.
func (h *SearchHistory) Record(query string) {
	q := strings.TrimSpace(query)
	if q == "" {
		return
	}
	h.mu.Lock()
	next := make([]entity.SearchEntry, 0, MaxRecentSearches)
	next = append(next, entity.SearchEntry{Query: q, SearchedAt: h.now()})
	for _, e := range h.entries {
		if strings.EqualFold(e.Query, q) {
			continue
		}
		if len(next) == MaxRecentSearches {
			break
		}
		next = append(next, e)
	}
	h.entries = next
	h.persister.Enqueue(KeyRecentSearches, h.copyLocked())
	h.mu.Unlock()
}

// Entries returns the history, newest first.
func (h *SearchHistory) Entries() []entity.SearchEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.copyLocked()
}

// Clear empties the history.
func (h *SearchHistory) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.persister.Enqueue(KeyRecentSearches, []entity.SearchEntry{})
	h.mu.Unlock()
}

func (h *SearchHistory) copyLocked() []entity.SearchEntry {
	out := make([]entity.SearchEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// SoundPreferenceStore holds the sound on/off preference. Default on.
type SoundPreferenceStore struct {
	persister *Persister
	mu        sync.RWMutex
	enabled   bool
}

// NewSoundPreferenceStore loads the persisted preference.
func NewSoundPreferenceStore(ctx context.Context, kv port.KeyValueStore, persister *Persister, logger port.Logger) *SoundPreferenceStore {
	s := &SoundPreferenceStore{persister: persister, enabled: true}
	var enabled bool
	if loadJSON(ctx, kv, KeySoundEnabled, &enabled, logger) {
		s.enabled = enabled
	}
	return s
}

// SoundEnabled implements SoundSource.
func (s *SoundPreferenceStore) SoundEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Set stores the preference.
func (s *SoundPreferenceStore) Set(enabled bool) entity.SoundPreference {
	s.mu.Lock()
	s.enabled = enabled
	s.persister.Enqueue(KeySoundEnabled, enabled)
	s.mu.Unlock()
	return entity.SoundPreference{Enabled: enabled}
}

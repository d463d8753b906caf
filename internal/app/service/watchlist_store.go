package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

// KeyWatchlist is the durable key of the watchlist.
const KeyWatchlist = "watchlist"

// WatchlistStore is the durable set of pinned tokens, identified by address.
type WatchlistStore struct {
	persister *Persister
	logger    port.Logger
	now       func() time.Time

	mu    sync.RWMutex
	items []entity.WatchlistItem

	ready  chan struct{}
	loaded atomic.Bool
}

// NewWatchlistStore starts loading the persisted watchlist in the background.
func NewWatchlistStore(ctx context.Context, kv port.KeyValueStore, persister *Persister, logger port.Logger, now func() time.Time) *WatchlistStore {
	if now == nil {
		now = time.Now
	}
	s := &WatchlistStore{
		persister: persister,
		logger:    logger,
		now:       now,
		ready:     make(chan struct{}),
	}
	go s.load(ctx, kv)
	return s
}

func (s *WatchlistStore) load(ctx context.Context, kv port.KeyValueStore) {
	var items []entity.WatchlistItem
	if !loadJSON(ctx, kv, KeyWatchlist, &items, s.logger) {
		items = nil
	}

	clean := make([]entity.WatchlistItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		addr := strings.TrimSpace(it.Address)
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		it.Address = addr
		clean = append(clean, it)
	}

	s.mu.Lock()
	s.items = clean
	s.mu.Unlock()
	s.loaded.Store(true)
	close(s.ready)
	s.logger.Debug("Watchlist loaded", "count", len(clean))
}

// Ready is closed once the persisted set has been loaded.
func (s *WatchlistStore) Ready() <-chan struct{} {
	return s.ready
}

// Loaded reports whether the persisted set has been loaded. Until then a false
// IsMember result does not mean the token is absent.
func (s *WatchlistStore) Loaded() bool {
	return s.loaded.Load()
}

func (s *WatchlistStore) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("watchlist not loaded: %w", ctx.Err())
	}
}

// Toggle adds item if its address is absent and removes it otherwise. It returns the
// new membership.
func (s *WatchlistStore) Toggle(ctx context.Context, item entity.WatchlistItem) (bool, error) {
	item.Address = strings.TrimSpace(item.Address)
	if item.Address == "" {
		return false, fmt.Errorf("%w: address is required", entity.ErrInvalidInput)
	}
	if err := s.waitReady(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	member := false
	if idx := s.indexLocked(item.Address); idx >= 0 {
		s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	} else {
		if item.AddedAt.IsZero() {
			item.AddedAt = s.now()
		}
		s.items = append(s.items, item)
		member = true
	}
	s.persistLocked()
	s.mu.Unlock()
	return member, nil
}

// Add inserts item unless its address is already present.
func (s *WatchlistStore) Add(ctx context.Context, item entity.WatchlistItem) error {
	item.Address = strings.TrimSpace(item.Address)
	if item.Address == "" {
		return fmt.Errorf("%w: address is required", entity.ErrInvalidInput)
	}
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.indexLocked(item.Address) >= 0 {
		s.mu.Unlock()
		return nil
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = s.now()
	}
	s.items = append(s.items, item)
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// Clear removes every item.
func (s *WatchlistStore) Clear(ctx context.Context) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = nil
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// IsMember reports whether address is pinned.
func (s *WatchlistStore) IsMember(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(strings.TrimSpace(address)) >= 0
}

// Items returns a copy of the pinned items in insertion order.
func (s *WatchlistStore) Items() []entity.WatchlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Addresses returns the membership set.
func (s *WatchlistStore) Addresses() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.items))
	for _, it := range s.items {
		out[it.Address] = struct{}{}
	}
	return out
}

func (s *WatchlistStore) indexLocked(address string) int {
	for i, it := range s.items {
		if it.Address == address {
			return i
		}
	}
	return -1
}

// persistLocked enqueues the current items. Callers hold s.mu so snapshots reach the
// persister in mutation order.
func (s *WatchlistStore) persistLocked() {
	s.persister.Enqueue(KeyWatchlist, s.copyLocked())
}

func (s *WatchlistStore) copyLocked() []entity.WatchlistItem {
	out := make([]entity.WatchlistItem, len(s.items))
	copy(out, s.items)
	return out
}

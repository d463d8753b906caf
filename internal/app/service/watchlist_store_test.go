package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
	"token_screener/internal/infrastructure/kvstore"
	"token_screener/internal/pkg/logger"
)

func newWatchlist(t *testing.T, kv *kvstore.MemoryStore) (*WatchlistStore, *Persister) {
	t.Helper()
	p := NewPersister(kv, logger.Nop(), nil)
	t.Cleanup(func() { _ = p.Close() })
	clock := newFakeClock()
	s := NewWatchlistStore(context.Background(), kv, p, logger.Nop(), clock.Now)
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("watchlist did not load")
	}
	return s, p
}

func TestWatchlist_ToggleTwiceRestoresMembership(t *testing.T) {
	s, _ := newWatchlist(t, kvstore.NewMemoryStore())
	ctx := context.Background()
	item := entity.WatchlistItem{Address: "MintA", Symbol: "AAA"}

	member, err := s.Toggle(ctx, item)
	require.NoError(t, err)
	assert.True(t, member)
	assert.True(t, s.IsMember("MintA"))

	member, err = s.Toggle(ctx, item)
	require.NoError(t, err)
	assert.False(t, member)
	assert.False(t, s.IsMember("MintA"))
	assert.Empty(t, s.Items())
}

func TestWatchlist_AddIsIdempotent(t *testing.T) {
	s, _ := newWatchlist(t, kvstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, entity.WatchlistItem{Address: "MintA"}))
	require.NoError(t, s.Add(ctx, entity.WatchlistItem{Address: " MintA "}))
	assert.Len(t, s.Items(), 1)
	assert.False(t, s.Items()[0].AddedAt.IsZero())
}

func TestWatchlist_PersistsAndReloads(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s, p := newWatchlist(t, kv)
	ctx := context.Background()

	_, err := s.Toggle(ctx, entity.WatchlistItem{Address: "MintA", Symbol: "AAA"})
	require.NoError(t, err)
	_, err = s.Toggle(ctx, entity.WatchlistItem{Address: "MintB", Symbol: "BBB"})
	require.NoError(t, err)
	require.NoError(t, p.Flush(ctx))

	reloaded, _ := newWatchlist(t, kv)
	items := reloaded.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "MintA", items[0].Address)
	assert.Equal(t, "MintB", items[1].Address)
}

func TestWatchlist_MalformedPersistedValueYieldsEmpty(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(context.Background(), KeyWatchlist, []byte(`[{"address":`)))

	s, _ := newWatchlist(t, kv)
	assert.True(t, s.Loaded())
	assert.Empty(t, s.Items())
}

func TestWatchlist_ClearPersistsEmptySet(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s, p := newWatchlist(t, kv)
	ctx := context.Background()

	_, err := s.Toggle(ctx, entity.WatchlistItem{Address: "MintA"})
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, p.Flush(ctx))

	raw, err := kv.Get(ctx, KeyWatchlist)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestWatchlist_RejectsEmptyAddress(t *testing.T) {
	s, _ := newWatchlist(t, kvstore.NewMemoryStore())
	_, err := s.Toggle(context.Background(), entity.WatchlistItem{Address: "  "})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func persistedWatchlist(t *testing.T, kv *kvstore.MemoryStore) []entity.WatchlistItem {
	t.Helper()
	data, err := kv.Get(context.Background(), KeyWatchlist)
	require.NoError(t, err)
	var items []entity.WatchlistItem
	require.NoError(t, json.Unmarshal(data, &items))
	return items
}

func TestWatchlist_RapidTogglesConverge(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s, p := newWatchlist(t, kv)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Toggle(ctx, entity.WatchlistItem{Address: "MintA"})
		}()
	}
	wg.Wait()
	require.NoError(t, p.Flush(ctx))

	// An even number of toggles leaves the token out, in memory and on disk.
	assert.False(t, s.IsMember("MintA"))
	assert.Empty(t, persistedWatchlist(t, kv))
}

func TestWatchlist_ConcurrentTogglesPersistLatestState(t *testing.T) {
	for round := 0; round < 20; round++ {
		kv := kvstore.NewMemoryStore()
		s, p := newWatchlist(t, kv)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Toggle(ctx, entity.WatchlistItem{Address: fmt.Sprintf("Mint%02d", i)})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		require.NoError(t, p.Flush(ctx))

		require.Len(t, s.Items(), 16)
		assert.Equal(t, s.Items(), persistedWatchlist(t, kv), "round %d", round)
	}
}

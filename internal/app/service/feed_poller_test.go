package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/clock"
	"token_screener/internal/pkg/logger"
)

func newTestPoller(fetch FetchFunc, ticker *clock.ManualTicker) *FeedPoller {
	return NewFeedPoller(fetch, FeedPollerConfig{
		Name:      "test",
		Interval:  time.Minute,
		NewTicker: ticker.Factory(),
		Logger:    logger.Nop(),
	})
}

func TestFeedPoller_StartFiresImmediatelyAndOnTick(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]entity.Token, error) {
		calls.Add(1)
		return tokens("A", "B"), nil
	}
	ticker := clock.NewManualTicker()
	p := newTestPoller(fetch, ticker)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !p.State().LastUpdated.IsZero() }, time.Second, 5*time.Millisecond)

	require.True(t, ticker.Tick())
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	st := p.State()
	assert.Len(t, st.Tokens, 2)
	assert.Equal(t, 2, st.TokenCount)
	assert.Empty(t, st.Err)
}

func TestFeedPoller_FailureKeepsPreviousSnapshot(t *testing.T) {
	fail := false
	fetch := func(ctx context.Context) ([]entity.Token, error) {
		if fail {
			return nil, errors.New("upstream returned 502")
		}
		return tokens("A"), nil
	}
	p := newTestPoller(fetch, clock.NewManualTicker())

	require.NoError(t, p.Refresh(context.Background(), false))
	first := p.State()

	fail = true
	err := p.Refresh(context.Background(), true)
	require.Error(t, err)

	st := p.State()
	assert.Equal(t, first.Tokens, st.Tokens)
	assert.Equal(t, first.LastUpdated, st.LastUpdated)
	assert.Contains(t, st.Err, "502")
	assert.False(t, st.Loading)
	assert.False(t, st.Refreshing)

	fail = false
	require.NoError(t, p.Refresh(context.Background(), false))
	assert.Empty(t, p.State().Err)
}

func TestFeedPoller_NewerStartWinsOverSlowerOlderFetch(t *testing.T) {
	releaseOld := make(chan struct{})
	releaseNew := make(chan struct{})
	started := make(chan struct{}, 2)
	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]entity.Token, error) {
		n := calls.Add(1)
		started <- struct{}{}
		if n == 1 {
			// Ignores cancellation and completes late with stale data.
			<-releaseOld
			return tokens("OLD"), nil
		}
		<-releaseNew
		return tokens("NEW"), nil
	}
	p := newTestPoller(fetch, clock.NewManualTicker())

	errs := make(chan error, 2)
	go func() { errs <- p.Refresh(context.Background(), false) }()
	<-started
	go func() { errs <- p.Refresh(context.Background(), true) }()
	<-started

	close(releaseNew)
	require.NoError(t, <-errs)
	close(releaseOld)
	require.NoError(t, <-errs)

	st := p.State()
	require.Len(t, st.Tokens, 1)
	assert.Equal(t, "NEW", st.Tokens[0].Address)
	assert.False(t, st.Refreshing)
	assert.False(t, st.Loading)
}

func TestFeedPoller_SupersededFetchIsCancelledSilently(t *testing.T) {
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]entity.Token, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return tokens("A"), nil
	}
	p := newTestPoller(fetch, clock.NewManualTicker())

	done := make(chan error, 1)
	go func() { done <- p.Refresh(context.Background(), false) }()
	<-started

	require.NoError(t, p.Refresh(context.Background(), true))
	require.NoError(t, <-done)

	st := p.State()
	assert.Empty(t, st.Err)
	assert.Len(t, st.Tokens, 1)
}

func TestFeedPoller_SubscribeAndUnsubscribe(t *testing.T) {
	p := newTestPoller(func(ctx context.Context) ([]entity.Token, error) {
		return tokens("A"), nil
	}, clock.NewManualTicker())

	var got atomic.Int32
	unsubscribe := p.Subscribe(func(s PollState) {
		got.Add(int32(len(s.Tokens)))
	})

	require.NoError(t, p.Refresh(context.Background(), false))
	assert.Equal(t, int32(1), got.Load())

	unsubscribe()
	unsubscribe()
	require.NoError(t, p.Refresh(context.Background(), false))
	assert.Equal(t, int32(1), got.Load())
}

func TestFeedPoller_StopCancelsAndSilences(t *testing.T) {
	started := make(chan struct{}, 4)
	fetch := func(ctx context.Context) ([]entity.Token, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ticker := clock.NewManualTicker()
	p := newTestPoller(fetch, ticker)

	var notified atomic.Int32
	p.Subscribe(func(PollState) { notified.Add(1) })

	require.NoError(t, p.Start(context.Background()))
	<-started

	p.Stop()
	p.Stop()

	assert.True(t, ticker.Stopped())
	assert.Zero(t, notified.Load())
	assert.ErrorIs(t, p.Refresh(context.Background(), true), ErrPollerStopped)
	assert.ErrorIs(t, p.Start(context.Background()), ErrPollerStopped)
}

func TestFeedPoller_TimeoutMessage(t *testing.T) {
	p := newTestPoller(func(ctx context.Context) ([]entity.Token, error) {
		return nil, context.DeadlineExceeded
	}, clock.NewManualTicker())

	require.Error(t, p.Refresh(context.Background(), false))
	assert.Contains(t, p.State().Err, "timed out")
}

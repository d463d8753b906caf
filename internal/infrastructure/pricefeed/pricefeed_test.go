package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
	dex "token_screener/internal/entity"
	"token_screener/internal/infrastructure/metrics"
	"token_screener/internal/pkg/clock"
	"token_screener/internal/pkg/utils"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]bool
}

func (f *fakeFetcher) GetTokenPairsByAddresses(_ context.Context, _ string, addresses []string) ([]dex.PairData, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), addresses...))
	f.mu.Unlock()

	var out []dex.PairData
	for _, a := range addresses {
		if f.fail[a] {
			return nil, errors.New("upstream returned 500")
		}
		out = append(out, pair(a, 1.5, 1000))
	}
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pair(address string, price, liquidity float64) dex.PairData {
	return dex.PairData{
		BaseToken: dex.DEXToken{Address: address, Symbol: "T"},
		PriceUsd:  dex.FlexFloat{Value: price, Valid: true},
		Liquidity: &dex.DEXLiquidity{Usd: utils.Ptr(liquidity)},
	}
}

func receive(t *testing.T, ch <-chan entity.PriceBatch) entity.PriceBatch {
	t.Helper()
	select {
	case b, ok := <-ch:
		require.True(t, ok, "updates channel closed")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for price batch")
		return nil
	}
}

func TestBuildBatch_CanonicalAndOrdered(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pairs := []dex.PairData{pair("B", 2, 10), pair("A", 1, 50), pair("A", 9, 5), pair("C", 0, 10)}

	batch := buildBatch([]string{"A", "B", "C", "D"}, pairs, at)

	require.Len(t, batch, 2)
	assert.Equal(t, "A", batch[0].Address)
	assert.Equal(t, 1.0, batch[0].PriceUSD)
	assert.Equal(t, "B", batch[1].Address)
	assert.Equal(t, at, batch[1].Timestamp)
}

func TestPollingFeed_BatchesRequestsAndEmits(t *testing.T) {
	fetcher := &fakeFetcher{}
	ticker := clock.NewManualTicker()
	feed := NewPollingFeed(fetcher, PollingConfig{BatchSize: 2, NewTicker: ticker.Factory()}, nil, nil)
	defer feed.Close()

	feed.SetAddresses([]string{"A", "B", "C", "A"})
	batch := receive(t, feed.Updates())

	assert.Len(t, batch, 3)
	assert.Equal(t, 2, fetcher.callCount())
	assert.Equal(t, TransportPolling, feed.Transport())

	require.True(t, ticker.Tick())
	receive(t, feed.Updates())
	assert.Equal(t, 4, fetcher.callCount())
}

func TestPollingFeed_CountsEachDeliveredBatchOnce(t *testing.T) {
	m := metrics.NewMetrics("test")
	ticker := clock.NewManualTicker()
	feed := NewPollingFeed(&fakeFetcher{}, PollingConfig{NewTicker: ticker.Factory()}, nil, m)
	defer feed.Close()

	feed.SetAddresses([]string{"A"})
	receive(t, feed.Updates())
	require.True(t, ticker.Tick())
	receive(t, feed.Updates())

	counted := m.PriceBatchesReceived.WithLabelValues(TransportPolling)
	require.Eventually(t, func() bool { return testutil.ToFloat64(counted) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PriceBatchesReceived))
}

func TestPollingFeed_PartialFailureKeepsOtherBatches(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]bool{"C": true}}
	feed := NewPollingFeed(fetcher, PollingConfig{BatchSize: 2, NewTicker: clock.NewManualTicker().Factory()}, nil, nil)
	defer feed.Close()

	feed.SetAddresses([]string{"A", "B", "C"})
	batch := receive(t, feed.Updates())

	require.Len(t, batch, 2)
	assert.Equal(t, "A", batch[0].Address)
	assert.Equal(t, "B", batch[1].Address)
}

func TestPollingFeed_CloseIsIdempotentAndClosesUpdates(t *testing.T) {
	ticker := clock.NewManualTicker()
	feed := NewPollingFeed(&fakeFetcher{}, PollingConfig{NewTicker: ticker.Factory()}, nil, nil)

	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())

	_, ok := <-feed.Updates()
	assert.False(t, ok)
	assert.True(t, ticker.Stopped())
	feed.SetAddresses([]string{"A"})
}

type streamServer struct {
	*httptest.Server
	mu         sync.Mutex
	apiKeys    []string
	subscribes []subscribeMessage
	perConn    map[int][]subscribeMessage
	conns      []*websocket.Conn
}

func newStreamServer(t *testing.T) *streamServer {
	s := &streamServer{perConn: map[int][]subscribeMessage{}}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.apiKeys = append(s.apiKeys, r.Header.Get(apiKeyHeader))
		s.conns = append(s.conns, conn)
		idx := len(s.conns) - 1
		s.mu.Unlock()

		for {
			var msg subscribeMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			s.mu.Lock()
			s.subscribes = append(s.subscribes, msg)
			s.perConn[idx] = append(s.perConn[idx], msg)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *streamServer) lastConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *streamServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *streamServer) subscribesOn(conn int) []subscribeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]subscribeMessage(nil), s.perConn[conn]...)
}

func (s *streamServer) lastSubscribe() (subscribeMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subscribes) == 0 {
		return subscribeMessage{}, false
	}
	return s.subscribes[len(s.subscribes)-1], true
}

func TestPushFeed_SubscribesAndDecodes(t *testing.T) {
	srv := newStreamServer(t)
	feed, err := DialPushFeed(context.Background(), PushConfig{URL: srv.wsURL(), APIKey: "secret"}, nil, nil)
	require.NoError(t, err)
	defer feed.Close()

	feed.SetAddresses([]string{"A", "B"})
	require.Eventually(t, func() bool {
		msg, ok := srv.lastSubscribe()
		return ok && len(msg.Data.Addresses) == 2
	}, 2*time.Second, 10*time.Millisecond)
	msg, _ := srv.lastSubscribe()
	assert.Equal(t, msgSubscribe, msg.Type)
	assert.Equal(t, []string{"A", "B"}, msg.Data.Addresses)

	srv.mu.Lock()
	assert.Equal(t, "secret", srv.apiKeys[0])
	srv.mu.Unlock()

	conn := srv.lastConn()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"PRICE_DATA","data":{"address":"A","price":1.25,"priceChange1h":3,"unixTime":1700000000}}`)))
	batch := receive(t, feed.Updates())
	require.Len(t, batch, 1)
	assert.Equal(t, 1.25, batch[0].PriceUSD)
	assert.Equal(t, 3.0, batch[0].Change1h)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), batch[0].Timestamp)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"PRICE_BATCH","data":[{"address":"A","price":2},{"address":"B","price":0},{"address":"B","price":3}]}`)))
	batch = receive(t, feed.Updates())
	require.Len(t, batch, 2)
	assert.Equal(t, map[string]float64{"A": 2, "B": 3}, batch.Prices())
}

func TestPushFeed_ReconnectsAndResubscribes(t *testing.T) {
	srv := newStreamServer(t)
	feed, err := DialPushFeed(context.Background(), PushConfig{URL: srv.wsURL(), APIKey: "k", ReconnectDelay: 20 * time.Millisecond}, nil, nil)
	require.NoError(t, err)
	defer feed.Close()

	feed.SetAddresses([]string{"A"})
	require.Eventually(t, func() bool { return len(srv.subscribesOn(0)) > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.lastConn().Close())

	require.Eventually(t, func() bool { return srv.connCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(srv.subscribesOn(1)) > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"A"}, srv.subscribesOn(1)[0].Data.Addresses)
}

func TestPushFeed_CloseIsIdempotent(t *testing.T) {
	srv := newStreamServer(t)
	feed, err := DialPushFeed(context.Background(), PushConfig{URL: srv.wsURL()}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())
	_, ok := <-feed.Updates()
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	manual := PollingConfig{NewTicker: clock.NewManualTicker().Factory()}

	t.Run("no api key polls", func(t *testing.T) {
		feed := Select(context.Background(), Options{Polling: manual}, &fakeFetcher{}, nil, nil)
		defer feed.Close()
		assert.Equal(t, TransportPolling, feed.Transport())
	})

	t.Run("api key pushes", func(t *testing.T) {
		srv := newStreamServer(t)
		feed := Select(context.Background(), Options{
			Push:    PushConfig{URL: srv.wsURL(), APIKey: "k"},
			Polling: manual,
		}, &fakeFetcher{}, nil, nil)
		defer feed.Close()
		assert.Equal(t, TransportPush, feed.Transport())
	})

	t.Run("first dial failure falls back", func(t *testing.T) {
		feed := Select(context.Background(), Options{
			Push:    PushConfig{URL: "ws://127.0.0.1:1/stream", APIKey: "k"},
			Polling: PollingConfig{NewTicker: clock.NewManualTicker().Factory()},
		}, &fakeFetcher{}, nil, nil)
		defer feed.Close()
		assert.Equal(t, TransportPolling, feed.Transport())
	})
}

package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"token_screener/internal/domain/entity"
	"token_screener/internal/infrastructure/metrics"
	"token_screener/internal/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultReconnectDelay = 3 * time.Second

	apiKeyHeader     = "X-API-KEY"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 90 * time.Second

	msgSubscribe  = "SUBSCRIBE_PRICE"
	msgPriceData  = "PRICE_DATA"
	msgPriceBatch = "PRICE_BATCH"
)

var ErrFeedClosed = errors.New("price feed closed")

type PushConfig struct {
	URL            string
	APIKey         string
	ReconnectDelay time.Duration
	Now            func() time.Time
}

type subscribeMessage struct {
	Type string        `json:"type"`
	Data subscribeData `json:"data"`
}

type subscribeData struct {
	Addresses []string `json:"addresses"`
	Currency  string   `json:"currency"`
}

type inboundMessage struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

type pushPrice struct {
	Address   string  `json:"address"`
	Price     float64 `json:"price"`
	Change5m  float64 `json:"priceChange5m"`
	Change1h  float64 `json:"priceChange1h"`
	Volume24h float64 `json:"volume24hUSD"`
	UnixTime  int64   `json:"unixTime"`
}

// PushFeed streams price updates from a websocket provider and redials on a fixed delay.
type PushFeed struct {
	cfg     PushConfig
	dialer  websocket.Dialer
	logger  *zap.Logger
	metrics *metrics.Metrics

	connMu sync.Mutex
	conn   *websocket.Conn

	addrMu    sync.RWMutex
	addresses []string

	updates chan entity.PriceBatch
	done    chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// DialPushFeed performs the first dial synchronously. A failure here is returned to the
// caller so it can fall back to polling.
func DialPushFeed(ctx context.Context, cfg PushConfig, logger *zap.Logger, m *metrics.Metrics) (*PushFeed, error) {
	if cfg.URL == "" {
		return nil, errors.New("push feed url is empty")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &PushFeed{
		cfg:     cfg,
		dialer:  websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:  logger.Named("PushFeed"),
		metrics: m,
		updates: make(chan entity.PriceBatch, updatesBuffer),
		done:    make(chan struct{}),
	}

	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	f.setConn(conn)
	m.SetFeedTransport(TransportPush)

	f.wg.Add(1)
	go f.run(conn)
	return f, nil
}

func (f *PushFeed) Transport() string { return TransportPush }

func (f *PushFeed) Updates() <-chan entity.PriceBatch { return f.updates }

func (f *PushFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if f.cfg.APIKey != "" {
		header.Set(apiKeyHeader, f.cfg.APIKey)
	}
	conn, resp, err := f.dialer.DialContext(ctx, f.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial price stream: %w", err)
	}
	return conn, nil
}

// setConn publishes conn for writers. It refuses a live conn once Close has started.
func (f *PushFeed) setConn(conn *websocket.Conn) bool {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if conn != nil && f.closed.Load() {
		return false
	}
	f.conn = conn
	return true
}

// SetAddresses replaces the subscription set and re-sends it while connected.
func (f *PushFeed) SetAddresses(addresses []string) {
	set := utils.UniqueStrings(addresses)
	f.addrMu.Lock()
	f.addresses = set
	f.addrMu.Unlock()

	if f.closed.Load() {
		return
	}
	if err := f.subscribe(true); err != nil {
		f.logger.Warn("failed to send subscription", zap.Error(err))
	}
}

// subscribe sends the current set. An empty set is only sent when forced.
func (f *PushFeed) subscribe(force bool) error {
	f.addrMu.RLock()
	addrs := make([]string, len(f.addresses))
	copy(addrs, f.addresses)
	f.addrMu.RUnlock()
	if len(addrs) == 0 && !force {
		return nil
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	msg := subscribeMessage{Type: msgSubscribe, Data: subscribeData{Addresses: addrs, Currency: "usd"}}
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(msg)
}

// run owns the read side. Each connection is read until it fails, then redialed after
// the fixed delay until Close.
func (f *PushFeed) run(conn *websocket.Conn) {
	defer f.wg.Done()

	if err := f.subscribe(false); err != nil {
		f.logger.Warn("failed to send subscription", zap.Error(err))
	}
	for {
		f.readLoop(conn)
		f.setConn(nil)
		_ = conn.Close()
		if f.closed.Load() {
			return
		}

		conn = f.redial()
		if conn == nil {
			return
		}
		if !f.setConn(conn) {
			_ = conn.Close()
			return
		}
		f.logger.Info("price stream reconnected")
		if err := f.subscribe(false); err != nil {
			f.logger.Warn("failed to resubscribe", zap.Error(err))
		}
	}
}

func (f *PushFeed) redial() *websocket.Conn {
	for {
		select {
		case <-f.done:
			return nil
		case <-time.After(f.cfg.ReconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := f.dial(ctx)
		cancel()
		if err == nil {
			if f.closed.Load() {
				_ = conn.Close()
				return nil
			}
			return conn
		}
		f.logger.Warn("price stream redial failed", zap.Error(err), zap.Duration("retryIn", f.cfg.ReconnectDelay))
	}
}

func (f *PushFeed) readLoop(conn *websocket.Conn) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !f.closed.Load() {
				f.logger.Warn("price stream read failed", zap.Error(err))
			}
			return
		}

		batch, err := f.decode(data)
		if err != nil {
			f.logger.Debug("ignoring malformed stream message", zap.Error(err))
			continue
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case f.updates <- batch:
			f.metrics.IncPriceBatch(TransportPush)
		case <-f.done:
			return
		}
	}
}

func (f *PushFeed) decode(data []byte) (entity.PriceBatch, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	var prices []pushPrice
	switch msg.Type {
	case msgPriceData:
		var p pushPrice
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, err
		}
		prices = []pushPrice{p}
	case msgPriceBatch:
		if err := json.Unmarshal(msg.Data, &prices); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	batch := make(entity.PriceBatch, 0, len(prices))
	for _, p := range prices {
		if p.Address == "" || p.Price <= 0 {
			continue
		}
		ts := f.cfg.Now().UTC()
		if p.UnixTime > 0 {
			ts = time.Unix(p.UnixTime, 0).UTC()
		}
		batch = append(batch, entity.PriceUpdate{
			Address:   p.Address,
			PriceUSD:  p.Price,
			Change5m:  p.Change5m,
			Change1h:  p.Change1h,
			Volume24h: p.Volume24h,
			Timestamp: ts,
		})
	}
	return batch, nil
}

// Close tears down the socket and the reconnect loop, then closes the update channel.
func (f *PushFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.updates)
	return nil
}

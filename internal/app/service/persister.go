package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"token_screener/internal/app/port"
	"token_screener/internal/infrastructure/metrics"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const persistWriteTimeout = 5 * time.Second

// ErrPersisterClosed is returned by Flush after Close.
var ErrPersisterClosed = errors.New("persister closed")

// Persister writes store snapshots to the KeyValueStore in the background. Snapshots for
// the same key coalesce: only the latest value enqueued before a write is stored.
type Persister struct {
	kv      port.KeyValueStore
	logger  port.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string][]byte
	closed  bool

	wake     chan struct{}
	flushReq chan chan struct{}
	quit     chan struct{}
	done     chan struct{}
}

// NewPersister starts the background writer.
func NewPersister(kv port.KeyValueStore, logger port.Logger, m *metrics.Metrics) *Persister {
	p := &Persister{
		kv:       kv,
		logger:   logger,
		metrics:  m,
		pending:  make(map[string][]byte),
		wake:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue serializes value now and schedules it for writing under key. Stores call it
// while holding their own lock so snapshots for a key arrive in mutation order.
func (p *Persister) Enqueue(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		p.logger.Error("Failed to serialize snapshot", "key", key, "error", err)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("Persister closed, writing snapshot synchronously", "key", key)
		p.write(key, data)
		return
	}
	p.pending[key] = data
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot enqueued before the call is written.
func (p *Persister) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case p.flushReq <- reply:
	case <-p.done:
		return ErrPersisterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending snapshots and stops the writer. Safe to call more than once.
func (p *Persister) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.quit)
	<-p.done
	return nil
}

func (p *Persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case reply := <-p.flushReq:
			p.drain()
			close(reply)
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *Persister) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		batch := p.pending
		p.pending = make(map[string][]byte)
		p.mu.Unlock()

		for key, data := range batch {
			p.write(key, data)
		}
	}
}

func (p *Persister) write(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), persistWriteTimeout)
	defer cancel()
	if err := p.kv.Set(ctx, key, data); err != nil {
		p.metrics.IncPersist(key, "error")
		p.logger.Error("Failed to persist snapshot", "key", key, "error", err)
		return
	}
	p.metrics.IncPersist(key, "ok")
}

// loadJSON reads key into dst. It reports false when the key is absent, unreadable or
// malformed; the latter two are logged and never returned as errors.
func loadJSON(ctx context.Context, kv port.KeyValueStore, key string, dst any, logger port.Logger) bool {
	data, err := kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, port.ErrKeyNotFound) {
			logger.Error("Failed to read persisted value, using default", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logger.Warn("Persisted value is malformed, using default", "key", key, "error", err)
		return false
	}
	return true
}

package pricefeed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token_screener/internal/domain/entity"
	"token_screener/internal/domain/normalizer"
	dex "token_screener/internal/entity"
	"token_screener/internal/infrastructure/metrics"
	"token_screener/internal/pkg/clock"
	"token_screener/internal/pkg/utils"
)

const (
	TransportPolling = "polling"
	TransportPush    = "push"

	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 30

	maxParallelBatches = 4
	updatesBuffer      = 16
)

// PairFetcher is the slice of the market data client the polling feed needs.
type PairFetcher interface {
	GetTokenPairsByAddresses(ctx context.Context, chain string, addresses []string) ([]dex.PairData, error)
}

type PollingConfig struct {
	Chain     string
	Interval  time.Duration
	BatchSize int
	NewTicker clock.TickerFactory
	Now       func() time.Time
}

// PollingFeed refreshes prices for the current address set on a fixed interval.
type PollingFeed struct {
	fetcher   PairFetcher
	chain     string
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu        sync.RWMutex
	addresses []string

	updates chan entity.PriceBatch
	kick    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewPollingFeed(fetcher PairFetcher, cfg PollingConfig, logger *zap.Logger, m *metrics.Metrics) *PollingFeed {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = clock.NewRealTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &PollingFeed{
		fetcher:   fetcher,
		chain:     cfg.Chain,
		batchSize: cfg.BatchSize,
		now:       cfg.Now,
		logger:    logger.Named("PollingFeed"),
		metrics:   m,
		updates:   make(chan entity.PriceBatch, updatesBuffer),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	m.SetFeedTransport(TransportPolling)

	ticker := cfg.NewTicker(cfg.Interval)
	f.wg.Add(1)
	go f.loop(ctx, ticker)
	return f
}

func (f *PollingFeed) Transport() string { return TransportPolling }

func (f *PollingFeed) Updates() <-chan entity.PriceBatch { return f.updates }

// SetAddresses replaces the watched set and schedules an immediate poll.
func (f *PollingFeed) SetAddresses(addresses []string) {
	set := utils.UniqueStrings(addresses)
	f.mu.Lock()
	f.addresses = set
	f.mu.Unlock()

	if f.closed.Load() {
		return
	}
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

func (f *PollingFeed) snapshot() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.addresses))
	copy(out, f.addresses)
	return out
}

func (f *PollingFeed) loop(ctx context.Context, ticker clock.Ticker) {
	defer f.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C():
		case <-f.kick:
		}
		batch := f.poll(ctx)
		if len(batch) == 0 {
			continue
		}
		select {
		case f.updates <- batch:
			f.metrics.IncPriceBatch(TransportPolling)
		case <-f.done:
			return
		}
	}
}

func (f *PollingFeed) poll(ctx context.Context) entity.PriceBatch {
	addresses := f.snapshot()
	if len(addresses) == 0 {
		return nil
	}

	var (
		mu    sync.Mutex
		pairs []dex.PairData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBatches)
	for _, chunk := range utils.BatchStrings(addresses, f.batchSize) {
		g.Go(func() error {
			got, err := f.fetcher.GetTokenPairsByAddresses(gctx, f.chain, chunk)
			if err != nil {
				// One failed chunk should not blank the others.
				f.logger.Warn("price poll batch failed", zap.Int("addresses", len(chunk)), zap.Error(err))
				return nil
			}
			mu.Lock()
			pairs = append(pairs, got...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return buildBatch(addresses, pairs, f.now())
}

// buildBatch reduces pairs to one update per watched address, in watch order.
func buildBatch(addresses []string, pairs []dex.PairData, at time.Time) entity.PriceBatch {
	canonical := normalizer.SelectCanonical(pairs)
	batch := make(entity.PriceBatch, 0, len(addresses))
	for _, addr := range addresses {
		pair, ok := canonical[utils.AddressKey(addr)]
		if !ok {
			continue
		}
		tok := normalizer.Normalize(pair)
		if tok.PriceUSD <= 0 {
			continue
		}
		batch = append(batch, entity.PriceUpdate{
			Address:   addr,
			PriceUSD:  tok.PriceUSD,
			Change5m:  tok.PriceChange5m,
			Change1h:  tok.PriceChange1h,
			Volume24h: tok.Volume24h,
			Timestamp: at,
		})
	}
	return batch
}

// Close stops polling and closes the update channel. Safe to call repeatedly.
func (f *PollingFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.done)
	f.cancel()
	f.wg.Wait()
	close(f.updates)
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/infrastructure/metrics"
	"token_screener/internal/pkg/clock"
)

// ErrPollerStopped is returned by Refresh once the poller is stopped.
var ErrPollerStopped = errors.New("poller stopped")

// FetchFunc performs one full fetch of a token set.
type FetchFunc func(ctx context.Context) ([]entity.Token, error)

// PollState is a snapshot of what the poller exposes to consumers.
type PollState struct {
	Tokens      []entity.Token `json:"-"`
	Loading     bool           `json:"loading"`
	Refreshing  bool           `json:"refreshing"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Err         string         `json:"error,omitempty"`
	TokenCount  int            `json:"tokenCount"`
}

// FeedPollerConfig configures a FeedPoller.
type FeedPollerConfig struct {
	Name      string
	Interval  time.Duration
	NewTicker clock.TickerFactory
	Now       func() time.Time
	Logger    port.Logger
	Metrics   *metrics.Metrics
}

// FeedPoller runs a FetchFunc on a fixed schedule and on demand. Every fetch gets a
// sequence number when it starts; starting a fetch cancels the one in flight, and a
// result is applied only when its sequence is newer than the last applied one.
type FeedPoller struct {
	name      string
	fetch     FetchFunc
	interval  time.Duration
	newTicker clock.TickerFactory
	now       func() time.Time
	logger    port.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	state      PollState
	nextSeq    uint64
	appliedSeq uint64
	inflight   map[uint64]context.CancelFunc
	running    bool
	stopped    bool
	runCancel  context.CancelFunc
	wg         sync.WaitGroup

	// cbMu serializes listener delivery so Stop can wait for it.
	cbMu         sync.Mutex
	notifiedSeq  uint64
	listeners    map[int]func(PollState)
	nextListener int
}

// NewFeedPoller creates a stopped poller.
func NewFeedPoller(fetch FetchFunc, cfg FeedPollerConfig) *FeedPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = clock.NewRealTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = "list"
	}
	return &FeedPoller{
		name:      cfg.Name,
		fetch:     fetch,
		interval:  cfg.Interval,
		newTicker: cfg.NewTicker,
		now:       cfg.Now,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		inflight:  make(map[uint64]context.CancelFunc),
		listeners: make(map[int]func(PollState)),
	}
}

// Start fires one fetch immediately and then one per interval until Stop or ctx ends.
// Calling Start on a running poller does nothing.
func (p *FeedPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPollerStopped
	}
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.runCancel = cancel
	ticker := p.newTicker(p.interval)
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info("Feed poller started", "poller", p.name, "interval", p.interval.String())

	go func() {
		defer p.wg.Done()
		defer ticker.Stop()

		p.tick(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C():
				p.tick(runCtx)
			}
		}
	}()
	return nil
}

func (p *FeedPoller) tick(ctx context.Context) {
	if err := p.Refresh(ctx, false); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrPollerStopped) {
		p.logger.Debug("Scheduled fetch failed", "poller", p.name, "error", err)
	}
}

// Stop cancels the schedule and any fetch in flight. No listener runs after Stop
// returns. Safe to call more than once.
func (p *FeedPoller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.runCancel != nil {
		p.runCancel()
	}
	for _, cancel := range p.inflight {
		cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	// Wait for a delivery that started before stopped was set.
	p.cbMu.Lock()
	p.listeners = make(map[int]func(PollState))
	p.cbMu.Unlock()

	p.logger.Info("Feed poller stopped", "poller", p.name)
}

// Refresh performs one fetch. manual marks a user-initiated refresh for logging only;
// ordering is identical for manual and scheduled fetches. A fetch superseded by a newer
// one returns nil without touching state.
func (p *FeedPoller) Refresh(ctx context.Context, manual bool) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPollerStopped
	}
	p.nextSeq++
	seq := p.nextSeq
	for older, cancel := range p.inflight {
		cancel()
		delete(p.inflight, older)
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	p.inflight[seq] = cancel
	if p.appliedSeq == 0 {
		p.state.Loading = true
	} else {
		p.state.Refreshing = true
	}
	p.mu.Unlock()

	if manual {
		p.logger.Debug("Manual refresh", "poller", p.name, "seq", seq)
	}

	start := p.now()
	tokens, err := p.fetch(fetchCtx)
	elapsed := p.now().Sub(start)
	superseded := fetchCtx.Err() != nil && ctx.Err() == nil
	cancel()

	p.mu.Lock()
	delete(p.inflight, seq)
	if p.stopped {
		p.mu.Unlock()
		return ErrPollerStopped
	}
	if seq <= p.appliedSeq || (err != nil && superseded) {
		p.settleFlags()
		p.mu.Unlock()
		p.logger.Debug("Discarding superseded fetch result", "poller", p.name, "seq", seq)
		return nil
	}
	if err != nil && ctx.Err() != nil {
		p.settleFlags()
		p.mu.Unlock()
		return ctx.Err()
	}

	p.appliedSeq = seq
	if err != nil {
		p.state.Err = userMessage(err)
		p.metrics.ObservePoll(p.name, "error", elapsed)
		p.logger.Warn("Fetch failed, keeping previous snapshot", "poller", p.name, "error", err)
	} else {
		if tokens == nil {
			tokens = []entity.Token{}
		}
		p.state.Tokens = tokens
		p.state.Err = ""
		p.state.LastUpdated = p.now()
		p.metrics.ObservePoll(p.name, "success", elapsed)
		p.metrics.SetTokens(p.name, len(tokens))
	}
	p.settleFlags()
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.deliver(seq, snapshot)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", p.name, err)
	}
	return nil
}

// settleFlags clears the progress flags once nothing is in flight. Caller holds mu.
func (p *FeedPoller) settleFlags() {
	if len(p.inflight) == 0 {
		p.state.Loading = false
		p.state.Refreshing = false
	}
}

func (p *FeedPoller) snapshotLocked() PollState {
	s := p.state
	s.TokenCount = len(s.Tokens)
	return s
}

func (p *FeedPoller) deliver(seq uint64, snapshot PollState) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped || seq <= p.notifiedSeq {
		return
	}
	p.notifiedSeq = seq
	for _, fn := range p.listeners {
		fn(snapshot)
	}
}

// State returns the current snapshot. Tokens is shared and must not be modified.
func (p *FeedPoller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Tokens returns the current token set.
func (p *FeedPoller) Tokens() []entity.Token {
	return p.State().Tokens
}

// Subscribe registers fn to run after every applied fetch. fn runs outside the state
// lock but must not call Stop or Subscribe synchronously.
func (p *FeedPoller) Subscribe(fn func(PollState)) (unsubscribe func()) {
	p.cbMu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.cbMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.cbMu.Lock()
			delete(p.listeners, id)
			p.cbMu.Unlock()
		})
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Market data request timed out, retrying"
	default:
		return fmt.Sprintf("Failed to load tokens, retrying: %v", err)
	}
}

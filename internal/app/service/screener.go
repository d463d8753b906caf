package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/domain/view"
	"token_screener/internal/infrastructure/metrics"
)

// Events published by the screener.
const (
	EventPollSummary = "poll.summary"
	EventPriceBatch  = "price.batch"
)

// PollSummary is the payload of EventPollSummary.
type PollSummary struct {
	PollState
	Totals    entity.ViewTotals `json:"totals"`
	Triggered int               `json:"triggered"`
}

// ScreenerDeps are the components a Screener composes. Feed, Portfolio and Events may
// be nil.
type ScreenerDeps struct {
	Poller    *FeedPoller
	Feed      port.PriceFeed
	Watchlist *WatchlistStore
	Alerts    *AlertEngine
	Filters   *FilterStore
	Portfolio *PortfolioService
	Persister *Persister
	Events    port.EventPublisher
	Logger    port.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Screener wires the list poller and the price feed into the alert engine and derives
// views over the latest snapshot.
type Screener struct {
	poller    *FeedPoller
	feed      port.PriceFeed
	watchlist *WatchlistStore
	alerts    *AlertEngine
	filters   *FilterStore
	portfolio *PortfolioService
	persister *Persister
	events    port.EventPublisher
	logger    port.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	syncMu sync.Mutex

	mu          sync.Mutex
	live        map[string]entity.PriceUpdate
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	stopped     bool
}

func NewScreener(deps ScreenerDeps) *Screener {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Screener{
		poller:    deps.Poller,
		feed:      deps.Feed,
		watchlist: deps.Watchlist,
		alerts:    deps.Alerts,
		filters:   deps.Filters,
		portfolio: deps.Portfolio,
		persister: deps.Persister,
		events:    deps.Events,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
		live:      make(map[string]entity.PriceUpdate),
	}
}

// Start subscribes to the poller, starts consuming the feed and starts the poller.
func (s *Screener) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.unsubscribe = s.poller.Subscribe(func(st PollState) { s.onPoll(runCtx, st) })

	if s.feed != nil {
		s.metrics.SetFeedTransport(s.feed.Transport())
		s.wg.Add(2)
		go s.consumeFeed(runCtx)
		go s.syncWhenReady(runCtx)
	}

	if err := s.poller.Start(runCtx); err != nil {
		return err
	}
	s.logger.Info("Screener started")
	return nil
}

func (s *Screener) onPoll(ctx context.Context, st PollState) {
	if st.Err != "" {
		s.publish(EventPollSummary, PollSummary{PollState: st})
		return
	}
	prices := make(map[string]float64, len(st.Tokens))
	for _, t := range st.Tokens {
		prices[t.Address] = t.PriceUSD
	}
	triggered := s.alerts.Evaluate(ctx, prices)
	s.publish(EventPollSummary, PollSummary{
		PollState: st,
		Totals:    view.Totals(st.Tokens),
		Triggered: len(triggered),
	})
}

func (s *Screener) consumeFeed(ctx context.Context) {
	defer s.wg.Done()
	updates := s.feed.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-updates:
			if !ok {
				return
			}
			s.onBatch(ctx, batch)
		}
	}
}

func (s *Screener) onBatch(ctx context.Context, batch entity.PriceBatch) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	for _, u := range batch {
		s.live[u.Address] = u
	}
	s.mu.Unlock()

	s.alerts.Evaluate(ctx, batch.Prices())
	s.publish(EventPriceBatch, batch)
}

// syncWhenReady pushes the first feed address set once both stores have loaded.
func (s *Screener) syncWhenReady(ctx context.Context) {
	defer s.wg.Done()
	if s.awaitMembership(ctx) {
		s.SyncFeed()
	}
}

// FeedAddresses is the watched set: watchlist members plus tokens with active alerts.
func (s *Screener) FeedAddresses() []string {
	set := s.watchlist.Addresses()
	for _, a := range s.alerts.ActiveAddresses() {
		set[a] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// SyncFeed re-sends the watched set to the price feed. Computing the set and sending
// it happen under syncMu so concurrent syncs cannot deliver an older set last.
func (s *Screener) SyncFeed() {
	if s.feed == nil {
		return
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	s.feed.SetAddresses(s.FeedAddresses())
}

func (s *Screener) publish(eventType string, payload any) {
	if s.events != nil {
		s.events.Publish(eventType, payload)
	}
}

// LivePrice returns the latest feed update for address.
func (s *Screener) LivePrice(address string) (entity.PriceUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.live[address]
	return u, ok
}

// awaitMembership waits until the watchlist and alerts have loaded or ctx ends. It
// reports whether both loaded.
func (s *Screener) awaitMembership(ctx context.Context) bool {
	for _, ready := range []<-chan struct{}{s.watchlist.Ready(), s.alerts.Ready()} {
		select {
		case <-ready:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// View derives the rows of v over the latest snapshot with the stored filters. A
// non-nil preset is merged over them. It waits for the membership sets while ctx
// allows; if they are still loading the result has MembershipLoaded false.
func (s *Screener) View(ctx context.Context, v entity.View, sortSpec entity.SortSpec, preset *view.Preset) entity.ViewResult {
	loaded := s.awaitMembership(ctx)
	p := view.Params{
		View:   v,
		Sort:   sortSpec,
		Preset: preset,
		Now:    s.now(),
	}
	if s.filters != nil {
		p.Filters = s.filters.Get()
	}
	sets := view.Sets{
		Watchlist: s.watchlist.Addresses(),
		Alerted:   s.alerts.AlertedAddresses(),
	}
	if s.portfolio != nil {
		sets.Holdings = s.portfolio.HoldingAddresses()
	}
	res := view.Derive(s.poller.Tokens(), p, sets)
	res.MembershipLoaded = loaded
	return res
}

// IsWatched reports watchlist membership of address and whether the watchlist had
// loaded within ctx. A false membership with loaded false is not authoritative.
func (s *Screener) IsWatched(ctx context.Context, address string) (member, loaded bool) {
	select {
	case <-s.watchlist.Ready():
		loaded = true
	case <-ctx.Done():
	}
	return s.watchlist.IsMember(address), loaded
}

// Snapshot returns the poller state.
func (s *Screener) Snapshot() PollState {
	return s.poller.State()
}

// Refresh triggers a manual fetch.
func (s *Screener) Refresh(ctx context.Context) error {
	return s.poller.Refresh(ctx, true)
}

// WatchlistItems returns the watchlist in insertion order.
func (s *Screener) WatchlistItems() []entity.WatchlistItem {
	return s.watchlist.Items()
}

// Alerts returns every alert in creation order.
func (s *Screener) Alerts() []entity.PriceAlert {
	return s.alerts.List()
}

// FeedTransport names the active price feed transport, or "" without a feed.
func (s *Screener) FeedTransport() string {
	if s.feed == nil {
		return ""
	}
	return s.feed.Transport()
}

// ToggleWatchlist flips membership and resyncs the feed.
func (s *Screener) ToggleWatchlist(ctx context.Context, item entity.WatchlistItem) (bool, error) {
	member, err := s.watchlist.Toggle(ctx, item)
	if err == nil {
		s.SyncFeed()
	}
	return member, err
}

func (s *Screener) AddToWatchlist(ctx context.Context, item entity.WatchlistItem) error {
	if err := s.watchlist.Add(ctx, item); err != nil {
		return err
	}
	s.SyncFeed()
	return nil
}

func (s *Screener) ClearWatchlist(ctx context.Context) error {
	if err := s.watchlist.Clear(ctx); err != nil {
		return err
	}
	s.SyncFeed()
	return nil
}

// AddAlert creates an alert against currentPrice and starts watching its token.
func (s *Screener) AddAlert(ctx context.Context, in entity.NewAlertInput, currentPrice float64) (entity.PriceAlert, error) {
	a, err := s.alerts.AddAlert(ctx, in, currentPrice)
	if err != nil {
		return entity.PriceAlert{}, err
	}
	s.SyncFeed()
	return a, nil
}

func (s *Screener) RemoveAlert(ctx context.Context, id string) (bool, error) {
	removed, err := s.alerts.Remove(ctx, id)
	if err == nil && removed {
		s.SyncFeed()
	}
	return removed, err
}

func (s *Screener) ClearAlerts(ctx context.Context) error {
	if err := s.alerts.Clear(ctx); err != nil {
		return err
	}
	s.SyncFeed()
	return nil
}

// Stop tears components down in reverse start order and flushes pending writes.
// Safe to call more than once.
func (s *Screener) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if s.feed != nil {
		if err := s.feed.Close(); err != nil {
			s.logger.Warn("Failed to close price feed", "error", err)
		}
	}
	s.poller.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	var err error
	if s.persister != nil {
		if err = s.persister.Flush(ctx); err != nil {
			s.logger.Error("Failed to flush pending writes", "error", err)
		}
		if cerr := s.persister.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.logger.Info("Screener stopped")
	return err
}

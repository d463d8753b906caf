package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"token_screener/internal/domain/entity"
	dex "token_screener/internal/entity"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu        sync.Mutex
	permitted bool
	alerts    []entity.PriceAlert
}

func (n *recordingNotifier) Permitted() bool { return n.permitted }

func (n *recordingNotifier) Notify(_ context.Context, a entity.PriceAlert, _ float64) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type countingAudio struct {
	plays atomic.Int32
}

func (a *countingAudio) Play(context.Context) error {
	a.plays.Add(1)
	return nil
}

type staticSound bool

func (s staticSound) SoundEnabled() bool { return bool(s) }

func tokens(addrs ...string) []entity.Token {
	out := make([]entity.Token, len(addrs))
	for i, a := range addrs {
		out[i] = entity.Token{Address: a, Symbol: a, PriceUSD: float64(i + 1)}
	}
	return out
}

func pair(addr, symbol string, price, liquidity float64) dex.PairData {
	return dex.PairData{
		ChainID:     "solana",
		PairAddress: "pair-" + addr,
		BaseToken:   dex.DEXToken{Address: addr, Symbol: symbol, Name: symbol + " Token"},
		PriceUsd:    dex.FlexFloat{Value: price, Valid: true},
		Liquidity:   &dex.DEXLiquidity{Usd: &liquidity},
	}
}

// fakeMarket serves pairs from memory and counts calls per method.
type fakeMarket struct {
	mu         sync.Mutex
	list       []dex.PairData
	byToken    map[string][]dex.PairData
	err        error
	calls      map[string]int
	lastSearch string
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{byToken: map[string][]dex.PairData{}, calls: map[string]int{}}
}

func (m *fakeMarket) add(pairs ...dex.PairData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.list = append(m.list, p)
		m.byToken[p.BaseToken.Address] = append(m.byToken[p.BaseToken.Address], p)
	}
}

func (m *fakeMarket) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *fakeMarket) GetTokensByChain(_ context.Context, _ string) ([]dex.PairData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.err != nil {
		return nil, m.err
	}
	return append([]dex.PairData(nil), m.list...), nil
}

func (m *fakeMarket) Search(_ context.Context, q string) ([]dex.PairData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["search"]++
	m.lastSearch = q
	if m.err != nil {
		return nil, m.err
	}
	return append([]dex.PairData(nil), m.list...), nil
}

func (m *fakeMarket) GetTokenPairs(_ context.Context, address string) ([]dex.PairData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["pairs"]++
	if m.err != nil {
		return nil, m.err
	}
	return append([]dex.PairData(nil), m.byToken[address]...), nil
}

func (m *fakeMarket) GetTokenPairsByAddresses(_ context.Context, _ string, addresses []string) ([]dex.PairData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["batch"]++
	if m.err != nil {
		return nil, m.err
	}
	var out []dex.PairData
	for _, a := range addresses {
		out = append(out, m.byToken[a]...)
	}
	return out, nil
}

type fakeWallet struct {
	network  entity.NetworkDefinition
	holdings entity.WalletHoldings
	err      error
}

func (w *fakeWallet) ReadHoldings(_ context.Context, wallet string) (entity.WalletHoldings, error) {
	if w.err != nil {
		return entity.WalletHoldings{}, w.err
	}
	h := w.holdings
	h.Wallet = wallet
	return h, nil
}

func (w *fakeWallet) Network() entity.NetworkDefinition { return w.network }

// fakeFeed records address sets and lets tests push batches.
type fakeFeed struct {
	mu      sync.Mutex
	sets    [][]string
	updates chan entity.PriceBatch
	closed  bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{updates: make(chan entity.PriceBatch)}
}

func (f *fakeFeed) SetAddresses(addresses []string) {
	f.mu.Lock()
	f.sets = append(f.sets, append([]string(nil), addresses...))
	f.mu.Unlock()
}

func (f *fakeFeed) lastSet() ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sets) == 0 {
		return nil, false
	}
	return f.sets[len(f.sets)-1], true
}

func (f *fakeFeed) Updates() <-chan entity.PriceBatch { return f.updates }

func (f *fakeFeed) Transport() string { return "polling" }

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.updates)
	}
	return nil
}

type publishedEvent struct {
	Type    string
	Payload any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingEvents) Publish(eventType string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, publishedEvent{Type: eventType, Payload: payload})
	r.mu.Unlock()
}

func (r *recordingEvents) ofType(eventType string) []publishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []publishedEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/domain/normalizer"
)

// TokenService turns market data into normalized tokens for the list, search and detail
// surfaces.
type TokenService struct {
	client  port.MarketDataClient
	chain   string
	history *SearchHistory
	prices  *TokenPriceService
	details *gocache.Cache
	logger  port.Logger
}

// NewTokenService caches detail lookups for detailTTL so clients polling a detail view at
// that cadence reach the upstream at most once per interval.
func NewTokenService(client port.MarketDataClient, chain string, history *SearchHistory, prices *TokenPriceService, detailTTL time.Duration, logger port.Logger) *TokenService {
	if detailTTL <= 0 {
		detailTTL = 15 * time.Second
	}
	return &TokenService{
		client:  client,
		chain:   chain,
		history: history,
		prices:  prices,
		details: gocache.New(detailTTL, 2*detailTTL),
		logger:  logger,
	}
}

// FetchList is the list poller's FetchFunc.
func (s *TokenService) FetchList(ctx context.Context) ([]entity.Token, error) {
	pairs, err := s.client.GetTokensByChain(ctx, s.chain)
	if err != nil {
		return nil, err
	}
	tokens, dropped := normalizer.NormalizeAll(pairs)
	if dropped > 0 {
		s.logger.Debug("Dropped pairs without a base token address", "count", dropped)
	}
	if s.prices != nil {
		s.prices.Observe(tokens)
	}
	return tokens, nil
}

// Search normalizes the results of a free-text search and records the query in the
// recent-search history once it succeeds.
func (s *TokenService) Search(ctx context.Context, query string) ([]entity.Token, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []entity.Token{}, nil
	}
	pairs, err := s.client.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	tokens, _ := normalizer.NormalizeAll(pairs)
	if s.history != nil {
		s.history.Record(q)
	}
	return tokens, nil
}

// Detail returns the token built from its canonical pair.
func (s *TokenService) Detail(ctx context.Context, address string) (entity.Token, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return entity.Token{}, fmt.Errorf("%w: address is required", entity.ErrInvalidInput)
	}
	if cached, ok := s.details.Get(address); ok {
		return cached.(entity.Token), nil
	}

	pairs, err := s.client.GetTokenPairs(ctx, address)
	if err != nil {
		return entity.Token{}, fmt.Errorf("token pairs for %s: %w", address, err)
	}
	pair, ok := normalizer.CanonicalFor(address, pairs)
	if !ok {
		return entity.Token{}, entity.ErrTokenNotFound
	}
	tok := normalizer.Normalize(pair)
	s.details.SetDefault(address, tok)
	if s.prices != nil {
		s.prices.Observe([]entity.Token{tok})
	}
	return tok, nil
}

// CurrentPrice prefers the given snapshot and falls back to a price lookup.
func (s *TokenService) CurrentPrice(ctx context.Context, address string, snapshot []entity.Token) (float64, error) {
	for _, t := range snapshot {
		if t.Address == address && t.PriceUSD > 0 {
			return t.PriceUSD, nil
		}
	}
	if s.prices == nil {
		return 0, entity.ErrTokenNotFound
	}
	q, err := s.prices.Quote(ctx, address)
	if err != nil {
		return 0, err
	}
	return q.PriceUSD, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/domain/normalizer"
	"token_screener/internal/pkg/utils"
)

const (
	maxTokensPerBatchRequest = 30
	priceFetchConcurrency    = 4
)

// PriceQuote is the canonical-pair price of one token.
type PriceQuote struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	PriceUSD float64 `json:"priceUsd"`
}

// TokenPriceService resolves USD prices by address through the market data client and
// keeps them in a short-lived cache.
type TokenPriceService struct {
	client port.MarketDataClient
	chain  string
	cache  *gocache.Cache
	logger port.Logger
}

func NewTokenPriceService(client port.MarketDataClient, chain string, ttl time.Duration, logger port.Logger) *TokenPriceService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TokenPriceService{
		client: client,
		chain:  chain,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func priceKey(address string) string { return strings.ToLower(address) }

// Observe warms the cache from an already normalized token set.
func (s *TokenPriceService) Observe(tokens []entity.Token) {
	for _, t := range tokens {
		if t.PriceUSD <= 0 {
			continue
		}
		s.cache.SetDefault(priceKey(t.Address), PriceQuote{Address: t.Address, Symbol: t.Symbol, Name: t.Name, PriceUSD: t.PriceUSD})
	}
}

// Quotes returns what could be priced. Batch failures are joined into the error while the
// remaining quotes are still returned.
func (s *TokenPriceService) Quotes(ctx context.Context, addresses []string) (map[string]PriceQuote, error) {
	out := make(map[string]PriceQuote, len(addresses))
	var missing []string
	for _, addr := range utils.UniqueStrings(addresses) {
		if addr == "" {
			continue
		}
		if cached, ok := s.cache.Get(priceKey(addr)); ok {
			out[addr] = cached.(PriceQuote)
			continue
		}
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(priceFetchConcurrency)
	for _, batch := range utils.BatchStrings(missing, maxTokensPerBatchRequest) {
		g.Go(func() error {
			pairs, err := s.client.GetTokenPairsByAddresses(gctx, s.chain, batch)
			if err != nil {
				s.logger.Error("Failed to get token pairs for prices", "chain", s.chain, "token_addresses_count", len(batch), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}

			canonical := normalizer.SelectCanonical(pairs)
			for _, addr := range batch {
				pair, ok := canonical[utils.AddressKey(addr)]
				if !ok {
					s.logger.Debug("No pairs returned for token address", "tokenAddress", addr)
					continue
				}
				tok := normalizer.Normalize(pair)
				if tok.PriceUSD <= 0 {
					continue
				}
				q := PriceQuote{Address: addr, Symbol: tok.Symbol, Name: tok.Name, PriceUSD: tok.PriceUSD}
				s.cache.SetDefault(priceKey(addr), q)
				mu.Lock()
				out[addr] = q
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, errors.Join(errs...)
}

// Quote prices a single token. It returns entity.ErrTokenNotFound when no priced pair exists.
func (s *TokenPriceService) Quote(ctx context.Context, address string) (PriceQuote, error) {
	quotes, err := s.Quotes(ctx, []string{address})
	if q, ok := quotes[address]; ok {
		return q, nil
	}
	if err != nil {
		return PriceQuote{}, fmt.Errorf("price lookup for %s: %w", address, err)
	}
	return PriceQuote{}, entity.ErrTokenNotFound
}
